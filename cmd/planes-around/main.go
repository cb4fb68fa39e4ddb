package main

import (
	"context"
	"io"
	"os"
	"time"

	"code.sztanpet.net/zvpsz/planes-around/internal/config"
	"code.sztanpet.net/zvpsz/planes-around/internal/display"
	"code.sztanpet.net/zvpsz/planes-around/internal/gpio"
	"code.sztanpet.net/zvpsz/planes-around/internal/planes"
	"code.sztanpet.net/zvpsz/planes-around/internal/status"
	"code.sztanpet.net/zvpsz/planes-around/internal/storage"
	"code.sztanpet.net/zvpsz/planes-around/internal/telegram"
	"code.sztanpet.net/zvpsz/planes-around/internal/wifi"
	"github.com/juju/loggo"
	"golang.org/x/sync/errgroup"
)

type app struct {
	ctx     context.Context
	exit    context.CancelFunc
	group   *errgroup.Group
	cfg     *config.Config
	logFile io.Closer
	screen  *display.Screen
	palette display.Palette
	board   *gpio.Board
	status  *status.Status
	storage *storage.Storage
	bot     *telegram.Bot
	wifi    *wifi.Connector
	list    *planes.List
}

var logger = loggo.GetLogger("main")

func main() {
	cfg := config.Get()
	ctx, exit := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	a := &app{
		ctx:     ctx,
		exit:    exit,
		group:   group,
		cfg:     cfg,
		palette: display.DefaultPalette(),
		list:    &planes.List{},
	}

	// logging sends messages to telegram, so it depends on it
	a.setupTelegram()
	a.setupLogging()
	a.handleSignals()

	// the wifi connector resets the device through status
	a.setupStatus()

	// depends on statePath
	a.setupStorage()

	// no deps
	a.setupScreen()

	// the terminal simulator feeds the buttons on development machines
	a.setupBoard()

	a.setupWifi()

	a.setupViews()

	// canceling the context is the normal way to exit
	if err := a.group.Wait(); err != nil {
		logger.Errorf("exiting with error: %v", err)
	}
	a.shutdown()

	time.Sleep(250 * time.Millisecond)
	os.Exit(0)
}
