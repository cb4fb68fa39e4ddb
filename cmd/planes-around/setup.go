package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"code.sztanpet.net/zvpsz/planes-around/internal/adsb"
	"code.sztanpet.net/zvpsz/planes-around/internal/display"
	"code.sztanpet.net/zvpsz/planes-around/internal/gpio"
	"code.sztanpet.net/zvpsz/planes-around/internal/logwriter"
	"code.sztanpet.net/zvpsz/planes-around/internal/status"
	"code.sztanpet.net/zvpsz/planes-around/internal/storage"
	"code.sztanpet.net/zvpsz/planes-around/internal/telegram"
	"code.sztanpet.net/zvpsz/planes-around/internal/view"
	"code.sztanpet.net/zvpsz/planes-around/internal/wifi"
)

func (a *app) handleSignals() {
	if a.ctx.Err() != nil {
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		s := <-c
		// exit unconditionally on any signal
		logger.Warningf("Got signal: %s, exiting cleanly", s)
		a.exit()
	}()
}

func (a *app) setupTelegram() {
	if a.ctx.Err() != nil {
		return
	}
	if !a.cfg.Telegram.Enabled() {
		return
	}

	bot, err := telegram.New(a.ctx, a.cfg.Telegram.Token, a.cfg.Telegram.ChannelID)
	if err != nil {
		// logging is not set up yet, this goes to stderr
		logger.Warningf("telegram setup failed, messages are not forwarded: %v", err)
		return
	}

	a.bot = bot
	a.group.Go(bot.Run)
}

func (a *app) setupLogging() {
	if a.ctx.Err() != nil {
		return
	}

	var sender logwriter.Sender
	if a.bot != nil {
		sender = a.bot
	}

	closer, err := logwriter.Setup(sender, a.cfg.StatePath, a.cfg.LogSpec)
	if err != nil {
		logger.Criticalf("logwriter setup failed: %v", err)
		os.Exit(1)
	}
	a.logFile = closer

	logger.Infof("starting on %v, position: %v,%v radius: %vnm",
		a.cfg.MachineID, a.cfg.Position.Lat, a.cfg.Position.Long, a.cfg.Radius)
}

func (a *app) setupStatus() {
	if a.ctx.Err() != nil {
		return
	}

	a.status = status.New(a.ctx)
	a.group.Go(a.status.Run)
}

func (a *app) setupStorage() {
	if a.ctx.Err() != nil {
		return
	}
	if a.cfg.DatabaseDSN == "" {
		logger.Infof("no database configured, sightings are not recorded")
		return
	}

	s, err := storage.New(a.ctx, a.cfg.StatePath, a.cfg.DatabaseDSN, a.cfg.MachineID)
	if err != nil {
		logger.Criticalf("failed to initialize storage: %v", err)
		os.Exit(1)
	}
	// sightings are spooled until the database is reachable
	if err := s.TestConnection(); err != nil {
		logger.Warningf("database not reachable: %v", err)
	}

	a.storage = s
	a.group.Go(s.Run)
}

func (a *app) setupScreen() {
	if a.ctx.Err() != nil {
		return
	}

	screen, err := display.Open(a.cfg.Display)
	if err != nil {
		logger.Criticalf("failed to open display: %v", err)
		os.Exit(1)
	}
	a.screen = screen

	if err := a.screen.Blank(); err != nil {
		logger.Warningf("clearing screen failed: %v", err)
	}
}

func (a *app) setupBoard() {
	if a.ctx.Err() != nil {
		return
	}

	var keys <-chan rune
	if ks, ok := a.screen.Panel().(display.KeySource); ok {
		keys = ks.Keys()
	}

	board, err := gpio.Open(a.cfg.GPIO, keys)
	if err != nil {
		logger.Criticalf("failed to set up buttons: %v", err)
		os.Exit(1)
	}
	a.board = board

	if err := a.board.LED.Off(); err != nil {
		logger.Warningf("switching led off failed: %v", err)
	}
}

func (a *app) setupWifi() {
	if a.ctx.Err() != nil {
		return
	}
	if !a.cfg.WiFi.Managed() {
		logger.Infof("wifi is not managed, leaving networking to the host")
		return
	}

	w := a.cfg.WiFi
	a.wifi = &wifi.Connector{
		Radio:       wifi.NewNMCli(w.Interface),
		SSID:        w.SSID,
		Key:         w.Key,
		MaxAttempts: w.MaxAttempts,
		RetryDelay:  w.RetryDelay.Duration,
		Reset:       a.status.Reset,
	}
	if w.Static() {
		a.wifi.Static = &wifi.Static{IP: w.IP, Mask: w.Mask, Gateway: w.Gateway, DNS: w.DNS}
	}

	a.message("Connecting to", w.SSID)
	err := a.wifi.Connect(a.ctx)
	switch {
	case err == nil:
	case errors.Is(err, wifi.ErrBadCredentials):
		// every failed fetch tries again, the key may be fixed by then
		a.message("Wrong wifi key", w.SSID)
	case a.ctx.Err() != nil:
	default:
		logger.Errorf("wifi connect failed: %v", err)
	}
}

func (a *app) setupViews() {
	if a.ctx.Err() != nil {
		return
	}

	// stays nil when wifi is not managed
	var net adsb.Reconnector
	if a.wifi != nil {
		net = a.wifi
	}

	client := adsb.NewClient(a.cfg.API.BaseURL, a.cfg.API.Timeout.Duration)
	summary := &view.Summary{
		Feed:     adsb.NewFeed(client, a.cfg.Position.Lat, a.cfg.Position.Long, a.cfg.Radius, net),
		List:     a.list,
		Screen:   a.screen,
		Palette:  a.palette,
		Radius:   a.cfg.Radius,
		Interval: a.cfg.Interval.Duration,
	}
	if a.storage != nil {
		summary.Recorder = a.storage
	}
	detail := &view.Detail{
		List:    a.list,
		Screen:  a.screen,
		Palette: a.palette,
	}

	rot := view.NewRotation(
		view.View{Name: "summary", Run: summary.Run},
		view.View{Name: "detail", Run: detail.Run},
	)
	sw := view.NewSwitcher(rot, a.board.A, a.board.B)
	a.group.Go(func() error {
		return sw.Run(a.ctx)
	})
}

// message shows two lines in the middle of the screen
func (a *app) message(title, detail string) {
	if a.screen == nil {
		return
	}

	a.screen.SetPen(a.palette.Background)
	a.screen.Clear()
	a.screen.SetPen(a.palette.Header)
	a.screen.Text(title, 8, 40, 2)
	a.screen.SetPen(a.palette.Callsign)
	a.screen.Text(detail, 8, 80, 1)
	if err := a.screen.Update(); err != nil {
		logger.Warningf("showing message failed: %v", err)
	}
}

// shutdown releases the hardware, every step is best effort
func (a *app) shutdown() {
	if a.screen != nil {
		if err := a.screen.Blank(); err != nil {
			logger.Warningf("clearing screen failed: %v", err)
		}
		if err := a.screen.Close(); err != nil {
			logger.Warningf("closing screen failed: %v", err)
		}
	}
	if a.board != nil {
		_ = a.board.LED.Off()
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			logger.Warningf("closing database failed: %v", err)
		}
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}
