package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"code.sztanpet.net/zvpsz/planes-around/internal/config"
	"code.sztanpet.net/zvpsz/planes-around/internal/display"
	"code.sztanpet.net/zvpsz/planes-around/internal/gpio"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func(c chan os.Signal) {
		s := <-c
		fmt.Println("Got signal:", s)
		cancel()
	}(c)

	// the terminal simulator is the keyboard on development machines
	var keys <-chan rune
	s, err := display.Open(config.Default().Display)
	if err != nil {
		log.Printf("display error, using gpio only: %v", err)
	} else {
		defer s.Close()
		if ks, ok := s.Panel().(display.KeySource); ok {
			keys = ks.Keys()
		}
	}

	board, err := gpio.Open(config.Default().GPIO, keys)
	if err != nil {
		log.Fatalf("input err: %v", err)
	}

	buttons := []struct {
		name string
		b    gpio.Button
		was  bool
	}{
		{name: "A", b: board.A},
		{name: "B", b: board.B},
	}

	t := time.NewTicker(10 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		for i := range buttons {
			now := buttons[i].b.Pressed()
			if now == buttons[i].was {
				continue
			}
			buttons[i].was = now

			msg := fmt.Sprintf("button %v released", buttons[i].name)
			if now {
				msg = fmt.Sprintf("button %v pressed", buttons[i].name)
			}
			if s != nil {
				_ = s.Blank()
				s.SetPen(display.White)
				s.Text(msg, 8, 60, 1)
				_ = s.Update()
			} else {
				fmt.Println(msg)
			}
		}
	}
}
