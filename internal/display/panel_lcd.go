//go:build !amd64

package display

import (
	"fmt"

	"code.sztanpet.net/zvpsz/planes-around/internal/config"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"
)

// spiFreq is well within what the ST7789 accepts for writes
const spiFreq = 40 * physic.MegaHertz

// lcd is the ST7789 on a spidev port, the port is released on Close.
type lcd struct {
	*st7789
	port spi.PortCloser
}

func openPanel(cfg config.Display) (Panel, error) {
	if _, err := host.Init(); err != nil {
		logger.Errorf("no display detected: %v", err)
		return nil, err
	}

	dc, err := pin(cfg.DC)
	if err != nil {
		return nil, err
	}
	if dc == nil {
		return nil, fmt.Errorf("display: no data/command pin configured")
	}
	rst, err := pin(cfg.Reset)
	if err != nil {
		return nil, err
	}
	bl, err := pin(cfg.Backlight)
	if err != nil {
		return nil, err
	}

	p, err := spireg.Open(cfg.Bus)
	if err != nil {
		logger.Errorf("could not open spi port %q: %v", cfg.Bus, err)
		return nil, err
	}
	conn, err := p.Connect(spiFreq, spi.Mode0, 8)
	if err != nil {
		_ = p.Close()
		return nil, err
	}

	d := newST7789(conn, dc, rst, bl, cfg.Rotated)
	if err := d.init(); err != nil {
		logger.Errorf("could not initialize st7789 screen: %v", err)
		_ = p.Close()
		return nil, err
	}

	return &lcd{st7789: d, port: p}, nil
}

func (l *lcd) Close() error {
	err := l.st7789.Close()
	if cerr := l.port.Close(); err == nil {
		err = cerr
	}
	return err
}

// pin looks up an optional pin, an empty name is no pin
func pin(name string) (gpio.PinOut, error) {
	if name == "" {
		return nil, nil
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("display: unknown gpio pin: %q", name)
	}
	return p, nil
}
