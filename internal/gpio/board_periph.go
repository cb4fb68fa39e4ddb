//go:build !amd64

package gpio

import (
	"fmt"

	"code.sztanpet.net/zvpsz/planes-around/internal/config"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

// Open sets up the buttons and the LED on the pins named in cfg.
// keys is only used by the simulated board.
func Open(cfg config.GPIO, keys <-chan rune) (*Board, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}

	pins := map[string]gpio.PinIO{}
	for _, name := range []string{cfg.ButtonA, cfg.ButtonB, cfg.LEDRed, cfg.LEDGreen, cfg.LEDBlue} {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("unknown gpio pin: %q", name)
		}
		pins[name] = p
	}

	a, err := NewPinButton(pins[cfg.ButtonA])
	if err != nil {
		return nil, err
	}
	b, err := NewPinButton(pins[cfg.ButtonB])
	if err != nil {
		return nil, err
	}
	logger.Debugf("buttons: %v, %v", a, b)

	return &Board{
		A:   a,
		B:   b,
		LED: NewRGBLED(pins[cfg.LEDRed], pins[cfg.LEDGreen], pins[cfg.LEDBlue]),
	}, nil
}
