// Package gpio drives the two push buttons and the RGB LED.
//
// Buttons are wired between the pin and ground with the internal pull-up
// enabled, so a pressed button reads low.
package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/juju/loggo"
	"periph.io/x/periph/conn/gpio"
)

var logger = loggo.GetLogger("main.gpio")

// HoldDurr is how long a simulated button stays pressed after a key press.
// Terminal key repeat keeps re-arming it while a key is held down.
var HoldDurr = 150 * time.Millisecond

// Button reports whether a push button is currently held down.
type Button interface {
	Pressed() bool
}

// LED is the on-board RGB LED.
type LED interface {
	Off() error
}

// PinButton is an active-low button on a GPIO pin.
type PinButton struct {
	pin gpio.PinIO
}

// NewPinButton configures pin as a pulled-up input.
func NewPinButton(pin gpio.PinIO) (*PinButton, error) {
	if err := pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("failed to set %v as input: %v", pin, err)
	}
	return &PinButton{pin: pin}, nil
}

func (b *PinButton) Pressed() bool {
	return b.pin.Read() == gpio.Low
}

func (b *PinButton) String() string {
	return "button on " + b.pin.Name()
}

// RGBLED is a common-cathode RGB LED on three output pins.
type RGBLED struct {
	r, g, b gpio.PinOut
}

func NewRGBLED(r, g, b gpio.PinOut) *RGBLED {
	return &RGBLED{r: r, g: g, b: b}
}

// Off switches all three channels off.
func (l *RGBLED) Off() error {
	for _, p := range []gpio.PinOut{l.r, l.g, l.b} {
		if err := p.Out(gpio.Low); err != nil {
			return fmt.Errorf("failed to switch %v off: %v", p, err)
		}
	}
	return nil
}

// KeyButton simulates a button with a keyboard key.
type KeyButton struct {
	key rune

	mu    sync.Mutex
	until time.Time
}

func (b *KeyButton) Pressed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return time.Now().Before(b.until)
}

func (b *KeyButton) press(now time.Time) {
	b.mu.Lock()
	b.until = now.Add(HoldDurr)
	b.mu.Unlock()
}

// KeyButtons returns two buttons fed by the runes read from keys.
// The channel is consumed until it is closed.
func KeyButtons(keys <-chan rune, keyA, keyB rune) (a, b *KeyButton) {
	a = &KeyButton{key: keyA}
	b = &KeyButton{key: keyB}

	go func() {
		for r := range keys {
			switch r {
			case a.key:
				a.press(time.Now())
			case b.key:
				b.press(time.Now())
			default:
				logger.Tracef("ignoring key %q", r)
			}
		}
	}()

	return a, b
}

type nopLED struct{}

func (nopLED) Off() error { return nil }
