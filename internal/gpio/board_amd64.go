//go:build amd64

package gpio

import (
	"errors"

	"code.sztanpet.net/zvpsz/planes-around/internal/config"
)

// Open returns a board simulated with the keyboard, "a" and "b" are the buttons.
func Open(cfg config.GPIO, keys <-chan rune) (*Board, error) {
	if keys == nil {
		return nil, errors.New("no keyboard to simulate the buttons with")
	}

	a, b := KeyButtons(keys, 'a', 'b')
	return &Board{A: a, B: b, LED: nopLED{}}, nil
}
