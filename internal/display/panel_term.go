//go:build amd64

package display

import (
	"image/color"
	"os"

	"code.sztanpet.net/zvpsz/planes-around/internal/config"
	"github.com/gdamore/tcell/v2"
)

// footer is printed below the simulated screen
const footer = "[a] switch view  [b] reserved  [ctrl+c] quit"

// terminal simulates the device in a terminal on development machines.
// Text spans are drawn on a grid of CellWidth x CellHeight pixel cells,
// key presses are handed to the simulated buttons through Keys.
type terminal struct {
	screen tcell.Screen
	keys   chan rune
}

func openPanel(cfg config.Display) (Panel, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := s.Init(); err != nil {
		return nil, err
	}

	t := &terminal{
		screen: s,
		keys:   make(chan rune, 16),
	}
	go t.pollEvents()

	return t, nil
}

// Keys delivers the runes typed into the terminal.
func (t *terminal) Keys() <-chan rune {
	return t.keys
}

func (t *terminal) pollEvents() {
	defer close(t.keys)

	for {
		ev := t.screen.PollEvent()
		switch ev := ev.(type) {
		case nil:
			// screen finalized
			return
		case *tcell.EventResize:
			t.screen.Sync()
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyCtrlC {
				interrupt()
				continue
			}
			if ev.Key() != tcell.KeyRune {
				continue
			}
			select {
			case t.keys <- ev.Rune():
			default:
				logger.Tracef("key buffer full, dropping %q", ev.Rune())
			}
		}
	}
}

func (t *terminal) Show(f *Frame) error {
	bg := rgb(f.Background)
	base := tcell.StyleDefault.Background(bg)

	cols, rows := Width/CellWidth, Height/CellHeight
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			t.screen.SetContent(x, y, ' ', nil, base)
		}
	}

	for _, sp := range f.Spans {
		style := base.Foreground(rgb(sp.Pen))
		x, y := sp.X/CellWidth, sp.Y/CellHeight
		for _, r := range sp.Text {
			if x >= cols {
				break
			}
			t.screen.SetContent(x, y, r, nil, style)
			x++
		}
	}

	for i, r := range []rune(footer) {
		t.screen.SetContent(i, rows+1, r, nil, tcell.StyleDefault)
	}

	t.screen.Show()
	return nil
}

func (t *terminal) Close() error {
	t.screen.Fini()
	return nil
}

func rgb(c color.RGBA) tcell.Color {
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}

// interrupt delivers ctrl+c as a signal, the terminal is in raw mode
func interrupt() {
	p, err := os.FindProcess(os.Getpid())
	if err != nil {
		return
	}
	if err := p.Signal(os.Interrupt); err != nil {
		logger.Warningf("could not interrupt self: %v", err)
	}
}
