// Package display is a small pen/text/update drawing API in front of the
// physical screen. Drawing happens on an RGBA canvas, Update hands the
// finished frame to the Panel.
package display

import (
	"image"
	"image/color"
	"image/draw"
	"sync"

	"code.sztanpet.net/zvpsz/planes-around/internal/config"
	"github.com/golang/freetype/truetype"
	"github.com/juju/loggo"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/inconsolata"
	"golang.org/x/image/math/fixed"
)

var logger = loggo.GetLogger("main.display")

// Logical canvas size, panels with a different resolution scale the frame.
const (
	Width  = 240
	Height = 135
)

// Cell size of the scale 1 font, used by text based panels.
const (
	CellWidth  = 8
	CellHeight = 16
)

var baseFont = inconsolata.Regular8x16

// Span is a piece of text drawn with a pen at a canvas position.
type Span struct {
	X, Y  int
	Scale int
	Text  string
	Pen   color.RGBA
}

// Frame is what gets handed to a Panel on Update.
type Frame struct {
	Image *image.RGBA
	Spans []Span
	// Background is the pen of the last Clear
	Background color.RGBA
}

// Panel is the hardware (or simulated) display.
type Panel interface {
	Show(f *Frame) error
	Close() error
}

type Screen struct {
	mu    sync.Mutex
	panel Panel
	img   *image.RGBA
	pen   color.RGBA
	bg    color.RGBA
	spans []Span
	faces map[int]font.Face
}

// NewScreen wraps a panel.
func NewScreen(p Panel) *Screen {
	return &Screen{
		panel: p,
		img:   image.NewRGBA(image.Rect(0, 0, Width, Height)),
		pen:   color.RGBA{A: 0xff},
		bg:    color.RGBA{A: 0xff},
		faces: map[int]font.Face{1: baseFont},
	}
}

// Open initializes the physical panel for the current platform.
func Open(cfg config.Display) (*Screen, error) {
	p, err := openPanel(cfg)
	if err != nil {
		return nil, err
	}
	return NewScreen(p), nil
}

// Panel returns the underlying panel.
func (s *Screen) Panel() Panel {
	return s.panel
}

// SetPen selects the colour of subsequent Clear and Text calls.
func (s *Screen) SetPen(c color.RGBA) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pen = c
}

// Clear fills the whole canvas with the current pen.
func (s *Screen) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	draw.Draw(s.img, s.img.Bounds(), image.NewUniform(s.pen), image.Point{}, draw.Src)
	s.bg = s.pen
	s.spans = s.spans[:0]
}

// Text draws text with its top-left corner at x, y.
// Scale 1 is an 8x16 pixel cell, larger scales grow proportionally.
func (s *Screen) Text(text string, x, y, scale int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if scale < 1 {
		scale = 1
	}
	face := s.face(scale)

	d := font.Drawer{
		Dst:  s.img,
		Src:  image.NewUniform(s.pen),
		Face: face,
		Dot:  fixed.P(x, y+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)

	s.spans = append(s.spans, Span{X: x, Y: y, Scale: scale, Text: text, Pen: s.pen})
}

// Update pushes the canvas to the panel.
func (s *Screen) Update() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	spans := make([]Span, len(s.spans))
	copy(spans, s.spans)
	return s.panel.Show(&Frame{
		Image:      s.img,
		Spans:      spans,
		Background: s.bg,
	})
}

// Blank clears the screen to black and shows it.
func (s *Screen) Blank() error {
	s.SetPen(color.RGBA{A: 0xff})
	s.Clear()
	return s.Update()
}

func (s *Screen) Close() error {
	return s.panel.Close()
}

var (
	monoOnce sync.Once
	monoFont *truetype.Font
)

// face returns the font face for scale, must be called with mu held
func (s *Screen) face(scale int) font.Face {
	if f, ok := s.faces[scale]; ok {
		return f
	}

	monoOnce.Do(func() {
		f, err := truetype.Parse(gomono.TTF)
		if err != nil {
			logger.Errorf("parsing go mono font failed, falling back to bitmap font: %v", err)
			return
		}
		monoFont = f
	})
	if monoFont == nil {
		return baseFont
	}

	f := truetype.NewFace(monoFont, &truetype.Options{
		Size:    float64(CellHeight * scale * 3 / 4),
		DPI:     96,
		Hinting: font.HintingFull,
	})
	s.faces[scale] = f
	return f
}
