package display

import "image/color"

// Palette holds the pens used by the views.
type Palette struct {
	Background   color.RGBA
	Header       color.RGBA
	Type         color.RGBA
	Callsign     color.RGBA
	Registration color.RGBA
	Altitude     color.RGBA
	Direction    color.RGBA
	Distance     color.RGBA
	Placeholder  color.RGBA
}

var (
	Black   = color.RGBA{0, 0, 0, 255}
	White   = color.RGBA{255, 255, 255, 255}
	Green   = color.RGBA{0, 255, 0, 255}
	Yellow  = color.RGBA{255, 255, 0, 255}
	Cyan    = color.RGBA{0, 255, 255, 255}
	Magenta = color.RGBA{255, 0, 255, 255}
	Orange  = color.RGBA{255, 165, 0, 255}
	Red     = color.RGBA{255, 0, 0, 255}
)

func DefaultPalette() Palette {
	return Palette{
		Background:   Black,
		Header:       Green,
		Type:         White,
		Callsign:     Yellow,
		Registration: Magenta,
		Altitude:     Cyan,
		Direction:    Orange,
		Distance:     Green,
		Placeholder:  Red,
	}
}
