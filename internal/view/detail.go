package view

import (
	"context"
	"image/color"

	"code.sztanpet.net/zvpsz/planes-around/internal/display"
	"code.sztanpet.net/zvpsz/planes-around/internal/planes"
)

const (
	detailTop  = 4
	lineHeight = 22
)

// Detail shows every field of the nearest aircraft of the last poll.
// It draws once per activation and returns.
type Detail struct {
	List    *planes.List
	Screen  Canvas
	Palette display.Palette
}

func (v *Detail) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r, ok := v.List.Nearest()
	if err := v.Draw(r, ok); err != nil {
		logger.Errorf("drawing detail failed: %v", err)
	}
	return nil
}

// Draw renders r, or the placeholder when there is no record.
func (v *Detail) Draw(r planes.Record, ok bool) error {
	p := v.Palette
	v.Screen.SetPen(p.Background)
	v.Screen.Clear()

	if !ok {
		v.Screen.SetPen(p.Placeholder)
		v.Screen.Text("No planes!", 40, 52, 2)
		return v.Screen.Update()
	}

	dist := KmTenths(r.Distance)
	if r.HasDistance() {
		dist += "km"
	}

	lines := []struct {
		text string
		pen  color.RGBA
	}{
		{r.Type, p.Type},
		{r.Callsign, p.Callsign},
		{r.Registration, p.Registration},
		{Feet(r), p.Altitude},
		{Heading(r.Direction), p.Direction},
		{dist, p.Distance},
	}
	for i, l := range lines {
		v.Screen.SetPen(l.pen)
		v.Screen.Text(l.text, 8, detailTop+i*lineHeight, 1)
	}

	return v.Screen.Update()
}
