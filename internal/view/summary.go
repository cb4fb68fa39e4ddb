package view

import (
	"context"
	"image/color"
	"strconv"
	"time"

	"code.sztanpet.net/zvpsz/planes-around/internal/display"
	"code.sztanpet.net/zvpsz/planes-around/internal/planes"
)

// Canvas is the drawing surface, see display.Screen.
type Canvas interface {
	SetPen(c color.RGBA)
	Clear()
	Text(text string, x, y, scale int)
	Update() error
}

// Feed fetches the aircraft around the device ordered by distance.
type Feed interface {
	Planes(ctx context.Context) ([]planes.Record, error)
}

// Recorder stores the records of a poll cycle, see storage.Storage.
type Recorder interface {
	Record(recs []planes.Record)
}

// Summary layout, pixel positions on the canvas
const (
	rowTop     = 18
	rowHeight  = 16
	maxRows    = (display.Height - rowTop) / rowHeight
	colType    = 0
	colCall    = 40
	colAlt     = 112
	colDir     = 144
	colDist    = 184
	maxTypeLen = 4
	maxCallLen = 8
)

// Summary polls the feed and lists the nearest aircraft, one per row.
type Summary struct {
	Feed     Feed
	List     *planes.List
	Screen   Canvas
	Palette  display.Palette
	Radius   float64 // nautical miles
	Interval time.Duration
	// Recorder is optional
	Recorder Recorder
}

// Run polls, draws and sleeps until ctx is cancelled.
func (v *Summary) Run(ctx context.Context) error {
	for {
		recs, err := v.Feed.Planes(ctx)
		if err != nil {
			return err
		}

		v.List.Set(recs)
		if v.Recorder != nil {
			v.Recorder.Record(recs)
		}

		if err := v.Draw(recs); err != nil {
			logger.Errorf("drawing summary failed: %v", err)
		}

		if err := sleep(ctx, v.Interval); err != nil {
			return err
		}
	}
}

// Draw renders the header and as many rows as fit.
func (v *Summary) Draw(recs []planes.Record) error {
	p := v.Palette
	v.Screen.SetPen(p.Background)
	v.Screen.Clear()

	v.Screen.SetPen(p.Header)
	v.Screen.Text(Km(v.Radius)+"km radius: "+strconv.Itoa(len(recs))+" planes", 0, 0, 1)

	for i, r := range recs {
		if i == maxRows {
			break
		}
		y := rowTop + i*rowHeight

		v.Screen.SetPen(p.Type)
		v.Screen.Text(clip(r.Type, maxTypeLen), colType, y, 1)
		v.Screen.SetPen(p.Callsign)
		v.Screen.Text(clip(r.Callsign, maxCallLen), colCall, y, 1)
		v.Screen.SetPen(p.Altitude)
		v.Screen.Text(FlightLevel(r), colAlt, y, 1)
		v.Screen.SetPen(p.Direction)
		v.Screen.Text(Heading(r.Direction), colDir, y, 1)
		v.Screen.SetPen(p.Distance)
		v.Screen.Text(Km(r.Distance), colDist, y, 1)
	}

	return v.Screen.Update()
}

// clip cuts s to n runes so columns do not overlap
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
