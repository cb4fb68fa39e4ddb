package main

import (
	"fmt"
	"math"
	"time"

	"code.sztanpet.net/zvpsz/planes-around/internal/config"
	"code.sztanpet.net/zvpsz/planes-around/internal/display"
	"code.sztanpet.net/zvpsz/planes-around/internal/planes"
	"code.sztanpet.net/zvpsz/planes-around/internal/view"
)

func fp(f float64) *float64 { return &f }

func main() {
	s, err := display.Open(config.Default().Display)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	defer s.Close()
	defer s.Blank()

	recs := []planes.Record{
		{Type: "A320", Callsign: "RYR1AB", Registration: "EI-ABC", Altitude: fp(3500), Direction: fp(187.4), Distance: 5},
		{Type: "B738", Callsign: "WZZ2337", Registration: "HA-LXA", Altitude: fp(36000), Direction: fp(92), Distance: 12.5},
		{Type: "C172", Callsign: "HAFOO", Registration: "HA-FOO", OnGround: true, Altitude: fp(0), Distance: 21},
		{Type: planes.Unknown, Callsign: planes.Unknown, Registration: planes.Unknown, Distance: math.Inf(1)},
	}
	list := &planes.List{}
	list.Set(recs)
	palette := display.DefaultPalette()

	summary := &view.Summary{List: list, Screen: s, Palette: palette, Radius: 25}
	detail := &view.Detail{List: list, Screen: s, Palette: palette}

	steps := []struct {
		name string
		draw func() error
	}{
		{"summary", func() error { return summary.Draw(recs) }},
		{"summary, empty", func() error { return summary.Draw(nil) }},
		{"detail", func() error { return detail.Draw(recs[0], true) }},
		{"detail, no planes", func() error { return detail.Draw(planes.Record{}, false) }},
	}
	for _, st := range steps {
		if err := st.draw(); err != nil {
			fmt.Printf("%v: error: %v\n", st.name, err)
			return
		}
		time.Sleep(5 * time.Second)
	}
}
