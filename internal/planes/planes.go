// Package planes turns raw aircraft entries from the ADS-B API into
// display records and holds the list shared between the poller and the views.
package planes

import (
	"math"
	"sort"
	"strings"
	"sync"
)

// NMToKm converts nautical miles to kilometres.
const NMToKm = 1.852

// Unknown is the placeholder for missing text fields.
const Unknown = "unk"

// Raw is one entry of the "ac" array as returned by the point endpoint.
// Every field is optional.
type Raw struct {
	Type         *string  `json:"t"`
	Registration *string  `json:"r"`
	Flight       *string  `json:"flight"`
	Distance     *float64 `json:"dst"`
	Direction    *float64 `json:"dir"`

	// AltBaro is either a number of feet or the string "ground"
	AltBaro interface{} `json:"alt_baro"`
}

// Record is a normalized aircraft, ready to be drawn.
type Record struct {
	Type         string
	Callsign     string
	Registration string

	// Altitude in feet, nil when unknown
	Altitude *float64
	OnGround bool

	// Direction in degrees, nil when unknown
	Direction *float64

	// Distance in nautical miles, +Inf when unknown so that
	// incomplete records sort last
	Distance float64
}

// HasDistance reports whether the API supplied a distance for the record.
func (r Record) HasDistance() bool {
	return !math.IsInf(r.Distance, 1)
}

// FromRaw maps a raw API entry to a Record, substituting defaults for
// missing fields.
func FromRaw(raw Raw) Record {
	rec := Record{
		Type:         text(raw.Type),
		Callsign:     text(raw.Flight),
		Registration: text(raw.Registration),
		Distance:     math.Inf(1),
	}

	if raw.Distance != nil {
		rec.Distance = *raw.Distance
	}
	if raw.Direction != nil {
		d := *raw.Direction
		rec.Direction = &d
	}

	switch v := raw.AltBaro.(type) {
	case float64:
		rec.Altitude = &v
	case string:
		if v == "ground" {
			zero := 0.0
			rec.Altitude = &zero
			rec.OnGround = true
		}
	}

	return rec
}

// text trims the space padding the API uses for callsigns
func text(s *string) string {
	if s == nil {
		return Unknown
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return Unknown
	}
	return t
}

// Normalize maps raw entries to records ordered by ascending distance.
// Records without a distance keep their relative order at the end.
func Normalize(raw []Raw) []Record {
	recs := make([]Record, 0, len(raw))
	for _, r := range raw {
		recs = append(recs, FromRaw(r))
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Distance < recs[j].Distance
	})
	return recs
}

// List is the record list written by the poller and read by the active view.
type List struct {
	mu   sync.RWMutex
	recs []Record
}

// Set replaces the contents of the list.
func (l *List) Set(recs []Record) {
	cp := make([]Record, len(recs))
	copy(cp, recs)

	l.mu.Lock()
	l.recs = cp
	l.mu.Unlock()
}

// Snapshot returns a copy of the current records.
func (l *List) Snapshot() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	cp := make([]Record, len(l.recs))
	copy(cp, l.recs)
	return cp
}

// Nearest returns the first record, if any.
func (l *List) Nearest() (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.recs) == 0 {
		return Record{}, false
	}
	return l.recs[0], true
}

func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.recs)
}
