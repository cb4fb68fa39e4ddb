package view

import (
	"fmt"
	"math"
	"strconv"

	"code.sztanpet.net/zvpsz/planes-around/internal/planes"
)

// round is round half to even
func round(f float64) int {
	return int(math.RoundToEven(f))
}

// Km converts nautical miles to whole kilometres.
func Km(nm float64) string {
	if math.IsInf(nm, 0) || math.IsNaN(nm) {
		return planes.Unknown
	}
	return strconv.Itoa(round(nm * planes.NMToKm))
}

// KmTenths converts nautical miles to kilometres with one decimal.
func KmTenths(nm float64) string {
	if math.IsInf(nm, 0) || math.IsNaN(nm) {
		return planes.Unknown
	}
	return strconv.FormatFloat(nm*planes.NMToKm, 'f', 1, 64)
}

// FlightLevel is the altitude in hundreds of feet, 3500 -> "035".
func FlightLevel(r planes.Record) string {
	switch {
	case r.OnGround:
		return "GND"
	case r.Altitude == nil:
		return planes.Unknown
	}

	fl := int(math.Floor(*r.Altitude / 100))
	if fl < 0 {
		fl = 0
	}
	return fmt.Sprintf("%03d", fl)
}

// Feet is the altitude in feet.
func Feet(r planes.Record) string {
	switch {
	case r.OnGround:
		return "GND"
	case r.Altitude == nil:
		return planes.Unknown
	}
	return strconv.Itoa(round(*r.Altitude)) + "ft"
}

// Heading is a direction in whole degrees, 187.4 -> "187°".
func Heading(dir *float64) string {
	if dir == nil {
		return planes.Unknown
	}
	deg := round(*dir) % 360
	if deg < 0 {
		deg += 360
	}
	return strconv.Itoa(deg) + "°"
}
