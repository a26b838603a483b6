// Package tzconvert converts between longitudes, UTC offsets and fixed-offset
// zone names.
//
// Fixed-offset names follow the POSIX "Etc/GMT" convention where the sign is
// inverted relative to the offset: UTC+5 is "Etc/GMT-5" and UTC-6 is
// "Etc/GMT+6".
package tzconvert

import (
	"fmt"
	"math"
	"time"
)

// degreesPerHour is the width of one nominal time zone at the equator.
const degreesPerHour = 15.0

// OffsetForLongitude returns the nominal whole-hour UTC offset for a longitude.
// Halves round away from zero, so 7.5° is UTC+1 and -7.5° is UTC-1.
//
// Example: OffsetForLongitude(82) returns 5 (82/15 = 5.47)
// Example: OffsetForLongitude(-90) returns -6
func OffsetForLongitude(longitude float64) int {
	if math.IsNaN(longitude) || math.IsInf(longitude, 0) {
		return 0
	}
	// math.Round rounds half away from zero.
	return int(math.Round(longitude / degreesPerHour))
}

// FixedZoneName returns the Etc/GMT zone name for a whole-hour UTC offset.
//
//   - FixedZoneName(5) returns "Etc/GMT-5"
//   - FixedZoneName(-6) returns "Etc/GMT+6"
//   - FixedZoneName(0) returns "Etc/GMT"
func FixedZoneName(utcOffset int) string {
	switch {
	case utcOffset > 0:
		return fmt.Sprintf("Etc/GMT-%d", utcOffset)
	case utcOffset < 0:
		return fmt.Sprintf("Etc/GMT+%d", -utcOffset)
	default:
		return "Etc/GMT"
	}
}

// FallbackZone approximates the zone for a longitude when no authoritative
// lookup is available. It is pure arithmetic and never fails.
func FallbackZone(longitude float64) string {
	return FixedZoneName(OffsetForLongitude(longitude))
}

// OffsetLabel formats the UTC offset in effect at t, e.g. "UTC+5:30", "UTC-4"
// or "UTC+0".
func OffsetLabel(t time.Time) string {
	_, offset := t.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	hours := offset / 3600
	minutes := (offset % 3600) / 60
	if minutes == 0 {
		return fmt.Sprintf("UTC%s%d", sign, hours)
	}
	return fmt.Sprintf("UTC%s%d:%02d", sign, hours, minutes)
}
