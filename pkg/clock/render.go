// Package clock renders the local and target wall clocks from a resolution
// snapshot. Every field of a Frame is derived from one instant.
package clock

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maypok86/otter/v2"

	"github.com/codeGROOVE-dev/tzclock/pkg/resolver"
	"github.com/codeGROOVE-dev/tzclock/pkg/tzconvert"
)

// Placeholders shown instead of a target clock.
const (
	NoTargetText  = "--:--:--"
	LoadingText   = "SYNCING..."
	DataErrorText = "DATA ERROR"
	ZoneErrorText = "ZONE ERROR"
	DetectingText = "Detecting Place..."
)

// Day/night labels.
const (
	Daylight  = "DAYLIGHT"
	Nightfall = "NIGHTFALL"
)

const (
	layout12 = "03:04:05 PM"
	layout24 = "15:04:05"
	// dateLayout matches "Monday, January 2".
	dateLayout = "Monday, January 2"
)

// ErrZoneFormat is returned when a stored zone identifier cannot be loaded.
var ErrZoneFormat = errors.New("cannot format zone")

// RenderState is what the target card is showing.
type RenderState int

// Target render states.
const (
	NoTarget RenderState = iota
	Loading
	Displaying
	Error
)

func (s RenderState) String() string {
	switch s {
	case NoTarget:
		return "no_target"
	case Loading:
		return "loading"
	case Displaying:
		return "displaying"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s RenderState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Frame is one rendered set of display strings.
type Frame struct {
	Instant      time.Time   `json:"instant"`
	LocalClock   string      `json:"local_clock"`
	LocalDate    string      `json:"local_date"`
	LocalZone    string      `json:"local_zone"`
	LocalOffset  string      `json:"local_offset"`
	TargetClock  string      `json:"target_clock"`
	TargetDate   string      `json:"target_date,omitempty"`
	TargetZone   string      `json:"target_zone,omitempty"`
	TargetOffset string      `json:"target_offset,omitempty"`
	TargetLabel  string      `json:"target_label,omitempty"`
	Solar        string      `json:"solar,omitempty"`
	Target       RenderState `json:"target"`
	Fallback     bool        `json:"fallback,omitempty"`
	Hour24       bool        `json:"hour24"`
}

// SolarLabel returns the coarse day/night label for a local hour: hours in
// [6,18) are daylight. This is a fixed boundary, not a sunrise calculation.
func SolarLabel(hour int) string {
	if hour >= 6 && hour < 18 {
		return Daylight
	}
	return Nightfall
}

// FormatClock formats t as a 12 or 24 hour wall clock.
func FormatClock(t time.Time, hour24 bool) string {
	if hour24 {
		return t.Format(layout24)
	}
	return t.Format(layout12)
}

type location struct {
	loc *time.Location
	err error
}

// Renderer formats frames. It is safe for concurrent use.
type Renderer struct {
	local  *time.Location
	zones  *otter.Cache[string, location]
	logger *slog.Logger
}

// NewRenderer returns a Renderer for the given local location, which is
// fixed for the Renderer's lifetime. A nil local uses time.Local.
func NewRenderer(local *time.Location, logger *slog.Logger) *Renderer {
	if local == nil {
		local = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		local:  local,
		zones:  otter.Must(&otter.Options[string, location]{MaximumSize: 1024}),
		logger: logger,
	}
}

// Local returns the renderer's local location.
func (r *Renderer) Local() *time.Location { return r.local }

func (r *Renderer) load(zone string) (*time.Location, error) {
	if l, ok := r.zones.GetIfPresent(zone); ok {
		return l.loc, l.err
	}
	loc, err := time.LoadLocation(zone)
	if err == nil && zone == "" {
		// LoadLocation("") is UTC; an empty stored zone is corrupt.
		loc, err = nil, errors.New("empty zone identifier")
	}
	if err != nil {
		err = fmt.Errorf("%w %q: %w", ErrZoneFormat, zone, err)
	}
	r.zones.Set(zone, location{loc: loc, err: err})
	return loc, err
}

// Render formats a frame for now. It is deterministic in its arguments.
func (r *Renderer) Render(now time.Time, snap resolver.Snapshot, hour24 bool) Frame {
	lt := now.In(r.local)
	f := Frame{
		Instant:     now,
		LocalClock:  FormatClock(lt, hour24),
		LocalDate:   lt.Format(dateLayout),
		LocalZone:   zoneName(r.local, lt),
		LocalOffset: tzconvert.OffsetLabel(lt),
		Hour24:      hour24,
	}

	switch snap.Status {
	case resolver.Resolving:
		f.Target = Loading
		f.TargetClock = LoadingText
		f.TargetLabel = snap.Label
		if f.TargetLabel == "" {
			f.TargetLabel = DetectingText
		}
	case resolver.Failed:
		f.Target = Error
		f.TargetClock = DataErrorText
	case resolver.Resolved:
		f.TargetZone = snap.Zone
		f.TargetLabel = snap.Label
		f.Fallback = snap.Fallback
		loc, err := r.load(snap.Zone)
		if err != nil {
			r.logger.Debug("target zone format failed", "zone", snap.Zone, "error", err)
			f.Target = Error
			f.TargetClock = ZoneErrorText
			return f
		}
		tt := now.In(loc)
		f.Target = Displaying
		f.TargetClock = FormatClock(tt, hour24)
		f.TargetDate = tt.Format(dateLayout)
		f.TargetOffset = tzconvert.OffsetLabel(tt)
		f.Solar = SolarLabel(tt.Hour())
	default:
		f.Target = NoTarget
		f.TargetClock = NoTargetText
	}
	return f
}

func zoneName(loc *time.Location, t time.Time) string {
	if name := loc.String(); name != "Local" && name != "" {
		return name
	}
	abbr, _ := t.Zone()
	return abbr
}
