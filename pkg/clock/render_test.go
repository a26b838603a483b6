package clock

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/go-cmp/cmp"

	"github.com/codeGROOVE-dev/tzclock/pkg/resolver"
)

// 2024-03-15 14:05:09 UTC, a Friday.
var instant = time.Date(2024, time.March, 15, 14, 5, 9, 0, time.UTC)

func TestSolarLabel(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{0, Nightfall},
		{5, Nightfall},
		{6, Daylight},
		{12, Daylight},
		{17, Daylight},
		{18, Nightfall},
		{23, Nightfall},
	}
	for _, tt := range tests {
		if got := SolarLabel(tt.hour); got != tt.want {
			t.Errorf("SolarLabel(%d) = %q, want %q", tt.hour, got, tt.want)
		}
	}
}

func TestRenderUnresolved(t *testing.T) {
	r := NewRenderer(time.UTC, nil)
	got := r.Render(instant, resolver.Snapshot{Status: resolver.Unresolved}, false)

	want := Frame{
		Instant:     instant,
		LocalClock:  "02:05:09 PM",
		LocalDate:   "Friday, March 15",
		LocalZone:   "UTC",
		LocalOffset: "UTC+0",
		TargetClock: NoTargetText,
		Target:      NoTarget,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Render() mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderResolving(t *testing.T) {
	r := NewRenderer(time.UTC, nil)

	got := r.Render(instant, resolver.Snapshot{Status: resolver.Resolving}, false)
	if got.Target != Loading || got.TargetClock != LoadingText || got.TargetLabel != DetectingText {
		t.Errorf("Render(resolving) = %+v", got)
	}
	if got.TargetZone != "" || got.Solar != "" || got.TargetDate != "" {
		t.Errorf("loading frame leaked target fields: %+v", got)
	}

	got = r.Render(instant, resolver.Snapshot{Status: resolver.Resolving, Label: "Lisbon"}, false)
	if got.TargetLabel != "Lisbon" {
		t.Errorf("TargetLabel = %q, want supplied label", got.TargetLabel)
	}
}

func TestRenderResolved(t *testing.T) {
	r := NewRenderer(time.UTC, nil)
	snap := resolver.Snapshot{Seq: 3, Status: resolver.Resolved, Zone: "Asia/Kolkata", Label: "Mumbai"}

	got := r.Render(instant, snap, false)
	want := Frame{
		Instant:      instant,
		LocalClock:   "02:05:09 PM",
		LocalDate:    "Friday, March 15",
		LocalZone:    "UTC",
		LocalOffset:  "UTC+0",
		TargetClock:  "07:35:09 PM",
		TargetDate:   "Friday, March 15",
		TargetZone:   "Asia/Kolkata",
		TargetOffset: "UTC+5:30",
		TargetLabel:  "Mumbai",
		Solar:        Nightfall,
		Target:       Displaying,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Render() mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderFallbackZone(t *testing.T) {
	r := NewRenderer(time.UTC, nil)
	snap := resolver.Snapshot{Status: resolver.Resolved, Zone: "Etc/GMT+6", Label: "Remote Point", Fallback: true}

	got := r.Render(instant, snap, true)
	if got.TargetClock != "08:05:09" {
		t.Errorf("TargetClock = %q, want 08:05:09", got.TargetClock)
	}
	if got.TargetOffset != "UTC-6" || got.Solar != Daylight || !got.Fallback {
		t.Errorf("Render() = %+v", got)
	}
}

func TestRenderDateRollsOver(t *testing.T) {
	r := NewRenderer(time.UTC, nil)
	got := r.Render(instant, resolver.Snapshot{Status: resolver.Resolved, Zone: "Pacific/Kiritimati"}, true)
	// UTC+14: 14:05 UTC is 04:05 the next day.
	if got.TargetClock != "04:05:09" || got.TargetDate != "Saturday, March 16" {
		t.Errorf("Render() target = %q %q", got.TargetClock, got.TargetDate)
	}
	if got.Solar != Nightfall {
		t.Errorf("Solar = %q", got.Solar)
	}
}

func TestRenderZoneError(t *testing.T) {
	r := NewRenderer(time.UTC, nil)
	for _, zone := range []string{"Mars/Olympus_Mons", "", "../../etc/passwd"} {
		snap := resolver.Snapshot{Status: resolver.Resolved, Zone: zone, Label: "Nowhere"}
		for range 2 { // second pass is served from the location cache
			got := r.Render(instant, snap, false)
			if got.Target != Error || got.TargetClock != ZoneErrorText {
				t.Errorf("Render(%q) = %+v, want zone error", zone, got)
			}
			if got.LocalClock != "02:05:09 PM" {
				t.Errorf("local clock affected by bad zone: %q", got.LocalClock)
			}
			if got.Solar != "" {
				t.Errorf("Solar = %q on error", got.Solar)
			}
		}
	}

	if _, err := r.load("Mars/Olympus_Mons"); !errors.Is(err, ErrZoneFormat) {
		t.Errorf("load() error = %v, want ErrZoneFormat", err)
	}
}

func TestRenderFailed(t *testing.T) {
	r := NewRenderer(time.UTC, nil)
	got := r.Render(instant, resolver.Snapshot{Status: resolver.Failed, Cause: errors.New("x")}, false)
	if got.Target != Error || got.TargetClock != DataErrorText {
		t.Errorf("Render(failed) = %+v", got)
	}
}

func TestRenderDeterministic(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatal(err)
	}
	r := NewRenderer(berlin, nil)
	snap := resolver.Snapshot{Status: resolver.Resolved, Zone: "America/Sao_Paulo", Label: "São Paulo"}

	for _, hour24 := range []bool{false, true} {
		first := r.Render(instant, snap, hour24)
		second := r.Render(instant, snap, hour24)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("renders differ for hour24=%v (-first +second):\n%s", hour24, diff)
		}
	}
}

func TestHourModeOnlyChangesClockStrings(t *testing.T) {
	r := NewRenderer(time.UTC, nil)
	snap := resolver.Snapshot{Status: resolver.Resolved, Zone: "Asia/Tokyo", Label: "Tokyo"}

	twelve := r.Render(instant, snap, false)
	twentyFour := r.Render(instant, snap, true)

	if twelve.TargetClock != "11:05:09 PM" || twentyFour.TargetClock != "23:05:09" {
		t.Errorf("target clocks = %q / %q", twelve.TargetClock, twentyFour.TargetClock)
	}
	if twelve.LocalClock != "02:05:09 PM" || twentyFour.LocalClock != "14:05:09" {
		t.Errorf("local clocks = %q / %q", twelve.LocalClock, twentyFour.LocalClock)
	}

	// Everything apart from the clock strings and the mode flag is identical.
	twelve.TargetClock, twelve.LocalClock, twelve.Hour24 = "", "", false
	twentyFour.TargetClock, twentyFour.LocalClock, twentyFour.Hour24 = "", "", false
	if diff := cmp.Diff(twelve, twentyFour); diff != "" {
		t.Errorf("hour mode changed non-clock fields (-12h +24h):\n%s", diff)
	}
}

func TestFormatClockMidnight(t *testing.T) {
	midnight := time.Date(2024, 1, 1, 0, 0, 5, 0, time.UTC)
	if got := FormatClock(midnight, false); got != "12:00:05 AM" {
		t.Errorf("12h midnight = %q", got)
	}
	if got := FormatClock(midnight, true); got != "00:00:05" {
		t.Errorf("24h midnight = %q", got)
	}
}

func TestRenderStateText(t *testing.T) {
	b, err := Displaying.MarshalText()
	if err != nil || string(b) != "displaying" {
		t.Errorf("MarshalText() = %q, %v", b, err)
	}
	if RenderState(42).String() != "unknown" {
		t.Error("unknown state not labelled")
	}
}
