package display

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/codeGROOVE-dev/tzclock/pkg/clock"
)

func init() {
	color.NoColor = true
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name    string
		frame   clock.Frame
		want    []string
		wantNot []string
	}{
		{
			name: "displaying",
			frame: clock.Frame{
				LocalClock: "02:05:09 PM", LocalDate: "Friday, March 15", LocalZone: "UTC", LocalOffset: "UTC+0",
				Target: clock.Displaying, TargetClock: "07:35:09 PM", TargetDate: "Friday, March 15",
				TargetZone: "Asia/Kolkata", TargetOffset: "UTC+5:30", TargetLabel: "Mumbai", Solar: clock.Nightfall,
			},
			want:    []string{"02:05:09 PM", "Mumbai", "07:35:09 PM", "Asia/Kolkata UTC+5:30", "☾ NIGHTFALL"},
			wantNot: []string{"approx."},
		},
		{
			name: "fallback",
			frame: clock.Frame{
				Target: clock.Displaying, TargetClock: "08:05:09", TargetZone: "Etc/GMT+6",
				TargetLabel: "Remote Point", Solar: clock.Daylight, Fallback: true,
			},
			want: []string{"Etc/GMT+6 (approx.)", "☀ DAYLIGHT", "Remote Po…"},
		},
		{
			name:    "loading",
			frame:   clock.Frame{Target: clock.Loading, TargetClock: clock.LoadingText, TargetLabel: "Oslo"},
			want:    []string{"Oslo", "SYNCING..."},
			wantNot: []string{"DAYLIGHT", "NIGHTFALL"},
		},
		{
			name:  "zone error",
			frame: clock.Frame{LocalClock: "14:05:09", Target: clock.Error, TargetClock: clock.ZoneErrorText, TargetZone: "Bad/Zone"},
			want:  []string{"14:05:09", "ZONE ERROR", "Bad/Zone"},
		},
		{
			name:    "no target",
			frame:   clock.Frame{Target: clock.NoTarget, TargetClock: clock.NoTargetText},
			want:    []string{"--:--:--"},
			wantNot: []string{"DAYLIGHT", "NIGHTFALL"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Format(tt.frame)
			for _, s := range tt.want {
				if !strings.Contains(got, s) {
					t.Errorf("Format() missing %q in:\n%s", s, got)
				}
			}
			for _, s := range tt.wantNot {
				if strings.Contains(got, s) {
					t.Errorf("Format() unexpectedly contains %q in:\n%s", s, got)
				}
			}
		})
	}
}

func TestTerminalRedraw(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, true)
	if err := term.Emit(clock.Frame{TargetClock: clock.NoTargetText}); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), clearScreen) {
		t.Error("redraw terminal did not clear the screen")
	}

	buf.Reset()
	term = NewTerminal(&buf, false)
	if err := term.Emit(clock.Frame{TargetClock: clock.NoTargetText}); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), clearScreen) {
		t.Error("append-only terminal cleared the screen")
	}
}
