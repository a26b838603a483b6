// Package display draws clock frames in a terminal.
package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/codeGROOVE-dev/tzclock/pkg/clock"
)

const (
	clearScreen = "\033[2J\033[H"
	ruleWidth   = 50
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	dimColor     = color.New(color.FgHiBlack)
	clockColor   = color.New(color.FgHiWhite, color.Bold)
	loadingColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
	dayColor     = color.New(color.FgYellow)
	nightColor   = color.New(color.FgBlue)
)

// Terminal writes frames to w. With Redraw set, each frame replaces the
// previous one on screen.
type Terminal struct {
	w      io.Writer
	mu     sync.Mutex
	Redraw bool
}

// NewTerminal returns a Terminal sink writing to w.
func NewTerminal(w io.Writer, redraw bool) *Terminal {
	return &Terminal{w: w, Redraw: redraw}
}

// Emit implements clock.Sink.
func (t *Terminal) Emit(f clock.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var b strings.Builder
	if t.Redraw {
		b.WriteString(clearScreen)
	}
	b.WriteString(Format(f))
	_, err := io.WriteString(t.w, b.String())
	return err
}

// Format renders f as a block of text.
func Format(f clock.Frame) string {
	var b strings.Builder
	rule := dimColor.Sprint(strings.Repeat("─", ruleWidth))

	fmt.Fprintf(&b, "%s\n%s\n", headerColor.Sprint("🌍 tzclock"), rule)
	fmt.Fprintf(&b, "  %-10s %s  %s\n", "Local", clockColor.Sprint(f.LocalClock),
		dimColor.Sprintf("%s  %s %s", f.LocalDate, f.LocalZone, f.LocalOffset))

	label := f.TargetLabel
	if label == "" {
		label = "Target"
	}
	switch f.Target {
	case clock.Displaying:
		zone := f.TargetZone
		if f.Fallback {
			zone += " (approx.)"
		}
		fmt.Fprintf(&b, "  %-10s %s  %s\n", truncate(label, 10), clockColor.Sprint(f.TargetClock),
			dimColor.Sprintf("%s  %s %s", f.TargetDate, zone, f.TargetOffset))
		fmt.Fprintf(&b, "  %-10s %s\n", "", solar(f.Solar))
	case clock.Loading:
		fmt.Fprintf(&b, "  %-10s %s\n", truncate(label, 10), loadingColor.Sprint(f.TargetClock))
	case clock.Error:
		line := errorColor.Sprint(f.TargetClock)
		if f.TargetZone != "" {
			line += "  " + dimColor.Sprint(f.TargetZone)
		}
		fmt.Fprintf(&b, "  %-10s %s\n", truncate(label, 10), line)
	default:
		fmt.Fprintf(&b, "  %-10s %s\n", "Target", dimColor.Sprint(f.TargetClock))
	}

	fmt.Fprintf(&b, "%s\n", rule)
	return b.String()
}

func solar(label string) string {
	if label == clock.Daylight {
		return dayColor.Sprint("☀ " + label)
	}
	return nightColor.Sprint("☾ " + label)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
