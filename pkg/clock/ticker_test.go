package clock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/codeGROOVE-dev/tzclock/pkg/resolver"
)

type fixedClock struct {
	mu    sync.Mutex
	t     time.Time
	reads int
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	return c.t
}

type countingSource struct {
	snap  resolver.Snapshot
	reads int
}

func (s *countingSource) Snapshot() resolver.Snapshot {
	s.reads++
	return s.snap
}

func TestTickReadsClockAndStateOnce(t *testing.T) {
	clk := &fixedClock{t: instant}
	src := &countingSource{snap: resolver.Snapshot{Status: resolver.Resolved, Zone: "Europe/London", Label: "London"}}
	ticker := NewTicker(NewRenderer(time.UTC, nil), src, WithClock(clk))

	f := ticker.Tick()
	if clk.reads != 1 {
		t.Errorf("clock reads = %d, want 1", clk.reads)
	}
	if src.reads != 1 {
		t.Errorf("state reads = %d, want 1", src.reads)
	}
	if !f.Instant.Equal(instant) {
		t.Errorf("Instant = %v", f.Instant)
	}
	last, ok := ticker.Last()
	if !ok || last.TargetClock != f.TargetClock {
		t.Errorf("Last() = %+v, %v", last, ok)
	}
}

func TestTickSameInstantIsStable(t *testing.T) {
	src := &countingSource{snap: resolver.Snapshot{Status: resolver.Resolved, Zone: "Asia/Kolkata"}}
	ticker := NewTicker(NewRenderer(time.UTC, nil), src, WithClock(&fixedClock{t: instant}))

	a, b := ticker.Tick(), ticker.Tick()
	if a.LocalClock != b.LocalClock || a.TargetClock != b.TargetClock {
		t.Errorf("ticks differ: %q/%q vs %q/%q", a.LocalClock, a.TargetClock, b.LocalClock, b.TargetClock)
	}
}

func TestSetHour24AppliesOnNextTick(t *testing.T) {
	src := &countingSource{snap: resolver.Snapshot{Status: resolver.Resolved, Zone: "UTC"}}
	ticker := NewTicker(NewRenderer(time.UTC, nil), src, WithClock(&fixedClock{t: instant}), WithHour24(true))

	if got := ticker.Tick().TargetClock; got != "14:05:09" {
		t.Errorf("24h TargetClock = %q", got)
	}
	ticker.SetHour24(false)
	if ticker.Hour24() {
		t.Error("Hour24() = true after SetHour24(false)")
	}
	if got := ticker.Tick().TargetClock; got != "02:05:09 PM" {
		t.Errorf("12h TargetClock = %q", got)
	}
	if src.snap.Zone != "UTC" {
		t.Error("toggle mutated the stored zone")
	}
}

func TestSinkFailuresDoNotStopTicking(t *testing.T) {
	var got []Frame
	ticker := NewTicker(NewRenderer(time.UTC, nil), &countingSource{}, WithClock(&fixedClock{t: instant}),
		WithSink(SinkFunc(func(Frame) error { return errors.New("terminal gone") })),
		WithSink(SinkFunc(func(Frame) error { panic("boom") })),
		WithSink(SinkFunc(func(f Frame) error {
			got = append(got, f)
			return nil
		})),
	)

	ticker.Tick()
	ticker.Tick()
	if len(got) != 2 {
		t.Errorf("healthy sink received %d frames, want 2", len(got))
	}
}

func TestRunTicksUntilCanceled(t *testing.T) {
	frames := make(chan Frame, 16)
	ticker := NewTicker(NewRenderer(time.UTC, nil), resolver.NewState(),
		WithPeriod(5*time.Millisecond),
		WithSink(SinkFunc(func(f Frame) error {
			select {
			case frames <- f:
			default:
			}
			return nil
		})),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ticker.Run(ctx) }()

	for range 3 {
		select {
		case f := <-frames:
			if f.Target != NoTarget {
				t.Errorf("Target = %v, want no_target", f.Target)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("ticker did not fire")
		}
	}
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
