package clock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/atomic"

	"github.com/codeGROOVE-dev/tzclock/pkg/resolver"
)

// DefaultPeriod is the interval between ticks.
const DefaultPeriod = time.Second

// Clock provides the current time. Tests inject a fixed clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// Source supplies the resolution state read on each tick.
type Source interface {
	Snapshot() resolver.Snapshot
}

// Sink receives rendered frames.
type Sink interface {
	Emit(Frame) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Frame) error

// Emit calls f.
func (f SinkFunc) Emit(fr Frame) error { return f(fr) }

// Ticker renders a frame every period and hands it to its sinks.
type Ticker struct {
	renderer *Renderer
	source   Source
	clock    Clock
	logger   *slog.Logger
	hour24   *atomic.Bool
	last     *atomic.Pointer[Frame]
	sinks    []Sink
	period   time.Duration
}

// TickerOption configures a Ticker.
type TickerOption func(*Ticker)

// WithPeriod sets the tick interval.
func WithPeriod(d time.Duration) TickerOption {
	return func(t *Ticker) {
		if d > 0 {
			t.period = d
		}
	}
}

// WithClock sets the time source.
func WithClock(c Clock) TickerOption {
	return func(t *Ticker) {
		if c != nil {
			t.clock = c
		}
	}
}

// WithSink adds a frame sink.
func WithSink(s Sink) TickerOption {
	return func(t *Ticker) {
		if s != nil {
			t.sinks = append(t.sinks, s)
		}
	}
}

// WithHour24 sets the initial 12/24 hour mode.
func WithHour24(on bool) TickerOption {
	return func(t *Ticker) {
		t.hour24.Store(on)
	}
}

// WithTickerLogger sets the logger.
func WithTickerLogger(logger *slog.Logger) TickerOption {
	return func(t *Ticker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTicker creates a Ticker reading state from source.
func NewTicker(renderer *Renderer, source Source, opts ...TickerOption) *Ticker {
	t := &Ticker{
		renderer: renderer,
		source:   source,
		clock:    SystemClock{},
		logger:   slog.Default(),
		hour24:   atomic.NewBool(false),
		last:     atomic.NewPointer[Frame](nil),
		period:   DefaultPeriod,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetHour24 switches between 12 and 24 hour clocks from the next tick on.
func (t *Ticker) SetHour24(on bool) {
	if t.hour24.Swap(on) != on {
		t.logger.Debug("clock format changed", "hour24", on)
	}
}

// Hour24 reports the current mode.
func (t *Ticker) Hour24() bool { return t.hour24.Load() }

// Last returns the most recently rendered frame.
func (t *Ticker) Last() (Frame, bool) {
	f := t.last.Load()
	if f == nil {
		return Frame{}, false
	}
	return *f, true
}

// Tick renders and emits one frame. The clock, the state snapshot and the
// format toggle are each read exactly once.
func (t *Ticker) Tick() Frame {
	now := t.clock.Now()
	snap := t.source.Snapshot()
	f := t.renderer.Render(now, snap, t.hour24.Load())
	t.last.Store(&f)
	for _, s := range t.sinks {
		if err := t.emit(s, f); err != nil {
			t.logger.Warn("frame sink failed", "error", err)
		}
	}
	return f
}

func (t *Ticker) emit(s Sink, f Frame) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("sink panicked: %v", p)
		}
	}()
	return s.Emit(f)
}

// Run ticks immediately and then every period until ctx is done.
func (t *Ticker) Run(ctx context.Context) error {
	t.Tick()

	ticker := time.NewTicker(t.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.Tick()
		}
	}
}
