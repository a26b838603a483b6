// Package resolver turns a picked coordinate into a time zone identifier and
// place label, and publishes the result for the clock renderer.
//
// Resolutions are asynchronous and are never queued: a new request does not
// wait for or cancel an earlier one. By default every completion is stored,
// so an older request that finishes late overwrites a newer result. With
// WithDiscardStale(true) completions carry a sequence number and any
// completion older than the stored snapshot is dropped.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/atomic"

	"github.com/codeGROOVE-dev/tzclock/pkg/geo"
	"github.com/codeGROOVE-dev/tzclock/pkg/tzconvert"
	"github.com/codeGROOVE-dev/tzclock/pkg/tzlookup"
)

// DefaultTimeout bounds each outbound lookup.
const DefaultTimeout = 2 * time.Second

// DefaultLabel is used when no place name can be determined.
const DefaultLabel = "Remote Point"

// Lookup is the set of outbound services a Resolver needs.
type Lookup interface {
	TimezoneForCoordinates(ctx context.Context, coord geo.Coordinate) (string, error)
	ReverseGeocode(ctx context.Context, coord geo.Coordinate) (tzlookup.Address, error)
}

// Resolver resolves coordinates into the shared State.
type Resolver struct {
	lookup       Lookup
	state        *State
	seq          *atomic.Uint64
	logger       *slog.Logger
	timeout      time.Duration
	discardStale bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTimeout bounds each lookup request. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		r.timeout = max(d, 0)
	}
}

// WithDiscardStale drops completions older than the stored snapshot instead
// of letting the last completion win.
func WithDiscardStale(discard bool) Option {
	return func(r *Resolver) {
		r.discardStale = discard
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithState publishes into an existing State.
func WithState(s *State) Option {
	return func(r *Resolver) {
		if s != nil {
			r.state = s
		}
	}
}

// New creates a Resolver backed by lookup.
func New(lookup Lookup, opts ...Option) *Resolver {
	r := &Resolver{
		lookup:  lookup,
		state:   NewState(),
		seq:     atomic.NewUint64(0),
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Snapshot returns the current resolution state.
func (r *Resolver) Snapshot() Snapshot {
	return r.state.Snapshot()
}

// Handle tracks one in-flight resolution.
type Handle struct {
	cancel    context.CancelFunc
	done      chan struct{}
	result    Snapshot
	seq       uint64
	committed bool
}

// Seq returns the resolution's sequence number.
func (h *Handle) Seq() uint64 { return h.seq }

// Cancel aborts any outstanding lookup. The resolution still completes, using
// the longitude fallback and default label for whatever was aborted.
func (h *Handle) Cancel() { h.cancel() }

// Done is closed once the resolution has completed and attempted its commit.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the resolution completes or ctx is done.
func (h *Handle) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-h.done:
		return h.result, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Committed reports whether the completed result was stored. It is only
// meaningful after Done is closed.
func (h *Handle) Committed() bool {
	<-h.done
	return h.committed
}

// Resolve starts resolving coord. A non-empty label is used as the place name
// and skips reverse geocoding. The Resolving state is published before
// Resolve returns.
func (r *Resolver) Resolve(ctx context.Context, coord geo.Coordinate, label string) *Handle {
	seq := r.seq.Inc()
	label = strings.TrimSpace(label)

	r.commit(Snapshot{Seq: seq, Status: Resolving, Label: label})

	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{seq: seq, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)
		defer cancel()
		h.result = r.run(ctx, seq, coord, label)
		h.committed = r.commit(h.result)
	}()
	return h
}

func (r *Resolver) run(ctx context.Context, seq uint64, coord geo.Coordinate, label string) (snap Snapshot) {
	logger := r.logger.With("seq", seq, "lat", coord.Latitude, "lon", coord.Longitude)
	defer func() {
		if p := recover(); p != nil {
			logger.Error("resolution panicked", "panic", p)
			snap = Snapshot{Seq: seq, Status: Failed, Cause: fmt.Errorf("resolution panicked: %v", p)}
		}
	}()

	if err := coord.Validate(); err != nil {
		logger.Warn("rejecting coordinate", "error", err)
		return Snapshot{Seq: seq, Status: Failed, Cause: fmt.Errorf("%w: %w", ErrInvalidCoordinate, err)}
	}

	zone, cause := r.zone(ctx, coord)
	fallback := cause != nil
	if fallback {
		logger.Info("using longitude fallback zone", "zone", zone, "error", cause)
	}

	if label == "" {
		label = r.label(ctx, coord, logger)
	}

	logger.Debug("resolved", "zone", zone, "label", label, "fallback", fallback)
	return Snapshot{
		Seq:      seq,
		Status:   Resolved,
		Zone:     zone,
		Label:    label,
		Fallback: fallback,
		Cause:    cause,
	}
}

// zone returns the authoritative zone, or the fallback and the classified
// reason the lookup could not be used.
func (r *Resolver) zone(ctx context.Context, coord geo.Coordinate) (string, error) {
	lctx, cancel := r.bound(ctx)
	defer cancel()

	zone, err := r.lookup.TimezoneForCoordinates(lctx, coord)
	if err == nil && strings.TrimSpace(zone) == "" {
		err = tzlookup.ErrMissingField
	}
	if err != nil {
		return tzconvert.FallbackZone(coord.Longitude), classify(err)
	}
	return strings.TrimSpace(zone), nil
}

func (r *Resolver) label(ctx context.Context, coord geo.Coordinate, logger *slog.Logger) string {
	lctx, cancel := r.bound(ctx)
	defer cancel()

	addr, err := r.lookup.ReverseGeocode(lctx, coord)
	if err != nil {
		logger.Info("reverse geocode failed, using default label", "error", classify(err))
		return DefaultLabel
	}
	name := lo.CoalesceOrEmpty(
		strings.TrimSpace(addr.City),
		strings.TrimSpace(addr.Town),
		strings.TrimSpace(addr.Country),
	)
	if name == "" {
		return DefaultLabel
	}
	return name
}

func (r *Resolver) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *Resolver) commit(snap Snapshot) bool {
	if !r.discardStale {
		r.state.Replace(snap)
		return true
	}
	if r.state.ReplaceIfNewer(snap) {
		return true
	}
	r.logger.Debug("discarding stale resolution", "seq", snap.Seq, "status", snap.Status)
	return false
}
