package resolver

import (
	"context"
	"errors"

	"github.com/codeGROOVE-dev/tzclock/pkg/tzlookup"
)

// Resolution error taxonomy. Lookup failures are recovered with the longitude
// fallback and only recorded as Snapshot.Cause.
var (
	ErrNetwork           = errors.New("lookup network failure")
	ErrTimeout           = errors.New("lookup timed out")
	ErrMissingField      = errors.New("lookup response missing field")
	ErrInvalidCoordinate = errors.New("invalid coordinate")
)

// classify maps a lookup error onto the taxonomy, keeping the original error
// in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return errors.Join(ErrTimeout, err)
	case errors.Is(err, tzlookup.ErrMissingField):
		return errors.Join(ErrMissingField, err)
	default:
		return errors.Join(ErrNetwork, err)
	}
}
