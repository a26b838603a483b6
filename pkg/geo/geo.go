// Package geo defines geographic coordinates and their validation.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Coordinate is a point picked on the map or returned by a search.
type Coordinate struct {
	Latitude  float64 `json:"lat" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// ErrOutOfRange is returned by Validate for coordinates outside the globe.
var ErrOutOfRange = errors.New("coordinate out of range")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the coordinate lies within [-90,90] x [-180,180].
func (c Coordinate) Validate() error {
	// validator compares NaN as neither greater nor lower, so reject it explicitly.
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) {
		return fmt.Errorf("%w: NaN component", ErrOutOfRange)
	}
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s=%v", strings.ToLower(fe.Field()), fe.Value()))
	}
	return fmt.Errorf("%w: %s", ErrOutOfRange, strings.Join(fields, ", "))
}

// String formats the coordinate the way it is sent to lookup services.
func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}
