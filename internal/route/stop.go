package route

import (
	"errors"
	"fmt"
	"strings"

	"bus-tracker/internal/geo"
)

var (
	ErrInvalidStop = errors.New("invalid stop")
	ErrStopIndex   = errors.New("stop index out of range")
)

// Stop is a named waypoint in the traversal sequence. Via lists optional
// intermediate points the router should pass through on the way to the
// following stop.
type Stop struct {
	Name     string      `json:"name" yaml:"name"`
	Position geo.Point   `json:"position" yaml:"position"`
	Via      []geo.Point `json:"via,omitempty" yaml:"via,omitempty"`
}

func (s Stop) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidStop)
	}
	if !geo.Valid(s.Position) {
		return fmt.Errorf("%w: %q has position %s out of range", ErrInvalidStop, s.Name, s.Position)
	}
	for i, p := range s.Via {
		if !geo.Valid(p) {
			return fmt.Errorf("%w: %q via point %d out of range", ErrInvalidStop, s.Name, i)
		}
	}
	return nil
}
