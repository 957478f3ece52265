package route

import (
	"fmt"
	"strings"
)

// ReturnPolicy decides whether a visible return leg can be hidden again.
type ReturnPolicy string

const (
	// ReturnSticky keeps the return leg until the lap is reset.
	ReturnSticky ReturnPolicy = "sticky"
	// ReturnReevaluate hides the return leg whenever a sample falls outside
	// the threshold of the last stop.
	ReturnReevaluate ReturnPolicy = "reevaluate"
)

func ParseReturnPolicy(s string) (ReturnPolicy, error) {
	switch p := ReturnPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ReturnSticky, nil
	case ReturnSticky, ReturnReevaluate:
		return p, nil
	default:
		return "", fmt.Errorf("unknown return leg policy %q", s)
	}
}

// LapPolicy decides what happens once the vehicle is back at the first stop
// after completing the return leg.
type LapPolicy string

const (
	LapNone          LapPolicy = "none"
	LapResetAtOrigin LapPolicy = "reset-at-origin"
)

func ParseLapPolicy(s string) (LapPolicy, error) {
	switch p := LapPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return LapResetAtOrigin, nil
	case LapNone, LapResetAtOrigin:
		return p, nil
	default:
		return "", fmt.Errorf("unknown lap policy %q", s)
	}
}
