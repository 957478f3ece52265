package route

import (
	"fmt"

	"bus-tracker/internal/geo"
)

const (
	DefaultThresholdMeters = 100.0
	EndOfRouteLabel        = "End of route"
)

// State is a point-in-time copy of the tracker's progress.
type State struct {
	Stops            []Stop `json:"stops"`
	CurrentIndex     int    `json:"currentIndex"`
	ReturnLegVisible bool   `json:"returnLegVisible"`
}

func (s State) LastIndex() int { return len(s.Stops) - 1 }

// NextStopName is the label shown for the upcoming stop.
func (s State) NextStopName() string {
	if next := s.CurrentIndex + 1; next < len(s.Stops) {
		return s.Stops[next].Name
	}
	if s.ReturnLegVisible && len(s.Stops) > 0 {
		return s.Stops[0].Name
	}
	return EndOfRouteLabel
}

// Result reports what an Update changed.
type Result struct {
	Advanced      bool `json:"advanced"`
	ReturnToggled bool `json:"returnToggled"`
	LapReset      bool `json:"lapReset"`
}

// NeedsRebuild is true when the rendered route no longer matches the state.
func (r Result) NeedsRebuild() bool { return r.Advanced || r.ReturnToggled || r.LapReset }

type Options struct {
	ThresholdMeters float64
	Return          ReturnPolicy
	Lap             LapPolicy
}

// Tracker holds the stop sequence and how far along it the vehicle is.
// It is not safe for concurrent use; the owning session serializes access.
type Tracker struct {
	stops         []Stop
	current       int
	returnVisible bool
	lapArmed      bool // last stop reached this lap
	opts          Options
}

func NewTracker(stops []Stop, opts Options) *Tracker {
	if opts.ThresholdMeters <= 0 {
		opts.ThresholdMeters = DefaultThresholdMeters
	}
	if opts.Return == "" {
		opts.Return = ReturnSticky
	}
	if opts.Lap == "" {
		opts.Lap = LapResetAtOrigin
	}
	return &Tracker{
		stops: append([]Stop(nil), stops...),
		opts:  opts,
	}
}

func (t *Tracker) Options() Options { return t.opts }

// Update folds a freshly observed position into the progress state. Stops
// are scanned from the current index forward and the first one within the
// threshold wins, even if a later stop is closer.
func (t *Tracker) Update(observed geo.Point) Result {
	var res Result
	last := len(t.stops) - 1
	if last < 0 {
		return res
	}
	wasVisible := t.returnVisible

	if t.lapComplete(observed) {
		t.Reset()
		res.LapReset = true
		res.ReturnToggled = wasVisible
		return res
	}

	matched := -1
	for i := t.current; i <= last; i++ {
		if t.near(observed, i) {
			matched = i
			break
		}
	}
	if matched == last {
		t.returnVisible = true
		t.lapArmed = true
	}
	if matched > t.current {
		t.current = matched
		res.Advanced = true
	}
	if t.opts.Return == ReturnReevaluate && t.returnVisible && matched != last && !t.near(observed, last) {
		t.returnVisible = false
	}

	res.ReturnToggled = t.returnVisible != wasVisible
	return res
}

// lapComplete is true when the vehicle has reached the last stop this lap
// and is back at the origin, away from the last stop. It does not depend on
// the return leg still being visible.
func (t *Tracker) lapComplete(observed geo.Point) bool {
	last := len(t.stops) - 1
	if t.opts.Lap != LapResetAtOrigin || last < 1 {
		return false
	}
	if !t.lapArmed || t.current != last {
		return false
	}
	return t.near(observed, 0) && !t.near(observed, last)
}

func (t *Tracker) near(p geo.Point, i int) bool {
	return geo.Within(p, t.stops[i].Position, t.opts.ThresholdMeters)
}

func (t *Tracker) Snapshot() State {
	stops := make([]Stop, len(t.stops))
	copy(stops, t.stops)
	return State{
		Stops:            stops,
		CurrentIndex:     t.current,
		ReturnLegVisible: t.returnVisible,
	}
}

// Reset starts a new lap.
func (t *Tracker) Reset() {
	t.current = 0
	t.returnVisible = false
	t.lapArmed = false
}

// AddStop appends s to the end of the sequence. The last stop changes, so a
// visible return leg is hidden until the vehicle reaches the new last stop.
func (t *Tracker) AddStop(s Stop) error {
	if err := s.Validate(); err != nil {
		return err
	}
	t.stops = append(t.stops, s)
	if len(t.stops) > 1 {
		t.returnVisible = false
		t.lapArmed = false
	}
	return nil
}

// RemoveStop deletes the stop at i. Removing a stop at or before the current
// index moves progress back by one so it still points at a reached stop.
func (t *Tracker) RemoveStop(i int) (Stop, error) {
	if i < 0 || i >= len(t.stops) {
		return Stop{}, fmt.Errorf("%w: %d of %d", ErrStopIndex, i, len(t.stops))
	}
	removed := t.stops[i]
	wasLast := i == len(t.stops)-1
	t.stops = append(t.stops[:i], t.stops[i+1:]...)

	if i <= t.current && t.current > 0 {
		t.current--
	}
	if t.current > len(t.stops)-1 {
		t.current = max(len(t.stops)-1, 0)
	}
	if wasLast {
		t.returnVisible = false
		t.lapArmed = false
	}
	return removed, nil
}
