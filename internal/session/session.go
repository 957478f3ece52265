// Package session ties the tracker together: it owns the widget, the stop
// progression, the drawn route and the vehicle marker, and reacts to each
// poll.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bus-tracker/internal/animate"
	"bus-tracker/internal/geo"
	"bus-tracker/internal/mapview"
	"bus-tracker/internal/poller"
	"bus-tracker/internal/prefs"
	"bus-tracker/internal/render"
	"bus-tracker/internal/route"

	"github.com/rs/zerolog/log"
)

var ErrNoVehicle = errors.New("no vehicle position yet")

const (
	DefaultFocusZoom = 17
	BusIconURL       = "https://maps.google.com/mapfiles/kml/shapes/bus.png"
	BusTitle         = "University Bus"
)

type MarkerStyle struct {
	IconURL  string
	IconSize int
	Title    string
	InfoHTML string
}

func DefaultMarkerStyle() MarkerStyle {
	return MarkerStyle{
		IconURL:  BusIconURL,
		IconSize: 30,
		Title:    BusTitle,
		InfoHTML: "<b>" + BusTitle + "</b>",
	}
}

type Options struct {
	Tracker   route.Options
	Center    geo.Point
	Zoom      int
	FocusZoom int
	Marker    MarkerStyle
}

type Metrics interface {
	ProgressObserve(st route.State, res route.Result)
	SampleObserved(at time.Time)
}

type Deps struct {
	Widget        mapview.Map
	Router        mapview.Router
	Animator      *animate.Animator
	Prefs         prefs.Store
	Metrics       Metrics
	RenderMetrics render.Metrics
}

// Session is the single owner of tracker state. All mutation goes through
// its mutex; animation frames and route results run on their own goroutines
// and only touch the marker and route handles they were given.
type Session struct {
	widget   mapview.Map
	tracker  *route.Tracker
	renderer *render.Renderer
	animator *animate.Animator
	prefs    prefs.Store
	m        Metrics
	opts     Options

	mu       sync.Mutex
	ctx      context.Context
	marker   mapview.Marker
	centered bool
	status   mapview.Status
	labels   []*mapview.Label
	theme    mapview.Theme
}

func New(stops []route.Stop, deps Deps, opts Options) *Session {
	if opts.FocusZoom <= 0 {
		opts.FocusZoom = DefaultFocusZoom
	}
	if opts.Marker == (MarkerStyle{}) {
		opts.Marker = DefaultMarkerStyle()
	}
	if deps.Animator == nil {
		deps.Animator = animate.New(animate.DefaultFrames, nil, nil)
	}
	if deps.Prefs == nil {
		deps.Prefs = prefs.NewMemoryStore()
	}
	return &Session{
		widget:   deps.Widget,
		tracker:  route.NewTracker(stops, opts.Tracker),
		renderer: render.New(deps.Widget, deps.Router, deps.RenderMetrics),
		animator: deps.Animator,
		prefs:    deps.Prefs,
		m:        deps.Metrics,
		opts:     opts,
		ctx:      context.Background(),
		theme:    mapview.ThemeLight,
		status:   mapview.Status{Label: mapview.StatusConnecting},
	}
}

// Start applies the stored theme, frames the map, labels the stops and
// draws the initial route. Route requests issued later run under ctx.
func (s *Session) Start(ctx context.Context) {
	theme := mapview.ThemeLight
	if v, err := s.prefs.Get(ctx, prefs.ThemeKey); err == nil {
		theme = mapview.ParseTheme(v)
	} else if !errors.Is(err, prefs.ErrNotFound) {
		log.Warn().Err(err).Msg("theme preference unavailable")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctx = ctx
	s.theme = theme
	s.widget.SetStyle(theme)
	s.widget.SetCenter(s.opts.Center)
	s.widget.SetZoom(s.opts.Zoom)
	s.status = mapview.Status{Label: mapview.StatusConnecting, UpdatedAt: time.Now()}
	s.widget.ShowStatus(s.status)
	s.relabelLocked()
	s.rebuildLocked(route.Result{})
}

// OnSample folds a valid vehicle position into the session.
func (s *Session) OnSample(ctx context.Context, smp poller.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := smp.ReceivedAt
	if at.IsZero() {
		at = time.Now()
	}
	pos := smp.Position
	s.status = mapview.Status{
		Active:    true,
		Label:     mapview.StatusActive,
		UpdatedAt: at,
		Location:  &pos,
		RawLat:    smp.RawLat,
		RawLng:    smp.RawLng,
	}
	s.widget.ShowStatus(s.status)
	if s.m != nil {
		s.m.SampleObserved(at)
	}

	if s.marker == nil {
		s.marker = s.widget.CreateMarker(mapview.MarkerOptions{
			Position: pos,
			IconURL:  s.opts.Marker.IconURL,
			IconSize: s.opts.Marker.IconSize,
			Title:    s.opts.Marker.Title,
			InfoHTML: s.opts.Marker.InfoHTML,
		})
		if !s.centered {
			s.widget.SetCenter(pos)
			s.centered = true
		}
	} else {
		s.animator.AnimateTo(ctx, s.marker, s.marker.Position(), pos)
	}

	res := s.tracker.Update(pos)
	if res.Advanced || res.LapReset {
		st := s.tracker.Snapshot()
		log.Info().
			Int("current_index", st.CurrentIndex).
			Str("next_stop", st.NextStopName()).
			Bool("lap_reset", res.LapReset).
			Msg("vehicle progressed")
	}
	if res.NeedsRebuild() {
		s.rebuildLocked(res)
	}
}

// OnFailure marks the feed as connecting. Progress and the drawn route are
// left alone.
func (s *Session) OnFailure(_ context.Context, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status = mapview.Status{Label: mapview.StatusConnecting, UpdatedAt: time.Now()}
	s.widget.ShowStatus(s.status)
	log.Debug().Err(err).Msg("status set to connecting")
}

func (s *Session) rebuildLocked(res route.Result) {
	st := s.tracker.Snapshot()
	s.renderer.Rebuild(s.ctx, st)
	if s.m != nil {
		s.m.ProgressObserve(st, res)
	}
}

func (s *Session) relabelLocked() {
	for _, l := range s.labels {
		l.Detach()
	}
	st := s.tracker.Snapshot()
	s.labels = make([]*mapview.Label, 0, len(st.Stops))
	for _, stop := range st.Stops {
		l := mapview.NewLabel(stop.Name, stop.Position)
		l.Attach(s.widget)
		s.labels = append(s.labels, l)
	}
}

// CenterOnVehicle moves the view to the marker. A zoom of 0 uses the focus
// zoom.
func (s *Session) CenterOnVehicle(zoom int) (geo.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.marker == nil {
		return geo.Point{}, ErrNoVehicle
	}
	if zoom <= 0 {
		zoom = s.opts.FocusZoom
	}
	pos := s.marker.Position()
	s.widget.SetCenter(pos)
	s.widget.SetZoom(zoom)
	return pos, nil
}

func (s *Session) Status() mapview.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) State() route.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.Snapshot()
}

func (s *Session) Segments() []render.Segment { return s.renderer.Segments() }

// AddStop appends a stop and redraws labels and route.
func (s *Session) AddStop(stop route.Stop) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.tracker.AddStop(stop); err != nil {
		return err
	}
	log.Info().Str("stop", stop.Name).Msg("stop added")
	s.relabelLocked()
	s.rebuildLocked(route.Result{})
	return nil
}

func (s *Session) RemoveStop(i int) (route.Stop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.tracker.RemoveStop(i)
	if err != nil {
		return route.Stop{}, err
	}
	log.Info().Str("stop", removed.Name).Int("index", i).Msg("stop removed")
	s.relabelLocked()
	s.rebuildLocked(route.Result{})
	return removed, nil
}

// ResetLap starts progress over from the first stop.
func (s *Session) ResetLap() route.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracker.Reset()
	s.rebuildLocked(route.Result{LapReset: true})
	return s.tracker.Snapshot()
}

func (s *Session) Theme() mapview.Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// ToggleTheme switches the map style and stores the choice. The new theme
// is applied even if it cannot be stored.
func (s *Session) ToggleTheme(ctx context.Context) (mapview.Theme, error) {
	s.mu.Lock()
	s.theme = s.theme.Toggle()
	theme := s.theme
	s.widget.SetStyle(theme)
	s.mu.Unlock()

	if err := s.prefs.Set(ctx, prefs.ThemeKey, string(theme)); err != nil {
		return theme, fmt.Errorf("store theme: %w", err)
	}
	return theme, nil
}

// Wait blocks until in-flight animation and route requests settle.
func (s *Session) Wait() {
	s.animator.Wait()
	s.renderer.Wait()
}

// Close stops animation, waits for outstanding route requests and removes
// everything the session drew.
func (s *Session) Close() {
	s.animator.Cancel()
	s.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.renderer.Clear()
	for _, l := range s.labels {
		l.Detach()
	}
	s.labels = nil
}
