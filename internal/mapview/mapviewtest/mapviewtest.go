// Package mapviewtest provides in-memory map widgets and routers for tests.
package mapviewtest

import (
	"context"
	"fmt"
	"sync"

	"bus-tracker/internal/geo"
	"bus-tracker/internal/mapview"

	"github.com/paulmach/orb"
)

// Recorder is a mapview.Map that keeps every call for inspection.
type Recorder struct {
	mu        sync.Mutex
	center    geo.Point
	zoom      int
	centers   int
	theme     mapview.Theme
	markers   []*Marker
	routes    []*Route
	labels    map[string]string
	overlays  map[string]mapview.Overlay
	statuses  []mapview.Status
	nextStops []string
}

func NewRecorder() *Recorder {
	return &Recorder{
		labels:   make(map[string]string),
		overlays: make(map[string]mapview.Overlay),
	}
}

func (r *Recorder) SetCenter(p geo.Point) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.center = p
	r.centers++
}

func (r *Recorder) SetZoom(z int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.zoom = z
}

func (r *Recorder) View() (geo.Point, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.center, r.zoom
}

func (r *Recorder) Project(p geo.Point) mapview.Pixel {
	center, zoom := r.View()
	return mapview.ViewportPixel(p, center, zoom, 800, 600)
}

func (r *Recorder) SetStyle(t mapview.Theme) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.theme = t
}

func (r *Recorder) CreateMarker(opts mapview.MarkerOptions) mapview.Marker {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := &Marker{id: fmt.Sprintf("marker-%d", len(r.markers)), Options: opts, pos: opts.Position}
	r.markers = append(r.markers, m)
	return m
}

func (r *Recorder) CreateRouteRenderer(style mapview.RouteStyle) mapview.RouteHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt := &Route{id: fmt.Sprintf("route-%d", len(r.routes)), Style: style}
	r.routes = append(r.routes, rt)
	return rt
}

func (r *Recorder) AddOverlay(o mapview.Overlay) {
	r.mu.Lock()
	r.overlays[o.ID()] = o
	r.mu.Unlock()
	o.Reposition(r.Project(o.Anchor()))
}

func (r *Recorder) RemoveOverlay(o mapview.Overlay) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.overlays, o.ID())
	delete(r.labels, o.ID())
}

func (r *Recorder) DrawLabel(id, text string, _ mapview.Pixel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.labels[id] = text
}

func (r *Recorder) ShowStatus(s mapview.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *Recorder) SetNextStopLabel(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextStops = append(r.nextStops, name)
}

// CenterCount is the number of SetCenter calls.
func (r *Recorder) CenterCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.centers
}

func (r *Recorder) Theme() mapview.Theme {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.theme
}

func (r *Recorder) Markers() []*Marker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Marker(nil), r.markers...)
}

// Routes returns every handle ever created, torn down or not.
func (r *Recorder) Routes() []*Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Route(nil), r.routes...)
}

// LiveRoutes returns the handles that have not been torn down.
func (r *Recorder) LiveRoutes() []*Route {
	var live []*Route
	for _, rt := range r.Routes() {
		if !rt.Torn() {
			live = append(live, rt)
		}
	}
	return live
}

// Labels returns the texts of the labels currently drawn.
func (r *Recorder) Labels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.labels))
	for _, text := range r.labels {
		out = append(out, text)
	}
	return out
}

func (r *Recorder) Statuses() []mapview.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mapview.Status(nil), r.statuses...)
}

func (r *Recorder) LastStatus() (mapview.Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return mapview.Status{}, false
	}
	return r.statuses[len(r.statuses)-1], true
}

func (r *Recorder) NextStop() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.nextStops) == 0 {
		return ""
	}
	return r.nextStops[len(r.nextStops)-1]
}

type Marker struct {
	id      string
	Options mapview.MarkerOptions

	mu      sync.Mutex
	pos     geo.Point
	history []geo.Point
}

func (m *Marker) ID() string { return m.id }

func (m *Marker) Position() geo.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

func (m *Marker) SetPosition(p geo.Point) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pos = p
	m.history = append(m.history, p)
}

// History lists every SetPosition call in order.
func (m *Marker) History() []geo.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]geo.Point(nil), m.history...)
}

type Route struct {
	id    string
	Style mapview.RouteStyle

	mu    sync.Mutex
	torn  bool
	route *mapview.Route
}

func (rt *Route) ID() string { return rt.id }

func (rt *Route) SetRoute(r mapview.Route) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.torn {
		return
	}
	rt.route = &r
}

func (rt *Route) Teardown() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.torn = true
}

func (rt *Route) Torn() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.torn
}

// Route returns the route set on the handle, if any.
func (rt *Route) Route() (mapview.Route, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.route == nil {
		return mapview.Route{}, false
	}
	return *rt.route, true
}

type Call struct {
	Origin      geo.Point
	Destination geo.Point
	Waypoints   []geo.Point
}

// Router answers every request with a straight line through the waypoints.
// Fail, when set, can reject individual requests; Hold, when set, makes each
// request wait for a value before answering.
type Router struct {
	Fail func(origin, destination geo.Point) error
	Hold chan struct{}

	mu    sync.Mutex
	calls []Call
}

func (r *Router) ComputeRoute(ctx context.Context, origin, destination geo.Point, waypoints []geo.Point) (mapview.Route, error) {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Origin: origin, Destination: destination, Waypoints: waypoints})
	r.mu.Unlock()

	if r.Hold != nil {
		select {
		case <-r.Hold:
		case <-ctx.Done():
			return mapview.Route{}, ctx.Err()
		}
	}
	if r.Fail != nil {
		if err := r.Fail(origin, destination); err != nil {
			return mapview.Route{}, err
		}
	}

	line := orb.LineString{origin.Orb()}
	for _, w := range waypoints {
		line = append(line, w.Orb())
	}
	line = append(line, destination.Orb())
	return mapview.Route{Geometry: line, DistanceMeters: geo.Distance(origin, destination)}, nil
}

func (r *Router) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}
