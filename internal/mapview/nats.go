package mapview

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"bus-tracker/internal/geo"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
)

// Publisher sends a JSON-encodable widget command on a subject.
type Publisher interface {
	Publish(subject string, v any) error
}

type NATSOptions struct {
	SubjectPrefix string
	Center        geo.Point
	Zoom          int
	Width         int
	Height        int
}

// NATSMap drives a browser map widget that subscribes to commands under
// SubjectPrefix (view, marker, route, label, status, nextstop, style).
type NATSMap struct {
	pub    Publisher
	prefix string
	width  int
	height int

	mu       sync.Mutex
	center   geo.Point
	zoom     int
	overlays map[string]Overlay
}

type viewMessage struct {
	Op     string    `json:"op"`
	Center geo.Point `json:"center"`
	Zoom   int       `json:"zoom"`
}

type markerMessage struct {
	Op       string         `json:"op"`
	ID       string         `json:"id"`
	Position geo.Point      `json:"position"`
	Options  *MarkerOptions `json:"options,omitempty"`
}

type routeMessage struct {
	Op              string            `json:"op"`
	ID              string            `json:"id"`
	Style           *RouteStyle       `json:"style,omitempty"`
	Geometry        *geojson.Geometry `json:"geometry,omitempty"`
	DistanceMeters  float64           `json:"distanceMeters,omitempty"`
	DurationSeconds float64           `json:"durationSeconds,omitempty"`
}

type labelMessage struct {
	Op   string `json:"op"`
	ID   string `json:"id"`
	Text string `json:"text,omitempty"`
	At   *Pixel `json:"at,omitempty"`
}

type statusMessage struct {
	Status
	LocationText string `json:"locationText"`
	UpdatedText  string `json:"updatedText"`
}

type nextStopMessage struct {
	Name string `json:"name"`
}

type styleMessage struct {
	Theme Theme       `json:"theme"`
	Rules []StyleRule `json:"rules"`
}

// NewNATSMap creates the map by sending the initial view. A widget that
// cannot be reached fails here so callers can fall back to a Placeholder.
func NewNATSMap(pub Publisher, opts NATSOptions) (*NATSMap, error) {
	if pub == nil {
		return nil, errors.New("map widget: no publisher")
	}
	if opts.SubjectPrefix == "" {
		opts.SubjectPrefix = "tracker"
	}
	m := &NATSMap{
		pub:      pub,
		prefix:   opts.SubjectPrefix,
		width:    opts.Width,
		height:   opts.Height,
		center:   opts.Center,
		zoom:     opts.Zoom,
		overlays: make(map[string]Overlay),
	}
	err := pub.Publish(m.subject("view"), viewMessage{Op: "init", Center: opts.Center, Zoom: opts.Zoom})
	if err != nil {
		return nil, fmt.Errorf("map widget init: %w", err)
	}
	return m, nil
}

func (m *NATSMap) subject(kind string) string { return m.prefix + "." + kind }

func (m *NATSMap) send(kind string, v any) {
	if err := m.pub.Publish(m.subject(kind), v); err != nil {
		log.Debug().Err(err).Str("subject", m.subject(kind)).Msg("widget command dropped")
	}
}

func (m *NATSMap) SetCenter(p geo.Point) {
	m.mu.Lock()
	m.center = p
	msg := viewMessage{Op: "center", Center: m.center, Zoom: m.zoom}
	m.mu.Unlock()
	m.send("view", msg)
	m.repositionOverlays()
}

func (m *NATSMap) SetZoom(z int) {
	m.mu.Lock()
	m.zoom = z
	msg := viewMessage{Op: "zoom", Center: m.center, Zoom: m.zoom}
	m.mu.Unlock()
	m.send("view", msg)
	m.repositionOverlays()
}

func (m *NATSMap) View() (geo.Point, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.center, m.zoom
}

func (m *NATSMap) Project(p geo.Point) Pixel {
	center, zoom := m.View()
	return ViewportPixel(p, center, zoom, m.width, m.height)
}

func (m *NATSMap) SetStyle(theme Theme) {
	m.send("style", styleMessage{Theme: theme, Rules: StyleRules(theme)})
}

func (m *NATSMap) CreateMarker(opts MarkerOptions) Marker {
	mk := &natsMarker{id: uuid.NewString(), m: m, pos: opts.Position}
	m.send("marker", markerMessage{Op: "create", ID: mk.id, Position: opts.Position, Options: &opts})
	return mk
}

func (m *NATSMap) CreateRouteRenderer(style RouteStyle) RouteHandle {
	return &natsRoute{id: uuid.NewString(), m: m, style: style}
}

func (m *NATSMap) AddOverlay(o Overlay) {
	m.mu.Lock()
	m.overlays[o.ID()] = o
	m.mu.Unlock()
	o.Reposition(m.Project(o.Anchor()))
}

func (m *NATSMap) RemoveOverlay(o Overlay) {
	m.mu.Lock()
	_, ok := m.overlays[o.ID()]
	delete(m.overlays, o.ID())
	m.mu.Unlock()
	if ok {
		m.send("label", labelMessage{Op: "remove", ID: o.ID()})
	}
}

func (m *NATSMap) DrawLabel(id, text string, at Pixel) {
	m.send("label", labelMessage{Op: "draw", ID: id, Text: text, At: &at})
}

func (m *NATSMap) repositionOverlays() {
	m.mu.Lock()
	overlays := make([]Overlay, 0, len(m.overlays))
	for _, o := range m.overlays {
		overlays = append(overlays, o)
	}
	m.mu.Unlock()
	for _, o := range overlays {
		o.Reposition(m.Project(o.Anchor()))
	}
}

func (m *NATSMap) ShowStatus(s Status) {
	m.send("status", statusMessage{
		Status:       s,
		LocationText: s.LocationText(),
		UpdatedText:  s.UpdatedAt.Format(time.TimeOnly),
	})
}

func (m *NATSMap) SetNextStopLabel(name string) {
	m.send("nextstop", nextStopMessage{Name: name})
}

type natsMarker struct {
	id string
	m  *NATSMap

	mu  sync.Mutex
	pos geo.Point
}

func (mk *natsMarker) ID() string { return mk.id }

func (mk *natsMarker) Position() geo.Point {
	mk.mu.Lock()
	defer mk.mu.Unlock()
	return mk.pos
}

func (mk *natsMarker) SetPosition(p geo.Point) {
	mk.mu.Lock()
	mk.pos = p
	mk.mu.Unlock()
	mk.m.send("marker", markerMessage{Op: "move", ID: mk.id, Position: p})
}

type natsRoute struct {
	id    string
	m     *NATSMap
	style RouteStyle

	mu   sync.Mutex
	dead bool
}

func (r *natsRoute) ID() string { return r.id }

// SetRoute and Teardown publish under the handle's lock so a teardown can
// never be followed by a set for the same id.
func (r *natsRoute) SetRoute(rt Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dead {
		return
	}
	r.m.send("route", routeMessage{
		Op:              "set",
		ID:              r.id,
		Style:           &r.style,
		Geometry:        geojson.NewGeometry(rt.Geometry),
		DistanceMeters:  rt.DistanceMeters,
		DurationSeconds: rt.DurationSeconds,
	})
}

func (r *natsRoute) Teardown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dead {
		return
	}
	r.dead = true
	r.m.send("route", routeMessage{Op: "teardown", ID: r.id})
}
