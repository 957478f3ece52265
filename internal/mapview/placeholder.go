package mapview

import (
	"sync"

	"bus-tracker/internal/geo"

	"github.com/google/uuid"
)

const MapErrorText = "Error loading map"

// Placeholder stands in for a widget that failed to initialize. Every call
// is accepted and dropped, so the tracker keeps running with nothing drawn.
type Placeholder struct {
	Reason error

	mu     sync.Mutex
	center geo.Point
	zoom   int
}

func NewPlaceholder(reason error, center geo.Point, zoom int) *Placeholder {
	return &Placeholder{Reason: reason, center: center, zoom: zoom}
}

func (p *Placeholder) Text() string { return MapErrorText }

func (p *Placeholder) SetCenter(c geo.Point) {
	p.mu.Lock()
	p.center = c
	p.mu.Unlock()
}

func (p *Placeholder) SetZoom(z int) {
	p.mu.Lock()
	p.zoom = z
	p.mu.Unlock()
}

func (p *Placeholder) View() (geo.Point, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.center, p.zoom
}

func (p *Placeholder) Project(geo.Point) Pixel { return Pixel{} }
func (p *Placeholder) SetStyle(Theme) {}

func (p *Placeholder) CreateMarker(opts MarkerOptions) Marker {
	return &detachedMarker{id: uuid.NewString(), pos: opts.Position}
}

func (p *Placeholder) CreateRouteRenderer(RouteStyle) RouteHandle {
	return detachedRoute(uuid.NewString())
}

func (p *Placeholder) AddOverlay(Overlay) {}
func (p *Placeholder) RemoveOverlay(Overlay) {}
func (p *Placeholder) DrawLabel(string, string, Pixel) {}
func (p *Placeholder) ShowStatus(Status) {}
func (p *Placeholder) SetNextStopLabel(string) {}

type detachedMarker struct {
	id string

	mu  sync.Mutex
	pos geo.Point
}

func (m *detachedMarker) ID() string { return m.id }

func (m *detachedMarker) Position() geo.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

func (m *detachedMarker) SetPosition(p geo.Point) {
	m.mu.Lock()
	m.pos = p
	m.mu.Unlock()
}

type detachedRoute string

func (r detachedRoute) ID() string { return string(r) }
func (detachedRoute) SetRoute(Route) {}
func (detachedRoute) Teardown() {}
