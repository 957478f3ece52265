// Package mapview describes the map widget the tracker drives. The widget
// itself lives outside this service; implementations translate calls into
// widget commands or drop them.
package mapview

import (
	"context"
	"strconv"
	"time"

	"bus-tracker/internal/geo"

	"github.com/paulmach/orb"
)

type Pixel struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type MarkerOptions struct {
	Position  geo.Point `json:"position"`
	IconURL   string    `json:"iconUrl,omitempty"`
	IconSize  int       `json:"iconSize,omitempty"`
	Title     string    `json:"title,omitempty"`
	InfoHTML  string    `json:"infoHtml,omitempty"`
	Draggable bool      `json:"draggable,omitempty"`
}

// Marker is a point drawn on the map. Implementations must be safe for
// concurrent use since animation frames move markers from their own
// goroutine.
type Marker interface {
	ID() string
	SetPosition(geo.Point)
	Position() geo.Point
}

type RouteStyle struct {
	Color   string  `json:"color"`
	Weight  int     `json:"weight"`
	Opacity float64 `json:"opacity"`
}

// Route is a computed path between two points.
type Route struct {
	Geometry        orb.LineString
	DistanceMeters  float64
	DurationSeconds float64
}

// RouteHandle is a pre-allocated slot for one rendered route. A handle that
// has been torn down must ignore further SetRoute calls.
type RouteHandle interface {
	ID() string
	SetRoute(Route)
	Teardown()
}

type Router interface {
	ComputeRoute(ctx context.Context, origin, destination geo.Point, waypoints []geo.Point) (Route, error)
}

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

func ParseTheme(s string) Theme {
	if Theme(s) == ThemeDark {
		return ThemeDark
	}
	return ThemeLight
}

const (
	StatusActive     = "Active"
	StatusConnecting = "Connecting..."
	WaitingForData   = "Waiting for data..."
)

// Status is the sidebar card describing the vehicle feed.
type Status struct {
	Active    bool       `json:"active"`
	Label     string     `json:"label"`
	UpdatedAt time.Time  `json:"updatedAt"`
	Location  *geo.Point `json:"location,omitempty"`
	RawLat    string     `json:"rawLat,omitempty"`
	RawLng    string     `json:"rawLng,omitempty"`
}

// LocationText renders the location line of the status card.
func (s Status) LocationText() string {
	if !s.Active {
		return WaitingForData
	}
	if s.RawLat == "" && s.Location != nil {
		return strconv.FormatFloat(s.Location.Lat, 'f', -1, 64) + ", " + strconv.FormatFloat(s.Location.Lng, 'f', -1, 64)
	}
	return s.RawLat + ", " + s.RawLng
}

// Overlay is a geo-anchored element positioned in screen space.
type Overlay interface {
	ID() string
	Anchor() geo.Point
	Attach(Map)
	Reposition(Pixel)
	Detach()
}

type Map interface {
	SetCenter(geo.Point)
	SetZoom(int)
	View() (center geo.Point, zoom int)
	Project(geo.Point) Pixel
	SetStyle(Theme)

	CreateMarker(MarkerOptions) Marker
	CreateRouteRenderer(RouteStyle) RouteHandle

	AddOverlay(Overlay)
	RemoveOverlay(Overlay)
	DrawLabel(id, text string, at Pixel)

	ShowStatus(Status)
	SetNextStopLabel(string)
}
