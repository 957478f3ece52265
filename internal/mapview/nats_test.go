package mapview

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"bus-tracker/internal/geo"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	subject string
	body    map[string]any
}

type fakePublisher struct {
	mu   sync.Mutex
	err  error
	msgs []sent
}

func (p *fakePublisher) Publish(subject string, v any) error {
	if p.err != nil {
		return p.err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var body map[string]any
	if err := json.Unmarshal(b, &body); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, sent{subject: subject, body: body})
	return nil
}

func (p *fakePublisher) on(subject string) []map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []map[string]any
	for _, m := range p.msgs {
		if m.subject == subject {
			out = append(out, m.body)
		}
	}
	return out
}

var chiniot = geo.Point{Lat: 31.7209, Lng: 72.9780}

func newTestMap(t *testing.T) (*NATSMap, *fakePublisher) {
	t.Helper()
	pub := &fakePublisher{}
	m, err := NewNATSMap(pub, NATSOptions{SubjectPrefix: "bus", Center: chiniot, Zoom: 12, Width: 800, Height: 600})
	require.NoError(t, err)
	return m, pub
}

func TestNewNATSMap(t *testing.T) {
	_, err := NewNATSMap(nil, NATSOptions{})
	require.Error(t, err)

	_, err = NewNATSMap(&fakePublisher{err: errors.New("nats: connection closed")}, NATSOptions{})
	require.Error(t, err)

	_, pub := newTestMap(t)
	views := pub.on("bus.view")
	require.Len(t, views, 1)
	assert.Equal(t, "init", views[0]["op"])
	assert.EqualValues(t, 12, views[0]["zoom"])
}

func TestNATSMap_Marker(t *testing.T) {
	m, pub := newTestMap(t)

	mk := m.CreateMarker(MarkerOptions{Position: chiniot, Title: "University Bus"})
	next := geo.Point{Lat: 31.7180, Lng: 72.9760}
	mk.SetPosition(next)

	assert.Equal(t, next, mk.Position())
	msgs := pub.on("bus.marker")
	require.Len(t, msgs, 2)
	assert.Equal(t, "create", msgs[0]["op"])
	assert.Equal(t, "University Bus", msgs[0]["options"].(map[string]any)["title"])
	assert.Equal(t, "move", msgs[1]["op"])
	assert.Equal(t, mk.ID(), msgs[1]["id"])
}

func TestNATSMap_RouteHandle(t *testing.T) {
	m, pub := newTestMap(t)

	h := m.CreateRouteRenderer(RouteStyle{Color: "#2980b9", Weight: 6, Opacity: 0.8})
	h.SetRoute(Route{Geometry: orb.LineString{{72.97, 31.69}, {72.97, 31.71}}, DistanceMeters: 2200})
	h.Teardown()
	h.Teardown()
	h.SetRoute(Route{Geometry: orb.LineString{{72.97, 31.69}, {72.98, 31.72}}})

	msgs := pub.on("bus.route")
	require.Len(t, msgs, 2)
	assert.Equal(t, "set", msgs[0]["op"])
	assert.Equal(t, "LineString", msgs[0]["geometry"].(map[string]any)["type"])
	assert.Equal(t, "#2980b9", msgs[0]["style"].(map[string]any)["color"])
	assert.Equal(t, "teardown", msgs[1]["op"])
	assert.Equal(t, h.ID(), msgs[1]["id"])
}

func TestNATSMap_RouteTeardownIsFinal(t *testing.T) {
	m, pub := newTestMap(t)
	rt := Route{Geometry: orb.LineString{{72.97, 31.69}, {72.97, 31.71}}}

	handles := make([]RouteHandle, 200)
	var wg sync.WaitGroup
	for i := range handles {
		h := m.CreateRouteRenderer(RouteStyle{Color: "#27ae60"})
		handles[i] = h
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.SetRoute(rt)
		}()
		go func() {
			defer wg.Done()
			h.Teardown()
		}()
	}
	wg.Wait()

	lastOp := make(map[any]any)
	for _, msg := range pub.on("bus.route") {
		lastOp[msg["id"]] = msg["op"]
	}
	for _, h := range handles {
		assert.Equal(t, "teardown", lastOp[h.ID()], "handle %s", h.ID())
	}
}

func TestNATSMap_LabelsFollowTheView(t *testing.T) {
	m, pub := newTestMap(t)

	l := NewLabel("Chenab College", geo.Point{Lat: 31.7180, Lng: 72.9760})
	l.Attach(m)
	first := l.Position()

	m.SetCenter(l.Anchor())
	assert.InDelta(t, 400, l.Position().X, 1e-6)
	assert.InDelta(t, 300, l.Position().Y, 1e-6)
	assert.NotEqual(t, first, l.Position())

	l.Detach()
	l.Detach()

	msgs := pub.on("bus.label")
	require.Len(t, msgs, 3)
	assert.Equal(t, "draw", msgs[0]["op"])
	assert.Equal(t, "Chenab College", msgs[0]["text"])
	assert.Equal(t, "draw", msgs[1]["op"])
	assert.Equal(t, "remove", msgs[2]["op"])
}

func TestNATSMap_StatusAndStyle(t *testing.T) {
	m, pub := newTestMap(t)

	m.ShowStatus(Status{Label: StatusConnecting, UpdatedAt: time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)})
	m.SetStyle(ThemeDark)
	m.SetNextStopLabel("Aqsa Chowk Rabwah")

	status := pub.on("bus.status")
	require.Len(t, status, 1)
	assert.Equal(t, WaitingForData, status[0]["locationText"])
	assert.Equal(t, "09:30:00", status[0]["updatedText"])

	style := pub.on("bus.style")
	require.Len(t, style, 1)
	assert.Equal(t, "dark", style[0]["theme"])
	assert.NotEmpty(t, style[0]["rules"])

	assert.Equal(t, "Aqsa Chowk Rabwah", pub.on("bus.nextstop")[0]["name"])
}

func TestWorldPixel(t *testing.T) {
	origin := WorldPixel(geo.Point{}, 0)
	assert.InDelta(t, 128, origin.X, 1e-6)
	assert.InDelta(t, 128, origin.Y, 1e-6)

	east := WorldPixel(geo.Point{Lat: 0, Lng: 90}, 1)
	assert.InDelta(t, 384, east.X, 1e-6)

	north := WorldPixel(geo.Point{Lat: 45, Lng: 0}, 0)
	assert.Less(t, north.Y, 128.0)
}

func TestPlaceholder(t *testing.T) {
	p := NewPlaceholder(errors.New("nats: no servers available"), chiniot, 12)

	mk := p.CreateMarker(MarkerOptions{Position: chiniot})
	mk.SetPosition(geo.Point{Lat: 1, Lng: 2})
	assert.Equal(t, geo.Point{Lat: 1, Lng: 2}, mk.Position())

	h := p.CreateRouteRenderer(RouteStyle{})
	assert.NotEmpty(t, h.ID())
	h.SetRoute(Route{})
	h.Teardown()

	p.SetZoom(17)
	_, zoom := p.View()
	assert.Equal(t, 17, zoom)
	assert.Equal(t, MapErrorText, p.Text())
}

func TestThemeAndStatus(t *testing.T) {
	assert.Equal(t, ThemeDark, ThemeLight.Toggle())
	assert.Equal(t, ThemeLight, ThemeDark.Toggle())
	assert.Equal(t, ThemeLight, ParseTheme("sepia"))
	assert.Nil(t, StyleRules(ThemeLight))

	s := Status{Active: true, RawLat: "31.7180", RawLng: "72.9760"}
	assert.Equal(t, "31.7180, 72.9760", s.LocationText())
}
