package render

import (
	"context"
	"errors"
	"sync"
	"testing"

	"bus-tracker/internal/geo"
	"bus-tracker/internal/mapview/mapviewtest"
	"bus-tracker/internal/route"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMetrics struct {
	mu       sync.Mutex
	rebuilds int
	results  map[string]int
}

func (f *fakeMetrics) RouteRebuildInc() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rebuilds++
}

func (f *fakeMetrics) SegmentResult(result string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.results == nil {
		f.results = make(map[string]int)
	}
	f.results[result]++
}

func (f *fakeMetrics) count(result string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.results[result]
}

var stops = []route.Stop{
	{Name: "GCUF Chiniot", Position: geo.Point{Lat: 31.6991, Lng: 72.9782}},
	{Name: "Chenab College", Position: geo.Point{Lat: 31.7180, Lng: 72.9760}},
	{Name: "Aqsa Chowk Rabwah", Position: geo.Point{Lat: 31.7529, Lng: 72.9115}},
	{Name: "Ahmad Nagar", Position: geo.Point{Lat: 31.7849, Lng: 72.8857}},
}

func TestPlan_FewerThanTwoStops(t *testing.T) {
	for _, n := range []int{0, 1} {
		for _, current := range []int{0, 1, 3} {
			st := route.State{Stops: stops[:n], CurrentIndex: current, ReturnLegVisible: true}
			assert.Empty(t, Plan(st), "stops=%d current=%d", n, current)
		}
	}
}

func TestPlan_SegmentCount(t *testing.T) {
	for current := 0; current < len(stops); current++ {
		st := route.State{Stops: stops, CurrentIndex: current, ReturnLegVisible: true}
		plan := Plan(st)
		require.Len(t, plan, (len(stops)-current-1)+1, "current=%d", current)

		ret := plan[len(plan)-1]
		assert.Equal(t, KindReturn, ret.Kind)
		assert.Equal(t, ReturnColor, ret.Color)
		assert.Equal(t, "Ahmad Nagar", ret.From)
		assert.Equal(t, "GCUF Chiniot", ret.To)

		st.ReturnLegVisible = false
		assert.Len(t, Plan(st), len(stops)-current-1)
	}
}

func TestPlan_PaletteByStopIndex(t *testing.T) {
	many := make([]route.Stop, 8)
	for i := range many {
		many[i] = route.Stop{Name: string(rune('A' + i)), Position: geo.Point{Lat: float64(i), Lng: float64(i)}}
	}
	plan := Plan(route.State{Stops: many, CurrentIndex: 2})
	require.Len(t, plan, 5)
	for _, seg := range plan {
		assert.Equal(t, Palette[seg.Index%len(Palette)], seg.Color)
		assert.Equal(t, KindForward, seg.Kind)
	}
	assert.Equal(t, Palette[0], plan[3].Color)
}

func TestRebuild_TearsDownPreviousSet(t *testing.T) {
	rec := mapviewtest.NewRecorder()
	router := &mapviewtest.Router{}
	m := &fakeMetrics{}
	r := New(rec, router, m)
	ctx := context.Background()

	first := r.Rebuild(ctx, route.State{Stops: stops})
	r.Wait()
	require.Len(t, first, 3)
	require.Len(t, rec.LiveRoutes(), 3)

	second := r.Rebuild(ctx, route.State{Stops: stops, CurrentIndex: 1})
	r.Wait()
	require.Len(t, second, 2)

	live := rec.LiveRoutes()
	require.Len(t, live, 2)
	for _, rt := range rec.Routes()[:3] {
		assert.True(t, rt.Torn())
	}
	for _, rt := range live {
		_, ok := rt.Route()
		assert.True(t, ok)
		assert.Equal(t, 6, rt.Style.Weight)
	}

	assert.Equal(t, second, r.Segments())
	assert.Equal(t, "Aqsa Chowk Rabwah", rec.NextStop())
	assert.Equal(t, 2, m.rebuilds)
	assert.Equal(t, 5, m.count(ResultOK))
	assert.Len(t, router.Calls(), 5)
}

func TestRebuild_ReturnLegStyle(t *testing.T) {
	rec := mapviewtest.NewRecorder()
	r := New(rec, &mapviewtest.Router{}, nil)

	segs := r.Rebuild(context.Background(), route.State{Stops: stops, CurrentIndex: 3, ReturnLegVisible: true})
	r.Wait()

	require.Len(t, segs, 1)
	live := rec.LiveRoutes()
	require.Len(t, live, 1)
	assert.Equal(t, ReturnColor, live[0].Style.Color)
	assert.Equal(t, 3, live[0].Style.Weight)
	assert.Equal(t, "GCUF Chiniot", rec.NextStop())
}

func TestRebuild_FailedSegmentIsDropped(t *testing.T) {
	rec := mapviewtest.NewRecorder()
	m := &fakeMetrics{}
	router := &mapviewtest.Router{Fail: func(origin, _ geo.Point) error {
		if origin == stops[1].Position {
			return errors.New("osrm: NoRoute")
		}
		return nil
	}}
	r := New(rec, router, m)

	segs := r.Rebuild(context.Background(), route.State{Stops: stops})
	r.Wait()

	require.Len(t, segs, 3)
	routes := rec.Routes()
	for i, rt := range routes {
		_, ok := rt.Route()
		assert.Equal(t, i != 1, ok, "segment %d", i)
	}
	assert.Equal(t, 1, m.count(ResultFailed))
	assert.Equal(t, 2, m.count(ResultOK))
}

func TestRebuild_LateResultsAreIgnored(t *testing.T) {
	rec := mapviewtest.NewRecorder()
	m := &fakeMetrics{}
	hold := make(chan struct{})
	r := New(rec, &mapviewtest.Router{Hold: hold}, m)
	ctx := context.Background()

	r.Rebuild(ctx, route.State{Stops: stops})
	r.Rebuild(ctx, route.State{Stops: stops, CurrentIndex: 2})
	close(hold)
	r.Wait()

	routes := rec.Routes()
	require.Len(t, routes, 4)
	for _, rt := range routes[:3] {
		_, ok := rt.Route()
		assert.False(t, ok)
	}
	_, ok := routes[3].Route()
	assert.True(t, ok)
	assert.Equal(t, 3, m.count(ResultStale))
	assert.Equal(t, 1, m.count(ResultOK))
}

func TestRebuild_ConcurrentRebuildsLeaveNoStaleRoute(t *testing.T) {
	rec := mapviewtest.NewRecorder()
	m := &fakeMetrics{}
	r := New(rec, &mapviewtest.Router{}, m)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		r.Rebuild(ctx, route.State{Stops: stops, CurrentIndex: i % 3})
	}
	r.Wait()

	for _, rt := range rec.Routes() {
		if rt.Torn() {
			continue
		}
		_, ok := rt.Route()
		assert.True(t, ok)
	}
	assert.Len(t, rec.LiveRoutes(), 2)
	assert.Equal(t, m.count(ResultOK)+m.count(ResultStale), len(rec.Routes()))
}

func TestRebuild_PassesViaPoints(t *testing.T) {
	via := []geo.Point{{Lat: 31.73, Lng: 72.95}}
	withVia := append([]route.Stop(nil), stops[:2]...)
	withVia[0].Via = via
	router := &mapviewtest.Router{}
	r := New(mapviewtest.NewRecorder(), router, nil)

	r.Rebuild(context.Background(), route.State{Stops: withVia})
	r.Wait()

	calls := router.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, via, calls[0].Waypoints)
}

func TestRebuild_NoSegmentsStillLabels(t *testing.T) {
	rec := mapviewtest.NewRecorder()
	r := New(rec, &mapviewtest.Router{}, nil)

	segs := r.Rebuild(context.Background(), route.State{Stops: stops[:1]})
	r.Wait()

	assert.Empty(t, segs)
	assert.Empty(t, rec.Routes())
	assert.Equal(t, route.EndOfRouteLabel, rec.NextStop())

	r.Rebuild(context.Background(), route.State{Stops: stops})
	r.Clear()
	r.Wait()
	assert.Empty(t, rec.LiveRoutes())
	assert.Empty(t, r.Segments())
}
