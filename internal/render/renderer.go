// Package render keeps the drawn route in step with the tracker's progress.
package render

import (
	"context"
	"sync"

	"bus-tracker/internal/geo"
	"bus-tracker/internal/mapview"
	"bus-tracker/internal/route"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

type Kind string

const (
	KindForward Kind = "forward"
	KindReturn  Kind = "return"
)

// Palette colors forward segments by stop index.
var Palette = []string{"#2980b9", "#27ae60", "#8e44ad", "#e67e22", "#c0392b"}

// ReturnColor is reserved for the segment from the last stop back to the first.
const ReturnColor = "#7f8c8d"

var (
	forwardStyle = mapview.RouteStyle{Weight: 6, Opacity: 0.8}
	returnStyle  = mapview.RouteStyle{Color: ReturnColor, Weight: 3, Opacity: 0.7}
)

// Segment results reported to Metrics.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
	ResultStale  = "stale"
)

// Segment is one requested leg of the drawn route.
type Segment struct {
	HandleID    string      `json:"handleId,omitempty"`
	Kind        Kind        `json:"kind"`
	Index       int         `json:"index"`
	From        string      `json:"from"`
	To          string      `json:"to"`
	Color       string      `json:"color"`
	Origin      geo.Point   `json:"origin"`
	Destination geo.Point   `json:"destination"`
	Waypoints   []geo.Point `json:"waypoints,omitempty"`
}

func (s Segment) style() mapview.RouteStyle {
	if s.Kind == KindReturn {
		return returnStyle
	}
	st := forwardStyle
	st.Color = s.Color
	return st
}

type Metrics interface {
	RouteRebuildInc()
	SegmentResult(result string)
}

// Renderer owns the set of rendered segments. Every Rebuild replaces the
// whole set; route requests from earlier rebuilds may still complete but
// land on handles that were already torn down and are ignored.
type Renderer struct {
	widget mapview.Map
	router mapview.Router
	m      Metrics

	mu       sync.Mutex
	live     map[string]mapview.RouteHandle
	segments []Segment
	pending  map[chan struct{}]struct{}
}

func New(widget mapview.Map, router mapview.Router, m Metrics) *Renderer {
	return &Renderer{
		widget:  widget,
		router:  router,
		m:       m,
		live:    make(map[string]mapview.RouteHandle),
		pending: make(map[chan struct{}]struct{}),
	}
}

// Plan lists the segments a state calls for without touching the widget.
func Plan(st route.State) []Segment {
	n := len(st.Stops)
	if n < 2 {
		return nil
	}
	var out []Segment
	for i := max(st.CurrentIndex, 0); i <= n-2; i++ {
		from, to := st.Stops[i], st.Stops[i+1]
		out = append(out, Segment{
			Kind:        KindForward,
			Index:       i,
			From:        from.Name,
			To:          to.Name,
			Color:       Palette[i%len(Palette)],
			Origin:      from.Position,
			Destination: to.Position,
			Waypoints:   append([]geo.Point(nil), from.Via...),
		})
	}
	if st.ReturnLegVisible {
		last, first := st.Stops[n-1], st.Stops[0]
		out = append(out, Segment{
			Kind:        KindReturn,
			Index:       n - 1,
			From:        last.Name,
			To:          first.Name,
			Color:       ReturnColor,
			Origin:      last.Position,
			Destination: first.Position,
			Waypoints:   append([]geo.Point(nil), last.Via...),
		})
	}
	return out
}

// Rebuild tears down every rendered segment and requests the ones st calls
// for. Requests run in the background; the returned set carries the handle
// each of them is bound to.
func (r *Renderer) Rebuild(ctx context.Context, st route.State) []Segment {
	plan := Plan(st)

	r.mu.Lock()
	r.teardownLocked()
	handles := make([]mapview.RouteHandle, len(plan))
	for i := range plan {
		h := r.widget.CreateRouteRenderer(plan[i].style())
		plan[i].HandleID = h.ID()
		r.live[h.ID()] = h
		handles[i] = h
	}
	r.segments = plan
	r.mu.Unlock()

	r.widget.SetNextStopLabel(st.NextStopName())
	if r.m != nil {
		r.m.RouteRebuildInc()
	}
	log.Debug().
		Int("current_index", st.CurrentIndex).
		Bool("return_leg", st.ReturnLegVisible).
		Int("segments", len(plan)).
		Msg("route rebuilt")

	if len(plan) > 0 {
		r.dispatch(ctx, plan, handles)
	}
	return append([]Segment(nil), plan...)
}

func (r *Renderer) dispatch(ctx context.Context, plan []Segment, handles []mapview.RouteHandle) {
	p := pool.New()
	for i := range plan {
		seg, h := plan[i], handles[i]
		p.Go(func() {
			r.request(ctx, seg, h)
		})
	}

	done := make(chan struct{})
	r.mu.Lock()
	r.pending[done] = struct{}{}
	r.mu.Unlock()
	go func() {
		p.Wait()
		r.mu.Lock()
		delete(r.pending, done)
		r.mu.Unlock()
		close(done)
	}()
}

func (r *Renderer) request(ctx context.Context, seg Segment, h mapview.RouteHandle) {
	if r.router == nil {
		r.result(ResultFailed)
		return
	}
	rt, err := r.router.ComputeRoute(ctx, seg.Origin, seg.Destination, seg.Waypoints)
	if err != nil {
		log.Debug().Err(err).Str("from", seg.From).Str("to", seg.To).Msg("segment dropped")
		r.result(ResultFailed)
		return
	}

	// teardownLocked runs under r.mu too.
	r.mu.Lock()
	_, ok := r.live[h.ID()]
	if ok {
		h.SetRoute(rt)
	}
	r.mu.Unlock()
	if !ok {
		r.result(ResultStale)
		return
	}
	r.result(ResultOK)
}

func (r *Renderer) result(res string) {
	if r.m != nil {
		r.m.SegmentResult(res)
	}
}

func (r *Renderer) teardownLocked() {
	for id, h := range r.live {
		h.Teardown()
		delete(r.live, id)
	}
	r.segments = nil
}

// Clear removes every rendered segment.
func (r *Renderer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teardownLocked()
}

// Segments returns the segment set of the latest rebuild.
func (r *Renderer) Segments() []Segment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Segment(nil), r.segments...)
}

// Wait blocks until every route request issued so far has settled.
func (r *Renderer) Wait() {
	r.mu.Lock()
	chans := make([]chan struct{}, 0, len(r.pending))
	for ch := range r.pending {
		chans = append(chans, ch)
	}
	r.mu.Unlock()
	for _, ch := range chans {
		<-ch
	}
}
