// Package animate glides a marker between observed positions.
package animate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"bus-tracker/internal/geo"
)

const (
	DefaultFrames        = 50
	DefaultFrameInterval = 16 * time.Millisecond
)

// Animation outcomes reported to Metrics.
const (
	OutcomeCompleted  = "completed"
	OutcomeSuperseded = "superseded"
	OutcomeCancelled  = "cancelled"
)

// Ticker is the frame clock an animation advances on.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type TickerFunc func() Ticker

type frameTicker struct{ t *time.Ticker }

func (f frameTicker) C() <-chan time.Time { return f.t.C }
func (f frameTicker) Stop()               { f.t.Stop() }

// NewFrameTicker returns a TickerFunc that fires every d, standing in for a
// display refresh.
func NewFrameTicker(d time.Duration) TickerFunc {
	if d <= 0 {
		d = DefaultFrameInterval
	}
	return func() Ticker { return frameTicker{t: time.NewTicker(d)} }
}

type Positioner interface {
	SetPosition(geo.Point)
}

type Metrics interface {
	AnimationDone(outcome string)
}

// Animator runs at most one interpolation at a time. Starting a new one
// bumps the generation, and an older loop exits on its next frame.
type Animator struct {
	frames    int
	newTicker TickerFunc
	m         Metrics

	gen atomic.Uint64
	wg  sync.WaitGroup
	// frameMu pairs the generation check with the write it guards.
	frameMu sync.Mutex
}

func New(frames int, newTicker TickerFunc, m Metrics) *Animator {
	if frames <= 0 {
		frames = DefaultFrames
	}
	if newTicker == nil {
		newTicker = NewFrameTicker(DefaultFrameInterval)
	}
	return &Animator{frames: frames, newTicker: newTicker, m: m}
}

func (a *Animator) FrameCount() int { return a.frames }

// AnimateTo moves target from from to to over the animator's frames, one
// step per tick. It returns immediately; the frames run in their own
// goroutine.
func (a *Animator) AnimateTo(ctx context.Context, target Positioner, from, to geo.Point) {
	gen := a.gen.Add(1)
	tk := a.newTicker()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer tk.Stop()
		for t := 1; t <= a.frames; t++ {
			select {
			case <-ctx.Done():
				a.done(OutcomeCancelled)
				return
			case <-tk.C():
			}
			if !a.frame(gen, target, geo.Lerp(from, to, float64(t)/float64(a.frames))) {
				a.done(OutcomeSuperseded)
				return
			}
		}
		a.done(OutcomeCompleted)
	}()
}

// frame moves target to p unless generation gen has been superseded.
func (a *Animator) frame(gen uint64, target Positioner, p geo.Point) bool {
	a.frameMu.Lock()
	defer a.frameMu.Unlock()
	if a.gen.Load() != gen {
		return false
	}
	target.SetPosition(p)
	return true
}

// Cancel stops whatever interpolation is in flight at its next frame.
func (a *Animator) Cancel() { a.gen.Add(1) }

// Wait blocks until every started interpolation has exited.
func (a *Animator) Wait() { a.wg.Wait() }

func (a *Animator) done(outcome string) {
	if a.m != nil {
		a.m.AnimationDone(outcome)
	}
}

// Frames lists the n positions an interpolation from from to to visits.
func Frames(from, to geo.Point, n int) []geo.Point {
	out := make([]geo.Point, 0, n)
	for t := 1; t <= n; t++ {
		out = append(out, geo.Lerp(from, to, float64(t)/float64(n)))
	}
	return out
}
