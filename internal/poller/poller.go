// Package poller fetches the vehicle position on a fixed interval.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"bus-tracker/internal/geo"

	"github.com/rs/zerolog/log"
)

const (
	DefaultInterval = 5 * time.Second
	DefaultTimeout  = 4 * time.Second

	maxBody = 1 << 20
)

var (
	ErrTransport = errors.New("vehicle endpoint unreachable")
	ErrPayload   = errors.New("vehicle payload invalid")
)

// Poll results reported to Metrics.
const (
	ResultOK        = "ok"
	ResultTransport = "transport"
	ResultPayload   = "payload"
)

// Sample is one successfully parsed observation. RawLat and RawLng keep the
// coordinates as the endpoint sent them.
type Sample struct {
	Position   geo.Point `json:"position"`
	RawLat     string    `json:"rawLat"`
	RawLng     string    `json:"rawLng"`
	ReceivedAt time.Time `json:"receivedAt"`
}

type Handler interface {
	OnSample(ctx context.Context, s Sample)
	OnFailure(ctx context.Context, err error)
}

type Metrics interface {
	PollObserve(result string, d time.Duration)
}

type Poller struct {
	endpoint string
	interval time.Duration
	client   *http.Client
	h        Handler
	m        Metrics

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(endpoint string, interval, timeout time.Duration, h Handler, m Metrics) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Poller{
		endpoint: endpoint,
		interval: interval,
		client:   &http.Client{Timeout: timeout},
		h:        h,
		m:        m,
	}
}

func (p *Poller) Interval() time.Duration { return p.interval }

// Start launches Run in the background. Stop cancels it and waits.
func (p *Poller) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	p.cancel = cancel
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.Run(ctx)
	}()
}

func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// Run polls until ctx is cancelled: one fetch right away, then one per
// interval. Failures never stop the loop.
func (p *Poller) Run(ctx context.Context) {
	p.poll(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	start := time.Now()
	s, err := p.FetchOnce(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		result := ResultTransport
		if errors.Is(err, ErrPayload) {
			result = ResultPayload
		}
		p.observe(result, time.Since(start))
		log.Warn().Err(err).Str("endpoint", p.endpoint).Msg("vehicle poll failed")
		if p.h != nil {
			p.h.OnFailure(ctx, err)
		}
		return
	}
	p.observe(ResultOK, time.Since(start))
	if p.h != nil {
		p.h.OnSample(ctx, s)
	}
}

func (p *Poller) observe(result string, d time.Duration) {
	if p.m != nil {
		p.m.PollObserve(result, d)
	}
}

// FetchOnce performs a single GET against the endpoint.
func (p *Poller) FetchOnce(ctx context.Context) (Sample, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return Sample{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Sample{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Sample{}, fmt.Errorf("%w: HTTP %d", ErrTransport, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return Sample{}, fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}

	s, err := ParsePayload(body)
	if err != nil {
		return Sample{}, err
	}
	s.ReceivedAt = time.Now()
	return s, nil
}

type payload struct {
	V1 json.RawMessage `json:"V1"`
	V2 json.RawMessage `json:"V2"`
}

// ParsePayload reads {"V1": lat, "V2": lng}. Each value may be a JSON
// number or a numeric string.
func ParsePayload(body []byte) (Sample, error) {
	var pl payload
	if err := json.Unmarshal(body, &pl); err != nil {
		return Sample{}, fmt.Errorf("%w: %w", ErrPayload, err)
	}
	lat, rawLat, err := numberLike("V1", pl.V1)
	if err != nil {
		return Sample{}, err
	}
	lng, rawLng, err := numberLike("V2", pl.V2)
	if err != nil {
		return Sample{}, err
	}
	pos := geo.Point{Lat: lat, Lng: lng}
	if !geo.Valid(pos) {
		return Sample{}, fmt.Errorf("%w: position %s out of range", ErrPayload, pos)
	}
	return Sample{Position: pos, RawLat: rawLat, RawLng: rawLng}, nil
}

func numberLike(field string, raw json.RawMessage) (float64, string, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return 0, "", fmt.Errorf("%w: %s missing", ErrPayload, field)
	}
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, "", fmt.Errorf("%w: %s: %w", ErrPayload, field, err)
		}
		text = strings.TrimSpace(s)
		if text == "" {
			return 0, "", fmt.Errorf("%w: %s missing", ErrPayload, field)
		}
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %s is not a number", ErrPayload, field)
	}
	return v, text, nil
}
