// Package routing computes road routes between stops using an OSRM server.
package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bus-tracker/internal/geo"
	"bus-tracker/internal/mapview"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const (
	DefaultProfile = "driving"
	DefaultTimeout = 10 * time.Second
)

var ErrNoRoute = errors.New("no route")

// Client implements mapview.Router against the OSRM route service.
type Client struct {
	baseURL    string
	profile    string
	httpClient *http.Client
}

func NewClient(baseURL, profile string, timeout time.Duration) *Client {
	if profile == "" {
		profile = DefaultProfile
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		profile:    profile,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64          `json:"distance"`
		Duration float64          `json:"duration"`
		Geometry geojson.Geometry `json:"geometry"`
	} `json:"routes"`
}

// RouteURL builds the request for origin → waypoints → destination.
func (c *Client) RouteURL(origin, destination geo.Point, waypoints []geo.Point) string {
	coords := make([]string, 0, len(waypoints)+2)
	coords = append(coords, coord(origin))
	for _, w := range waypoints {
		coords = append(coords, coord(w))
	}
	coords = append(coords, coord(destination))
	return fmt.Sprintf("%s/route/v1/%s/%s?overview=full&geometries=geojson",
		c.baseURL, c.profile, strings.Join(coords, ";"))
}

func coord(p geo.Point) string {
	return strconv.FormatFloat(p.Lng, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lat, 'f', 6, 64)
}

func (c *Client) ComputeRoute(ctx context.Context, origin, destination geo.Point, waypoints []geo.Point) (mapview.Route, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.RouteURL(origin, destination, waypoints), nil)
	if err != nil {
		return mapview.Route{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return mapview.Route{}, fmt.Errorf("route request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return mapview.Route{}, fmt.Errorf("read route response: %w", err)
	}

	var out osrmResponse
	if resp.StatusCode != http.StatusOK {
		// OSRM explains refusals in the body's code field.
		if json.Unmarshal(body, &out) == nil && out.Code != "" && out.Code != "Ok" {
			return mapview.Route{}, fmt.Errorf("%w: %s %s", ErrNoRoute, out.Code, out.Message)
		}
		return mapview.Route{}, fmt.Errorf("route request: HTTP %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return mapview.Route{}, fmt.Errorf("decode route response: %w", err)
	}
	if out.Code != "Ok" || len(out.Routes) == 0 {
		return mapview.Route{}, fmt.Errorf("%w: %s %s", ErrNoRoute, out.Code, out.Message)
	}

	best := out.Routes[0]
	line, ok := best.Geometry.Geometry().(orb.LineString)
	if !ok {
		return mapview.Route{}, fmt.Errorf("%w: unexpected geometry %s", ErrNoRoute, best.Geometry.Type)
	}
	return mapview.Route{
		Geometry:        line,
		DistanceMeters:  best.Distance,
		DurationSeconds: best.Duration,
	}, nil
}
