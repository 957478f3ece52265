package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bus-tracker/internal/animate"
	"bus-tracker/internal/config"
	"bus-tracker/internal/geo"
	"bus-tracker/internal/mapview"
	"bus-tracker/internal/mapview/mapviewtest"
	"bus-tracker/internal/poller"
	"bus-tracker/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "chenab-2026"

func newTestServer(t *testing.T, password string) (*httptest.Server, *session.Session, *mapviewtest.Recorder) {
	t.Helper()
	rec := mapviewtest.NewRecorder()
	s := session.New(config.DefaultStops(), session.Deps{
		Widget:   rec,
		Router:   &mapviewtest.Router{},
		Animator: animate.New(animate.DefaultFrames, animate.NewFrameTicker(time.Millisecond), nil),
	}, session.Options{Center: geo.Point{Lat: 31.7209, Lng: 72.9780}, Zoom: 12})
	s.Start(context.Background())
	t.Cleanup(s.Close)

	srv := httptest.NewServer(NewHandler(s, password))
	t.Cleanup(srv.Close)
	return srv, s, rec
}

func do(t *testing.T, method, url, body string, header map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out APIResponse[T]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out.Data
}

var admin = map[string]string{PasswordHeader: secret}

func TestReadOnlyViews(t *testing.T) {
	srv, s, _ := newTestServer(t, secret)

	resp := do(t, "GET", srv.URL+"/api/status", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	status := decode[StatusView](t, resp)
	assert.Equal(t, mapview.StatusConnecting, status.Label)
	assert.Equal(t, mapview.WaitingForData, status.LocationText)

	resp = do(t, "GET", srv.URL+"/api/stops", "", nil)
	stops := decode[[]StopView](t, resp)
	require.Len(t, stops, 4)
	assert.Equal(t, 2, stops[2].Index)
	assert.Equal(t, "Aqsa Chowk Rabwah", stops[2].Name)

	s.OnSample(context.Background(), poller.Sample{Position: geo.Point{Lat: 31.7180, Lng: 72.9760}, RawLat: "31.7180", RawLng: "72.9760"})
	s.Wait()

	resp = do(t, "GET", srv.URL+"/api/route", "", nil)
	rv := decode[RouteView](t, resp)
	assert.Equal(t, 1, rv.CurrentIndex)
	assert.Equal(t, "Aqsa Chowk Rabwah", rv.NextStop)
	assert.Len(t, rv.Segments, 2)

	status = decode[StatusView](t, do(t, "GET", srv.URL+"/api/status", "", nil))
	assert.Equal(t, "31.7180, 72.9760", status.LocationText)
}

func TestCenter(t *testing.T) {
	srv, s, rec := newTestServer(t, secret)

	resp := do(t, "POST", srv.URL+"/api/center", "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	bus := geo.Point{Lat: 31.7350, Lng: 72.9450}
	s.OnSample(context.Background(), poller.Sample{Position: bus})
	s.Wait()

	resp = do(t, "POST", srv.URL+"/api/center", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, bus, decode[geo.Point](t, resp))
	_, zoom := rec.View()
	assert.Equal(t, session.DefaultFocusZoom, zoom)

	resp = do(t, "POST", srv.URL+"/api/center", `{"zoom": 15}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, zoom = rec.View()
	assert.Equal(t, 15, zoom)

	resp = do(t, "POST", srv.URL+"/api/center", `{zoom`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTheme(t *testing.T) {
	srv, _, rec := newTestServer(t, secret)

	assert.Equal(t, mapview.ThemeLight, decode[ThemeView](t, do(t, "GET", srv.URL+"/api/theme", "", nil)).Theme)

	resp := do(t, "POST", srv.URL+"/api/theme/toggle", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, mapview.ThemeDark, decode[ThemeView](t, resp).Theme)
	assert.Equal(t, mapview.ThemeDark, rec.Theme())
}

func TestLogin(t *testing.T) {
	srv, _, _ := newTestServer(t, secret)

	resp := do(t, "POST", srv.URL+"/api/admin/login", `{"password": "`+secret+`"}`, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, "POST", srv.URL+"/api/admin/login", `{"password": "guess"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, "POST", srv.URL+"/api/admin/login", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminDisabledWithoutPassword(t *testing.T) {
	srv, _, _ := newTestServer(t, "")

	resp := do(t, "POST", srv.URL+"/api/admin/login", `{"password": ""}`, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, "POST", srv.URL+"/api/admin/reset", "", map[string]string{PasswordHeader: ""})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStopEditing(t *testing.T) {
	srv, s, _ := newTestServer(t, secret)
	body := `{"name": "Rabwah Depot", "lat": 31.79, "lng": 72.88}`

	resp := do(t, "POST", srv.URL+"/api/admin/stops", body, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, "POST", srv.URL+"/api/admin/stops", body, admin)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	added := decode[StopView](t, resp)
	assert.Equal(t, 4, added.Index)
	assert.Len(t, s.State().Stops, 5)

	resp = do(t, "POST", srv.URL+"/api/admin/stops", `{"name": "Nowhere", "lat": 120, "lng": 0}`, admin)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, "DELETE", srv.URL+"/api/admin/stops/1", "", admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Chenab College", decode[StopView](t, resp).Name)

	resp = do(t, "DELETE", srv.URL+"/api/admin/stops/42", "", admin)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, "DELETE", srv.URL+"/api/admin/stops/first", "", admin)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, "GET", srv.URL+"/api/admin/stops/export", "", admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	exported, err := config.ParseStops([]byte(buf.String()))
	require.NoError(t, err)
	assert.Equal(t, s.State().Stops, exported)
}

func TestReset(t *testing.T) {
	srv, s, _ := newTestServer(t, secret)
	s.OnSample(context.Background(), poller.Sample{Position: geo.Point{Lat: 31.7529, Lng: 72.9115}})
	s.Wait()
	require.Equal(t, 2, s.State().CurrentIndex)

	resp := do(t, "POST", srv.URL+"/api/admin/reset", "", admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rv := decode[RouteView](t, resp)
	assert.Equal(t, 0, rv.CurrentIndex)
	assert.Equal(t, "Chenab College", rv.NextStop)
	assert.Len(t, rv.Segments, 3)
}

func TestPreflight(t *testing.T) {
	srv, _, _ := newTestServer(t, secret)
	resp := do(t, "OPTIONS", srv.URL+"/api/status", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
