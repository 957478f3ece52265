// Package admin serves the tracker's control API: the read-only views the
// page polls, the user controls, and password-gated stop editing.
package admin

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"bus-tracker/internal/config"
	"bus-tracker/internal/geo"
	"bus-tracker/internal/mapview"
	"bus-tracker/internal/render"
	"bus-tracker/internal/route"
	"bus-tracker/internal/session"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

const PasswordHeader = "X-Admin-Password"

// Tracker is the session surface the API drives.
type Tracker interface {
	Status() mapview.Status
	State() route.State
	Segments() []render.Segment
	CenterOnVehicle(zoom int) (geo.Point, error)
	Theme() mapview.Theme
	ToggleTheme(ctx context.Context) (mapview.Theme, error)
	AddStop(s route.Stop) error
	RemoveStop(i int) (route.Stop, error)
	ResetLap() route.State
}

type APIResponse[T any] struct {
	Data T `json:"data"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type StatusView struct {
	mapview.Status
	LocationText string `json:"locationText"`
}

type StopView struct {
	Index int `json:"index"`
	route.Stop
}

type RouteView struct {
	CurrentIndex     int              `json:"currentIndex"`
	ReturnLegVisible bool             `json:"returnLegVisible"`
	NextStop         string           `json:"nextStop"`
	Segments         []render.Segment `json:"segments"`
}

type ThemeView struct {
	Theme mapview.Theme `json:"theme"`
}

type centerRequest struct {
	Zoom int `json:"zoom"`
}

type loginRequest struct {
	Password string `json:"password"`
}

type stopRequest struct {
	Name string      `json:"name"`
	Lat  float64     `json:"lat"`
	Lng  float64     `json:"lng"`
	Via  []geo.Point `json:"via,omitempty"`
}

type Handler struct {
	t        Tracker
	password string
	root     http.Handler
}

// NewHandler builds the API router. An empty password disables every
// admin route.
func NewHandler(t Tracker, password string) *Handler {
	h := &Handler{t: t, password: password}

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", h.handleStatus).Methods("GET")
	api.HandleFunc("/stops", h.handleStops).Methods("GET")
	api.HandleFunc("/route", h.handleRoute).Methods("GET")
	api.HandleFunc("/center", h.handleCenter).Methods("POST")
	api.HandleFunc("/theme", h.handleTheme).Methods("GET")
	api.HandleFunc("/theme/toggle", h.handleToggleTheme).Methods("POST")
	api.HandleFunc("/admin/login", h.handleLogin).Methods("POST")

	gated := api.PathPrefix("/admin").Subrouter()
	gated.Use(h.requireAdmin)
	gated.HandleFunc("/stops", h.handleAddStop).Methods("POST")
	gated.HandleFunc("/stops/export", h.handleExport).Methods("GET")
	gated.HandleFunc("/stops/{index}", h.handleRemoveStop).Methods("DELETE")
	gated.HandleFunc("/reset", h.handleReset).Methods("POST")

	h.root = corsJSON(r)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) { h.root.ServeHTTP(w, r) }

// corsJSON wraps the whole router so preflight requests are answered
// before route matching.
func corsJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+PasswordHeader)
		w.Header().Set("Content-Type", "application/json")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *Handler) checkPassword(got string) bool {
	if h.password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.password)) == 1
}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.checkPassword(r.Header.Get(PasswordHeader)) {
			writeError(w, http.StatusUnauthorized, "admin password required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("write response")
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := h.t.Status()
	writeJSON(w, http.StatusOK, APIResponse[StatusView]{Data: StatusView{Status: st, LocationText: st.LocationText()}})
}

func (h *Handler) handleStops(w http.ResponseWriter, r *http.Request) {
	st := h.t.State()
	views := make([]StopView, 0, len(st.Stops))
	for i, s := range st.Stops {
		views = append(views, StopView{Index: i, Stop: s})
	}
	writeJSON(w, http.StatusOK, APIResponse[[]StopView]{Data: views})
}

func (h *Handler) handleRoute(w http.ResponseWriter, r *http.Request) {
	st := h.t.State()
	segs := h.t.Segments()
	if segs == nil {
		segs = []render.Segment{}
	}
	writeJSON(w, http.StatusOK, APIResponse[RouteView]{Data: RouteView{
		CurrentIndex:     st.CurrentIndex,
		ReturnLegVisible: st.ReturnLegVisible,
		NextStop:         st.NextStopName(),
		Segments:         segs,
	}})
}

func (h *Handler) handleCenter(w http.ResponseWriter, r *http.Request) {
	var req centerRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
	}
	pos, err := h.t.CenterOnVehicle(req.Zoom)
	if errors.Is(err, session.ErrNoVehicle) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse[geo.Point]{Data: pos})
}

func (h *Handler) handleTheme(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse[ThemeView]{Data: ThemeView{Theme: h.t.Theme()}})
}

func (h *Handler) handleToggleTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := h.t.ToggleTheme(r.Context())
	if err != nil {
		log.Warn().Err(err).Msg("theme not persisted")
	}
	writeJSON(w, http.StatusOK, APIResponse[ThemeView]{Data: ThemeView{Theme: theme}})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if !h.checkPassword(req.Password) {
		log.Warn().Str("remote", r.RemoteAddr).Msg("admin login rejected")
		writeError(w, http.StatusUnauthorized, "wrong password")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAddStop(w http.ResponseWriter, r *http.Request) {
	var req stopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	stop := route.Stop{Name: req.Name, Position: geo.Point{Lat: req.Lat, Lng: req.Lng}, Via: req.Via}
	if err := h.t.AddStop(stop); err != nil {
		if errors.Is(err, route.ErrInvalidStop) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	st := h.t.State()
	writeJSON(w, http.StatusCreated, APIResponse[StopView]{Data: StopView{Index: st.LastIndex(), Stop: stop}})
}

func (h *Handler) handleRemoveStop(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer")
		return
	}
	removed, err := h.t.RemoveStop(i)
	if errors.Is(err, route.ErrStopIndex) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse[StopView]{Data: StopView{Index: i, Stop: removed}})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := config.MarshalStops(h.t.State().Stops)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Content-Disposition", `attachment; filename="stops.yml"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	st := h.t.ResetLap()
	writeJSON(w, http.StatusOK, APIResponse[RouteView]{Data: RouteView{
		CurrentIndex:     st.CurrentIndex,
		ReturnLegVisible: st.ReturnLegVisible,
		NextStop:         st.NextStopName(),
		Segments:         h.t.Segments(),
	}})
}
