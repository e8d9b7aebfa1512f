package admissions_api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/kidzo/gatesync/internal/models"
	"github.com/kidzo/gatesync/internal/notify"
	"github.com/kidzo/gatesync/internal/services/admissions"
	"github.com/kidzo/gatesync/internal/services/sessions"
)

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type ConfigStore interface {
	GetTerminalConfig(ctx context.Context, hostname string) (*models.TerminalConfig, error)
	UpsertTerminalConfig(ctx context.Context, hostname string, cfg json.RawMessage, publish bool) (*models.TerminalConfig, error)
}

type API struct {
	admissions *admissions.Service
	sessions   *sessions.Service
	reconciler *sessions.Reconciler
	hub        *notify.Hub
	configs    ConfigStore

	rl           RateLimiter
	submitLimit  int64
	submitWindow time.Duration

	apiKey string
}

func New(adm *admissions.Service, sess *sessions.Service, rec *sessions.Reconciler, hub *notify.Hub, configs ConfigStore) *API {
	return &API{
		admissions: adm,
		sessions:   sess,
		reconciler: rec,
		hub:        hub,
		configs:    configs,
	}
}

// WithRateLimit caps POST /checkins per terminal. A nil limiter or a
// non-positive limit disables the cap.
func (a *API) WithRateLimit(rl RateLimiter, perMinute int64) *API {
	a.rl = rl
	a.submitLimit = perMinute
	a.submitWindow = time.Minute
	return a
}

// WithAPIKey gates the privileged endpoints (counter reset, config publish)
// behind an X-API-Key header.
func (a *API) WithAPIKey(key string) *API {
	a.apiKey = key
	return a
}

func (a *API) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/checkins", a.submitCheckIn)
	r.Get("/checkins", a.listCheckIns)
	r.Get("/checkins/duplicate", a.checkDuplicate)
	r.Delete("/checkins/{transactionID}", a.deleteCheckIn)

	r.Get("/counters", a.readCounters)
	r.With(a.requireAPIKey).Post("/counters/reset", a.resetCounters)

	r.Get("/events", a.streamEvents)
	r.Post("/replay", a.replay)

	r.Post("/sessions", a.startSession)
	r.Get("/sessions", a.listSessions)
	r.Get("/sessions/{sessionID}", a.getSession)
	r.Put("/sessions/{sessionID}/stop", a.stopSession)
	r.Patch("/sessions/{sessionID}", a.updateSession)
	r.Post("/sessions/{sessionID}/codes", a.addSessionCode)
	r.Get("/sessions/{sessionID}/codes", a.listSessionCodes)
	r.Delete("/sessions/{sessionID}/codes/{codeID}", a.deleteSessionCode)

	r.Get("/configs/{hostname}", a.getTerminalConfig)
	r.With(a.requireAPIKey).Put("/configs/{hostname}", a.putTerminalConfig)

	return r
}

type scannedCode struct {
	Code string `json:"code"`
}

type checkInRequest struct {
	NumberOfKids  int           `json:"numberOfKids"`
	SafetyChecked bool          `json:"safetyChecked"`
	Timestamp     time.Time     `json:"timestamp"`
	Tickets       []scannedCode `json:"tickets"`
	Bracelets     []scannedCode `json:"bracelets"`
}

type checkInResponse struct {
	CheckIn       *models.CheckIn `json:"checkIn"`
	CountersStale bool            `json:"countersStale,omitempty"`
}

func (a *API) submitCheckIn(w http.ResponseWriter, r *http.Request) {
	if !a.allowSubmit(w, r) {
		return
	}

	var req checkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "decode request"))
		return
	}

	in := models.CheckInCreateInput{
		NumberOfKids:  req.NumberOfKids,
		SafetyChecked: req.SafetyChecked,
		ArrivedAt:     req.Timestamp,
	}
	for _, t := range req.Tickets {
		in.TicketCodes = append(in.TicketCodes, t.Code)
	}
	for _, b := range req.Bracelets {
		in.BraceletCodes = append(in.BraceletCodes, b.Code)
	}

	checkIn, err := a.admissions.Submit(r.Context(), in)
	if errors.Is(err, admissions.ErrCountersStale) {
		// committed, only the live totals lag
		writeJSON(w, http.StatusCreated, checkInResponse{CheckIn: checkIn, CountersStale: true})
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkInResponse{CheckIn: checkIn})
}

func (a *API) allowSubmit(w http.ResponseWriter, r *http.Request) bool {
	if a.rl == nil || a.submitLimit <= 0 {
		return true
	}
	terminal := r.Header.Get("X-Terminal-ID")
	if terminal == "" {
		terminal = r.RemoteAddr
	}
	ok, _, err := a.rl.Allow(r.Context(), "checkin:rate:"+terminal, a.submitLimit, a.submitWindow)
	if err != nil {
		// limiter outage must not block admissions
		return true
	}
	if !ok {
		writeError(w, http.StatusTooManyRequests, errors.New("too many check-ins, slow down"))
		return false
	}
	return true
}

func (a *API) listCheckIns(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "pageSize", 20)

	pageOut, err := a.admissions.ListCheckIns(r.Context(), page, pageSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, pageOut)
}

func (a *API) checkDuplicate(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	probe, err := a.admissions.CheckDuplicate(r.Context(), code)
	if err != nil {
		if code == "" {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, probe)
}

func (a *API) deleteCheckIn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "transactionID")
	err := a.admissions.DeleteCheckIn(r.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) readCounters(w http.ResponseWriter, r *http.Request) {
	snap, err := a.admissions.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *API) resetCounters(w http.ResponseWriter, r *http.Request) {
	if err := a.admissions.ResetCounters(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, models.CounterSnapshot{})
}

func (a *API) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.apiKey == "" || r.Header.Get("X-API-Key") != a.apiKey {
			writeError(w, http.StatusUnauthorized, errors.New("invalid api key"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
