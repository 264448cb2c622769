// Package httpapi exposes the tracker over HTTP: a JSON REST surface, a
// server-sent-events activity feed and the usual operational endpoints.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tinytrack.org/internal/auth"
	"tinytrack.org/internal/obs"
	"tinytrack.org/internal/stream"
	"tinytrack.org/internal/tracker"
)

// ReadyProbe checks backing dependencies for the readiness endpoint.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options configures the HTTP layer.
type Options struct {
	Service    *tracker.Service
	Users      tracker.UserStore
	Stream     *stream.Stream
	ReadyProbe ReadyProbe
	Version    string
	TokenTTL   time.Duration
	// MaxBodyBytes and the rate limit knobs fall back to safe defaults
	// when zero.
	MaxBodyBytes   int64
	RateLimitRPS   int
	RateLimitBurst int
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	svc        *tracker.Service
	users      tracker.UserStore
	stream     *stream.Stream
	readyProbe ReadyProbe
	version    string
	tokenTTL   time.Duration
	maxBody    int64
	rateRPS    int
	rateBurst  int
}

func New(opts Options) *API {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 12 * time.Hour
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = 50
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 100
	}
	a := &API{
		mux:        http.NewServeMux(),
		svc:        opts.Service,
		users:      opts.Users,
		stream:     opts.Stream,
		readyProbe: opts.ReadyProbe,
		version:    opts.Version,
		tokenTTL:   opts.TokenTTL,
		maxBody:    opts.MaxBodyBytes,
		rateRPS:    opts.RateLimitRPS,
		rateBurst:  opts.RateLimitBurst,
	}

	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.HandleFunc("GET /v1/info", a.Info)
	a.mux.Handle("GET /metrics", obs.Handler())

	a.mux.HandleFunc("POST /v1/auth/login", a.handleLogin)

	a.mux.HandleFunc("POST /v1/users", a.handleCreateUser)
	a.mux.HandleFunc("GET /v1/users", a.handleListUsers)
	a.mux.HandleFunc("DELETE /v1/users/{id}", a.handleDeleteUser)

	a.mux.HandleFunc("POST /v1/projects", a.handleCreateProject)
	a.mux.HandleFunc("GET /v1/projects", a.handleListProjects)
	a.mux.HandleFunc("GET /v1/projects/{id}", a.handleGetProject)
	a.mux.HandleFunc("PATCH /v1/projects/{id}", a.handleUpdateProject)
	a.mux.HandleFunc("DELETE /v1/projects/{id}", a.handleDeleteProject)
	a.mux.HandleFunc("POST /v1/projects/{id}/archive", a.handleArchiveProject)
	a.mux.HandleFunc("POST /v1/projects/{id}/reopen", a.handleReopenProject)
	a.mux.HandleFunc("POST /v1/projects/{id}/members", a.handleAddMember)
	a.mux.HandleFunc("DELETE /v1/projects/{id}/members/{userID}", a.handleRemoveMember)
	a.mux.HandleFunc("PUT /v1/projects/{id}/members/{userID}/notify", a.handleSetMemberNotify)
	a.mux.HandleFunc("GET /v1/projects/{id}/activity", a.handleProjectActivity)

	a.mux.HandleFunc("GET /v1/projects/{id}/notes", a.handleListNotes)
	a.mux.HandleFunc("POST /v1/projects/{id}/notes", a.handleAddNote)
	a.mux.HandleFunc("PATCH /v1/notes/{id}", a.handleUpdateNote)
	a.mux.HandleFunc("DELETE /v1/notes/{id}", a.handleDeleteNote)

	a.mux.HandleFunc("GET /v1/projects/{id}/issues", a.handleListIssues)
	a.mux.HandleFunc("POST /v1/projects/{id}/issues", a.handleCreateIssue)
	a.mux.HandleFunc("GET /v1/issues/{id}", a.handleGetIssue)
	a.mux.HandleFunc("DELETE /v1/issues/{id}", a.handleDeleteIssue)
	a.mux.HandleFunc("POST /v1/issues/{id}/reassign", a.handleReassignIssue)
	a.mux.HandleFunc("POST /v1/issues/{id}/close", a.handleCloseIssue)
	a.mux.HandleFunc("POST /v1/issues/{id}/reopen", a.handleReopenIssue)
	a.mux.HandleFunc("PUT /v1/issues/{id}/tags", a.handleUpdateTags)
	a.mux.HandleFunc("POST /v1/issues/{id}/quote/lock", a.handleLockQuote)
	a.mux.HandleFunc("POST /v1/issues/{id}/quote/unlock", a.handleUnlockQuote)
	a.mux.HandleFunc("GET /v1/issues/{id}/activity", a.handleIssueActivity)

	a.mux.HandleFunc("GET /v1/issues/{id}/comments", a.handleListComments)
	a.mux.HandleFunc("POST /v1/issues/{id}/comments", a.handleAddComment)
	a.mux.HandleFunc("PATCH /v1/comments/{id}", a.handleUpdateComment)
	a.mux.HandleFunc("DELETE /v1/comments/{id}", a.handleDeleteComment)

	a.mux.HandleFunc("GET /v1/tags", a.handleListTags)
	a.mux.HandleFunc("POST /v1/tags", a.handleCreateTag)
	a.mux.HandleFunc("PATCH /v1/tags/{id}", a.handleUpdateTag)

	a.mux.HandleFunc("GET /v1/events", a.Stream)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = MaxBodyBytes(h, a.maxBody)
	h = RateLimit(h, a.rateBurst, a.rateRPS)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "tinytrack-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "tinytrack-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleServiceError maps domain errors onto HTTP status codes.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tracker.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, tracker.ErrAccessDenied):
		writeError(w, r, http.StatusForbidden, "access denied")
	case errors.Is(err, tracker.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, tracker.ErrArchived):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, "invalid token")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func parseLimit(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	if val < min || val > max {
		return 0, errors.New("limit out of range")
	}
	return val, nil
}
