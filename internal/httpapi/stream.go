package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
)

// Stream serves the live activity feed over server-sent events. A
// project_id query parameter is required and the caller must be allowed to
// view that project; the visibility checks that guard the REST feed apply
// to the live one as well.
func (a *API) Stream(w http.ResponseWriter, r *http.Request) {
	if a.stream == nil {
		http.Error(w, "streaming disabled", http.StatusServiceUnavailable)
		return
	}

	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		writeError(w, r, http.StatusBadRequest, "project_id query parameter is required")
		return
	}
	if _, err := a.svc.GetProject(r.Context(), actor, projectID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := a.stream.Subscribe(ctx, projectID)

	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	for event := range ch {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}
}
