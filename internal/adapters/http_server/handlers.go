// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/DhaNu1204/guide-florence-with-locals-sub001/internal/app"
	"github.com/DhaNu1204/guide-florence-with-locals-sub001/internal/domain"
)

type Handlers struct {
	Sync *app.SyncService
	Q    *app.QueryService
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

const (
	readTimeout = 15 * time.Second
	// A run is allowed to wait out several 60s upstream throttle windows
	// plus one rate-title round-trip per booking.
	syncTimeout = 10 * time.Minute
)

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.With(Throttle(10*time.Second, 2), Timeout(syncTimeout)).Post("/v1/sync", h.triggerSync)
	s.mux.With(Timeout(readTimeout)).Get("/v1/sync/status", h.syncStatus)
	s.mux.With(Timeout(readTimeout)).Get("/v1/tours/unassigned", h.listUnassigned)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

type syncRequest struct {
	From string `json:"from"` // YYYY-MM-DD, optional
	To   string `json:"to"`   // YYYY-MM-DD, optional
}

func (h *Handlers) triggerSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid body", "expected JSON with optional from/to dates")
			return
		}
	}

	var from, to time.Time
	if req.From != "" {
		t, err := time.Parse("2006-01-02", req.From)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid from date", "use YYYY-MM-DD")
			return
		}
		from = t
	}
	if req.To != "" {
		t, err := time.Parse("2006-01-02", req.To)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid to date", "use YYYY-MM-DD")
			return
		}
		to = t
	}

	res, err := h.Sync.Run(r.Context(), from, to)
	if err != nil {
		if errors.Is(err, domain.ErrSyncDisabled) {
			writeProblem(w, http.StatusConflict, "Sync disabled", err.Error())
			return
		}
		writeProblem(w, http.StatusBadGateway, "Sync failed", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		log.Error().Err(err).Msg("failed to write sync result")
	}
}

func (h *Handlers) syncStatus(w http.ResponseWriter, r *http.Request) {
	at, err := h.Q.SyncStatus(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Status unavailable", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(struct {
		LastSyncedAt *time.Time `json:"last_synced_at"`
	}{at})
}

func (h *Handlers) listUnassigned(w http.ResponseWriter, r *http.Request) {
	tours, err := h.Q.UnassignedTours(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Query failed", err.Error())
		return
	}
	if tours == nil {
		tours = []domain.TourRecord{}
	}

	etag, body := calcETagAndBody(tours)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write unassigned tours body")
	}
}
