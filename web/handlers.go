package web

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/artpar/metergate/domain/auth"
	"github.com/artpar/metergate/domain/catalog"
	"github.com/artpar/metergate/domain/stats"
)

// UsageRequest is the ingest payload. APIKey may be omitted when the
// request itself is authenticated; the presented key is used then.
type UsageRequest struct {
	APIKey string `json:"api_key,omitempty"`
	Model  string `json:"model"`
	Tokens int64  `json:"tokens"`
}

// RecordUsage ingests one usage event. Always 202: recording is
// fire-and-forget and never fails observably to the caller.
func (h *Handler) RecordUsage(w http.ResponseWriter, r *http.Request) {
	var req UsageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON")
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "missing_model", "model is required")
		return
	}

	caller := req.APIKey
	if caller == "" {
		caller = auth.ClientKey(auth.Credentials{
			Authorization: r.Header.Get("Authorization"),
			GoogAPIKey:    r.Header.Get("x-goog-api-key"),
			QueryKey:      r.URL.Query().Get("key"),
		})
	}
	if caller == "" {
		writeError(w, http.StatusBadRequest, "missing_key", "api_key is required")
		return
	}

	h.meter.RecordUsage(caller, req.Model, req.Tokens)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// KeyStats summarizes usage for the requested keys.
func (h *Handler) KeyStats(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("keys")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing_keys", "keys query parameter is required")
		return
	}

	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"keys": h.meter.CallerStats(keys),
	})
}

// Series returns the per-minute call and token series. The window
// defaults to 60 minutes and is capped at the 24h retention.
func (h *Handler) Series(w http.ResponseWriter, r *http.Request) {
	minutes := parseIntQuery(r, "minutes", 60)
	if minutes < 1 {
		minutes = 1
	}
	if minutes > 24*60 {
		minutes = 24 * 60
	}

	calls, tokens := h.meter.TimeSeries(minutes)
	writeJSON(w, http.StatusOK, map[string][]stats.TimePoint{
		"calls":  calls,
		"tokens": tokens,
	})
}

// Daily returns recent daily rollups, newest first.
func (h *Handler) Daily(w http.ResponseWriter, r *http.Request) {
	days := parseIntQuery(r, "days", 30)
	if days < 1 {
		days = 1
	}
	if days > 90 {
		days = 90
	}

	writeJSON(w, http.StatusOK, map[string][]stats.DailySummary{
		"days": h.meter.DailySummaries(days),
	})
}

// Recent returns the recent-call ring, oldest first.
func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	calls := h.meter.RecentCalls()
	if calls == nil {
		calls = []stats.CallRecord{}
	}
	writeJSON(w, http.StatusOK, map[string][]stats.CallRecord{"calls": calls})
}

// Reset clears in-memory stats. Persisted daily rollups survive.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	h.meter.Reset()
	h.logger.Info().Msg("stats reset via API")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// Cleanup forces an eviction pass regardless of the cleanup interval.
func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	h.meter.Cleanup(true)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleaned"})
}

// Models lists the configured models in OpenAI list format.
func (h *Handler) Models(w http.ResponseWriter, r *http.Request) {
	standard, express := h.models()
	writeJSON(w, http.StatusOK, catalog.List(standard, express))
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
