package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"tank-arena/internal/game"
)

// maxEventsPerRequest caps /api/events?n=
const maxEventsPerRequest = 256

// InputRequest is the body of POST /api/input and of websocket input messages.
// Keys replaces the latched direction state; Fire queues one shot.
type InputRequest struct {
	Keys *game.KeyState `json:"keys,omitempty"`
	Fire bool           `json:"fire"`
}

// apply forwards the request to the engine.
func (req InputRequest) apply(e EngineInterface) {
	if req.Keys != nil {
		e.SetInput(*req.Keys)
	}
	if req.Fire {
		e.Fire()
	}
}

// Handler methods for routerHandlers
// These are used by both the standalone router (for testing) and the full Server.

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	// Published snapshots are immutable, encode directly
	writeJSON(w, h.engine.GetSnapshot())
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	// Lock-free snapshot, no engine mutex on the poll path
	snap := h.engine.GetSnapshot()
	stats := map[string]interface{}{
		"session":      h.engine.Session(),
		"tick":         snap.TickNumber,
		"entityCount":  snap.EntityCount,
		"enemiesAlive": snap.EnemiesAlive,
		"playerHealth": snap.PlayerHealth,
		"outcome":      snap.Outcome,
		"eventLog":     h.engine.GetEventLogStats(),
		"rateLimiter":  h.limiter.GetStats(),
	}
	writeJSON(w, stats)
}

func (h *routerHandlers) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	n := 50
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, "n must be a positive integer", http.StatusBadRequest)
			return
		}
		n = parsed
	}
	if n > maxEventsPerRequest {
		n = maxEventsPerRequest
	}

	events := h.engine.RecentEvents(n)
	out := make([]map[string]interface{}, 0, len(events))
	for _, ev := range events {
		out = append(out, map[string]interface{}{
			"type":     ev.Type.String(),
			"tick":     ev.TickNum,
			"sequence": ev.Sequence,
			"source":   ev.Source,
			"payload":  json.RawMessage(ev.Payload),
		})
	}
	writeJSON(w, out)
}

func (h *routerHandlers) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	if h.renderer == nil {
		writeError(w, "Frame rendering disabled", http.StatusNotFound)
		return
	}

	snap := h.engine.GetSnapshot()
	start := time.Now()
	var buf bytes.Buffer
	if err := h.renderer.EncodePNG(&buf, snap); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	recordRender(time.Since(start))
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (h *routerHandlers) handlePostInput(w http.ResponseWriter, r *http.Request) {
	var req InputRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.Keys == nil && !req.Fire {
		writeError(w, "keys or fire is required", http.StatusBadRequest)
		return
	}

	req.apply(h.engine)
	writeJSON(w, map[string]bool{"success": true})
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
