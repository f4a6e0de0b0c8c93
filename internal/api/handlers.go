package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"arena-combat/internal/catalog"
	"arena-combat/internal/game"
	"arena-combat/internal/world"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Handler methods for routerHandlers
// These are used by both the standalone router (for testing) and the full Server.

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Snapshot())
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Stats())
}

func (h *routerHandlers) handleGetScoreboard(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)
	writeJSON(w, h.engine.Scoreboard().Top(limit))
}

func (h *routerHandlers) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"equipment": h.catalog.Summaries(),
		"skills":    h.catalog.Skills(),
		"loadout":   h.catalog.Loadout(),
	})
}

func (h *routerHandlers) handleAddBots(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Count   int      `json:"count"`
		Loadout []string `json:"loadout"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if req.Count <= 0 {
		req.Count = 1
	}
	if req.Count > h.maxBots {
		req.Count = h.maxBots // Cap
	}

	ids := make([]world.EntityID, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		name := fmt.Sprintf("Bot-%d", h.engine.Snapshot().TickNumber%10000+uint64(i))
		id, err := h.engine.Join(name, game.JoinOptions{Bot: true, Loadout: req.Loadout})
		if err != nil {
			if len(ids) == 0 {
				writeEngineError(w, err)
				return
			}
			break
		}
		ids = append(ids, id)
	}

	writeJSON(w, map[string]interface{}{
		"count": len(ids),
		"pawns": ids,
	})
}

func (h *routerHandlers) handleGetPawn(w http.ResponseWriter, r *http.Request) {
	id, ok := pawnParam(w, r)
	if !ok {
		return
	}
	p, found := h.engine.Pawn(id)
	if !found {
		writeError(w, "Pawn not found", http.StatusNotFound)
		return
	}
	writeJSON(w, p)
}

func (h *routerHandlers) handleGetSpecs(w http.ResponseWriter, r *http.Request) {
	id, ok := pawnParam(w, r)
	if !ok {
		return
	}
	specs, err := h.engine.Specs(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, specs)
}

func (h *routerHandlers) handleGetLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := pawnParam(w, r)
	if !ok {
		return
	}
	since, err := strconv.ParseUint(r.URL.Query().Get("since"), 10, 64)
	if err != nil {
		since = 0
	}
	delta, err := h.engine.LedgerDelta(id, since)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, delta)
}

func (h *routerHandlers) handleRemovePawn(w http.ResponseWriter, r *http.Request) {
	id, ok := pawnParam(w, r)
	if !ok {
		return
	}
	if err := h.engine.Leave(id); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleGetJournal(w http.ResponseWriter, r *http.Request) {
	events, err := h.journal.Recent(r.Context(), r.URL.Query().Get("type"), queryInt(r, "limit", 100))
	if err != nil {
		h.logger.Error().Err(err).Msg("journal query failed")
		writeError(w, "Journal unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, events)
}

func (h *routerHandlers) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := pawnParam(w, r)
	if !ok {
		return
	}
	rec, err := h.journal.Record(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Msg("journal query failed")
		writeError(w, "Journal unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, rec)
}

// Helper functions (package-level for reuse)

func pawnParam(w http.ResponseWriter, r *http.Request) (world.EntityID, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil || id == 0 {
		writeError(w, "Invalid pawn id", http.StatusBadRequest)
		return world.NoEntity, false
	}
	return world.EntityID(id), true
}

func queryInt(r *http.Request, key string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil {
		return v
	}
	return def
}

// engineStatus maps engine errors to HTTP status codes.
func engineStatus(err error) int {
	switch {
	case errors.Is(err, game.ErrUnknownPawn):
		return http.StatusNotFound
	case errors.Is(err, game.ErrArenaFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, catalog.ErrUnknownEquipment):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrPawnDead):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeEngineError(w http.ResponseWriter, err error) {
	writeError(w, err.Error(), engineStatus(err))
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// requestLogger logs requests and records the request metrics by route pattern.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			took := time.Since(start)

			endpoint := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				endpoint = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			RecordRequest(r.Method, endpoint, status, took)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Dur("took", took).
				Msg("request")
		})
	}
}
