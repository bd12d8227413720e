package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/agile-defense/vesselwatch/pkg/format"
	"github.com/agile-defense/vesselwatch/pkg/target"
)

// TargetSource is the read and mute surface of the tracker engine
type TargetSource interface {
	Ranked() []target.Target
	Self() (target.Target, bool)
	Target(id string) (target.Target, bool)
	Mute(id string, muted bool) bool
}

// TargetHandler handles target-related HTTP requests
type TargetHandler struct {
	source TargetSource
	logger zerolog.Logger
}

// NewTargetHandler creates a new TargetHandler
func NewTargetHandler(source TargetSource, logger zerolog.Logger) *TargetHandler {
	return &TargetHandler{
		source: source,
		logger: logger.With().Str("handler", "targets").Logger(),
	}
}

// Routes returns the target routes
func (h *TargetHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListTargets)
	r.Get("/{targetId}", h.GetTarget)
	r.Put("/{targetId}/mute", h.MuteTarget)

	return r
}

// TargetListResponse represents the response for listing targets
type TargetListResponse struct {
	Self          *format.TargetRow  `json:"self,omitempty"`
	Targets       []format.TargetRow `json:"targets"`
	Total         int                `json:"total"`
	CorrelationID string             `json:"correlation_id"`
}

// TargetDetailResponse is a single target with its display row
type TargetDetailResponse struct {
	Row           format.TargetRow `json:"row"`
	Target        target.Target    `json:"target"`
	CorrelationID string           `json:"correlation_id"`
}

// MuteRequest is the body of PUT /api/v1/targets/{id}/mute
type MuteRequest struct {
	Muted *bool `json:"muted"`
}

// ListTargets handles GET /api/v1/targets. Targets are ranked most urgent
// first; ?state=danger|warning filters by alarm state and ?limit= caps the
// list.
func (h *TargetHandler) ListTargets(w http.ResponseWriter, r *http.Request) {
	correlationID := GetCorrelationID(r.Context())

	ranked := h.source.Ranked()
	total := len(ranked)

	if state := r.URL.Query().Get("state"); state != "" {
		switch target.AlarmState(state) {
		case target.StateDanger, target.StateWarning:
		default:
			WriteError(w, http.StatusBadRequest, "state must be danger or warning", correlationID)
			return
		}
		filtered := ranked[:0]
		for _, t := range ranked {
			if string(t.Derived.State) == state {
				filtered = append(filtered, t)
			}
		}
		ranked = filtered
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			WriteError(w, http.StatusBadRequest, "limit must be a positive integer", correlationID)
			return
		}
		if limit < len(ranked) {
			ranked = ranked[:limit]
		}
	}

	resp := TargetListResponse{
		Targets:       format.Rows(ranked),
		Total:         total,
		CorrelationID: correlationID,
	}
	if self, ok := h.source.Self(); ok {
		row := format.Row(self)
		resp.Self = &row
	}

	WriteJSON(w, http.StatusOK, resp)
}

// GetTarget handles GET /api/v1/targets/{targetId}
func (h *TargetHandler) GetTarget(w http.ResponseWriter, r *http.Request) {
	correlationID := GetCorrelationID(r.Context())
	id := chi.URLParam(r, "targetId")

	t, ok := h.source.Target(id)
	if !ok {
		WriteError(w, http.StatusNotFound, "target not found", correlationID)
		return
	}

	WriteJSON(w, http.StatusOK, TargetDetailResponse{
		Row:           format.Row(t),
		Target:        t,
		CorrelationID: correlationID,
	})
}

// MuteTarget handles PUT /api/v1/targets/{targetId}/mute. Muting suppresses
// danger notifications only; the computed alarm state is unchanged.
func (h *TargetHandler) MuteTarget(w http.ResponseWriter, r *http.Request) {
	correlationID := GetCorrelationID(r.Context())
	id := chi.URLParam(r, "targetId")

	var req MuteRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error(), correlationID)
		return
	}
	if req.Muted == nil {
		WriteError(w, http.StatusUnprocessableEntity, "muted is required", correlationID)
		return
	}

	if !h.source.Mute(id, *req.Muted) {
		WriteError(w, http.StatusNotFound, "target not found", correlationID)
		return
	}

	h.logger.Info().
		Str("target_id", id).
		Bool("muted", *req.Muted).
		Str("correlation_id", correlationID).
		Msg("Target mute updated")

	t, _ := h.source.Target(id)
	WriteJSON(w, http.StatusOK, format.Row(t))
}
