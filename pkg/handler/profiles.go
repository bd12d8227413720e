package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/agile-defense/vesselwatch/pkg/risk"
)

// ProfileSource holds the active collision profile set
type ProfileSource interface {
	Profiles() risk.ProfileSet
	SetProfiles(set risk.ProfileSet) error
	SelectProfile(name string) error
}

// ProfileSaver persists profile changes
type ProfileSaver interface {
	SaveProfiles(ctx context.Context, set risk.ProfileSet) error
	SaveCurrent(ctx context.Context, name string) error
}

// ProfileHandler handles collision profile requests
type ProfileHandler struct {
	source ProfileSource
	saver  ProfileSaver
	logger zerolog.Logger
}

// NewProfileHandler creates a new ProfileHandler. saver may be nil, in which
// case changes last until restart.
func NewProfileHandler(source ProfileSource, saver ProfileSaver, logger zerolog.Logger) *ProfileHandler {
	return &ProfileHandler{
		source: source,
		saver:  saver,
		logger: logger.With().Str("handler", "profiles").Logger(),
	}
}

// Routes returns the profile routes
func (h *ProfileHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.GetProfiles)
	r.Put("/", h.ReplaceProfiles)
	r.Put("/current", h.SelectProfile)

	return r
}

// ProfilesResponse represents the profile set in API responses
type ProfilesResponse struct {
	Current       string                  `json:"current"`
	Names         []string                `json:"names"`
	Profiles      map[string]risk.Profile `json:"profiles"`
	Persisted     bool                    `json:"persisted"`
	CorrelationID string                  `json:"correlation_id"`
}

// SelectRequest is the body of PUT /api/v1/profiles/current
type SelectRequest struct {
	Current string `json:"current"`
}

// GetProfiles handles GET /api/v1/profiles
func (h *ProfileHandler) GetProfiles(w http.ResponseWriter, r *http.Request) {
	h.writeProfiles(w, GetCorrelationID(r.Context()))
}

// ReplaceProfiles handles PUT /api/v1/profiles
func (h *ProfileHandler) ReplaceProfiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := GetCorrelationID(ctx)

	var set risk.ProfileSet
	if err := DecodeJSON(r, &set); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error(), correlationID)
		return
	}
	if err := set.Validate(); err != nil {
		WriteError(w, http.StatusUnprocessableEntity, err.Error(), correlationID)
		return
	}

	if h.saver != nil {
		if err := h.saver.SaveProfiles(ctx, set); err != nil {
			h.logger.Error().Err(err).Str("correlation_id", correlationID).Msg("Failed to save profiles")
			WriteError(w, http.StatusInternalServerError, "Failed to save profiles", correlationID)
			return
		}
	}
	if err := h.source.SetProfiles(set); err != nil {
		WriteError(w, http.StatusUnprocessableEntity, err.Error(), correlationID)
		return
	}

	h.logger.Info().
		Str("current", set.Current).
		Int("profiles", len(set.Profiles)).
		Str("correlation_id", correlationID).
		Msg("Collision profiles replaced")

	h.writeProfiles(w, correlationID)
}

// SelectProfile handles PUT /api/v1/profiles/current
func (h *ProfileHandler) SelectProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := GetCorrelationID(ctx)

	var req SelectRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error(), correlationID)
		return
	}

	if _, ok := h.source.Profiles().Profiles[req.Current]; !ok {
		WriteError(w, http.StatusNotFound, "unknown collision profile: "+req.Current, correlationID)
		return
	}

	if h.saver != nil {
		if err := h.saver.SaveCurrent(ctx, req.Current); err != nil {
			h.logger.Error().Err(err).Str("correlation_id", correlationID).Msg("Failed to save current profile")
			WriteError(w, http.StatusInternalServerError, "Failed to save current profile", correlationID)
			return
		}
	}
	if err := h.source.SelectProfile(req.Current); err != nil {
		WriteError(w, http.StatusNotFound, err.Error(), correlationID)
		return
	}

	h.logger.Info().
		Str("current", req.Current).
		Str("correlation_id", correlationID).
		Msg("Collision profile selected")

	h.writeProfiles(w, correlationID)
}

func (h *ProfileHandler) writeProfiles(w http.ResponseWriter, correlationID string) {
	set := h.source.Profiles()
	WriteJSON(w, http.StatusOK, ProfilesResponse{
		Current:       set.Current,
		Names:         set.Names(),
		Profiles:      set.Profiles,
		Persisted:     h.saver != nil,
		CorrelationID: correlationID,
	})
}
