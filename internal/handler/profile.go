package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/adlens/adlens/internal/domain"
	"github.com/adlens/adlens/internal/service"
)

// =============================================================================
// Handler Configuration
// =============================================================================

// ProfileHandler handles user profile HTTP requests.
type ProfileHandler struct {
	profileService service.ProfileService
	logger         *slog.Logger
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(profileService service.ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
		logger:         logger,
	}
}

// RegisterRoutes registers profile routes on the mux.
func (h *ProfileHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/users/{userID}/profile", h.Get)
	mux.HandleFunc("POST /api/users/{userID}/profile", h.Save)
	mux.HandleFunc("PATCH /api/users/{userID}/profile", h.Save)
}

type saveProfileRequest struct {
	Profile  map[string]any `json:"userProfile"`
	Metadata map[string]any `json:"metadata"`
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	profile, err := h.profileService.Get(r.Context(), userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// Save merges the supplied profile fields into the stored document. POST
// and PATCH behave identically; the merge never overwrites the
// subscription block.
func (h *ProfileHandler) Save(w http.ResponseWriter, r *http.Request) {
	const op = "handler.profile.save"
	userID := r.PathValue("userID")

	var req saveProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "invalid JSON body"))
		return
	}

	profile, err := h.profileService.Save(r.Context(), userID, req.Profile, req.Metadata)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}
