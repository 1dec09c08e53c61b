package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/adlens/adlens/internal/domain"
	"github.com/adlens/adlens/internal/service"
)

// maxUploadBytes caps multipart request bodies. The media file cap itself
// is enforced in the service layer; this just bounds the HTTP body.
const maxUploadBytes = domain.MaxMediaFileSize + 1<<20

// =============================================================================
// Handler Configuration
// =============================================================================

// AnalysisHandler handles ad analysis HTTP requests.
type AnalysisHandler struct {
	analysisService service.AnalysisService
	logger          *slog.Logger
}

// NewAnalysisHandler creates a new AnalysisHandler.
func NewAnalysisHandler(analysisService service.AnalysisService, logger *slog.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		analysisService: analysisService,
		logger:          logger,
	}
}

// RegisterRoutes registers analysis routes on the mux.
func (h *AnalysisHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/users/{userID}/analyses", h.Analyze)
	mux.HandleFunc("GET /api/users/{userID}/analyses", h.History)
	mux.HandleFunc("GET /api/users/{userID}/analyses/{analysisID}", h.Get)
	mux.HandleFunc("DELETE /api/users/{userID}/analyses/{analysisID}", h.Delete)
}

// =============================================================================
// Analyze
// =============================================================================

// Analyze accepts a multipart form with the ad creative and its context
// and runs one analysis against the user's plan quota.
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	const op = "handler.analysis.analyze"
	userID := r.PathValue("userID")

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		ErrorResponse(w, r, h.logger, domain.Errorf(domain.ETOOLARGE, op, "request body too large or malformed"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "missing file field"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Internal(err, op, "failed to read uploaded file"))
		return
	}

	record, err := h.analysisService.Analyze(r.Context(), userID, service.AnalyzeRequest{
		File: service.UploadFile{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		},
		BrandID:       r.FormValue("brand_id"),
		AdTitle:       r.FormValue("ad_title"),
		MessageIntent: r.FormValue("message_intent"),
		FunnelStage:   r.FormValue("funnel_stage"),
		Channels:      splitChannels(r.FormValue("channels")),
		Source:        r.FormValue("source"),
		ClientID:      r.FormValue("client_id"),
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, record)
}

// =============================================================================
// History and Reads
// =============================================================================

func (h *AnalysisHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	records, err := h.analysisService.History(r.Context(), userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"analyses": records,
		"count":    len(records),
	})
}

func (h *AnalysisHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	analysisID := r.PathValue("analysisID")

	record, err := h.analysisService.GetByID(r.Context(), analysisID, userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func (h *AnalysisHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	analysisID := r.PathValue("analysisID")

	if err := h.analysisService.Delete(r.Context(), analysisID, userID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "analysis deleted",
		"id":      analysisID,
	})
}

// splitChannels parses a comma-separated channel list, dropping empties.
func splitChannels(raw string) []string {
	if raw == "" {
		return nil
	}
	var channels []string
	for _, ch := range strings.Split(raw, ",") {
		if ch = strings.TrimSpace(ch); ch != "" {
			channels = append(channels, ch)
		}
	}
	return channels
}
