package handler

import (
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/adlens/adlens/internal/domain"
	"github.com/adlens/adlens/internal/service"
)

// =============================================================================
// Handler Configuration
// =============================================================================

// BrandHandler handles brand-data HTTP requests.
type BrandHandler struct {
	brandService service.BrandService
	logger       *slog.Logger
}

// NewBrandHandler creates a new BrandHandler.
func NewBrandHandler(brandService service.BrandService, logger *slog.Logger) *BrandHandler {
	return &BrandHandler{
		brandService: brandService,
		logger:       logger,
	}
}

// RegisterRoutes registers brand routes on the mux.
func (h *BrandHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/users/{userID}/brands", h.Create)
	mux.HandleFunc("GET /api/users/{userID}/brands", h.List)
	mux.HandleFunc("GET /api/users/{userID}/brands/{brandID}", h.Get)
	mux.HandleFunc("DELETE /api/users/{userID}/brands/{brandID}", h.Delete)
	mux.HandleFunc("POST /api/users/{userID}/brands/{brandID}/media", h.UploadMedia)
	mux.HandleFunc("DELETE /api/users/{userID}/brands/{brandID}/media/{fileID}", h.DeleteMediaFile)
}

// =============================================================================
// Create
// =============================================================================

// Create accepts a multipart brand form with optional logo uploads.
func (h *BrandHandler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handler.brand.create"
	userID := r.PathValue("userID")

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		ErrorResponse(w, r, h.logger, domain.Errorf(domain.ETOOLARGE, op, "request body too large or malformed"))
		return
	}

	logos, err := readUploads(r.MultipartForm.File["logo_files"])
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Internal(err, op, "failed to read logo upload"))
		return
	}

	brand, err := h.brandService.Create(r.Context(), userID, service.CreateBrandParams{
		BrandName:          r.FormValue("brand_name"),
		Tagline:            r.FormValue("tagline"),
		BrandDescription:   r.FormValue("brand_description"),
		IndustryCategory:   r.FormValue("industry_category"),
		TargetAudience:     r.FormValue("target_audience"),
		PrimaryColor:       r.FormValue("primary_color"),
		SecondaryColor:     r.FormValue("secondary_color"),
		AccentColor:        r.FormValue("accent_color"),
		ColorPalette:       r.FormValue("color_palette"),
		ToneOfVoice:        r.FormValue("tone_of_voice"),
		CustomTone:         r.FormValue("custom_tone"),
		CommunicationStyle: r.FormValue("communication_style"),
		BrandVoice:         r.FormValue("brand_voice"),
		KeyMessages:        r.FormValue("key_messages"),
		Logos:              logos,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, brand)
}

// =============================================================================
// Reads
// =============================================================================

func (h *BrandHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	brandID := r.PathValue("brandID")

	brand, err := h.brandService.GetByID(r.Context(), brandID, userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, brand)
}

func (h *BrandHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	brands, err := h.brandService.List(r.Context(), userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"brands": brands,
		"count":  len(brands),
	})
}

// =============================================================================
// Media
// =============================================================================

// UploadMedia attaches additional media files to an existing brand.
func (h *BrandHandler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	const op = "handler.brand.upload_media"
	userID := r.PathValue("userID")
	brandID := r.PathValue("brandID")

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		ErrorResponse(w, r, h.logger, domain.Errorf(domain.ETOOLARGE, op, "request body too large or malformed"))
		return
	}

	files, err := readUploads(r.MultipartForm.File["files"])
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Internal(err, op, "failed to read media upload"))
		return
	}
	if len(files) == 0 {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "no files supplied"))
		return
	}

	brand, err := h.brandService.UploadMedia(r.Context(), brandID, userID, files)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, brand)
}

func (h *BrandHandler) DeleteMediaFile(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	brandID := r.PathValue("brandID")
	fileID := r.PathValue("fileID")

	if err := h.brandService.DeleteMediaFile(r.Context(), brandID, userID, fileID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "media file deleted",
		"fileId":  fileID,
	})
}

func (h *BrandHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	brandID := r.PathValue("brandID")

	if err := h.brandService.Delete(r.Context(), brandID, userID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "brand deleted",
		"brandId": brandID,
	})
}

// readUploads drains multipart file headers into memory.
func readUploads(headers []*multipart.FileHeader) ([]service.UploadFile, error) {
	var files []service.UploadFile
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		files = append(files, service.UploadFile{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return files, nil
}
