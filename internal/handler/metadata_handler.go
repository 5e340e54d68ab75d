package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"registry-be/internal/domain"
	"registry-be/internal/middleware"
	"registry-be/internal/service"
	apperrors "registry-be/pkg/errors"

	"github.com/go-chi/chi/v5"
)

type MetadataHandler struct {
	metadataService service.MetadataService
	videoService    service.VideoService
}

func NewMetadataHandler(metadataService service.MetadataService, videoService service.VideoService) *MetadataHandler {
	return &MetadataHandler{
		metadataService: metadataService,
		videoService:    videoService,
	}
}

// PinMetadata handles POST /api/v1/metadata
func (h *MetadataHandler) PinMetadata(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller := middleware.CallerFromContext(ctx)
	if caller == "" {
		h.respondAppError(w, apperrors.NewAuthenticationError("Authentication required"))
		return
	}

	var meta domain.CampaignMetadata
	if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
		h.respondAppError(w, apperrors.NewValidationError("Invalid request body", nil))
		return
	}

	uri, err := h.metadataService.Pin(ctx, &meta)
	if err != nil {
		h.respondAppError(w, toAppError(err))
		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]string{
		"uri": uri,
	})
}

// FetchMetadata handles GET /api/v1/metadata?uri=ipfs://...
func (h *MetadataHandler) FetchMetadata(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("uri")
	if uri == "" {
		h.respondAppError(w, apperrors.NewValidationError("uri query parameter is required", nil))
		return
	}

	meta, err := h.metadataService.Fetch(r.Context(), uri)
	if err != nil {
		h.respondAppError(w, toAppError(err))
		return
	}

	h.respondJSON(w, http.StatusOK, meta)
}

// GetVideoInfo handles GET /api/v1/videos/{videoID}
func (h *MetadataHandler) GetVideoInfo(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")
	if videoID == "" {
		h.respondAppError(w, apperrors.NewValidationError("Video ID is required", nil))
		return
	}

	info, err := h.videoService.GetVideoInfo(r.Context(), videoID)
	if err != nil {
		h.respondAppError(w, toAppError(err))
		return
	}

	h.respondJSON(w, http.StatusOK, info)
}

func (h *MetadataHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *MetadataHandler) respondAppError(w http.ResponseWriter, appErr *apperrors.AppError) {
	response := &apperrors.ErrorResponse{}
	response.Error.Type = appErr.Type
	response.Error.Message = appErr.Message
	response.Error.Details = appErr.Details
	response.Error.Timestamp = time.Now().UTC().Format(time.RFC3339)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	json.NewEncoder(w).Encode(response)
}
