package httpapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cesargomez89/tilevault/internal/app"
	"github.com/cesargomez89/tilevault/internal/constants"
	"github.com/cesargomez89/tilevault/internal/domain"
	"github.com/cesargomez89/tilevault/internal/http/dto"
	"github.com/cesargomez89/tilevault/internal/logger"
)

type Handler struct {
	TileService *app.TileService
	Logger      *logger.Logger
}

func NewHandler(ts *app.TileService, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Default()
	}
	return &Handler{
		TileService: ts,
		Logger:      log.WithComponent("http"),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/downloads", h.CreateDownload)
		r.Post("/estimate", h.EstimateDownload)

		r.Get("/jobs", h.ListJobs)
		r.Get("/jobs/{id}", h.GetJob)
		r.Patch("/jobs/{id}", h.UpdateJob)
		r.Delete("/jobs/{id}", h.DeleteJob)
		r.Post("/jobs/{id}/extend", h.ExtendJob)
		r.Post("/jobs/{id}/cancel", h.CancelJob)

		r.Get("/stats", h.GetStats)

		r.Get("/sources", h.ListSources)
		r.Post("/sources", h.AddSource)
		r.Delete("/sources/{id}", h.RemoveSource)
	})

	r.Get("/tiles/{source}/{z}/{x}/{y}", h.GetTile)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", constants.MimeTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Error("Failed to encode response", "error", err)
	}
}

// writeError maps service errors onto status codes. Anything unrecognised
// is logged and reported as a 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &ve):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrJobNotFound), errors.Is(err, domain.ErrUnknownSource):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrSourceExists):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.Logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	h.writeJSON(w, status, dto.NewErrorResponse(err))
}

// decodeJSON reads a size-limited JSON body into v. It writes the 400 reply
// itself and returns false when the body is unusable.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxRequestBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		h.writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return false
	}
	return true
}

type validator interface {
	Validate() []dto.ValidationError
}

// bind decodes and validates a request DTO.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, v validator) bool {
	if !h.decodeJSON(w, r, v) {
		return false
	}
	if errs := v.Validate(); len(errs) > 0 {
		h.writeJSON(w, http.StatusBadRequest, dto.NewValidationResponse(errs))
		return false
	}
	return true
}
