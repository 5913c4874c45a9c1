package httpapp

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cesargomez89/tilevault/internal/constants"
	"github.com/cesargomez89/tilevault/internal/domain"
	"github.com/cesargomez89/tilevault/internal/http/dto"
)

func (h *Handler) CreateDownload(w http.ResponseWriter, r *http.Request) {
	var req dto.DownloadRequest
	if !h.bind(w, r, &req) {
		return
	}

	result, err := h.TileService.Download(r.Context(), req.ToApp())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, result)
}

func (h *Handler) EstimateDownload(w http.ResponseWriter, r *http.Request) {
	var req dto.EstimateRequest
	if !h.bind(w, r, &req) {
		return
	}

	est, err := h.TileService.Estimate(*req.Bounds, *req.MinZoom, *req.MaxZoom)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, est)
}

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.TileService.GetJobs(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewJobListResponse(jobs))
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	js, err := h.TileService.GetJobStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewJobResponse(js))
}

func (h *Handler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req dto.JobUpdateRequest
	if !h.bind(w, r, &req) {
		return
	}

	if err := h.TileService.UpdateJob(r.Context(), id, req.Name, req.LocationName); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.GetJob(w, r)
}

func (h *Handler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	deleteTiles := false
	if v := r.URL.Query().Get("tiles"); v != "" {
		var err error
		if deleteTiles, err = strconv.ParseBool(v); err != nil {
			h.writeError(w, r, domain.NewValidationError("tiles", "must be a boolean"))
			return
		}
	}

	removed, err := h.TileService.DeleteJob(r.Context(), chi.URLParam(r, "id"), deleteTiles)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.DeleteJobResponse{TilesRemoved: removed})
}

func (h *Handler) ExtendJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req dto.ExtendRequest
	if !h.bind(w, r, &req) {
		return
	}

	if _, err := h.TileService.ExtendJob(r.Context(), id, *req.MinZoom, *req.MaxZoom); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.GetJob(w, r)
}

func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	cancelled, err := h.TileService.CancelJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.CancelJobResponse{Cancelled: cancelled})
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.TileService.GetStats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) ListSources(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.TileService.ListSources())
}

func (h *Handler) AddSource(w http.ResponseWriter, r *http.Request) {
	var req dto.SourceRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	src, err := h.TileService.AddSource(req.ToSource())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, src)
}

func (h *Handler) RemoveSource(w http.ResponseWriter, r *http.Request) {
	if err := h.TileService.RemoveSource(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetTile serves stored tile bytes. The y segment may carry an image
// extension, as in /tiles/osm/12/1205/1539.png.
func (h *Handler) GetTile(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")
	yParam, _, _ := strings.Cut(chi.URLParam(r, "y"), ".")

	z, errZ := strconv.Atoi(chi.URLParam(r, "z"))
	x, errX := strconv.Atoi(chi.URLParam(r, "x"))
	y, errY := strconv.Atoi(yParam)
	if errZ != nil || errX != nil || errY != nil {
		h.writeError(w, r, domain.NewValidationError("tile", "coordinates must be integers"))
		return
	}

	data, found, err := h.TileService.GetTile(r.Context(), source, z, x, y)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !found {
		http.NotFound(w, r)
		return
	}

	contentType := constants.MimeTypePNG
	if src, ok := h.TileService.Sources.Get(source); ok {
		contentType = src.ContentType()
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", constants.TileCacheControl)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		h.Logger.Debug("Failed to write tile", "error", err)
	}
}
