package dto

import (
	"github.com/cesargomez89/tilevault/internal/app"
	"github.com/cesargomez89/tilevault/internal/domain"
)

const timeLayout = "2006-01-02T15:04:05Z07:00"

type JobResponse struct {
	LocationName *string          `json:"location_name,omitempty"`
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Source       string           `json:"source"`
	Status       string           `json:"status"`
	CreatedAt    string           `json:"created_at"`
	UpdatedAt    string           `json:"updated_at"`
	Bounds       domain.GeoBounds `json:"bounds"`
	Progress     domain.Progress  `json:"progress"`
	CenterLat    float64          `json:"center_lat"`
	CenterLng    float64          `json:"center_lng"`
	MinZoom      int              `json:"min_zoom"`
	MaxZoom      int              `json:"max_zoom"`
	Active       bool             `json:"active"`
}

func NewJobResponse(js *app.JobStatus) JobResponse {
	j := js.Job
	return JobResponse{
		LocationName: j.LocationName,
		ID:           j.ID,
		Name:         j.Name,
		Source:       j.Source,
		Status:       string(j.Status),
		CreatedAt:    j.CreatedAt.Format(timeLayout),
		UpdatedAt:    j.UpdatedAt.Format(timeLayout),
		Bounds:       j.Bounds,
		Progress:     js.Progress,
		CenterLat:    j.CenterLat,
		CenterLng:    j.CenterLng,
		MinZoom:      j.MinZoom,
		MaxZoom:      j.MaxZoom,
		Active:       js.Active,
	}
}

func NewJobListResponse(jobs []*app.JobStatus) []JobResponse {
	resp := make([]JobResponse, 0, len(jobs))
	for _, js := range jobs {
		resp = append(resp, NewJobResponse(js))
	}
	return resp
}

type DeleteJobResponse struct {
	TilesRemoved int64 `json:"tiles_removed"`
}

type CancelJobResponse struct {
	Cancelled bool `json:"cancelled"`
}
