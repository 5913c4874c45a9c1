package dto

import (
	"github.com/cesargomez89/tilevault/internal/app"
	"github.com/cesargomez89/tilevault/internal/domain"
	"github.com/cesargomez89/tilevault/internal/sources"
)

const (
	maxNameLength     = 200
	maxLocationLength = 200
)

type EstimateRequest struct {
	Bounds  *domain.GeoBounds `json:"bounds"`
	MinZoom *int              `json:"min_zoom"`
	MaxZoom *int              `json:"max_zoom"`
}

func (r *EstimateRequest) Validate() []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateRequired("bounds", r.Bounds)...)
	errs = append(errs, validateZoom("min_zoom", r.MinZoom)...)
	errs = append(errs, validateZoom("max_zoom", r.MaxZoom)...)
	return errs
}

type DownloadRequest struct {
	LocationName *string           `json:"location_name"`
	Name         *string           `json:"name"`
	Source       string            `json:"source"`
	Bounds       *domain.GeoBounds `json:"bounds"`
	MinZoom      *int              `json:"min_zoom"`
	MaxZoom      *int              `json:"max_zoom"`
}

func (r *DownloadRequest) Validate() []ValidationError {
	var errs []ValidationError
	if r.Source == "" {
		errs = append(errs, ValidationError{Field: "source", Message: "is required"})
	}
	errs = append(errs, validateRequired("bounds", r.Bounds)...)
	errs = append(errs, validateZoom("min_zoom", r.MinZoom)...)
	errs = append(errs, validateZoom("max_zoom", r.MaxZoom)...)
	errs = append(errs, validateLength("name", r.Name, maxNameLength)...)
	errs = append(errs, validateLength("location_name", r.LocationName, maxLocationLength)...)
	return errs
}

// ToApp must only be called after Validate returned no errors.
func (r *DownloadRequest) ToApp() app.DownloadRequest {
	req := app.DownloadRequest{
		LocationName: r.LocationName,
		Source:       r.Source,
		Bounds:       *r.Bounds,
		MinZoom:      *r.MinZoom,
		MaxZoom:      *r.MaxZoom,
	}
	if r.Name != nil {
		req.Name = *r.Name
	}
	return req
}

type ExtendRequest struct {
	MinZoom *int `json:"min_zoom"`
	MaxZoom *int `json:"max_zoom"`
}

func (r *ExtendRequest) Validate() []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateZoom("min_zoom", r.MinZoom)...)
	errs = append(errs, validateZoom("max_zoom", r.MaxZoom)...)
	return errs
}

// JobUpdateRequest changes a job's metadata. Absent fields are left alone;
// an empty location_name clears the label.
type JobUpdateRequest struct {
	Name         *string `json:"name"`
	LocationName *string `json:"location_name"`
}

func (r *JobUpdateRequest) Validate() []ValidationError {
	var errs []ValidationError
	if r.Name == nil && r.LocationName == nil {
		errs = append(errs, ValidationError{Field: "name", Message: "name or location_name is required"})
	}
	errs = append(errs, validateLength("name", r.Name, maxNameLength)...)
	errs = append(errs, validateLength("location_name", r.LocationName, maxLocationLength)...)
	return errs
}

type SourceRequest struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	URLTemplate string   `json:"url_template"`
	Subdomains  []string `json:"subdomains"`
	Attribution string   `json:"attribution"`
	Format      string   `json:"format"`
	MaxZoom     int      `json:"max_zoom"`
}

// ToSource leaves full validation to the source catalog.
func (r *SourceRequest) ToSource() sources.Source {
	return sources.Source{
		ID:          r.ID,
		Name:        r.Name,
		URLTemplate: r.URLTemplate,
		Subdomains:  r.Subdomains,
		Attribution: r.Attribution,
		Format:      r.Format,
		MaxZoom:     r.MaxZoom,
	}
}
