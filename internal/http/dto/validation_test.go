package dto

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cesargomez89/tilevault/internal/app"
	"github.com/cesargomez89/tilevault/internal/domain"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{Field: "source", Message: "is required"}
	if err.Error() != "source: is required" {
		t.Errorf("Error() = %q, want %q", err.Error(), "source: is required")
	}
}

func TestToMap(t *testing.T) {
	errs := []ValidationError{
		{Field: "source", Message: "is required"},
		{Field: "min_zoom", Message: "must be between 0 and 22"},
	}
	m := ToMap(errs)
	if len(m) != 2 {
		t.Errorf("ToMap() returned %d items, want 2", len(m))
	}
	if m["min_zoom"] != "must be between 0 and 22" {
		t.Errorf("ToMap()[min_zoom] = %q", m["min_zoom"])
	}
}

func TestToResponse(t *testing.T) {
	errs := []ValidationError{
		{Field: "source", Message: "is required"},
		{Field: "bounds", Message: "is required"},
	}
	expected := "source: is required; bounds: is required"
	if resp := ToResponse(errs); resp != expected {
		t.Errorf("ToResponse() = %q, want %q", resp, expected)
	}
}

func TestNewErrorResponse(t *testing.T) {
	wrapped := fmt.Errorf("download: %w", domain.NewValidationError("max_zoom", "too deep"))
	resp := NewErrorResponse(wrapped)
	if resp.Fields["max_zoom"] != "too deep" {
		t.Errorf("Expected max_zoom field, got %v", resp.Fields)
	}

	resp = NewErrorResponse(errors.New("boom"))
	if resp.Error != "boom" || resp.Fields != nil {
		t.Errorf("Unexpected response %+v", resp)
	}
}

func intPtr(i int) *int       { return &i }
func strPtr(s string) *string { return &s }

func TestDownloadRequest_Validate(t *testing.T) {
	bounds := &domain.GeoBounds{North: 40.76, South: 40.74, East: -73.97, West: -73.99}
	long := string(make([]byte, maxNameLength+1))

	tests := []struct {
		name       string
		req        DownloadRequest
		wantFields []string
	}{
		{"valid", DownloadRequest{Source: "osm", Bounds: bounds, MinZoom: intPtr(10), MaxZoom: intPtr(12)}, nil},
		{"empty", DownloadRequest{}, []string{"source", "bounds", "min_zoom", "max_zoom"}},
		{"zoom out of range", DownloadRequest{Source: "osm", Bounds: bounds, MinZoom: intPtr(-1), MaxZoom: intPtr(23)}, []string{"min_zoom", "max_zoom"}},
		{"name too long", DownloadRequest{Source: "osm", Bounds: bounds, MinZoom: intPtr(1), MaxZoom: intPtr(1), Name: &long}, []string{"name"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ToMap(tt.req.Validate())
			if len(m) != len(tt.wantFields) {
				t.Fatalf("Validate() = %v, want fields %v", m, tt.wantFields)
			}
			for _, f := range tt.wantFields {
				if _, ok := m[f]; !ok {
					t.Errorf("Missing error for %s in %v", f, m)
				}
			}
		})
	}
}

func TestDownloadRequest_ToApp(t *testing.T) {
	bounds := &domain.GeoBounds{North: 1, South: 0, East: 1, West: 0}
	req := DownloadRequest{Source: "osm", Bounds: bounds, MinZoom: intPtr(3), MaxZoom: intPtr(5)}

	got := req.ToApp()
	if got.Name != "" || got.Source != "osm" || got.MinZoom != 3 || got.MaxZoom != 5 || got.Bounds != *bounds {
		t.Errorf("Unexpected conversion %+v", got)
	}

	req.Name = strPtr("Downtown")
	if got := req.ToApp(); got.Name != "Downtown" {
		t.Errorf("Expected name to carry over, got %q", got.Name)
	}
}

func TestJobUpdateRequest_Validate(t *testing.T) {
	if errs := (&JobUpdateRequest{}).Validate(); len(errs) != 1 {
		t.Errorf("Expected one error for empty update, got %v", errs)
	}
	if errs := (&JobUpdateRequest{LocationName: strPtr("")}).Validate(); len(errs) != 0 {
		t.Errorf("Clearing the location should be valid, got %v", errs)
	}
}

func TestNewJobResponse(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	js := &app.JobStatus{
		Job: &domain.Job{
			ID:        "job-1",
			Name:      "Midtown",
			Source:    "osm",
			Status:    domain.JobStatusRunning,
			MinZoom:   14,
			MaxZoom:   16,
			CreatedAt: created,
			UpdatedAt: created,
		},
		Progress: domain.Progress{Total: 10, Downloaded: 5, Percent: 50},
		Active:   true,
	}

	resp := NewJobResponse(js)
	if resp.Status != "running" || !resp.Active || resp.Progress.Percent != 50 {
		t.Errorf("Unexpected response %+v", resp)
	}
	if resp.CreatedAt != "2024-05-01T12:00:00Z" {
		t.Errorf("CreatedAt = %q", resp.CreatedAt)
	}
}
