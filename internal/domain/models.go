package domain

import (
	"math"
	"time"

	"github.com/paulmach/orb"
)

type JobStatus string

const (
	JobStatusPending             JobStatus = "pending"
	JobStatusRunning             JobStatus = "running"
	JobStatusCompleted           JobStatus = "completed"
	JobStatusCompletedWithErrors JobStatus = "completed_with_errors"
	JobStatusCancelled           JobStatus = "cancelled"
)

// IsTerminal reports whether the status ends a run.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusCompletedWithErrors, JobStatusCancelled:
		return true
	}
	return false
}

// GeoBounds is a latitude/longitude box in degrees.
type GeoBounds struct {
	North float64 `json:"north" db:"north"`
	South float64 `json:"south" db:"south"`
	East  float64 `json:"east" db:"east"`
	West  float64 `json:"west" db:"west"`
}

// Bound converts the box to an orb.Bound (X = longitude, Y = latitude).
func (b GeoBounds) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{math.Min(b.West, b.East), b.South},
		Max: orb.Point{math.Max(b.West, b.East), b.North},
	}
}

// Center returns the midpoint of the box as (lat, lng).
func (b GeoBounds) Center() (lat, lng float64) {
	c := b.Bound().Center()
	return c.Lat(), c.Lon()
}

// TileKey identifies one stored tile.
type TileKey struct {
	Source string
	Z      int
	X      int
	Y      int
}

// TileRange is an inclusive rectangle of tile indices at one zoom level.
type TileRange struct {
	Z    int `json:"z"`
	MinX int `json:"min_x"`
	MaxX int `json:"max_x"`
	MinY int `json:"min_y"`
	MaxY int `json:"max_y"`
}

// Contains reports whether (x, y) lies inside the rectangle.
func (r TileRange) Contains(x, y int) bool {
	return x >= r.MinX && x <= r.MaxX && y >= r.MinY && y <= r.MaxY
}

// Width is the number of tile columns.
func (r TileRange) Width() int64 { return int64(r.MaxX-r.MinX) + 1 }

// Height is the number of tile rows.
func (r TileRange) Height() int64 { return int64(r.MaxY-r.MinY) + 1 }

// Count is Width * Height.
func (r TileRange) Count() int64 { return r.Width() * r.Height() }

// Job represents one download request over a bounds and zoom range
type Job struct {
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
	LocationName    *string   `json:"location_name,omitempty" db:"location_name"`
	ID              string    `json:"id" db:"id"`
	Name            string    `json:"name" db:"name"`
	Source          string    `json:"source" db:"source"`
	Status          JobStatus `json:"status" db:"status"`
	Bounds          GeoBounds `json:"bounds" db:"bounds"`
	CenterLat       float64   `json:"center_lat" db:"center_lat"`
	CenterLng       float64   `json:"center_lng" db:"center_lng"`
	MinZoom         int       `json:"min_zoom" db:"min_zoom"`
	MaxZoom         int       `json:"max_zoom" db:"max_zoom"`
	TotalTiles      int64     `json:"total_tiles" db:"total_tiles"`
	DownloadedTiles int64     `json:"downloaded_tiles" db:"downloaded_tiles"`
	SkippedTiles    int64     `json:"skipped_tiles" db:"skipped_tiles"`
	FailedTiles     int64     `json:"failed_tiles" db:"failed_tiles"`
}

// Progress is a point-in-time view of a job's counters.
type Progress struct {
	Total      int64 `json:"total"`
	Downloaded int64 `json:"downloaded"`
	Skipped    int64 `json:"skipped"`
	Failed     int64 `json:"failed"`
	Queued     int64 `json:"queued"`
	InFlight   int64 `json:"in_flight"`
	Percent    int   `json:"percent"`
}

// ProgressPercent is round(100 * downloaded / total), 0 when total is 0.
func ProgressPercent(downloaded, total int64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(downloaded) / float64(total)))
}

// SourceStats aggregates stored tiles for one source.
type SourceStats struct {
	Source     string    `json:"source" db:"source"`
	TileCount  int64     `json:"tile_count" db:"tile_count"`
	TotalBytes int64     `json:"total_bytes" db:"total_bytes"`
	Oldest     time.Time `json:"oldest"`
	Newest     time.Time `json:"newest"`
}
