// Package tiles converts geographic bounds into Web Mercator tile indices.
//
// Every function here is pure. Functions taking external input have a
// matching Validate* predicate; callers are expected to validate first.
package tiles

import (
	"math"

	"github.com/paulmach/orb/maptile"

	"github.com/cesargomez89/tilevault/internal/constants"
	"github.com/cesargomez89/tilevault/internal/domain"
)

// PointToTile returns the tile containing (lat, lng) at zoom. Coordinates
// outside the Web Mercator square produce indices outside [0, 2^zoom-1].
func PointToTile(lat, lng float64, zoom int) (x, y int) {
	n := math.Exp2(float64(zoom))
	x = int(math.Floor((lng + 180.0) / 360.0 * n))

	latRad := lat * math.Pi / 180.0
	y = int(math.Floor((1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * n))
	return x, y
}

// Range returns the tile rectangle covering bounds at zoom. The corners are
// ordered element-wise, so swapped north/south or east/west still give a
// valid range, and the result is clamped to the zoom's index space.
func Range(b domain.GeoBounds, zoom int) domain.TileRange {
	x1, y1 := PointToTile(b.North, b.West, zoom)
	x2, y2 := PointToTile(b.South, b.East, zoom)

	last := (1 << zoom) - 1
	return domain.TileRange{
		Z:    zoom,
		MinX: clamp(min(x1, x2), 0, last),
		MaxX: clamp(max(x1, x2), 0, last),
		MinY: clamp(min(y1, y2), 0, last),
		MaxY: clamp(max(y1, y2), 0, last),
	}
}

// Ranges returns one Range per zoom in [minZoom, maxZoom].
func Ranges(b domain.GeoBounds, minZoom, maxZoom int) []domain.TileRange {
	out := make([]domain.TileRange, 0, maxZoom-minZoom+1)
	for z := minZoom; z <= maxZoom; z++ {
		out = append(out, Range(b, z))
	}
	return out
}

// Enumerate calls fn for every tile in bounds across the zoom range, in
// increasing zoom, then x, then y order. It stops early when fn returns false.
func Enumerate(b domain.GeoBounds, minZoom, maxZoom int, fn func(maptile.Tile) bool) {
	for z := minZoom; z <= maxZoom; z++ {
		r := Range(b, z)
		for x := r.MinX; x <= r.MaxX; x++ {
			for y := r.MinY; y <= r.MaxY; y++ {
				if !fn(maptile.New(uint32(x), uint32(y), maptile.Zoom(z))) {
					return
				}
			}
		}
	}
}

// List materialises Enumerate. Use Count when only the size is needed.
func List(b domain.GeoBounds, minZoom, maxZoom int) []maptile.Tile {
	out := make([]maptile.Tile, 0, Count(b, minZoom, maxZoom))
	Enumerate(b, minZoom, maxZoom, func(t maptile.Tile) bool {
		out = append(out, t)
		return true
	})
	return out
}

// Count returns the number of tiles Enumerate would produce, in
// O(maxZoom-minZoom) time.
func Count(b domain.GeoBounds, minZoom, maxZoom int) int64 {
	var total int64
	for z := minZoom; z <= maxZoom; z++ {
		total += Range(b, z).Count()
	}
	return total
}

// ValidateBounds checks latitude/longitude ranges and north > south.
func ValidateBounds(b domain.GeoBounds) error {
	for _, f := range []struct {
		name string
		v    float64
		lim  float64
	}{
		{"north", b.North, constants.MaxLatitude},
		{"south", b.South, constants.MaxLatitude},
		{"east", b.East, constants.MaxLongitude},
		{"west", b.West, constants.MaxLongitude},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return domain.NewValidationError(f.name, "must be a finite number")
		}
		if f.v < -f.lim || f.v > f.lim {
			return domain.NewValidationError(f.name, "must be between %g and %g", -f.lim, f.lim)
		}
	}
	if b.North <= b.South {
		return domain.NewValidationError("north", "must be greater than south")
	}
	return nil
}

// ValidateZoomRange checks both zooms are in [0, 22] and minZoom <= maxZoom.
func ValidateZoomRange(minZoom, maxZoom int) error {
	if err := ValidateZoom("min_zoom", minZoom); err != nil {
		return err
	}
	if err := ValidateZoom("max_zoom", maxZoom); err != nil {
		return err
	}
	if minZoom > maxZoom {
		return domain.NewValidationError("min_zoom", "must not be greater than max_zoom")
	}
	return nil
}

// ValidateZoom checks a single zoom level.
func ValidateZoom(field string, z int) error {
	if z < constants.MinZoom || z > constants.MaxZoom {
		return domain.NewValidationError(field, "must be between %d and %d", constants.MinZoom, constants.MaxZoom)
	}
	return nil
}

// ValidateTile checks x and y lie within [0, 2^z-1].
func ValidateTile(z, x, y int) error {
	if err := ValidateZoom("z", z); err != nil {
		return err
	}
	last := (1 << z) - 1
	if x < 0 || x > last {
		return domain.NewValidationError("x", "must be between 0 and %d at zoom %d", last, z)
	}
	if y < 0 || y > last {
		return domain.NewValidationError("y", "must be between 0 and %d at zoom %d", last, z)
	}
	return nil
}

// Quadkey returns the Bing-style quadkey for a tile.
func Quadkey(z, x, y int) string {
	key := make([]byte, z)
	for i := z; i > 0; i-- {
		digit := byte('0')
		mask := 1 << (i - 1)
		if x&mask != 0 {
			digit++
		}
		if y&mask != 0 {
			digit += 2
		}
		key[z-i] = digit
	}
	return string(key)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
