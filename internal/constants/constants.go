// Package constants contains application-wide constants to avoid magic numbers and strings.
package constants

import "time"

// Application defaults
const (
	DefaultPort               = "8080"
	DefaultDBPath             = "tilevault.db"
	DefaultConcurrency        = 6
	DefaultRateLimit          = 50 * time.Millisecond
	DefaultFetchTimeout       = 30 * time.Second
	DefaultCacheSize          = 2000
	DefaultProgressFlushEvery = 10
	DefaultMaxTilesPerJob     = 1_000_000
	DefaultUserAgent          = "tilevault/1.0 (+https://github.com/cesargomez89/tilevault)"
	DefaultShutdownTimeout    = 5 * time.Second
)

// Zoom limits
const (
	MinZoom = 0
	MaxZoom = 22
)

// Web Mercator limits
const (
	MaxLatitude  = 85.0511
	MaxLongitude = 180.0
)

// Estimation heuristics
const (
	AvgTileSizeKB   = 15.0
	AvgFetchLatency = 250 * time.Millisecond
)

// MIME Types
const (
	MimeTypeJSON = "application/json"
	MimeTypePNG  = "image/png"
	MimeTypeJPEG = "image/jpeg"
	MimeTypeWebP = "image/webp"
)

// HTTP
const (
	MaxRequestBodyBytes = 1 << 20
	TileCacheControl    = "public, max-age=86400"
)
