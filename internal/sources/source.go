// Package sources holds the catalog of tile providers a job can download from.
package sources

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/cesargomez89/tilevault/internal/constants"
	"github.com/cesargomez89/tilevault/internal/domain"
	"github.com/cesargomez89/tilevault/internal/tiles"
)

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Source describes a tile provider. URLTemplate may use {z}, {x}, {y},
// {s} (subdomain) and {q} (quadkey).
type Source struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	URLTemplate string   `json:"url_template" yaml:"url_template"`
	Subdomains  []string `json:"subdomains,omitempty" yaml:"subdomains"`
	Attribution string   `json:"attribution,omitempty" yaml:"attribution"`
	MaxZoom     int      `json:"max_zoom" yaml:"max_zoom"`
	Format      string   `json:"format,omitempty" yaml:"format"`
	Custom      bool     `json:"custom" yaml:"-"`
}

// TileURL renders the request URL for one tile. n picks the subdomain, so
// callers can spread consecutive requests across hosts.
func (s Source) TileURL(z, x, y, n int) string {
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(z),
		"{x}", strconv.Itoa(x),
		"{y}", strconv.Itoa(y),
		"{s}", s.subdomain(n),
		"{q}", tiles.Quadkey(z, x, y),
	)
	return r.Replace(s.URLTemplate)
}

func (s Source) subdomain(n int) string {
	if len(s.Subdomains) == 0 {
		return ""
	}
	if n < 0 {
		n = -n
	}
	return s.Subdomains[n%len(s.Subdomains)]
}

// ContentType is the MIME type tiles of this source are served with.
func (s Source) ContentType() string {
	format := s.Format
	if format == "" {
		format = strings.ToLower(s.URLTemplate)
		if i := strings.IndexByte(format, '?'); i >= 0 {
			format = format[:i]
		}
		format = format[strings.LastIndexByte(format, '.')+1:]
	}

	switch format {
	case "jpg", "jpeg":
		return constants.MimeTypeJPEG
	case "webp":
		return constants.MimeTypeWebP
	default:
		return constants.MimeTypePNG
	}
}

// Validate checks the source and fills in a default MaxZoom.
func (s *Source) Validate() error {
	if !idPattern.MatchString(s.ID) {
		return domain.NewValidationError("id", "must be lowercase letters, digits, '-' or '_'")
	}
	if s.Name == "" {
		s.Name = s.ID
	}

	u, err := url.Parse(strings.NewReplacer("{", "", "}", "").Replace(s.URLTemplate))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return domain.NewValidationError("url_template", "must be an absolute http(s) URL")
	}

	hasXYZ := strings.Contains(s.URLTemplate, "{z}") &&
		strings.Contains(s.URLTemplate, "{x}") &&
		strings.Contains(s.URLTemplate, "{y}")
	if !hasXYZ && !strings.Contains(s.URLTemplate, "{q}") {
		return domain.NewValidationError("url_template", "must contain {z}, {x} and {y} or {q}")
	}
	if strings.Contains(s.URLTemplate, "{s}") && len(s.Subdomains) == 0 {
		return domain.NewValidationError("subdomains", "required when url_template uses {s}")
	}

	if s.MaxZoom == 0 {
		s.MaxZoom = constants.MaxZoom
	}
	if s.MaxZoom < constants.MinZoom || s.MaxZoom > constants.MaxZoom {
		return domain.NewValidationError("max_zoom", "must be between %d and %d", constants.MinZoom, constants.MaxZoom)
	}
	return nil
}

// Builtin returns the sources available without any configuration.
func Builtin() []Source {
	return []Source{
		{
			ID:          "osm",
			Name:        "OpenStreetMap",
			URLTemplate: "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
			Attribution: "© OpenStreetMap contributors",
			MaxZoom:     19,
		},
		{
			ID:          "opentopomap",
			Name:        "OpenTopoMap",
			URLTemplate: "https://{s}.tile.opentopomap.org/{z}/{x}/{y}.png",
			Subdomains:  []string{"a", "b", "c"},
			Attribution: "© OpenStreetMap contributors, SRTM | © OpenTopoMap (CC-BY-SA)",
			MaxZoom:     17,
		},
		{
			ID:          "carto-light",
			Name:        "CARTO Positron",
			URLTemplate: "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}.png",
			Subdomains:  []string{"a", "b", "c", "d"},
			Attribution: "© OpenStreetMap contributors © CARTO",
			MaxZoom:     20,
		},
		{
			ID:          "esri-imagery",
			Name:        "Esri World Imagery",
			URLTemplate: "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}",
			Attribution: "Tiles © Esri",
			MaxZoom:     19,
			Format:      "jpeg",
		},
	}
}
