package sources

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cesargomez89/tilevault/internal/constants"
	"github.com/cesargomez89/tilevault/internal/domain"
	"github.com/cesargomez89/tilevault/internal/logger"
	"github.com/cesargomez89/tilevault/internal/store"
)

func TestSource_TileURL(t *testing.T) {
	tests := []struct {
		name string
		src  Source
		n    int
		want string
	}{
		{
			name: "xyz",
			src:  Source{URLTemplate: "https://tile.example.com/{z}/{x}/{y}.png"},
			want: "https://tile.example.com/3/4/5.png",
		},
		{
			name: "subdomain rotation",
			src:  Source{URLTemplate: "https://{s}.example.com/{z}/{x}/{y}.png", Subdomains: []string{"a", "b", "c"}},
			n:    4,
			want: "https://b.example.com/3/4/5.png",
		},
		{
			name: "quadkey",
			src:  Source{URLTemplate: "https://example.com/tiles/{q}.jpeg"},
			want: "https://example.com/tiles/302.jpeg",
		},
		{
			name: "tms order",
			src:  Source{URLTemplate: "https://example.com/{z}/{y}/{x}"},
			want: "https://example.com/3/5/4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.src.TileURL(3, 4, 5, tt.n); got != tt.want {
				t.Errorf("TileURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSource_ContentType(t *testing.T) {
	tests := []struct {
		src  Source
		want string
	}{
		{Source{URLTemplate: "https://a.example.com/{z}/{x}/{y}.png"}, constants.MimeTypePNG},
		{Source{URLTemplate: "https://a.example.com/{z}/{x}/{y}.jpg?key=1"}, constants.MimeTypeJPEG},
		{Source{URLTemplate: "https://a.example.com/{z}/{x}/{y}.webp"}, constants.MimeTypeWebP},
		{Source{URLTemplate: "https://a.example.com/{z}/{x}/{y}", Format: "jpeg"}, constants.MimeTypeJPEG},
		{Source{URLTemplate: "https://a.example.com/{z}/{x}/{y}"}, constants.MimeTypePNG},
	}

	for _, tt := range tests {
		if got := tt.src.ContentType(); got != tt.want {
			t.Errorf("ContentType(%q) = %q, want %q", tt.src.URLTemplate, got, tt.want)
		}
	}
}

func TestSource_Validate(t *testing.T) {
	tests := []struct {
		name      string
		src       Source
		wantField string
	}{
		{"valid", Source{ID: "mine", URLTemplate: "https://x.example.com/{z}/{x}/{y}.png"}, ""},
		{"valid quadkey", Source{ID: "bing", URLTemplate: "https://x.example.com/{q}"}, ""},
		{"bad id", Source{ID: "My Source", URLTemplate: "https://x.example.com/{z}/{x}/{y}.png"}, "id"},
		{"relative url", Source{ID: "a", URLTemplate: "/{z}/{x}/{y}.png"}, "url_template"},
		{"ftp url", Source{ID: "a", URLTemplate: "ftp://x.example.com/{z}/{x}/{y}.png"}, "url_template"},
		{"missing placeholder", Source{ID: "a", URLTemplate: "https://x.example.com/{z}/{x}.png"}, "url_template"},
		{"subdomain without list", Source{ID: "a", URLTemplate: "https://{s}.example.com/{z}/{x}/{y}.png"}, "subdomains"},
		{"max zoom too high", Source{ID: "a", URLTemplate: "https://x.example.com/{z}/{x}/{y}.png", MaxZoom: 30}, "max_zoom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := tt.src
			err := src.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				if src.MaxZoom != constants.MaxZoom {
					t.Errorf("Expected default max zoom %d, got %d", constants.MaxZoom, src.MaxZoom)
				}
				if src.Name != src.ID {
					t.Errorf("Expected name to default to id, got %q", src.Name)
				}
				return
			}

			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("Expected field %q, got %q", tt.wantField, ve.Field)
			}
		})
	}
}

func TestBuiltin_AreValid(t *testing.T) {
	seen := make(map[string]bool)
	for _, src := range Builtin() {
		if err := src.Validate(); err != nil {
			t.Errorf("builtin %s invalid: %v", src.ID, err)
		}
		if seen[src.ID] {
			t.Errorf("duplicate builtin id %s", src.ID)
		}
		seen[src.ID] = true
	}
	if !seen["osm"] {
		t.Error("Expected osm builtin")
	}
}

type memSettings struct {
	values map[string]string
	setErr error
}

func (m *memSettings) Get(key string) (string, error) { return m.values[key], nil }

func (m *memSettings) Set(key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

func (m *memSettings) Delete(key string) error {
	if m.setErr != nil {
		return m.setErr
	}
	delete(m.values, key)
	return nil
}

func TestManager_AddRemove(t *testing.T) {
	settings := &memSettings{values: map[string]string{}}
	m := NewManager(settings, logger.Discard())

	src, err := m.Add(Source{ID: "local", URLTemplate: "http://localhost:8081/{z}/{x}/{y}.png"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if !src.Custom {
		t.Error("Expected added source to be marked custom")
	}
	if _, ok := m.Get("local"); !ok {
		t.Fatal("Expected added source to be retrievable")
	}
	if settings.values[store.SettingCustomSources] == "" {
		t.Error("Expected custom sources to be persisted")
	}

	if _, err := m.Add(Source{ID: "local", URLTemplate: "http://localhost:8081/{z}/{x}/{y}.png"}); !errors.Is(err, domain.ErrSourceExists) {
		t.Errorf("Expected ErrSourceExists, got %v", err)
	}
	if _, err := m.Add(Source{ID: "osm", URLTemplate: "http://localhost:8081/{z}/{x}/{y}.png"}); !errors.Is(err, domain.ErrSourceExists) {
		t.Errorf("Expected ErrSourceExists for builtin id, got %v", err)
	}

	if err := m.Remove("osm"); !domain.IsValidation(err) {
		t.Errorf("Expected builtin removal to be rejected, got %v", err)
	}
	if err := m.Remove("nope"); !errors.Is(err, domain.ErrUnknownSource) {
		t.Errorf("Expected ErrUnknownSource, got %v", err)
	}
	if err := m.Remove("local"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, ok := m.Get("local"); ok {
		t.Error("Expected removed source to be gone")
	}
	if v, ok := settings.values[store.SettingCustomSources]; ok {
		t.Errorf("Expected persisted set to be cleared, got %q", v)
	}
}

func TestManager_AddRollsBackOnPersistFailure(t *testing.T) {
	settings := &memSettings{values: map[string]string{}, setErr: errors.New("read-only")}
	m := NewManager(settings, logger.Discard())

	if _, err := m.Add(Source{ID: "local", URLTemplate: "http://localhost/{z}/{x}/{y}.png"}); err == nil {
		t.Fatal("Expected persist failure to be returned")
	}
	if _, ok := m.Get("local"); ok {
		t.Error("Expected failed add to be rolled back")
	}
}

func TestManager_LoadCustomRestores(t *testing.T) {
	db, err := store.NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	defer db.Close()
	settings := store.NewSettingsRepo(db)

	first := NewManager(settings, logger.Discard())
	if _, err := first.Add(Source{ID: "local", URLTemplate: "http://localhost/{z}/{x}/{y}.png", MaxZoom: 15}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	second := NewManager(settings, logger.Discard())
	if err := second.LoadCustom(); err != nil {
		t.Fatalf("LoadCustom failed: %v", err)
	}
	src, ok := second.Get("local")
	if !ok {
		t.Fatal("Expected custom source restored")
	}
	if !src.Custom || src.MaxZoom != 15 {
		t.Errorf("Unexpected restored source: %+v", src)
	}
}

func TestManager_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	content := `sources:
  - id: osm
    name: OSM mirror
    url_template: https://mirror.example.com/{z}/{x}/{y}.png
    max_zoom: 18
  - id: sat
    name: Satellite
    url_template: https://{s}.sat.example.com/{z}/{x}/{y}.jpg
    subdomains: [t0, t1]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	m := NewManager(nil, logger.Discard())
	if err := m.LoadFile(path); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	osm, _ := m.Get("osm")
	if osm.Name != "OSM mirror" || osm.MaxZoom != 18 {
		t.Errorf("Expected file entry to replace builtin, got %+v", osm)
	}
	sat, ok := m.Get("sat")
	if !ok {
		t.Fatal("Expected sat source")
	}
	if sat.MaxZoom != constants.MaxZoom || sat.Custom {
		t.Errorf("Unexpected sat source: %+v", sat)
	}
	if got := sat.TileURL(1, 0, 1, 1); got != "https://t1.sat.example.com/1/0/1.jpg" {
		t.Errorf("TileURL() = %q", got)
	}
	if err := m.Remove("sat"); !domain.IsValidation(err) {
		t.Errorf("Expected file source removal to be rejected, got %v", err)
	}
}

func TestManager_LoadFileRejectsInvalidEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte("sources:\n  - id: Bad Id\n    url_template: nope\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	m := NewManager(nil, logger.Discard())
	if err := m.LoadFile(path); !domain.IsValidation(err) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestManager_ListSorted(t *testing.T) {
	m := NewManager(nil, logger.Discard())
	list := m.List()
	if len(list) != len(Builtin()) {
		t.Fatalf("Expected %d sources, got %d", len(Builtin()), len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].ID >= list[i].ID {
			t.Errorf("List not sorted: %s before %s", list[i-1].ID, list[i].ID)
		}
	}
}
