package sources

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/cesargomez89/tilevault/internal/domain"
	"github.com/cesargomez89/tilevault/internal/logger"
	"github.com/cesargomez89/tilevault/internal/store"
)

// SettingsStore persists the runtime-added sources.
type SettingsStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

type fileCatalog struct {
	Sources []Source `yaml:"sources"`
}

type Manager struct {
	settings SettingsStore
	logger   *logger.Logger
	sources  map[string]Source
	mu       sync.RWMutex
}

// NewManager returns a manager seeded with the built-in sources. settings may
// be nil, in which case custom sources live only in memory.
func NewManager(settings SettingsStore, log *logger.Logger) *Manager {
	m := &Manager{
		settings: settings,
		logger:   log.WithComponent("sources"),
		sources:  make(map[string]Source),
	}
	for _, src := range Builtin() {
		m.sources[src.ID] = src
	}
	return m
}

// LoadFile registers the sources listed in a YAML catalog. File entries
// replace built-ins with the same id.
func (m *Manager) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read sources file: %w", err)
	}

	var catalog fileCatalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return fmt.Errorf("failed to parse sources file: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range catalog.Sources {
		src := catalog.Sources[i]
		if err := src.Validate(); err != nil {
			return fmt.Errorf("sources file entry %d: %w", i, err)
		}
		src.Custom = false
		m.sources[src.ID] = src
	}
	m.logger.Info("Loaded sources file", "path", path, "count", len(catalog.Sources))
	return nil
}

// LoadCustom restores the sources added at runtime by a previous process.
func (m *Manager) LoadCustom() error {
	if m.settings == nil {
		return nil
	}
	raw, err := m.settings.Get(store.SettingCustomSources)
	if err != nil {
		return fmt.Errorf("failed to read custom sources: %w", err)
	}
	if raw == "" {
		return nil
	}

	var custom []Source
	if err := json.Unmarshal([]byte(raw), &custom); err != nil {
		return fmt.Errorf("failed to decode custom sources: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, src := range custom {
		if _, exists := m.sources[src.ID]; exists {
			m.logger.Warn("Skipping custom source shadowing a configured one", "source", src.ID)
			continue
		}
		src.Custom = true
		m.sources[src.ID] = src
	}
	return nil
}

func (m *Manager) Get(id string) (Source, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src, ok := m.sources[id]
	return src, ok
}

// List returns every source ordered by id.
func (m *Manager) List() []Source {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]Source, 0, len(m.sources))
	for _, src := range m.sources {
		list = append(list, src)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Add registers a custom source and persists the custom set.
func (m *Manager) Add(src Source) (Source, error) {
	if err := src.Validate(); err != nil {
		return Source{}, err
	}
	src.Custom = true

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sources[src.ID]; exists {
		return Source{}, fmt.Errorf("%w: %s", domain.ErrSourceExists, src.ID)
	}
	m.sources[src.ID] = src
	if err := m.persistLocked(); err != nil {
		delete(m.sources, src.ID)
		return Source{}, err
	}

	m.logger.Info("Added custom source", "source", src.ID, "url_template", src.URLTemplate)
	return src, nil
}

// Remove drops a custom source. Built-in and file sources cannot be removed.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, ok := m.sources[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownSource, id)
	}
	if !src.Custom {
		return domain.NewValidationError("id", "source %q is not a custom source", id)
	}

	delete(m.sources, id)
	if err := m.persistLocked(); err != nil {
		m.sources[id] = src
		return err
	}

	m.logger.Info("Removed custom source", "source", id)
	return nil
}

func (m *Manager) persistLocked() error {
	if m.settings == nil {
		return nil
	}

	var custom []Source
	for _, src := range m.sources {
		if src.Custom {
			custom = append(custom, src)
		}
	}
	if len(custom) == 0 {
		if err := m.settings.Delete(store.SettingCustomSources); err != nil {
			return fmt.Errorf("failed to clear custom sources: %w", err)
		}
		return nil
	}
	sort.Slice(custom, func(i, j int) bool { return custom[i].ID < custom[j].ID })

	data, err := json.Marshal(custom)
	if err != nil {
		return fmt.Errorf("failed to encode custom sources: %w", err)
	}
	if err := m.settings.Set(store.SettingCustomSources, string(data)); err != nil {
		return fmt.Errorf("failed to save custom sources: %w", err)
	}
	return nil
}
