package store

import (
	"fmt"
	"time"
)

// SettingCustomSources holds the JSON list of user-added tile sources.
const SettingCustomSources = "custom_sources"

type setting struct {
	Key       string    `db:"key"`
	Value     string    `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}

// SettingsRepo is a string key/value table for state that must outlive a
// restart but has no table of its own. A missing key reads as "".
type SettingsRepo struct {
	db *DB
}

func NewSettingsRepo(db *DB) *SettingsRepo {
	return &SettingsRepo{db: db}
}

func (r *SettingsRepo) Get(key string) (string, error) {
	var s setting
	err := r.db.Get(&s, `SELECT key, value, updated_at FROM settings WHERE key = ?`, key)
	switch {
	case isNoRows(err):
		return "", nil
	case err != nil:
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return s.Value, nil
}

func (r *SettingsRepo) Set(key, value string) error {
	const query = `
		INSERT INTO settings (key, value, updated_at)
		VALUES (:key, :value, :updated_at)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	if _, err := r.db.NamedExec(query, setting{Key: key, Value: value, UpdatedAt: now()}); err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (r *SettingsRepo) Delete(key string) error {
	if _, err := r.db.Exec(`DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}
