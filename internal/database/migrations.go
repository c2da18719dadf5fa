// file: internal/database/migrations.go
// version: 2.0.0
// guid: d8a8f328-9ea0-4b7b-a13e-e5cbcf263c86

package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"
)

// MigrationFunc represents a migration operation
type MigrationFunc func(ctx context.Context, store Store) error

// Migration represents a single database migration
type Migration struct {
	Version     int
	Description string
	Up          MigrationFunc
}

// MigrationRecord tracks applied migrations
type MigrationRecord struct {
	Version     int       `json:"version"`
	Description string    `json:"description"`
	AppliedAt   time.Time `json:"applied_at"`
}

// DatabaseVersion stores the current schema version
type DatabaseVersion struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

const versionKey = "db_version"

// migrations is the ordered list of all migrations
var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema with songs and users",
		Up:          migration001Up,
	},
	{
		Version:     2,
		Description: "Add song year and title indexes",
		Up:          migration002Up,
	},
}

// RunMigrations applies all pending migrations
func RunMigrations(ctx context.Context, store Store) error {
	currentVersion, err := CurrentVersion(ctx, store)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	var pending []Migration
	for _, m := range migrations {
		if m.Version > currentVersion {
			pending = append(pending, m)
		}
	}

	if len(pending) == 0 {
		log.Printf("[DEBUG] Database is up to date (version %d)", currentVersion)
		return nil
	}

	log.Printf("[INFO] Applying %d migrations (current version %d)", len(pending), currentVersion)

	for _, m := range pending {
		log.Printf("[INFO] Applying migration %d: %s", m.Version, m.Description)

		if err := m.Up(ctx, store); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.Version, err)
		}
		if err := recordMigration(ctx, store, m); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		if err := setVersion(ctx, store, m.Version); err != nil {
			return fmt.Errorf("failed to update version to %d: %w", m.Version, err)
		}
	}

	log.Printf("[INFO] All migrations completed. Current version: %d", pending[len(pending)-1].Version)
	return nil
}

// LatestVersion is the schema version RunMigrations converges to.
func LatestVersion() int {
	return migrations[len(migrations)-1].Version
}

// CurrentVersion retrieves the current schema version; a fresh store is 0.
func CurrentVersion(ctx context.Context, store Store) (int, error) {
	raw, err := store.GetSetting(ctx, versionKey)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version DatabaseVersion
	if err := json.Unmarshal([]byte(raw), &version); err != nil {
		return 0, fmt.Errorf("failed to parse version: %w", err)
	}
	return version.Version, nil
}

func setVersion(ctx context.Context, store Store, version int) error {
	data, err := json.Marshal(DatabaseVersion{Version: version, UpdatedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal version: %w", err)
	}
	return store.SetSetting(ctx, versionKey, string(data))
}

func recordMigration(ctx context.Context, store Store, m Migration) error {
	data, err := json.Marshal(MigrationRecord{
		Version:     m.Version,
		Description: m.Description,
		AppliedAt:   time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal migration record: %w", err)
	}
	return store.SetSetting(ctx, fmt.Sprintf("migration_%d", m.Version), string(data))
}

// Migration implementations

// migration001Up validates the base schema created when the store opened.
func migration001Up(ctx context.Context, store Store) error {
	_, err := store.CountSongs(ctx)
	return err
}

// migration002Up adds lookup indexes. Pebble scans the ordered song keyspace
// and needs nothing.
func migration002Up(ctx context.Context, store Store) error {
	s, ok := store.(*SQLiteStore)
	if !ok {
		return nil
	}
	if err := s.exec(ctx, `CREATE INDEX IF NOT EXISTS idx_songs_year ON songs(year)`); err != nil {
		return err
	}
	return s.exec(ctx, `CREATE INDEX IF NOT EXISTS idx_songs_title ON songs(title)`)
}
