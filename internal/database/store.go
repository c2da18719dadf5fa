// file: internal/database/store.go
// version: 3.0.0
// guid: 2a9ba921-8625-4b05-937c-1e6762e7c2f2

package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

var (
	// ErrNotFound is returned when a keyed record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique field is already taken.
	ErrDuplicate = errors.New("record already exists")
	// ErrInvalidQuery is returned for search queries the store cannot run.
	ErrInvalidQuery = errors.New("invalid search query")
)

// Store defines the interface for catalog persistence.
// Both SQLite (default) and PebbleDB implement it.
type Store interface {
	// Lifecycle
	Close() error

	// Songs
	ListSongs(ctx context.Context) ([]Song, error)
	GetSong(ctx context.Context, id int) (*Song, error)
	CreateSong(ctx context.Context, song *Song) (*Song, error) // Assigns ID and CreatedAt
	UpdateSong(ctx context.Context, id int, patch SongPatch) (*Song, error)
	DeleteSong(ctx context.Context, id int) error
	SearchSongs(ctx context.Context, query SongQuery) ([]Song, error)
	CountSongs(ctx context.Context) (int, error)

	// Users (stored only; nothing authenticates against them)
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// Settings back the migration bookkeeping
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Song is a catalog entry.
type Song struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	Singer    string    `json:"singer"`
	SongURL   string    `json:"song_url"`
	ImageURL  string    `json:"image_url"`
	Year      int       `json:"year"`
	CreatedAt time.Time `json:"created_at"`
}

// SongPatch carries a partial update; nil fields are left untouched.
type SongPatch struct {
	Title    *string
	Singer   *string
	SongURL  *string
	ImageURL *string
	Year     *int
}

// Empty reports whether the patch changes nothing.
func (p SongPatch) Empty() bool {
	return p.Title == nil && p.Singer == nil && p.SongURL == nil && p.ImageURL == nil && p.Year == nil
}

// Apply copies the set fields onto song.
func (p SongPatch) Apply(song *Song) {
	if p.Title != nil {
		song.Title = *p.Title
	}
	if p.Singer != nil {
		song.Singer = *p.Singer
	}
	if p.SongURL != nil {
		song.SongURL = *p.SongURL
	}
	if p.ImageURL != nil {
		song.ImageURL = *p.ImageURL
	}
	if p.Year != nil {
		song.Year = *p.Year
	}
}

// User is a stored account record.
type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// SearchField selects which song columns a search matches against.
type SearchField string

const (
	SearchAll    SearchField = "all"
	SearchTitle  SearchField = "title"
	SearchSinger SearchField = "singer"
	SearchYear   SearchField = "year"
)

// ParseSearchField maps a query-string value to a SearchField. Empty and
// unrecognized values search every field.
func ParseSearchField(s string) SearchField {
	switch SearchField(strings.ToLower(strings.TrimSpace(s))) {
	case SearchTitle:
		return SearchTitle
	case SearchSinger:
		return SearchSinger
	case SearchYear:
		return SearchYear
	default:
		return SearchAll
	}
}

// SongQuery describes a catalog search.
type SongQuery struct {
	Text  string
	Field SearchField
}

// Year returns the exact year a SearchYear query matches.
func (q SongQuery) Year() (int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(q.Text))
	if err != nil {
		return 0, fmt.Errorf("%w: year must be an integer, got %q", ErrInvalidQuery, q.Text)
	}
	return year, nil
}

// Matches applies the query to a single song. Text matching is a
// case-insensitive substring test; SearchYear is an exact match.
func (q SongQuery) Matches(song Song) bool {
	needle := foldString(q.Text)
	switch q.Field {
	case SearchYear:
		year, err := q.Year()
		return err == nil && song.Year == year
	case SearchTitle:
		return strings.Contains(foldString(song.Title), needle)
	case SearchSinger:
		return strings.Contains(foldString(song.Singer), needle)
	default:
		return strings.Contains(foldString(song.Title), needle) ||
			strings.Contains(foldString(song.Singer), needle) ||
			strings.Contains(strconv.Itoa(song.Year), needle)
	}
}

// foldString returns the case-folded form used for search comparisons.
// Casers are not safe for concurrent use, so one is built per call.
func foldString(s string) string {
	return cases.Fold().String(s)
}

// NewStore opens the store implementation named by dbType.
func NewStore(dbType, path string) (Store, error) {
	switch dbType {
	case "sqlite", "sqlite3", "":
		store, err := NewSQLiteStore(path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		return store, nil
	case "pebble":
		store, err := NewPebbleStore(path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PebbleDB store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s (supported: sqlite, pebble)", dbType)
	}
}

// OpenStore opens the configured store and brings its schema up to date.
func OpenStore(ctx context.Context, dbType, path string) (Store, error) {
	store, err := NewStore(dbType, path)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, store); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}
