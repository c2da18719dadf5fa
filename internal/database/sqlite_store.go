// file: internal/database/sqlite_store.go
// version: 2.0.0
// guid: dbf20fcf-eb03-4f97-94ba-0bd933848967

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

// sqliteDriverName is go-sqlite3 with the fold() search helper registered on
// every connection.
const sqliteDriverName = "sqlite3_catalog"

func init() {
	sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("fold", foldString, true)
		},
	})
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

const songSelectColumns = `id, title, singer, song_url, image_url, year, created_at`

func scanSong(scanner rowScanner, song *Song) error {
	return scanner.Scan(
		&song.ID, &song.Title, &song.Singer, &song.SongURL,
		&song.ImageURL, &song.Year, &song.CreatedAt,
	)
}

// SQLiteStore implements the Store interface using SQLite3
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	store := &SQLiteStore{db: db}

	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return store, nil
}

// createTables creates all required tables
func (s *SQLiteStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS songs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		singer TEXT NOT NULL,
		song_url TEXT NOT NULL,
		image_url TEXT NOT NULL,
		year INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Song operations

func (s *SQLiteStore) ListSongs(ctx context.Context) ([]Song, error) {
	return s.querySongs(ctx, `SELECT `+songSelectColumns+` FROM songs ORDER BY id`)
}

func (s *SQLiteStore) GetSong(ctx context.Context, id int) (*Song, error) {
	return s.getSong(ctx, s.db, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *SQLiteStore) getSong(ctx context.Context, q queryRower, id int) (*Song, error) {
	var song Song
	row := q.QueryRowContext(ctx, `SELECT `+songSelectColumns+` FROM songs WHERE id = ?`, id)
	if err := scanSong(row, &song); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &song, nil
}

func (s *SQLiteStore) CreateSong(ctx context.Context, song *Song) (*Song, error) {
	created := *song
	created.CreatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO songs (title, singer, song_url, image_url, year, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		created.Title, created.Singer, created.SongURL, created.ImageURL, created.Year, created.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert song: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	created.ID = int(id)
	return &created, nil
}

func (s *SQLiteStore) UpdateSong(ctx context.Context, id int, patch SongPatch) (*Song, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	song, err := s.getSong(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(song)

	_, err = tx.ExecContext(ctx,
		`UPDATE songs SET title = ?, singer = ?, song_url = ?, image_url = ?, year = ? WHERE id = ?`,
		song.Title, song.Singer, song.SongURL, song.ImageURL, song.Year, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update song %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return song, nil
}

func (s *SQLiteStore) DeleteSong(ctx context.Context, id int) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM songs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete song %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) SearchSongs(ctx context.Context, query SongQuery) ([]Song, error) {
	base := `SELECT ` + songSelectColumns + ` FROM songs WHERE `
	needle := foldString(query.Text)

	switch query.Field {
	case SearchYear:
		year, err := query.Year()
		if err != nil {
			return nil, err
		}
		return s.querySongs(ctx, base+`year = ? ORDER BY id`, year)
	case SearchTitle:
		return s.querySongs(ctx, base+`instr(fold(title), ?) > 0 ORDER BY id`, needle)
	case SearchSinger:
		return s.querySongs(ctx, base+`instr(fold(singer), ?) > 0 ORDER BY id`, needle)
	default:
		return s.querySongs(ctx, base+strings.Join([]string{
			`instr(fold(title), ?) > 0`,
			`instr(fold(singer), ?) > 0`,
			`instr(CAST(year AS TEXT), ?) > 0`,
		}, " OR ")+` ORDER BY id`, needle, needle, needle)
	}
}

func (s *SQLiteStore) CountSongs(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM songs`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *SQLiteStore) querySongs(ctx context.Context, query string, args ...interface{}) ([]Song, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	songs := []Song{}
	for rows.Next() {
		var song Song
		if err := scanSong(rows, &song); err != nil {
			return nil, err
		}
		songs = append(songs, song)
	}
	return songs, rows.Err()
}

// User operations

func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*User, error) {
	user := &User{Username: username, PasswordHash: passwordHash, CreatedAt: time.Now().UTC()}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password, created_at) VALUES (?, ?, ?)`,
		user.Username, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, fmt.Errorf("%w: username %q", ErrDuplicate, username)
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	user.ID = int(id)
	return user, nil
}

func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password, created_at FROM users WHERE username = ?`, username,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Settings

func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	return err
}

// exec runs a raw statement; migrations use it for SQLite-only DDL.
func (s *SQLiteStore) exec(ctx context.Context, stmt string) error {
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}
