// file: internal/database/pebble_store.go
// version: 2.0.0
// guid: 281b0a6a-f7e9-4892-ab90-7b2aa0efc928

package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/pebble/v2"
)

// PebbleStore implements the Store interface using PebbleDB.
//
// Key layout:
//
//	song:<id %010d>        -> Song JSON
//	user:<id %010d>        -> User JSON
//	user_name:<username>   -> user id
//	setting:<key>          -> raw value
//	counter:<name>         -> next id
type PebbleStore struct {
	db *pebble.DB
	// mu serializes read-modify-write sequences (id allocation, updates).
	mu sync.Mutex
}

type pebbleUser struct {
	User
	PasswordHash string `json:"password_hash"`
}

// NewPebbleStore creates a new PebbleDB store
func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{FormatMajorVersion: pebble.FormatNewest})
	if err != nil {
		return nil, fmt.Errorf("failed to open PebbleDB: %w", err)
	}

	store := &PebbleStore{db: db}

	// Initialize counters if they don't exist
	for _, counter := range []string{"song", "user"} {
		key := counterKey(counter)
		if _, closer, err := db.Get(key); errors.Is(err, pebble.ErrNotFound) {
			if err := db.Set(key, []byte("1"), pebble.Sync); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to initialize counter %s: %w", counter, err)
			}
		} else if err == nil {
			closer.Close()
		} else {
			db.Close()
			return nil, fmt.Errorf("failed to check counter %s: %w", counter, err)
		}
	}

	return store, nil
}

// Close closes the database
func (p *PebbleStore) Close() error {
	return p.db.Close()
}

// DB exposes the underlying handle for diagnostics.
func (p *PebbleStore) DB() *pebble.DB {
	return p.db
}

// Helper functions

func counterKey(name string) []byte  { return []byte("counter:" + name) }
func songKey(id int) []byte          { return []byte(fmt.Sprintf("song:%010d", id)) }
func userKey(id int) []byte          { return []byte(fmt.Sprintf("user:%010d", id)) }
func userNameKey(name string) []byte { return []byte("user_name:" + name) }
func settingKey(key string) []byte   { return []byte("setting:" + key) }

// nextID reserves the next id for counter inside batch. Callers hold p.mu.
func (p *PebbleStore) nextID(batch *pebble.Batch, counter string) (int, error) {
	key := counterKey(counter)
	value, closer, err := p.db.Get(key)
	if err != nil {
		return 0, err
	}
	id, err := strconv.Atoi(string(value))
	closer.Close()
	if err != nil {
		return 0, err
	}
	if err := batch.Set(key, []byte(strconv.Itoa(id+1)), nil); err != nil {
		return 0, err
	}
	return id, nil
}

// getJSON decodes the value at key into dst, mapping a missing key to ErrNotFound.
func (p *PebbleStore) getJSON(key []byte, dst interface{}) error {
	value, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	defer closer.Close()
	return json.Unmarshal(value, dst)
}

// scanSongs walks the song keyspace in id order, keeping songs for which keep
// returns true.
func (p *PebbleStore) scanSongs(keep func(Song) bool) ([]Song, error) {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("song:"),
		UpperBound: []byte("song;"),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	songs := []Song{}
	for iter.First(); iter.Valid(); iter.Next() {
		var song Song
		if err := json.Unmarshal(iter.Value(), &song); err != nil {
			return nil, fmt.Errorf("corrupt song record %q: %w", iter.Key(), err)
		}
		if keep == nil || keep(song) {
			songs = append(songs, song)
		}
	}
	return songs, iter.Error()
}

// Song operations

func (p *PebbleStore) ListSongs(ctx context.Context) ([]Song, error) {
	return p.scanSongs(nil)
}

func (p *PebbleStore) GetSong(ctx context.Context, id int) (*Song, error) {
	var song Song
	if err := p.getJSON(songKey(id), &song); err != nil {
		return nil, err
	}
	return &song, nil
}

func (p *PebbleStore) CreateSong(ctx context.Context, song *Song) (*Song, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	batch := p.db.NewBatch()
	defer batch.Close()

	id, err := p.nextID(batch, "song")
	if err != nil {
		return nil, err
	}

	created := *song
	created.ID = id
	created.CreatedAt = time.Now().UTC()
	data, err := json.Marshal(created)
	if err != nil {
		return nil, err
	}
	if err := batch.Set(songKey(id), data, nil); err != nil {
		return nil, err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return nil, err
	}
	return &created, nil
}

func (p *PebbleStore) UpdateSong(ctx context.Context, id int, patch SongPatch) (*Song, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	song, err := p.GetSong(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(song)

	data, err := json.Marshal(song)
	if err != nil {
		return nil, err
	}
	if err := p.db.Set(songKey(id), data, pebble.Sync); err != nil {
		return nil, err
	}
	return song, nil
}

func (p *PebbleStore) DeleteSong(ctx context.Context, id int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.GetSong(ctx, id); err != nil {
		return err
	}
	return p.db.Delete(songKey(id), pebble.Sync)
}

func (p *PebbleStore) SearchSongs(ctx context.Context, query SongQuery) ([]Song, error) {
	if query.Field == SearchYear {
		if _, err := query.Year(); err != nil {
			return nil, err
		}
	}
	return p.scanSongs(query.Matches)
}

func (p *PebbleStore) CountSongs(ctx context.Context) (int, error) {
	songs, err := p.scanSongs(nil)
	if err != nil {
		return 0, err
	}
	return len(songs), nil
}

// User operations

func (p *PebbleStore) CreateUser(ctx context.Context, username, passwordHash string) (*User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, closer, err := p.db.Get(userNameKey(username)); err == nil {
		closer.Close()
		return nil, fmt.Errorf("%w: username %q", ErrDuplicate, username)
	} else if !errors.Is(err, pebble.ErrNotFound) {
		return nil, err
	}

	batch := p.db.NewBatch()
	defer batch.Close()

	id, err := p.nextID(batch, "user")
	if err != nil {
		return nil, err
	}
	record := pebbleUser{
		User:         User{ID: id, Username: username, CreatedAt: time.Now().UTC()},
		PasswordHash: passwordHash,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	if err := batch.Set(userKey(id), data, nil); err != nil {
		return nil, err
	}
	if err := batch.Set(userNameKey(username), []byte(strconv.Itoa(id)), nil); err != nil {
		return nil, err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return nil, err
	}

	user := record.User
	user.PasswordHash = passwordHash
	return &user, nil
}

func (p *PebbleStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	value, closer, err := p.db.Get(userNameKey(username))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	id, err := strconv.Atoi(string(value))
	closer.Close()
	if err != nil {
		return nil, err
	}

	var record pebbleUser
	if err := p.getJSON(userKey(id), &record); err != nil {
		return nil, err
	}
	user := record.User
	user.PasswordHash = record.PasswordHash
	return &user, nil
}

// Settings

func (p *PebbleStore) GetSetting(ctx context.Context, key string) (string, error) {
	value, closer, err := p.db.Get(settingKey(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	defer closer.Close()
	return string(value), nil
}

func (p *PebbleStore) SetSetting(ctx context.Context, key, value string) error {
	return p.db.Set(settingKey(key), []byte(value), pebble.Sync)
}
