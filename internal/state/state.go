// Package state implements the persisted key/value store shared by every
// deskhand context. Writes are atomic per Set call and last-write-wins across
// concurrent writers; there are no transactions spanning multiple Set calls.
package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/deskhand/deskhand/internal/logging"
)

// Well-known keys. The layout is shared with the page and popup contexts.
const (
	KeyEnabled       = "extensionEnabled"
	KeyLastMessage   = "lastCustomerMessage"
	KeyPlatform      = "detectedPlatform"
	KeyLanguage      = "languagePreference"
	KeyFAQCache      = "faqCache"
	KeyTrainingCache = "trainingCache"
)

// ErrStorageUnavailable reports that the persisted store could not be
// reached. Callers degrade to in-memory defaults; the session keeps working.
var ErrStorageUnavailable = errors.New("state storage unavailable")

// SubscribeFunc is called after a successful Set with the keys that changed.
type SubscribeFunc func(changed map[string]json.RawMessage)

// Store is the process-wide state store. It keeps an in-memory mirror of all
// keys so reads and writes survive a lost database for the current session.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB // nil when running memory-only
	mirror map[string]json.RawMessage

	subMu sync.RWMutex
	subs  []SubscribeFunc
}

// Open opens (or creates) the sqlite-backed store at path. On failure it
// returns a memory-only store together with ErrStorageUnavailable so the
// caller can log the degradation and carry on.
func Open(path string) (*Store, error) {
	s := &Store{mirror: make(map[string]json.RawMessage)}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return s, fmt.Errorf("%w: create directory: %v", ErrStorageUnavailable, err)
		}
	}

	// Single connection: all access is serialized, sqlite does not handle
	// concurrent writers well.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return s, fmt.Errorf("%w: open: %v", ErrStorageUnavailable, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return s, fmt.Errorf("%w: ping: %v", ErrStorageUnavailable, err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return s, fmt.Errorf("%w: migrate: %v", ErrStorageUnavailable, err)
	}

	s.db = db
	s.warmMirror()
	logging.Infof("state store initialized at %s", path)
	return s, nil
}

// NewMemory returns a store with no persistence. Used by tests and as the
// degraded mode when sqlite cannot be opened.
func NewMemory() *Store {
	return &Store{mirror: make(map[string]json.RawMessage)}
}

// Close releases the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Get returns the values for the requested keys. Missing keys are simply
// absent from the result. When the database is unavailable the in-memory
// mirror is returned together with ErrStorageUnavailable.
func (s *Store) Get(keys ...string) (map[string]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return s.fromMirror(keys), ErrStorageUnavailable
	}

	out := make(map[string]json.RawMessage, len(keys))
	for _, key := range keys {
		var value string
		err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
		switch {
		case err == sql.ErrNoRows:
			continue
		case err != nil:
			return s.fromMirror(keys), fmt.Errorf("%w: get %s: %v", ErrStorageUnavailable, key, err)
		}
		out[key] = json.RawMessage(value)
	}
	return out, nil
}

// Set writes all entries of partial in one transaction: either every key
// becomes visible or none does. The in-memory mirror is always updated and
// subscribers always fire, even when persistence fails.
func (s *Store) Set(partial map[string]json.RawMessage) error {
	if len(partial) == 0 {
		return nil
	}

	s.mu.Lock()
	for key, value := range partial {
		s.mirror[key] = value
	}
	err := s.persist(partial)
	s.mu.Unlock()

	s.notify(partial)
	return err
}

// Subscribe registers fn to run after every Set. Callbacks run on the
// writer's goroutine and must not call back into the store.
func (s *Store) Subscribe(fn SubscribeFunc) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subs = append(s.subs, fn)
}

// GetJSON unmarshals the value of key into v. ok is false when the key is
// missing or holds a value that does not parse as v.
func (s *Store) GetJSON(key string, v any) (ok bool, err error) {
	values, err := s.Get(key)
	raw, present := values[key]
	if !present {
		return false, err
	}
	if jsonErr := json.Unmarshal(raw, v); jsonErr != nil {
		return false, err
	}
	return true, err
}

// SetJSON marshals v and stores it under key.
func (s *Store) SetJSON(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return s.Set(map[string]json.RawMessage{key: raw})
}

func (s *Store) persist(partial map[string]json.RawMessage) error {
	if s.db == nil {
		return ErrStorageUnavailable
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrStorageUnavailable, err)
	}
	for key, value := range partial {
		if _, err := tx.Exec(
			`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, unixepoch())
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, string(value),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("%w: set %s: %v", ErrStorageUnavailable, key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *Store) notify(changed map[string]json.RawMessage) {
	s.subMu.RLock()
	subs := make([]SubscribeFunc, len(s.subs))
	copy(subs, s.subs)
	s.subMu.RUnlock()

	for _, fn := range subs {
		fn(changed)
	}
}

func (s *Store) fromMirror(keys []string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(keys))
	for _, key := range keys {
		if value, ok := s.mirror[key]; ok {
			out[key] = value
		}
	}
	return out
}

// warmMirror loads all persisted keys into the mirror at startup so a later
// database failure still leaves the full state readable.
func (s *Store) warmMirror() {
	rows, err := s.db.Query(`SELECT key, value FROM kv`)
	if err != nil {
		logging.Errorf("state mirror warm failed: %v", err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			continue
		}
		s.mirror[key] = json.RawMessage(value)
	}
}
