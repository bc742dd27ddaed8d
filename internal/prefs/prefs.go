// Package prefs persists UI preferences (view mode, sort direction)
// across daemon restarts. The unified folder map is deliberately never
// stored here: it is always derivable from the remote collections, and
// persisting it would invite serving a stale view as authoritative.
package prefs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// prefsDirPerm is the permission mode for the preferences directory.
	prefsDirPerm = fs.FileMode(0o700)

	// prefsFilePerm is the permission mode for the database file.
	prefsFilePerm = fs.FileMode(0o600)

	// prefsOpenTimeout is the maximum time to wait for the bolt database
	// lock.
	prefsOpenTimeout = 5 * time.Second
)

var (
	uiBucket         = []byte("ui")
	viewModeKey      = []byte("view_mode")
	sortAscendingKey = []byte("sort_ascending")
)

// Store wraps a bbolt database holding preferences.
type Store struct {
	db *bolt.DB
}

// Open opens the preferences database at the given path, creating it
// and its directory if needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), prefsDirPerm); err != nil {
		return nil, fmt.Errorf("creating preferences directory: %w", err)
	}

	db, err := bolt.Open(path, prefsFilePerm, &bolt.Options{Timeout: prefsOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening preferences db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(uiBucket)

		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing preferences db: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ViewMode returns the stored view mode, or empty string when none has
// been saved yet.
func (s *Store) ViewMode() string {
	var mode string

	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(uiBucket).Get(viewModeKey)
		if v != nil {
			mode = string(v)
		}

		return nil
	})

	return mode
}

// SetViewMode persists the view mode.
func (s *Store) SetViewMode(mode string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(uiBucket).Put(viewModeKey, []byte(mode))
	})
}

// SortAscending returns the stored sort direction, defaulting to true.
func (s *Store) SortAscending() bool {
	asc := true

	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(uiBucket).Get(sortAscendingKey)
		if v != nil {
			asc = string(v) == "true"
		}

		return nil
	})

	return asc
}

// SetSortAscending persists the sort direction.
func (s *Store) SetSortAscending(asc bool) error {
	val := "false"
	if asc {
		val = "true"
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(uiBucket).Put(sortAscendingKey, []byte(val))
	})
}
