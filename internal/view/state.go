// Package view holds the published UI-facing state: the current unified
// folder map and the view preferences. It is an explicit state container
// owned by the composition root and injected into consumers; there is no
// package-level singleton.
package view

import (
	"sort"
	"sync"
	"time"

	"github.com/alexjbarnes/filedrive/internal/drive"
	"github.com/alexjbarnes/filedrive/internal/store"
)

// Mode is the presentation layout for listings.
type Mode string

const (
	ModeGrid Mode = "grid"
	ModeList Mode = "list"
)

// ParseMode returns the mode for s, defaulting to grid for anything
// unrecognized.
func ParseMode(s string) Mode {
	if s == string(ModeList) {
		return ModeList
	}

	return ModeGrid
}

// FolderSummary is the derived listing entry for a folder: size is the
// sum of contained file sizes and createdAt the earliest contained
// file's timestamp, or zero when the folder is empty. Both are computed
// from the map, never read back from the store.
type FolderSummary struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
	FileCount int       `json:"fileCount"`
}

// Snapshot is one published state: a folder map plus the view settings
// in force when it was published.
type Snapshot struct {
	Map           drive.FolderMap
	Version       uint64
	Mode          Mode
	SortAscending bool
}

// State holds the current snapshot with subscribe/replace semantics.
// Only whole-map replacement is supported: no subscriber ever observes a
// partially updated map, and nothing but a rebuild result may touch it.
type State struct {
	mu sync.Mutex

	folderMap     drive.FolderMap
	version       uint64
	mode          Mode
	sortAscending bool

	subscribers map[int]chan Snapshot
	nextSubID   int
}

// NewState creates a State holding an empty map in grid mode.
func NewState() *State {
	return &State{
		folderMap:     drive.FolderMap{drive.RootScope: {}},
		mode:          ModeGrid,
		sortAscending: true,
		subscribers:   make(map[int]chan Snapshot),
	}
}

// SetFolderMap replaces the held map if version is newer than the
// current one, and notifies subscribers. Returns false when the map was
// stale and discarded — a rebuild that lost the race to a later
// mutation's rebuild.
func (s *State) SetFolderMap(m drive.FolderMap, version uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if version <= s.version {
		return false
	}

	s.folderMap = m
	s.version = version
	s.notifyLocked()

	return true
}

// SetMode replaces the view mode.
func (s *State) SetMode(mode Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mode = mode
	s.notifyLocked()
}

// SetSortAscending replaces the sort direction.
func (s *State) SetSortAscending(asc bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sortAscending = asc
	s.notifyLocked()
}

// Snapshot returns the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshotLocked()
}

func (s *State) snapshotLocked() Snapshot {
	return Snapshot{
		Map:           s.folderMap,
		Version:       s.version,
		Mode:          s.mode,
		SortAscending: s.sortAscending,
	}
}

// Subscribe registers for snapshot updates. The returned channel is
// buffered and receives the current snapshot immediately; a slow
// consumer misses intermediate snapshots rather than blocking
// publication. The cancel function must be called to release the
// subscription.
func (s *State) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++

	ch := make(chan Snapshot, 1)
	ch <- s.snapshotLocked()
	s.subscribers[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if _, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(ch)
		}
	}

	return ch, cancel
}

// notifyLocked pushes the current snapshot to every subscriber,
// replacing any undelivered previous snapshot so each subscriber always
// sees the latest state next.
func (s *State) notifyLocked() {
	snap := s.snapshotLocked()

	for _, ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}

			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// Folders derives the folder listing from the current map, sorted by
// name per the current sort direction. The root scope is not a folder
// and is excluded.
func (s *State) Folders() []FolderSummary {
	snap := s.Snapshot()

	summaries := make([]FolderSummary, 0, len(snap.Map))

	for name, files := range snap.Map {
		if name == drive.RootScope {
			continue
		}

		var size int64

		var oldest time.Time

		for _, f := range files {
			size += f.Size
			if oldest.IsZero() || (!f.CreatedAt.IsZero() && f.CreatedAt.Before(oldest)) {
				oldest = f.CreatedAt
			}
		}

		summaries = append(summaries, FolderSummary{
			Name:      name,
			Size:      size,
			CreatedAt: oldest,
			FileCount: len(files),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		if snap.SortAscending {
			return summaries[i].Name < summaries[j].Name
		}

		return summaries[i].Name > summaries[j].Name
	})

	return summaries
}

// FilesIn returns the files of one scope from the current map, sorted
// by name per the current sort direction. Unknown scopes fall back to
// the root listing, matching how the browser resolves a stale folder
// route after that folder was deleted.
func (s *State) FilesIn(scope string) []store.File {
	snap := s.Snapshot()

	files, ok := snap.Map[scope]
	if !ok {
		files = snap.Map[drive.RootScope]
	}

	sorted := append([]store.File{}, files...)

	sort.Slice(sorted, func(i, j int) bool {
		if snap.SortAscending {
			return sorted[i].Name < sorted[j].Name
		}

		return sorted[i].Name > sorted[j].Name
	})

	return sorted
}
