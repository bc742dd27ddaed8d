package drive

import (
	"context"
	"time"

	"github.com/alexjbarnes/filedrive/internal/store"
)

//go:generate mockgen -source=types.go -destination=mock_store_test.go -package=drive

// Store is the slice of the record gateway the engine needs. Extracted
// for testability; *store.Client satisfies it.
type Store interface {
	ListFiles(ctx context.Context) ([]store.File, error)
	GetFile(ctx context.Context, id string) (*store.File, error)
	CreateFile(ctx context.Context, f store.File) (*store.File, error)
	PatchFile(ctx context.Context, id string, patch store.FilePatch) error
	DeleteFile(ctx context.Context, id string) error
	ListFolders(ctx context.Context) ([]store.Folder, error)
	FolderByName(ctx context.Context, name string) (*store.Folder, error)
	GetFolder(ctx context.Context, id string) (*store.Folder, error)
	CreateFolder(ctx context.Context, f store.Folder) (*store.Folder, error)
	PatchFolder(ctx context.Context, id string, patch store.FolderPatch) error
	DeleteFolder(ctx context.Context, id string) error
}

// Publisher receives rebuilt folder maps. Versions are monotonic; the
// publisher drops maps older than the one it already holds.
type Publisher interface {
	SetFolderMap(m FolderMap, version uint64) bool
}

// FolderMap is the unified view of the two remote collections: folder
// name -> embedded files, with RootScope holding the unscoped root files.
// It is derived, never persisted, and rebuilt wholesale after every
// mutation.
type FolderMap map[string][]store.File

// TotalFiles returns the number of files across all scopes.
func (m FolderMap) TotalFiles() int {
	total := 0
	for _, files := range m {
		total += len(files)
	}

	return total
}

// StagedFile is a locally-picked file awaiting upload. Type may be empty
// when the picker could not determine one; ModTime may be zero, in which
// case the upload time is used as the record's createdAt.
type StagedFile struct {
	Name    string
	Type    string
	Data    []byte
	ModTime time.Time
}

// StagedFolder is a locally-picked folder awaiting upload.
type StagedFolder struct {
	Name  string
	Files []StagedFile
}
