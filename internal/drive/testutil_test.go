package drive

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"testing"

	"github.com/alexjbarnes/filedrive/internal/metrics"
	"github.com/alexjbarnes/filedrive/internal/store"
	"github.com/prometheus/client_golang/prometheus"
)

// fakeStore is an in-memory document store implementing the Store
// interface, with per-call error injection for failure-path tests. It
// mimics the real store's behavior: no uniqueness checks, no
// transactions, ids assigned on create when absent.
type fakeStore struct {
	mu      sync.Mutex
	files   []store.File
	folders []store.Folder
	nextID  int

	// error injection
	errListFiles       error
	errListFolders     error
	errGetFile         error
	errCreateFileAfter int // fail file creates once this many succeeded; -1 disables
	errDeleteFile      map[string]error
	errDeleteFolder    map[string]error
	errPatchFolder     map[string]error
	errFolderByName    error

	// call log, for order assertions
	calls []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		errCreateFileAfter: -1,
		errDeleteFile:      map[string]error{},
		errDeleteFolder:    map[string]error{},
		errPatchFolder:     map[string]error{},
	}
}

func (fs *fakeStore) log(format string, args ...interface{}) {
	fs.calls = append(fs.calls, fmt.Sprintf(format, args...))
}

func (fs *fakeStore) assignID() string {
	fs.nextID++
	return strconv.Itoa(fs.nextID)
}

func (fs *fakeStore) ListFiles(ctx context.Context) ([]store.File, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.log("ListFiles")

	if fs.errListFiles != nil {
		return nil, fs.errListFiles
	}

	return append([]store.File{}, fs.files...), nil
}

func (fs *fakeStore) GetFile(ctx context.Context, id string) (*store.File, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.log("GetFile %s", id)

	if fs.errGetFile != nil {
		return nil, fs.errGetFile
	}

	for i := range fs.files {
		if fs.files[i].ID == id {
			f := fs.files[i]
			return &f, nil
		}
	}

	return nil, fmt.Errorf("store GET /files/%s returned status 404", id)
}

func (fs *fakeStore) CreateFile(ctx context.Context, f store.File) (*store.File, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.log("CreateFile %s", f.Name)

	if fs.errCreateFileAfter >= 0 && len(fs.files) >= fs.errCreateFileAfter {
		return nil, fmt.Errorf("store POST /files returned status 500")
	}

	if f.ID == "" {
		f.ID = fs.assignID()
	}

	fs.files = append(fs.files, f)
	stored := f

	return &stored, nil
}

func (fs *fakeStore) PatchFile(ctx context.Context, id string, patch store.FilePatch) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.log("PatchFile %s", id)

	for i := range fs.files {
		if fs.files[i].ID == id {
			if patch.Name != nil {
				fs.files[i].Name = *patch.Name
			}

			if patch.Shared != nil {
				fs.files[i].Shared = *patch.Shared
			}

			if patch.Content != nil {
				fs.files[i].Content = *patch.Content
			}

			return nil
		}
	}

	return fmt.Errorf("store PATCH /files/%s returned status 404", id)
}

func (fs *fakeStore) DeleteFile(ctx context.Context, id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.log("DeleteFile %s", id)

	if err := fs.errDeleteFile[id]; err != nil {
		return err
	}

	for i := range fs.files {
		if fs.files[i].ID == id {
			fs.files = append(fs.files[:i], fs.files[i+1:]...)
			return nil
		}
	}

	return fmt.Errorf("store DELETE /files/%s returned status 404", id)
}

func (fs *fakeStore) ListFolders(ctx context.Context) ([]store.Folder, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.log("ListFolders")

	if fs.errListFolders != nil {
		return nil, fs.errListFolders
	}

	return append([]store.Folder{}, fs.folders...), nil
}

func (fs *fakeStore) FolderByName(ctx context.Context, name string) (*store.Folder, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.log("FolderByName %s", name)

	if fs.errFolderByName != nil {
		return nil, fs.errFolderByName
	}

	for i := range fs.folders {
		if fs.folders[i].Name == name {
			f := fs.folders[i]
			f.Files = append([]store.File{}, fs.folders[i].Files...)

			return &f, nil
		}
	}

	return nil, nil
}

func (fs *fakeStore) GetFolder(ctx context.Context, id string) (*store.Folder, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.log("GetFolder %s", id)

	for i := range fs.folders {
		if fs.folders[i].ID == id {
			f := fs.folders[i]
			return &f, nil
		}
	}

	return nil, fmt.Errorf("store GET /folders/%s returned status 404", id)
}

func (fs *fakeStore) CreateFolder(ctx context.Context, f store.Folder) (*store.Folder, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.log("CreateFolder %s", f.Name)

	if f.ID == "" {
		f.ID = fs.assignID()
	}

	fs.folders = append(fs.folders, f)
	stored := f

	return &stored, nil
}

func (fs *fakeStore) PatchFolder(ctx context.Context, id string, patch store.FolderPatch) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.log("PatchFolder %s", id)

	if err := fs.errPatchFolder[id]; err != nil {
		return err
	}

	for i := range fs.folders {
		if fs.folders[i].ID == id {
			if patch.Name != nil {
				fs.folders[i].Name = *patch.Name
			}

			if patch.Shared != nil {
				fs.folders[i].Shared = *patch.Shared
			}

			if patch.Files != nil {
				fs.folders[i].Files = append([]store.File{}, (*patch.Files)...)
			}

			return nil
		}
	}

	return fmt.Errorf("store PATCH /folders/%s returned status 404", id)
}

func (fs *fakeStore) DeleteFolder(ctx context.Context, id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.log("DeleteFolder %s", id)

	if err := fs.errDeleteFolder[id]; err != nil {
		return err
	}

	for i := range fs.folders {
		if fs.folders[i].ID == id {
			fs.folders = append(fs.folders[:i], fs.folders[i+1:]...)
			return nil
		}
	}

	return fmt.Errorf("store DELETE /folders/%s returned status 404", id)
}

// recordingPublisher captures every published map for assertions.
type recordingPublisher struct {
	mu       sync.Mutex
	maps     []FolderMap
	versions []uint64
	latest   uint64
}

func (p *recordingPublisher) SetFolderMap(m FolderMap, version uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.maps = append(p.maps, m)
	p.versions = append(p.versions, version)

	if version <= p.latest {
		return false
	}

	p.latest = version

	return true
}

func (p *recordingPublisher) last() FolderMap {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.maps) == 0 {
		return nil
	}

	return p.maps[len(p.maps)-1]
}

// newTestService wires a Service around a fake store with quiet logging
// and an isolated metrics registry.
func newTestService(t *testing.T, fs *fakeStore) (*Service, *recordingPublisher) {
	t.Helper()

	pub := &recordingPublisher{}
	m := metrics.New(prometheus.NewRegistry())
	svc := New(fs, pub, nil, slog.New(slog.DiscardHandler), m)

	return svc, pub
}
