package server

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"

	"github.com/alexjbarnes/filedrive/internal/drive"
	"github.com/alexjbarnes/filedrive/internal/metrics"
	"github.com/alexjbarnes/filedrive/internal/store"
	"github.com/alexjbarnes/filedrive/internal/view"
)

// memStore is a minimal in-memory document store for handler tests.
type memStore struct {
	mu      sync.Mutex
	files   []store.File
	folders []store.Folder
	nextID  int

	failCreates bool
}

func (ms *memStore) assignID() string {
	ms.nextID++
	return strconv.Itoa(ms.nextID)
}

func (ms *memStore) ListFiles(ctx context.Context) ([]store.File, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	return append([]store.File{}, ms.files...), nil
}

func (ms *memStore) GetFile(ctx context.Context, id string) (*store.File, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for i := range ms.files {
		if ms.files[i].ID == id {
			f := ms.files[i]
			return &f, nil
		}
	}

	return nil, fmt.Errorf("store GET /files/%s returned status 404", id)
}

func (ms *memStore) CreateFile(ctx context.Context, f store.File) (*store.File, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.failCreates {
		return nil, fmt.Errorf("store POST /files returned status 500")
	}

	if f.ID == "" {
		f.ID = ms.assignID()
	}

	ms.files = append(ms.files, f)
	stored := f

	return &stored, nil
}

func (ms *memStore) PatchFile(ctx context.Context, id string, patch store.FilePatch) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for i := range ms.files {
		if ms.files[i].ID == id {
			if patch.Name != nil {
				ms.files[i].Name = *patch.Name
			}

			if patch.Shared != nil {
				ms.files[i].Shared = *patch.Shared
			}

			if patch.Content != nil {
				ms.files[i].Content = *patch.Content
			}

			return nil
		}
	}

	return fmt.Errorf("store PATCH /files/%s returned status 404", id)
}

func (ms *memStore) DeleteFile(ctx context.Context, id string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for i := range ms.files {
		if ms.files[i].ID == id {
			ms.files = append(ms.files[:i], ms.files[i+1:]...)
			return nil
		}
	}

	return fmt.Errorf("store DELETE /files/%s returned status 404", id)
}

func (ms *memStore) ListFolders(ctx context.Context) ([]store.Folder, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	return append([]store.Folder{}, ms.folders...), nil
}

func (ms *memStore) FolderByName(ctx context.Context, name string) (*store.Folder, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for i := range ms.folders {
		if ms.folders[i].Name == name {
			f := ms.folders[i]
			f.Files = append([]store.File{}, ms.folders[i].Files...)

			return &f, nil
		}
	}

	return nil, nil
}

func (ms *memStore) GetFolder(ctx context.Context, id string) (*store.Folder, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for i := range ms.folders {
		if ms.folders[i].ID == id {
			f := ms.folders[i]
			return &f, nil
		}
	}

	return nil, fmt.Errorf("store GET /folders/%s returned status 404", id)
}

func (ms *memStore) CreateFolder(ctx context.Context, f store.Folder) (*store.Folder, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if f.ID == "" {
		f.ID = ms.assignID()
	}

	ms.folders = append(ms.folders, f)
	stored := f

	return &stored, nil
}

func (ms *memStore) PatchFolder(ctx context.Context, id string, patch store.FolderPatch) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for i := range ms.folders {
		if ms.folders[i].ID == id {
			if patch.Name != nil {
				ms.folders[i].Name = *patch.Name
			}

			if patch.Shared != nil {
				ms.folders[i].Shared = *patch.Shared
			}

			if patch.Files != nil {
				ms.folders[i].Files = append([]store.File{}, (*patch.Files)...)
			}

			return nil
		}
	}

	return fmt.Errorf("store PATCH /folders/%s returned status 404", id)
}

func (ms *memStore) DeleteFolder(ctx context.Context, id string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for i := range ms.folders {
		if ms.folders[i].ID == id {
			ms.folders = append(ms.folders[:i], ms.folders[i+1:]...)
			return nil
		}
	}

	return fmt.Errorf("store DELETE /folders/%s returned status 404", id)
}

// newTestMux builds the full mux over an in-memory store.
func newTestMux(t *testing.T) (*http.ServeMux, *memStore, *view.State) {
	t.Helper()

	ms := &memStore{}
	vs := view.NewState()
	logger := slog.New(slog.DiscardHandler)
	reg := prometheus.NewRegistry()
	svc := drive.New(ms, vs, nil, logger, metrics.New(reg))

	mux := NewMux(MuxConfig{
		Service:        svc,
		View:           vs,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Logger:         logger,
	})

	return mux, ms, vs
}

// multipartBody builds a multipart body with the given files under the
// "files" field, plus optional form values.
func multipartBody(t *testing.T, values map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)

	for k, v := range values {
		require.NoError(t, mw.WriteField(k, v))
	}

	for name, data := range files {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)

		_, err = fw.Write(data)
		require.NoError(t, err)
	}

	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}
