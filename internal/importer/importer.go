// Package importer watches a local directory and uploads files that
// appear there into the root scope, removing them locally once the
// store has accepted them.
package importer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/alexjbarnes/filedrive/internal/drive"
	"github.com/alexjbarnes/filedrive/internal/store"
)

const (
	// importDirPerm is the permission mode for the import directory when
	// ensuring it exists before starting the watcher.
	importDirPerm = fs.FileMode(0o755)

	// debounceInterval is how often pending events are checked, batching
	// rapid writes into a single import per file.
	debounceInterval = 500 * time.Millisecond

	// settleAge is how long a file must go without further writes before
	// it is considered complete and imported.
	settleAge = 300 * time.Millisecond
)

// driveUploader is the subset of the drive service the importer needs.
// Extracted for testability.
type driveUploader interface {
	UploadFiles(ctx context.Context, staged []drive.StagedFile) ([]store.File, error)
	FetchAll(ctx context.Context) (drive.FolderMap, error)
}

// Importer uploads files dropped into a local directory.
type Importer struct {
	dir      string
	uploader driveUploader
	logger   *slog.Logger
}

// New creates an importer for dir.
func New(dir string, uploader driveUploader, logger *slog.Logger) *Importer {
	return &Importer{
		dir:      dir,
		uploader: uploader,
		logger:   logger,
	}
}

// Watch monitors the import directory until the context is cancelled.
// Subdirectories are ignored: the import surface is flat, like the root
// scope it feeds.
func (im *Importer) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := os.MkdirAll(im.dir, importDirPerm); err != nil {
		return fmt.Errorf("creating import dir: %w", err)
	}

	if err := watcher.Add(im.dir); err != nil {
		return fmt.Errorf("watching import dir: %w", err)
	}

	im.logger.Info("import watcher started", slog.String("dir", im.dir))

	// Catch up on files already present before the watcher started.
	im.importExisting(ctx)

	pending := make(map[string]time.Time)

	ticker := time.NewTicker(debounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("fsnotify events channel closed unexpectedly")
			}

			if shouldIgnore(event.Name) {
				continue
			}

			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				pending[event.Name] = time.Now()
			}

			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				delete(pending, event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("fsnotify errors channel closed unexpectedly")
			}

			im.logger.Warn("watcher error", slog.String("error", err.Error()))

		case <-ticker.C:
			now := time.Now()

			for path, stamp := range pending {
				if now.Sub(stamp) < settleAge {
					continue
				}

				delete(pending, path)
				im.importFile(ctx, path)
			}
		}
	}
}

func (im *Importer) importExisting(ctx context.Context) {
	entries, err := os.ReadDir(im.dir)
	if err != nil {
		im.logger.Warn("listing import dir", slog.String("error", err.Error()))
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || shouldIgnore(entry.Name()) {
			continue
		}

		im.importFile(ctx, filepath.Join(im.dir, entry.Name()))
	}
}

// importFile stages one local file, uploads it, and removes the local
// copy once the record is persisted. A failed upload leaves the file in
// place; the next write to it retriggers the import.
func (im *Importer) importFile(ctx context.Context, path string) {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}

		im.logger.Warn("stat failed", slog.String("path", path), slog.String("error", err.Error()))

		return
	}

	if info.IsDir() || !info.Mode().IsRegular() {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		im.logger.Warn("reading import file", slog.String("path", path), slog.String("error", err.Error()))
		return
	}

	staged := drive.StagedFile{
		Name:    filepath.Base(path),
		Data:    data,
		ModTime: info.ModTime(),
	}

	created, err := im.uploader.UploadFiles(ctx, []drive.StagedFile{staged})
	if err != nil {
		im.logger.Warn("import upload failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)

		return
	}

	if _, err := im.uploader.FetchAll(ctx); err != nil {
		im.logger.Warn("view refresh after import failed", slog.String("error", err.Error()))
	}

	if err := os.Remove(path); err != nil {
		im.logger.Warn("removing imported file", slog.String("path", path), slog.String("error", err.Error()))
		return
	}

	im.logger.Info("file imported",
		slog.String("path", path),
		slog.String("name", created[0].Name),
	)
}

// shouldIgnore filters hidden files and editor temp files.
func shouldIgnore(path string) bool {
	name := filepath.Base(path)

	if strings.HasPrefix(name, ".") {
		return true
	}

	return strings.HasSuffix(name, "~") || strings.HasSuffix(name, ".swp")
}
