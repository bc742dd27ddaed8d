package drive

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/alexjbarnes/filedrive/internal/errors"
	"github.com/alexjbarnes/filedrive/internal/metrics"
	"github.com/alexjbarnes/filedrive/internal/store"
)

// Service is the engine behind the presentation layer: it orchestrates
// uploads, coordinates multi-step mutations, and keeps the published
// unified map consistent with the store by rebuilding it after every
// confirmed mutation.
type Service struct {
	store   Store
	pub     Publisher
	mime    *MIMEResolver
	logger  *slog.Logger
	metrics *metrics.Metrics

	// rebuildVersion stamps every rebuild so the publisher can discard
	// results of rebuilds that raced a newer mutation.
	rebuildVersion atomic.Uint64
}

// New creates a Service. mime may be nil, in which case a resolver
// without overrides is used.
func New(st Store, pub Publisher, mime *MIMEResolver, logger *slog.Logger, m *metrics.Metrics) *Service {
	if mime == nil {
		mime = NewMIMEResolver(nil)
	}

	return &Service{
		store:   st,
		pub:     pub,
		mime:    mime,
		logger:  logger,
		metrics: m,
	}
}

// FetchAll rebuilds the unified map from the store and publishes it.
// The returned map is the caller's to keep; the publisher may have
// discarded it if a newer rebuild won the race.
func (s *Service) FetchAll(ctx context.Context) (FolderMap, error) {
	version := s.rebuildVersion.Add(1)

	m, err := BuildFolderMap(ctx, s.store)
	if err != nil {
		s.metrics.RebuildFailed()
		return nil, fmt.Errorf("rebuilding folder map: %w", err)
	}

	s.metrics.Rebuild()

	if !s.pub.SetFolderMap(m, version) {
		s.logger.Debug("stale rebuild discarded", slog.Uint64("version", version))
	}

	return m, nil
}

// refresh rebuilds the map after a successful mutation. A rebuild
// failure does not fail the mutation: the remote write already
// committed, the view is merely stale until the next explicit refresh.
func (s *Service) refresh(ctx context.Context) {
	if _, err := s.FetchAll(ctx); err != nil {
		s.logger.Warn("view refresh failed after mutation, view is stale",
			slog.String("error", err.Error()),
		)
	}
}

// FileByID returns a file record from the given scope. An empty scope or
// RootScope reads the root collection; otherwise the owning folder's
// embedded list is searched.
func (s *Service) FileByID(ctx context.Context, id, scope string) (*store.File, error) {
	if isRoot(scope) {
		f, err := s.store.GetFile(ctx, id)
		if err != nil {
			return nil, err
		}

		return f, nil
	}

	folder, err := s.store.FolderByName(ctx, scope)
	if err != nil {
		return nil, err
	}

	if folder == nil {
		return nil, errors.ErrNotFound
	}

	for i := range folder.Files {
		if folder.Files[i].ID == id {
			return &folder.Files[i], nil
		}
	}

	return nil, errors.ErrNotFound
}

// FindFile locates a file by id across all scopes, returning the record
// and the scope that owns it. Used by share links, which carry no scope.
func (s *Service) FindFile(ctx context.Context, id string) (*store.File, string, error) {
	m, err := BuildFolderMap(ctx, s.store)
	if err != nil {
		return nil, "", err
	}

	for scope, files := range m {
		for i := range files {
			if files[i].ID == id {
				return &files[i], scope, nil
			}
		}
	}

	return nil, "", errors.ErrNotFound
}

// ResolveFolderName returns name resolved against existing folder
// names, so a staged folder upload never collides.
func (s *Service) ResolveFolderName(ctx context.Context, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}

	folders, err := s.store.ListFolders(ctx)
	if err != nil {
		return "", fmt.Errorf("reading folders: %w", err)
	}

	used := make(map[string]struct{}, len(folders))
	for _, f := range folders {
		used[NormalizeName(f.Name)] = struct{}{}
	}

	return UniqueFolderName(name, used), nil
}

// FolderByName returns a folder record, or ErrNotFound.
func (s *Service) FolderByName(ctx context.Context, name string) (*store.Folder, error) {
	folder, err := s.store.FolderByName(ctx, name)
	if err != nil {
		return nil, err
	}

	if folder == nil {
		return nil, errors.ErrNotFound
	}

	return folder, nil
}

func isRoot(scope string) bool {
	return scope == "" || scope == RootScope
}
