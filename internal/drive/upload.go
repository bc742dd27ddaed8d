package drive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alexjbarnes/filedrive/internal/store"
	"github.com/google/uuid"
)

// UploadFiles persists a batch of staged files into the root scope.
// Names are resolved against existing root names plus the names already
// taken by earlier items in the same batch, so the whole batch lands
// conflict-free. Records are created sequentially, never concurrently:
// a failure mid-batch leaves a well-defined prefix of successes, which
// is returned alongside the error. Nothing is rolled back here; the
// caller owns compensation (see Batch).
func (s *Service) UploadFiles(ctx context.Context, staged []StagedFile) ([]store.File, error) {
	existing, err := s.store.ListFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading root file names: %w", err)
	}

	used := make(map[string]struct{}, len(existing))
	for _, f := range existing {
		used[NormalizeName(f.Name)] = struct{}{}
	}

	created := []store.File{}

	for i, sf := range staged {
		if err := ValidateName(sf.Name); err != nil {
			return created, fmt.Errorf("staged file %d: %w", i, err)
		}

		name := UniqueFileName(sf.Name, used)
		used[name] = struct{}{}

		mimeType := s.mime.Resolve(name, sf.Type, sf.Data)

		createdAt := time.Now().UTC()
		if !sf.ModTime.IsZero() {
			createdAt = sf.ModTime.UTC()
		}

		record := store.File{
			Name:      name,
			Size:      int64(len(sf.Data)),
			Type:      mimeType,
			CreatedAt: createdAt,
			Content:   EncodeContent(sf.Data, mimeType),
			Shared:    false,
		}

		stored, err := s.store.CreateFile(ctx, record)
		if err != nil {
			s.metrics.MutationFailed("upload_file")
			// At-least-the-prefix-committed: everything in created is
			// already persisted and stays persisted.
			return created, fmt.Errorf("uploading %q (after %d of %d): %w", name, len(created), len(staged), err)
		}

		s.metrics.MutationOK("upload_file")
		s.metrics.UploadedBytes(len(sf.Data))
		created = append(created, *stored)
	}

	return created, nil
}

// UploadFolder persists a staged folder as a single record with its
// files embedded. The folder name must already have been resolved
// against existing folder names. Each contained file gets a generated
// id and a name unique within the folder; size is the sum of the file
// sizes and createdAt the earliest file timestamp, or now when empty.
//
// Creation is followed by a corrective patch reasserting the file list
// and shared flag: some stores do not round-trip nested arrays
// identically on create.
func (s *Service) UploadFolder(ctx context.Context, staged StagedFolder) (*store.Folder, error) {
	if err := ValidateName(staged.Name); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	used := make(map[string]struct{}, len(staged.Files))
	files := make([]store.File, 0, len(staged.Files))

	var totalSize int64

	oldest := now

	for i, sf := range staged.Files {
		if err := ValidateName(sf.Name); err != nil {
			return nil, fmt.Errorf("staged file %d: %w", i, err)
		}

		name := UniqueFileName(sf.Name, used)
		used[name] = struct{}{}

		mimeType := s.mime.Resolve(name, sf.Type, sf.Data)
		size := int64(len(sf.Data))
		totalSize += size

		createdAt := now
		if !sf.ModTime.IsZero() {
			createdAt = sf.ModTime.UTC()
		}

		if createdAt.Before(oldest) {
			oldest = createdAt
		}

		files = append(files, store.File{
			ID:        uuid.NewString(),
			Name:      name,
			Size:      size,
			Type:      mimeType,
			CreatedAt: createdAt,
			Content:   EncodeContent(sf.Data, mimeType),
			Shared:    false,
		})
	}

	record := store.Folder{
		ID:        uuid.NewString(),
		Name:      NormalizeName(staged.Name),
		CreatedAt: oldest,
		Size:      totalSize,
		Shared:    false,
		Files:     files,
	}

	created, err := s.store.CreateFolder(ctx, record)
	if err != nil {
		s.metrics.MutationFailed("upload_folder")
		return nil, fmt.Errorf("uploading folder %q: %w", record.Name, err)
	}

	patch := store.FolderPatch{
		Shared: store.Bool(created.Shared),
		Files:  store.Files(created.Files),
	}

	if err := s.store.PatchFolder(ctx, created.ID, patch); err != nil {
		s.metrics.MutationFailed("upload_folder")
		return nil, fmt.Errorf("reasserting folder %q after create: %w", record.Name, err)
	}

	s.metrics.MutationOK("upload_folder")
	s.metrics.UploadedBytes(int(totalSize))

	return created, nil
}

// Batch is one upload-review session: staged items confirmed by the
// user, uploaded in order, with every created record tracked so a
// cancellation can issue compensating deletes. Compensation is the only
// rollback mechanism and is itself not atomic; failed deletes are
// logged as orphans and counted, never fatal.
type Batch struct {
	svc  *Service
	saga *saga
}

// NewBatch starts an upload-review session.
func (s *Service) NewBatch() *Batch {
	return &Batch{
		svc:  s,
		saga: newSaga(s.logger),
	}
}

// AddFiles uploads staged files into the root scope, recording a
// compensating delete for every record that was created — including the
// committed prefix of a batch that failed partway.
func (b *Batch) AddFiles(ctx context.Context, staged []StagedFile) ([]store.File, error) {
	created, err := b.svc.UploadFiles(ctx, staged)

	for _, f := range created {
		id := f.ID
		b.saga.record("delete file "+id, func(ctx context.Context) error {
			return b.svc.store.DeleteFile(ctx, id)
		})
	}

	return created, err
}

// AddFolder uploads a staged folder, recording a compensating delete on
// success.
func (b *Batch) AddFolder(ctx context.Context, staged StagedFolder) (*store.Folder, error) {
	created, err := b.svc.UploadFolder(ctx, staged)
	if err != nil {
		return nil, err
	}

	id := created.ID
	b.saga.record("delete folder "+id, func(ctx context.Context) error {
		return b.svc.store.DeleteFolder(ctx, id)
	})

	return created, nil
}

// Uploaded returns the number of records this batch has persisted.
func (b *Batch) Uploaded() int {
	return b.saga.size()
}

// Commit finishes the session and refreshes the published view. The
// records are already persisted; there is nothing transactional to
// confirm.
func (b *Batch) Commit(ctx context.Context) {
	b.saga.steps = nil
	b.svc.refresh(ctx)
}

// Cancel issues compensating deletes for every record the batch
// created, in reverse order, and returns the number of deletes that
// failed (each one an orphaned record). The view is refreshed either
// way.
func (b *Batch) Cancel(ctx context.Context) int {
	failed := b.saga.rollback(ctx)
	if failed > 0 {
		b.svc.metrics.Inconsistency("orphaned_record")
		b.svc.logger.Warn("upload cancellation left orphaned records",
			slog.Int("orphaned", failed),
		)
	}

	b.svc.refresh(ctx)

	return failed
}
