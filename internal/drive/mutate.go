package drive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alexjbarnes/filedrive/internal/errors"
	"github.com/alexjbarnes/filedrive/internal/store"
	"github.com/google/uuid"
)

// Every operation here is a sequence of independent remote calls with no
// cross-step transaction. Validation happens before the first write;
// once a write has been issued it cannot be taken back, so later-step
// failures are logged as inconsistencies rather than silently swallowed.

// RenameFile renames a file within its scope. The new name must not
// collide with any sibling other than the renamed file itself; on
// collision ErrDuplicateName is returned and no remote write is issued.
func (s *Service) RenameFile(ctx context.Context, id, newName, scope string) error {
	if err := ValidateName(newName); err != nil {
		return err
	}

	newName = NormalizeName(newName)

	if err := s.renameFile(ctx, id, newName, scope); err != nil {
		s.metrics.MutationFailed("rename_file")
		return err
	}

	s.metrics.MutationOK("rename_file")
	s.refresh(ctx)

	return nil
}

func (s *Service) renameFile(ctx context.Context, id, newName, scope string) error {
	if isRoot(scope) {
		files, err := s.store.ListFiles(ctx)
		if err != nil {
			return fmt.Errorf("reading root files: %w", err)
		}

		found := false

		for _, f := range files {
			if f.ID == id {
				found = true
				continue
			}

			if NormalizeName(f.Name) == newName {
				return errors.ErrDuplicateName
			}
		}

		if !found {
			return errors.ErrNotFound
		}

		return s.store.PatchFile(ctx, id, store.FilePatch{Name: store.String(newName)})
	}

	folder, err := s.store.FolderByName(ctx, scope)
	if err != nil {
		return fmt.Errorf("reading folder %q: %w", scope, err)
	}

	if folder == nil {
		return errors.ErrNotFound
	}

	found := false
	updated := make([]store.File, len(folder.Files))

	for i, f := range folder.Files {
		if f.ID == id {
			found = true
			f.Name = newName
		} else if NormalizeName(f.Name) == newName {
			return errors.ErrDuplicateName
		}

		updated[i] = f
	}

	if !found {
		return errors.ErrNotFound
	}

	// Embedded files are not independently addressable: the whole list
	// is written back with the renamed entry substituted.
	return s.store.PatchFolder(ctx, folder.ID, store.FolderPatch{Files: store.Files(updated)})
}

// RenameFolder renames a folder. Returns (false, nil) when no folder has
// oldName, ErrDuplicateName when newName is taken by another folder.
func (s *Service) RenameFolder(ctx context.Context, oldName, newName string) (bool, error) {
	if err := ValidateName(newName); err != nil {
		return false, err
	}

	newName = NormalizeName(newName)

	folders, err := s.store.ListFolders(ctx)
	if err != nil {
		s.metrics.MutationFailed("rename_folder")
		return false, fmt.Errorf("reading folders: %w", err)
	}

	var target *store.Folder

	for i := range folders {
		if folders[i].Name == oldName {
			target = &folders[i]
			continue
		}

		if NormalizeName(folders[i].Name) == newName {
			return false, errors.ErrDuplicateName
		}
	}

	if target == nil {
		return false, nil
	}

	if err := s.store.PatchFolder(ctx, target.ID, store.FolderPatch{Name: store.String(newName)}); err != nil {
		s.metrics.MutationFailed("rename_folder")
		return false, err
	}

	s.metrics.MutationOK("rename_folder")
	s.refresh(ctx)

	return true, nil
}

// DeleteFile removes a file from its scope. Root files are deleted
// directly; folder-scoped files are removed by rewriting the owning
// folder's embedded list. The remote delete is irreversible once issued;
// confirmation belongs to the caller.
func (s *Service) DeleteFile(ctx context.Context, id, scope string) error {
	if err := s.deleteFile(ctx, id, scope); err != nil {
		s.metrics.MutationFailed("delete_file")
		return err
	}

	s.metrics.MutationOK("delete_file")
	s.refresh(ctx)

	return nil
}

func (s *Service) deleteFile(ctx context.Context, id, scope string) error {
	if isRoot(scope) {
		return s.store.DeleteFile(ctx, id)
	}

	folder, err := s.store.FolderByName(ctx, scope)
	if err != nil {
		return fmt.Errorf("reading folder %q: %w", scope, err)
	}

	if folder == nil {
		return errors.ErrNotFound
	}

	updated := make([]store.File, 0, len(folder.Files))

	for _, f := range folder.Files {
		if f.ID != id {
			updated = append(updated, f)
		}
	}

	if len(updated) == len(folder.Files) {
		return errors.ErrNotFound
	}

	return s.store.PatchFolder(ctx, folder.ID, store.FolderPatch{Files: store.Files(updated)})
}

// DeleteFolder removes a folder and everything embedded in it. A missing
// folder is a soft miss: (false, nil), since a concurrent operation may
// have removed it already.
func (s *Service) DeleteFolder(ctx context.Context, name string) (bool, error) {
	folder, err := s.store.FolderByName(ctx, name)
	if err != nil {
		s.metrics.MutationFailed("delete_folder")
		return false, fmt.Errorf("querying folder %q: %w", name, err)
	}

	if folder == nil {
		return false, nil
	}

	if err := s.store.DeleteFolder(ctx, folder.ID); err != nil {
		s.metrics.MutationFailed("delete_folder")
		return false, err
	}

	s.metrics.MutationOK("delete_folder")
	s.refresh(ctx)

	return true, nil
}

// CreateFolder creates an empty folder, resolving the requested name
// against existing folder names rather than rejecting collisions.
func (s *Service) CreateFolder(ctx context.Context, name string) (*store.Folder, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	folders, err := s.store.ListFolders(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading folders: %w", err)
	}

	used := make(map[string]struct{}, len(folders))
	for _, f := range folders {
		used[NormalizeName(f.Name)] = struct{}{}
	}

	record := store.Folder{
		ID:        uuid.NewString(),
		Name:      UniqueFolderName(name, used),
		CreatedAt: time.Now().UTC(),
		Shared:    false,
		Files:     []store.File{},
	}

	created, err := s.store.CreateFolder(ctx, record)
	if err != nil {
		s.metrics.MutationFailed("create_folder")
		return nil, err
	}

	s.metrics.MutationOK("create_folder")
	s.refresh(ctx)

	return created, nil
}

// MoveFile moves a file into targetScope. Root to folder deletes the
// root record and appends it to the target's embedded list; folder to
// folder rewrites both embedded lists. The sequence is two-phase and
// non-atomic: between the removal from the source and the insertion into
// the target the file exists nowhere, so any second-phase failure is
// logged and counted as a lost-file inconsistency before propagating.
func (s *Service) MoveFile(ctx context.Context, id, targetScope, sourceScope string) error {
	if isRoot(targetScope) {
		return fmt.Errorf("move target must be a folder")
	}

	if err := s.moveFile(ctx, id, targetScope, sourceScope); err != nil {
		s.metrics.MutationFailed("move_file")
		return err
	}

	s.metrics.MutationOK("move_file")
	s.refresh(ctx)

	return nil
}

func (s *Service) moveFile(ctx context.Context, id, targetScope, sourceScope string) error {
	var moved store.File

	if isRoot(sourceScope) {
		file, err := s.store.GetFile(ctx, id)
		if err != nil {
			return fmt.Errorf("reading file %s: %w", id, err)
		}

		if err := s.store.DeleteFile(ctx, id); err != nil {
			return fmt.Errorf("removing file from root: %w", err)
		}

		moved = *file
	} else {
		source, err := s.store.FolderByName(ctx, sourceScope)
		if err != nil {
			return fmt.Errorf("reading source folder %q: %w", sourceScope, err)
		}

		if source == nil {
			return errors.ErrNotFound
		}

		found := false
		remaining := make([]store.File, 0, len(source.Files))

		for _, f := range source.Files {
			if f.ID == id {
				moved = f
				found = true

				continue
			}

			remaining = append(remaining, f)
		}

		if !found {
			return errors.ErrNotFound
		}

		if err := s.store.PatchFolder(ctx, source.ID, store.FolderPatch{Files: store.Files(remaining)}); err != nil {
			return fmt.Errorf("removing file from folder %q: %w", sourceScope, err)
		}
	}

	// First phase committed: the file is gone from its source. Anything
	// failing below leaves it in neither scope.
	if err := s.insertIntoFolder(ctx, moved, targetScope); err != nil {
		s.metrics.Inconsistency("file_lost")
		s.logger.Error("move second phase failed, file absent from both scopes",
			slog.String("file_id", id),
			slog.String("file_name", moved.Name),
			slog.String("target", targetScope),
			slog.String("error", err.Error()),
		)

		return fmt.Errorf("inserting into target folder %q (file %s removed from source but not inserted): %w", targetScope, id, err)
	}

	return nil
}

func (s *Service) insertIntoFolder(ctx context.Context, file store.File, scope string) error {
	target, err := s.store.FolderByName(ctx, scope)
	if err != nil {
		return fmt.Errorf("reading target folder: %w", err)
	}

	if target == nil {
		return errors.ErrNotFound
	}

	updated := append(append([]store.File{}, target.Files...), file)

	return s.store.PatchFolder(ctx, target.ID, store.FolderPatch{Files: store.Files(updated)})
}

// ToggleFileShare flips a file's shared flag and returns the new value.
func (s *Service) ToggleFileShare(ctx context.Context, id, scope string) (bool, error) {
	shared, err := s.toggleFileShare(ctx, id, scope)
	if err != nil {
		s.metrics.MutationFailed("toggle_share")
		return false, err
	}

	s.metrics.MutationOK("toggle_share")
	s.refresh(ctx)

	return shared, nil
}

func (s *Service) toggleFileShare(ctx context.Context, id, scope string) (bool, error) {
	if isRoot(scope) {
		file, err := s.store.GetFile(ctx, id)
		if err != nil {
			return false, fmt.Errorf("reading file %s: %w", id, err)
		}

		newState := !file.Shared

		if err := s.store.PatchFile(ctx, id, store.FilePatch{Shared: store.Bool(newState)}); err != nil {
			return false, err
		}

		return newState, nil
	}

	folder, err := s.store.FolderByName(ctx, scope)
	if err != nil {
		return false, fmt.Errorf("reading folder %q: %w", scope, err)
	}

	if folder == nil {
		return false, errors.ErrNotFound
	}

	found := false
	newState := false
	updated := make([]store.File, len(folder.Files))

	for i, f := range folder.Files {
		if f.ID == id {
			f.Shared = !f.Shared
			newState = f.Shared
			found = true
		}

		updated[i] = f
	}

	if !found {
		return false, errors.ErrNotFound
	}

	if err := s.store.PatchFolder(ctx, folder.ID, store.FolderPatch{Files: store.Files(updated)}); err != nil {
		return false, err
	}

	return newState, nil
}

// ToggleFolderShare flips a folder's shared flag and returns the new
// value. Missing folder is ErrNotFound.
func (s *Service) ToggleFolderShare(ctx context.Context, name string) (bool, error) {
	folder, err := s.store.FolderByName(ctx, name)
	if err != nil {
		s.metrics.MutationFailed("toggle_share")
		return false, fmt.Errorf("querying folder %q: %w", name, err)
	}

	if folder == nil {
		return false, errors.ErrNotFound
	}

	newState := !folder.Shared

	if err := s.store.PatchFolder(ctx, folder.ID, store.FolderPatch{Shared: store.Bool(newState)}); err != nil {
		s.metrics.MutationFailed("toggle_share")
		return false, err
	}

	s.metrics.MutationOK("toggle_share")
	s.refresh(ctx)

	return newState, nil
}
