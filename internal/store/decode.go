package store

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	apperrors "github.com/alexjbarnes/filedrive/internal/errors"
)

// The store round-trips whatever shape it was given, so records arriving
// here are only loosely typed: ids may be JSON numbers or strings, the
// files array may be missing entirely, timestamps are RFC 3339 strings.
// Everything is normalized into strict types at this boundary; nothing
// loosely typed travels further into the engine.

// decodeFile parses a single file record, normalizing the id to a string
// and requiring a non-empty name.
func decodeFile(raw []byte) (*File, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: invalid JSON in file record", apperrors.ErrStoreResponse)
	}

	f, err := fileFromResult(gjson.ParseBytes(raw))
	if err != nil {
		return nil, err
	}

	return &f, nil
}

// decodeFiles parses a JSON array of file records.
func decodeFiles(raw []byte) ([]File, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: invalid JSON in file listing", apperrors.ErrStoreResponse)
	}

	parsed := gjson.ParseBytes(raw)
	if !parsed.IsArray() {
		return nil, fmt.Errorf("%w: file listing is not an array", apperrors.ErrStoreResponse)
	}

	files := []File{}

	for i, item := range parsed.Array() {
		f, err := fileFromResult(item)
		if err != nil {
			return nil, fmt.Errorf("file record %d: %w", i, err)
		}

		files = append(files, f)
	}

	return files, nil
}

// decodeFolder parses a single folder record. A missing files field
// becomes an empty slice, never nil.
func decodeFolder(raw []byte) (*Folder, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: invalid JSON in folder record", apperrors.ErrStoreResponse)
	}

	f, err := folderFromResult(gjson.ParseBytes(raw))
	if err != nil {
		return nil, err
	}

	return &f, nil
}

// decodeFolders parses a JSON array of folder records.
func decodeFolders(raw []byte) ([]Folder, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: invalid JSON in folder listing", apperrors.ErrStoreResponse)
	}

	parsed := gjson.ParseBytes(raw)
	if !parsed.IsArray() {
		return nil, fmt.Errorf("%w: folder listing is not an array", apperrors.ErrStoreResponse)
	}

	folders := []Folder{}

	for i, item := range parsed.Array() {
		f, err := folderFromResult(item)
		if err != nil {
			return nil, fmt.Errorf("folder record %d: %w", i, err)
		}

		folders = append(folders, f)
	}

	return folders, nil
}

func fileFromResult(r gjson.Result) (File, error) {
	name := r.Get("name").String()
	if name == "" {
		return File{}, fmt.Errorf("file record has no name")
	}

	return File{
		// gjson renders numeric ids as their decimal string form, which
		// is exactly the normalization the engine wants.
		ID:        r.Get("id").String(),
		Name:      name,
		Size:      r.Get("size").Int(),
		Type:      r.Get("type").String(),
		CreatedAt: parseTimestamp(r.Get("createdAt")),
		Content:   r.Get("content").String(),
		Shared:    r.Get("shared").Bool(),
	}, nil
}

func folderFromResult(r gjson.Result) (Folder, error) {
	name := r.Get("name").String()
	if name == "" {
		return Folder{}, fmt.Errorf("folder record has no name")
	}

	files := []File{}

	filesField := r.Get("files")
	if filesField.IsArray() {
		for i, item := range filesField.Array() {
			f, err := fileFromResult(item)
			if err != nil {
				return Folder{}, fmt.Errorf("embedded file %d: %w", i, err)
			}

			files = append(files, f)
		}
	}

	return Folder{
		ID:        r.Get("id").String(),
		Name:      name,
		CreatedAt: parseTimestamp(r.Get("createdAt")),
		Size:      r.Get("size").Int(),
		Shared:    r.Get("shared").Bool(),
		Files:     files,
	}, nil
}

// parseTimestamp parses an RFC 3339 timestamp, tolerating records written
// without one. A missing or malformed value becomes the zero time rather
// than failing the whole listing.
func parseTimestamp(r gjson.Result) time.Time {
	if !r.Exists() {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339, r.String())
	if err != nil {
		return time.Time{}
	}

	return t
}
