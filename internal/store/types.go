package store

import "time"

// File is a file record as stored in the /files collection, or embedded
// in a folder's files array. Content holds the payload as a data URL
// ("data:<mime>;base64,<bytes>") and may be empty on listings that omit it.
type File struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
	Content   string    `json:"content,omitempty"`
	Shared    bool      `json:"shared"`
}

// Folder is a folder record as stored in the /folders collection. Files
// are embedded, not independently addressable; Size and CreatedAt are
// derived from the contained files at write time.
type Folder struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	Size      int64     `json:"size"`
	Shared    bool      `json:"shared"`
	Files     []File    `json:"files"`
}

// FilePatch is a partial update of a file record. Only non-nil fields
// are serialized, so a patch touches exactly the fields it names.
type FilePatch struct {
	Name    *string `json:"name,omitempty"`
	Shared  *bool   `json:"shared,omitempty"`
	Content *string `json:"content,omitempty"`
}

// FolderPatch is a partial update of a folder record. Files replaces the
// whole embedded array when set; the store has no per-element addressing.
type FolderPatch struct {
	Name   *string `json:"name,omitempty"`
	Shared *bool   `json:"shared,omitempty"`
	Files  *[]File `json:"files,omitempty"`
}

// String returns a pointer to s, for building patches.
func String(s string) *string { return &s }

// Bool returns a pointer to b, for building patches.
func Bool(b bool) *bool { return &b }

// Files returns a pointer to fs, for building folder patches. A nil or
// empty slice still serializes as an empty array, which is how a folder
// is emptied.
func Files(fs []File) *[]File {
	if fs == nil {
		fs = []File{}
	}

	return &fs
}
