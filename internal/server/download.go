package server

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/alexjbarnes/filedrive/internal/drive"
	apperrors "github.com/alexjbarnes/filedrive/internal/errors"
	"github.com/alexjbarnes/filedrive/internal/store"
)

func serveFileBytes(w http.ResponseWriter, logger *slog.Logger, f *store.File, disposition string) {
	data, mimeType, err := drive.DecodeContent(f.Content)
	if err != nil {
		logger.Error("stored content undecodable",
			slog.String("file_id", f.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "stored content is not decodable", http.StatusInternalServerError)

		return
	}

	if f.Type != "" {
		mimeType = f.Type
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": f.Name}))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	_, _ = w.Write(data)
}

// HandleFileDownload returns the GET /api/files/{id}/download handler.
// The scope query parameter names the owning folder; absent means root.
func HandleFileDownload(svc *drive.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := svc.FileByID(r.Context(), r.PathValue("id"), r.URL.Query().Get("scope"))
		if err != nil {
			writeError(w, logger, err)
			return
		}

		serveFileBytes(w, logger, f, "attachment")
	}
}

// HandleFolderDownload returns the GET /api/folders/{name}/download
// handler, serving the folder's files as a zip archive. Files whose
// stored content cannot be decoded are skipped with a log line rather
// than failing the whole archive.
func HandleFolderDownload(svc *drive.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		folder, err := svc.FolderByName(r.Context(), r.PathValue("name"))
		if err != nil {
			writeError(w, logger, err)
			return
		}

		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition",
			mime.FormatMediaType("attachment", map[string]string{"filename": folder.Name + ".zip"}))

		zw := zip.NewWriter(w)

		for _, f := range folder.Files {
			data, _, err := drive.DecodeContent(f.Content)
			if err != nil {
				logger.Warn("skipping undecodable file in zip",
					slog.String("folder", folder.Name),
					slog.String("file", f.Name),
					slog.String("error", err.Error()),
				)

				continue
			}

			header := &zip.FileHeader{Name: f.Name, Method: zip.Deflate}
			if !f.CreatedAt.IsZero() {
				header.Modified = f.CreatedAt
			}

			fw, err := zw.CreateHeader(header)
			if err != nil {
				logger.Error("writing zip entry failed", slog.String("error", err.Error()))
				return
			}

			if _, err := fw.Write(data); err != nil {
				logger.Error("writing zip entry failed", slog.String("error", err.Error()))
				return
			}
		}

		if err := zw.Close(); err != nil {
			logger.Error("finishing zip failed", slog.String("error", err.Error()))
		}
	}
}

// HandleSharedFile returns the GET /shared/{id} handler. The file is
// served inline only while its shared flag is set; everything else is a
// plain 404 so the link leaks no existence information.
func HandleSharedFile(svc *drive.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, _, err := svc.FindFile(r.Context(), r.PathValue("id"))
		if err != nil {
			if isNotFound(err) {
				http.NotFound(w, r)
			} else {
				writeError(w, logger, err)
			}

			return
		}

		if !f.Shared {
			http.NotFound(w, r)
			return
		}

		serveFileBytes(w, logger, f, "inline")
	}
}

// sharedFolderEntry is the read-only listing served for a shared folder.
type sharedFolderEntry struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	Type      string `json:"type"`
	CreatedAt string `json:"createdAt"`
}

// HandleSharedFolder returns the GET /shared/folder/{name} handler: a
// read-only listing of a shared folder, without content. Individual
// files are fetched through /shared/{id}.
func HandleSharedFolder(svc *drive.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		folder, err := svc.FolderByName(r.Context(), r.PathValue("name"))
		if err != nil {
			if isNotFound(err) {
				http.NotFound(w, r)
			} else {
				writeError(w, logger, err)
			}

			return
		}

		if !folder.Shared {
			http.NotFound(w, r)
			return
		}

		entries := make([]sharedFolderEntry, 0, len(folder.Files))
		for _, f := range folder.Files {
			entries = append(entries, sharedFolderEntry{
				ID:        f.ID,
				Name:      f.Name,
				Size:      f.Size,
				Type:      f.Type,
				CreatedAt: f.CreatedAt.Format(time.RFC3339),
			})
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"name":  folder.Name,
			"files": entries,
		})
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound)
}
