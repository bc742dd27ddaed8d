package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/alexjbarnes/filedrive/internal/drive"
	"github.com/alexjbarnes/filedrive/internal/prefs"
	"github.com/alexjbarnes/filedrive/internal/store"
	"github.com/alexjbarnes/filedrive/internal/view"
)

// maxUploadBytes bounds a single upload request body.
const maxUploadBytes = 256 << 20

// drivePayload is the full state pushed to the browser: the unified map
// plus the derived folder summaries and view settings.
type drivePayload struct {
	Version       uint64                  `json:"version"`
	Mode          view.Mode               `json:"mode"`
	SortAscending bool                    `json:"sortAscending"`
	Folders       []view.FolderSummary    `json:"folders"`
	Files         map[string][]store.File `json:"files"`
}

func currentPayload(vs *view.State) drivePayload {
	snap := vs.Snapshot()

	// Sorted copies, so the held map never leaks to the encoder.
	files := make(map[string][]store.File, len(snap.Map))
	for scope := range snap.Map {
		files[scope] = vs.FilesIn(scope)
	}

	return drivePayload{
		Version:       snap.Version,
		Mode:          snap.Mode,
		SortAscending: snap.SortAscending,
		Folders:       vs.Folders(),
		Files:         files,
	}
}

// HandleDrive returns the GET /api/drive handler.
func HandleDrive(vs *view.State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, currentPayload(vs))
	}
}

// HandleRefresh returns the POST /api/refresh handler: a forced rebuild
// of the unified map.
func HandleRefresh(svc *drive.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := svc.FetchAll(r.Context()); err != nil {
			writeError(w, logger, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// stagedFromMultipart reads every file part under the "files" field into
// staged uploads. Part filenames may carry directory prefixes from a
// folder picker; only the base name is kept.
func stagedFromMultipart(form *multipart.Form) ([]drive.StagedFile, error) {
	headers := form.File["files"]
	staged := make([]drive.StagedFile, 0, len(headers))

	for _, fh := range headers {
		part, err := fh.Open()
		if err != nil {
			return nil, err
		}

		data, err := io.ReadAll(part)
		part.Close()

		if err != nil {
			return nil, err
		}

		staged = append(staged, drive.StagedFile{
			Name: filepath.Base(fh.Filename),
			Type: fh.Header.Get("Content-Type"),
			Data: data,
		})
	}

	return staged, nil
}

// HandleUploadFiles returns the POST /api/files handler. The batch is
// committed as a whole; a mid-batch failure triggers compensating
// deletes of the already-created prefix before the error is reported.
func HandleUploadFiles(svc *drive.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, "invalid multipart body", http.StatusBadRequest)
			return
		}

		staged, err := stagedFromMultipart(r.MultipartForm)
		if err != nil {
			http.Error(w, "reading upload", http.StatusBadRequest)
			return
		}

		if len(staged) == 0 {
			http.Error(w, "no files in request", http.StatusBadRequest)
			return
		}

		batch := svc.NewBatch()

		created, err := batch.AddFiles(r.Context(), staged)
		if err != nil {
			orphans := batch.Cancel(r.Context())
			if orphans > 0 {
				logger.Warn("upload rollback incomplete", slog.Int("orphans", orphans))
			}

			writeError(w, logger, err)

			return
		}

		batch.Commit(r.Context())
		writeJSON(w, http.StatusCreated, map[string]any{"files": created})
	}
}

type createFolderRequest struct {
	Name string `json:"name"`
}

// HandleCreateOrUploadFolder returns the POST /api/folders handler. A
// JSON body creates an empty folder; a multipart body uploads a folder
// with its files.
func HandleCreateOrUploadFolder(svc *drive.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			handleUploadFolder(svc, logger, w, r)
			return
		}

		var req createFolderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		created, err := svc.CreateFolder(r.Context(), req.Name)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusCreated, created)
	}
}

func handleUploadFolder(svc *drive.Service, logger *slog.Logger, w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "invalid multipart body", http.StatusBadRequest)
		return
	}

	name := r.FormValue("name")

	resolved, err := svc.ResolveFolderName(r.Context(), name)
	if err != nil {
		writeError(w, logger, err)
		return
	}

	staged, err := stagedFromMultipart(r.MultipartForm)
	if err != nil {
		http.Error(w, "reading upload", http.StatusBadRequest)
		return
	}

	batch := svc.NewBatch()

	created, err := batch.AddFolder(r.Context(), drive.StagedFolder{Name: resolved, Files: staged})
	if err != nil {
		batch.Cancel(r.Context())
		writeError(w, logger, err)

		return
	}

	batch.Commit(r.Context())
	writeJSON(w, http.StatusCreated, created)
}

type renameRequest struct {
	NewName string `json:"newName"`
	Scope   string `json:"scope,omitempty"`
}

// HandleRenameFile returns the PATCH /api/files/{id} handler.
func HandleRenameFile(svc *drive.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req renameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		if err := svc.RenameFile(r.Context(), r.PathValue("id"), req.NewName, req.Scope); err != nil {
			writeError(w, logger, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleDeleteFile returns the DELETE /api/files/{id} handler. Scope
// comes from the query string; absent means root.
func HandleDeleteFile(svc *drive.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteFile(r.Context(), r.PathValue("id"), r.URL.Query().Get("scope")); err != nil {
			writeError(w, logger, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleRenameFolder returns the PATCH /api/folders/{name} handler. A
// missing folder is a soft miss, reported in the body rather than the
// status.
func HandleRenameFolder(svc *drive.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req renameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		renamed, err := svc.RenameFolder(r.Context(), r.PathValue("name"), req.NewName)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]bool{"renamed": renamed})
	}
}

// HandleDeleteFolder returns the DELETE /api/folders/{name} handler.
func HandleDeleteFolder(svc *drive.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deleted, err := svc.DeleteFolder(r.Context(), r.PathValue("name"))
		if err != nil {
			writeError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
	}
}

type moveRequest struct {
	Target string `json:"target"`
	Source string `json:"source,omitempty"`
}

// HandleMoveFile returns the POST /api/files/{id}/move handler.
func HandleMoveFile(svc *drive.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req moveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		if err := svc.MoveFile(r.Context(), r.PathValue("id"), req.Target, req.Source); err != nil {
			writeError(w, logger, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

type shareRequest struct {
	Scope string `json:"scope,omitempty"`
}

// HandleToggleFileShare returns the POST /api/files/{id}/share handler.
func HandleToggleFileShare(svc *drive.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req shareRequest
		if r.Body != nil {
			// The body is optional; an empty body means root scope.
			_ = json.NewDecoder(r.Body).Decode(&req)
		}

		shared, err := svc.ToggleFileShare(r.Context(), r.PathValue("id"), req.Scope)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]bool{"shared": shared})
	}
}

// HandleToggleFolderShare returns the POST /api/folders/{name}/share
// handler.
func HandleToggleFolderShare(svc *drive.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shared, err := svc.ToggleFolderShare(r.Context(), r.PathValue("name"))
		if err != nil {
			writeError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]bool{"shared": shared})
	}
}

type viewRequest struct {
	Mode          string `json:"mode,omitempty"`
	SortAscending *bool  `json:"sortAscending,omitempty"`
}

type viewResponse struct {
	Mode          view.Mode `json:"mode"`
	SortAscending bool      `json:"sortAscending"`
}

// HandleGetView returns the GET /api/view handler.
func HandleGetView(vs *view.State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := vs.Snapshot()
		writeJSON(w, http.StatusOK, viewResponse{Mode: snap.Mode, SortAscending: snap.SortAscending})
	}
}

// HandleSetView returns the PUT /api/view handler. Settings are applied
// to the live state and, when a prefs store is configured, persisted.
func HandleSetView(vs *view.State, pf *prefs.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req viewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		if req.Mode != "" {
			mode := view.ParseMode(req.Mode)
			vs.SetMode(mode)

			if pf != nil {
				if err := pf.SetViewMode(string(mode)); err != nil {
					logger.Warn("persisting view mode failed", slog.String("error", err.Error()))
				}
			}
		}

		if req.SortAscending != nil {
			vs.SetSortAscending(*req.SortAscending)

			if pf != nil {
				if err := pf.SetSortAscending(*req.SortAscending); err != nil {
					logger.Warn("persisting sort order failed", slog.String("error", err.Error()))
				}
			}
		}

		snap := vs.Snapshot()
		writeJSON(w, http.StatusOK, viewResponse{Mode: snap.Mode, SortAscending: snap.SortAscending})
	}
}
