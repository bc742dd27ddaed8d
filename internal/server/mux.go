// Package server provides HTTP server construction for filedrive.
package server

import (
	"log/slog"
	"net/http"

	"github.com/alexjbarnes/filedrive/internal/drive"
	"github.com/alexjbarnes/filedrive/internal/prefs"
	"github.com/alexjbarnes/filedrive/internal/view"
)

// MuxConfig holds dependencies for building the HTTP mux.
type MuxConfig struct {
	Service        *drive.Service
	View           *view.State
	Prefs          *prefs.Store
	MetricsHandler http.Handler
	Logger         *slog.Logger
}

// NewMux builds the HTTP mux: the drive API, share links, the websocket
// push endpoint, and metrics. Prefs may be nil, in which case view
// settings are not persisted across restarts.
func NewMux(cfg MuxConfig) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/drive", HandleDrive(cfg.View))
	mux.HandleFunc("POST /api/refresh", HandleRefresh(cfg.Service, cfg.Logger))

	mux.HandleFunc("POST /api/files", HandleUploadFiles(cfg.Service, cfg.Logger))
	mux.HandleFunc("PATCH /api/files/{id}", HandleRenameFile(cfg.Service, cfg.Logger))
	mux.HandleFunc("DELETE /api/files/{id}", HandleDeleteFile(cfg.Service, cfg.Logger))
	mux.HandleFunc("POST /api/files/{id}/move", HandleMoveFile(cfg.Service, cfg.Logger))
	mux.HandleFunc("POST /api/files/{id}/share", HandleToggleFileShare(cfg.Service, cfg.Logger))
	mux.HandleFunc("GET /api/files/{id}/download", HandleFileDownload(cfg.Service, cfg.Logger))

	mux.HandleFunc("POST /api/folders", HandleCreateOrUploadFolder(cfg.Service, cfg.Logger))
	mux.HandleFunc("PATCH /api/folders/{name}", HandleRenameFolder(cfg.Service, cfg.Logger))
	mux.HandleFunc("DELETE /api/folders/{name}", HandleDeleteFolder(cfg.Service, cfg.Logger))
	mux.HandleFunc("POST /api/folders/{name}/share", HandleToggleFolderShare(cfg.Service, cfg.Logger))
	mux.HandleFunc("GET /api/folders/{name}/download", HandleFolderDownload(cfg.Service, cfg.Logger))

	mux.HandleFunc("GET /shared/{id}", HandleSharedFile(cfg.Service, cfg.Logger))
	mux.HandleFunc("GET /shared/folder/{name}", HandleSharedFolder(cfg.Service, cfg.Logger))

	mux.HandleFunc("GET /api/view", HandleGetView(cfg.View))
	mux.HandleFunc("PUT /api/view", HandleSetView(cfg.View, cfg.Prefs, cfg.Logger))

	mux.HandleFunc("GET /ws", HandleWS(cfg.View, cfg.Logger))

	if cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", cfg.MetricsHandler)
	}

	return mux
}
