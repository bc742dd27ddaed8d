package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/alexjbarnes/filedrive/internal/view"
)

// HandleWS returns the GET /ws handler. Each connection receives the
// current drive payload immediately, then one message per accepted
// state change. A slow connection sees the latest state next rather
// than a backlog; that is the subscription's replace semantics.
func HandleWS(vs *view.State, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			logger.Warn("websocket accept failed", slog.String("error", err.Error()))
			return
		}
		defer conn.CloseNow()

		// Inbound frames are discarded; the returned context ends when
		// the peer closes.
		ctx := conn.CloseRead(r.Context())

		snaps, cancel := vs.Subscribe()
		defer cancel()

		for {
			select {
			case <-ctx.Done():
				_ = conn.Close(websocket.StatusNormalClosure, "")
				return
			case _, ok := <-snaps:
				if !ok {
					return
				}

				data, err := json.Marshal(currentPayload(vs))
				if err != nil {
					logger.Error("marshaling drive payload", slog.String("error", err.Error()))
					return
				}

				if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
					logger.Debug("websocket write failed, dropping subscriber",
						slog.String("error", err.Error()),
					)

					return
				}
			}
		}
	}
}
