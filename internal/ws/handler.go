// Package ws adapts the update stream onto a websocket connection.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ParzivalEugene/planning-poker/internal/stream"
	"github.com/ParzivalEugene/planning-poker/internal/types"
)

const writeTimeout = 3 * time.Second

// Handler upgrades the request and forwards room events until the client
// disconnects. Clients never send frames on this socket; mutations go
// through the HTTP API.
func Handler(streamer *stream.Streamer, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")
		lastEventID := r.URL.Query().Get("lastEventId")

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// CORS policy is enforced on the HTTP API, not per-socket.
			InsecureSkipVerify: true,
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		// CloseRead cancels the returned context when the client goes away.
		ctx := conn.CloseRead(r.Context())

		send := func(msg types.ServerMessage) error {
			payload, err := json.Marshal(msg)
			if err != nil {
				return err
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			defer cancel()
			return conn.Write(writeCtx, websocket.MessageText, payload)
		}

		if err := streamer.Run(ctx, roomID, lastEventID, send); err != nil {
			log.Debug("stream ended",
				zap.String("room_id", roomID),
				zap.Error(err),
			)
		}
	}
}
