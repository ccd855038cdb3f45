package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ParzivalEugene/planning-poker/pkg/roomid"
)

// RequireRoomID rejects malformed room ids before any handler or the room
// core sees them.
func RequireRoomID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !roomid.Valid(chi.URLParam(r, "roomID")) {
			writeError(w, http.StatusBadRequest, "invalid room id")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestLogger logs each request with its duration.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
