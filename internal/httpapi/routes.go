package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ParzivalEugene/planning-poker/internal/poker"
	"github.com/ParzivalEugene/planning-poker/internal/stream"
	"github.com/ParzivalEugene/planning-poker/internal/ws"
)

// SetupRoutes builds the router with the service and streamer injected.
func SetupRoutes(svc *poker.Service, streamer *stream.Streamer, log *zap.Logger, corsOrigin string) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{corsOrigin},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))
	r.Use(RequestLogger(log))

	r.Get("/healthz", Healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", Login(svc))
		r.Get("/users/{userID}", GetUser(svc))
		r.Post("/rooms", CreateRoom())
		r.Get("/deck", Deck)

		r.Route("/rooms/{roomID}", func(r chi.Router) {
			r.Use(RequireRoomID)
			r.Get("/", RoomState(svc))
			r.Post("/join", JoinRoom(svc))
			r.Post("/card", SelectCard(svc))
			r.Post("/rounds", StartNewRound(svc))
			r.Get("/events", ws.Handler(streamer, log))
		})
	})

	return r
}
