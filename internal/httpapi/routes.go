package httpapi

import (
	"net/http"

	"github.com/DoyleJ11/rally-backend/internal/hub"
	"github.com/DoyleJ11/rally-backend/internal/profile"
	"github.com/DoyleJ11/rally-backend/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func SetupRoutes(h *hub.Hub, profiles profile.Store, wsOpts ws.Options, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("http")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/room/create", CreateRoom(h, log))
		r.Get("/rooms", ListRooms(h, log))
		r.Get("/skills", Skills)
		r.Get("/player/{username}", GetProfile(profiles, log))
		r.Post("/player/save", SaveProfile(profiles, log))
	})
	r.Get("/healthz", Healthz)
	r.Get("/ws/{roomID}/{username}", ws.Handler(h, profiles, wsOpts))
	return r
}
