package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"example.com/grimoire/internal/auth"
)

type Routes struct {
	Verifier auth.Verifier
	Auth     *AuthHandler
	Rooms    *RoomHandler
	Sync     *SyncHandler
	Live     http.HandlerFunc
}

// NewRouter mounts every endpoint of the service.
func NewRouter(rt Routes) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/api/sync", rt.Sync)

	r.Post("/api/auth/register", rt.Auth.Register)
	r.Post("/api/auth/login", rt.Auth.Login)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(rt.Verifier))
		r.Get("/api/me", rt.Auth.Me)
		r.Post("/api/rooms", rt.Rooms.Create)
		r.Post("/api/rooms/{code}/join", rt.Rooms.Join)
		r.Get("/api/rooms/{code}", rt.Rooms.Get)
	})

	if rt.Live != nil {
		r.Get("/ws/{roomCode}", rt.Live)
	}
	return r
}
