package httpx

import (
	"net/http"

	"github.com/Absterrg0/Excalidraw/internal/app"
	"github.com/Absterrg0/Excalidraw/internal/store"
	"github.com/Absterrg0/Excalidraw/internal/ws"
	"github.com/Absterrg0/Excalidraw/pkg/auth"
	"github.com/Absterrg0/Excalidraw/pkg/metrics"
)

// NewRouter wires up all HTTP routes, middleware, and handlers
func NewRouter(cfg app.Config, hub *ws.Hub, db *store.Postgres) http.Handler {
	mw := NewMiddleware(cfg)

	j := auth.New(cfg.JWTSecret)
	authAPI := &AuthAPI{DB: db, JWT: j}
	roomsAPI := &RoomsAPI{DB: db}

	mux := http.NewServeMux()

	// Health / readiness / metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) })
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) })
	mux.Handle("/metrics", metrics.Handler())

	// WebSocket endpoint
	mux.HandleFunc("/ws", hub.ServeWS)

	// Auth endpoints
	mux.HandleFunc("POST /signup", authAPI.Signup)
	mux.HandleFunc("POST /signin", authAPI.Signin)
	mux.Handle("GET /api/me", mw.Auth(http.HandlerFunc(authAPI.Me)))

	// Room lifecycle + history (JWT-protected)
	mux.Handle("POST /api/rooms", mw.Auth(http.HandlerFunc(roomsAPI.Create)))
	mux.Handle("GET /api/rooms/{slug}", mw.Auth(http.HandlerFunc(roomsAPI.Get)))
	mux.Handle("GET /api/rooms/{id}/chats", mw.Auth(http.HandlerFunc(roomsAPI.Chats)))

	// CORS + rate limit applied globally
	return mw.Wrap(mux)
}
