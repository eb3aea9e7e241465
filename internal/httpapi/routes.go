package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/otrio-backend/internal/registry"
	"github.com/DoyleJ11/otrio-backend/internal/session"
	"github.com/DoyleJ11/otrio-backend/internal/transport/ws"
)

// SetupRoutes wires the health check, room directory, and websocket
// upgrade endpoint onto a chi router.
func SetupRoutes(reg *registry.Registry, dispatcher *session.Dispatcher, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/health", Healthz)
	r.Get("/rooms", ListRooms(reg))
	r.Get("/ws", ws.Handler(dispatcher, logger, func() string { return uuid.NewString() }))
	return r
}
