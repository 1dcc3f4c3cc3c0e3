package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Paseru/jeu-noel-server/internal/hub"
	"github.com/Paseru/jeu-noel-server/internal/ws"
)

func SetupRoutes(h *hub.Hub, publicURL string, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/rooms", ListRooms(h))
	r.Get("/rooms/{roomID}/qr", RoomQR(h, publicURL))
	r.Get("/ws", ws.Handler(h, log))
	return r
}
