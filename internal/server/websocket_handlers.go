package server

import (
	"log/slog"
	"strings"

	"aurafeed/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RequireUpgrade rejects plain HTTP requests to WebSocket routes.
func (s *Server) RequireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// TipStreamHandler streams tip events to the connection until it closes.
// ?post=1,2 limits the stream to those posts.
func (s *Server) TipStreamHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		client, err := s.hub.Register(conn, splitPostIDs(conn.Query("post"))...)
		if err != nil {
			middleware.Logger.Warn("Tip stream rejected", slog.String("error", err.Error()))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}
		middleware.Logger.Info("Tip stream connected",
			slog.String("client_id", client.ID),
			slog.String("posts", conn.Query("post")),
		)

		go client.WritePump()
		client.ReadPump()

		middleware.Logger.Info("Tip stream disconnected", slog.String("client_id", client.ID))
	})
}

func splitPostIDs(raw string) []string {
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
