package server

import (
	"encoding/json"
	"log/slog"

	"jobfeed/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type socketGreeting struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// FeedSocketUpgrade rejects plain HTTP requests to the live feed endpoint.
func (s *Server) FeedSocketUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// FeedSocket handles GET /api/ws/feed
// @Summary Live feed
// @Description Websocket stream of feed events. Anonymous viewers get public events; a token (header or ?token=) adds personal notifications.
// @Tags feed
// @Param token query string false "Access token"
// @Success 101
// @Failure 426 {object} models.ErrorResponse
// @Router /ws/feed [get]
func (s *Server) FeedSocket() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals("userID").(uint)

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			middleware.Logger.Warn("feed socket rejected",
				slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
			payload, _ := json.Marshal(fiber.Map{"error": err.Error()})
			_ = conn.WriteMessage(websocket.TextMessage, payload)
			_ = conn.Close()
			return
		}

		hello, _ := json.Marshal(socketGreeting{
			Type: "connected",
			Data: map[string]any{"user_id": userID, "authenticated": userID != 0},
		})
		client.TrySend(hello)

		go client.WritePump()
		client.ReadPump()
	})
}
