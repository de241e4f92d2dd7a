package handler

import (
	"concept-review-be/internal/pkg/logger"
	"concept-review-be/internal/pkg/serverutils"
	internalWS "concept-review-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebSocketHandler upgrades authenticated connections and attaches them to the hub,
// which pushes session snapshots and completion notices.
type WebSocketHandler struct {
	hub    *internalWS.Hub
	logger logger.ILogger
}

func NewWebSocketHandler(hub *internalWS.Hub, log logger.ILogger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		logger: log,
	}
}

// ServeWs authenticates with the token query parameter (browsers cannot set
// headers on upgrade) or the Authorization header.
func (h *WebSocketHandler) ServeWs(c *fiber.Ctx) error {
	tokenStr := serverutils.BearerToken(c)
	if tokenStr == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Missing token (Query 'token' or Header 'Authorization')"))
	}

	userID, err := serverutils.ParseUserToken(tokenStr)
	if err != nil {
		h.logger.Warn("WebSocketHandler", "Invalid Token in WS Handshake", map[string]interface{}{"error": err.Error()})
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("WebSocketHandler", "Starting WebSocket session", map[string]interface{}{"user_id": userID})
			internalWS.ServeWs(h.hub, conn, userID)
			h.logger.Info("WebSocketHandler", "WebSocket session ended", map[string]interface{}{"user_id": userID})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}

func (h *WebSocketHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws", h.ServeWs)
}
