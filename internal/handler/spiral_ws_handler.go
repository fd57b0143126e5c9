package handler

import (
	"os"

	"github.com/MKRushil/Pulse/internal/pkg/logger"
	internalWS "github.com/MKRushil/Pulse/internal/websocket"
	"github.com/MKRushil/Pulse/pkg/spiral"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SpiralWsHandler upgrades watchers onto a session's round-progress stream.
type SpiralWsHandler struct {
	hub    *internalWS.Hub
	store  spiral.SessionStore
	logger logger.ILogger
}

func NewSpiralWsHandler(hub *internalWS.Hub, store spiral.SessionStore, log logger.ILogger) *SpiralWsHandler {
	return &SpiralWsHandler{
		hub:    hub,
		store:  store,
		logger: log,
	}
}

// RegisterRoutes registers the websocket endpoint. Auth happens inside the
// handshake, not through the JWT middleware.
func (h *SpiralWsHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws/sessions/:id", h.ServeWs)
}

// ServeWs authenticates the handshake and joins the client to the session's
// stream. Browsers cannot set headers on websocket dials, so the token is
// accepted from the query string first, then the Authorization header.
func (h *SpiralWsHandler) ServeWs(c *fiber.Ctx) error {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}
	if tokenStr == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing token (Query 'token' or Header 'Authorization')"})
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.ErrUnauthorized
		}
		secret := os.Getenv("JWT_SECRET")
		if secret == "" {
			secret = "default_secret"
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		h.logger.Warn("SpiralWsHandler", "Invalid token in WS handshake", map[string]interface{}{"error": err})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token claims"})
	}
	practitionerIDStr, ok := claims["practitioner_id"].(string)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token missing practitioner_id"})
	}
	practitionerID, err := uuid.Parse(practitionerIDStr)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid practitioner ID format in token"})
	}

	sessionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	sess, found := h.store.Get(sessionID)
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	}
	if sess.PractitionerID != practitionerID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Session belongs to another practitioner"})
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("SpiralWsHandler", "Watcher joined session stream", map[string]interface{}{
				"session_id":      sessionID,
				"practitioner_id": practitionerID,
			})
			internalWS.ServeWs(h.hub, conn, sessionID)
			h.logger.Info("SpiralWsHandler", "Watcher left session stream", map[string]interface{}{
				"session_id": sessionID,
			})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}
