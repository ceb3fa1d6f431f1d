package websocket

import (
	"context"
	"time"
	"wildlife-licensing-backend/config"
	"wildlife-licensing-backend/token"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuthService defines a token validator interface
type AuthService interface {
	VerifyToken(tokenStr string, kind token.Kind) (*token.Payload, error)
}

// AccessChecker reports whether a user may watch an application.
type AccessChecker interface {
	CanWatch(ctx context.Context, userID, applicationID uuid.UUID) error
}

// WsHandler manages WebSocket requests and connections
type WsHandler struct {
	hub    *Hub
	auth   AuthService
	access AccessChecker
}

func NewWsHandler(hub *Hub, auth AuthService, access AccessChecker) *WsHandler {
	return &WsHandler{hub: hub, auth: auth, access: access}
}

// HandleWebSocket authenticates the access token cookie, checks the caller
// may watch the application in the query and upgrades the connection.
func (h *WsHandler) HandleWebSocket(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	tokenStr := c.Cookies("access_token")
	if tokenStr == "" {
		config.Logger.Warn("WebSocket connection attempted without access token cookie")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required - no access token cookie found",
		})
	}

	payload, err := h.auth.VerifyToken(tokenStr, token.AccessToken)
	if err != nil {
		config.Logger.Warn("Invalid access token for WebSocket", zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid or expired token",
		})
	}

	applicationID, err := uuid.Parse(c.Query("application"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "application parameter must be an application id",
		})
	}
	if err := h.access.CanWatch(c.UserContext(), payload.UserID, applicationID); err != nil {
		config.Logger.Warn("WebSocket subscription refused",
			zap.String("userID", payload.UserID.String()),
			zap.String("applicationID", applicationID.String()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "You cannot watch this application",
		})
	}

	return websocket.New(func(conn *websocket.Conn) {
		client := &Client{
			ID:           uuid.New(),
			UserID:       payload.UserID,
			Conn:         conn,
			Hub:          h.hub,
			Send:         make(chan WebSocketMessage, 256),
			Applications: map[string]bool{applicationID.String(): true},
			handler:      h,
		}
		h.hub.register <- client

		config.Logger.Info("WebSocket client registered",
			zap.String("clientID", client.ID.String()),
			zap.String("userID", client.UserID.String()),
			zap.String("applicationID", applicationID.String()),
		)

		go client.writePump()
		client.readPump()
	})(c)
}

// readPump listens for subscription changes from the client
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(64 * 1024)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var msg WebSocketMessage
		if err := c.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				config.Logger.Warn("WebSocket unexpected close",
					zap.String("clientID", c.ID.String()),
					zap.Error(err),
				)
			}
			return
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg WebSocketMessage) {
	switch msg.Type {
	case MessageTypeSubscribe:
		applicationID, err := uuid.Parse(msg.ApplicationID)
		if err != nil {
			c.sendError("Invalid application id")
			return
		}
		if err := c.handler.access.CanWatch(context.Background(), c.UserID, applicationID); err != nil {
			c.sendError("You cannot watch this application")
			return
		}
		c.Subscribe(applicationID.String())
	case MessageTypeUnsubscribe:
		c.Unsubscribe(msg.ApplicationID)
	default:
		c.sendError("Unknown message type: " + string(msg.Type))
	}
}

// writePump sends queued messages and keeps the connection alive
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(message); err != nil {
				config.Logger.Debug("WebSocket write error", zap.String("clientID", c.ID.String()), zap.Error(err))
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendError queues an error for the client, dropping it when the buffer is full.
func (c *Client) sendError(message string) {
	c.Hub.deliver(c, WebSocketMessage{
		Type:      MessageTypeError,
		Payload:   map[string]interface{}{"message": message},
		Timestamp: time.Now(),
	})
}
