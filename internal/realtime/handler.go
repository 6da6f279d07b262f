package realtime

import (
	"context"
	"net/http"
	"os"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"HRPortal/internal/auth"
)

// UserSource resolves the authenticated user during the handshake;
// *auth.UserRepository implements it.
type UserSource interface {
	FindActiveByID(ctx context.Context, id primitive.ObjectID) (*auth.User, error)
}

// Handler upgrades GET /ws. The handshake carries the same bearer token as
// the REST API in the `token` query parameter; the token must verify, be
// unexpired and resolve to an existing active user before the upgrade.
type Handler struct {
	hub      *Hub
	users    UserSource
	api      NotificationAPI
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, users UserSource, api NotificationAPI, logger *zap.Logger) *Handler {
	allowedOrigin := os.Getenv("FRONTEND_URL")
	return &Handler{
		hub:    hub,
		users:  users,
		api:    api,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
	}
}

// ServeWS handles GET /ws.
func (h *Handler) ServeWS(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "authentication token required"})
	}

	claims, err := auth.ValidateToken(token)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "invalid token"})
	}

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "invalid token"})
	}
	user, err := h.users.FindActiveByID(c.Request().Context(), userID)
	if err != nil {
		h.logger.Error("websocket handshake user lookup failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "internal server error"})
	}
	if user == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "user not found"})
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return nil
	}

	client := NewClient(h.hub, conn, userID.Hex(), user.Role, h.api, h.logger)
	h.hub.Register(client)
	client.Start()
	return nil
}
