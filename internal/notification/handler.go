package notification

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"HRPortal/internal/auth"
)

// Handler exposes the notification REST surface. Responses follow the
// {success, message?, data?} envelope; service errors map onto 400/404/500.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func claimsFrom(c echo.Context) (*auth.JWTClaims, primitive.ObjectID, error) {
	claims, ok := c.Get("user").(*auth.JWTClaims)
	if !ok || claims == nil {
		return nil, primitive.NilObjectID, errors.New("missing claims")
	}
	uid, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, primitive.NilObjectID, err
	}
	return claims, uid, nil
}

func respondData(c echo.Context, status int, message string, data interface{}) error {
	body := echo.Map{"success": true}
	if message != "" {
		body["message"] = message
	}
	if data != nil {
		body["data"] = data
	}
	return c.JSON(status, body)
}

func respondError(c echo.Context, status int, message string) error {
	return c.JSON(status, echo.Map{"success": false, "message": message})
}

func (h *Handler) fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNoRecipients):
		return respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return respondError(c, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("notification request failed",
			zap.String("path", c.Path()), zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "internal server error")
	}
}

func pageParams(c echo.Context) (int, int) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return page, limit
}

// List handles GET /api/notifications (admin).
func (h *Handler) List(c echo.Context) error {
	_, _, err := claimsFrom(c)
	if err != nil {
		return respondError(c, http.StatusUnauthorized, "invalid token")
	}
	page, limit := pageParams(c)

	q := AdminListQuery{
		Page:   page,
		Limit:  limit,
		Type:   c.QueryParam("type"),
		Status: c.QueryParam("status"),
	}
	if raw := c.QueryParam("user_id"); raw != "" {
		uid, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return respondError(c, http.StatusBadRequest, "invalid user_id")
		}
		q.UserID = &uid
	}

	items, pagination, err := h.service.List(c.Request().Context(), q)
	if err != nil {
		return h.fail(c, err)
	}
	if items == nil {
		items = []Notification{}
	}
	return respondData(c, http.StatusOK, "", echo.Map{
		"notifications": items,
		"pagination":    pagination,
		"filters": echo.Map{
			"user_id": c.QueryParam("user_id"),
			"type":    q.Type,
			"status":  q.Status,
		},
	})
}

// ListUser handles GET /api/notifications/user.
func (h *Handler) ListUser(c echo.Context) error {
	_, userID, err := claimsFrom(c)
	if err != nil {
		return respondError(c, http.StatusUnauthorized, "invalid token")
	}
	page, limit := pageParams(c)

	q := UserListQuery{
		UserID:     userID,
		Page:       page,
		Limit:      limit,
		UnreadOnly: c.QueryParam("unread_only") == "true",
		Type:       c.QueryParam("type"),
	}
	items, pagination, err := h.service.ListForUser(c.Request().Context(), q)
	if err != nil {
		return h.fail(c, err)
	}
	if items == nil {
		items = []UserNotification{}
	}
	return respondData(c, http.StatusOK, "", echo.Map{
		"notifications": items,
		"pagination":    pagination,
		"filters": echo.Map{
			"unread_only": q.UnreadOnly,
			"type":        q.Type,
		},
	})
}

// Create handles POST /api/notifications (admin).
func (h *Handler) Create(c echo.Context) error {
	_, userID, err := claimsFrom(c)
	if err != nil {
		return respondError(c, http.StatusUnauthorized, "invalid token")
	}

	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "invalid request body")
	}

	n, err := h.service.Create(c.Request().Context(), req, userID)
	if err != nil {
		return h.fail(c, err)
	}
	return respondData(c, http.StatusCreated, "notification created and dispatched", echo.Map{"notification": n})
}

// MarkRead handles PUT /api/notifications/:id/read.
func (h *Handler) MarkRead(c echo.Context) error {
	return h.mark(c, h.service.MarkRead, "notification marked as read")
}

// MarkUnread handles PUT /api/notifications/:id/unread.
func (h *Handler) MarkUnread(c echo.Context) error {
	return h.mark(c, h.service.MarkUnread, "notification marked as unread")
}

type markOp func(ctx context.Context, notificationID, userID primitive.ObjectID) error

func (h *Handler) mark(c echo.Context, op markOp, message string) error {
	_, userID, err := claimsFrom(c)
	if err != nil {
		return respondError(c, http.StatusUnauthorized, "invalid token")
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return respondError(c, http.StatusNotFound, ErrNotFound.Error())
	}
	if err := op(c.Request().Context(), id, userID); err != nil {
		return h.fail(c, err)
	}
	return respondData(c, http.StatusOK, message, nil)
}

// MarkMultipleRead handles PUT /api/notifications/mark-multiple-read.
func (h *Handler) MarkMultipleRead(c echo.Context) error {
	_, userID, err := claimsFrom(c)
	if err != nil {
		return respondError(c, http.StatusUnauthorized, "invalid token")
	}

	var req struct {
		NotificationIDs []string `json:"notification_ids"`
	}
	if err := c.Bind(&req); err != nil || len(req.NotificationIDs) == 0 {
		return respondError(c, http.StatusBadRequest, "notification_ids must be a non-empty list")
	}

	ids := make([]primitive.ObjectID, 0, len(req.NotificationIDs))
	for _, raw := range req.NotificationIDs {
		if id, err := primitive.ObjectIDFromHex(raw); err == nil {
			ids = append(ids, id)
		}
	}

	processed, err := h.service.MarkManyRead(c.Request().Context(), ids, userID)
	if err != nil {
		return h.fail(c, err)
	}
	return respondData(c, http.StatusOK,
		strconv.Itoa(processed)+" notifications marked as read",
		echo.Map{"processed": processed})
}

// Delete handles DELETE /api/notifications/:id (admin).
func (h *Handler) Delete(c echo.Context) error {
	_, _, err := claimsFrom(c)
	if err != nil {
		return respondError(c, http.StatusUnauthorized, "invalid token")
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return respondError(c, http.StatusNotFound, ErrNotFound.Error())
	}
	if err := h.service.Delete(c.Request().Context(), id); err != nil {
		return h.fail(c, err)
	}
	return respondData(c, http.StatusOK, "notification deleted", nil)
}

// Stats handles GET /api/notifications/stats. Admin callers get system-wide
// aggregates; everyone else gets their own.
func (h *Handler) Stats(c echo.Context) error {
	claims, userID, err := claimsFrom(c)
	if err != nil {
		return respondError(c, http.StatusUnauthorized, "invalid token")
	}

	q := StatsQuery{Period: c.QueryParam("period")}
	if start, end := c.QueryParam("start_date"), c.QueryParam("end_date"); start != "" && end != "" {
		from, err1 := time.Parse("2006-01-02", start)
		to, err2 := time.Parse("2006-01-02", end)
		if err1 != nil || err2 != nil {
			return respondError(c, http.StatusBadRequest, "dates must use the YYYY-MM-DD format")
		}
		q.StartDate = &from
		q.EndDate = &to
	}

	var stats interface{}
	if claims.Role == auth.RoleAdmin {
		stats, err = h.service.GetAdminStatistics(c.Request().Context(), userID, q)
	} else {
		stats, err = h.service.GetUserStatistics(c.Request().Context(), userID, q)
	}
	if err != nil {
		return h.fail(c, err)
	}
	period := q.Period
	if period == "" {
		period = "week"
	}
	return respondData(c, http.StatusOK, "", echo.Map{"period": period, "stats": stats})
}

// Types handles GET /api/notifications/types.
func (h *Handler) Types(c echo.Context) error {
	if _, _, err := claimsFrom(c); err != nil {
		return respondError(c, http.StatusUnauthorized, "invalid token")
	}
	return respondData(c, http.StatusOK, "", echo.Map{"types": h.service.Types()})
}

// UnreadCount handles GET /api/notifications/unread-count.
func (h *Handler) UnreadCount(c echo.Context) error {
	_, userID, err := claimsFrom(c)
	if err != nil {
		return respondError(c, http.StatusUnauthorized, "invalid token")
	}
	count, err := h.service.GetUnreadCount(c.Request().Context(), userID)
	if err != nil {
		return h.fail(c, err)
	}
	return respondData(c, http.StatusOK, "", echo.Map{"unread_count": count})
}
