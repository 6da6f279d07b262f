package birthday

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"HRPortal/internal/auth"
)

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Upcoming handles GET /api/birthdays/upcoming (admin).
func (h *Handler) Upcoming(c echo.Context) error {
	days, _ := strconv.Atoi(c.QueryParam("days"))
	if days < 1 || days > 365 {
		days = 30
	}
	upcoming, err := h.service.Upcoming(c.Request().Context(), days)
	if err != nil {
		h.logger.Error("failed to list upcoming birthdays", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "internal server error"})
	}
	if upcoming == nil {
		upcoming = []auth.UpcomingBirthday{}
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"birthdays": upcoming, "days": days}})
}
