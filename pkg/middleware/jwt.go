package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"HRPortal/internal/auth"
)

// JWTMiddleware verifies the bearer token and stores the claims under the
// "user" context key.
func JWTMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "missing token"})
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		claims, err := auth.ValidateToken(tokenString)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "invalid token"})
		}

		c.Set("user", claims)
		return next(c)
	}
}
