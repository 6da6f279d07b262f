package middleware

import (
	"net/http"
	"os"

	"github.com/casbin/casbin/v2"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"HRPortal/internal/auth"
)

// NewEnforcer loads the RBAC model and policy. Paths default to the files
// shipped at the repository root and can be overridden via RBAC_MODEL and
// RBAC_POLICY.
func NewEnforcer() (*casbin.Enforcer, error) {
	modelPath := os.Getenv("RBAC_MODEL")
	if modelPath == "" {
		modelPath = "rbac_model.conf"
	}
	policyPath := os.Getenv("RBAC_POLICY")
	if policyPath == "" {
		policyPath = "rbac_policy.csv"
	}
	return casbin.NewEnforcer(modelPath, policyPath)
}

// CasbinMiddleware enforces RBAC per request using the caller's role, the
// registered route pattern and the method.
func CasbinMiddleware(enforcer *casbin.Enforcer, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := c.Get("user").(*auth.JWTClaims)
			if !ok || claims == nil {
				return c.JSON(http.StatusForbidden, echo.Map{"success": false, "message": "missing user claims"})
			}
			allowed, err := enforcer.Enforce(claims.Role, c.Path(), c.Request().Method)
			if err != nil {
				logger.Error("rbac enforcement error", zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "RBAC system error"})
			}
			if !allowed {
				return c.JSON(http.StatusForbidden, echo.Map{"success": false, "message": "insufficient permissions"})
			}
			return next(c)
		}
	}
}
