package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	RoleAdmin  = "admin"
	RoleDoctor = "doctor"
	RoleNurse  = "nurse"
)

// ValidRole reports whether role is one the API knows about.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleDoctor, RoleNurse:
		return true
	}
	return false
}

// RequireRole returns middleware that checks if the user has one of the
// specified roles. Admins always pass.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := PrincipalFromContext(c.Request().Context())
			if p.Role == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if p.Role == RoleAdmin {
				return next(c)
			}
			for _, required := range roles {
				if p.Role == required {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}
