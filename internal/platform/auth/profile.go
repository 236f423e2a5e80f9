package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Profile is the caller's identity as the API sees it.
type Profile struct {
	UserID         string `json:"user_id"`
	Name           string `json:"name,omitempty"`
	Role           string `json:"role"`
	Department     string `json:"department,omitempty"`
	AllDepartments bool   `json:"all_departments"`
}

func ProfileOf(p Principal) Profile {
	return Profile{
		UserID:         p.UserID,
		Name:           p.Name,
		Role:           p.Role,
		Department:     p.Department,
		AllDepartments: !ScopeFor(p).Restricted(),
	}
}

// ProfileHandler serves the authenticated caller's own identity.
type ProfileHandler struct{}

func NewProfileHandler() *ProfileHandler { return &ProfileHandler{} }

func (h *ProfileHandler) RegisterRoutes(api *echo.Group) {
	everyone := RequireRole(RoleDoctor, RoleNurse)
	api.GET("/auth/profile", h.Profile, everyone)
	api.GET("/auth/validate", h.Validate, everyone)
}

func (h *ProfileHandler) Profile(c echo.Context) error {
	return c.JSON(http.StatusOK, ProfileOf(PrincipalFromContext(c.Request().Context())))
}

// Validate answers 200 for any request that got past authentication.
func (h *ProfileHandler) Validate(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"valid": true,
		"user":  ProfileOf(PrincipalFromContext(c.Request().Context())),
	})
}
