package department

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/relayloop/relayloop/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
	read.GET("/departments", h.List)
	read.GET("/departments/:id", h.Get)

	api.GET("/departments/:id/stats", h.Stats, auth.RequireRole(auth.RoleDoctor))
	api.GET("/departments/stats/all", h.AllStats, auth.RequireRole(auth.RoleAdmin))
}

func (h *Handler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.List())
}

func (h *Handler) Get(c echo.Context) error {
	d, err := h.svc.Get(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

// Stats writes JSON null for an unknown department.
func (h *Handler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Stats(c.Param("id")))
}

func (h *Handler) AllStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.AllStats())
}
