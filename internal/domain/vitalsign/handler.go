package vitalsign

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/relayloop/relayloop/internal/platform/auth"
	"github.com/relayloop/relayloop/pkg/pagination"
)

const defaultListLimit = 20

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	clinical := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
	clinical.POST("/vital-signs", h.Create)
	clinical.GET("/vital-signs/:id", h.Get)
	clinical.PUT("/vital-signs/:id", h.Update)
	clinical.PATCH("/vital-signs/:id", h.Update)
	clinical.GET("/vital-signs/patient/:id", h.ListByPatient)
	clinical.GET("/vital-signs/patient/:id/latest", h.Latest)
	clinical.GET("/patients/:id/vital-signs", h.ListByPatient)
	clinical.GET("/patients/:id/vital-signs/latest", h.Latest)

	api.GET("/vital-signs/stats", h.Stats, auth.RequireRole(auth.RoleDoctor))
	api.DELETE("/vital-signs/:id", h.Delete, auth.RequireRole(auth.RoleAdmin))
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	ctx := c.Request().Context()
	v, err := h.svc.Create(ctx, in, auth.ScopeFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	v, err := h.svc.Get(ctx, id, auth.ScopeFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	ctx := c.Request().Context()
	v, err := h.svc.Update(ctx, id, in, auth.ScopeFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.svc.Delete(ctx, id, auth.ScopeFromContext(ctx)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	patientID, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c, defaultListLimit)
	ctx := c.Request().Context()
	items, total, err := h.svc.ListByPatient(ctx, patientID, auth.ScopeFromContext(ctx), pg)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Latest(c echo.Context) error {
	patientID, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	v, err := h.svc.Latest(ctx, patientID, auth.ScopeFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	stats, err := h.svc.Stats(ctx, auth.ScopeFromContext(ctx), c.QueryParam("department"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}
