package patient

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/relayloop/relayloop/internal/platform/auth"
	"github.com/relayloop/relayloop/pkg/pagination"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Ward staff
	clinical := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
	clinical.POST("/patients", h.Create)
	clinical.GET("/patients", h.List)
	clinical.GET("/patients/:id", h.Get)
	clinical.PUT("/patients/:id", h.Update)
	clinical.PATCH("/patients/:id", h.Update)
	clinical.POST("/medications", h.AddMedication)
	clinical.POST("/patients/:id/medications", h.AddMedication)
	clinical.GET("/patients/:id/medications", h.ListMedications)
	clinical.POST("/notes", h.AddNote)
	clinical.POST("/patients/:id/notes", h.AddNote)
	clinical.GET("/patients/:id/notes", h.ListNotes)

	// Reporting
	doctors := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doctors.GET("/patients/stats", h.Stats)
	doctors.GET("/patients/export", h.Export)

	api.DELETE("/patients/:id", h.Delete, auth.RequireRole(auth.RoleAdmin))
}

func (h *Handler) Create(c echo.Context) error {
	var in CreatePatientInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	ctx := c.Request().Context()
	p, err := h.svc.Create(ctx, in, auth.ScopeFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c, DefaultListLimit)
	ctx := c.Request().Context()
	items, total, err := h.svc.List(ctx, auth.ScopeFromContext(ctx), filterFrom(c, pg))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	d, err := h.svc.Get(ctx, id, auth.ScopeFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in UpdatePatientInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	ctx := c.Request().Context()
	p, err := h.svc.Update(ctx, id, in, auth.ScopeFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
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

// AddMedication serves both POST /medications and
// POST /patients/:id/medications; the path id wins over the body.
func (h *Handler) AddMedication(c echo.Context) error {
	var in CreateMedicationInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	if id := c.Param("id"); id != "" {
		in.PatientID = id
	}
	ctx := c.Request().Context()
	m, err := h.svc.AddMedication(ctx, in, auth.ScopeFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) ListMedications(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	items, err := h.svc.ListMedications(ctx, id, auth.ScopeFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) AddNote(c echo.Context) error {
	var in CreateNoteInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	if id := c.Param("id"); id != "" {
		in.PatientID = id
	}
	ctx := c.Request().Context()
	n, err := h.svc.AddNote(ctx, in, auth.ScopeFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, n)
}

func (h *Handler) ListNotes(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	items, err := h.svc.ListNotes(ctx, id, auth.ScopeFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	st, err := h.svc.Stats(ctx, auth.ScopeFromContext(ctx), c.QueryParam("department"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) Export(c echo.Context) error {
	ctx := c.Request().Context()
	data, err := h.svc.Export(ctx, auth.ScopeFromContext(ctx), filterFrom(c, pagination.Params{}))
	if err != nil {
		return err
	}
	name := fmt.Sprintf("patients-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, xlsxContentType, data)
}

func filterFrom(c echo.Context, pg pagination.Params) ListFilter {
	return ListFilter{
		Department: c.QueryParam("department"),
		Search:     c.QueryParam("search"),
		Limit:      pg.Limit,
		Offset:     pg.Offset,
	}
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}
