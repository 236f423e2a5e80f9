package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/relayloop/relayloop/internal/platform/apperr"
	"github.com/relayloop/relayloop/internal/platform/auth"
)

// Audit emits one structured "patient_access" log line for every request
// under prefix that touches patient data. Audit entries are logged, not
// stored.
func Audit(logger zerolog.Logger, prefix string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			resource, rest, ok := splitResource(prefix, path)
			if !ok || !auditedResources[resource] {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if err != nil && !c.Response().Committed {
				status, _ = apperr.Status(err)
			}
			p := auth.PrincipalFromContext(c.Request().Context())
			rid, _ := c.Get("request_id").(string)

			logger.Info().
				Str("type", "audit").
				Str("request_id", rid).
				Str("user_id", p.UserID).
				Str("role", p.Role).
				Str("department", p.Department).
				Str("resource", resource).
				Str("patient_id", patientID(c, resource, rest)).
				Str("action", methodToAction(c.Request().Method)).
				Str("path", path).
				Int("status", status).
				Bool("failed", err != nil).
				Msg("patient_access")

			return err
		}
	}
}

var auditedResources = map[string]bool{
	"patients":    true,
	"vital-signs": true,
	"medications": true,
	"notes":       true,
}

// splitResource turns "/api/v1/patients/<id>/notes" into ("patients",
// "<id>/notes").
func splitResource(prefix, path string) (string, string, bool) {
	if !strings.HasPrefix(path, prefix+"/") {
		return "", "", false
	}
	resource, rest, _ := strings.Cut(strings.TrimPrefix(path, prefix+"/"), "/")
	return resource, rest, resource != ""
}

func patientID(c echo.Context, resource, rest string) string {
	var candidate string
	switch resource {
	case "patients":
		candidate, _, _ = strings.Cut(rest, "/")
	case "vital-signs":
		if after, ok := strings.CutPrefix(rest, "patient/"); ok {
			candidate, _, _ = strings.Cut(after, "/")
		}
	}
	if _, err := uuid.Parse(candidate); err == nil {
		return candidate
	}
	return c.QueryParam("patient_id")
}

func methodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}
