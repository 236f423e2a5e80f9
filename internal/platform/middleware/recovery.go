package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/relayloop/relayloop/internal/platform/auth"
)

// ErrPanic is wrapped by the error returned for a recovered panic. The
// central error handler renders it as a generic 500.
var ErrPanic = errors.New("handler panicked")

// Recovery turns a handler panic into an error and logs the stack with the
// request id and caller. http.ErrAbortHandler is re-raised so the server can
// drop the connection.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				req := c.Request()
				rid, _ := c.Get("request_id").(string)
				p := auth.PrincipalFromContext(req.Context())

				logger.Error().
					Str("request_id", rid).
					Str("user_id", p.UserID).
					Str("method", req.Method).
					Str("path", req.URL.Path).
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				err = fmt.Errorf("%w: %v", ErrPanic, r)
			}()
			return next(c)
		}
	}
}
