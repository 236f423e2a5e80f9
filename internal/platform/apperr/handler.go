package apperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// GenericMessage is what clients see for internal failures.
const GenericMessage = "operation failed"

// Response is the error body written for every failed request.
type Response struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	RequestID  string `json:"request_id,omitempty"`
}

// Status maps an error to its HTTP status and client-visible message.
func Status(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		if he.Code >= http.StatusInternalServerError {
			msg = GenericMessage
		}
		return he.Code, msg
	}

	var ae *Error
	msg := ""
	if errors.As(err, &ae) {
		msg = ae.Message
	}

	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, orDefault(msg, "invalid request")
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, orDefault(msg, "resource already exists")
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, orDefault(msg, "resource not found")
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, orDefault(msg, "access denied")
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, orDefault(msg, "unauthorized")
	}
	return http.StatusInternalServerError, GenericMessage
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Handler returns an echo.HTTPErrorHandler. Internal errors are logged with
// full detail; the response only carries GenericMessage.
func Handler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := Status(err)
		rid, _ := c.Get("request_id").(string)

		if code >= http.StatusInternalServerError {
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(code)
		} else {
			writeErr = c.JSON(code, Response{StatusCode: code, Message: msg, RequestID: rid})
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Str("request_id", rid).Msg("write error response")
		}
	}
}
