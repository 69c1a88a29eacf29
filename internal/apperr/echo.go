package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/elearning/internal/logging"
)

type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HTTPErrorHandler renders every error that reaches echo as
// {"success": false, "message": ...}.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, msg := Render(err)

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(status)
	} else {
		writeErr = c.JSON(status, Envelope{Success: false, Message: msg})
	}
	if writeErr != nil {
		logging.FromContext(c.Request().Context()).Error("error_response_failed", "error", writeErr)
	}
}

func Render(err error) (int, string) {
	var ae *Error
	if errors.As(err, &ae) {
		msg := ae.Message
		if msg == "" {
			msg = http.StatusText(ae.Kind.Status())
		}
		return ae.Kind.Status(), msg
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		switch m := he.Message.(type) {
		case string:
			msg = m
		case nil:
		default:
			msg = fmt.Sprint(m)
		}
		return he.Code, msg
	}

	return http.StatusInternalServerError, "Internal server error"
}
