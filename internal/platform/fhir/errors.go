package fhir

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// IssueTypeForStatus maps an HTTP status to the closest issue type code.
func IssueTypeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return IssueTypeInvalid
	case http.StatusUnauthorized:
		return IssueTypeLogin
	case http.StatusForbidden:
		return IssueTypeSecurity
	case http.StatusNotFound:
		return IssueTypeNotFound
	case http.StatusMethodNotAllowed:
		return IssueTypeNotSupported
	case http.StatusRequestEntityTooLarge:
		return IssueTypeTooCostly
	case http.StatusServiceUnavailable:
		return IssueTypeTransient
	}
	if status >= 500 {
		return IssueTypeException
	}
	return IssueTypeProcessing
}

// ErrorHandler renders handler errors. Requests under /fhir get an
// OperationOutcome; every other route gets {"detail": message}, the shape
// existing clients of the /mapping and /abha routes expect.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := "internal server error"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			msg = fmt.Sprint(he.Message)
			if he.Internal != nil {
				logger.Warn().Err(he.Internal).Int("status", code).Msg(msg)
			}
		} else {
			logger.Error().Err(err).Str("path", c.Request().URL.Path).Msg("unhandled error")
		}

		var body interface{} = map[string]string{"detail": msg}
		if strings.HasPrefix(c.Request().URL.Path, "/fhir") {
			severity := IssueSeverityError
			if code == http.StatusInternalServerError {
				severity = IssueSeverityFatal
			}
			body = NewOperationOutcome(severity, IssueTypeForStatus(code), msg)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			logger.Error().Err(err).Msg("write error response")
		}
	}
}
