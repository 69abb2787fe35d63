// Package handler contains the HTTP handlers of the API.  Handlers bind and
// validate input, call the repositories and services, and return errors
// that HTTPErrorHandler renders as JSON.
package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/linkbio/internal/repository"
)

// Error codes carried in the "code" field of error responses.
const (
	CodeValidation   = "validation_error"
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeRateLimited  = "rate_limited"
	CodeInternal     = "internal_error"
)

// apiError is an error with a known HTTP rendering.
type apiError struct {
	Status  int
	Code    string
	Message string
	Details map[string]string
}

func (e *apiError) Error() string { return e.Message }

type errorBody struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

func badRequest(msg string) *apiError {
	return &apiError{Status: http.StatusBadRequest, Code: CodeValidation, Message: msg}
}

func unauthorized(msg string) *apiError {
	return &apiError{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: msg}
}

func notFound(what string) *apiError {
	return &apiError{Status: http.StatusNotFound, Code: CodeNotFound, Message: what + " not found"}
}

// fromRepo translates repository sentinels.  what names the resource in
// not-found messages.  Unknown errors pass through and end up as 500.
func fromRepo(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return notFound(what)
	case errors.Is(err, repository.ErrSlugTaken):
		return &apiError{Status: http.StatusBadRequest, Code: CodeConflict, Message: "Slug already taken"}
	case errors.Is(err, repository.ErrEmailTaken):
		return &apiError{Status: http.StatusBadRequest, Code: CodeConflict, Message: "Email already exists"}
	case errors.Is(err, repository.ErrConflict):
		return &apiError{Status: http.StatusBadRequest, Code: CodeConflict, Message: "Conflict"}
	case errors.Is(err, repository.ErrInvalidSlug):
		return &apiError{Status: http.StatusBadRequest, Code: CodeValidation, Message: "Validation error",
			Details: map[string]string{"slug": repository.ErrInvalidSlug.Error()}}
	case errors.Is(err, repository.ErrPlanLimit):
		return &apiError{Status: http.StatusForbidden, Code: CodeForbidden, Message: "Link limit reached for current plan"}
	}
	return err
}

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return CodeValidation
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return CodeNotFound
	case http.StatusTooManyRequests:
		return CodeRateLimited
	}
	if status >= 500 {
		return CodeInternal
	}
	return http.StatusText(status)
}

// HTTPErrorHandler renders every error as {error, code, details?}.  Causes
// of 500 responses are logged and replaced by a generic message.
func HTTPErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var (
			ae *apiError
			he *echo.HTTPError
			eb errorBody
			st int
		)
		switch {
		case errors.As(err, &ae):
			st = ae.Status
			eb = errorBody{Error: ae.Message, Code: ae.Code, Details: ae.Details}
		case errors.As(err, &he):
			st = he.Code
			msg, ok := he.Message.(string)
			if !ok {
				msg = fmt.Sprint(he.Message)
			}
			eb = errorBody{Error: msg, Code: codeFor(st)}
		default:
			st = http.StatusInternalServerError
		}

		if st >= 500 {
			logger.ErrorContext(c.Request().Context(), "request failed",
				"method", c.Request().Method, "path", c.Path(), "err", err)
			eb = errorBody{Error: "Internal server error", Code: CodeInternal}
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(st)
		} else {
			werr = c.JSON(st, eb)
		}
		if werr != nil {
			logger.WarnContext(c.Request().Context(), "write error response", "err", werr)
		}
	}
}
