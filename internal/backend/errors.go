// errors.go - JSON error responses for the reference backend
package backend

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/comigor/ragchat-go/internal/logger"
)

// APIError is written as {"detail": "..."}, the body clients show verbatim.
type APIError struct {
	Status int    `json:"-"`
	Detail string `json:"detail"`
	cause  error
}

func (e *APIError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Detail, e.cause)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Detail)
}

func (e *APIError) Unwrap() error { return e.cause }

// NewBadRequestError creates a 400 error.
func NewBadRequestError(detail string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Detail: detail}
}

// NewNotFoundError creates a 404 error.
func NewNotFoundError(detail string) *APIError {
	return &APIError{Status: http.StatusNotFound, Detail: detail}
}

// NewInternalError creates a 500 error. cause is logged, detail is returned.
func NewInternalError(detail string, cause error) *APIError {
	return &APIError{Status: http.StatusInternalServerError, Detail: detail, cause: cause}
}

// ErrorHandler renders every handler error as an APIError.
// Usage: e.HTTPErrorHandler = ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &httpErr):
		apiErr = &APIError{Status: httpErr.Code, Detail: fmt.Sprint(httpErr.Message)}
	default:
		apiErr = NewInternalError("Internal server error", err)
	}

	req := c.Request()
	if apiErr.Status >= http.StatusInternalServerError {
		logger.L.Error("request failed", "method", req.Method, "path", req.URL.Path, "status", apiErr.Status, "error", err)
	} else {
		logger.L.Debug("request rejected", "method", req.Method, "path", req.URL.Path, "status", apiErr.Status, "detail", apiErr.Detail)
	}

	if req.Method == http.MethodHead {
		_ = c.NoContent(apiErr.Status)
		return
	}
	_ = c.JSON(apiErr.Status, apiErr)
}

func errorStatus(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}
	return http.StatusInternalServerError
}
