package http

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/canvass/internal/core/domain"
	"github.com/samirrijal/canvass/internal/pkg/logging"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // bad_request, not_found, provider_error, unavailable, internal_error
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

// errUnavailable returns a 503 error for a backing service that is not configured.
func errUnavailable(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusServiceUnavailable, "unavailable", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// statusFor maps a domain error to its HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusBadRequest, "bad_request"
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrProvider):
		return fiber.StatusBadGateway, "provider_error"
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, "timeout"
	default:
		return fiber.StatusInternalServerError, "internal_error"
	}
}

// errFromDomain writes the APIError matching err.
func errFromDomain(c *fiber.Ctx, err error) error {
	status, code := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		logging.FromContext(c.UserContext()).LogAttrs(c.UserContext(), slog.LevelError, "request failed",
			slog.String("path", c.Path()), slog.String("error", err.Error()))
	}
	return newError(c, status, code, err.Error())
}
