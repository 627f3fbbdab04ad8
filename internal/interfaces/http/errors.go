package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/proposal-approval/internal/domain/errs"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

// statusFor maps the error taxonomy to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrIllegalState):
		return http.StatusConflict
	case errors.Is(err, errs.ErrStorage):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the mapped status and message. Unclassified errors are
// logged and hidden behind a generic message.
func (h *Handlers) respondError(c *gin.Context, op string, err error) {
	status := statusFor(err)
	msg := err.Error()

	switch status {
	case http.StatusInternalServerError:
		h.logger.Error("Request failed", "op", op, "error", err)
		msg = "internal error"
	case http.StatusServiceUnavailable:
		h.logger.Error("Storage unavailable", "op", op, "error", err)
		msg = "storage temporarily unavailable, retry the request"
	}

	c.JSON(status, ErrorResponse{
		Error:     msg,
		Retryable: errs.IsRetryable(err),
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}
