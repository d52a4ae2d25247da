package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/gigmarket-be/internal/domain"
	"github.com/gin-gonic/gin"
)

// statusFor maps a domain error kind to an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrCapacity):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error body for err. Unexpected errors are logged
// and their message is replaced by fallback.
func (h *JobHandler) respondError(c *gin.Context, err error, fallback string) {
	h.respondErrorStatus(c, statusFor(err), err, fallback)
}

func (h *JobHandler) respondErrorStatus(c *gin.Context, status int, err error, fallback string) {
	if status == http.StatusInternalServerError {
		h.logger.Error(fallback, slog.String("error", err.Error()))
		c.JSON(status, gin.H{
			"error": fallback,
		})
		return
	}

	h.logger.Info("Request rejected",
		slog.String("path", c.FullPath()),
		slog.Int("status", status),
		slog.String("reason", err.Error()),
	)
	c.JSON(status, gin.H{
		"error": err.Error(),
	})
}
