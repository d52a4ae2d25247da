package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/gigmarket-be/internal/api/auth"
	"github.com/cuongbtq/gigmarket-be/internal/domain"
	"github.com/cuongbtq/gigmarket-be/internal/lifecycle"
	"github.com/gin-gonic/gin"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger  *slog.Logger
	Manager *lifecycle.Manager
	// HealthCheck probes the backing store; nil means always healthy
	HealthCheck func(ctx context.Context) error
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger  *slog.Logger
	manager *lifecycle.Manager
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:  deps.Logger,
		manager: deps.Manager,
	}
}

// actor returns the authenticated caller or writes 401
func (h *JobHandler) actor(c *gin.Context) (domain.Actor, bool) {
	actor, ok := auth.ActorFrom(c)
	if !ok || actor.ID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "authentication required",
		})
		return domain.Actor{}, false
	}
	return actor, true
}

// Health handles GET /health
func Health(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.HealthCheck != nil {
			if err := deps.HealthCheck(c.Request.Context()); err != nil {
				deps.Logger.Error("Health check failed", slog.String("error", err.Error()))
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": "gigmarket-api",
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "gigmarket-api",
		})
	}
}
