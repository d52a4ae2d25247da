package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/gigmarket-be/internal/api/dto"
	"github.com/cuongbtq/gigmarket-be/internal/domain"
	"github.com/gin-gonic/gin"
)

// ApplyToJob handles POST /api/v1/jobs/:job_id/apply
func (h *JobHandler) ApplyToJob(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	h.logger.Info("ApplyToJob called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("job_id", jobID),
	)

	actor, ok := h.actor(c)
	if !ok {
		return
	}

	app, err := h.manager.ApplyToJob(c.Request.Context(), actor, jobID)
	if err != nil {
		// applying to your own job is a bad request on this route
		if errors.Is(err, domain.ErrPermission) {
			h.respondErrorStatus(c, http.StatusBadRequest, err, "Failed to apply to job")
			return
		}
		h.respondError(c, err, "Failed to apply to job")
		return
	}

	c.JSON(http.StatusCreated, dto.NewApplicationDTO(app))
}

// ListApplications handles GET /api/v1/jobs/:job_id/applications
func (h *JobHandler) ListApplications(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	h.logger.Info("ListApplications called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("job_id", jobID),
	)

	actor, ok := h.actor(c)
	if !ok {
		return
	}

	apps, err := h.manager.ListApplications(c.Request.Context(), actor, jobID)
	if err != nil {
		h.respondError(c, err, "Failed to list applications")
		return
	}

	c.JSON(http.StatusOK, newApplicationsResponse(apps))
}

// ListMyApplications handles GET /api/v1/me/applications
func (h *JobHandler) ListMyApplications(c *gin.Context) {
	h.logger.Info("ListMyApplications called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
	)

	actor, ok := h.actor(c)
	if !ok {
		return
	}

	apps, err := h.manager.ListWorkerApplications(c.Request.Context(), actor)
	if err != nil {
		h.respondError(c, err, "Failed to list applications")
		return
	}

	c.JSON(http.StatusOK, newApplicationsResponse(apps))
}

// HireWorker handles POST /api/v1/jobs/:job_id/hire
func (h *JobHandler) HireWorker(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	h.logger.Info("HireWorker called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("job_id", jobID),
	)

	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req dto.HireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "worker_id is required",
		})
		return
	}

	res, err := h.manager.HireWorker(c.Request.Context(), actor, jobID, req.WorkerID)
	if err != nil {
		h.respondError(c, err, "Failed to hire worker")
		return
	}

	c.JSON(http.StatusOK, dto.HireResponse{
		Detail:      fmt.Sprintf("Worker %s hired for job %s.", req.WorkerID, res.JobTitle),
		Application: dto.NewApplicationDTO(&res.Application),
		JobStatus:   string(res.JobStatus),
		HiredCount:  res.HiredCount,
		MaxWorkers:  res.MaxWorkers,
	})
}

func newApplicationsResponse(apps []domain.JobApplication) dto.ListApplicationsResponse {
	out := make([]dto.ApplicationDTO, len(apps))
	for i := range apps {
		out[i] = dto.NewApplicationDTO(&apps[i])
	}
	return dto.ListApplicationsResponse{Applications: out}
}
