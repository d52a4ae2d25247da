package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/gigmarket-be/internal/api/dto"
	"github.com/cuongbtq/gigmarket-be/internal/domain"
	"github.com/cuongbtq/gigmarket-be/internal/lifecycle"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateJob handles POST /api/v1/jobs
// Posts a new open job owned by the caller
func (h *JobHandler) CreateJob(c *gin.Context) {
	h.logger.Info("CreateJob called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
	)

	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	in := lifecycle.CreateJobInput{
		Title:          req.Title,
		Description:    req.Description,
		MaxWorkers:     1,
		ExpiresAt:      req.ExpiresAt,
		RequiredSkills: req.RequiredSkills,
		LocationID:     req.LocationID,
		ShiftID:        req.ShiftID,
	}
	if req.Budget != nil {
		in.Budget = decimal.NewNullDecimal(*req.Budget)
	}
	if req.MaxWorkers != nil {
		in.MaxWorkers = *req.MaxWorkers
	}

	job, err := h.manager.CreateJob(c.Request.Context(), actor, in)
	if err != nil {
		h.respondError(c, err, "Failed to create job")
		return
	}

	c.JSON(http.StatusCreated, dto.NewJobDTO(job))
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	h.logger.Info("GetJob called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("job_id", jobID),
	)

	actor, ok := h.actor(c)
	if !ok {
		return
	}

	job, err := h.manager.GetJob(c.Request.Context(), actor, jobID)
	if err != nil {
		h.respondError(c, err, "Failed to get job")
		return
	}

	c.JSON(http.StatusOK, dto.NewJobDTO(job))
}

// ListJobs handles GET /api/v1/jobs
// Lists visible jobs with optional filtering and keyset pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	h.logger.Info("ListJobs called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("query", c.Request.URL.RawQuery),
	)

	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = lifecycle.DefaultPageSize
	}
	if req.PageSize > lifecycle.MaxPageSize {
		req.PageSize = lifecycle.MaxPageSize
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := domain.JobFilter{
		ClientID:   req.ClientID,
		Skill:      req.Skill,
		LocationID: req.Location,
		PageSize:   req.PageSize,
		Cursor:     cursor,
	}
	if req.Status != "" {
		status, ok := domain.ParseJobStatus(req.Status)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("unknown status %q", req.Status),
			})
			return
		}
		filter.Status = status
	}
	if filter.MinBudget, err = parseBudget(req.MinBudget); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "min_budget must be a number",
		})
		return
	}
	if filter.MaxBudget, err = parseBudget(req.MaxBudget); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "max_budget must be a number",
		})
		return
	}

	jobs, err := h.manager.ListJobs(c.Request.Context(), actor, filter)
	if err != nil {
		h.respondError(c, err, "Failed to list jobs")
		return
	}

	// One extra row means another page exists
	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	jobResponse := make([]dto.JobDTO, len(jobs))
	for i := range jobs {
		jobResponse[i] = dto.NewJobDTO(&jobs[i])
	}

	var nextCursor string
	if hasMore {
		lastJob := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&domain.JobCursor{
			CreatedAt: lastJob.CreatedAt,
			JobID:     lastJob.ID,
		})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}

// UpdateJob handles PATCH /api/v1/jobs/:job_id
func (h *JobHandler) UpdateJob(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	h.logger.Info("UpdateJob called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("job_id", jobID),
	)

	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req dto.UpdateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	job, err := h.manager.UpdateJob(c.Request.Context(), actor, jobID, lifecycle.UpdateJobInput{
		Title:          req.Title,
		Description:    req.Description,
		Budget:         req.Budget,
		MaxWorkers:     req.MaxWorkers,
		ExpiresAt:      req.ExpiresAt,
		ClearExpiresAt: req.ClearExpiresAt,
		RequiredSkills: req.RequiredSkills,
		LocationID:     req.LocationID,
		ShiftID:        req.ShiftID,
	})
	if err != nil {
		h.respondError(c, err, "Failed to update job")
		return
	}

	c.JSON(http.StatusOK, dto.NewJobDTO(job))
}

// CompleteJob handles POST /api/v1/jobs/:job_id/complete
func (h *JobHandler) CompleteJob(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	h.logger.Info("CompleteJob called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("job_id", jobID),
	)

	actor, ok := h.actor(c)
	if !ok {
		return
	}

	job, err := h.manager.CompleteJob(c.Request.Context(), actor, jobID)
	if err != nil {
		h.respondError(c, err, "Failed to complete job")
		return
	}

	c.JSON(http.StatusOK, dto.NewJobDTO(job))
}

// CancelJob handles POST /api/v1/jobs/:job_id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	h.logger.Info("CancelJob called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("job_id", jobID),
	)

	actor, ok := h.actor(c)
	if !ok {
		return
	}

	job, err := h.manager.CancelJob(c.Request.Context(), actor, jobID)
	if err != nil {
		h.respondError(c, err, "Failed to cancel job")
		return
	}

	c.JSON(http.StatusOK, dto.NewJobDTO(job))
}

// jobID validates the :job_id path parameter
func (h *JobHandler) jobID(c *gin.Context) (string, bool) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		h.logger.Error("Invalid job_id format", slog.String("job_id", jobID), slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return "", false
	}
	return jobID, true
}

func parseBudget(raw string) (decimal.NullDecimal, error) {
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}
