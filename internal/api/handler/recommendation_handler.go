package handler

import (
	"log/slog"
	"net/http"

	"github.com/cuongbtq/gigmarket-be/internal/api/dto"
	"github.com/gin-gonic/gin"
)

// ListMyRecommendedJobs handles GET /api/v1/me/recommended-jobs
func (h *JobHandler) ListMyRecommendedJobs(c *gin.Context) {
	h.logger.Info("ListMyRecommendedJobs called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
	)

	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req dto.ListRecommendedJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	recs, err := h.manager.ListRecommendedJobs(c.Request.Context(), actor, req.Limit)
	if err != nil {
		h.respondError(c, err, "Failed to list recommended jobs")
		return
	}

	resp := dto.ListRecommendedJobsResponse{Jobs: make([]dto.RecommendedJobDTO, len(recs))}
	for i := range recs {
		resp.Jobs[i] = dto.NewRecommendedJobDTO(&recs[i])
	}
	c.JSON(http.StatusOK, resp)
}
