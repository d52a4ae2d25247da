package router

import (
	"log/slog"

	"github.com/cuongbtq/gigmarket-be/internal/api/auth"
	"github.com/cuongbtq/gigmarket-be/internal/api/handler"
	"github.com/cuongbtq/gigmarket-be/internal/api/ratelimit"
	"github.com/gin-gonic/gin"
)

// Options configures the HTTP boundary around the handlers
type Options struct {
	Verifier   *auth.Verifier
	Limiter    *ratelimit.Limiter
	CreateRule ratelimit.Rule
	ApplyRule  ratelimit.Rule
}

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, opts Options) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", handler.Health(deps))

	jobHandler := handler.NewJobHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware(opts.Verifier, deps.Logger))
	{
		jobs := v1.Group("/jobs")
		{
			// POST /api/v1/jobs - Post a new job
			jobs.POST("", RateLimitMiddleware(opts.Limiter, opts.CreateRule), jobHandler.CreateJob)

			// GET /api/v1/jobs - List jobs with filtering and pagination
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/:job_id - Get job details
			jobs.GET("/:job_id", jobHandler.GetJob)

			// PATCH /api/v1/jobs/:job_id - Edit an open job
			jobs.PATCH("/:job_id", jobHandler.UpdateJob)

			// POST /api/v1/jobs/:job_id/apply - Apply as a worker
			jobs.POST("/:job_id/apply", RateLimitMiddleware(opts.Limiter, opts.ApplyRule), jobHandler.ApplyToJob)

			// GET /api/v1/jobs/:job_id/applications - Applications for the owner
			jobs.GET("/:job_id/applications", jobHandler.ListApplications)

			// POST /api/v1/jobs/:job_id/hire - Hire an applicant
			jobs.POST("/:job_id/hire", jobHandler.HireWorker)

			// POST /api/v1/jobs/:job_id/complete - Mark an in-progress job completed
			jobs.POST("/:job_id/complete", jobHandler.CompleteJob)

			// POST /api/v1/jobs/:job_id/cancel - Cancel a job
			jobs.POST("/:job_id/cancel", jobHandler.CancelJob)
		}

		// GET /api/v1/me/applications - The caller's own applications
		v1.GET("/me/applications", jobHandler.ListMyApplications)

		// GET /api/v1/me/recommended-jobs - Open jobs matched to the caller's history
		v1.GET("/me/recommended-jobs", jobHandler.ListMyRecommendedJobs)
	}

	deps.Logger.Debug("Routes registered", slog.Int("count", len(r.Routes())))
	return r
}
