package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuongbtq/gigmarket-be/internal/api/auth"
	"github.com/cuongbtq/gigmarket-be/internal/api/dto"
	"github.com/cuongbtq/gigmarket-be/internal/api/handler"
	"github.com/cuongbtq/gigmarket-be/internal/domain"
	"github.com/cuongbtq/gigmarket-be/internal/lifecycle"
	"github.com/cuongbtq/gigmarket-be/internal/storage/memory"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t        *testing.T
	engine   *gin.Engine
	verifier *auth.Verifier
	store    *memory.Store
}

func newTestServer(t *testing.T, healthErr error) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	verifier := auth.NewVerifier("test-secret", "gigmarket")
	deps := &handler.Dependencies{
		Logger:  logger,
		Manager: lifecycle.NewManager(store, logger),
		HealthCheck: func(context.Context) error {
			return healthErr
		},
	}

	return &testServer{
		t:        t,
		engine:   SetupRouter(deps, Options{Verifier: verifier}),
		verifier: verifier,
		store:    store,
	}
}

func (s *testServer) do(actor *domain.Actor, method, path string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		token, err := s.verifier.Issue(*actor, time.Hour)
		require.NoError(s.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func newActor(role domain.Role) *domain.Actor {
	return &domain.Actor{ID: uuid.NewString(), Role: role}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(nil, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	s = newTestServer(t, errors.New("db down"))
	w = s.do(nil, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(nil, http.MethodGet, "/api/v1/jobs", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing authorization header")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHiringFlow(t *testing.T) {
	s := newTestServer(t, nil)
	client := newActor(domain.RoleClient)
	workerA := newActor(domain.RoleWorker)
	workerB := newActor(domain.RoleWorker)

	w := s.do(client, http.MethodPost, "/api/v1/jobs", map[string]interface{}{
		"title":           "Line cook",
		"budget":          "100",
		"max_workers":     1,
		"required_skills": []string{"Cooking"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	job := decode[dto.JobDTO](t, w)
	assert.Equal(t, "open", job.Status)
	require.NotNil(t, job.Budget)
	assert.Equal(t, "100.00", *job.Budget)
	assert.Equal(t, []string{"cooking"}, job.RequiredSkills)

	jobPath := "/api/v1/jobs/" + job.ID

	w = s.do(workerA, http.MethodPost, jobPath+"/apply", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	app := decode[dto.ApplicationDTO](t, w)
	assert.False(t, app.IsHired)

	w = s.do(workerA, http.MethodPost, jobPath+"/apply", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(client, http.MethodPost, jobPath+"/apply", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(workerB, http.MethodPost, jobPath+"/apply", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(workerA, http.MethodPost, jobPath+"/hire", map[string]string{"worker_id": workerA.ID})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(client, http.MethodPost, jobPath+"/hire", map[string]string{"worker_id": uuid.NewString()})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(client, http.MethodPost, jobPath+"/hire", map[string]string{"worker_id": workerA.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	hire := decode[dto.HireResponse](t, w)
	assert.True(t, hire.Application.IsHired)
	assert.Equal(t, "in_progress", hire.JobStatus)
	assert.Equal(t, "Worker "+workerA.ID+" hired for job Line cook.", hire.Detail)

	w = s.do(client, http.MethodPost, jobPath+"/hire", map[string]string{"worker_id": workerB.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "maximum number of workers")

	w = s.do(client, http.MethodPost, jobPath+"/hire", map[string]string{"worker_id": workerA.ID})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(client, http.MethodGet, jobPath+"/applications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	apps := decode[dto.ListApplicationsResponse](t, w)
	assert.Len(t, apps.Applications, 2)

	w = s.do(workerA, http.MethodGet, jobPath+"/applications", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(workerA, http.MethodGet, "/api/v1/me/applications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	mine := decode[dto.ListApplicationsResponse](t, w)
	require.Len(t, mine.Applications, 1)
	assert.True(t, mine.Applications[0].IsHired)

	w = s.do(client, http.MethodPost, jobPath+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "completed", decode[dto.JobDTO](t, w).Status)
	assert.Len(t, s.store.Events(), 1)

	w = s.do(client, http.MethodPost, jobPath+"/complete", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateJobValidation(t *testing.T) {
	s := newTestServer(t, nil)
	client := newActor(domain.RoleClient)

	tests := []struct {
		name   string
		actor  *domain.Actor
		body   interface{}
		status int
	}{
		{"missing title", client, map[string]interface{}{"budget": 10}, http.StatusBadRequest},
		{"zero budget", client, map[string]interface{}{"title": "x", "budget": 0}, http.StatusBadRequest},
		{"negative budget", client, map[string]interface{}{"title": "x", "budget": -1}, http.StatusBadRequest},
		{"zero max workers", client, map[string]interface{}{"title": "x", "max_workers": 0}, http.StatusBadRequest},
		{"bad location id", client, map[string]interface{}{"title": "x", "location_id": "here"}, http.StatusBadRequest},
		{"worker cannot post", newActor(domain.RoleWorker), map[string]interface{}{"title": "x"}, http.StatusForbidden},
		{"defaults", client, map[string]interface{}{"title": "x"}, http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(tt.actor, http.MethodPost, "/api/v1/jobs", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestJobRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	client := newActor(domain.RoleClient)
	stranger := newActor(domain.RoleWorker)

	w := s.do(client, http.MethodPost, "/api/v1/jobs", map[string]interface{}{"title": "Mover", "max_workers": 2})
	require.Equal(t, http.StatusCreated, w.Code)
	job := decode[dto.JobDTO](t, w)
	jobPath := "/api/v1/jobs/" + job.ID

	w = s.do(stranger, http.MethodGet, "/api/v1/jobs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(stranger, http.MethodGet, "/api/v1/jobs/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(client, http.MethodPatch, jobPath, map[string]interface{}{"title": "Heavy mover", "budget": "55.5"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[dto.JobDTO](t, w)
	assert.Equal(t, "Heavy mover", updated.Title)
	require.NotNil(t, updated.Budget)
	assert.Equal(t, "55.50", *updated.Budget)

	w = s.do(stranger, http.MethodPatch, jobPath, map[string]interface{}{"title": "Mine now"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(stranger, http.MethodPost, jobPath+"/cancel", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(client, http.MethodPost, jobPath+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cancelled", decode[dto.JobDTO](t, w).Status)

	w = s.do(stranger, http.MethodGet, jobPath, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(stranger, http.MethodPost, jobPath+"/apply", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(client, http.MethodPost, jobPath+"/complete", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListJobsPagination(t *testing.T) {
	s := newTestServer(t, nil)
	client := newActor(domain.RoleClient)
	viewer := newActor(domain.RoleWorker)

	for i := 0; i < 5; i++ {
		w := s.do(client, http.MethodPost, "/api/v1/jobs", map[string]interface{}{"title": "Job", "budget": 10 * (i + 1)})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	seen := map[string]bool{}
	path := "/api/v1/jobs?page_size=2"
	pages := 0
	for {
		w := s.do(viewer, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := decode[dto.ListJobsResponse](t, w)
		pages++
		for _, j := range resp.Jobs {
			assert.False(t, seen[j.ID], "job listed twice")
			seen[j.ID] = true
		}
		if resp.NextCursor == "" {
			break
		}
		path = "/api/v1/jobs?page_size=2&cursor=" + resp.NextCursor
	}
	assert.Equal(t, 3, pages)
	assert.Len(t, seen, 5)

	tests := []struct {
		query  string
		status int
		count  int
	}{
		{"?min_budget=20&max_budget=40", http.StatusOK, 3},
		{"?status=OPEN", http.StatusOK, 5},
		{"?status=paused", http.StatusBadRequest, 0},
		{"?min_budget=abc", http.StatusBadRequest, 0},
		{"?min_budget=50&max_budget=10", http.StatusBadRequest, 0},
		{"?cursor=bm9wZQ==", http.StatusBadRequest, 0},
		{"?client_id=" + client.ID, http.StatusOK, 5},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := s.do(viewer, http.MethodGet, "/api/v1/jobs"+tt.query, nil)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.status == http.StatusOK {
				assert.Len(t, decode[dto.ListJobsResponse](t, w).Jobs, tt.count)
			}
		})
	}
}

func TestRecommendedJobsRoute(t *testing.T) {
	s := newTestServer(t, nil)
	client := newActor(domain.RoleClient)
	worker := newActor(domain.RoleWorker)
	area := uuid.NewString()

	post := func(body map[string]interface{}) dto.JobDTO {
		body["max_workers"] = 1
		w := s.do(client, http.MethodPost, "/api/v1/jobs", body)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		return decode[dto.JobDTO](t, w)
	}
	worked := post(map[string]interface{}{"title": "Prep cook", "required_skills": []string{"cooking"}, "location_id": area})
	match := post(map[string]interface{}{"title": "Line cook", "required_skills": []string{"Cooking"}})
	post(map[string]interface{}{"title": "Driver", "required_skills": []string{"driving"}})

	w := s.do(worker, http.MethodPost, "/api/v1/jobs/"+worked.ID+"/apply", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := lifecycle.NewManager(s.store, logger).RecommendJobs(context.Background(), time.Now())
	require.NoError(t, err)

	w = s.do(worker, http.MethodGet, "/api/v1/me/recommended-jobs", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[dto.ListRecommendedJobsResponse](t, w)
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, match.ID, resp.Jobs[0].ID)
	assert.Equal(t, 1, resp.Jobs[0].Score)
	assert.NotEmpty(t, resp.Jobs[0].RecommendedAt)

	w = s.do(client, http.MethodGet, "/api/v1/me/recommended-jobs", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(worker, http.MethodGet, "/api/v1/me/recommended-jobs?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	t.Run("location filter", func(t *testing.T) {
		w := s.do(worker, http.MethodGet, "/api/v1/jobs?location_id="+area, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		jobs := decode[dto.ListJobsResponse](t, w).Jobs
		require.Len(t, jobs, 1)
		assert.Equal(t, worked.ID, jobs[0].ID)

		w = s.do(worker, http.MethodGet, "/api/v1/jobs?location_id=downtown", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestUpdateJobClearExpiry(t *testing.T) {
	s := newTestServer(t, nil)
	client := newActor(domain.RoleClient)

	w := s.do(client, http.MethodPost, "/api/v1/jobs", map[string]interface{}{
		"title":       "Usher",
		"max_workers": 1,
		"expires_at":  time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	job := decode[dto.JobDTO](t, w)
	require.NotNil(t, job.ExpiresAt)

	w = s.do(client, http.MethodPatch, "/api/v1/jobs/"+job.ID, map[string]interface{}{"clear_expires_at": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Nil(t, decode[dto.JobDTO](t, w).ExpiresAt)
}
