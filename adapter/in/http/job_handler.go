package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"onlyjobs_server/core/port/out"
	"onlyjobs_server/pkg/response"
)

// JobHandler handles HTTP requests for the job board.
type JobHandler struct {
	repo out.JobRepository
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(repo out.JobRepository) *JobHandler {
	return &JobHandler{repo: repo}
}

// Register registers job routes.
func (h *JobHandler) Register(router fiber.Router) {
	jobs := router.Group("/jobs")
	jobs.Get("/", h.List)
	jobs.Get("/:id", h.Get)
}

// List lists jobs with filters.
// @Summary List jobs
// @Tags Jobs
// @Produce json
// @Param status query string false "Filter by status (applied, interview, offer, declined)"
// @Param search query string false "Match against company or position"
// @Param limit query int false "Limit (default 50)"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Response
// @Router /api/jobs [get]
func (h *JobHandler) List(c *fiber.Ctx) error {
	filter := out.JobListFilter{
		Status: c.Query("status"),
		Search: c.Query("search"),
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	}

	jobs, err := h.repo.List(c.Context(), filter)
	if err != nil {
		return response.AppError(c, err)
	}
	total, err := h.repo.Count(c.Context(), filter)
	if err != nil {
		return response.AppError(c, err)
	}

	return response.OKWithMeta(c, jobs, &response.Meta{
		Total:   total,
		HasMore: filter.Offset+len(jobs) < total,
	})
}

// Get retrieves a job by ID.
// @Summary Get a job by ID
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID (UUID)"
// @Success 200 {object} response.Response
// @Router /api/jobs/{id} [get]
func (h *JobHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "invalid job ID")
	}

	job, err := h.repo.GetByID(c.Context(), id)
	if err != nil {
		return response.AppError(c, err)
	}

	return response.OK(c, job)
}
