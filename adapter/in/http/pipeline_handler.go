package http

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"onlyjobs_server/core/domain"
	"onlyjobs_server/core/service/pipeline"
	"onlyjobs_server/pkg/response"
)

// PipelineHandler exposes pipeline state and the ingestion entry point.
type PipelineHandler struct {
	tracker *pipeline.Tracker
	runner  *pipeline.Runner
	log     zerolog.Logger

	// One run at a time. A second ingest while one is active gets a 409.
	runMu     sync.Mutex
	runActive bool
}

// NewPipelineHandler creates a new PipelineHandler.
func NewPipelineHandler(tracker *pipeline.Tracker, runner *pipeline.Runner, log zerolog.Logger) *PipelineHandler {
	return &PipelineHandler{
		tracker: tracker,
		runner:  runner,
		log:     log.With().Str("handler", "pipeline").Logger(),
	}
}

// Register registers pipeline routes.
func (h *PipelineHandler) Register(router fiber.Router) {
	pipe := router.Group("/pipeline")
	pipe.Get("/stats", h.Stats)
	pipe.Get("/review", h.ReviewQueue)
	pipe.Post("/review/:message_id/approve", h.Approve)
	pipe.Post("/review/:message_id/reject", h.Reject)
	pipe.Post("/ingest", h.Ingest)
}

// Stats returns per-stage record counts.
// @Summary Pipeline stage counts
// @Tags Pipeline
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/pipeline/stats [get]
func (h *PipelineHandler) Stats(c *fiber.Ctx) error {
	counts, err := h.tracker.StageCounts(c.Context())
	if err != nil {
		return response.AppError(c, err)
	}

	stats := make(map[string]int, len(counts))
	for stage, count := range counts {
		stats[string(stage)] = count
	}
	return response.OK(c, stats)
}

// ReviewQueue lists records awaiting human confirmation.
// @Summary List records needing review
// @Tags Pipeline
// @Produce json
// @Param limit query int false "Limit (default 50)"
// @Success 200 {object} response.Response
// @Router /api/pipeline/review [get]
func (h *PipelineHandler) ReviewQueue(c *fiber.Ctx) error {
	records, err := h.tracker.ReviewQueue(c.Context(), c.QueryInt("limit", 50))
	if err != nil {
		return response.AppError(c, err)
	}
	if records == nil {
		records = []*domain.PipelineRecord{}
	}
	return response.OK(c, records)
}

// Approve confirms a low-confidence classification and moves the record
// toward extraction.
// @Summary Approve a record for extraction
// @Tags Pipeline
// @Param message_id path string true "Gmail message ID"
// @Success 200 {object} response.Response
// @Router /api/pipeline/review/{message_id}/approve [post]
func (h *PipelineHandler) Approve(c *fiber.Ctx) error {
	record, err := h.tracker.ApproveForExtraction(c.Context(), c.Params("message_id"))
	if err != nil {
		return response.AppError(c, err)
	}
	return response.OK(c, record)
}

// Reject marks a record as not job-related. Rejected records are frozen.
// @Summary Reject a record
// @Tags Pipeline
// @Param message_id path string true "Gmail message ID"
// @Success 200 {object} response.Response
// @Router /api/pipeline/review/{message_id}/reject [post]
func (h *PipelineHandler) Reject(c *fiber.Ctx) error {
	record, err := h.tracker.Reject(c.Context(), c.Params("message_id"))
	if err != nil {
		return response.AppError(c, err)
	}
	return response.OK(c, record)
}

// IngestRequest is a batch of fetched emails to run through the pipeline.
type IngestRequest struct {
	Emails []*domain.Email `json:"emails"`
}

// Ingest runs the correlation pipeline over a batch of emails and returns
// the run summary. The run is synchronous; progress is streamed on /events.
// @Summary Ingest a batch of emails
// @Tags Pipeline
// @Accept json
// @Produce json
// @Param request body IngestRequest true "Fetched emails"
// @Success 200 {object} response.Response
// @Router /api/pipeline/ingest [post]
func (h *PipelineHandler) Ingest(c *fiber.Ctx) error {
	var req IngestRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if len(req.Emails) == 0 {
		return response.BadRequest(c, "emails are required")
	}

	h.runMu.Lock()
	if h.runActive {
		h.runMu.Unlock()
		return response.Error(c, fiber.StatusConflict, "RUN_IN_PROGRESS", "a pipeline run is already active")
	}
	h.runActive = true
	h.runMu.Unlock()

	defer func() {
		h.runMu.Lock()
		h.runActive = false
		h.runMu.Unlock()
	}()

	started := time.Now()
	summary, err := h.runner.Run(c.Context(), req.Emails)
	if err != nil {
		return response.AppError(c, err)
	}

	h.log.Info().
		Str("run_id", summary.RunID).
		Int("units_total", summary.UnitsTotal).
		Int("jobs_created", summary.JobsCreated).
		Dur("duration", time.Since(started)).
		Msg("ingest run finished")

	return response.OK(c, summary)
}
