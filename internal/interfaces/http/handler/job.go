package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/marketsync/backend/internal/domain/connection"
	"github.com/marketsync/backend/internal/infrastructure/scheduler"
)

// JobSubmitter queues sync jobs and reports their history
type JobSubmitter interface {
	Submit(jobType scheduler.JobType, connectionID *int64, trigger scheduler.Trigger) (*scheduler.Job, error)
	History(limit int) []*scheduler.Job
}

// JobHandler handles manual job runs
type JobHandler struct {
	BaseHandler
	jobs        JobSubmitter
	connections connection.Reader
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(jobs JobSubmitter, connections connection.Reader) *JobHandler {
	return &JobHandler{jobs: jobs, connections: connections}
}

// ConnectionRunResponse is the result of a job for one connection
type ConnectionRunResponse struct {
	ConnectionID int64  `json:"connection_id"`
	Outcome      string `json:"outcome"`
	Summary      string `json:"summary,omitempty"`
	Error        string `json:"error,omitempty"`
	DurationMS   int64  `json:"duration_ms"`
}

// JobResponse represents a queued or finished job
type JobResponse struct {
	ID           string                  `json:"id"`
	Type         string                  `json:"type"`
	ConnectionID *int64                  `json:"connection_id,omitempty"`
	Trigger      string                  `json:"trigger"`
	Status       string                  `json:"status"`
	Error        string                  `json:"error,omitempty"`
	SubmittedAt  time.Time               `json:"submitted_at"`
	StartedAt    *time.Time              `json:"started_at,omitempty"`
	CompletedAt  *time.Time              `json:"completed_at,omitempty"`
	Runs         []ConnectionRunResponse `json:"runs"`
}

func toJobResponse(j *scheduler.Job) JobResponse {
	resp := JobResponse{
		ID:           j.ID.String(),
		Type:         string(j.Type),
		ConnectionID: j.ConnectionID,
		Trigger:      string(j.Trigger),
		Status:       string(j.Status),
		Error:        j.Error,
		SubmittedAt:  j.SubmittedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
		Runs:         make([]ConnectionRunResponse, 0, len(j.Runs)),
	}
	for _, r := range j.Runs {
		resp.Runs = append(resp.Runs, ConnectionRunResponse{
			ConnectionID: r.ConnectionID,
			Outcome:      r.Outcome,
			Summary:      r.Summary,
			Error:        r.Error,
			DurationMS:   r.Duration.Milliseconds(),
		})
	}
	return resp
}

// RunForConnection godoc
// @ID           runConnectionJob
// @Summary      Queue a sync job for one connection
// @Tags         jobs
// @Produce      json
// @Param        id path int true "Connection ID"
// @Param        type path string true "Job type" Enums(catalog_export, full_offer_export, queued_offer_export, order_import, shipment_export)
// @Success      202 {object} Envelope[JobResponse]
// @Failure      404 {object} ErrorEnvelope
// @Failure      409 {object} ErrorEnvelope
// @Failure      503 {object} ErrorEnvelope
// @Security     BearerAuth
// @Router       /connections/{id}/jobs/{type} [post]
func (h *JobHandler) RunForConnection(c *gin.Context) {
	id, ok := parseIDParam(c, &h.BaseHandler, "id")
	if !ok {
		return
	}
	jobType, err := scheduler.ParseJobType(c.Param("type"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if _, err := h.connections.FindByID(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	job, err := h.jobs.Submit(jobType, &id, scheduler.TriggerManual)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, toJobResponse(job))
}

// Run godoc
// @ID           runJob
// @Summary      Queue a sync job for all active connections
// @Tags         jobs
// @Produce      json
// @Param        type path string true "Job type"
// @Success      202 {object} Envelope[JobResponse]
// @Failure      409 {object} ErrorEnvelope
// @Security     BearerAuth
// @Router       /jobs/{type} [post]
func (h *JobHandler) Run(c *gin.Context) {
	jobType, err := scheduler.ParseJobType(c.Param("type"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	job, err := h.jobs.Submit(jobType, nil, scheduler.TriggerManual)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, toJobResponse(job))
}

// List godoc
// @ID           listJobs
// @Summary      List recent jobs, newest first
// @Tags         jobs
// @Produce      json
// @Param        limit query int false "Maximum number of jobs" default(50)
// @Success      200 {object} Envelope[[]JobResponse]
// @Security     BearerAuth
// @Router       /jobs [get]
func (h *JobHandler) List(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}
	jobs := h.jobs.History(limit)
	out := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobResponse(j))
	}
	h.SuccessList(c, out, len(out))
}
