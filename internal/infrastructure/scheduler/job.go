package scheduler

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobType names a sync process the scheduler can run
type JobType string

const (
	JobTypeCatalogExport     JobType = "catalog_export"
	JobTypeFullOfferExport   JobType = "full_offer_export"
	JobTypeQueuedOfferExport JobType = "queued_offer_export"
	JobTypeOrderImport       JobType = "order_import"
	JobTypeShipmentExport    JobType = "shipment_export"
	JobTypeArtifactCleanup   JobType = "artifact_cleanup"
)

// AllJobTypes returns every job type in display order
func AllJobTypes() []JobType {
	return []JobType{
		JobTypeCatalogExport,
		JobTypeFullOfferExport,
		JobTypeQueuedOfferExport,
		JobTypeOrderImport,
		JobTypeShipmentExport,
		JobTypeArtifactCleanup,
	}
}

// ParseJobType validates a job type name
func ParseJobType(s string) (JobType, error) {
	for _, t := range AllJobTypes() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidJobType, s)
}

// JobStatus is the lifecycle state of a job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusPartial JobStatus = "PARTIAL"
	JobStatusFailed  JobStatus = "FAILED"
)

// Trigger records what submitted a job
type Trigger string

const (
	TriggerCron   Trigger = "cron"
	TriggerManual Trigger = "manual"
)

// Run outcomes
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeFailed  = "failed"
)

// ConnectionRun is the result of running a job for one connection. A zero
// ConnectionID marks a run not bound to a connection.
type ConnectionRun struct {
	ConnectionID int64         `json:"connection_id,omitempty"`
	Outcome      string        `json:"outcome"`
	Summary      string        `json:"summary,omitempty"`
	Error        string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Job is one submitted run of a job type, over one connection or all
// active ones when ConnectionID is nil
type Job struct {
	ID           uuid.UUID  `json:"id"`
	Type         JobType    `json:"type"`
	ConnectionID *int64     `json:"connection_id,omitempty"`
	Trigger      Trigger    `json:"trigger"`
	Status       JobStatus  `json:"status"`
	Error        string     `json:"error,omitempty"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`

	mu   sync.Mutex
	Runs []ConnectionRun `json:"runs"`
}

// NewJob creates a pending job
func NewJob(jobType JobType, connectionID *int64, trigger Trigger) *Job {
	return &Job{
		ID:           uuid.New(),
		Type:         jobType,
		ConnectionID: connectionID,
		Trigger:      trigger,
		Status:       JobStatusPending,
		SubmittedAt:  time.Now(),
	}
}

// key identifies jobs that must not be queued twice
func (j *Job) key() string {
	if j.ConnectionID == nil {
		return string(j.Type) + ":all"
	}
	return string(j.Type) + ":" + strconv.FormatInt(*j.ConnectionID, 10)
}

// Start marks the job as running
func (j *Job) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// AddRun records the result for one connection
func (j *Job) AddRun(run ConnectionRun) {
	j.mu.Lock()
	j.Runs = append(j.Runs, run)
	j.mu.Unlock()
}

// Complete derives the final status from the recorded runs
func (j *Job) Complete() {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	j.CompletedAt = &now

	failed := 0
	for _, r := range j.Runs {
		if r.Outcome == OutcomeFailed {
			failed++
		}
	}
	switch {
	case failed == 0:
		j.Status = JobStatusSuccess
	case failed < len(j.Runs):
		j.Status = JobStatusPartial
	default:
		j.Status = JobStatusFailed
	}
}

// Fail marks the job as failed before any run could complete
func (j *Job) Fail(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// Snapshot returns a copy safe to hand out while the job may still run
func (j *Job) Snapshot() *Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	return &Job{
		ID:           j.ID,
		Type:         j.Type,
		ConnectionID: j.ConnectionID,
		Trigger:      j.Trigger,
		Status:       j.Status,
		Error:        j.Error,
		SubmittedAt:  j.SubmittedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
		Runs:         append([]ConnectionRun(nil), j.Runs...),
	}
}
