package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/infrastructure/config"
)

// Submitter queues jobs
type Submitter interface {
	Submit(jobType JobType, connectionID *int64, trigger Trigger) (*Job, error)
}

// CronTrigger submits jobs for all active connections on cron schedules.
// Expressions use the standard five fields and accept descriptors such as
// "@every 15m".
type CronTrigger struct {
	cron      *cron.Cron
	submitter Submitter
	logger    *zap.Logger
	entries   map[JobType]cron.EntryID
}

// NewCronTrigger creates a trigger bound to the submitter
func NewCronTrigger(submitter Submitter, log *zap.Logger) *CronTrigger {
	if log == nil {
		log = zap.NewNop()
	}
	return &CronTrigger{
		cron:      cron.New(cron.WithLogger(cronLogger{log.Sugar()})),
		submitter: submitter,
		logger:    log,
		entries:   make(map[JobType]cron.EntryID),
	}
}

// Schedules maps each job type to its configured expression
func Schedules(cfg config.SchedulerConfig) map[JobType]string {
	return map[JobType]string{
		JobTypeCatalogExport:     cfg.CatalogExportCron,
		JobTypeFullOfferExport:   cfg.FullOfferCron,
		JobTypeQueuedOfferExport: cfg.QueuedOfferCron,
		JobTypeOrderImport:       cfg.OrderImportCron,
		JobTypeShipmentExport:    cfg.ShipmentExportCron,
		JobTypeArtifactCleanup:   cfg.ArtifactCleanupCron,
	}
}

// Schedule registers a job type under a cron expression. An empty
// expression leaves the job type unscheduled.
func (t *CronTrigger) Schedule(jobType JobType, spec string) error {
	if spec == "" {
		return nil
	}
	if _, ok := t.entries[jobType]; ok {
		return fmt.Errorf("%w: %s already scheduled", ErrInvalidCronSpec, jobType)
	}
	id, err := t.cron.AddFunc(spec, func() { t.fire(jobType) })
	if err != nil {
		return fmt.Errorf("%w: %s %q: %v", ErrInvalidCronSpec, jobType, spec, err)
	}
	t.entries[jobType] = id
	t.logger.Info("Job scheduled",
		zap.String("job_type", string(jobType)),
		zap.String("cron", spec))
	return nil
}

// ScheduleAll registers every configured expression
func (t *CronTrigger) ScheduleAll(schedules map[JobType]string) error {
	for _, jobType := range AllJobTypes() {
		if err := t.Schedule(jobType, schedules[jobType]); err != nil {
			return err
		}
	}
	return nil
}

// Start starts the cron loop
func (t *CronTrigger) Start() {
	t.cron.Start()
	t.logger.Info("Cron trigger started", zap.Int("entries", len(t.entries)))
}

// Stop stops the cron loop and waits for running submissions
func (t *CronTrigger) Stop(ctx context.Context) error {
	select {
	case <-t.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *CronTrigger) fire(jobType JobType) {
	job, err := t.submitter.Submit(jobType, nil, TriggerCron)
	switch {
	case err == nil:
		t.logger.Debug("Cron job submitted",
			zap.String("job_type", string(jobType)),
			zap.String("job_id", job.ID.String()))
	case errors.Is(err, ErrJobAlreadyQueued):
		t.logger.Info("Previous run still in progress, skipping",
			zap.String("job_type", string(jobType)))
	default:
		t.logger.Warn("Failed to submit cron job",
			zap.String("job_type", string(jobType)),
			zap.Error(err))
	}
}

// cronLogger routes cron's own logging through zap
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
