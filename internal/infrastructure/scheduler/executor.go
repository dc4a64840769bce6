package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/connection"
	"github.com/marketsync/backend/internal/infrastructure/logger"
	"github.com/marketsync/backend/internal/infrastructure/telemetry"
)

// ConnectionRunner runs one process for one connection and returns a short
// summary of what it did
type ConnectionRunner func(ctx context.Context, conn *connection.Connection) (string, error)

// Runner runs a process that is not bound to a connection
type Runner func(ctx context.Context) (string, error)

// Executor resolves the connections of a job and runs the registered
// process for each of them in turn
type Executor struct {
	connections connection.Reader
	metrics     *telemetry.SyncMetrics
	logger      *zap.Logger

	mu      sync.RWMutex
	perConn map[JobType]ConnectionRunner
	global  map[JobType]Runner
}

// NewExecutor creates a new job executor
func NewExecutor(connections connection.Reader, metrics *telemetry.SyncMetrics, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		connections: connections,
		metrics:     metrics,
		logger:      log,
		perConn:     make(map[JobType]ConnectionRunner),
		global:      make(map[JobType]Runner),
	}
}

// Register binds a per-connection process to a job type
func (e *Executor) Register(jobType JobType, run ConnectionRunner) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.perConn[jobType] = run
}

// RegisterGlobal binds a connection-independent process to a job type
func (e *Executor) RegisterGlobal(jobType JobType, run Runner) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.global[jobType] = run
}

// Supports reports whether a process is registered for the job type
func (e *Executor) Supports(jobType JobType) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.perConn[jobType]
	if !ok {
		_, ok = e.global[jobType]
	}
	return ok
}

// Execute runs the job. Failures of one connection are recorded on the job
// and do not stop the remaining connections.
func (e *Executor) Execute(ctx context.Context, job *Job) error {
	e.mu.RLock()
	run, perConn := e.perConn[job.Type]
	global, isGlobal := e.global[job.Type]
	e.mu.RUnlock()

	ctx, log := logger.WithRunID(ctx, e.logger, job.ID.String())
	ctx, span := telemetry.StartSpan(ctx, "scheduler.job",
		attribute.String("job.type", string(job.Type)),
		attribute.String("job.id", job.ID.String()),
	)

	var err error
	switch {
	case perConn:
		err = e.executeConnections(ctx, log, job, run)
	case isGlobal:
		e.executeGlobal(ctx, log, job, global)
	default:
		err = fmt.Errorf("%w: %s", ErrInvalidJobType, job.Type)
	}
	telemetry.EndSpan(span, err)
	return err
}

func (e *Executor) executeGlobal(ctx context.Context, log *zap.Logger, job *Job, run Runner) {
	start := time.Now()
	var summary string
	var err error
	telemetry.WithProfilingLabels(ctx, telemetry.SyncOperationLabels(string(job.Type), 0), func(ctx context.Context) {
		summary, err = run(ctx)
	})
	r := ConnectionRun{Outcome: OutcomeSuccess, Summary: summary, Duration: time.Since(start)}
	if err != nil {
		r.Outcome = OutcomeFailed
		r.Error = err.Error()
		log.Error("Job failed", zap.String("job_type", string(job.Type)), zap.Error(err))
	}
	job.AddRun(r)
	e.record(ctx, 0, job.Type, r)
}

func (e *Executor) executeConnections(ctx context.Context, log *zap.Logger, job *Job, run ConnectionRunner) error {
	conns, err := e.targets(ctx, job)
	if err != nil {
		return err
	}
	if len(conns) == 0 {
		log.Info("No active connections", zap.String("job_type", string(job.Type)))
		return nil
	}

	for i := range conns {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn := &conns[i]
		connCtx, connLog := logger.WithConnectionID(ctx, log, conn.ID)

		start := time.Now()
		var summary string
		telemetry.WithProfilingLabels(connCtx, telemetry.SyncOperationLabels(string(job.Type), conn.ID), func(ctx context.Context) {
			summary, err = run(ctx, conn)
		})
		r := ConnectionRun{
			ConnectionID: conn.ID,
			Outcome:      OutcomeSuccess,
			Summary:      summary,
			Duration:     time.Since(start),
		}
		switch {
		case err == nil:
		case errors.Is(err, catalog.ErrNoProductsToExport):
			r.Outcome = OutcomeEmpty
			r.Summary = err.Error()
			connLog.Info("Nothing to export", zap.String("job_type", string(job.Type)))
		default:
			r.Outcome = OutcomeFailed
			r.Error = err.Error()
			connLog.Error("Job failed for connection",
				zap.String("job_type", string(job.Type)),
				zap.Error(err))
		}
		job.AddRun(r)
		e.record(connCtx, conn.ID, job.Type, r)
	}
	return nil
}

// targets returns the job's single connection, or all active connections
func (e *Executor) targets(ctx context.Context, job *Job) ([]connection.Connection, error) {
	if job.ConnectionID == nil {
		conns, err := e.connections.FindActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("load active connections: %w", err)
		}
		return conns, nil
	}
	conn, err := e.connections.FindByID(ctx, *job.ConnectionID)
	if err != nil {
		return nil, fmt.Errorf("load connection %d: %w", *job.ConnectionID, err)
	}
	return []connection.Connection{*conn}, nil
}

func (e *Executor) record(ctx context.Context, connectionID int64, jobType JobType, r ConnectionRun) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordJobRun(ctx, connectionID, string(jobType), r.Outcome, r.Duration)
}
