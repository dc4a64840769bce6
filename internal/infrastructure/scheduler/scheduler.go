package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/infrastructure/config"
)

// JobExecutor is the interface for executing jobs
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) error
}

// Config holds scheduler configuration
type Config struct {
	Workers     int
	QueueSize   int
	JobTimeout  time.Duration
	HistorySize int
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		Workers:     2,
		QueueSize:   32,
		JobTimeout:  2 * time.Hour,
		HistorySize: 200,
	}
}

// ConfigFrom converts the application scheduler settings
func ConfigFrom(cfg config.SchedulerConfig) Config {
	return Config{
		Workers:     cfg.WorkerCount,
		QueueSize:   cfg.QueueSize,
		JobTimeout:  cfg.JobTimeout,
		HistorySize: cfg.HistorySize,
	}
}

// Validate validates the configuration
func (c Config) Validate() error {
	if c.Workers <= 0 || c.QueueSize <= 0 || c.JobTimeout <= 0 || c.HistorySize <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Scheduler runs submitted jobs on a fixed worker pool. A job type is
// queued at most once per connection at a time.
type Scheduler struct {
	config   Config
	executor JobExecutor
	logger   *zap.Logger

	jobs      chan *Job
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	inflight  map[string]*Job
	history   []*Job
}

// NewScheduler creates a new scheduler instance
func NewScheduler(cfg Config, executor JobExecutor, log *zap.Logger) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		config:   cfg,
		executor: executor,
		logger:   log,
		inflight: make(map[string]*Job),
	}, nil
}

// Start starts the worker pool
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true
	s.jobs = make(chan *Job, s.config.QueueSize)

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i, s.jobs)
	}

	s.logger.Info("Scheduler started",
		zap.Int("workers", s.config.Workers),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels running jobs and waits for the workers to exit
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	close(s.jobs)
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the worker pool is running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Submit queues a job of the given type. A nil connectionID runs the job
// for all active connections.
func (s *Scheduler) Submit(jobType JobType, connectionID *int64, trigger Trigger) (*Job, error) {
	job := NewJob(jobType, connectionID, trigger)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return nil, ErrSchedulerNotRunning
	}
	if _, ok := s.inflight[job.key()]; ok {
		return nil, ErrJobAlreadyQueued
	}

	snap := job.Snapshot()
	select {
	case s.jobs <- job:
	default:
		return nil, ErrJobQueueFull
	}
	s.inflight[job.key()] = job
	s.remember(job)

	s.logger.Debug("Job submitted",
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.Type)),
		zap.String("trigger", string(trigger)),
	)
	return snap, nil
}

// History returns up to limit of the most recent jobs, newest first. A
// limit of zero or less returns the whole retained history.
func (s *Scheduler) History(limit int) []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*Job, 0, n)
	for i := len(s.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.history[i].Snapshot())
	}
	return out
}

// remember appends to the bounded history; the caller holds s.mu
func (s *Scheduler) remember(job *Job) {
	s.history = append(s.history, job)
	if over := len(s.history) - s.config.HistorySize; over > 0 {
		s.history = append([]*Job(nil), s.history[over:]...)
	}
}

func (s *Scheduler) worker(ctx context.Context, workerID int, jobs <-chan *Job) {
	defer s.wg.Done()

	for job := range jobs {
		if ctx.Err() != nil {
			job.Fail(ctx.Err().Error())
			s.release(job)
			continue
		}
		s.processJob(ctx, job, workerID)
	}
}

// processJob executes a single job
func (s *Scheduler) processJob(ctx context.Context, job *Job, workerID int) {
	defer s.release(job)

	job.Start()
	s.logger.Info("Processing job",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.Type)),
	)

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	if err := s.executor.Execute(jobCtx, job); err != nil {
		job.Fail(err.Error())
		s.logger.Error("Job failed",
			zap.Int("worker_id", workerID),
			zap.String("job_id", job.ID.String()),
			zap.String("job_type", string(job.Type)),
			zap.Error(err),
		)
		return
	}

	job.Complete()
	snap := job.Snapshot()
	s.logger.Info("Job completed",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.Type)),
		zap.String("status", string(snap.Status)),
		zap.Int("runs", len(snap.Runs)),
	)
}

func (s *Scheduler) release(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[job.key()] == job {
		delete(s.inflight, job.key())
	}
}
