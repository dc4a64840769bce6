package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketsync/backend/internal/infrastructure/config"
)

type recordingSubmitter struct {
	mu   sync.Mutex
	jobs []JobType
	err  error
}

func (r *recordingSubmitter) Submit(jobType JobType, connectionID *int64, trigger Trigger) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.jobs = append(r.jobs, jobType)
	return NewJob(jobType, connectionID, trigger), nil
}

func (r *recordingSubmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

func TestSchedules(t *testing.T) {
	schedules := Schedules(config.SchedulerConfig{
		CatalogExportCron: "0 3 * * *",
		QueuedOfferCron:   "@every 5m",
	})
	assert.Equal(t, "0 3 * * *", schedules[JobTypeCatalogExport])
	assert.Equal(t, "@every 5m", schedules[JobTypeQueuedOfferExport])
	assert.Empty(t, schedules[JobTypeOrderImport])
	assert.Len(t, schedules, len(AllJobTypes()))
}

func TestCronTrigger_Schedule(t *testing.T) {
	trigger := NewCronTrigger(&recordingSubmitter{}, nil)

	assert.NoError(t, trigger.Schedule(JobTypeOrderImport, ""))
	assert.Empty(t, trigger.entries)

	require.NoError(t, trigger.Schedule(JobTypeOrderImport, "*/15 * * * *"))
	assert.ErrorIs(t, trigger.Schedule(JobTypeOrderImport, "@hourly"), ErrInvalidCronSpec)
	assert.ErrorIs(t, trigger.Schedule(JobTypeCatalogExport, "not a cron"), ErrInvalidCronSpec)

	err := trigger.ScheduleAll(map[JobType]string{
		JobTypeShipmentExport: "@every 10m",
		JobTypeCatalogExport:  "0 2 * * *",
	})
	require.NoError(t, err)
	assert.Len(t, trigger.entries, 3)
}

func TestCronTrigger_FiresSubmissions(t *testing.T) {
	sub := &recordingSubmitter{}
	trigger := NewCronTrigger(sub, nil)
	require.NoError(t, trigger.Schedule(JobTypeQueuedOfferExport, "@every 1s"))

	trigger.Start()
	require.Eventually(t, func() bool { return sub.count() > 0 }, 3*time.Second, 50*time.Millisecond)
	require.NoError(t, trigger.Stop(context.Background()))

	sub.mu.Lock()
	defer sub.mu.Unlock()
	assert.Equal(t, JobTypeQueuedOfferExport, sub.jobs[0])
}

func TestCronTrigger_FireToleratesSubmitErrors(t *testing.T) {
	trigger := NewCronTrigger(&recordingSubmitter{err: ErrJobAlreadyQueued}, nil)
	assert.NotPanics(t, func() { trigger.fire(JobTypeOrderImport) })

	trigger = NewCronTrigger(&recordingSubmitter{err: ErrJobQueueFull}, nil)
	assert.NotPanics(t, func() { trigger.fire(JobTypeOrderImport) })
}
