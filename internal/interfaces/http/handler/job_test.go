package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketsync/backend/internal/infrastructure/scheduler"
	"github.com/marketsync/backend/internal/interfaces/http/dto"
)

type fakeSubmitter struct {
	submitted []*scheduler.Job
	err       error
	history   []*scheduler.Job
	limit     int
}

func (f *fakeSubmitter) Submit(jobType scheduler.JobType, connectionID *int64, trigger scheduler.Trigger) (*scheduler.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	job := scheduler.NewJob(jobType, connectionID, trigger)
	f.submitted = append(f.submitted, job)
	return job, nil
}

func (f *fakeSubmitter) History(limit int) []*scheduler.Job {
	f.limit = limit
	return f.history
}

func TestJobHandler_RunForConnection(t *testing.T) {
	route := "/connections/:id/jobs/:type"

	t.Run("queues a manual job", func(t *testing.T) {
		jobs := &fakeSubmitter{}
		h := NewJobHandler(jobs, newMemoryConnections(validConnection(3)))

		w := serve(t, http.MethodPost, route, "/connections/3/jobs/order_import", nil, h.RunForConnection)
		require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

		require.Len(t, jobs.submitted, 1)
		job := jobs.submitted[0]
		assert.Equal(t, scheduler.JobTypeOrderImport, job.Type)
		assert.Equal(t, scheduler.TriggerManual, job.Trigger)
		require.NotNil(t, job.ConnectionID)
		assert.Equal(t, int64(3), *job.ConnectionID)

		resp := decodeData[JobResponse](t, w)
		assert.Equal(t, string(scheduler.JobStatusPending), resp.Status)
		assert.Equal(t, "order_import", resp.Type)
	})

	t.Run("unknown job type", func(t *testing.T) {
		h := NewJobHandler(&fakeSubmitter{}, newMemoryConnections(validConnection(3)))
		w := serve(t, http.MethodPost, route, "/connections/3/jobs/reindex", nil, h.RunForConnection)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidInput, errorCode(t, w))
	})

	t.Run("unknown connection", func(t *testing.T) {
		jobs := &fakeSubmitter{}
		h := NewJobHandler(jobs, newMemoryConnections())
		w := serve(t, http.MethodPost, route, "/connections/3/jobs/catalog_export", nil, h.RunForConnection)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Empty(t, jobs.submitted)
	})

	t.Run("job already queued", func(t *testing.T) {
		h := NewJobHandler(&fakeSubmitter{err: scheduler.ErrJobAlreadyQueued}, newMemoryConnections(validConnection(3)))
		w := serve(t, http.MethodPost, route, "/connections/3/jobs/catalog_export", nil, h.RunForConnection)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, dto.ErrCodeJobQueued, errorCode(t, w))
	})

	t.Run("queue full", func(t *testing.T) {
		h := NewJobHandler(&fakeSubmitter{err: scheduler.ErrJobQueueFull}, newMemoryConnections(validConnection(3)))
		w := serve(t, http.MethodPost, route, "/connections/3/jobs/catalog_export", nil, h.RunForConnection)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestJobHandler_Run(t *testing.T) {
	jobs := &fakeSubmitter{}
	h := NewJobHandler(jobs, newMemoryConnections())

	w := serve(t, http.MethodPost, "/jobs/:type", "/jobs/queued_offer_export", nil, h.Run)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, jobs.submitted, 1)
	assert.Nil(t, jobs.submitted[0].ConnectionID)
}

func TestJobHandler_List(t *testing.T) {
	id := int64(1)
	done := scheduler.NewJob(scheduler.JobTypeCatalogExport, &id, scheduler.TriggerCron)
	done.Start()
	done.AddRun(scheduler.ConnectionRun{ConnectionID: 1, Outcome: scheduler.OutcomeSuccess, Summary: "12 products"})
	done.Complete()

	jobs := &fakeSubmitter{history: []*scheduler.Job{done}}
	h := NewJobHandler(jobs, newMemoryConnections())

	w := serve(t, http.MethodGet, "/jobs", "/jobs?limit=5", nil, h.List)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, jobs.limit)

	list := decodeData[[]JobResponse](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, string(scheduler.JobStatusSuccess), list[0].Status)
	require.Len(t, list[0].Runs, 1)
	assert.Equal(t, "12 products", list[0].Runs[0].Summary)

	w = serve(t, http.MethodGet, "/jobs", "/jobs", nil, h.List)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 50, jobs.limit)

	w = serve(t, http.MethodGet, "/jobs", "/jobs?limit=-1", nil, h.List)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
