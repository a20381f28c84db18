// Package services contains the job orchestration core: the job state
// machine, the background task runner and the facade tying them to the
// source registry and persistence gateway.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/petterhj/yt-dvr/store"
	"github.com/petterhj/yt-dvr/types"
)

// Broadcaster is the sink for job-state and progress events. Publishing
// is best-effort and must never block the caller.
type Broadcaster interface {
	Publish(event string, data any)
}

// Jobs is the job state machine. Its transition methods are the only
// producers of lifecycle timestamps: each one validates the job's
// current derived status, stamps the next timestamp and persists the
// result. Jobs in a terminal status accept no transition. The caller's
// snapshot is checked first for a precise error, but the persisted row
// is the authority: the store write is conditional on the job still
// being in the expected status, so a stale snapshot cannot rewind a
// job another goroutine already advanced.
type Jobs struct {
	store store.Store
	log   *log.Logger
	now   func() time.Time
}

// NewJobs creates the job state machine service.
func NewJobs(st store.Store, logger *log.Logger) *Jobs {
	return &Jobs{
		store: st,
		log:   logger.With("component", "jobs"),
		now:   time.Now,
	}
}

// Create inserts a NEW job for the item. It fails with
// types.ErrActiveJobExists when the item already has a non-terminal job.
// The check is a read followed by an insert and is not atomic against
// concurrent creators; see DESIGN.md.
func (s *Jobs) Create(ctx context.Context, item types.Item) (types.Job, error) {
	existing, err := s.store.JobsForItem(ctx, item.ID)
	if err != nil {
		return types.Job{}, err
	}
	for _, job := range existing {
		if !job.Status().Terminal() {
			return types.Job{}, fmt.Errorf("%w: %s (#%s)", types.ErrActiveJobExists, item, job.ID)
		}
	}

	job := types.Job{
		ID:        uuid.New().String(),
		ItemID:    item.ID,
		CreatedAt: s.now(),
	}
	if err := s.store.InsertJob(ctx, job); err != nil {
		return types.Job{}, err
	}

	s.log.Info("job created", "job", job.ID, "item", item.String())
	return job, nil
}

// Enqueue moves a NEW job to QUEUED. Calling it on a job in any other
// status is a caller error.
func (s *Jobs) Enqueue(ctx context.Context, job types.Job) (types.Job, error) {
	if err := s.require(job, types.JobStatusNew, "enqueue"); err != nil {
		return types.Job{}, err
	}

	now := s.now()
	job.QueuedAt = &now
	if err := s.store.UpdateJob(ctx, job, types.JobStatusNew); err != nil {
		return types.Job{}, err
	}
	return job, nil
}

// Start moves a QUEUED job to STARTED.
func (s *Jobs) Start(ctx context.Context, job types.Job) (types.Job, error) {
	if err := s.require(job, types.JobStatusQueued, "start"); err != nil {
		return types.Job{}, err
	}

	now := s.now()
	job.StartedAt = &now
	if err := s.store.UpdateJob(ctx, job, types.JobStatusQueued); err != nil {
		return types.Job{}, err
	}

	s.log.Info("job started", "job", job.ID)
	return job, nil
}

// Complete moves a STARTED job to DOWNLOADED. An empty result is stored
// as null.
func (s *Jobs) Complete(ctx context.Context, job types.Job, result string) (types.Job, error) {
	if err := s.require(job, types.JobStatusStarted, "complete"); err != nil {
		return types.Job{}, err
	}

	now := s.now()
	job.DownloadedAt = &now
	job.Result = nullable(result)
	if err := s.store.UpdateJob(ctx, job, types.JobStatusStarted); err != nil {
		return types.Job{}, err
	}

	s.log.Info("job downloaded", "job", job.ID)
	return job, nil
}

// Fail moves a STARTED job to FAILED, recording the failure description.
func (s *Jobs) Fail(ctx context.Context, job types.Job, result string) (types.Job, error) {
	if err := s.require(job, types.JobStatusStarted, "fail"); err != nil {
		return types.Job{}, err
	}

	now := s.now()
	job.FailedAt = &now
	job.Result = nullable(result)
	if err := s.store.UpdateJob(ctx, job, types.JobStatusStarted); err != nil {
		return types.Job{}, err
	}

	s.log.Error("job failed", "job", job.ID, "result", result)
	return job, nil
}

// require rejects transitions whose snapshot is already in the wrong
// status. Snapshots that look right but are stale fail later at the
// store's conditional write.
func (s *Jobs) require(job types.Job, status types.JobStatus, op string) error {
	if current := job.Status(); current != status {
		return fmt.Errorf("%w: cannot %s job %s in status %s",
			types.ErrInvalidTransition, op, job.ID, current)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
