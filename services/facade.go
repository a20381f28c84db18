package services

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/petterhj/yt-dvr/sources"
	"github.com/petterhj/yt-dvr/store"
	"github.com/petterhj/yt-dvr/types"
)

// Recorder is the orchestration facade: the entry points the HTTP layer
// calls to register items, retry downloads and dispatch queued work.
type Recorder struct {
	store    store.Store
	registry *sources.Registry
	jobs     *Jobs
	runner   *Runner
	hub      Broadcaster
	log      *log.Logger
}

// NewRecorder wires up the orchestration facade.
func NewRecorder(st store.Store, registry *sources.Registry, jobs *Jobs, runner *Runner, hub Broadcaster, logger *log.Logger) *Recorder {
	return &Recorder{
		store:    st,
		registry: registry,
		jobs:     jobs,
		runner:   runner,
		hub:      hub,
		log:      logger.With("component", "recorder"),
	}
}

// AddItem resolves an item through its source, stores it and creates its
// first job. Duplicate (source, item_id) pairs surface as
// types.ErrDuplicateItem.
func (r *Recorder) AddItem(ctx context.Context, source, itemID string) (types.ItemWithJobs, error) {
	src, err := r.registry.Lookup(source)
	if err != nil {
		return types.ItemWithJobs{}, err
	}

	item, err := src.Resolve(ctx, itemID)
	if err != nil {
		return types.ItemWithJobs{}, err
	}
	item.ID = uuid.New().String()

	stored, err := r.store.InsertItem(ctx, item)
	if err != nil {
		return types.ItemWithJobs{}, err
	}
	r.log.Info("item added", "item", stored.String())

	job, err := r.jobs.Create(ctx, stored)
	if err != nil {
		return types.ItemWithJobs{}, err
	}

	return types.ItemWithJobs{Item: stored, Jobs: []types.Job{job}}, nil
}

// RetryItem creates a fresh job for an already-stored item. It fails
// with types.ErrActiveJobExists while a non-terminal job is present.
func (r *Recorder) RetryItem(ctx context.Context, source, itemID string) (types.Job, error) {
	item, err := r.store.QueryItem(ctx, source, itemID)
	if err != nil {
		return types.Job{}, err
	}
	return r.jobs.Create(ctx, item)
}

// DispatchQueue enqueues every NEW job and hands it to the task runner.
// It returns the jobs it dispatched; execution continues in the
// background.
func (r *Recorder) DispatchQueue(ctx context.Context) ([]types.JobWithItem, error) {
	pending, err := r.store.QueryJobs(ctx, types.JobStatusNew)
	if err != nil {
		return nil, err
	}

	if len(pending) == 0 {
		r.log.Info("no new items to process")
		return []types.JobWithItem{}, nil
	}
	r.log.Info("dispatching new jobs", "count", len(pending))

	dispatched := make([]types.JobWithItem, 0, len(pending))
	for _, jw := range pending {
		r.log.Info("enqueuing", "job", jw.Job.ID, "item", jw.Item.String())

		job, err := r.jobs.Enqueue(ctx, jw.Job)
		if err != nil {
			return dispatched, err
		}
		jw.Job = job

		r.hub.Publish(types.EventProgressUpdate, types.ProgressUpdate{Job: jw})
		r.runner.Submit(jw)
		dispatched = append(dispatched, jw)
	}

	return dispatched, nil
}

// Catalog lists the items a source currently offers, e.g. the contents
// of its watched playlist.
func (r *Recorder) Catalog(ctx context.Context, source string) ([]types.Item, error) {
	src, err := r.registry.Lookup(source)
	if err != nil {
		return nil, err
	}
	return src.Catalog(ctx)
}

// ListJobs returns jobs with their items, optionally filtered by status.
func (r *Recorder) ListJobs(ctx context.Context, status types.JobStatus) ([]types.JobWithItem, error) {
	return r.store.QueryJobs(ctx, status)
}

// ListItems returns items with their job history, optionally filtered by
// source.
func (r *Recorder) ListItems(ctx context.Context, source string) ([]types.ItemWithJobs, error) {
	return r.store.ListItems(ctx, source)
}

// GetItem returns a single item with its job history.
func (r *Recorder) GetItem(ctx context.Context, source, itemID string) (types.ItemWithJobs, error) {
	item, err := r.store.QueryItem(ctx, source, itemID)
	if err != nil {
		return types.ItemWithJobs{}, err
	}
	jobs, err := r.store.JobsForItem(ctx, item.ID)
	if err != nil {
		return types.ItemWithJobs{}, err
	}
	return types.ItemWithJobs{Item: item, Jobs: jobs}, nil
}

// DeleteItem retires an item, cascading deletion to its jobs.
func (r *Recorder) DeleteItem(ctx context.Context, source, itemID string) error {
	item, err := r.store.QueryItem(ctx, source, itemID)
	if err != nil {
		return err
	}
	r.log.Info("deleting item", "item", item.String())
	return r.store.DeleteItem(ctx, item.ID)
}

// JobCounts summarizes the job table for the diagnostics endpoint.
type JobCounts struct {
	Total      int `json:"total_count"`
	New        int `json:"new_count"`
	Queued     int `json:"queued_count"`
	Started    int `json:"started_count"`
	Downloaded int `json:"downloaded_count"`
	Failed     int `json:"failed_count"`
}

// State counts jobs per derived status.
func (r *Recorder) State(ctx context.Context) (JobCounts, error) {
	var counts JobCounts
	var err error

	if counts.Total, err = r.store.CountJobs(ctx, ""); err != nil {
		return counts, err
	}
	if counts.New, err = r.store.CountJobs(ctx, types.JobStatusNew); err != nil {
		return counts, err
	}
	if counts.Queued, err = r.store.CountJobs(ctx, types.JobStatusQueued); err != nil {
		return counts, err
	}
	if counts.Started, err = r.store.CountJobs(ctx, types.JobStatusStarted); err != nil {
		return counts, err
	}
	if counts.Downloaded, err = r.store.CountJobs(ctx, types.JobStatusDownloaded); err != nil {
		return counts, err
	}
	if counts.Failed, err = r.store.CountJobs(ctx, types.JobStatusFailed); err != nil {
		return counts, err
	}

	return counts, nil
}
