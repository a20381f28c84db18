package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/petterhj/yt-dvr/sources"
	"github.com/petterhj/yt-dvr/types"
)

// queueCapacity bounds how many queued jobs may sit between Submit and
// the workers before Submit blocks.
const queueCapacity = 100

// Runner executes download units off the request path. Each submitted
// job is driven from QUEUED through STARTED to a terminal state by one
// of a fixed pool of workers. Every execution attempt reaches a terminal
// transition: a fault or panic inside a download unit resolves to a
// failed job, never to a job stuck in STARTED.
type Runner struct {
	jobs     *Jobs
	registry *sources.Registry
	hub      Broadcaster
	log      *log.Logger

	queue   chan types.JobWithItem
	workers int
	wg      sync.WaitGroup
}

// NewRunner creates a task runner with the given worker count.
func NewRunner(jobs *Jobs, registry *sources.Registry, hub Broadcaster, logger *log.Logger, workers int) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		jobs:     jobs,
		registry: registry,
		hub:      hub,
		log:      logger.With("component", "runner"),
		queue:    make(chan types.JobWithItem, queueCapacity),
		workers:  workers,
	}
}

// Start launches the worker pool.
func (r *Runner) Start() {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
}

// Submit hands a queued job to the worker pool. It blocks only when the
// submission queue is full.
func (r *Runner) Submit(job types.JobWithItem) {
	r.queue <- job
}

// Close stops accepting submissions. Workers drain the remaining queue
// and exit.
func (r *Runner) Close() {
	close(r.queue)
}

// Wait blocks until all workers have exited. Call Close first.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for job := range r.queue {
		r.process(context.Background(), job)
	}
}

func (r *Runner) process(ctx context.Context, jw types.JobWithItem) {
	job, err := r.jobs.Start(ctx, jw.Job)
	if err != nil {
		// A second start on the same job lands here; the state machine
		// guard keeps the job owned by whoever started it first.
		r.log.Error("could not start job", "job", jw.Job.ID, "err", err)
		return
	}
	jw.Job = job
	r.publishUpdate(jw, nil)

	result, err := r.execute(ctx, jw)
	r.finish(ctx, jw, result, err)
}

// execute runs the job's download unit, converting panics into errors so
// the job always reaches a terminal transition.
func (r *Runner) execute(ctx context.Context, jw types.JobWithItem) (result string, err error) {
	src, err := r.registry.Lookup(jw.Item.Source)
	if err != nil {
		return "", err
	}

	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("download unit panicked: %v", v)
		}
	}()

	unit := src.DownloadUnit(jw)
	return unit.Run(ctx, func(tick types.JobProgress) {
		r.publishUpdate(jw, &tick)
	})
}

func (r *Runner) finish(ctx context.Context, jw types.JobWithItem, result string, execErr error) {
	var (
		job types.Job
		err error
	)
	if execErr != nil {
		job, err = r.jobs.Fail(ctx, jw.Job, execErr.Error())
	} else {
		job, err = r.jobs.Complete(ctx, jw.Job, result)
	}
	if err != nil {
		r.log.Error("could not finish job", "job", jw.Job.ID, "err", err)
		return
	}

	jw.Job = job
	r.publishUpdate(jw, nil)
}

func (r *Runner) publishUpdate(jw types.JobWithItem, tick *types.JobProgress) {
	r.hub.Publish(types.EventProgressUpdate, types.ProgressUpdate{
		Job:      jw,
		Progress: tick,
	})
}
