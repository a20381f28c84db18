package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petterhj/yt-dvr/sources"
	"github.com/petterhj/yt-dvr/types"
)

func TestRunnerCompletesJob(t *testing.T) {
	src := sources.NewFakeSource("demo")
	st := newTestStore(t)
	hub := &recordingHub{}
	jobs := NewJobs(st, testLogger())
	registry := sources.NewRegistry(map[string]sources.Source{"demo": src})
	runner := NewRunner(jobs, registry, hub, testLogger(), 1)
	runner.Start()

	jw := queuedJob(t, st, jobs, src, "1")

	runner.Submit(jw)
	runner.Close()
	runner.Wait()

	stored, err := st.GetJob(context.Background(), jw.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusDownloaded, stored.Job.Status())
	assert.Nil(t, stored.Job.Result)
}

func TestRunnerFailsJobOnError(t *testing.T) {
	src := sources.NewFakeSource("demo")
	src.Unit = func(types.JobWithItem) sources.DownloadUnit {
		return &sources.FakeUnit{Err: errors.New("network unreachable")}
	}

	st := newTestStore(t)
	jobs := NewJobs(st, testLogger())
	registry := sources.NewRegistry(map[string]sources.Source{"demo": src})
	runner := NewRunner(jobs, registry, &recordingHub{}, testLogger(), 1)
	runner.Start()

	jw := queuedJob(t, st, jobs, src, "1")

	runner.Submit(jw)
	runner.Close()
	runner.Wait()

	stored, err := st.GetJob(context.Background(), jw.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusFailed, stored.Job.Status())
	assert.Nil(t, stored.Job.DownloadedAt)
	require.NotNil(t, stored.Job.Result)
	assert.Contains(t, *stored.Job.Result, "network unreachable")
}

// TestRunnerRecoversPanic verifies the runner's safety guarantee: an
// unhandled fault in a download unit still resolves the job to FAILED.
func TestRunnerRecoversPanic(t *testing.T) {
	src := sources.NewFakeSource("demo")
	src.Unit = func(types.JobWithItem) sources.DownloadUnit {
		return &sources.FakeUnit{PanicMsg: "index out of range"}
	}

	st := newTestStore(t)
	jobs := NewJobs(st, testLogger())
	registry := sources.NewRegistry(map[string]sources.Source{"demo": src})
	runner := NewRunner(jobs, registry, &recordingHub{}, testLogger(), 1)
	runner.Start()

	jw := queuedJob(t, st, jobs, src, "1")

	runner.Submit(jw)
	runner.Close()
	runner.Wait()

	stored, err := st.GetJob(context.Background(), jw.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusFailed, stored.Job.Status())
	require.NotNil(t, stored.Job.Result)
	assert.Contains(t, *stored.Job.Result, "index out of range")
}

func TestRunnerFailsJobOnUnknownSource(t *testing.T) {
	src := sources.NewFakeSource("demo")

	st := newTestStore(t)
	jobs := NewJobs(st, testLogger())
	// Registry without the job's source.
	registry := sources.NewRegistry(nil)
	runner := NewRunner(jobs, registry, &recordingHub{}, testLogger(), 1)
	runner.Start()

	jw := queuedJob(t, st, jobs, src, "1")

	runner.Submit(jw)
	runner.Close()
	runner.Wait()

	stored, err := st.GetJob(context.Background(), jw.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusFailed, stored.Job.Status())
	require.NotNil(t, stored.Job.Result)
	assert.Contains(t, *stored.Job.Result, "unknown source")
}

// TestRunnerEventOrdering checks the broadcast contract for one job:
// start update, ticks in submission order, terminal update.
func TestRunnerEventOrdering(t *testing.T) {
	downloaded1, downloaded2, total := int64(10), int64(20), int64(20)

	src := sources.NewFakeSource("demo")
	src.Unit = func(types.JobWithItem) sources.DownloadUnit {
		return &sources.FakeUnit{
			Ticks: []types.JobProgress{
				{Message: "downloading", DownloadedBytes: &downloaded1, TotalBytes: &total},
				{Message: "downloading", DownloadedBytes: &downloaded2, TotalBytes: &total},
			},
		}
	}

	st := newTestStore(t)
	hub := &recordingHub{}
	jobs := NewJobs(st, testLogger())
	registry := sources.NewRegistry(map[string]sources.Source{"demo": src})
	runner := NewRunner(jobs, registry, hub, testLogger(), 1)
	runner.Start()

	jw := queuedJob(t, st, jobs, src, "1")

	runner.Submit(jw)
	runner.Close()
	runner.Wait()

	updates := hub.Updates()
	require.Len(t, updates, 4)

	assert.Equal(t, types.JobStatusStarted, updates[0].Job.Status())
	assert.Nil(t, updates[0].Progress)

	require.NotNil(t, updates[1].Progress)
	assert.Equal(t, downloaded1, *updates[1].Progress.DownloadedBytes)
	require.NotNil(t, updates[2].Progress)
	assert.Equal(t, downloaded2, *updates[2].Progress.DownloadedBytes)

	assert.Equal(t, types.JobStatusDownloaded, updates[3].Job.Status())
	assert.Nil(t, updates[3].Progress)

	for _, update := range updates {
		assert.Equal(t, jw.Job.ID, update.Job.Job.ID)
	}
}

func TestRunnerIgnoresDoubleSubmission(t *testing.T) {
	var executions atomic.Int32
	src := sources.NewFakeSource("demo")
	src.Unit = func(types.JobWithItem) sources.DownloadUnit {
		executions.Add(1)
		return &sources.FakeUnit{}
	}

	st := newTestStore(t)
	jobs := NewJobs(st, testLogger())
	registry := sources.NewRegistry(map[string]sources.Source{"demo": src})
	runner := NewRunner(jobs, registry, &recordingHub{}, testLogger(), 1)
	runner.Start()

	jw := queuedJob(t, st, jobs, src, "1")

	// The second submission finds the persisted job past QUEUED and the
	// start guard rejects it, so the unit runs exactly once.
	runner.Submit(jw)
	runner.Submit(jw)
	runner.Close()
	runner.Wait()

	stored, err := st.GetJob(context.Background(), jw.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusDownloaded, stored.Job.Status())
	assert.EqualValues(t, 1, executions.Load())
}
