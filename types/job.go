package types

import (
	"encoding/json"
	"time"
)

// JobStatus represents the lifecycle state of a retrieval job.
type JobStatus string

const (
	JobStatusNew        JobStatus = "new"
	JobStatusQueued     JobStatus = "queued"
	JobStatusStarted    JobStatus = "started"
	JobStatusDownloaded JobStatus = "downloaded"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status accepts no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDownloaded || s == JobStatusFailed
}

// Job is one retrieval attempt for an Item. Its status is never stored:
// it is always derived from the lifecycle timestamps, which form a
// monotonic prefix (queued requires created, started requires queued,
// and exactly one of downloaded/failed may follow started).
type Job struct {
	ID           string
	ItemID       string
	CreatedAt    time.Time
	QueuedAt     *time.Time
	StartedAt    *time.Time
	DownloadedAt *time.Time
	FailedAt     *time.Time
	Result       *string
}

// Status classifies the job from its timestamps. The function is total:
// every timestamp combination maps to exactly one status.
func (j Job) Status() JobStatus {
	switch {
	case j.FailedAt != nil:
		return JobStatusFailed
	case j.DownloadedAt != nil:
		return JobStatusDownloaded
	case j.StartedAt != nil:
		return JobStatusStarted
	case j.QueuedAt != nil:
		return JobStatusQueued
	default:
		return JobStatusNew
	}
}

// jobJSON is the wire form of a Job, carrying the derived status.
type jobJSON struct {
	ID           string     `json:"id"`
	ItemID       string     `json:"item_id"`
	CreatedAt    time.Time  `json:"created_at"`
	QueuedAt     *time.Time `json:"queued_at"`
	StartedAt    *time.Time `json:"started_at"`
	DownloadedAt *time.Time `json:"downloaded_at"`
	FailedAt     *time.Time `json:"failed_at"`
	Result       *string    `json:"result"`
	Status       JobStatus  `json:"status"`
	Item         *Item      `json:"item,omitempty"`
}

func (j Job) wire() jobJSON {
	return jobJSON{
		ID:           j.ID,
		ItemID:       j.ItemID,
		CreatedAt:    j.CreatedAt,
		QueuedAt:     j.QueuedAt,
		StartedAt:    j.StartedAt,
		DownloadedAt: j.DownloadedAt,
		FailedAt:     j.FailedAt,
		Result:       j.Result,
		Status:       j.Status(),
	}
}

// MarshalJSON includes the derived status alongside the stored fields.
func (j Job) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.wire())
}

// JobWithItem is a Job joined with the Item it belongs to.
type JobWithItem struct {
	Job
	Item Item
}

// MarshalJSON nests the item inside the job record, matching the shape
// consumed by observers of the progress stream.
func (j JobWithItem) MarshalJSON() ([]byte, error) {
	w := j.Job.wire()
	item := j.Item
	w.Item = &item
	return json.Marshal(w)
}
