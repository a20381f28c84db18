// Package store is the persistence gateway for items and jobs, backed
// by SQLite. It enforces (source, item_id) uniqueness on items and
// translates job status filters into timestamp predicates.
package store

import (
	"context"

	"github.com/petterhj/yt-dvr/types"
)

// Store is the persistence contract consumed by the service layer.
// Implementations surface types.ErrDuplicateItem on unique-constraint
// violations and types.ErrItemNotFound / types.ErrJobNotFound on misses.
type Store interface {
	InsertItem(ctx context.Context, item types.Item) (types.Item, error)
	QueryItem(ctx context.Context, source, itemID string) (types.Item, error)
	ListItems(ctx context.Context, source string) ([]types.ItemWithJobs, error)
	// DeleteItem removes an item and, by cascade, all of its jobs.
	DeleteItem(ctx context.Context, id string) error

	InsertJob(ctx context.Context, job types.Job) error
	// UpdateJob writes the job's timestamps and result, conditional on
	// the persisted row still being in the from status. A row that moved
	// on surfaces types.ErrInvalidTransition.
	UpdateJob(ctx context.Context, job types.Job, from types.JobStatus) error
	GetJob(ctx context.Context, id string) (types.JobWithItem, error)
	// QueryJobs returns jobs joined with their items, optionally filtered
	// by derived status. An empty status returns every job.
	QueryJobs(ctx context.Context, status types.JobStatus) ([]types.JobWithItem, error)
	JobsForItem(ctx context.Context, itemID string) ([]types.Job, error)
	CountJobs(ctx context.Context, status types.JobStatus) (int, error)

	Close() error
}
