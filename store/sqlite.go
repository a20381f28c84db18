package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/petterhj/yt-dvr/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS item (
	id             TEXT PRIMARY KEY,
	source         TEXT NOT NULL,
	item_id        TEXT NOT NULL,
	title          TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	thumbnail      TEXT NOT NULL DEFAULT '',
	series_title   TEXT NOT NULL DEFAULT '',
	season_number  INTEGER NOT NULL DEFAULT 0,
	episode_number INTEGER NOT NULL DEFAULT 0,
	item_url       TEXT NOT NULL DEFAULT '',
	series_url     TEXT NOT NULL DEFAULT '',
	UNIQUE (source, item_id)
);

CREATE TABLE IF NOT EXISTS job (
	id            TEXT PRIMARY KEY,
	item_id       TEXT NOT NULL REFERENCES item (id) ON DELETE CASCADE,
	created_at    TIMESTAMP NOT NULL,
	queued_at     TIMESTAMP,
	started_at    TIMESTAMP,
	downloaded_at TIMESTAMP,
	failed_at     TIMESTAMP,
	result        TEXT
);

CREATE INDEX IF NOT EXISTS idx_job_item_id ON job (item_id);
`

// SQLiteStore implements Store on top of a SQLite database file.
// The path can be ":memory:" for tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if necessary creates) the database at path
// and bootstraps the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; one connection also keeps an
	// in-memory database alive across calls.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertItem stores a new item, surfacing types.ErrDuplicateItem when the
// (source, item_id) unique constraint is violated.
func (s *SQLiteStore) InsertItem(ctx context.Context, item types.Item) (types.Item, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO item (id, source, item_id, title, description, thumbnail,
			series_title, season_number, episode_number, item_url, series_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Source, item.ItemID, item.Title, item.Description,
		item.Thumbnail, item.SeriesTitle, item.SeasonNumber,
		item.EpisodeNumber, item.ItemURL, item.SeriesURL,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return types.Item{}, fmt.Errorf("%w: %s", types.ErrDuplicateItem, item)
		}
		return types.Item{}, fmt.Errorf("failed to insert item: %w", err)
	}
	return item, nil
}

// QueryItem looks up an item by its (source, item_id) identity.
func (s *SQLiteStore) QueryItem(ctx context.Context, source, itemID string) (types.Item, error) {
	row := s.db.QueryRowContext(ctx,
		selectItem+" WHERE source = ? AND item_id = ?", source, itemID)

	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Item{}, fmt.Errorf("%w: %s:%s", types.ErrItemNotFound, source, itemID)
	}
	if err != nil {
		return types.Item{}, fmt.Errorf("failed to query item: %w", err)
	}
	return item, nil
}

// ListItems returns items with their job history, optionally filtered by
// source. An empty source returns every item.
func (s *SQLiteStore) ListItems(ctx context.Context, source string) ([]types.ItemWithJobs, error) {
	query := selectItem
	var args []any
	if source != "" {
		query += " WHERE source = ?"
		args = append(args, source)
	}
	query += " ORDER BY source, item_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := []types.ItemWithJobs{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, types.ItemWithJobs{Item: item, Jobs: []types.Job{}})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	for i := range items {
		jobs, err := s.JobsForItem(ctx, items[i].ID)
		if err != nil {
			return nil, err
		}
		items[i].Jobs = jobs
	}
	return items, nil
}

// DeleteItem removes an item; the foreign key cascade removes its jobs.
func (s *SQLiteStore) DeleteItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM item WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", types.ErrItemNotFound, id)
	}
	return nil
}

// InsertJob stores a newly created job.
func (s *SQLiteStore) InsertJob(ctx context.Context, job types.Job) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job (id, item_id, created_at, queued_at, started_at,
			downloaded_at, failed_at, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.ItemID, job.CreatedAt, job.QueuedAt, job.StartedAt,
		job.DownloadedAt, job.FailedAt, job.Result,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

// UpdateJob persists a job's timestamps and result after a transition.
// The write is guarded by the from status: a stale caller whose job has
// already moved on matches no row and gets types.ErrInvalidTransition,
// so the persisted state is the authority, not the caller's snapshot.
func (s *SQLiteStore) UpdateJob(ctx context.Context, job types.Job, from types.JobStatus) error {
	query := `
		UPDATE job
		SET queued_at = ?, started_at = ?, downloaded_at = ?, failed_at = ?, result = ?
		WHERE id = ?`
	if pred := statusPredicate(from); pred != "" {
		query += " AND " + pred
	}

	res, err := s.db.ExecContext(ctx, query,
		job.QueuedAt, job.StartedAt, job.DownloadedAt, job.FailedAt,
		job.Result, job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		current, err := s.GetJob(ctx, job.ID)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: job %s is %s, not %s",
			types.ErrInvalidTransition, job.ID, current.Job.Status(), from)
	}
	return nil
}

// GetJob returns a job joined with its item.
func (s *SQLiteStore) GetJob(ctx context.Context, id string) (types.JobWithItem, error) {
	row := s.db.QueryRowContext(ctx, selectJobWithItem+" WHERE job.id = ?", id)

	jw, err := scanJobWithItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.JobWithItem{}, fmt.Errorf("%w: %s", types.ErrJobNotFound, id)
	}
	if err != nil {
		return types.JobWithItem{}, fmt.Errorf("failed to get job: %w", err)
	}
	return jw, nil
}

// QueryJobs returns jobs joined with their items, filtered by derived
// status when one is given.
func (s *SQLiteStore) QueryJobs(ctx context.Context, status types.JobStatus) ([]types.JobWithItem, error) {
	query := selectJobWithItem
	if pred := statusPredicate(status); pred != "" {
		query += " WHERE " + pred
	}
	query += " ORDER BY job.created_at"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	jobs := []types.JobWithItem{}
	for rows.Next() {
		jw, err := scanJobWithItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, jw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	return jobs, nil
}

// JobsForItem returns every job belonging to an item, oldest first.
func (s *SQLiteStore) JobsForItem(ctx context.Context, itemID string) ([]types.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		selectJob+" WHERE item_id = ? ORDER BY created_at", itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query item jobs: %w", err)
	}
	defer rows.Close()

	jobs := []types.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query item jobs: %w", err)
	}
	return jobs, nil
}

// CountJobs counts jobs matching the given derived status, or all jobs
// when the status is empty.
func (s *SQLiteStore) CountJobs(ctx context.Context, status types.JobStatus) (int, error) {
	query := "SELECT COUNT(*) FROM job"
	if pred := statusPredicate(status); pred != "" {
		query += " WHERE " + pred
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return count, nil
}

// statusPredicate translates a derived status into the timestamp NULL
// predicates that define it.
func statusPredicate(status types.JobStatus) string {
	switch status {
	case types.JobStatusNew:
		return "job.queued_at IS NULL AND job.started_at IS NULL AND job.downloaded_at IS NULL AND job.failed_at IS NULL"
	case types.JobStatusQueued:
		return "job.queued_at IS NOT NULL AND job.started_at IS NULL AND job.downloaded_at IS NULL AND job.failed_at IS NULL"
	case types.JobStatusStarted:
		return "job.started_at IS NOT NULL AND job.downloaded_at IS NULL AND job.failed_at IS NULL"
	case types.JobStatusDownloaded:
		return "job.downloaded_at IS NOT NULL AND job.failed_at IS NULL"
	case types.JobStatusFailed:
		return "job.failed_at IS NOT NULL"
	default:
		return ""
	}
}

const (
	selectItem = `SELECT id, source, item_id, title, description, thumbnail,
		series_title, season_number, episode_number, item_url, series_url
	FROM item`

	selectJob = `SELECT id, item_id, created_at, queued_at, started_at,
		downloaded_at, failed_at, result
	FROM job`

	selectJobWithItem = `SELECT
		job.id, job.item_id, job.created_at, job.queued_at, job.started_at,
		job.downloaded_at, job.failed_at, job.result,
		item.id, item.source, item.item_id, item.title, item.description,
		item.thumbnail, item.series_title, item.season_number,
		item.episode_number, item.item_url, item.series_url
	FROM job JOIN item ON item.id = job.item_id`
)

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (types.Item, error) {
	var item types.Item
	err := row.Scan(&item.ID, &item.Source, &item.ItemID, &item.Title,
		&item.Description, &item.Thumbnail, &item.SeriesTitle,
		&item.SeasonNumber, &item.EpisodeNumber, &item.ItemURL, &item.SeriesURL)
	return item, err
}

func scanJob(row scanner) (types.Job, error) {
	var (
		job                                 types.Job
		queued, started, downloaded, failed sql.NullTime
		result                              sql.NullString
	)
	err := row.Scan(&job.ID, &job.ItemID, &job.CreatedAt,
		&queued, &started, &downloaded, &failed, &result)
	if err != nil {
		return types.Job{}, err
	}
	applyNullables(&job, queued, started, downloaded, failed, result)
	return job, nil
}

func scanJobWithItem(row scanner) (types.JobWithItem, error) {
	var (
		jw                                  types.JobWithItem
		queued, started, downloaded, failed sql.NullTime
		result                              sql.NullString
	)
	err := row.Scan(&jw.Job.ID, &jw.Job.ItemID, &jw.Job.CreatedAt,
		&queued, &started, &downloaded, &failed, &result,
		&jw.Item.ID, &jw.Item.Source, &jw.Item.ItemID, &jw.Item.Title,
		&jw.Item.Description, &jw.Item.Thumbnail, &jw.Item.SeriesTitle,
		&jw.Item.SeasonNumber, &jw.Item.EpisodeNumber, &jw.Item.ItemURL,
		&jw.Item.SeriesURL)
	if err != nil {
		return types.JobWithItem{}, err
	}
	applyNullables(&jw.Job, queued, started, downloaded, failed, result)
	return jw, nil
}

func applyNullables(job *types.Job, queued, started, downloaded, failed sql.NullTime, result sql.NullString) {
	if queued.Valid {
		job.QueuedAt = &queued.Time
	}
	if started.Valid {
		job.StartedAt = &started.Time
	}
	if downloaded.Valid {
		job.DownloadedAt = &downloaded.Time
	}
	if failed.Valid {
		job.FailedAt = &failed.Time
	}
	if result.Valid {
		job.Result = &result.String
	}
}
