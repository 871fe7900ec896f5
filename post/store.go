package post

import (
	"database/sql"
	"time"

	"github.com/publora/publora/errors"
)

// Store handles persistence of scheduled posts. It is the single source of
// truth; the scheduler loop is the only writer of status/retry fields while
// a post is in flight.
type Store struct {
	db *sql.DB
}

// NewStore creates a new post store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const postColumns = `id, artifact_path, metadata, platforms, scheduled_at,
	status, error_message, retry_count, created_at, processed_at, updated_at`

// Create inserts a new scheduled post
func (s *Store) Create(p *ScheduledPost) error {
	query := `
		INSERT INTO scheduled_posts (
			id, artifact_path, metadata, platforms, scheduled_at,
			status, error_message, retry_count,
			created_at, processed_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var metadata interface{}
	if len(p.Metadata) > 0 {
		metadata = string(p.Metadata)
	}

	var processedAt interface{}
	if p.ProcessedAt != nil {
		processedAt = p.ProcessedAt.UTC().Format(time.RFC3339)
	}

	_, err := s.db.Exec(query,
		p.ID,
		p.ArtifactPath,
		metadata,
		p.PlatformsString(),
		p.ScheduledAt.UTC().Format(time.RFC3339),
		p.Status,
		p.ErrorMessage,
		p.RetryCount,
		p.CreatedAt.UTC().Format(time.RFC3339),
		processedAt,
		p.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create scheduled post")
	}

	return nil
}

// Get retrieves a scheduled post by ID
func (s *Store) Get(id string) (*ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts WHERE id = ?`

	p, err := scanPost(s.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("scheduled post not found: %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get scheduled post %s", id)
	}

	return p, nil
}

// ListOptions filters List results
type ListOptions struct {
	Status           *Status
	PlatformContains string
	Limit            int
	Offset           int
}

// List returns posts matching the options, newest scheduled first
func (s *Store) List(opts ListOptions) ([]*ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts WHERE 1=1`
	var args []interface{}

	if opts.Status != nil {
		query += ` AND status = ?`
		args = append(args, *opts.Status)
	}
	if opts.PlatformContains != "" {
		query += ` AND platforms LIKE ?`
		args = append(args, "%"+opts.PlatformContains+"%")
	}

	query += ` ORDER BY scheduled_at DESC`

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, opts.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list scheduled posts")
	}
	defer rows.Close()

	return scanPosts(rows)
}

// GetDue returns pending posts whose scheduled time has arrived and is still
// within the grace window, ordered oldest first. Posts older than the grace
// window are deliberately excluded; the loop's lateness check fails them
// explicitly when they are next examined instead of resurrecting them.
func (s *Store) GetDue(now time.Time, grace time.Duration) ([]*ScheduledPost, error) {
	query := `
		SELECT ` + postColumns + `
		FROM scheduled_posts
		WHERE status = ?
		  AND scheduled_at <= ?
		  AND scheduled_at >= ?
		ORDER BY scheduled_at ASC
		LIMIT 100
	`

	rows, err := s.db.Query(query,
		StatusPending,
		now.UTC().Format(time.RFC3339),
		now.Add(-grace).UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query due posts")
	}
	defer rows.Close()

	return scanPosts(rows)
}

// UpdateStatus sets a post's status, error message, and optionally its
// processed time, incrementing the retry counter when requested.
func (s *Store) UpdateStatus(id string, status Status, errMsg string, processedAt *time.Time, incrementRetry bool) error {
	query := `
		UPDATE scheduled_posts
		SET status = ?,
		    error_message = ?,
		    processed_at = COALESCE(?, processed_at),
		    retry_count = retry_count + ?,
		    updated_at = ?
		WHERE id = ?
	`

	var processed interface{}
	if processedAt != nil {
		processed = processedAt.UTC().Format(time.RFC3339)
	}

	increment := 0
	if incrementRetry {
		increment = 1
	}

	result, err := s.db.Exec(query,
		status,
		errMsg,
		processed,
		increment,
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to update status for post %s", id)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.NewNotFoundError("scheduled post not found: %s", id)
	}

	return nil
}

// ClaimProcessing moves a post from pending to processing. The conditional
// update means a post claimed (or cancelled) elsewhere is never dispatched
// twice: the caller must skip the post when claimed is false.
func (s *Store) ClaimProcessing(id string) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := s.db.Exec(query,
		StatusProcessing,
		time.Now().UTC().Format(time.RFC3339),
		id,
		StatusPending,
	)
	if err != nil {
		return false, errors.Wrapf(err, "failed to claim post %s", id)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to get rows affected")
	}

	return rows == 1, nil
}

// ResetForRetry moves a processing post back to pending after a retryable
// failure: retry count goes up by one and the scheduled time resets to now so
// the post is due again on the next poll cycle.
func (s *Store) ResetForRetry(id string, now time.Time, errMsg string) error {
	query := `
		UPDATE scheduled_posts
		SET status = ?,
		    scheduled_at = ?,
		    error_message = ?,
		    retry_count = retry_count + 1,
		    updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := s.db.Exec(query,
		StatusPending,
		now.UTC().Format(time.RFC3339),
		errMsg,
		now.UTC().Format(time.RFC3339),
		id,
		StatusProcessing,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to reset post %s for retry", id)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.NewInvalidStateError("post %s is not processing", id)
	}

	return nil
}

// Reschedule changes a pending post's scheduled time. Posts in any other
// state cannot be rescheduled.
func (s *Store) Reschedule(id string, newTime time.Time) error {
	query := `
		UPDATE scheduled_posts
		SET scheduled_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := s.db.Exec(query,
		newTime.UTC().Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
		id,
		StatusPending,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to reschedule post %s", id)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return s.explainConditionalMiss(id, "reschedule")
	}

	return nil
}

// Cancel marks a pending post cancelled. Cancellation is only meaningful
// while pending; processing and terminal posts are rejected.
func (s *Store) Cancel(id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		UPDATE scheduled_posts
		SET status = ?, processed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := s.db.Exec(query, StatusCancelled, now, now, id, StatusPending)
	if err != nil {
		return errors.Wrapf(err, "failed to cancel post %s", id)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return s.explainConditionalMiss(id, "cancel")
	}

	return nil
}

// explainConditionalMiss distinguishes "no such post" from "wrong state"
// after a conditional update touched zero rows.
func (s *Store) explainConditionalMiss(id, op string) error {
	existing, err := s.Get(id)
	if err != nil {
		return err
	}
	return errors.NewInvalidStateError("cannot %s post %s in status %s", op, id, existing.Status)
}

// ReleaseStuckProcessing returns posts left in processing (e.g. by a crash
// mid-dispatch) to pending without touching their retry count. Called once
// at loop startup.
func (s *Store) ReleaseStuckProcessing(now time.Time) (int, error) {
	query := `
		UPDATE scheduled_posts
		SET status = ?, scheduled_at = ?, updated_at = ?
		WHERE status = ?
	`

	result, err := s.db.Exec(query,
		StatusPending,
		now.UTC().Format(time.RFC3339),
		now.UTC().Format(time.RFC3339),
		StatusProcessing,
	)
	if err != nil {
		return 0, errors.Wrap(err, "failed to release stuck posts")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}

	return int(rows), nil
}

// ScheduledTimes returns the publish times already claimed for a platform by
// posts that are still going to publish (pending or processing). This is the
// slot occupancy view used by the allocator.
func (s *Store) ScheduledTimes(platform string) ([]time.Time, error) {
	query := `
		SELECT scheduled_at
		FROM scheduled_posts
		WHERE status IN (?, ?)
		  AND (',' || platforms || ',') LIKE ?
	`

	rows, err := s.db.Query(query, StatusPending, StatusProcessing, "%,"+platform+",%")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query slot occupancy for %s", platform)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, errors.Wrap(err, "failed to scan scheduled time")
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse scheduled_at %q", raw)
		}
		times = append(times, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating slot occupancy")
	}

	return times, nil
}

// CountByStatus returns the number of posts in each status
func (s *Store) CountByStatus() (map[Status]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM scheduled_posts GROUP BY status`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count posts by status")
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, errors.Wrap(err, "failed to scan status count")
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating status counts")
	}

	return counts, nil
}

// Upcoming returns the next n pending posts by scheduled time
func (s *Store) Upcoming(n int) ([]*ScheduledPost, error) {
	query := `
		SELECT ` + postColumns + `
		FROM scheduled_posts
		WHERE status = ?
		ORDER BY scheduled_at ASC
		LIMIT ?
	`

	rows, err := s.db.Query(query, StatusPending, n)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query upcoming posts")
	}
	defer rows.Close()

	return scanPosts(rows)
}

// Recent returns the n most recently processed posts
func (s *Store) Recent(n int) ([]*ScheduledPost, error) {
	query := `
		SELECT ` + postColumns + `
		FROM scheduled_posts
		WHERE processed_at IS NOT NULL
		ORDER BY processed_at DESC
		LIMIT ?
	`

	rows, err := s.db.Query(query, n)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query recent posts")
	}
	defer rows.Close()

	return scanPosts(rows)
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(row rowScanner) (*ScheduledPost, error) {
	var p ScheduledPost
	var metadata, processedAt sql.NullString
	var platforms, scheduledAt, createdAt, updatedAt string

	err := row.Scan(
		&p.ID,
		&p.ArtifactPath,
		&metadata,
		&platforms,
		&scheduledAt,
		&p.Status,
		&p.ErrorMessage,
		&p.RetryCount,
		&createdAt,
		&processedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if metadata.Valid {
		p.Metadata = []byte(metadata.String)
	}
	p.Platforms = SplitPlatforms(platforms)

	// Parse timestamps (an error here indicates data corruption or schema mismatch)
	if p.ScheduledAt, err = time.Parse(time.RFC3339, scheduledAt); err != nil {
		return nil, errors.Wrapf(err, "failed to parse scheduled_at for post %s", p.ID)
	}
	if p.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, errors.Wrapf(err, "failed to parse created_at for post %s", p.ID)
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, errors.Wrapf(err, "failed to parse updated_at for post %s", p.ID)
	}
	if processedAt.Valid {
		t, err := time.Parse(time.RFC3339, processedAt.String)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse processed_at for post %s", p.ID)
		}
		p.ProcessedAt = &t
	}

	return &p, nil
}

func scanPosts(rows *sql.Rows) ([]*ScheduledPost, error) {
	var posts []*ScheduledPost
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan scheduled post")
		}
		posts = append(posts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating scheduled posts")
	}

	return posts, nil
}
