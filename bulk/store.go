package bulk

import (
	"database/sql"
	"time"

	"github.com/cardrail/cardrail/errors"
)

// Store handles persistence of bulk jobs and their items
type Store struct {
	db *sql.DB
}

// NewStore creates a new bulk job store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateJob inserts a job and its items in one transaction
func (s *Store) CreateJob(job *Job, items []*Item) error {
	if job.TotalItems != len(items) {
		return errors.Newf("job total_items (%d) does not match item count (%d)", job.TotalItems, len(items))
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO bulk_jobs (
			id, company_id, kind, status,
			total_items, processed_items,
			last_processed_at, reason,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		job.ID, job.CompanyID, job.Kind, job.Status,
		job.TotalItems, job.ProcessedItems,
		job.LastProcessedAt, nullString(job.Reason),
		job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create job")
	}

	stmt, err := tx.Prepare(`
		INSERT INTO bulk_job_items (
			id, job_id, company_id, card_id, seq, status, reason, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare item insert")
	}
	defer stmt.Close()

	for _, item := range items {
		_, err := stmt.Exec(
			item.ID, item.JobID, item.CompanyID, item.CardID, item.Seq,
			item.Status, nullString(item.Reason), item.CreatedAt, item.UpdatedAt,
		)
		if err != nil {
			return errors.Wrapf(err, "failed to create item for card %s", item.CardID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit job creation")
	}
	return nil
}

// GetJob retrieves a job by ID
func (s *Store) GetJob(id string) (*Job, error) {
	query := `SELECT ` + jobSelectColumns + ` FROM bulk_jobs WHERE id = ?`

	var job Job
	args := newJobScanArgs()
	err := s.db.QueryRow(query, id).Scan(jobScanTargets(&job, args)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("job %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get job")
	}
	applyJobScanArgs(&job, args)
	return &job, nil
}

// ListJobs returns jobs for a company, newest first, optionally filtered by kind
func (s *Store) ListJobs(companyID string, kind *KindName, limit int) ([]*Job, error) {
	query := `SELECT ` + jobSelectColumns + ` FROM bulk_jobs WHERE company_id = ?`
	queryArgs := []interface{}{companyID}
	if kind != nil {
		query += ` AND kind = ?`
		queryArgs = append(queryArgs, *kind)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	queryArgs = append(queryArgs, limit)

	rows, err := s.db.Query(query, queryArgs...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}
	defer rows.Close()

	return scanJobs(rows)
}

// ListItems returns the items of a job in batch order
func (s *Store) ListItems(jobID string) ([]*Item, error) {
	query := `SELECT ` + itemSelectColumns + `
		FROM bulk_job_items WHERE job_id = ? ORDER BY seq`

	rows, err := s.db.Query(query, jobID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list items")
	}
	defer rows.Close()

	return scanItems(rows)
}

// PendingItems returns up to limit pending items of a job in batch order
func (s *Store) PendingItems(jobID string, limit int) ([]*Item, error) {
	query := `SELECT ` + itemSelectColumns + `
		FROM bulk_job_items
		WHERE job_id = ? AND status = ?
		ORDER BY seq
		LIMIT ?`

	rows, err := s.db.Query(query, jobID, ItemStatusPending, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list pending items")
	}
	defer rows.Close()

	return scanItems(rows)
}

// NextEligible selects the oldest job of the given kind that is either
// pending or stuck: processing with a heartbeat older than stuckAfter.
// A crashed worker leaves its job processing with a stale heartbeat, and
// this double condition lets a later tick reclaim it.
// Returns nil when nothing is eligible.
func (s *Store) NextEligible(kind KindName, now time.Time, stuckAfter time.Duration) (*Job, error) {
	cutoff := now.Add(-stuckAfter)
	query := `SELECT ` + jobSelectColumns + `
		FROM bulk_jobs
		WHERE kind = ?
		  AND (status = ?
		       OR (status = ? AND last_processed_at IS NOT NULL AND last_processed_at < ?))
		ORDER BY created_at, id
		LIMIT 1`

	var job Job
	args := newJobScanArgs()
	err := s.db.QueryRow(query, kind, StatusPending, StatusProcessing, cutoff).
		Scan(jobScanTargets(&job, args)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Nothing to do this tick
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to select next eligible job")
	}
	applyJobScanArgs(&job, args)
	return &job, nil
}

// HasFreshProcessing reports whether any other job of the same company is
// processing with a heartbeat within stuckAfter. This is the per-company
// overlap guard: two concurrent bulk operations would race on the same cards.
func (s *Store) HasFreshProcessing(companyID, excludeJobID string, now time.Time, stuckAfter time.Duration) (bool, error) {
	cutoff := now.Add(-stuckAfter)
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(
			SELECT 1 FROM bulk_jobs
			WHERE company_id = ?
			  AND id != ?
			  AND status = ?
			  AND last_processed_at IS NOT NULL
			  AND last_processed_at >= ?
		)
	`, companyID, excludeJobID, StatusProcessing, cutoff).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check for overlapping job")
	}
	return exists, nil
}

// Claim atomically transitions a job to processing and stamps its heartbeat.
// The WHERE clause repeats the full eligibility condition, both the per-job
// part and the per-company overlap guard, so the read-then-write race of a
// naive claim cannot happen: whether two workers selected the same job or two
// different jobs of one company, at most one update matches and every loser
// reports false having mutated nothing.
func (s *Store) Claim(jobID string, now time.Time, stuckAfter time.Duration) (bool, error) {
	cutoff := now.Add(-stuckAfter)
	res, err := s.db.Exec(`
		UPDATE bulk_jobs
		SET status = ?, last_processed_at = ?, updated_at = ?
		WHERE id = ?
		  AND (status = ?
		       OR (status = ? AND last_processed_at IS NOT NULL AND last_processed_at < ?))
		  AND NOT EXISTS (
		      SELECT 1 FROM bulk_jobs other
		      WHERE other.company_id = bulk_jobs.company_id
		        AND other.id != bulk_jobs.id
		        AND other.status = ?
		        AND other.last_processed_at IS NOT NULL
		        AND other.last_processed_at >= ?
		  )
	`, StatusProcessing, now, now, jobID, StatusPending, StatusProcessing, cutoff,
		StatusProcessing, cutoff)
	if err != nil {
		return false, errors.Wrapf(err, "failed to claim job %s", jobID)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to get rows affected")
	}
	return rows == 1, nil
}

// Heartbeat refreshes the liveness timestamp of a processing job
func (s *Store) Heartbeat(jobID string, now time.Time) error {
	_, err := s.db.Exec(`
		UPDATE bulk_jobs SET last_processed_at = ?, updated_at = ? WHERE id = ?
	`, now, now, jobID)
	if err != nil {
		return errors.Wrapf(err, "failed to update heartbeat for job %s", jobID)
	}
	return nil
}

// FinishItem records the terminal outcome of one item. The status guard in
// the WHERE clause keeps terminal items immutable; finishing an already
// terminal item is a silent no-op.
func (s *Store) FinishItem(itemID string, status ItemStatus, reason string, now time.Time) error {
	if status == ItemStatusPending {
		return errors.New("cannot finish an item back to pending")
	}
	_, err := s.db.Exec(`
		UPDATE bulk_job_items
		SET status = ?, reason = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, status, nullString(reason), now, itemID, ItemStatusPending)
	if err != nil {
		return errors.Wrapf(err, "failed to finish item %s", itemID)
	}
	return nil
}

// Rollup recomputes processed_items as a full recount of terminal items and
// completes the job once the count reaches total_items. Returns the updated job.
func (s *Store) Rollup(jobID string, now time.Time) (*Job, error) {
	var terminal int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM bulk_job_items WHERE job_id = ? AND status != ?
	`, jobID, ItemStatusPending).Scan(&terminal)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to count terminal items for job %s", jobID)
	}

	_, err = s.db.Exec(`
		UPDATE bulk_jobs
		SET processed_items = ?,
		    status = CASE WHEN ? >= total_items THEN ? ELSE status END,
		    last_processed_at = ?,
		    updated_at = ?
		WHERE id = ? AND status = ?
	`, terminal, terminal, StatusCompleted, now, now, jobID, StatusProcessing)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to roll up job %s", jobID)
	}

	return s.GetJob(jobID)
}

// FailJob terminally fails a job with a reason. Used only for inactivity
// expiry; per-item failures never fail the whole job.
func (s *Store) FailJob(jobID, reason string, now time.Time) error {
	res, err := s.db.Exec(`
		UPDATE bulk_jobs
		SET status = ?, reason = ?, updated_at = ?
		WHERE id = ? AND status NOT IN (?, ?)
	`, StatusFailed, reason, now, jobID, StatusCompleted, StatusFailed)
	if err != nil {
		return errors.Wrapf(err, "failed to fail job %s", jobID)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.Newf("job %s is already terminal", jobID)
	}
	return nil
}

// HasActiveJob reports whether the company has any job of the kind still
// pending or processing. Backs the dashboard polling endpoints.
func (s *Store) HasActiveJob(companyID string, kind KindName) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(
			SELECT 1 FROM bulk_jobs
			WHERE company_id = ? AND kind = ? AND status IN (?, ?)
		)
	`, companyID, kind, StatusPending, StatusProcessing).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check for active job")
	}
	return exists, nil
}

// CleanupOldJobs removes terminal jobs whose last update is older than the
// given duration, measured from now. Items are removed by the ON DELETE
// CASCADE on bulk_job_items.
func (s *Store) CleanupOldJobs(now time.Time, olderThan time.Duration) (int, error) {
	cutoff := now.Add(-olderThan)

	res, err := s.db.Exec(`
		DELETE FROM bulk_jobs
		WHERE status IN (?, ?) AND updated_at < ?
	`, StatusCompleted, StatusFailed, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "failed to cleanup old jobs")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}
	return int(rows), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
