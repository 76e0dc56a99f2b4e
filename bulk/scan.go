package bulk

import (
	"database/sql"

	"github.com/cardrail/cardrail/errors"
)

const jobSelectColumns = `id, company_id, kind, status, total_items, processed_items,
	last_processed_at, reason, created_at, updated_at`

const itemSelectColumns = `id, job_id, company_id, card_id, seq, status, reason,
	created_at, updated_at`

// jobScanArgs holds the nullable columns of a job row during scanning
type jobScanArgs struct {
	lastProcessedAt sql.NullTime
	reason          sql.NullString
}

func newJobScanArgs() *jobScanArgs {
	return &jobScanArgs{}
}

func jobScanTargets(j *Job, args *jobScanArgs) []interface{} {
	return []interface{}{
		&j.ID, &j.CompanyID, &j.Kind, &j.Status, &j.TotalItems, &j.ProcessedItems,
		&args.lastProcessedAt, &args.reason, &j.CreatedAt, &j.UpdatedAt,
	}
}

func applyJobScanArgs(j *Job, args *jobScanArgs) {
	if args.lastProcessedAt.Valid {
		t := args.lastProcessedAt.Time
		j.LastProcessedAt = &t
	}
	if args.reason.Valid {
		j.Reason = args.reason.String
	}
}

func scanJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		var job Job
		args := newJobScanArgs()
		if err := rows.Scan(jobScanTargets(&job, args)...); err != nil {
			return nil, errors.Wrap(err, "failed to scan job")
		}
		applyJobScanArgs(&job, args)
		jobs = append(jobs, &job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating jobs")
	}
	return jobs, nil
}

func scanItems(rows *sql.Rows) ([]*Item, error) {
	var items []*Item
	for rows.Next() {
		var item Item
		var reason sql.NullString
		err := rows.Scan(
			&item.ID, &item.JobID, &item.CompanyID, &item.CardID, &item.Seq,
			&item.Status, &reason, &item.CreatedAt, &item.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan item")
		}
		if reason.Valid {
			item.Reason = reason.String
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating items")
	}
	return items, nil
}
