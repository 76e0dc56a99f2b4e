// Package bulk implements the asynchronous bulk-job processing subsystem:
// per-company aggregate jobs (wallet pass syncs, card emails) drained in
// bounded batches by recurring processor ticks, with stuck-job reclaim,
// heartbeat-based liveness, and per-item failure bookkeeping.
package bulk

import (
	"time"

	"github.com/google/uuid"

	"github.com/cardrail/cardrail/errors"
)

// Status represents the current state of a bulk job
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsValidStatus returns true if the status string is a valid Status
func IsValidStatus(s string) bool {
	switch Status(s) {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// ItemStatus represents the state of one unit of work within a job
type ItemStatus string

const (
	ItemStatusPending ItemStatus = "pending"
	ItemStatusDone    ItemStatus = "done" // pass synced / email sent
	ItemStatusFailed  ItemStatus = "failed"
)

// KindName identifies the bulk operation a job performs
type KindName string

const (
	KindWalletSync KindName = "wallet_sync"
	KindEmail      KindName = "email"
)

// IsValidKind returns true if the string names a known job kind
func IsValidKind(s string) bool {
	switch KindName(s) {
	case KindWalletSync, KindEmail:
		return true
	default:
		return false
	}
}

// Job is one bulk operation for one company: the aggregate that tracks
// totals, progress, and the liveness heartbeat.
//
// Invariants: ProcessedItems never exceeds TotalItems and never decreases;
// Status is completed exactly when ProcessedItems >= TotalItems; at most one
// job per company holds a fresh processing claim at a time.
type Job struct {
	ID              string     `json:"id"`
	CompanyID       string     `json:"company_id"`
	Kind            KindName   `json:"kind"`
	Status          Status     `json:"status"`
	TotalItems      int        `json:"total_items"`
	ProcessedItems  int        `json:"processed_items"`
	LastProcessedAt *time.Time `json:"last_processed_at,omitempty"` // heartbeat
	Reason          string     `json:"reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Item is one unit of work (one card) within a Job. Terminal status is
// immutable: the processor never revisits done or failed items.
type Item struct {
	ID        string     `json:"id"`
	JobID     string     `json:"job_id"`
	CompanyID string     `json:"company_id"`
	CardID    string     `json:"card_id"`
	Seq       int        `json:"seq"` // batch order within the job
	Status    ItemStatus `json:"status"`
	Reason    string     `json:"reason,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewJob creates a pending job and one pending item per card.
// TotalItems is fixed at enqueue time.
func NewJob(companyID string, kind KindName, cardIDs []string) (*Job, []*Item, error) {
	if companyID == "" {
		return nil, nil, errors.New("companyID cannot be empty")
	}
	if !IsValidKind(string(kind)) {
		return nil, nil, errors.Newf("unknown job kind %q", kind)
	}
	if len(cardIDs) == 0 {
		return nil, nil, errors.New("a bulk job needs at least one card")
	}

	now := time.Now()
	job := &Job{
		ID:         uuid.NewString(),
		CompanyID:  companyID,
		Kind:       kind,
		Status:     StatusPending,
		TotalItems: len(cardIDs),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	items := make([]*Item, 0, len(cardIDs))
	for i, cardID := range cardIDs {
		items = append(items, &Item{
			ID:        uuid.NewString(),
			JobID:     job.ID,
			CompanyID: companyID,
			CardID:    cardID,
			Seq:       i,
			Status:    ItemStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	return job, items, nil
}

// Percentage calculates job progress as a percentage (0-100)
func (j *Job) Percentage() float64 {
	if j.TotalItems == 0 {
		return 0
	}
	return float64(j.ProcessedItems) / float64(j.TotalItems) * 100
}

// IsTerminal reports whether the job has reached a final state
func (j *Job) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// HeartbeatAge returns how long ago the job last made progress. Jobs that
// never started report the age of their creation.
func (j *Job) HeartbeatAge(now time.Time) time.Duration {
	if j.LastProcessedAt == nil {
		return now.Sub(j.CreatedAt)
	}
	return now.Sub(*j.LastProcessedAt)
}
