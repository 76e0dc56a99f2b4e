package bulk

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cardrail/cardrail/errors"
	"github.com/cardrail/cardrail/logger"
)

// Outcome is the terminal result of processing one item
type Outcome struct {
	Status ItemStatus
	Reason string
}

// Kind supplies the per-operation behavior the processor is parameterized
// over. One implementation exists per job kind; the claim, heartbeat,
// batching, and rollup machinery is shared.
type Kind interface {
	// Name identifies the kind in the jobs table
	Name() KindName

	// BatchSize bounds how many items one tick drains
	BatchSize() int

	// ExpireAfter is how long a processing job may go without a heartbeat
	// before it is terminally failed rather than reclaimed. Zero means the
	// kind never expires and stuck jobs are always resumed.
	ExpireAfter() time.Duration

	// ProcessItem performs the side effect for one item and reports its
	// terminal outcome. Errors are reserved for infrastructure faults; a
	// business failure is a failed Outcome, not an error.
	ProcessItem(ctx context.Context, item *Item) (Outcome, error)
}

// Processor drains bulk jobs of one kind in bounded batches. Each Tick
// claims at most one job, processes at most BatchSize items, rolls up
// progress, and returns; long jobs complete across many ticks.
type Processor struct {
	store      *Store
	kind       Kind
	stuckAfter time.Duration
	now        func() time.Time
	events     *Emitter
	log        *zap.SugaredLogger
}

// ProcessorOption configures a Processor
type ProcessorOption func(*Processor)

// WithClock overrides the time source, letting tests drive the heartbeat
// and staleness logic deterministically
func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) {
		p.now = now
	}
}

// WithEmitter attaches a job event emitter
func WithEmitter(e *Emitter) ProcessorOption {
	return func(p *Processor) {
		p.events = e
	}
}

// NewProcessor creates a processor for one job kind. stuckAfter is the
// heartbeat staleness threshold past which a processing job counts as
// abandoned and becomes claimable again.
func NewProcessor(store *Store, kind Kind, stuckAfter time.Duration, log *zap.SugaredLogger, opts ...ProcessorOption) *Processor {
	p := &Processor{
		store:      store,
		kind:       kind,
		stuckAfter: stuckAfter,
		now:        time.Now,
		log:        log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Tick runs one processing pass. It is safe to call concurrently from
// multiple workers: the conditional claim ensures a job lost to a rival
// worker causes no mutations here.
func (p *Processor) Tick(ctx context.Context) error {
	now := p.now()

	job, err := p.store.NextEligible(p.kind.Name(), now, p.stuckAfter)
	if err != nil {
		return err
	}
	if job == nil {
		return nil
	}

	// Expiry check precedes the claim: a stuck job past the inactivity
	// window is failed, not resumed.
	if expire := p.kind.ExpireAfter(); expire > 0 && job.Status == StatusProcessing {
		if job.HeartbeatAge(now) > expire {
			reason := "expired due to inactivity"
			if err := p.store.FailJob(job.ID, reason, now); err != nil {
				return err
			}
			p.log.Warnw("job expired",
				logger.FieldJobID, job.ID,
				logger.FieldKind, job.Kind,
				logger.FieldHeartbeat, job.HeartbeatAge(now).String(),
			)
			p.publish(job.ID, job.CompanyID, StatusFailed, job.ProcessedItems, job.TotalItems, reason)
			return nil
		}
	}

	// Overlap pre-check: never run two jobs for the same company at once.
	// The claim statement re-asserts this atomically; checking here first
	// avoids a doomed claim and gives the skip its own log line.
	busy, err := p.store.HasFreshProcessing(job.CompanyID, job.ID, now, p.stuckAfter)
	if err != nil {
		return err
	}
	if busy {
		p.log.Debugw("skipping job, company has another job in flight",
			logger.FieldJobID, job.ID,
			logger.FieldCompanyID, job.CompanyID,
		)
		return nil
	}

	claimed, err := p.store.Claim(job.ID, now, p.stuckAfter)
	if err != nil {
		return err
	}
	if !claimed {
		// A rival worker took the job, or the company picked up another
		// job in the window since the pre-check; nothing was mutated here
		return nil
	}

	return p.drainBatch(ctx, job)
}

// drainBatch processes up to one batch of pending items for a claimed job,
// heartbeating after each item, then rolls progress up into the job row.
func (p *Processor) drainBatch(ctx context.Context, job *Job) error {
	items, err := p.store.PendingItems(job.ID, p.kind.BatchSize())
	if err != nil {
		return err
	}

	lastBeat := p.now()
	expire := p.kind.ExpireAfter()
	processed := 0

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			break
		}

		outcome, perr := p.kind.ProcessItem(ctx, item)

		// Mid-batch expiry: if the item's work stalled past the inactivity
		// window since the last persisted heartbeat, the job is terminally
		// failed right here. The stalled item's outcome is discarded and the
		// rest of the batch is abandoned.
		if expire > 0 && p.now().Sub(lastBeat) > expire {
			reason := "expired due to inactivity"
			if err := p.store.FailJob(job.ID, reason, p.now()); err != nil {
				return err
			}
			p.log.Warnw("job expired mid-batch",
				logger.FieldJobID, job.ID,
				logger.FieldItemID, item.ID,
				logger.FieldHeartbeat, p.now().Sub(lastBeat).String(),
			)
			p.publish(job.ID, job.CompanyID, StatusFailed, job.ProcessedItems, job.TotalItems, reason)
			return nil
		}

		if perr != nil {
			// Infrastructure fault: leave the item pending for a retry
			// on a later tick
			p.log.Errorw("item processing error",
				logger.FieldJobID, job.ID,
				logger.FieldItemID, item.ID,
				logger.FieldError, perr,
			)
			continue
		}

		if err := p.store.FinishItem(item.ID, outcome.Status, outcome.Reason, p.now()); err != nil {
			return err
		}
		processed++

		lastBeat = p.now()
		if err := p.store.Heartbeat(job.ID, lastBeat); err != nil {
			return err
		}
	}

	updated, err := p.store.Rollup(job.ID, p.now())
	if err != nil {
		return err
	}

	p.log.Infow("batch processed",
		logger.FieldJobID, job.ID,
		logger.FieldKind, job.Kind,
		logger.FieldBatchSize, processed,
		logger.FieldProcessed, updated.ProcessedItems,
		logger.FieldTotal, updated.TotalItems,
		logger.FieldStatus, updated.Status,
	)
	p.publish(updated.ID, updated.CompanyID, updated.Status, updated.ProcessedItems, updated.TotalItems, updated.Reason)
	return nil
}

func (p *Processor) publish(jobID, companyID string, status Status, processed, total int, reason string) {
	if p.events == nil {
		return
	}
	p.events.Publish(Event{
		JobID:          jobID,
		CompanyID:      companyID,
		Kind:           p.kind.Name(),
		Status:         status,
		ProcessedItems: processed,
		TotalItems:     total,
		Reason:         reason,
	})
}

// Enqueue validates eligibility and persists a new pending job with its
// items. Enqueueing is optimistic: a fresh in-flight job for the company
// blocks it, but a stale one does not, since the processor re-checks the
// overlap before claiming.
func Enqueue(store *Store, companyID string, kind KindName, cardIDs []string, now time.Time, stuckAfter time.Duration) (*Job, error) {
	job, items, err := NewJob(companyID, kind, cardIDs)
	if err != nil {
		return nil, err
	}

	busy, err := store.HasFreshProcessing(companyID, job.ID, now, stuckAfter)
	if err != nil {
		return nil, err
	}
	if busy {
		return nil, errors.Wrapf(errors.ErrConflict, "company %s already has a bulk job in flight", companyID)
	}

	if err := store.CreateJob(job, items); err != nil {
		return nil, err
	}
	return job, nil
}
