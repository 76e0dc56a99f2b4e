package bulk

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cardrail/cardrail/db"
	"github.com/cardrail/cardrail/logger"
)

// Dispatcher owns the recurring tick loops, one per registered processor.
// Each processor ticks on its own interval so a slow wallet drain never
// delays email delivery.
type Dispatcher struct {
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	log     *zap.SugaredLogger
	entries []dispatchEntry

	mu         sync.Mutex
	lastTickAt map[KindName]time.Time
	tickCounts map[KindName]int64
}

type dispatchEntry struct {
	processor *Processor
	interval  time.Duration
}

// NewDispatcher creates a dispatcher bound to a parent context
func NewDispatcher(ctx context.Context, log *zap.SugaredLogger) *Dispatcher {
	dctx, cancel := context.WithCancel(ctx)
	return &Dispatcher{
		ctx:        dctx,
		cancel:     cancel,
		log:        log,
		lastTickAt: make(map[KindName]time.Time),
		tickCounts: make(map[KindName]int64),
	}
}

// Register adds a processor to be ticked at the given interval.
// Must be called before Start.
func (d *Dispatcher) Register(p *Processor, interval time.Duration) {
	d.entries = append(d.entries, dispatchEntry{processor: p, interval: interval})
}

// Start launches one tick loop per registered processor. Entries with a
// non-positive interval stay registered for one-shot runs but get no loop.
func (d *Dispatcher) Start() {
	for _, entry := range d.entries {
		if entry.interval <= 0 {
			d.log.Infow("bulk dispatcher loop disabled",
				logger.FieldKind, entry.processor.kind.Name(),
			)
			continue
		}
		d.wg.Add(1)
		go d.run(entry)
		d.log.Infow("bulk dispatcher loop started",
			logger.FieldKind, entry.processor.kind.Name(),
			"interval", entry.interval,
		)
	}
}

// Stop cancels all loops and waits for in-flight ticks to finish
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
	d.log.Infow("bulk dispatcher stopped")
}

func (d *Dispatcher) run(entry dispatchEntry) {
	defer d.wg.Done()

	ticker := time.NewTicker(entry.interval)
	defer ticker.Stop()

	kind := entry.processor.kind.Name()
	for {
		select {
		case <-d.ctx.Done():
			return
		case tickTime := <-ticker.C:
			d.mu.Lock()
			d.lastTickAt[kind] = tickTime
			d.tickCounts[kind]++
			count := d.tickCounts[kind]
			d.mu.Unlock()

			if err := entry.processor.Tick(d.ctx); err != nil {
				// The connection closing mid-tick is normal during shutdown
				if db.IsDatabaseClosed(err) {
					return
				}
				d.log.Warnw("bulk tick error",
					logger.FieldKind, kind,
					logger.FieldError, err,
					"tick", count,
				)
			}
		}
	}
}

// ProcessorFor returns the registered processor for a kind, for one-shot
// CLI runs that tick without the loop
func (d *Dispatcher) ProcessorFor(kind KindName) (*Processor, bool) {
	for _, entry := range d.entries {
		if entry.processor.kind.Name() == kind {
			return entry.processor, true
		}
	}
	return nil, false
}

// Stats returns per-kind tick bookkeeping for the status endpoint
func (d *Dispatcher) Stats() map[string]interface{} {
	d.mu.Lock()
	defer d.mu.Unlock()

	stats := make(map[string]interface{}, len(d.entries))
	for _, entry := range d.entries {
		kind := entry.processor.kind.Name()
		stats[string(kind)] = map[string]interface{}{
			"interval":     entry.interval.String(),
			"last_tick_at": d.lastTickAt[kind],
			"ticks":        d.tickCounts[kind],
		}
	}
	return stats
}
