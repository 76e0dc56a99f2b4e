package bulk

import (
	"sync"
)

// Event is a progress notification for one job, published after every
// batch rollup and on terminal transitions
type Event struct {
	JobID          string   `json:"job_id"`
	CompanyID      string   `json:"company_id"`
	Kind           KindName `json:"kind"`
	Status         Status   `json:"status"`
	ProcessedItems int      `json:"processed_items"`
	TotalItems     int      `json:"total_items"`
	Reason         string   `json:"reason,omitempty"`
}

// Emitter fans job events out to subscribers. Slow subscribers drop
// events rather than block the processor.
type Emitter struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewEmitter creates an event emitter
func NewEmitter() *Emitter {
	return &Emitter{
		subs: make(map[chan Event]struct{}),
	}
}

// Subscribe registers a new subscriber and returns its channel along with
// an unsubscribe function
func (e *Emitter) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	e.mu.Lock()
	e.subs[ch] = struct{}{}
	e.mu.Unlock()

	unsubscribe := func() {
		e.mu.Lock()
		if _, ok := e.subs[ch]; ok {
			delete(e.subs, ch)
			close(ch)
		}
		e.mu.Unlock()
	}
	return ch, unsubscribe
}

// Publish delivers an event to all current subscribers without blocking
func (e *Emitter) Publish(ev Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for ch := range e.subs {
		select {
		case ch <- ev:
		default:
			// Subscriber buffer full; drop rather than stall processing
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (e *Emitter) SubscriberCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subs)
}
