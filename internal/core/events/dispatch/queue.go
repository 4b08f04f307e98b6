package dispatch

import (
	"sync"

	"github.com/simforge/simforge/pkg/sequence"
)

// Queue buffers events between ticks' send sites and the dispatch pass.
// Ordering is strict: descending priority, FIFO within equal priority.
type Queue struct {
	mu sync.Mutex
	pq *sequence.PriorityQueue[Event]
}

func NewQueue() *Queue {
	return &Queue{pq: sequence.NewPriorityQueue[Event]()}
}

// Send enqueues an event at the given priority.
func (q *Queue) Send(ev Event, priority int) {
	q.mu.Lock()
	q.pq.Enqueue(ev, priority)
	q.mu.Unlock()
}

// Drain removes and returns everything queued, in delivery order. The queue
// is empty afterwards; events sent while a pass is running land in the next
// drain of the same pass.
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pq.IsEmpty() {
		return nil
	}
	out := make([]Event, 0, q.pq.Len())
	for {
		ev, ok := q.pq.Dequeue()
		if !ok {
			break
		}
		out = append(out, ev)
	}
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pq.Len()
}
