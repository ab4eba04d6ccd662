package services

import (
	"route-validation-service/internal/domain"
	"sync"
)

// reportQueue is a bounded FIFO of reports for one vehicle.
// When full, the oldest buffered report is dropped so the most recent
// position always survives.
type reportQueue struct {
	mu     sync.Mutex
	items  []domain.PositionReport
	limit  int
	notify chan struct{}
}

func newReportQueue(limit int) *reportQueue {
	if limit < 1 {
		limit = 1
	}
	return &reportQueue{
		items:  make([]domain.PositionReport, 0, limit),
		limit:  limit,
		notify: make(chan struct{}, 1),
	}
}

// push appends r and returns the report dropped to make room, if any.
func (q *reportQueue) push(r domain.PositionReport) (dropped *domain.PositionReport) {
	q.mu.Lock()
	if len(q.items) >= q.limit {
		old := q.items[0]
		dropped = &old
		q.items = q.items[1:]
	}
	q.items = append(q.items, r)
	q.mu.Unlock()

	q.signal()
	return dropped
}

// pushFront puts r back at the head of the queue after a failed attempt.
// r is the oldest report, so it is the one dropped when the queue is full.
func (q *reportQueue) pushFront(r domain.PositionReport) (dropped *domain.PositionReport) {
	q.mu.Lock()
	if len(q.items) >= q.limit {
		q.mu.Unlock()
		return &r
	}
	q.items = append([]domain.PositionReport{r}, q.items...)
	q.mu.Unlock()

	q.signal()
	return nil
}

func (q *reportQueue) pop() (domain.PositionReport, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return domain.PositionReport{}, false
	}
	r := q.items[0]
	q.items = q.items[1:]
	return r, true
}

func (q *reportQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *reportQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
