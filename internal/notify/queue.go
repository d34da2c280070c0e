package notify

import (
	"sync"
	"time"
)

// Toast is a queued notification with its expiry.
type Toast struct {
	Notification
	ExpiresAt time.Time
}

// Queue keeps the most recent notifications until they expire.
// Notify may be called from command goroutines while the view reads Active
// on the event loop, so access is guarded.
type Queue struct {
	mu    sync.Mutex
	limit int
	now   func() time.Time
	items []Toast
}

func NewQueue(limit int) *Queue {
	if limit <= 0 {
		limit = 3
	}
	return &Queue{limit: limit, now: time.Now}
}

func (q *Queue) Notify(n Notification) {
	if n.Duration <= 0 {
		n.Duration = DefaultDuration
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, Toast{Notification: n, ExpiresAt: q.now().Add(n.Duration)})
	if len(q.items) > q.limit {
		q.items = append([]Toast(nil), q.items[len(q.items)-q.limit:]...)
	}
}

// Active returns the toasts still visible at now, oldest first.
func (q *Queue) Active(now time.Time) []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Toast, 0, len(q.items))
	for _, t := range q.items {
		if now.Before(t.ExpiresAt) {
			out = append(out, t)
		}
	}
	return out
}

// Prune drops expired toasts and reports how many remain.
func (q *Queue) Prune(now time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.items[:0]
	for _, t := range q.items {
		if now.Before(t.ExpiresAt) {
			kept = append(kept, t)
		}
	}
	q.items = kept
	return len(kept)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
