package retention

import (
	"container/heap"
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/tikgrab/tikgrab/internal/metrics"
)

type entry struct {
	id       string
	path     string
	deadline time.Time
	index    int
}

// deadlineQueue is a min-heap of entries ordered by deadline.
type deadlineQueue []*entry

func (q deadlineQueue) Len() int           { return len(q) }
func (q deadlineQueue) Less(i, j int) bool { return q[i].deadline.Before(q[j].deadline) }
func (q deadlineQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *deadlineQueue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *deadlineQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

// Scheduler deletes artifacts once their retention deadline passes. All
// deadlines share one goroutine and one timer; Run must be started for
// anything to be deleted.
type Scheduler struct {
	mu      sync.Mutex
	queue   deadlineQueue
	byID    map[string]*entry
	wake    chan struct{}
	metrics metrics.Recorder
}

func NewScheduler(m metrics.Recorder) *Scheduler {
	if m == nil {
		m = metrics.Noop{}
	}
	return &Scheduler{
		byID:    make(map[string]*entry),
		wake:    make(chan struct{}, 1),
		metrics: m,
	}
}

// Schedule registers path for deletion after delay. Scheduling an id that
// is already pending moves its deadline.
func (s *Scheduler) Schedule(id, path string, delay time.Duration) {
	deadline := time.Now().Add(delay)

	s.mu.Lock()
	if e, ok := s.byID[id]; ok {
		e.path = path
		e.deadline = deadline
		heap.Fix(&s.queue, e.index)
	} else {
		e := &entry{id: id, path: path, deadline: deadline}
		heap.Push(&s.queue, e)
		s.byID[id] = e
	}
	s.metrics.SetPendingDeletions(len(s.queue))
	s.mu.Unlock()

	s.notify()
}

// Cancel drops a pending deletion. It reports whether id was pending.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	e, ok := s.byID[id]
	if ok {
		heap.Remove(&s.queue, e.index)
		delete(s.byID, id)
		s.metrics.SetPendingDeletions(len(s.queue))
	}
	s.mu.Unlock()

	if ok {
		s.notify()
	}
	return ok
}

// Extend resets the deadline of a pending deletion to now+delay.
func (s *Scheduler) Extend(id string, delay time.Duration) bool {
	s.mu.Lock()
	e, ok := s.byID[id]
	if ok {
		e.deadline = time.Now().Add(delay)
		heap.Fix(&s.queue, e.index)
	}
	s.mu.Unlock()

	if ok {
		s.notify()
	}
	return ok
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Start runs the scheduler in its own goroutine until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	go s.Run(ctx)
}

// Run blocks until ctx is done. Deletions still pending at that point are
// abandoned; the sweep reclaims their files on the next start.
func (s *Scheduler) Run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		if wait, ok := s.untilNext(); ok {
			timer.Reset(wait)
		} else {
			timer.Stop()
		}

		select {
		case <-ctx.Done():
			slog.Info("retention: shutting down", "pending", s.Pending())
			return
		case <-s.wake:
		case <-timer.C:
			s.expire()
		}
	}
}

func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) untilNext() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return 0, false
	}
	return max(time.Until(s.queue[0].deadline), 0), true
}

func (s *Scheduler) expire() {
	now := time.Now()

	s.mu.Lock()
	var due []*entry
	for len(s.queue) > 0 && !s.queue[0].deadline.After(now) {
		e := heap.Pop(&s.queue).(*entry)
		delete(s.byID, e.id)
		due = append(due, e)
	}
	s.metrics.SetPendingDeletions(len(s.queue))
	s.mu.Unlock()

	for _, e := range due {
		removed, err := DeleteIfExists(e.path)
		switch {
		case err != nil:
			slog.Error("retention: failed to delete artifact", "id", e.id, "path", e.path, "error", err)
			s.metrics.IncDeletions("scheduler", "failed")
		case removed:
			slog.Info("retention: deleted artifact", "id", e.id, "path", e.path)
			s.metrics.IncDeletions("scheduler", "deleted")
		default:
			s.metrics.IncDeletions("scheduler", "absent")
		}
	}
}

// DeleteIfExists removes path. A missing file is not an error; it reports
// false so callers can tell the two apart.
func DeleteIfExists(path string) (bool, error) {
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
