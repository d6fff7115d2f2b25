package crawler

import "sync"

// Frontier is the deduplicated work queue feeding the worker pool. It holds
// listing and detail tasks separately and prefers listings on dequeue so
// pagination discovery is never starved by a backlog of detail pages.
//
// A URL accepted once is never accepted again, even after the task it named
// abandons; the seen-set only grows. Detail admission additionally reserves
// an item slot in the budget, so admission past maxItems is impossible no
// matter how many workers enqueue concurrently.
//
// Liveness: every accepted task stays live until the engine reports it
// terminal via TaskDone. Retries re-enter through Requeue without touching
// liveness. When the last live task resolves the frontier closes itself and
// all blocked Dequeue calls return false. Callers must finish enqueuing any
// follow-on work for a task before reporting it done.
type Frontier struct {
	mu     sync.Mutex
	cond   *sync.Cond
	budget *Budget

	listings []Task
	details  []Task
	seen     map[string]struct{}

	live   int
	closed bool

	dupRejected    int
	budgetRejected int
}

// FrontierStats is a point-in-time view used by logs and the progress API.
type FrontierStats struct {
	QueuedListings int
	QueuedDetails  int
	Live           int
	Seen           int
	DupRejected    int
	BudgetRejected int
}

// NewFrontier creates an open frontier drawing item slots from budget.
func NewFrontier(budget *Budget) *Frontier {
	f := &Frontier{
		budget: budget,
		seen:   make(map[string]struct{}),
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Enqueue admits a task. It returns false without side effects when the
// normalized URL was already seen, when the frontier is closed, or when a
// detail task finds the item budget exhausted. Budget-refused URLs stay
// unseen so a later crawl phase is not silently poisoned.
func (f *Frontier) Enqueue(task Task) bool {
	normalized, err := NormalizeURL(task.URL)
	if err != nil {
		return false
	}
	task.URL = normalized

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false
	}
	if _, dup := f.seen[normalized]; dup {
		f.dupRejected++
		TotalFrontierRejections.WithLabelValues("duplicate").Inc()
		return false
	}
	if task.Kind == KindDetail && !f.budget.TryPlanItem() {
		f.budgetRejected++
		TotalFrontierRejections.WithLabelValues("budget").Inc()
		return false
	}

	f.seen[normalized] = struct{}{}
	f.live++
	f.push(task)
	f.cond.Signal()
	return true
}

// Requeue re-admits a retrying task. The URL is already seen by design and
// its budget slot (for details) is still reserved, so neither is checked.
// It returns false if the frontier closed; the caller must then resolve the
// task via TaskDone to release its liveness.
func (f *Frontier) Requeue(task Task) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false
	}
	f.push(task)
	f.cond.Signal()
	return true
}

// Dequeue blocks until a task is available or the frontier closes. The
// second return is false once the frontier is closed and drained of queued
// work. Cancellation is delivered by calling Close.
func (f *Frontier) Dequeue() (Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		if len(f.listings) > 0 {
			task := f.listings[0]
			f.listings = f.listings[1:]
			return task, true
		}
		if len(f.details) > 0 {
			task := f.details[0]
			f.details = f.details[1:]
			return task, true
		}
		if f.closed {
			return Task{}, false
		}
		f.cond.Wait()
	}
}

// TaskDone reports one live task as terminally resolved. When the last live
// task resolves, the frontier closes and wakes every blocked Dequeue.
func (f *Frontier) TaskDone() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.live > 0 {
		f.live--
	}
	if f.live == 0 && !f.closed {
		f.closed = true
		f.cond.Broadcast()
	}
}

// Close shuts the frontier down regardless of live tasks, waking all blocked
// Dequeue calls. Safe to call more than once. Queued tasks that were never
// dequeued are dropped.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.closed {
		f.closed = true
		f.cond.Broadcast()
	}
}

// Stats returns a consistent snapshot of the frontier's counters.
func (f *Frontier) Stats() FrontierStats {
	f.mu.Lock()
	defer f.mu.Unlock()

	return FrontierStats{
		QueuedListings: len(f.listings),
		QueuedDetails:  len(f.details),
		Live:           f.live,
		Seen:           len(f.seen),
		DupRejected:    f.dupRejected,
		BudgetRejected: f.budgetRejected,
	}
}

func (f *Frontier) push(task Task) {
	if task.Kind == KindListing {
		f.listings = append(f.listings, task)
		return
	}
	f.details = append(f.details, task)
}
