package engine

import "sync"

// Treadmill implements spec.md §5's invalidation reclamation: physical
// code reclamation is deferred until every registered request thread has
// crossed a quiescent point (request start) *after* the reclaim item was
// enqueued, so an in-flight tracelet can never have a reclaimed byte
// yanked out from under it (spec.md §8 property 8).
//
// Grounded on the classic epoch-based-reclamation shape (each thread
// reports a monotonically increasing "last quiesced at" counter; an
// item is safe to run once every thread's counter is past the item's
// enqueue-time epoch) rather than the teacher's own code, since wazero
// has no equivalent background-reclamation component; this is the
// "enrich from the rest of the pack" case spec.md's process allows for
// when the teacher has nothing to generalize.
type Treadmill struct {
	mu      sync.Mutex
	epoch   uint64
	threads map[int64]uint64
	pending []reclaimItem
}

type reclaimItem struct {
	epoch uint64
	fn    func()
}

// NewTreadmill constructs an empty Treadmill.
func NewTreadmill() *Treadmill {
	return &Treadmill{threads: map[int64]uint64{}}
}

// RegisterThread enrolls a request thread (identified however the
// embedding names its OS threads/goroutines) so Enqueue's reclamation
// waits for it to quiesce. A thread that never calls Quiesce again after
// registering blocks reclamation forever — UnregisterThread exists for
// exactly that case (a thread that is exiting).
func (tm *Treadmill) RegisterThread(id int64) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.threads[id] = tm.epoch
}

// UnregisterThread removes id, re-running drain since its absence may
// now satisfy pending reclaims that were waiting only on it.
func (tm *Treadmill) UnregisterThread(id int64) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	delete(tm.threads, id)
	tm.drainLocked()
}

// Quiesce records that thread id has crossed a quiescent point (spec.md
// §5: "request start"). Called once per request by the embedding's
// dispatch loop.
func (tm *Treadmill) Quiesce(id int64) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.threads[id] = tm.epoch
	tm.drainLocked()
}

// Enqueue defers fn (the physical code reclamation for one invalidated
// translation range) until every currently-registered thread has
// quiesced at least once since this call. Bumps the epoch so any thread
// already mid-request before this call still counts as "not yet past
// it" until its *next* quiescent point.
func (tm *Treadmill) Enqueue(fn func()) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.epoch++
	tm.pending = append(tm.pending, reclaimItem{epoch: tm.epoch, fn: fn})
	tm.drainLocked()
}

// drainLocked runs every pending item whose epoch every registered
// thread has already crossed, then drops it from the pending list.
// Caller must hold tm.mu.
func (tm *Treadmill) drainLocked() {
	minObserved := tm.epoch
	for _, observed := range tm.threads {
		if observed < minObserved {
			minObserved = observed
		}
	}

	var still []reclaimItem
	for _, item := range tm.pending {
		if item.epoch <= minObserved {
			item.fn()
		} else {
			still = append(still, item)
		}
	}
	tm.pending = still
}

// Pending reports how many reclaim items are still waiting on a
// quiescent thread — for tests and diagnostics.
func (tm *Treadmill) Pending() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return len(tm.pending)
}
