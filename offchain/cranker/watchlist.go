package cranker

import (
	"sync"

	"github.com/huandu/skiplist"
)

// ExecWatchlist tracks pending deferred executions ordered by the price
// timestamp they are waiting on. The cranker uses it to decide whether a new
// price point unblocks queued work without re-fetching the whole queue.
type ExecWatchlist struct {
	// timestamp (unix millis) -> []uint64 exec ids waiting on that timestamp
	list *skiplist.SkipList
	// exec id -> timestamp, for removal
	ids map[uint64]int64
	mu  sync.Mutex
}

// NewExecWatchlist creates an empty watchlist
func NewExecWatchlist() *ExecWatchlist {
	return &ExecWatchlist{
		list: skiplist.New(skiplist.Int64),
		ids:  make(map[uint64]int64),
	}
}

// Add registers a pending exec waiting for a price at or after needs
func (w *ExecWatchlist) Add(id uint64, needs int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, seen := w.ids[id]; seen {
		return
	}
	w.ids[id] = needs

	if elem := w.list.Get(needs); elem != nil {
		elem.Value = append(elem.Value.([]uint64), id)
		return
	}
	w.list.Set(needs, []uint64{id})
}

// Remove drops an exec from the watchlist, typically after it executed
func (w *ExecWatchlist) Remove(id uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	needs, seen := w.ids[id]
	if !seen {
		return
	}
	delete(w.ids, id)

	elem := w.list.Get(needs)
	if elem == nil {
		return
	}
	ids := elem.Value.([]uint64)
	for i, v := range ids {
		if v == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		w.list.Remove(needs)
		return
	}
	elem.Value = ids
}

// ReadyCount returns how many execs are unblocked by a price at priceTs
func (w *ExecWatchlist) ReadyCount(priceTs int64) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	count := 0
	for elem := w.list.Front(); elem != nil; elem = elem.Next() {
		if elem.Key().(int64) > priceTs {
			break
		}
		count += len(elem.Value.([]uint64))
	}
	return count
}

// PopReady removes and returns all execs unblocked by a price at priceTs
func (w *ExecWatchlist) PopReady(priceTs int64) []uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	ready := make([]uint64, 0)
	for {
		elem := w.list.Front()
		if elem == nil || elem.Key().(int64) > priceTs {
			break
		}
		ids := elem.Value.([]uint64)
		for _, id := range ids {
			delete(w.ids, id)
		}
		ready = append(ready, ids...)
		w.list.Remove(elem.Key())
	}
	return ready
}

// NextNeeded returns the earliest price timestamp any exec is waiting on
func (w *ExecWatchlist) NextNeeded() (int64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	elem := w.list.Front()
	if elem == nil {
		return 0, false
	}
	return elem.Key().(int64), true
}

// Len returns the number of tracked execs
func (w *ExecWatchlist) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.ids)
}

// Clear removes all tracked execs
func (w *ExecWatchlist) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.list.Init()
	w.ids = make(map[uint64]int64)
}
