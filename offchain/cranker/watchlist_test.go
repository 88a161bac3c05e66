package cranker

import (
	"reflect"
	"testing"
)

func TestWatchlistAddAndReadyCount(t *testing.T) {
	w := NewExecWatchlist()
	if w.Len() != 0 {
		t.Fatalf("expected empty watchlist, got %d", w.Len())
	}

	w.Add(1, 1000)
	w.Add(2, 2000)
	w.Add(3, 2000)

	if w.Len() != 3 {
		t.Errorf("expected 3 tracked execs, got %d", w.Len())
	}
	if got := w.ReadyCount(999); got != 0 {
		t.Errorf("expected nothing ready before the first timestamp, got %d", got)
	}
	if got := w.ReadyCount(1000); got != 1 {
		t.Errorf("expected 1 ready at 1000, got %d", got)
	}
	if got := w.ReadyCount(2000); got != 3 {
		t.Errorf("expected all 3 ready at 2000, got %d", got)
	}
}

func TestWatchlistAddIsIdempotent(t *testing.T) {
	w := NewExecWatchlist()
	w.Add(1, 1000)
	w.Add(1, 5000) // duplicate, different timestamp

	if w.Len() != 1 {
		t.Errorf("expected the duplicate to be ignored, got %d tracked", w.Len())
	}
	if got := w.ReadyCount(1000); got != 1 {
		t.Errorf("expected the original timestamp to win, got %d ready", got)
	}
}

func TestWatchlistPopReady(t *testing.T) {
	w := NewExecWatchlist()
	w.Add(1, 1000)
	w.Add(2, 2000)
	w.Add(3, 2000)
	w.Add(4, 3000)

	popped := w.PopReady(2000)
	if !reflect.DeepEqual(popped, []uint64{1, 2, 3}) {
		t.Errorf("expected [1 2 3], got %v", popped)
	}
	if w.Len() != 1 {
		t.Errorf("expected only the future exec left, got %d", w.Len())
	}
	// Popping again yields nothing; the entries are gone.
	if again := w.PopReady(2000); len(again) != 0 {
		t.Errorf("expected an empty pop, got %v", again)
	}
}

func TestWatchlistRemove(t *testing.T) {
	w := NewExecWatchlist()
	w.Add(1, 1000)
	w.Add(2, 1000)

	w.Remove(1)
	if w.Len() != 1 {
		t.Errorf("expected 1 left, got %d", w.Len())
	}
	if got := w.ReadyCount(1000); got != 1 {
		t.Errorf("expected 1 ready after removal, got %d", got)
	}

	w.Remove(2)
	if _, ok := w.NextNeeded(); ok {
		t.Error("expected no timestamp needed after removing everything")
	}

	// Removing an unknown id is a no-op.
	w.Remove(99)
}

func TestWatchlistNextNeeded(t *testing.T) {
	w := NewExecWatchlist()
	if _, ok := w.NextNeeded(); ok {
		t.Error("expected no next timestamp on an empty watchlist")
	}

	w.Add(5, 3000)
	w.Add(6, 1000)
	ts, ok := w.NextNeeded()
	if !ok || ts != 1000 {
		t.Errorf("expected the earliest timestamp 1000, got %d (%v)", ts, ok)
	}
}

func TestWatchlistClear(t *testing.T) {
	w := NewExecWatchlist()
	w.Add(1, 1000)
	w.Add(2, 2000)
	w.Clear()
	if w.Len() != 0 {
		t.Errorf("expected an empty watchlist after clear, got %d", w.Len())
	}
	if got := w.PopReady(5000); len(got) != 0 {
		t.Errorf("expected nothing to pop after clear, got %v", got)
	}
}
