package orderbook

import "sync"

// DirtyTracker is the in-process mirror of the
// order_book:changed_products:{side} sets the Python original kept in
// Redis: every book mutation marks its (side, product) pair dirty, and
// the network stage drains the set in batches so it only recomputes
// edges that actually moved instead of rescanning every product every
// pass.
type DirtyTracker struct {
	mu   sync.Mutex
	sets map[Side]map[string]struct{}
}

// NewDirtyTracker returns an empty tracker covering both sides.
func NewDirtyTracker() *DirtyTracker {
	return &DirtyTracker{
		sets: map[Side]map[string]struct{}{
			Bid: make(map[string]struct{}),
			Ask: make(map[string]struct{}),
		},
	}
}

// Mark records productID as dirty on side. Idempotent.
func (d *DirtyTracker) Mark(side Side, productID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sets[side][productID] = struct{}{}
}

// PopN atomically removes and returns up to n dirty product ids from
// side, mirroring the Python original's SPOP ... BATCH_SIZE. Returns
// fewer than n (possibly zero) if fewer are dirty.
func (d *DirtyTracker) PopN(side Side, n int) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	set := d.sets[side]
	if len(set) == 0 || n <= 0 {
		return nil
	}
	out := make([]string, 0, n)
	for id := range set {
		if len(out) >= n {
			break
		}
		out = append(out, id)
		delete(set, id)
	}
	return out
}

// Len reports how many products are currently marked dirty on side.
func (d *DirtyTracker) Len(side Side) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sets[side])
}
