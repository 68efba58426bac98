// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package zblock

// ReclaimBlock implements §4.7: walk size classes from worst compression
// (the end of the schedule) to best, and for the first class whose tail
// (oldest) block is both present and not currently cached, evict every
// live slot and either re-list the block (partial success) or return its
// pages (fully emptied). It returns the number of slots reclaimed, or
// ErrRetry if a block was chosen but the eviction callback made no
// progress on it, or ErrNoBlockToEvict if every class is empty or has
// nothing eligible.
func (p *Pool) ReclaimBlock() (int, error) {
	for class := len(p.lists) - 1; class >= 0; class-- {
		l := p.lists[class]

		l.mu.Lock()
		b := l.tail()
		if b == nil || l.cacheIndexOf(b) >= 0 {
			l.mu.Unlock()
			continue
		}

		b.mu.Lock()
		b.underReclaim = true
		slots := b.initialSlots
		states := append([]SlotState(nil), b.slotInfo[:slots]...)
		b.mu.Unlock()
		l.mu.Unlock()

		reclaimed := 0
		for slot, st := range states {
			if st != SlotOccupied && st != SlotUnmapped {
				continue
			}
			h := encodeHandle(b.addr, class, slot)
			if err := p.ops.Evict(h); err != nil {
				break
			}
			b.mu.Lock()
			b.slotInfo[slot] = SlotFree
			b.freeSlots++
			b.mu.Unlock()
			reclaimed++
		}

		l.mu.Lock()
		b.mu.Lock()
		if b.freeSlots < b.initialSlots {
			b.underReclaim = false
			b.mu.Unlock()
			l.insertCache(b)
			l.mu.Unlock()
		} else {
			b.mu.Unlock()
			l.remove(b)
			l.mu.Unlock()
			p.pageAlloc.FreePages(b.addr, b.order)
		}

		if reclaimed > 0 {
			return reclaimed, nil
		}
		return 0, errRetry
	}
	return 0, ErrNoBlockToEvict
}

// Shrink implements shrink(pool, target_pages): call ReclaimBlock
// repeatedly, summing reclaimed slot counts until the total reaches
// targetPages or a reclaim attempt fails outright. If nothing was
// reclaimed at all, the last error is surfaced; a partial shrink that hit
// an error after making progress returns what it reclaimed with a nil
// error.
func (p *Pool) Shrink(targetPages int) (int, error) {
	total := 0
	var lastErr error
	for total < targetPages {
		n, err := p.ReclaimBlock()
		if err != nil {
			lastErr = err
			break
		}
		total += n
	}
	if total == 0 && lastErr != nil {
		return 0, lastErr
	}
	return total, nil
}

// ShrinkAll reclaims every evictable block it can find across all classes
// in one pass, returning the number of blocks (not slots) emptied and
// returned to the page allocator. Intended for background pressure
// response (see Shrinker) where the caller cares about freed pages, not a
// specific slot-count target.
func (p *Pool) ShrinkAll() int {
	freed := 0
	for {
		before := p.blockCount()
		if _, err := p.ReclaimBlock(); err != nil {
			return freed
		}
		after := p.blockCount()
		if after < before {
			freed += int(before - after)
		}
	}
}

func (p *Pool) blockCount() int64 {
	var n int64
	for _, l := range p.lists {
		l.mu.Lock()
		n += l.blockCount
		l.mu.Unlock()
	}
	return n
}
