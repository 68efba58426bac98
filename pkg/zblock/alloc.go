// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package zblock

// classFor returns the index into p.schedule of the smallest size class
// whose SlotSize can hold size bytes. validateSchedule guarantees the
// largest class's SlotSize is at least PageSize, so this always succeeds
// for size in (0, PageSize].
func (p *Pool) classFor(size int) int {
	for i, d := range p.schedule {
		if d.SlotSize >= size {
			return i
		}
	}
	return -1
}

// Alloc implements §4.5: reject degenerate sizes, pick the smallest class
// that fits, then either take a slot from a cached block or grow the pool
// by one block under the alloc_flag CAS gate. A goroutine that loses the
// CAS race does not allocate redundant blocks; it loops back and rechecks
// the cache, since the winner's new block (or another goroutine's freed
// block) may now satisfy it.
func (p *Pool) Alloc(size int) (Handle, error) {
	if size == 0 {
		return 0, ErrInvalidSize
	}
	if size > PageSize {
		return 0, ErrOutOfSpace
	}
	class := p.classFor(size)
	desc := p.schedule[class]
	l := p.lists[class]

	for {
		l.mu.Lock()
		b := l.findCached()
		grew := false

		if b == nil {
			l.mu.Unlock()

			if !p.allocFlag.CompareAndSwap(false, true) {
				continue
			}
			addr, data, err := p.pageAlloc.AllocPages(desc.Order)
			if err != nil {
				p.allocFlag.Store(false)
				return 0, ErrOutOfMemory
			}
			b = newBlock(class, desc, data, addr)
			grew = true

			l.mu.Lock()
			l.pushFront(b)
		}

		b.mu.Lock()
		b.freeSlots--
		l.mu.Unlock()

		slot, ok := b.findFreeSlot()
		if !ok {
			// freeSlots said there was room but slotInfo disagrees; undo
			// and surface the inconsistency rather than silently losing a
			// slot of accounting.
			b.freeSlots++
			b.mu.Unlock()
			if grew {
				p.allocFlag.Store(false)
			}
			return 0, ErrOutOfSpace
		}
		b.slotInfo[slot] = SlotOccupied
		b.mu.Unlock()

		if grew {
			p.allocFlag.Store(false)
		}
		return encodeHandle(b.addr, class, slot), nil
	}
}

// findBlockByAddr scans l for the block whose page-aligned address is
// addr. Caller holds l.mu.
func findBlockByAddr(l *BlockList, addr uintptr) *Block {
	for e := l.items.Front(); e != nil; e = e.Next() {
		if b := e.Value.(*Block); b.addr == addr {
			return b
		}
	}
	return nil
}

// Free implements §4.6: a free on a block currently under reclaim is a
// silent no-op, since the reclaimer owns that block's slot transitions. A
// free that empties a block entirely returns its pages immediately rather
// than waiting for the next reclaim pass.
func (p *Pool) Free(h Handle) error {
	addr, blockType, slot := decodeHandle(h)
	if blockType < 0 || blockType >= len(p.lists) {
		return ErrHandleNotFound
	}
	l := p.lists[blockType]

	l.mu.Lock()
	b := findBlockByAddr(l, addr)
	if b == nil {
		l.mu.Unlock()
		return ErrHandleNotFound
	}

	b.mu.Lock()
	if b.underReclaim {
		b.mu.Unlock()
		l.mu.Unlock()
		return nil
	}
	b.freeSlots++
	full := b.freeSlots >= b.initialSlots
	if full {
		b.mu.Unlock()
		l.remove(b)
		l.mu.Unlock()
		p.pageAlloc.FreePages(b.addr, b.order)
		return nil
	}
	if l.cacheIndexOf(b) < 0 {
		l.insertCache(b)
	}
	b.mu.Unlock()
	l.mu.Unlock()

	b.mu.Lock()
	b.slotInfo[slot] = SlotFree
	b.mu.Unlock()
	return nil
}

// Map implements §4.6: moves an occupied slot to MAPPED and returns its
// payload region.
func (p *Pool) Map(h Handle) ([]byte, error) {
	b, slot, ok := p.findLive(h)
	if !ok {
		return nil, ErrHandleNotFound
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.slotInfo[slot] {
	case SlotOccupied, SlotUnmapped:
	default:
		return nil, ErrHandleNotFound
	}
	b.slotInfo[slot] = SlotMapped
	start, end := b.slotOffset(slot)
	return b.data[start:end], nil
}

// Unmap implements §4.6: moves a MAPPED slot back to UNMAPPED.
func (p *Pool) Unmap(h Handle) error {
	b, slot, ok := p.findLive(h)
	if !ok {
		return ErrHandleNotFound
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.slotInfo[slot] != SlotMapped {
		return ErrHandleNotFound
	}
	b.slotInfo[slot] = SlotUnmapped
	return nil
}

// findLive resolves h to its block and slot without mutating any state.
func (p *Pool) findLive(h Handle) (*Block, int, bool) {
	addr, blockType, slot := decodeHandle(h)
	if blockType < 0 || blockType >= len(p.lists) {
		return nil, 0, false
	}
	l := p.lists[blockType]
	l.mu.Lock()
	defer l.mu.Unlock()
	b := findBlockByAddr(l, addr)
	if b == nil {
		return nil, 0, false
	}
	return b, slot, true
}
