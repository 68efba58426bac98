// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package zblock

import "sync"

// blockHeaderSize is the notional in-band header size the original
// block-size schedule reserves per block (lock, list link, slot-state
// array, free-slot counter, reclaim flag). This package keeps that
// metadata as ordinary Go struct fields rather than packing it into the
// front of an allocated page region, but slot sizes are still computed as
// if the header were reserved, so the schedule this package ships matches
// the original's slot-size arithmetic exactly.
const blockHeaderSize = 64

// SlotState is the lifecycle state of one slot within a block.
type SlotState uint8

const (
	SlotFree SlotState = iota
	SlotOccupied
	SlotMapped
	SlotUnmapped
)

// Block is 2^order contiguous pages' worth of payload, subdivided into a
// fixed number of slots. Its own mutex (the "block.lock" from the lock
// hierarchy) guards slotInfo and freeSlots; callers must never acquire a
// BlockList's lock while holding a Block's lock.
type Block struct {
	mu sync.Mutex

	blockType    int
	order        int
	slotSize     int
	initialSlots int // slots_per_block at creation; freeSlots alone can't tell "full" from "empty" once it hits 0

	data []byte // page-backed region of PageSize<<order bytes; slots use the first slotsPerBlock*slotSize of it

	slotInfo     [MaxSlots]SlotState
	freeSlots    int
	underReclaim bool

	// addr is the page-aligned address handle encoding is built from. In
	// this package it comes from a real page allocation (see
	// pagealloc.go) rather than a fabricated value, so it behaves exactly
	// like a real pointer for the purposes of handle round-tripping.
	addr uintptr
}

func newBlock(blockType int, desc BlockDesc, data []byte, addr uintptr) *Block {
	b := &Block{
		blockType:    blockType,
		order:        desc.Order,
		slotSize:     desc.SlotSize,
		initialSlots: desc.SlotsPerBlock,
		data:         data,
		freeSlots:    desc.SlotsPerBlock,
		addr:         addr,
	}
	for i := 0; i < desc.SlotsPerBlock; i++ {
		b.slotInfo[i] = SlotFree
	}
	return b
}

func (b *Block) slotsPerBlock() int { return b.initialSlots }

// slotOffset returns the byte range within data that slot s occupies.
func (b *Block) slotOffset(slot int) (start, end int) {
	start = slot * b.slotSize
	return start, start + b.slotSize
}

// findFreeSlot scans for the first FREE slot. Must be called with mu held.
func (b *Block) findFreeSlot() (int, bool) {
	for i := 0; i < b.initialSlots; i++ {
		if b.slotInfo[i] == SlotFree {
			return i, true
		}
	}
	return 0, false
}

// countFree recomputes the free-slot count from slotInfo, used by tests to
// check that free_slots tracks the count of FREE slots.
func (b *Block) countFree() int {
	n := 0
	for i := 0; i < b.initialSlots; i++ {
		if b.slotInfo[i] == SlotFree {
			n++
		}
	}
	return n
}
