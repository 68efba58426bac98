// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package zblock

import (
	"container/list"
	"sync"
)

// BlockList owns every block of one size class: a doubly-linked list
// (most recently inserted at the front, oldest at the back — the order
// the reclaimer walks) and a small cache of blocks known to have free
// slots, so common-case allocation never has to scan the list.
//
// Lock ordering: list.lock is acquired before any block.lock it touches,
// and is always released before a Block method that takes block.lock is
// called from outside this file. Never reverse that order.
type BlockList struct {
	mu sync.Mutex

	desc  BlockDesc
	items *list.List // each Value is *Block

	cache      [BlockCacheSize]*Block
	blockCount int64
}

func newBlockList(desc BlockDesc) *BlockList {
	return &BlockList{desc: desc, items: list.New()}
}

// pushFront inserts a newly allocated block at the head of the list and
// into the cache, and bumps blockCount. Caller holds l.mu.
func (l *BlockList) pushFront(b *Block) {
	l.items.PushFront(b)
	l.insertCache(b)
	l.blockCount++
}

// tail returns the oldest block in the list, or nil if the list is empty.
// The original C source dereferences list_last_entry unconditionally,
// which is undefined on an empty list; this explicit check is the fix
// noted as required in the design notes.
func (l *BlockList) tail() *Block {
	e := l.items.Back()
	if e == nil {
		return nil
	}
	return e.Value.(*Block)
}

// remove unlinks b from the list and clears it from the cache. Caller
// holds l.mu.
func (l *BlockList) remove(b *Block) {
	for e := l.items.Front(); e != nil; e = e.Next() {
		if e.Value.(*Block) == b {
			l.items.Remove(e)
			break
		}
	}
	l.clearCache(b)
	l.blockCount--
}

// findCached returns the first cached block with a free slot, or nil.
func (l *BlockList) findCached() *Block {
	for _, b := range l.cache {
		if b != nil && b.freeSlots > 0 {
			return b
		}
	}
	return nil
}

// cacheIndexOf returns the cache slot index holding b, or -1.
func (l *BlockList) cacheIndexOf(b *Block) int {
	for i, c := range l.cache {
		if c == b {
			return i
		}
	}
	return -1
}

// insertCache implements the cache-insertion policy from §4.5: fill the
// first nil-or-zero-free-slots entry; otherwise evict whichever cached
// block has the fewest free slots and replace it with b. The displaced
// block is not tracked further here — it stays in the list and remains
// reachable by the reclaimer's own list walk, which is documented,
// intended behavior, not a bug.
func (l *BlockList) insertCache(b *Block) {
	minIdx, minFree := -1, -1
	for i, c := range l.cache {
		if c == nil || c.freeSlots == 0 {
			l.cache[i] = b
			return
		}
		if minIdx == -1 || c.freeSlots < minFree {
			minIdx, minFree = i, c.freeSlots
		}
	}
	if minIdx >= 0 {
		l.cache[minIdx] = b
	}
}

// clearCache removes b from the cache if present.
func (l *BlockList) clearCache(b *Block) {
	for i, c := range l.cache {
		if c == b {
			l.cache[i] = nil
			return
		}
	}
}
