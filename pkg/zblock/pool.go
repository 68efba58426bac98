// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package zblock

import (
	"fmt"
	"sync/atomic"
)

// Ops bundles the callbacks a Pool needs from its owner. Evict is invoked
// during reclaim for every occupied or unmapped slot of the block being
// evicted; it must not call back into Free for the same handle — the
// reclaimer already owns that slot's transition.
type Ops struct {
	Evict func(handle Handle) error
}

// Pool is a complete allocator instance: one BlockList per size class, an
// eviction callback, and a single-writer allocation gate (allocFlag) that
// serializes *new block* allocation within the pool without serializing
// ordinary slot allocation.
type Pool struct {
	schedule  []BlockDesc
	lists     []*BlockList
	ops       Ops
	pageAlloc PageAllocator

	allocFlag atomic.Bool
}

// NewPool validates schedule and builds a pool backed by pageAlloc, using
// ops.Evict during reclaim.
func NewPool(schedule []BlockDesc, pageAlloc PageAllocator, ops Ops) (*Pool, error) {
	if err := validateSchedule(schedule); err != nil {
		return nil, err
	}
	if pageAlloc == nil {
		return nil, fmt.Errorf("zblock: page allocator is required")
	}
	if ops.Evict == nil {
		return nil, fmt.Errorf("zblock: evict callback is required")
	}

	p := &Pool{
		schedule:  schedule,
		ops:       ops,
		pageAlloc: pageAlloc,
		lists:     make([]*BlockList, len(schedule)),
	}
	for i, d := range schedule {
		p.lists[i] = newBlockList(d)
	}
	return p, nil
}

// TotalSize sums over every size class: block_count * (page_size << order).
func (p *Pool) TotalSize() int64 {
	var total int64
	for i, l := range p.lists {
		l.mu.Lock()
		total += l.blockCount * int64(PageSize<<p.schedule[i].Order)
		l.mu.Unlock()
	}
	return total
}
