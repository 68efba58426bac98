// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package zblock implements a slab-style pool allocator for opaque,
// compressed-page-sized byte payloads: a fixed schedule of block sizes,
// each block subdivided into fixed slots, bit-packed handles, and an
// oldest-block-first reclaim path driven by a caller-supplied eviction
// callback.
package zblock

import "fmt"

// PageSize is the allocation granularity blocks are measured in. Handle
// encoding (see handle.go) requires every block to start on a PageSize
// boundary.
const PageSize = 4096

// SlotBits is the number of low bits of a handle reserved for the slot
// index (the block type sits in the page-offset bits above them); MaxSlots
// is derived from it.
const (
	SlotBits = 5
	MaxSlots = 1 << SlotBits // 32

	// BlockCacheSize bounds how many blocks a single size class keeps in
	// its "known free slot" cache.
	BlockCacheSize = 32
)

// wordSize is the alignment slot sizes are rounded down to, mirroring the
// machine-word rounding the original schedule uses.
const wordSize = 8

// BlockDesc describes one size class: how many bytes a slot holds, how
// many slots make up a block, and the block's order (the block spans
// 2^order pages).
type BlockDesc struct {
	SlotSize      int
	SlotsPerBlock int
	Order         int
}

func blockDataSize(order int) int {
	return (PageSize << order) - blockHeaderSize
}

func slotSize(slotsPerBlock, order int) int {
	raw := blockDataSize(order) / slotsPerBlock
	return raw &^ (wordSize - 1)
}

// DefaultSchedule returns the block-size schedule this package ships with:
// a monotonically non-decreasing sequence of slot sizes, built the same
// way the original fixed table is: for each order, try a descending
// sequence of slot counts and keep only the ones that are both
// representable (<= MaxSlots) and produce a genuinely new slot size.
func DefaultSchedule() []BlockDesc {
	type bucket struct {
		order      int
		slotCounts []int
	}

	buckets := []bucket{
		{order: 0, slotCounts: []int{32, 28, 24, 21, 18, 16, 14, 12, 10, 9, 8, 7}},
		{order: 1, slotCounts: []int{16, 14, 12, 10, 9, 8, 7}},
		{order: 2, slotCounts: []int{8, 7}},
		{order: 3, slotCounts: []int{7}},
	}

	var schedule []BlockDesc
	lastSize := -1
	for _, b := range buckets {
		for _, slots := range b.slotCounts {
			if slots > MaxSlots {
				continue
			}
			size := slotSize(slots, b.order)
			if size <= lastSize {
				continue
			}
			schedule = append(schedule, BlockDesc{
				SlotSize:      size,
				SlotsPerBlock: slots,
				Order:         b.order,
			})
			lastSize = size
		}
	}
	return schedule
}

// validateSchedule enforces the invariants the allocator and handle
// encoding both depend on: non-decreasing slot sizes, a last entry whose
// slot size covers a full page, and a slot count within MaxSlots.
func validateSchedule(schedule []BlockDesc) error {
	if len(schedule) == 0 {
		return fmt.Errorf("zblock: empty block schedule")
	}
	if len(schedule) > PageSize>>SlotBits {
		return fmt.Errorf("zblock: schedule has more block types than the handle encoding can address")
	}
	last := -1
	for i, d := range schedule {
		if d.SlotsPerBlock <= 0 || d.SlotsPerBlock > MaxSlots {
			return fmt.Errorf("zblock: block type %d has invalid slots_per_block %d", i, d.SlotsPerBlock)
		}
		if d.SlotSize < last {
			return fmt.Errorf("zblock: block schedule slot sizes must be non-decreasing")
		}
		last = d.SlotSize
	}
	if schedule[len(schedule)-1].SlotSize < PageSize {
		return fmt.Errorf("zblock: last block type's slot size must be >= page size")
	}
	return nil
}
