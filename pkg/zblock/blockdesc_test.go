// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package zblock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSchedule_NonDecreasingAndValid(t *testing.T) {
	schedule := DefaultSchedule()
	require.NoError(t, validateSchedule(schedule))

	last := -1
	for _, d := range schedule {
		assert.GreaterOrEqual(t, d.SlotSize, last)
		assert.LessOrEqual(t, d.SlotsPerBlock, MaxSlots)
		last = d.SlotSize
	}
	assert.GreaterOrEqual(t, schedule[len(schedule)-1].SlotSize, PageSize)
}

func TestValidateSchedule_RejectsEmpty(t *testing.T) {
	assert.Error(t, validateSchedule(nil))
}

func TestValidateSchedule_RejectsDecreasingSizes(t *testing.T) {
	bad := []BlockDesc{
		{SlotSize: 128, SlotsPerBlock: 8, Order: 0},
		{SlotSize: 64, SlotsPerBlock: 8, Order: 0},
	}
	assert.Error(t, validateSchedule(bad))
}

func TestValidateSchedule_RejectsLastEntryBelowPageSize(t *testing.T) {
	bad := []BlockDesc{
		{SlotSize: 64, SlotsPerBlock: 8, Order: 0},
	}
	assert.Error(t, validateSchedule(bad))
}

func TestValidateSchedule_RejectsInvalidSlotsPerBlock(t *testing.T) {
	bad := []BlockDesc{
		{SlotSize: PageSize, SlotsPerBlock: MaxSlots + 1, Order: 0},
	}
	assert.Error(t, validateSchedule(bad))
}
