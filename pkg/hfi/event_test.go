// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package hfi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessEvent_ZeroStatusIgnored(t *testing.T) {
	m, regs, _, _ := newTestManager(t, CPUIDLeaf{PerformanceCapability: true}, 1, 2, 2)
	m.Online(0)
	m.ProcessEvent(0, 0)
	assert.Equal(t, 0, regs.ackCount[0])
}

func TestProcessEvent_UnknownCPUIgnored(t *testing.T) {
	m, regs, _, _ := newTestManager(t, CPUIDLeaf{PerformanceCapability: true}, 1, 2, 2)
	m.ProcessEvent(5, 1) // never onlined
	assert.Equal(t, 0, regs.ackCount[5])
}

// TestProcessEvent_Dedup verifies that once the hardware timestamp has
// been mirrored, a second call with the same timestamp is a no-op
// duplicate, and the mirror's timestamp exactly matches the hardware
// table's timestamp at the moment of copy.
func TestProcessEvent_Dedup(t *testing.T) {
	m, regs, _, _ := newTestManager(t, CPUIDLeaf{PerformanceCapability: true}, 1, 2, 2)
	m.Online(0)
	m.Online(1)

	inst := m.registry.get(0)
	require.NotNil(t, inst)
	writeTimestamp(inst.hwTable, 42)

	m.ProcessEvent(0, 1)
	m.ProcessEvent(1, 1)

	assert.Equal(t, uint64(42), inst.localTimestamp(), "mirror timestamp matches hw timestamp")
	assert.Len(t, inst.RecentUpdates(), 1, "exactly one memcpy for two calls with the same timestamp")
	assert.Equal(t, 1, regs.ackCount[0]+regs.ackCount[1], "exactly one of the two calls acknowledges")
}

func TestProcessEvent_SchedulesWork(t *testing.T) {
	m, _, _, consumer := newTestManager(t, CPUIDLeaf{PerformanceCapability: true, EnergyEfficiency: true}, 1, 1, 1)
	m.Online(0)

	inst := m.registry.get(0)
	require.NotNil(t, inst)
	writeTimestamp(inst.hwTable, 7)
	row := inst.dataOffset
	inst.hwTable[row] = 10   // perf cap
	inst.hwTable[row+1] = 20 // eff cap

	m.ProcessEvent(0, 1)

	ctx := t.Context()
	m.worker.process(ctx, 0) // drive the scheduled work synchronously for the test

	calls := consumer.snapshot()
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 1)
	assert.Equal(t, 0, calls[0][0].CPU)
	assert.Equal(t, 40, calls[0][0].Performance) // 10 << 2
	assert.Equal(t, 80, calls[0][0].Efficiency)  // 20 << 2
}
