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

// TestOnline_BindsIndexAndInstance verifies every CPU bound to an instance
// has a non-negative index and a back-reference to that instance.
func TestOnline_BindsIndexAndInstance(t *testing.T) {
	m, _, _, _ := newTestManager(t, CPUIDLeaf{PerformanceCapability: true, RowIndex: 3}, 2, 4, 8)

	for cpu := 0; cpu < 8; cpu++ {
		m.Online(cpu)
	}

	for cpu := 0; cpu < 8; cpu++ {
		info, ok := m.cpus.get(cpu)
		require.True(t, ok)
		assert.GreaterOrEqual(t, info.Index, int16(0))
		require.NotNil(t, info.Instance)

		dieID, err := m.topology.LogicalDieID(cpu)
		require.NoError(t, err)
		_, present := info.Instance.cpus[cpu]
		assert.True(t, present)
		assert.Equal(t, dieID, info.Instance.dieID)
	}
}

func TestOnline_SharesInstanceAcrossPackage(t *testing.T) {
	m, _, _, _ := newTestManager(t, CPUIDLeaf{PerformanceCapability: true}, 1, 4, 4)

	m.Online(0)
	first := m.registry.get(0)
	require.NotNil(t, first)
	firstAddr := first.hwTableAddr()

	m.Online(1)
	second := m.registry.get(0)
	assert.Same(t, first, second, "CPUs on the same die share one instance")
	assert.Equal(t, firstAddr, second.hwTableAddr(), "hw table is allocated exactly once")
	assert.Equal(t, 2, second.cpuCount())
}

func TestOffline_RemovesCPUWithoutFreeingState(t *testing.T) {
	m, _, _, _ := newTestManager(t, CPUIDLeaf{PerformanceCapability: true}, 1, 2, 2)
	m.Online(0)
	m.Online(1)

	inst := m.registry.get(0)
	require.NotNil(t, inst)
	require.Equal(t, 2, inst.cpuCount())

	m.Offline(0)
	assert.Equal(t, 1, inst.cpuCount())
	assert.NotNil(t, inst.hwTable, "offline never frees the hardware table")
}

func TestOnline_UnsupportedLeafLeavesInstancesUnbound(t *testing.T) {
	m, _, _, _ := newTestManager(t, CPUIDLeaf{PerformanceCapability: false}, 1, 1, 1)
	m.Online(0)
	assert.Nil(t, m.registry.get(0))
}
