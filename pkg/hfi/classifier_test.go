// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package hfi

import (
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, leaf CPUIDLeaf, maxPackages, cpusPerDie, maxCPUs int) (*Manager, *fakeRegisters, *fakeTopology, *fakeConsumer) {
	t.Helper()
	regs := newFakeRegisters(leaf)
	topo := newFakeTopology(maxPackages, cpusPerDie)
	consumer := &fakeConsumer{}

	m, err := NewManager(ManagerOptions{
		Logger:    logr.Discard(),
		Registers: regs,
		Topology:  topo,
		Consumer:  consumer,
		MaxCPUs:   maxCPUs,
	})
	require.NoError(t, err)
	return m, regs, topo, consumer
}

// TestDebounce_RequiresConsecutiveAgreement verifies observations 3,3,3,3
// commit to ipcc==3 on the fourth; 3,3,3,2,3 does not commit.
func TestDebounce_RequiresConsecutiveAgreement(t *testing.T) {
	m, regs, _, _ := newTestManager(t, CPUIDLeaf{
		PerformanceCapability: true,
		ThreadDirector:        true,
		NrClasses:             4,
	}, 1, 8, 8)
	m.Online(0)

	t.Run("consistent observations commit on the fourth", func(t *testing.T) {
		task := &TaskState{}
		regs.setThreadFeedback(0, 2, true) // hw_class 2 -> obs 3
		for i := 0; i < 3; i++ {
			m.UpdateIPCC(task, 0, ModelOther)
			assert.Equal(t, 0, task.Committed(), "should not commit before 4th agreeing observation")
		}
		m.UpdateIPCC(task, 0, ModelOther)
		assert.Equal(t, 3, task.Committed())
	})

	t.Run("mismatch resets the debounce counter", func(t *testing.T) {
		task := &TaskState{}
		regs.setThreadFeedback(0, 2, true) // obs 3
		m.UpdateIPCC(task, 0, ModelOther)
		m.UpdateIPCC(task, 0, ModelOther)
		m.UpdateIPCC(task, 0, ModelOther)
		regs.setThreadFeedback(0, 1, true) // obs 2, breaks the streak
		m.UpdateIPCC(task, 0, ModelOther)
		regs.setThreadFeedback(0, 2, true) // obs 3 again, counter restarts at 1
		m.UpdateIPCC(task, 0, ModelOther)
		assert.Equal(t, 0, task.Committed(), "counter reset means no commit yet")
	})
}

func TestUpdateIPCC_NoThreadDirector(t *testing.T) {
	m, regs, _, _ := newTestManager(t, CPUIDLeaf{PerformanceCapability: true}, 1, 8, 8)
	m.Online(0)
	regs.setThreadFeedback(0, 2, true)

	task := &TaskState{}
	m.UpdateIPCC(task, 0, ModelOther)
	assert.Equal(t, 0, task.Committed())
}

func TestUpdateIPCC_InvalidFeedbackIgnored(t *testing.T) {
	m, regs, _, _ := newTestManager(t, CPUIDLeaf{
		PerformanceCapability: true,
		ThreadDirector:        true,
		NrClasses:             4,
	}, 1, 8, 8)
	m.Online(0)
	regs.setThreadFeedback(0, 2, false) // valid bit clear

	task := &TaskState{}
	m.UpdateIPCC(task, 0, ModelOther)
	assert.Equal(t, 0, task.ipccTmp)
}

func TestClassificationIsAccurate_AlderLakeGate(t *testing.T) {
	assert.True(t, classificationIsAccurate(ModelAlderLake, 2, false))
	assert.True(t, classificationIsAccurate(ModelAlderLake, 3, false))
	assert.False(t, classificationIsAccurate(ModelAlderLake, 1, false))
	assert.True(t, classificationIsAccurate(ModelAlderLake, 1, true))
	assert.True(t, classificationIsAccurate(ModelOther, 0, false))
}
