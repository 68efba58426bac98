// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package hfi

import "sync"

// CPUModel identifies a CPU microarchitecture family for the purposes of
// the classification-accuracy gate in §4.3. Only the families named there
// are distinguished; everything else is ModelOther.
type CPUModel int

const (
	ModelOther CPUModel = iota
	ModelAlderLake
	ModelRaptorLake
)

// TaskState is one task's classification state: the committed class
// (scheduler-facing, 1-based; 0 means unclassified), the last observation
// (already shifted to the 1-based domain), and the debounce counter. Guarded by its own mutex so a
// classifier invocation and a concurrent read of the committed class never
// race.
type TaskState struct {
	mu       sync.Mutex
	ipcc     int
	ipccTmp  int
	ipccCntr int
}

// Committed returns the task's currently committed IPC class.
func (t *TaskState) Committed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ipcc
}

// classificationIsAccurate implements §4.3 step 3: for Alder Lake and
// Raptor Lake, a hardware classification is trusted only for the two
// highest classes or when no SMT sibling is runnable; every other model
// always trusts its classification.
func classificationIsAccurate(model CPUModel, hwClass int, smtSiblingsIdle bool) bool {
	switch model {
	case ModelAlderLake, ModelRaptorLake:
		return hwClass == 2 || hwClass == 3 || smtSiblingsIdle
	default:
		return true
	}
}

// UpdateIPCC implements the per-thread classifier in §4.3. It is called
// periodically (tick-aligned) for a running task on cpu. Feature-gating on
// ITD support and the feedback register's valid bit, the accuracy gate,
// and the debounce rule are all as specified; there is no error return
// because classifier invocations run in a context that, like the event
// handler, drops failures rather than propagating them.
func (m *Manager) UpdateIPCC(task *TaskState, cpu int, model CPUModel) {
	if !m.features.ThreadDirector {
		m.warnOnceNoITD()
		return
	}

	hwClass, valid, err := m.registers.ReadThreadFeedback(cpu)
	if err != nil || !valid {
		return
	}

	smtIdle := m.topology.SMTSiblingsIdle(cpu)
	if !classificationIsAccurate(model, int(hwClass), smtIdle) {
		return
	}

	obs := int(hwClass) + 1 // hardware domain is 0-based, scheduler domain is 1-based

	task.mu.Lock()
	defer task.mu.Unlock()

	if obs != task.ipccTmp {
		task.ipccCntr = 1
	} else {
		task.ipccCntr++
		if task.ipccCntr >= ClassDebouncerSkips {
			task.ipcc = obs
		}
	}
	task.ipccTmp = obs
}

func (m *Manager) warnOnceNoITD() {
	m.itdWarnOnce.Do(func() {
		m.logger.Info("hfi: thread director not supported, classifier disabled")
	})
}
