// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package hfi

// Online implements §4.4: binds cpu to its package instance, initializes
// the instance's hardware table exactly once per process lifetime, and
// enables HFI (and ITD, if supported) in the configuration register. It
// never returns an error — an unsupported or out-of-range CPU is simply
// left unbound, matching the "Unavailable" propagation policy in §7.
func (m *Manager) Online(cpu int) {
	dieID, err := m.topology.LogicalDieID(cpu)
	if err != nil || dieID < 0 || dieID >= m.registry.size() {
		return
	}

	var unsupported bool
	m.featuresOnce.Do(func() {
		leaf, err := m.registers.ReadHFILeaf(cpu)
		if err != nil {
			unsupported = true
			return
		}
		f, err := ParseFeatures(leaf)
		if err != nil {
			unsupported = true
			return
		}
		m.features = f
		m.scores = NewScoreTable(m.maxCPUs, f.NrClasses)
	})
	if unsupported || m.scores == nil {
		return
	}

	info := m.cpus.getOrCreate(cpu)

	m.mu.Lock()
	defer m.mu.Unlock()

	inst := m.registry.getOrCreate(dieID)
	info.Instance = inst

	if info.Index < 0 {
		leaf, err := m.registers.ReadHFILeaf(cpu)
		if err == nil {
			info.Index = leaf.RowIndex
		}
	}

	if m.features.ThreadDirector {
		m.registers.WriteThreadConfig(cpu, true)
	}

	if inst.initialized {
		inst.addCPU(cpu)
		return
	}

	inst.allocateTables(m.features, m.pageSize)
	// The address here stands in for the real page-aligned physical
	// address of inst.hwTable; a production Registers implementation
	// backed by real hardware would derive it from the mmap'd region.
	m.registers.WriteFeedbackPtr(cpu, inst.hwTableAddr())
	inst.addCPU(cpu)

	m.registers.WriteFeedbackConfig(cpu, true, m.features.ThreadDirector)

	if m.features.ThreadDirector && m.scheduler != nil {
		m.scheduler.EnableIPCClasses()
	}
}

// Offline implements §4.4: remove cpu from its instance's CPU set. No
// memory is freed and hardware is never reprogrammed — some hardware
// remembers old table addresses after reprogramming, so a later online of
// a different CPU on the same die must not risk rewriting the pointer.
func (m *Manager) Offline(cpu int) {
	info, ok := m.cpus.get(cpu)
	if !ok || info.Instance == nil {
		return
	}

	m.mu.Lock()
	info.Instance.removeCPU(cpu)
	m.mu.Unlock()
}
