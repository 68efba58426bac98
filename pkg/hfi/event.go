// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package hfi

// ProcessEvent is the interrupt-context entry point: called from a package
// thermal interrupt vector with the raw package-status word for cpu. It
// must never block on anything but the non-blocking event-lock
// acquisition, and it never returns an error — failures are silently
// ignored or logged at debug level, per the propagation policy for
// interrupt-context paths.
func (m *Manager) ProcessEvent(cpu int, pkgStatus uint64) {
	if pkgStatus == 0 {
		return
	}

	info, ok := m.cpus.get(cpu)
	if !ok || info.Instance == nil {
		return
	}
	inst := info.Instance

	if !inst.eventLock.TryLock() {
		// Another CPU in this package is already handling this update.
		return
	}

	if readTimestamp(inst.hwTable) == inst.localTimestamp() {
		inst.eventLock.Unlock()
		m.logger.V(1).Info("hfi: duplicate event, dropped", "cpu", cpu, "die", inst.dieID)
		return
	}

	inst.copyFromHardware()
	inst.eventLock.Unlock()

	m.registers.AckPackageThermalStatus(cpu, pkgStatus)

	m.worker.schedule(inst.dieID, UpdateInterval)
}
