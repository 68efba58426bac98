// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package hfi

import "context"

// CPUIDLeaf is the decoded form of the CPU-identification leaf this
// package reads once at feature-parse time. Decoding the raw EDX/ECX words
// into named fields is the caller's job (it lives in the Registers
// implementation); this package only ever sees the decoded shape.
type CPUIDLeaf struct {
	// PerformanceCapability reports whether the performance capability bit
	// is set. If false, the feature is unsupported and parsing fails.
	PerformanceCapability bool
	// EnergyEfficiency reports whether the efficiency capability bit is set.
	EnergyEfficiency bool
	// TablePages is the raw table_pages field; the real page count is
	// TablePages+1.
	TablePages int
	// RowIndex is this CPU's row index within the package table.
	RowIndex int16
	// ThreadDirector reports whether Intel Thread Director (per-thread
	// classification) is supported.
	ThreadDirector bool
	// NrClasses is the number of IPC classes when ThreadDirector is
	// supported. Ignored otherwise (the effective count is always 1).
	NrClasses int
}

// Registers is the firmware/MSR collaborator. Implementations talk to real
// hardware; tests use an in-memory fake.
type Registers interface {
	// ReadHFILeaf returns the decoded CPU-identification leaf for cpu.
	ReadHFILeaf(cpu int) (CPUIDLeaf, error)
	// WriteFeedbackPtr programs HW_FEEDBACK_PTR with the physical address
	// of the instance's hardware table, already OR'd with the valid bit.
	WriteFeedbackPtr(cpu int, physAddr uintptr)
	// WriteFeedbackConfig sets or clears the HFI-enable and ITD-enable
	// bits of HW_FEEDBACK_CONFIG. Callers never clear bits that are
	// already set; this method is never asked to disable a running
	// instance.
	WriteFeedbackConfig(cpu int, hfiEnable, itdEnable bool)
	// WriteThreadConfig sets the per-thread feedback enable bit of
	// HW_FEEDBACK_THREAD_CONFIG.
	WriteThreadConfig(cpu int, enable bool)
	// ReadThreadFeedback reads HW_FEEDBACK_CHAR for cpu, returning the
	// low-8-bit class id and the top valid bit.
	ReadThreadFeedback(cpu int) (classID uint8, valid bool, err error)
	// AckPackageThermalStatus clears the HFI-updated bit of the package
	// thermal status register for the package owning cpu, returning the
	// value written back.
	AckPackageThermalStatus(cpu int, pkgStatus uint64) uint64
}

// Topology is the collaborator resolving logical CPUs to packages/dies and
// SMT sibling state.
type Topology interface {
	MaxPackages() int
	MaxDiesPerPackage() int
	// LogicalDieID returns the die index cpu belongs to, in
	// [0, MaxPackages()*MaxDiesPerPackage()).
	LogicalDieID(cpu int) (int, error)
	// SMTSiblingsIdle reports whether every SMT sibling of cpu is
	// currently idle (not runnable).
	SMTSiblingsIdle(cpu int) bool
}

// CapabilityEvent is one CPU's scaled performance/efficiency capability,
// as handed to the external consumer.
type CapabilityEvent struct {
	CPU         int
	Performance int // [0, 1023]
	Efficiency  int // [0, 1023]
}

// Consumer is the external sink for batched capability events, e.g. a
// netlink-style broadcaster in the original system.
type Consumer interface {
	EmitCapabilityEvent(ctx context.Context, events []CapabilityEvent) error
}

// SchedulerBridge notifies an external scheduler that per-thread IPC
// classes are now available.
type SchedulerBridge interface {
	EnableIPCClasses()
}
