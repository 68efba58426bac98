// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package demohw implements simulated HFI hardware collaborators for the
// hfizblockd demo binary. Real HW_FEEDBACK_* registers and CPUID leaves are
// not available in user space; this package stands in for them so the rest
// of the pipeline (instance management, batching, scheduling) can run and
// be observed end to end.
package demohw

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/go-logr/logr"

	"github.com/kernelcap/hfizblock/pkg/hfi"
)

// Topology reports a fixed, uniform package/die layout: packages each
// split into dies, each die holding the same number of logical CPUs.
type Topology struct {
	Packages   int
	DiesPerPkg int
	CPUsPerDie int
}

func (t Topology) MaxPackages() int       { return t.Packages }
func (t Topology) MaxDiesPerPackage() int { return t.DiesPerPkg }

func (t Topology) LogicalDieID(cpu int) (int, error) {
	perPkg := t.DiesPerPkg * t.CPUsPerDie
	if perPkg <= 0 {
		return 0, fmt.Errorf("demohw: invalid topology")
	}
	pkg := cpu / perPkg
	dieLocal := (cpu % perPkg) / t.CPUsPerDie
	return pkg*t.DiesPerPkg + dieLocal, nil
}

func (t Topology) SMTSiblingsIdle(cpu int) bool { return true }

// Registers simulates HW_FEEDBACK_PTR/CONFIG and per-package thermal
// status with in-memory state. Jolt marks CPUs' thermal status pending and
// assigns them fresh class ids, standing in for a firmware HFI interrupt.
// It has no access to the instances' hardware tables, so their timestamps
// are not changed by a Jolt.
type Registers struct {
	mu      sync.Mutex
	leaf    hfi.CPUIDLeaf
	pending map[int]uint64 // cpu -> pending thermal status
	classID map[int]uint8  // cpu -> simulated HW_FEEDBACK_CHAR classid
	rng     *rand.Rand
}

func NewRegisters(leaf hfi.CPUIDLeaf, seed int64) *Registers {
	return &Registers{
		leaf:    leaf,
		pending: map[int]uint64{},
		classID: map[int]uint8{},
		rng:     rand.New(rand.NewSource(seed)),
	}
}

func (r *Registers) ReadHFILeaf(cpu int) (hfi.CPUIDLeaf, error) { return r.leaf, nil }

func (r *Registers) WriteFeedbackPtr(cpu int, physAddr uintptr) {}

func (r *Registers) WriteFeedbackConfig(cpu int, hfiEnable, itdEnable bool) {}

func (r *Registers) WriteThreadConfig(cpu int, enable bool) {}

func (r *Registers) ReadThreadFeedback(cpu int) (uint8, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.classID[cpu]
	return id, ok, nil
}

func (r *Registers) AckPackageThermalStatus(cpu int, pkgStatus uint64) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, cpu)
	return 0
}

// Jolt marks every cpu in cpus as having a pending thermal update and
// assigns each a fresh random IPC class id, simulating a firmware update.
func (r *Registers) Jolt(cpus []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cpu := range cpus {
		r.pending[cpu] = 1
		r.classID[cpu] = uint8(r.rng.Intn(4))
	}
}

func (r *Registers) PendingStatus(cpu int) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending[cpu]
}

// LoggingConsumer prints emitted capability events through logr, standing
// in for the real downstream scheduler/telemetry sink.
type LoggingConsumer struct {
	Logger logr.Logger
}

func (c LoggingConsumer) EmitCapabilityEvent(ctx context.Context, events []hfi.CapabilityEvent) error {
	c.Logger.Info("emitted capability batch", "count", len(events))
	for _, e := range events {
		c.Logger.V(1).Info("capability event", "cpu", e.CPU, "perf", e.Performance, "efficiency", e.Efficiency)
	}
	return nil
}

// SchedulerBridge just logs that IPC classes were enabled.
type SchedulerBridge struct {
	Logger logr.Logger
}

func (s SchedulerBridge) EnableIPCClasses() {
	s.Logger.Info("scheduler bridge: IPC classes enabled")
}
