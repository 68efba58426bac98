// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package hfi

import (
	"context"
	"sync"
)

// fakeTopology is a simple in-memory hfi.Topology for tests: one package
// per die, cpu N belongs to die N/cpusPerDie.
type fakeTopology struct {
	cpusPerDie  int
	maxPackages int
	idle        map[int]bool
}

func newFakeTopology(maxPackages, cpusPerDie int) *fakeTopology {
	return &fakeTopology{cpusPerDie: cpusPerDie, maxPackages: maxPackages, idle: make(map[int]bool)}
}

func (f *fakeTopology) MaxPackages() int       { return f.maxPackages }
func (f *fakeTopology) MaxDiesPerPackage() int { return 1 }
func (f *fakeTopology) LogicalDieID(cpu int) (int, error) {
	return cpu / f.cpusPerDie, nil
}
func (f *fakeTopology) SMTSiblingsIdle(cpu int) bool {
	return f.idle[cpu]
}

// fakeRegisters models the hardware surface in memory: a hw table per
// die, configuration register state, and a per-CPU thread feedback value.
type fakeRegisters struct {
	mu sync.Mutex

	leaf CPUIDLeaf

	tables map[int][]byte // dieID -> hw table bytes, owned by the test

	ackCount   map[int]int
	lastAck    map[int]uint64
	threadFeed map[int]struct {
		class uint8
		valid bool
	}
}

func newFakeRegisters(leaf CPUIDLeaf) *fakeRegisters {
	return &fakeRegisters{
		leaf:       leaf,
		tables:     make(map[int][]byte),
		ackCount:   make(map[int]int),
		lastAck:    make(map[int]uint64),
		threadFeed: make(map[int]struct {
			class uint8
			valid bool
		}),
	}
}

func (f *fakeRegisters) ReadHFILeaf(cpu int) (CPUIDLeaf, error) {
	return f.leaf, nil
}

func (f *fakeRegisters) WriteFeedbackPtr(cpu int, physAddr uintptr) {}

func (f *fakeRegisters) WriteFeedbackConfig(cpu int, hfiEnable, itdEnable bool) {}

func (f *fakeRegisters) WriteThreadConfig(cpu int, enable bool) {}

func (f *fakeRegisters) ReadThreadFeedback(cpu int) (uint8, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := f.threadFeed[cpu]
	return v.class, v.valid, nil
}

func (f *fakeRegisters) setThreadFeedback(cpu int, class uint8, valid bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threadFeed[cpu] = struct {
		class uint8
		valid bool
	}{class, valid}
}

func (f *fakeRegisters) AckPackageThermalStatus(cpu int, pkgStatus uint64) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ackCount[cpu]++
	f.lastAck[cpu] = pkgStatus
	return pkgStatus &^ 1
}

// fakeConsumer records every batch it is handed.
type fakeConsumer struct {
	mu     sync.Mutex
	calls  [][]CapabilityEvent
	failN  int // fail the first failN calls
	failed int
}

func (c *fakeConsumer) EmitCapabilityEvent(ctx context.Context, events []CapabilityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failed < c.failN {
		c.failed++
		return context.DeadlineExceeded
	}
	cp := make([]CapabilityEvent, len(events))
	copy(cp, events)
	c.calls = append(c.calls, cp)
	return nil
}

func (c *fakeConsumer) snapshot() [][]CapabilityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]CapabilityEvent, len(c.calls))
	copy(out, c.calls)
	return out
}

type fakeScheduler struct {
	mu      sync.Mutex
	enabled int
}

func (f *fakeScheduler) EnableIPCClasses() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled++
}
