// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package hfi

import (
	"encoding/binary"
	"sync"
	"time"
	"unsafe"

	"github.com/kernelcap/hfizblock/pkg/ringbuffer"
)

const recentUpdatesCapacity = 16

// Instance is one package/die's table state: the hardware-visible region,
// a local mirror, the set of CPUs routed to it, and the two locks that
// serialize the event handler against the update worker.
//
// cpus is mutated only while the owning Manager holds its instance-wide
// lock; everything else here is self-synchronized.
type Instance struct {
	dieID int

	hdrOffset  int
	dataOffset int

	// hwTable and localTable are both table_pages*pageSize bytes, laid
	// out as: 8-byte timestamp, then a header of hdrSize bytes, then data
	// rows. hwTable stands in for the page-aligned, hardware-visible
	// region; in this process it is just another byte slice written to
	// by a Registers fake or a real mmap-backed implementation.
	hwTable    []byte
	localTable []byte

	cpus map[int]struct{}

	eventLock sync.Mutex
	tableLock sync.Mutex

	initialized bool // header/table allocated; set once, never cleared

	recent *ringbuffer.RingBuffer[time.Time]
}

func newInstance(dieID int) *Instance {
	rb, _ := ringbuffer.New[time.Time](recentUpdatesCapacity)
	return &Instance{
		dieID:  dieID,
		cpus:   make(map[int]struct{}),
		recent: rb,
	}
}

// DieID returns the die/package index this instance was allocated for.
func (inst *Instance) DieID() int { return inst.dieID }

// hwTableAddr returns the process address of the hardware table region,
// standing in for the page-aligned physical address a real Registers
// implementation would program into hardware.
func (inst *Instance) hwTableAddr() uintptr {
	if len(inst.hwTable) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&inst.hwTable[0]))
}

// allocateTables sizes and zeroes hwTable/localTable and records the
// header/data byte offsets. Called at most once per instance, under the
// manager's instance lock.
func (inst *Instance) allocateTables(f Features, pageSize int) {
	size := f.TablePages * pageSize
	inst.hwTable = make([]byte, size)
	inst.localTable = make([]byte, size)
	inst.hdrOffset = 8
	inst.dataOffset = 8 + f.HdrSize
	inst.initialized = true
}

// readTimestamp reads the 8-byte timestamp at the head of a table region.
func readTimestamp(table []byte) uint64 {
	return binary.LittleEndian.Uint64(table[:8])
}

func writeTimestamp(table []byte, ts uint64) {
	binary.LittleEndian.PutUint64(table[:8], ts)
}

// localTimestamp returns the mirror's current timestamp.
func (inst *Instance) localTimestamp() uint64 {
	return readTimestamp(inst.localTable)
}

// copyFromHardware copies the entire hardware table into the local mirror
// under tableLock; after this call the mirror's timestamp equals the
// hardware table's timestamp at the moment of copy.
func (inst *Instance) copyFromHardware() {
	inst.tableLock.Lock()
	defer inst.tableLock.Unlock()
	copy(inst.localTable, inst.hwTable)
	inst.recent.Push(instanceClock())
}

// instanceClock exists so tests can see update timestamps without this
// package reaching for time.Now() outside of a single seam.
var instanceClock = time.Now

// RecentUpdates returns the timestamps of the last mirror copies, oldest
// first, for diagnostics.
func (inst *Instance) RecentUpdates() []time.Time {
	return inst.recent.GetAll()
}

func (inst *Instance) addCPU(cpu int) {
	inst.cpus[cpu] = struct{}{}
}

func (inst *Instance) removeCPU(cpu int) {
	delete(inst.cpus, cpu)
}

func (inst *Instance) cpuCount() int {
	return len(inst.cpus)
}

func (inst *Instance) cpuList() []int {
	out := make([]int, 0, len(inst.cpus))
	for cpu := range inst.cpus {
		out = append(out, cpu)
	}
	return out
}
