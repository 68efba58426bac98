// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package hfi

import (
	"fmt"
	"sync/atomic"
)

// ErrInvalidCPU and ErrInvalidClass are returned by ScoreTable lookups
// when the caller passes an out-of-range cpu or class.
var (
	ErrInvalidCPU   = fmt.Errorf("hfi: cpu out of range")
	ErrInvalidClass = fmt.Errorf("hfi: class out of range")
)

// ScoreTable holds per-CPU, per-class IPC capability scores. The update
// worker is the sole writer; any number of readers (an external
// scheduler) may call Get concurrently. Publication uses relaxed atomic
// stores rather than a lock, since scheduler fast-path latency must not
// wait on the update worker.
type ScoreTable struct {
	nrClasses int
	nrCPUs    int
	scores    []atomic.Int32 // row-major: cpu*nrClasses + class
}

// NewScoreTable allocates a score table for nrCPUs CPUs and nrClasses IPC
// classes, all initialized to zero.
func NewScoreTable(nrCPUs, nrClasses int) *ScoreTable {
	return &ScoreTable{
		nrClasses: nrClasses,
		nrCPUs:    nrCPUs,
		scores:    make([]atomic.Int32, nrCPUs*nrClasses),
	}
}

func (s *ScoreTable) index(cpu, class int) (int, error) {
	if cpu < 0 || cpu >= s.nrCPUs {
		return 0, ErrInvalidCPU
	}
	if class < 0 || class >= s.nrClasses {
		return 0, ErrInvalidClass
	}
	return cpu*s.nrClasses + class, nil
}

// Set publishes a new score for (cpu, class). Called only by the update
// worker.
func (s *ScoreTable) Set(cpu, class int, value int32) error {
	idx, err := s.index(cpu, class)
	if err != nil {
		return err
	}
	s.scores[idx].Store(value)
	return nil
}

// Get reads the published score for (cpu, class) with a relaxed atomic load.
func (s *ScoreTable) Get(cpu, class int) (int32, error) {
	idx, err := s.index(cpu, class)
	if err != nil {
		return 0, err
	}
	return s.scores[idx].Load(), nil
}

// GetIPCCScore returns the published score for a task's committed IPC
// class on cpu. ipcc is in the scheduler-facing domain (1-based);
// UnclassifiedClass (0) is treated as UnclassifiedDefault.
func (s *ScoreTable) GetIPCCScore(ipcc, cpu int) (int32, error) {
	if ipcc == UnclassifiedClass {
		ipcc = UnclassifiedDefault
	}
	return s.Get(cpu, ipcc-1)
}
