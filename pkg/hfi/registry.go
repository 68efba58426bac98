// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package hfi

import (
	"github.com/go-logr/logr"
)

// instanceRegistry owns the fixed-size instances array: one slot per
// possible die, sized in NewManager from topology and never resized. It
// mirrors the shape of a typed collector registry — register-once,
// look-up-many — but keyed by die index instead of a metric type.
type instanceRegistry struct {
	logger    logr.Logger
	instances []*Instance // nil entries are dies with no online CPU yet
}

func newInstanceRegistry(logger logr.Logger, size int) *instanceRegistry {
	return &instanceRegistry{
		logger:    logger.WithName("hfi-registry"),
		instances: make([]*Instance, size),
	}
}

// get returns the instance at dieID, or nil if dieID is out of range or
// has not been initialized yet.
func (r *instanceRegistry) get(dieID int) *Instance {
	if dieID < 0 || dieID >= len(r.instances) {
		return nil
	}
	return r.instances[dieID]
}

// getOrCreate returns the existing instance for dieID, allocating a fresh
// (not-yet-table-initialized) one if this is the die's first CPU.
func (r *instanceRegistry) getOrCreate(dieID int) *Instance {
	inst := r.instances[dieID]
	if inst == nil {
		inst = newInstance(dieID)
		r.instances[dieID] = inst
		r.logger.V(1).Info("registered hfi instance", "die", dieID)
	}
	return inst
}

func (r *instanceRegistry) size() int { return len(r.instances) }
