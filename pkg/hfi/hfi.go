// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package hfi implements a user-space reimplementation of the hardware
// feedback interface: a per-package/per-die table manager that ingests
// firmware capability tables, mirrors them locally, and emits capability
// updates to an external consumer, along with a debounced per-thread
// classifier that maps running tasks onto instructions-per-cycle classes.
package hfi

import "time"

// Bit widths and scaling factors taken from the hardware table layout this
// package mirrors. Capability values are reported by firmware in a
// narrower range and scaled up to [0, 1023] for the external consumer.
const (
	capabilityScaleShift = 2
	maxCapabilityValue   = 1023
)

// UpdateInterval is the delay between a processed event and the dispatch
// of that instance's capability table to the external consumer. An event
// that arrives while a dispatch for the same instance is still pending is
// folded into that pending dispatch.
const UpdateInterval = time.Second

// MaxNotifyCount bounds how many CPU capability entries are sent to the
// external consumer in a single call, so one instance update never blocks
// the consumer on an arbitrarily large payload.
const MaxNotifyCount = 16

// ClassDebouncerSkips is the number of consecutive, agreeing classification
// reads required before a task's IPC class is committed.
const ClassDebouncerSkips = 4

// UnclassifiedDefault is substituted for UnclassifiedClass when a consumer
// asks for a score before the first classification has landed.
const UnclassifiedDefault = 1

// UnclassifiedClass is the classifier's read-back value before any
// classification has occurred for a task.
const UnclassifiedClass = 0

func scaleCapability(raw uint32) int {
	v := int(raw) << capabilityScaleShift
	if v > maxCapabilityValue {
		return maxCapabilityValue
	}
	return v
}
