// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package zblock

import (
	"fmt"
	"sync"
)

// Driver constructs Pools for a named compression backend (e.g. "zstd",
// "lzo"). It exists so a consumer of this package can register one pool
// per backend and look it up by name at the call site that compresses a
// page, mirroring how the original kernel allocator is instantiated once
// per zpool backend.
type Driver interface {
	Name() string
	NewPool(ops Ops) (*Pool, error)
}

// driver is the default Driver: it builds a Pool from a fixed schedule and
// page allocator supplied at registration time.
type driver struct {
	name      string
	schedule  []BlockDesc
	pageAlloc PageAllocator
}

func (d *driver) Name() string { return d.name }

func (d *driver) NewPool(ops Ops) (*Pool, error) {
	return NewPool(d.schedule, d.pageAlloc, ops)
}

var (
	driversMu sync.RWMutex
	drivers   = map[string]Driver{}
)

// RegisterDriver makes a Driver available under name for later Lookup. It
// panics on a duplicate name, matching the stdlib database/sql-style
// registration pattern: duplicate registration is a programming error
// caught at init time, not a runtime condition to recover from.
func RegisterDriver(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, dup := drivers[d.Name()]; dup {
		panic(fmt.Sprintf("zblock: RegisterDriver called twice for driver %q", d.Name()))
	}
	drivers[d.Name()] = d
}

// NewDriver builds a Driver named name using schedule and pageAlloc,
// without registering it. Most callers want RegisterDriver(NewDriver(...))
// once at startup and Lookup everywhere else.
func NewDriver(name string, schedule []BlockDesc, pageAlloc PageAllocator) Driver {
	return &driver{name: name, schedule: schedule, pageAlloc: pageAlloc}
}

// Lookup returns the driver registered under name, or false if none was.
func Lookup(name string) (Driver, bool) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[name]
	return d, ok
}
