// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package zblock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLookupDriver(t *testing.T) {
	name := "zblock-test-driver"
	d := NewDriver(name, DefaultSchedule(), HeapAllocator{})
	RegisterDriver(d)

	got, ok := Lookup(name)
	require.True(t, ok)
	assert.Equal(t, name, got.Name())

	pool, err := got.NewPool(noopEvictOps())
	require.NoError(t, err)
	assert.NotNil(t, pool)
}

func TestRegisterDriver_PanicsOnDuplicate(t *testing.T) {
	name := "zblock-test-driver-dup"
	RegisterDriver(NewDriver(name, DefaultSchedule(), HeapAllocator{}))
	assert.Panics(t, func() {
		RegisterDriver(NewDriver(name, DefaultSchedule(), HeapAllocator{}))
	})
}

func TestLookup_UnknownDriver(t *testing.T) {
	_, ok := Lookup("does-not-exist")
	assert.False(t, ok)
}
