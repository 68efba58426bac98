// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package zblock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandleRoundTrip(t *testing.T) {
	cases := []struct {
		addr      uintptr
		blockType int
		slot      int
	}{
		{addr: 0x1000, blockType: 0, slot: 0},
		{addr: 0x1000, blockType: 5, slot: 17},
		{addr: 0x7fff00002000, blockType: len(DefaultSchedule()) - 1, slot: MaxSlots - 1},
	}

	for _, c := range cases {
		h := encodeHandle(c.addr, c.blockType, c.slot)
		addr, blockType, slot := decodeHandle(h)
		assert.Equal(t, c.addr, addr)
		assert.Equal(t, c.blockType, blockType)
		assert.Equal(t, c.slot, slot)
	}
}
