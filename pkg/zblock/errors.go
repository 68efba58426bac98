// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package zblock

import (
	"fmt"

	"github.com/kernelcap/hfizblock/pkg/errors"
)

var (
	// ErrInvalidSize is returned by Alloc for a degenerate request (size
	// zero).
	ErrInvalidSize = fmt.Errorf("zblock: requested size is zero")

	// ErrOutOfSpace is returned by Alloc when the requested size exceeds
	// PageSize, and also as a defensive sentinel when a block reports free
	// slots by count but none are actually FREE (should not happen if
	// freeSlots is maintained correctly).
	ErrOutOfSpace = fmt.Errorf("zblock: out of space for requested size")

	// ErrOutOfMemory is returned when the page allocator cannot satisfy a
	// new block allocation.
	ErrOutOfMemory = fmt.Errorf("zblock: page allocator exhausted")

	// ErrNoBlockToEvict is returned by ReclaimBlock (and surfaced by
	// Shrink) when no size class has a block eligible for reclaim: every
	// list is empty or its oldest block is in the free-slot cache.
	ErrNoBlockToEvict = fmt.Errorf("zblock: no block available to evict")

	// ErrHandleNotFound is returned by Free/Map/Unmap when a handle does
	// not resolve to a known block and slot.
	ErrHandleNotFound = fmt.Errorf("zblock: handle does not resolve to a live slot")
)

// errRetry is ReclaimBlock's signal that a block was chosen for reclaim but
// the eviction callback made no progress on it, so the caller should retry
// from the top rather than treat it as a hard failure. It is retryable so
// callers using pkg/errors.Retryable can distinguish it from
// ErrNoBlockToEvict.
var errRetry = errors.NewRetryable("zblock: reclaim made no progress, retry")

// ErrRetry reports whether err is ReclaimBlock's no-progress retry signal.
func ErrRetry(err error) bool {
	return errors.Retryable(err) && err.Error() == errRetry.Error()
}
