// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package zblock

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// PageAllocator is the external page allocator collaborator: it hands out
// page-aligned regions of 2^order pages and takes them back. The handle
// encoding in handle.go depends on every returned address being
// PageSize-aligned.
type PageAllocator interface {
	AllocPages(order int) (addr uintptr, data []byte, err error)
	FreePages(addr uintptr, order int)
}

// MmapAllocator backs pages with anonymous mmap regions, which the kernel
// always returns page-aligned. This is the production PageAllocator.
type MmapAllocator struct{}

func (MmapAllocator) AllocPages(order int) (uintptr, []byte, error) {
	size := PageSize << order
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return 0, nil, fmt.Errorf("zblock: mmap %d bytes: %w", size, err)
	}
	return uintptr(unsafe.Pointer(&data[0])), data, nil
}

func (MmapAllocator) FreePages(addr uintptr, order int) {
	size := PageSize << order
	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	_ = unix.Munmap(data)
}

// HeapAllocator backs pages with regular Go heap allocations, manually
// aligned to PageSize by over-allocating and slicing. It exists for tests
// and for platforms where mmap is unavailable; it never returns memory to
// the runtime on FreePages (the GC reclaims it once unreferenced).
type HeapAllocator struct{}

func (HeapAllocator) AllocPages(order int) (uintptr, []byte, error) {
	size := PageSize << order
	raw := make([]byte, size+PageSize-1)
	base := uintptr(unsafe.Pointer(&raw[0]))
	aligned := (base + PageSize - 1) &^ (PageSize - 1)
	offset := int(aligned - base)
	data := raw[offset : offset+size]
	return aligned, data, nil
}

func (HeapAllocator) FreePages(addr uintptr, order int) {
	// Nothing to do: the aligned slice is unreferenced once the caller
	// drops it, and the Go GC reclaims the backing array.
}
