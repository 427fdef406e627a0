// Package abi owns the memory handed across the host boundary: the one
// string buffer a measure returns per poll, and the packed pointer/length
// words exchanged with WebAssembly guests.
package abi

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/reglet-dev/scriptmeasure/domain/errors"
)

// MaxTotalAllocations is the default cap on bytes held by a HeapAllocator.
const MaxTotalAllocations = 100 * 1024 * 1024 // 100 MB

// Allocator hands out buffers of UTF-16 code units that stay valid until
// Free is called on the returned pointer.
type Allocator interface {
	Alloc(units int) (unsafe.Pointer, error)
	Free(p unsafe.Pointer)
}

// HeapAllocator allocates from the Go heap. Every buffer is pinned in a map
// so the GC keeps it alive while the host may still be reading it.
type HeapAllocator struct {
	mu             sync.Mutex
	ptrs           map[uintptr][]uint16 // ptr -> slice reference
	totalAllocated int
	limit          int
}

// HeapOption configures a HeapAllocator.
type HeapOption func(*HeapAllocator)

// WithMaxTotalAllocations overrides the byte cap. Non-positive values are ignored.
func WithMaxTotalAllocations(limit int) HeapOption {
	return func(a *HeapAllocator) {
		if limit > 0 {
			a.limit = limit
		}
	}
}

// NewHeapAllocator creates an allocator with the default cap.
func NewHeapAllocator(opts ...HeapOption) *HeapAllocator {
	a := &HeapAllocator{
		ptrs:  make(map[uintptr][]uint16),
		limit: MaxTotalAllocations,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Alloc reserves units UTF-16 code units. It fails when the request is empty,
// and with *errors.MemoryError when it would push the total past the cap.
func (a *HeapAllocator) Alloc(units int) (unsafe.Pointer, error) {
	if units <= 0 {
		return nil, fmt.Errorf("abi: invalid allocation size %d", units)
	}
	size := units * 2

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.totalAllocated+size > a.limit {
		return nil, &errors.MemoryError{Requested: size, Current: a.totalAllocated, Limit: a.limit}
	}

	buf := make([]uint16, units)
	p := unsafe.Pointer(&buf[0])
	a.ptrs[uintptr(p)] = buf // pin
	a.totalAllocated += size
	return p, nil
}

// Free releases a buffer returned by Alloc. Untracked pointers and repeated
// frees are ignored.
func (a *HeapAllocator) Free(p unsafe.Pointer) {
	if p == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	buf, ok := a.ptrs[uintptr(p)]
	if !ok {
		return
	}
	delete(a.ptrs, uintptr(p))
	// Account by the stored length, not anything the caller claims.
	a.totalAllocated -= len(buf) * 2
	if a.totalAllocated < 0 {
		a.totalAllocated = 0
	}
}

// FreeAllTracked drops every pinned buffer.
func (a *HeapAllocator) FreeAllTracked() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.ptrs)
	a.totalAllocated = 0
}

// Stats reports the number of live buffers and the bytes they hold.
func (a *HeapAllocator) Stats() (count, totalBytes int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.ptrs), a.totalAllocated
}

// PackPtrLen packs a pointer and length into a single uint64.
// Pointer is stored in the high 32 bits, length in the low 32 bits.
// Panics if ptr is 0 and length > 0, indicating an invalid state.
func PackPtrLen(ptr, length uint32) uint64 {
	if ptr == 0 && length > 0 {
		panic(fmt.Sprintf("abi: invalid pack - null pointer (0x0) with non-zero length (%d)", length))
	}
	return (uint64(ptr) << 32) | uint64(length)
}

// UnpackPtrLen unpacks a uint64 into its original pointer and length.
// Panics if ptr is 0 and length > 0, indicating an invalid packed value.
func UnpackPtrLen(packed uint64) (ptr, length uint32) {
	ptr = uint32(packed >> 32)
	length = uint32(packed)
	if ptr == 0 && length > 0 {
		panic(fmt.Sprintf("abi: invalid unpack - null pointer (0x0) with non-zero length (%d)", length))
	}
	return ptr, length
}
