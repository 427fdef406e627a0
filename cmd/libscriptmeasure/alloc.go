package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// cAllocator hands out C heap buffers, so the host may keep pointers to
// them without involving the Go garbage collector.
type cAllocator struct{}

func (cAllocator) Alloc(units int) (unsafe.Pointer, error) {
	if units <= 0 {
		return nil, fmt.Errorf("invalid allocation of %d units", units)
	}
	p := C.calloc(C.size_t(units), 2)
	if p == nil {
		return nil, fmt.Errorf("calloc of %d units failed", units)
	}
	return p, nil
}

func (cAllocator) Free(p unsafe.Pointer) {
	if p != nil {
		C.free(p)
	}
}
