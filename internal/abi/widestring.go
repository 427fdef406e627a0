package abi

import (
	"unicode/utf16"
	"unsafe"
)

// WideString is a NUL-terminated UTF-16 buffer owned by the bridge. The host
// may read it through Ptr until the next poll replaces it or Free is called.
type WideString struct {
	ptr   unsafe.Pointer
	units int // including the terminator
	alloc Allocator
}

// NewWideString encodes s and copies it into a buffer from alloc.
func NewWideString(alloc Allocator, s string) (*WideString, error) {
	encoded := utf16.Encode([]rune(s))
	units := len(encoded) + 1
	p, err := alloc.Alloc(units)
	if err != nil {
		return nil, err
	}
	dst := unsafe.Slice((*uint16)(p), units)
	copy(dst, encoded)
	dst[units-1] = 0
	return &WideString{ptr: p, units: units, alloc: alloc}, nil
}

// Ptr returns the address of the first code unit, or nil once freed.
func (w *WideString) Ptr() unsafe.Pointer {
	if w == nil {
		return nil
	}
	return w.ptr
}

// String decodes the buffer through its pointer, stopping at the first NUL.
func (w *WideString) String() string {
	if w == nil || w.ptr == nil {
		return ""
	}
	return decode(unsafe.Slice((*uint16)(w.ptr), w.units))
}

// Free returns the buffer to its allocator. Safe to call more than once.
func (w *WideString) Free() {
	if w == nil || w.ptr == nil {
		return
	}
	w.alloc.Free(w.ptr)
	w.ptr = nil
	w.units = 0
}

// Freed reports whether the buffer has been released.
func (w *WideString) Freed() bool {
	return w == nil || w.ptr == nil
}

// DecodeWide reads a NUL-terminated UTF-16 string from memory the bridge does
// not own, such as command arguments passed in by the host. At most maxUnits
// code units are examined.
func DecodeWide(p unsafe.Pointer, maxUnits int) string {
	if p == nil || maxUnits <= 0 {
		return ""
	}
	n := 0
	for n < maxUnits && *(*uint16)(unsafe.Add(p, n*2)) != 0 {
		n++
	}
	return string(utf16.Decode(unsafe.Slice((*uint16)(p), n)))
}

func decode(units []uint16) string {
	for i, u := range units {
		if u == 0 {
			units = units[:i]
			break
		}
	}
	return string(utf16.Decode(units))
}
