package mem

import (
	"reflect"
	"unsafe"
)

// Memcopy copies size bytes from src to dst. It is used by
// TCB.CopyStackFrom to duplicate stack contents.
func Memcopy(dst, src uintptr, size Size) {
	if size == 0 {
		return
	}

	srcSlice := *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  int(size),
		Cap:  int(size),
		Data: src,
	}))
	dstSlice := *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  int(size),
		Cap:  int(size),
		Data: dst,
	}))

	copy(dstSlice, srcSlice)
}
