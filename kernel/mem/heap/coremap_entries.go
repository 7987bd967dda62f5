package heap

import (
	"reflect"
	"unsafe"

	"github.com/kidneyos-go/kernelcore/kernel/mem/coremap"
)

// entrySize is the in-memory size of a single coremap.Entry, used to size
// the dummy-allocator carve-out that backs the core map's own storage.
const entrySize = uint(unsafe.Sizeof(coremap.Entry{}))

// makeEntriesAt overlays a []coremap.Entry of length numFrames on top of
// the raw memory returned by the dummy allocator, the same SliceHeader
// overlay idiom mem.Memset uses to view a raw address as a typed slice.
func makeEntriesAt(addr uintptr, numFrames uint) []coremap.Entry {
	return *(*[]coremap.Entry)(unsafe.Pointer(&reflect.SliceHeader{
		Data: addr,
		Len:  int(numFrames),
		Cap:  int(numFrames),
	}))
}
