package elf

import (
	"encoding/binary"
	"testing"
)

// buildMinimalELF assembles a 64-bit LE ELF header plus a single PT_LOAD
// program header describing a writable .data segment, with no section
// headers (this loader never reads them).
func buildMinimalELF(entry, vaddr uint64, fileOffset, fileSize, memSize uint64, writable bool) []byte {
	const ehSize = 64
	const phSize = 56

	buf := make([]byte, ehSize+phSize)
	e := binary.LittleEndian

	buf[0], buf[1], buf[2], buf[3] = 0x7f, 'E', 'L', 'F'
	buf[4] = 2 // ELFCLASS64
	buf[5] = 1 // ELFDATA2LSB
	e.PutUint64(buf[24:32], entry)
	e.PutUint64(buf[32:40], ehSize) // e_phoff
	e.PutUint16(buf[54:56], phSize) // e_phentsize
	e.PutUint16(buf[56:58], 1)      // e_phnum

	ph := buf[ehSize:]
	e.PutUint32(ph[0:4], ptLoad)
	flags := uint32(0)
	if writable {
		flags |= pfWrite
	}
	e.PutUint32(ph[4:8], flags)
	e.PutUint64(ph[8:16], fileOffset)
	e.PutUint64(ph[16:24], vaddr)
	e.PutUint64(ph[32:40], fileSize)
	e.PutUint64(ph[40:48], memSize)

	return buf
}

func TestParseSingleLoadSegment(t *testing.T) {
	image := buildMinimalELF(0x8048000, 0x8048000, 0x1000, 0x100, 0x100, true)

	entry, areas, err := Parse(image)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry != 0x8048000 {
		t.Fatalf("expected entry 0x8048000; got %x", entry)
	}
	if len(areas) != 1 {
		t.Fatalf("expected exactly one VMArea; got %d", len(areas))
	}

	area := areas[0]
	if area.VMStart != 0x8048000 || area.VMEnd != 0x8048100 {
		t.Fatalf("unexpected VMArea range: %x-%x", area.VMStart, area.VMEnd)
	}
	if !area.Writable {
		t.Fatal("expected the segment to be marked writable")
	}
}

func TestParseRejectsBadMagic(t *testing.T) {
	image := make([]byte, 64) // a full header's length, so only the magic check can reject it
	copy(image, "not an elf file at all")
	if _, _, err := Parse(image); err == nil {
		t.Fatal("expected an error for a non-ELF image")
	}
}

func TestParseRejectsTruncatedImage(t *testing.T) {
	if _, _, err := Parse(make([]byte, 10)); err == nil {
		t.Fatal("expected an error for an image shorter than the ELF header")
	}
}
