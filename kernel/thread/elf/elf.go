// Package elf implements the minimal ELF64 program-header reader that TCB
// construction needs: given a raw ELF image it returns the entry point and
// the loadable segments as VMAreas, nothing more.
//
// Grounded on original_source's user_program::elf_loader::parse_elf call
// shape (parse_elf(elf_data) -> (entrypoint, vm_areas)); spec.md's
// Non-goals explicitly exclude "the ELF parser itself" from scope, so this
// walks just enough of the program header table to produce that tuple. It
// is deliberately not built on the standard library's debug/elf, which
// expects an io.ReaderAt over a file rather than a raw byte slice handed
// in by a bootloader, and exposes section headers, symbol tables and
// relocations this loader has no use for.
package elf

import (
	"encoding/binary"

	"github.com/kidneyos-go/kernelcore/kernel/errors"
)

const (
	ptLoad = 1

	pfExecute = 1
	pfWrite   = 2
)

var (
	errBadMagic  = errors.New(errors.KindUnsupported, "elf", "not a 64-bit little-endian ELF image")
	errTruncated = errors.New(errors.KindUnsupported, "elf", "program header table extends past image")
)

// VMArea describes one loadable segment of an ELF image: the virtual
// address range it should be mapped to, the byte offset of its contents
// within the image, and whether the mapping should be writable.
type VMArea struct {
	VMStart    uintptr
	VMEnd      uintptr
	FileOffset uint64
	Writable   bool
}

// Parse walks the program header table of a 64-bit little-endian ELF
// image and returns its entry point plus one VMArea per PT_LOAD segment.
func Parse(image []byte) (entry uintptr, areas []VMArea, err *errors.Tagged) {
	if len(image) < 64 {
		return 0, nil, errBadMagic
	}
	if image[0] != 0x7f || image[1] != 'E' || image[2] != 'L' || image[3] != 'F' {
		return 0, nil, errBadMagic
	}
	if image[4] != 2 || image[5] != 1 { // ELFCLASS64, ELFDATA2LSB
		return 0, nil, errBadMagic
	}

	e := binary.LittleEndian
	entryPoint := e.Uint64(image[24:32])
	phOff := e.Uint64(image[32:40])
	phEntSize := e.Uint16(image[54:56])
	phNum := e.Uint16(image[56:58])

	for i := uint16(0); i < phNum; i++ {
		base := phOff + uint64(i)*uint64(phEntSize)
		if base+56 > uint64(len(image)) {
			return 0, nil, errTruncated
		}
		ph := image[base : base+56]

		pType := e.Uint32(ph[0:4])
		if pType != ptLoad {
			continue
		}

		flags := e.Uint32(ph[4:8])
		offset := e.Uint64(ph[8:16])
		vaddr := e.Uint64(ph[16:24])
		memSize := e.Uint64(ph[40:48])

		areas = append(areas, VMArea{
			VMStart:    uintptr(vaddr),
			VMEnd:      uintptr(vaddr + memSize),
			FileOffset: offset,
			Writable:   flags&pfWrite != 0,
		})
	}

	return uintptr(entryPoint), areas, nil
}
