// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obj

import (
	"debug/elf"
	"encoding/binary"
	"fmt"

	"github.com/aclements/go-readelf/arch"
)

// classInfo gives the on-disk record sizes for one ELF class.
type classInfo struct {
	word int // Elf_Addr, Elf_Off, and Elf_Xword width

	ehdr int
	phdr int
	shdr int
	sym  int
	dyn  int
	rel  int
	rela int
	chdr int
}

var classInfos = map[elf.Class]classInfo{
	elf.ELFCLASS32: {word: 4, ehdr: 52, phdr: 32, shdr: 40, sym: 16, dyn: 8, rel: 8, rela: 12, chdr: 12},
	elf.ELFCLASS64: {word: 8, ehdr: 64, phdr: 56, shdr: 64, sym: 24, dyn: 16, rel: 16, rela: 24, chdr: 24},
}

// classOf returns the record sizes for class c. Unknown classes are an
// error: guessing a width would misalign every subsequent read.
func classOf(c elf.Class) (classInfo, error) {
	ci, ok := classInfos[c]
	if !ok {
		return classInfo{}, fmt.Errorf("%w %d", ErrUnknownClass, uint8(c))
	}
	return ci, nil
}

// byteOrder returns the byte order for an identification encoding.
func byteOrder(d elf.Data) (binary.ByteOrder, bool) {
	switch d {
	case elf.ELFDATA2LSB:
		return binary.LittleEndian, true
	case elf.ELFDATA2MSB:
		return binary.BigEndian, true
	}
	return nil, false
}

// layoutFor returns the data layout used to decode a file with the
// given class and encoding.
func layoutFor(c elf.Class, d elf.Data) (arch.Layout, error) {
	ci, err := classOf(c)
	if err != nil {
		return arch.Layout{}, err
	}
	order, ok := byteOrder(d)
	if !ok {
		return arch.Layout{}, fmt.Errorf("%w: unknown data encoding %d", ErrMalformedHeader, uint8(d))
	}
	return arch.NewLayout(order, ci.word), nil
}

// DecodeWord decodes the class-width word (Elf32_Addr/Elf32_Off or
// Elf64_Addr/Elf64_Off) at offset off of b and widens it to 64 bits.
func DecodeWord(c elf.Class, order binary.ByteOrder, b []byte, off int) (uint64, error) {
	ci, err := classOf(c)
	if err != nil {
		return 0, err
	}
	if off < 0 || off > len(b) || len(b)-off < ci.word {
		return 0, fmt.Errorf("%w: %d-byte word at offset %d of %d", ErrTruncated, ci.word, off, len(b))
	}
	return arch.NewLayout(order, ci.word).Word(b[off:]), nil
}
