// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obj

import (
	"debug/elf"
	"fmt"
)

// RelocType gives the type of a relocation. Relocation numbering is
// specific to each machine, so a RelocType carries the machine family it
// was decoded for.
type RelocType struct {
	// n is the relocation type, encoded as a relocation class in the top 8 bits
	// and a relocation type within the class in the remaining 24 bits. We do
	// this rather than using an interface type to keep Reloc compact and
	// pointer-free.
	n uint32
}

// String returns the machine-specific name of the relocation type, such
// as "R_X86_64_PC32". Types unknown to the machine, or relocations for
// an unknown machine, are rendered with their raw value.
func (r RelocType) String() string {
	c, v := r.class()
	return relocClasses[c](v)
}

// Value returns the raw relocation type number.
func (r RelocType) Value() uint32 {
	_, v := r.class()
	return v
}

func (r RelocType) class() (relocClassID, uint32) {
	c, v := relocClassID(r.n>>24), r.n&(1<<24-1)
	if int(c) < len(relocClasses) {
		return c, v
	}
	return rcUnknown, v
}

// MakeRelocType returns the relocation type v for machine m.
func MakeRelocType(m elf.Machine, v uint32) RelocType {
	if v&(1<<24-1) != v {
		// No machine defines types this large. Keep the raw value
		// printable rather than aliasing another class.
		return RelocType{uint32(rcUnknown)<<24 | v&(1<<24-1)}
	}
	return RelocType{uint32(relocClassOf(m))<<24 | v}
}

type relocClassID uint32

// Relocation classes.
const (
	rcUnknown relocClassID = iota
	rcX86_64
	rc386
	rcAArch64
	rcARM
	rcRISCV
	rcPPC64
	rcPPC
	rcS390
	rcMIPS
	rcLoong
	rcSPARC
)

func relocClassOf(m elf.Machine) relocClassID {
	switch m {
	case elf.EM_X86_64:
		return rcX86_64
	case elf.EM_386:
		return rc386
	case elf.EM_AARCH64:
		return rcAArch64
	case elf.EM_ARM:
		return rcARM
	case elf.EM_RISCV:
		return rcRISCV
	case elf.EM_PPC64:
		return rcPPC64
	case elf.EM_PPC:
		return rcPPC
	case elf.EM_S390:
		return rcS390
	case elf.EM_MIPS, elf.EM_MIPS_RS3_LE:
		return rcMIPS
	case elf.EM_LOONGARCH:
		return rcLoong
	case elf.EM_SPARC, elf.EM_SPARC32PLUS, elf.EM_SPARCV9:
		return rcSPARC
	}
	return rcUnknown
}

var relocClasses = [...]func(uint32) string{
	rcUnknown: func(v uint32) string { return fmt.Sprintf("unknown (%#x)", v) },
	rcX86_64:  func(v uint32) string { return elf.R_X86_64(v).String() },
	rc386:     func(v uint32) string { return elf.R_386(v).String() },
	rcAArch64: func(v uint32) string { return elf.R_AARCH64(v).String() },
	rcARM:     func(v uint32) string { return elf.R_ARM(v).String() },
	rcRISCV:   func(v uint32) string { return elf.R_RISCV(v).String() },
	rcPPC64:   func(v uint32) string { return elf.R_PPC64(v).String() },
	rcPPC:     func(v uint32) string { return elf.R_PPC(v).String() },
	rcS390:    func(v uint32) string { return elf.R_390(v).String() },
	rcMIPS:    func(v uint32) string { return elf.R_MIPS(v).String() },
	rcLoong:   func(v uint32) string { return elf.R_LARCH(v).String() },
	rcSPARC:   func(v uint32) string { return elf.R_SPARC(v).String() },
}

// splitRelocInfo splits an r_info word into its symbol index and type.
// ELF32 packs an 8-bit type under a 24-bit symbol index; ELF64 packs a
// 32-bit type under a 32-bit symbol index.
func splitRelocInfo(is64 bool, info uint64) (sym, typ uint32) {
	if is64 {
		return elf.R_SYM64(info), elf.R_TYPE64(info)
	}
	return elf.R_SYM32(uint32(info)), elf.R_TYPE32(uint32(info))
}
