// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obj

import (
	"debug/elf"
	"fmt"
	"io"
	"strconv"
)

// sttGNUIFunc is STT_GNU_IFUNC, an indirect function whose address is
// computed at load time. It shares its value with STT_LOOS.
const sttGNUIFunc elf.SymType = 10

// A Symbol is one symbol table entry in canonical form.
//
// Symbol names are not resolved when the table is read. NameIndex is an
// offset into the string table named by the symbol table section's link
// field; see SymbolTable.Name.
type Symbol struct {
	// Index is the position of this symbol in its symbol table.
	Index int

	NameIndex uint32
	Value     uint64
	Size      uint64
	Info      uint8
	Other     uint8
	Shndx     elf.SectionIndex
}

// Bind returns the symbol binding from the high four bits of Info.
func (s *Symbol) Bind() elf.SymBind {
	return elf.SymBind(s.Info >> 4)
}

// Type returns the symbol type from the low four bits of Info.
func (s *Symbol) Type() elf.SymType {
	return elf.SymType(s.Info & 0xf)
}

// Visibility returns the symbol visibility from the low four bits of
// Other.
func (s *Symbol) Visibility() elf.SymVis {
	return elf.SymVis(s.Other & 0xf)
}

// Undefined reports whether the symbol is not defined in this file.
func (s *Symbol) Undefined() bool {
	return s.Shndx == elf.SHN_UNDEF
}

// SectionIndexString returns the display form of the symbol's section
// index: "UND" for undefined symbols, "ABS" for absolute symbols, and
// the decimal index otherwise.
func (s *Symbol) SectionIndexString() string {
	switch s.Shndx {
	case elf.SHN_UNDEF:
		return "UND"
	case elf.SHN_ABS:
		return "ABS"
	}
	return strconv.FormatUint(uint64(s.Shndx), 10)
}

// SymTypeName returns the display name of a symbol type.
func SymTypeName(t elf.SymType) string {
	switch t {
	case elf.STT_NOTYPE:
		return "NOTYPE"
	case elf.STT_OBJECT:
		return "OBJECT"
	case elf.STT_FUNC:
		return "FUNC"
	case elf.STT_SECTION:
		return "SECTION"
	case elf.STT_FILE:
		return "FILE"
	case elf.STT_COMMON:
		return "COMMON"
	case elf.STT_TLS:
		return "TLS"
	case sttGNUIFunc:
		return "IFUNC"
	}
	switch {
	case t >= elf.STT_LOOS && t <= elf.STT_HIOS:
		return fmt.Sprintf("<OS specific>: %d", t)
	case t >= elf.STT_LOPROC && t <= elf.STT_HIPROC:
		return fmt.Sprintf("<processor specific>: %d", t)
	}
	return fmt.Sprintf("<unknown>: %d", t)
}

// SymBindName returns the display name of a symbol binding.
func SymBindName(b elf.SymBind) string {
	switch b {
	case elf.STB_LOCAL:
		return "LOCAL"
	case elf.STB_GLOBAL:
		return "GLOBAL"
	case elf.STB_WEAK:
		return "WEAK"
	case elf.STB_LOOS:
		return "UNIQUE"
	}
	switch {
	case b >= elf.STB_LOOS && b <= elf.STB_HIOS:
		return fmt.Sprintf("<OS specific>: %d", b)
	case b >= elf.STB_LOPROC && b <= elf.STB_HIPROC:
		return fmt.Sprintf("<processor specific>: %d", b)
	}
	return fmt.Sprintf("<unknown>: %d", b)
}

// SymVisName returns the display name of a symbol visibility.
func SymVisName(v elf.SymVis) string {
	switch v {
	case elf.STV_DEFAULT:
		return "DEFAULT"
	case elf.STV_INTERNAL:
		return "INTERNAL"
	case elf.STV_HIDDEN:
		return "HIDDEN"
	case elf.STV_PROTECTED:
		return "PROTECTED"
	}
	return fmt.Sprintf("<unknown>: %d", v)
}

// The value and size fields move relative to info/other/shndx between
// the two layouts.

func decodeSym32(rd *Reader) Symbol {
	var s Symbol
	s.NameIndex = rd.Uint32()
	s.Value = uint64(rd.Uint32())
	s.Size = uint64(rd.Uint32())
	s.Info = rd.Uint8()
	s.Other = rd.Uint8()
	s.Shndx = elf.SectionIndex(rd.Uint16())
	return s
}

func decodeSym64(rd *Reader) Symbol {
	var s Symbol
	s.NameIndex = rd.Uint32()
	s.Info = rd.Uint8()
	s.Other = rd.Uint8()
	s.Shndx = elf.SectionIndex(rd.Uint16())
	s.Value = rd.Uint64()
	s.Size = rd.Uint64()
	return s
}

// ReadSymbols decodes the symbol table held in section sec of r.
//
// If the section is empty, ReadSymbols returns nil, nil: there are no
// symbols, which is not an error. The entry size comes from the section
// header, falling back to the class record size if it is 0.
func ReadSymbols(h *Header, r io.ReaderAt, sec *SectionHeader) ([]Symbol, error) {
	if sec.Size == 0 {
		return nil, nil
	}
	entsize := sec.Entsize
	if entsize == 0 {
		entsize = uint64(h.class.sym)
	}
	if entsize < uint64(h.class.sym) {
		return nil, fmt.Errorf("%w: symbol table section %d has entry size %d, want at least %d", ErrTruncated, sec.Index, entsize, h.class.sym)
	}
	buf, err := sec.ReadPayload(r)
	if err != nil {
		return nil, err
	}

	decode := decodeSym32
	if h.Is64() {
		decode = decodeSym64
	}
	n := sec.Size / entsize
	rd := NewReader(&Data{Off: sec.Offset, P: buf, Layout: h.layout})
	syms := make([]Symbol, n)
	for i := range syms {
		rd.SetOffset(i * int(entsize))
		syms[i] = decode(rd)
		syms[i].Index = i
	}
	if err := rd.Err(); err != nil {
		return nil, err
	}
	return syms, nil
}

// A SymbolTable is a decoded symbol table section paired with the
// string table its names refer to.
type SymbolTable struct {
	// Section is the header of the symbol table section.
	Section *SectionHeader

	// Strings is the linked string table. It is empty if the link is
	// missing or unreadable, in which case names do not resolve.
	Strings StringTable

	Symbols []Symbol
}

// Name returns the name of sym, or "" and false if the name index is
// out of range of the string table.
func (t *SymbolTable) Name(sym *Symbol) (string, bool) {
	return t.Strings.Lookup(sym.NameIndex)
}

// Lookup returns the i'th symbol of t.
func (t *SymbolTable) Lookup(i uint32) (*Symbol, bool) {
	if uint64(i) >= uint64(len(t.Symbols)) {
		return nil, false
	}
	return &t.Symbols[i], true
}
