// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symtab

import (
	"debug/elf"
	"strconv"

	"golang.org/x/exp/slices"

	"github.com/aclements/go-readelf/obj"
)

// A SymID indexes the symbols passed to NewTable.
type SymID uint32

// NoSym is a placeholder SymID used to indicate "no symbol".
const NoSym = ^SymID(0)

func (id SymID) String() string {
	if id == NoSym {
		return "NoSym"
	}
	return strconv.FormatUint(uint64(id), 10)
}

// A Sym is a symbol flattened out of an ELF symbol table for lookup.
type Sym struct {
	Name string
	// Section is the index of the section this symbol is defined in, or
	// -1 if it is not defined in a section (undefined, absolute, or
	// common symbols).
	Section int
	// Mapped indicates Section is loaded at its address, so Value is
	// a virtual address in the loaded image.
	Mapped bool
	Value  uint64
	Size   uint64
	Kind   SymKind
	// Local indicates the name is only meaningful within its defining
	// compilation unit.
	Local bool
	// SizeSynthesized indicates Size was derived by SynthesizeSizes.
	SizeSynthesized bool
}

// SymKind indicates the general kind of a symbol, in the style of nm.
type SymKind uint8

const (
	SymUnknown  SymKind = '?'
	SymUndef    SymKind = 'U'
	SymText     SymKind = 'T'
	SymData     SymKind = 'D'
	SymAbsolute SymKind = 'A'
	SymSection  SymKind = 'S'
)

func (k SymKind) String() string {
	return string([]byte{byte(k)})
}

// FromFile flattens every symbol table in f into one slice, static
// symbols first. The null symbol at the start of each table is omitted.
// Tables that fail to decode are skipped and the error is returned with
// the symbols that did decode.
func FromFile(f *obj.File) ([]Sym, error) {
	tables, err := f.SymbolTables()
	// Prefer static symbols when names collide.
	slices.SortStableFunc(tables, func(a, b *obj.SymbolTable) bool {
		return a.Section.Type == elf.SHT_SYMTAB && b.Section.Type != elf.SHT_SYMTAB
	})

	relocatable := f.Header().Type == elf.ET_REL
	sections := f.Sections()
	var out []Sym
	for _, tab := range tables {
		for i := 1; i < len(tab.Symbols); i++ {
			es := &tab.Symbols[i]
			s := Sym{Section: -1, Value: es.Value, Size: es.Size}
			s.Name, _ = tab.Name(es)
			s.Local = es.Bind() == elf.STB_LOCAL

			switch {
			case es.Shndx == elf.SHN_UNDEF:
				s.Kind = SymUndef
			case es.Shndx == elf.SHN_ABS:
				s.Kind = SymAbsolute
			case es.Shndx >= elf.SHN_LORESERVE || int(es.Shndx) >= len(sections):
				s.Kind = SymUnknown
			default:
				sec := &sections[es.Shndx]
				s.Section = int(es.Shndx)
				s.Mapped = !relocatable && sec.Flags&elf.SHF_ALLOC != 0
				switch {
				case es.Type() == elf.STT_SECTION:
					s.Kind = SymSection
					if s.Name == "" {
						s.Name = f.SectionName(s.Section)
					}
				case sec.Flags&elf.SHF_EXECINSTR != 0:
					s.Kind = SymText
				case sec.Flags&elf.SHF_ALLOC != 0:
					s.Kind = SymData
				default:
					s.Kind = SymUnknown
				}
			}
			out = append(out, s)
		}
	}
	return out, err
}

// SynthesizeSizes assigns sizes to syms that don't have sizes using
// heuristics. sections gives the bounds of the sections syms refer to.
func SynthesizeSizes(syms []Sym, sections []obj.SectionHeader) {
	section := func(s *Sym) *obj.SectionHeader {
		if s.Section < 0 || s.Section >= len(sections) {
			return nil
		}
		return &sections[s.Section]
	}

	// Gather symbols with data and sort by section then address
	// (without destroying order).
	todo := []int{}
	for i := range syms {
		sec := section(&syms[i])
		if sec == nil {
			// Only assign sizes to symbols with data.
			continue
		}
		if syms[i].Kind == SymSection {
			if syms[i].Value == sec.Addr && syms[i].Size == 0 {
				syms[i].Size = sec.Size
				syms[i].SizeSynthesized = true
			}
			continue
		}
		// If the symbol is past the end of its section, leave it out
		// because we can't give it a meaningful address and it may
		// throw off earlier symbols in the section.
		if syms[i].Value > sec.Addr+sec.Size {
			continue
		}
		todo = append(todo, i)
	}
	slices.SortFunc(todo, func(i, j int) bool {
		si, sj := &syms[i], &syms[j]
		if si.Section != sj.Section {
			return si.Section < sj.Section
		}
		return si.Value < sj.Value
	})

	for len(todo) != 0 {
		// Collect symbols that have the same value and section. Most of
		// the time we'll get groups of 1, but sometimes there are
		// multiple names for the same address (especially in shared
		// objects).
		s1 := &syms[todo[0]]
		group := 1
		anyZero := s1.Size == 0
		for group < len(todo) {
			s2 := &syms[todo[group]]
			if s1.Value != s2.Value || s1.Section != s2.Section {
				break
			}
			if s2.Size == 0 {
				anyZero = true
			}
			group++
		}
		if !anyZero {
			todo = todo[group:]
			continue
		}

		var size uint64
		if group == len(todo) || s1.Section != syms[todo[group]].Section {
			// Cap the symbols at the end of the section.
			sec := section(s1)
			size = sec.Addr + sec.Size - s1.Value
		} else {
			size = syms[todo[group]].Value - s1.Value
		}

		for _, symi := range todo[:group] {
			if syms[symi].Size == 0 {
				syms[symi].Size = size
				syms[symi].SizeSynthesized = true
			}
		}
		todo = todo[group:]
	}
}
