// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obj

import (
	"debug/elf"
	"fmt"

	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"
)

// A Reloc is one relocation entry with its symbol resolved for display.
//
// Relocations are decoded, not applied.
type Reloc struct {
	// Index is the position of this entry in its relocation table.
	Index int

	// Offset is the location the relocation patches. In relocatable
	// files this is an offset into the target section. Otherwise it is
	// a virtual address.
	Offset uint64
	// Info is the raw r_info word.
	Info uint64
	// Type is the relocation type decoded from Info.
	Type RelocType
	// Sym is the symbol table index decoded from Info. 0 means the
	// relocation has no symbol.
	Sym uint32
	// Addend is the explicit addend, sign extended. It is meaningful
	// only if HasAddend is set.
	Addend    int64
	HasAddend bool

	// SymName and SymValue describe the referenced symbol. SymName is
	// "" if Sym is 0 or does not resolve.
	SymName  string
	SymValue uint64
}

// A RelocSection is a decoded relocation table.
type RelocSection struct {
	// Section is the relocation section, or nil for a table located
	// through the dynamic section.
	Section *SectionHeader

	// Name identifies a table located through the dynamic section,
	// such as "RELA" or "PLT". It is empty for section tables.
	Name string

	// Offset is the file offset of the table.
	Offset uint64

	// Rela reports whether entries carry explicit addends.
	Rela bool

	// SymTab is the symbol table that Reloc.Sym indexes, or nil.
	SymTab *SymbolTable

	Relocs []Reloc
}

// decodeRelocs decodes the relocation records in buf.
func (f *File) decodeRelocs(buf []byte, off uint64, rela bool, entsize uint64) ([]Reloc, error) {
	h := f.hdr
	want := uint64(h.class.rel)
	if rela {
		want = uint64(h.class.rela)
	}
	if entsize == 0 {
		entsize = want
	}
	if entsize < want {
		return nil, fmt.Errorf("%w: relocation entry size %d, want at least %d", ErrTruncated, entsize, want)
	}

	n := uint64(len(buf)) / entsize
	rd := NewReader(&Data{Off: off, P: buf, Layout: h.layout})
	relocs := make([]Reloc, n)
	for i := range relocs {
		rd.SetOffset(i * int(entsize))
		rel := &relocs[i]
		rel.Index = i
		rel.Offset = rd.Word()
		rel.Info = rd.Word()
		if rela {
			rel.Addend = rd.SWord()
			rel.HasAddend = true
		}
		sym, typ := splitRelocInfo(h.Is64(), rel.Info)
		rel.Sym = sym
		rel.Type = MakeRelocType(h.Machine, typ)
	}
	if err := rd.Err(); err != nil {
		return nil, err
	}
	return relocs, nil
}

// resolveRelocSyms fills in the symbol fields of relocs from symtab.
// Section symbols take the name of the section they stand for.
func (f *File) resolveRelocSyms(relocs []Reloc, symtab *SymbolTable) {
	if symtab == nil {
		return
	}
	for i := range relocs {
		rel := &relocs[i]
		if rel.Sym == 0 {
			continue
		}
		sym, ok := symtab.Lookup(rel.Sym)
		if !ok {
			continue
		}
		rel.SymValue = sym.Value
		if sym.Type() == elf.STT_SECTION && sym.NameIndex == 0 {
			rel.SymName = f.SectionName(int(sym.Shndx))
			continue
		}
		rel.SymName, _ = symtab.Name(sym)
	}
}

// Relocations decodes every SHT_REL and SHT_RELA section.
//
// A relocation section whose link field is zero, out of range, or does
// not name a symbol table is skipped and logged. A section that fails
// to decode is left out of the result and its error is returned, joined
// with any others, alongside the sections that did decode.
func (f *File) Relocations() ([]*RelocSection, error) {
	var out []*RelocSection
	var errs *multierror.Error
	for i := range f.sections {
		sec := &f.sections[i]
		if sec.Type != elf.SHT_REL && sec.Type != elf.SHT_RELA {
			continue
		}
		symSec, ok := f.Section(int(sec.Link))
		if sec.Link == 0 || !ok || (symSec.Type != elf.SHT_SYMTAB && symSec.Type != elf.SHT_DYNSYM) {
			level.Warn(f.logger).Log("msg", "skipping relocation section without a symbol table", "section", i, "link", sec.Link)
			continue
		}
		symtab, err := f.Symbols(int(sec.Link))
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("relocation section %d: %w", i, err))
			continue
		}
		buf, err := sec.ReadPayload(f.r)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		rela := sec.Type == elf.SHT_RELA
		relocs, err := f.decodeRelocs(buf, sec.Offset, rela, sec.Entsize)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("relocation section %d: %w", i, err))
			continue
		}
		f.resolveRelocSyms(relocs, symtab)
		out = append(out, &RelocSection{Section: sec, Offset: sec.Offset, Rela: rela, SymTab: symtab, Relocs: relocs})
	}
	return out, errs.ErrorOrNil()
}

// A DynamicRelocTable describes one relocation table the dynamic section
// can point at: the tags giving its address and total size, and whether
// its entries carry addends.
type DynamicRelocTable struct {
	Name    string
	Addr    elf.DynTag
	Size    elf.DynTag
	Entsize elf.DynTag // 0 if the entry size is implied

	// Rela gives the entry format. For the PLT table the format is not
	// fixed; it is selected by DT_PLTREL.
	Rela   bool
	PLTRel bool
}

// DynamicRelocTables lists the relocation tables reachable from the
// dynamic section.
var DynamicRelocTables = [...]DynamicRelocTable{
	{Name: "REL", Addr: elf.DT_REL, Size: elf.DT_RELSZ, Entsize: elf.DT_RELENT},
	{Name: "RELA", Addr: elf.DT_RELA, Size: elf.DT_RELASZ, Entsize: elf.DT_RELAENT, Rela: true},
	{Name: "PLT", Addr: elf.DT_JMPREL, Size: elf.DT_PLTRELSZ, PLTRel: true},
}

// DynamicRelocations decodes the relocation tables located through the
// dynamic section, resolving symbols against the dynamic symbol table.
// Table addresses are translated to file offsets through the PT_LOAD
// segments.
func (f *File) DynamicRelocations() ([]*RelocSection, error) {
	info, err := f.DynamicInfo()
	if err != nil {
		return nil, err
	}

	var symtab *SymbolTable
	for i := range f.sections {
		if f.sections[i].Type == elf.SHT_DYNSYM {
			if symtab, err = f.Symbols(i); err != nil {
				level.Warn(f.logger).Log("msg", "reading dynamic symbols", "err", err)
				symtab = nil
			}
			break
		}
	}

	var out []*RelocSection
	var errs *multierror.Error
	for _, tab := range DynamicRelocTables {
		addr, ok := info[tab.Addr]
		if !ok {
			continue
		}
		size := info[tab.Size]
		if size == 0 {
			continue
		}
		rela := tab.Rela
		if tab.PLTRel {
			switch elf.DynTag(info[elf.DT_PLTREL]) {
			case elf.DT_RELA:
				rela = true
			case elf.DT_REL:
				rela = false
			default:
				errs = multierror.Append(errs, fmt.Errorf("%s relocations: unknown DT_PLTREL %d", tab.Name, info[elf.DT_PLTREL]))
				continue
			}
		}
		var entsize uint64
		if tab.Entsize != 0 {
			entsize = info[tab.Entsize]
		}
		off, ok := f.AddrToOffset(addr)
		if !ok {
			errs = multierror.Append(errs, fmt.Errorf("%w: %s relocations at %#x are not in any segment", ErrUnresolvableIndex, tab.Name, addr))
			continue
		}
		buf, err := readAt(f.r, off, size)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s relocations: %w", tab.Name, err))
			continue
		}
		relocs, err := f.decodeRelocs(buf, off, rela, entsize)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s relocations: %w", tab.Name, err))
			continue
		}
		f.resolveRelocSyms(relocs, symtab)
		out = append(out, &RelocSection{Name: tab.Name, Offset: off, Rela: rela, SymTab: symtab, Relocs: relocs})
	}
	return out, errs.ErrorOrNil()
}
