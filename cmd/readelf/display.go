// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"debug/elf"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/olekukonko/tablewriter"

	"github.com/aclements/go-readelf/asm"
	"github.com/aclements/go-readelf/obj"
	"github.com/aclements/go-readelf/symtab"
)

var (
	titleColor = color.New(color.FgYellow, color.Bold)
	nameColor  = color.New(color.FgCyan)
	addrColor  = color.New(color.FgGreen)
)

type printer struct {
	w      io.Writer
	f      *obj.File
	logger log.Logger
}

func (p *printer) title(format string, args ...interface{}) {
	fmt.Fprintf(p.w, "\n%s\n", titleColor.Sprintf(format, args...))
}

// table returns a borderless, left-aligned table in the style of
// readelf's listings.
func (p *printer) table(header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(p.w)
	if len(header) > 0 {
		t.SetHeader(header)
	}
	t.SetAutoFormatHeaders(false)
	t.SetAutoWrapText(false)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetBorder(false)
	t.SetHeaderLine(false)
	t.SetCenterSeparator("")
	t.SetColumnSeparator("")
	t.SetRowSeparator("")
	return t
}

func hex(v uint64, width int) string {
	return fmt.Sprintf("%0*x", width, v)
}

// addrWidth is the number of hex digits in an address of this file's
// class.
func (p *printer) addrWidth() int {
	if p.f.Header().Is64() {
		return 16
	}
	return 8
}

func (p *printer) fileHeader() error {
	h := p.f.Header()
	p.title("ELF Header:")
	var magic []string
	raw := append(h.Magic[:], byte(h.Class), byte(h.Data), byte(h.Ident.Version), byte(h.OSABI), h.ABIVersion)
	for _, b := range raw {
		magic = append(magic, fmt.Sprintf("%02x", b))
	}
	for len(magic) < elf.EI_NIDENT {
		magic = append(magic, "00")
	}

	t := p.table()
	rows := [][]string{
		{"Magic:", strings.Join(magic, " ")},
		{"Class:", strings.TrimPrefix(h.Class.String(), "ELFCLASS")},
		{"Data:", dataName(h.Data)},
		{"Version:", fmt.Sprintf("%d", h.Ident.Version)},
		{"OS/ABI:", obj.OSABIName(h.OSABI)},
		{"ABI Version:", fmt.Sprintf("%d", h.ABIVersion)},
		{"Type:", h.ObjectType()},
		{"Machine:", machineName(h.Machine)},
		{"Version:", fmt.Sprintf("%#x", h.Version)},
		{"Entry point address:", fmt.Sprintf("%#x", h.Entry)},
		{"Start of program headers:", fmt.Sprintf("%d (bytes into file)", h.Phoff)},
		{"Start of section headers:", fmt.Sprintf("%d (bytes into file)", h.Shoff)},
		{"Flags:", fmt.Sprintf("%#x", h.Flags)},
		{"Size of this header:", fmt.Sprintf("%d (bytes)", h.Ehsize)},
		{"Size of program headers:", fmt.Sprintf("%d (bytes)", h.Phentsize)},
		{"Number of program headers:", fmt.Sprintf("%d", len(p.f.Segments()))},
		{"Size of section headers:", fmt.Sprintf("%d (bytes)", h.Shentsize)},
		{"Number of section headers:", fmt.Sprintf("%d", len(p.f.Sections()))},
		{"Section header string table index:", fmt.Sprintf("%d", p.f.SectionNameTable())},
	}
	t.AppendBulk(rows)
	t.Render()
	return nil
}

func dataName(d elf.Data) string {
	switch d {
	case elf.ELFDATA2LSB:
		return "2's complement, little endian"
	case elf.ELFDATA2MSB:
		return "2's complement, big endian"
	}
	return d.String()
}

func machineName(m elf.Machine) string {
	s := m.String()
	if strings.HasPrefix(s, "EM_") {
		return strings.TrimPrefix(s, "EM_")
	}
	return fmt.Sprintf("<unknown>: %#x", uint16(m))
}

func sectionTypeName(t elf.SectionType) string {
	s := t.String()
	if strings.HasPrefix(s, "SHT_") && !strings.Contains(s, "+") {
		return strings.TrimPrefix(s, "SHT_")
	}
	return fmt.Sprintf("%#x", uint32(t))
}

func (p *printer) sectionHeaders() error {
	secs := p.f.Sections()
	if len(secs) == 0 {
		// The decode failure itself is reported from Warnings.
		if p.f.Header().Shoff != 0 {
			fmt.Fprintln(p.w, "\nThe section headers could not be read.")
			return nil
		}
		fmt.Fprintln(p.w, "\nThere are no sections in this file.")
		return nil
	}
	p.title("Section Headers:")
	w := p.addrWidth()
	t := p.table("[Nr]", "Name", "Type", "Address", "Off", "Size", "ES", "Flg", "Lk", "Inf", "Al")
	for i := range secs {
		s := &secs[i]
		t.Append([]string{
			fmt.Sprintf("[%2d]", i),
			nameColor.Sprint(p.f.SectionName(i)),
			sectionTypeName(s.Type),
			addrColor.Sprint(hex(s.Addr, w)),
			hex(s.Offset, 6),
			hex(s.Size, 6),
			hex(s.Entsize, 2),
			obj.SectionFlagKeys(s.Flags),
			strconv.FormatUint(uint64(s.Link), 10),
			strconv.FormatUint(uint64(s.Info), 10),
			strconv.FormatUint(s.Addralign, 10),
		})
	}
	t.Render()
	fmt.Fprintln(p.w, "Key to Flags:")
	fmt.Fprintln(p.w, "  W (write), A (alloc), X (execute), M (merge), S (strings), I (info),")
	fmt.Fprintln(p.w, "  L (link order), O (extra OS processing required), G (group), T (TLS),")
	fmt.Fprintln(p.w, "  C (compressed), o (OS specific), E (exclude), p (processor specific)")
	return nil
}

func (p *printer) programHeaders() error {
	segs := p.f.Segments()
	if len(segs) == 0 {
		if h := p.f.Header(); h.Phoff != 0 && h.Phnum != 0 {
			fmt.Fprintln(p.w, "\nThe program headers could not be read.")
			return nil
		}
		fmt.Fprintln(p.w, "\nThere are no program headers in this file.")
		return nil
	}
	h := p.f.Header()
	fmt.Fprintf(p.w, "\nElf file type is %s\n", h.ObjectType())
	fmt.Fprintf(p.w, "Entry point %#x\n", h.Entry)
	fmt.Fprintf(p.w, "There are %d program headers, starting at offset %d\n", len(segs), h.Phoff)

	p.title("Program Headers:")
	w := p.addrWidth()
	t := p.table("Type", "Offset", "VirtAddr", "PhysAddr", "FileSiz", "MemSiz", "Flg", "Align")
	for i := range segs {
		s := &segs[i]
		t.Append([]string{
			obj.SegmentTypeName(s.Type),
			"0x" + hex(s.Offset, 6),
			addrColor.Sprint("0x" + hex(s.Vaddr, w)),
			"0x" + hex(s.Paddr, w),
			"0x" + hex(s.Filesz, 6),
			"0x" + hex(s.Memsz, 6),
			s.FlagString(),
			fmt.Sprintf("%#x", s.Align),
		})
	}
	t.Render()

	p.title("Section to Segment mapping:")
	t = p.table("Segment", "Sections...")
	for i, secs := range p.f.SegmentSections() {
		var names []string
		for _, j := range secs {
			names = append(names, nameColor.Sprint(p.f.SectionName(j)))
		}
		t.Append([]string{fmt.Sprintf("%02d", i), strings.Join(names, " ")})
	}
	t.Render()
	return nil
}

func (p *printer) dynamic() error {
	entries, err := p.f.Dynamic()
	if err != nil {
		return fmt.Errorf("reading dynamic section: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(p.w, "\nThere is no dynamic section in this file.")
		return nil
	}
	seg, _ := p.f.DynamicSegment()
	p.title("Dynamic section at offset %#x contains %d entries:", seg.Offset, len(entries))
	t := p.table("Tag", "Type", "Name/Value")
	for i := range entries {
		e := &entries[i]
		t.Append([]string{
			fmt.Sprintf("0x%0*x", p.addrWidth(), uint64(e.Tag)),
			"(" + obj.DynTagName(e.Tag) + ")",
			p.dynValue(e),
		})
	}
	t.Render()
	return nil
}

func (p *printer) dynValue(e *obj.DynEntry) string {
	if s, ok := p.f.DynamicString(e); ok {
		switch e.Tag {
		case elf.DT_NEEDED:
			return "Shared library: [" + s + "]"
		case elf.DT_SONAME:
			return "Library soname: [" + s + "]"
		case elf.DT_RPATH:
			return "Library rpath: [" + s + "]"
		case elf.DT_RUNPATH:
			return "Library runpath: [" + s + "]"
		}
		return s
	}
	if addr, ok := e.Addr(); ok {
		return fmt.Sprintf("%#x", addr)
	}
	switch e.Tag {
	case elf.DT_PLTREL:
		return strings.TrimPrefix(elf.DynTag(e.Val).String(), "DT_")
	case elf.DT_FLAGS:
		return strings.ReplaceAll(strings.TrimPrefix(elf.DynFlag(e.Val).String(), "DF_"), "+DF_", " ")
	case elf.DT_FLAGS_1:
		return "Flags: " + strings.ReplaceAll(strings.TrimPrefix(elf.DynFlag1(e.Val).String(), "DF_1_"), "+DF_1_", " ")
	}
	if obj.IsStringTag(e.Tag) {
		// The string table could not be located.
		return fmt.Sprintf("<string %#x>", e.Val)
	}
	return fmt.Sprintf("%d", e.Val)
}

func (p *printer) relocs() error {
	secRels, err := p.f.Relocations()
	if err != nil {
		level.Warn(p.logger).Log("msg", "reading relocation sections", "err", err)
	}
	if len(secRels) == 0 {
		dynRels, err := p.f.DynamicRelocations()
		if err != nil {
			return fmt.Errorf("reading dynamic relocations: %w", err)
		}
		secRels = dynRels
	}
	if len(secRels) == 0 {
		fmt.Fprintln(p.w, "\nThere are no relocations in this file.")
		return nil
	}
	for _, rs := range secRels {
		name := rs.Name
		if rs.Section != nil {
			name = "'" + p.f.SectionName(rs.Section.Index) + "'"
		}
		p.title("Relocation section %s at offset %#x contains %d entries:", name, rs.Offset, len(rs.Relocs))
		header := []string{"Offset", "Info", "Type", "Sym. Value", "Sym. Name"}
		if rs.Rela {
			header[4] = "Sym. Name + Addend"
		}
		t := p.table(header...)
		w := p.addrWidth()
		for _, r := range rs.Relocs {
			symCol := r.SymName
			if rs.Rela {
				if symCol != "" || r.Sym != 0 {
					symCol += fmt.Sprintf(" %s %x", sign(r.Addend), abs(r.Addend))
				} else {
					symCol = fmt.Sprintf("%x", r.Addend)
				}
			}
			value := ""
			if r.Sym != 0 {
				value = hex(r.SymValue, w)
			}
			t.Append([]string{hex(r.Offset, w), hex(r.Info, w), r.Type.String(), value, nameColor.Sprint(symCol)})
		}
		t.Render()
	}
	return nil
}

func sign(v int64) string {
	if v < 0 {
		return "-"
	}
	return "+"
}

func abs(v int64) uint64 {
	if v < 0 {
		return uint64(-v)
	}
	return uint64(v)
}

func (p *printer) symbols(types ...elf.SectionType) error {
	tables, err := p.f.SymbolTables()
	if err != nil {
		level.Warn(p.logger).Log("msg", "reading symbol tables", "err", err)
	}
	w := p.addrWidth()
	for _, typ := range types {
		for _, tab := range tables {
			if tab.Section.Type != typ {
				continue
			}
			p.title("Symbol table '%s' contains %d entries:", p.f.SectionName(tab.Section.Index), len(tab.Symbols))
			t := p.table("Num:", "Value", "Size", "Type", "Bind", "Vis", "Ndx", "Name")
			for i := range tab.Symbols {
				s := &tab.Symbols[i]
				name, _ := tab.Name(s)
				if s.Type() == elf.STT_SECTION && name == "" {
					name = p.f.SectionName(int(s.Shndx))
				}
				t.Append([]string{
					fmt.Sprintf("%d:", i),
					addrColor.Sprint(hex(s.Value, w)),
					strconv.FormatUint(s.Size, 10),
					obj.SymTypeName(s.Type()),
					obj.SymBindName(s.Bind()),
					obj.SymVisName(s.Visibility()),
					s.SectionIndexString(),
					nameColor.Sprint(name),
				})
			}
			t.Render()
		}
	}
	return nil
}

func (p *printer) disassemble(name, syntax string) error {
	syms, err := symtab.FromFile(p.f)
	if err != nil {
		level.Warn(p.logger).Log("msg", "reading symbols", "err", err)
	}
	symtab.SynthesizeSizes(syms, p.f.Sections())
	tab := symtab.NewTable(syms)

	id := tab.Name(name)
	if id == symtab.NoSym {
		return fmt.Errorf("symbol %q not found", name)
	}
	sym := tab.Sym(id)
	sec, ok := p.f.Section(sym.Section)
	if !ok || sec.Type == elf.SHT_NOBITS {
		return fmt.Errorf("symbol %q has no code in the file", name)
	}
	data, err := p.f.SectionData(sym.Section)
	if err != nil {
		return err
	}
	start := sym.Value
	if sym.Mapped {
		start -= sec.Addr
	}
	if start > uint64(len(data)) || sym.Size > uint64(len(data))-start {
		return fmt.Errorf("symbol %q at %#x+%#x lies outside its section", name, sym.Value, sym.Size)
	}

	seq, err := asm.Disasm(p.f.Arch(), data[start:start+sym.Size], sym.Value)
	if err != nil {
		return err
	}
	lookup := asm.SymLookup(tab.SymName)
	p.title("Disassembly of %s:", nameColor.Sprint(name))
	for i := 0; i < seq.Len(); i++ {
		inst := seq.Get(i)
		off := inst.PC() - sym.Value
		code := data[start+off : start+off+uint64(inst.Len())]
		var text string
		if syntax == "go" {
			text = inst.GoSyntax(lookup)
			if c := inst.Control(); c.Type == asm.ControlCall && c.HasTarget {
				if target, _ := tab.SymName(c.TargetPC); target != "" && !strings.Contains(text, target) {
					text += " // " + target
				}
			}
		} else {
			text = inst.GNUSyntax(lookup)
		}
		fmt.Fprintf(p.w, "  %s:\t%-24s\t%s\n", addrColor.Sprintf("%x", inst.PC()), fmt.Sprintf("% x", code), text)
	}
	return nil
}
