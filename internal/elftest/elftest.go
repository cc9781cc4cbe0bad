// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package elftest builds small, byte-exact ELF images for tests.
//
// A File describes the image: its header fields, its sections, and its
// segments. Build lays the sections out after the file and program
// headers, appends a section name table, and writes the section header
// table last. Both classes and both byte orders are supported.
package elftest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
)

// A File describes an ELF image to build.
type File struct {
	Class   elf.Class
	Data    elf.Data
	OSABI   elf.OSABI
	Type    elf.Type
	Machine elf.Machine
	Entry   uint64
	Flags   uint32

	// Base is the virtual address of file offset 0. Allocated sections
	// without an explicit address are placed at Base plus their file
	// offset.
	Base uint64

	// Sections lists the sections after the null section. Build adds
	// the null section at index 0 and a .shstrtab section at the end.
	Sections []Section

	Segments []Segment
}

// A Section describes one section of an image.
type Section struct {
	Name  string
	Type  elf.SectionType
	Flags elf.SectionFlag
	Addr  uint64
	// Link names the section this section's link field refers to.
	Link  string
	Info  uint32
	Align uint64
	// Entsize is the table entry size. If it is 0, symbol, dynamic and
	// relocation sections get the class's record size.
	Entsize uint64
	Data    []byte
	// Size, if non-zero, overrides len(Data) as the declared size.
	// SHT_NOBITS sections use it to declare their memory size.
	Size uint64
}

func (s *Section) size() uint64 {
	if s.Size != 0 {
		return s.Size
	}
	return uint64(len(s.Data))
}

// A Segment describes one program header of an image.
type Segment struct {
	Type   elf.ProgType
	Flags  elf.ProgFlag
	Offset uint64
	Vaddr  uint64
	Paddr  uint64
	Filesz uint64
	Memsz  uint64
	Align  uint64

	// Sections, if set, derives the segment's file and memory range
	// from the named sections.
	Sections []string
	// WholeFile maps the entire file at Base.
	WholeFile bool
}

// An Image is a built ELF file.
type Image struct {
	b []byte

	// Index, Offset and Addr give the section index, file offset, and
	// virtual address of each section by name.
	Index  map[string]int
	Offset map[string]uint64
	Addr   map[string]uint64

	// Shoff is the file offset of the section header table.
	Shoff uint64
}

// Bytes returns the encoded image.
func (img *Image) Bytes() []byte {
	return img.b
}

// Reader returns a reader over the encoded image.
func (img *Image) Reader() *bytes.Reader {
	return bytes.NewReader(img.b)
}

func (f *File) is64() bool {
	return f.Class == elf.ELFCLASS64
}

func (f *File) order() binary.AppendByteOrder {
	if f.Data == elf.ELFDATA2MSB {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (f *File) sizes() (ehdr, phdr, shdr, word uint64) {
	if f.is64() {
		return 64, 56, 64, 8
	}
	return 52, 32, 40, 4
}

func (f *File) defaultEntsize(t elf.SectionType) uint64 {
	switch t {
	case elf.SHT_SYMTAB, elf.SHT_DYNSYM:
		if f.is64() {
			return 24
		}
		return 16
	case elf.SHT_DYNAMIC:
		if f.is64() {
			return 16
		}
		return 8
	case elf.SHT_REL:
		if f.is64() {
			return 16
		}
		return 8
	case elf.SHT_RELA:
		if f.is64() {
			return 24
		}
		return 12
	}
	return 0
}

func alignUp(x, align uint64) uint64 {
	if align <= 1 {
		return x
	}
	return (x + align - 1) &^ (align - 1)
}

// Build lays out and encodes the image. It panics if a Link or segment
// section name does not name a section.
func (f *File) Build() *Image {
	ehsize, phentsize, shentsize, word := f.sizes()

	secs := make([]Section, 0, len(f.Sections)+2)
	secs = append(secs, Section{})
	secs = append(secs, f.Sections...)
	secs = append(secs, Section{Name: ".shstrtab", Type: elf.SHT_STRTAB, Align: 1})

	img := &Image{
		Index:  make(map[string]int),
		Offset: make(map[string]uint64),
		Addr:   make(map[string]uint64),
	}
	var shstrtab bytes.Buffer
	shstrtab.WriteByte(0)
	names := make([]uint32, len(secs))
	for i := 1; i < len(secs); i++ {
		names[i] = uint32(shstrtab.Len())
		shstrtab.WriteString(secs[i].Name)
		shstrtab.WriteByte(0)
		if _, ok := img.Index[secs[i].Name]; !ok {
			img.Index[secs[i].Name] = i
		}
	}
	secs[len(secs)-1].Data = shstrtab.Bytes()

	// Lay out section contents.
	off := ehsize + phentsize*uint64(len(f.Segments))
	offsets := make([]uint64, len(secs))
	addrs := make([]uint64, len(secs))
	for i := 1; i < len(secs); i++ {
		s := &secs[i]
		off = alignUp(off, s.Align)
		offsets[i] = off
		addrs[i] = s.Addr
		if addrs[i] == 0 && s.Flags&elf.SHF_ALLOC != 0 {
			addrs[i] = f.Base + off
		}
		if s.Type != elf.SHT_NOBITS {
			off += uint64(len(s.Data))
		}
		if _, ok := img.Offset[s.Name]; !ok {
			img.Offset[s.Name] = offsets[i]
			img.Addr[s.Name] = addrs[i]
		}
	}
	shoff := alignUp(off, word)
	total := shoff + shentsize*uint64(len(secs))
	img.Shoff = shoff

	lookup := func(name string) int {
		i, ok := img.Index[name]
		if !ok {
			panic(fmt.Sprintf("elftest: no section %q", name))
		}
		return i
	}

	e := &encoder{order: f.order(), is64: f.is64()}

	// File header.
	e.b = append(e.b, 0x7f, 'E', 'L', 'F', byte(f.Class), byte(f.Data), byte(elf.EV_CURRENT), byte(f.OSABI))
	e.b = append(e.b, make([]byte, elf.EI_NIDENT-len(e.b))...)
	e.u16(uint16(f.Type))
	e.u16(uint16(f.Machine))
	e.u32(uint32(elf.EV_CURRENT))
	e.word(f.Entry)
	if len(f.Segments) > 0 {
		e.word(ehsize)
	} else {
		e.word(0)
	}
	e.word(shoff)
	e.u32(f.Flags)
	e.u16(uint16(ehsize))
	e.u16(uint16(phentsize))
	e.u16(uint16(len(f.Segments)))
	e.u16(uint16(shentsize))
	e.u16(uint16(len(secs)))
	e.u16(uint16(len(secs) - 1))

	// Program headers.
	for _, seg := range f.Segments {
		switch {
		case seg.WholeFile:
			seg.Offset = 0
			seg.Vaddr, seg.Paddr = f.Base, f.Base
			seg.Filesz, seg.Memsz = total, total
		case len(seg.Sections) > 0:
			first := lookup(seg.Sections[0])
			seg.Offset = offsets[first]
			seg.Vaddr, seg.Paddr = addrs[first], addrs[first]
			seg.Filesz, seg.Memsz = 0, 0
			for _, name := range seg.Sections {
				i := lookup(name)
				s := &secs[i]
				fileEnd := offsets[i]
				if s.Type != elf.SHT_NOBITS {
					fileEnd += uint64(len(s.Data))
				}
				if fileEnd-seg.Offset > seg.Filesz {
					seg.Filesz = fileEnd - seg.Offset
				}
				if memEnd := addrs[i] + s.size(); memEnd-seg.Vaddr > seg.Memsz {
					seg.Memsz = memEnd - seg.Vaddr
				}
			}
		}
		if e.is64 {
			e.u32(uint32(seg.Type))
			e.u32(uint32(seg.Flags))
			e.u64(seg.Offset)
			e.u64(seg.Vaddr)
			e.u64(seg.Paddr)
			e.u64(seg.Filesz)
			e.u64(seg.Memsz)
			e.u64(seg.Align)
		} else {
			e.u32(uint32(seg.Type))
			e.u32(uint32(seg.Offset))
			e.u32(uint32(seg.Vaddr))
			e.u32(uint32(seg.Paddr))
			e.u32(uint32(seg.Filesz))
			e.u32(uint32(seg.Memsz))
			e.u32(uint32(seg.Flags))
			e.u32(uint32(seg.Align))
		}
	}

	// Section contents.
	b := make([]byte, total)
	copy(b, e.b)
	for i := 1; i < len(secs); i++ {
		if secs[i].Type != elf.SHT_NOBITS {
			copy(b[offsets[i]:], secs[i].Data)
		}
	}

	// Section headers.
	e.b = e.b[:0]
	for i := range secs {
		s := &secs[i]
		var link uint32
		if s.Link != "" {
			link = uint32(lookup(s.Link))
		}
		entsize := s.Entsize
		if entsize == 0 {
			entsize = f.defaultEntsize(s.Type)
		}
		var offset uint64
		if i != 0 {
			offset = offsets[i]
		}
		e.u32(names[i])
		e.u32(uint32(s.Type))
		e.word(uint64(s.Flags))
		e.word(addrs[i])
		e.word(offset)
		e.word(s.size())
		e.u32(link)
		e.u32(s.Info)
		e.word(s.Align)
		e.word(entsize)
	}
	copy(b[shoff:], e.b)

	img.b = b
	return img
}

// A Sym is a symbol table entry to encode.
type Sym struct {
	Name  uint32
	Value uint64
	Size  uint64
	Bind  elf.SymBind
	Type  elf.SymType
	Other uint8
	Shndx elf.SectionIndex
}

// SymTab encodes a symbol table in f's class and byte order.
func (f *File) SymTab(syms ...Sym) []byte {
	e := &encoder{order: f.order(), is64: f.is64()}
	for _, s := range syms {
		info := elf.ST_INFO(s.Bind, s.Type)
		if e.is64 {
			e.u32(s.Name)
			e.b = append(e.b, info, s.Other)
			e.u16(uint16(s.Shndx))
			e.u64(s.Value)
			e.u64(s.Size)
		} else {
			e.u32(s.Name)
			e.u32(uint32(s.Value))
			e.u32(uint32(s.Size))
			e.b = append(e.b, info, s.Other)
			e.u16(uint16(s.Shndx))
		}
	}
	return e.b
}

// A Dyn is a dynamic section entry to encode.
type Dyn struct {
	Tag elf.DynTag
	Val uint64
}

// DynTab encodes dynamic entries in f's class and byte order. It does
// not add a DT_NULL terminator.
func (f *File) DynTab(dyns ...Dyn) []byte {
	e := &encoder{order: f.order(), is64: f.is64()}
	for _, d := range dyns {
		e.word(uint64(d.Tag))
		e.word(d.Val)
	}
	return e.b
}

// A Rel is a relocation entry to encode.
type Rel struct {
	Off    uint64
	Sym    uint32
	Type   uint32
	Addend int64
}

// RelTab encodes relocation entries in f's class and byte order. If rela
// is set, entries carry explicit addends.
func (f *File) RelTab(rela bool, rels ...Rel) []byte {
	e := &encoder{order: f.order(), is64: f.is64()}
	for _, r := range rels {
		e.word(r.Off)
		if e.is64 {
			e.u64(elf.R_INFO(r.Sym, r.Type))
		} else {
			e.u32(elf.R_INFO32(r.Sym, r.Type))
		}
		if rela {
			e.word(uint64(r.Addend))
		}
	}
	return e.b
}

// Chdr encodes a compression header in f's class and byte order.
func (f *File) Chdr(typ elf.CompressionType, size, align uint64) []byte {
	e := &encoder{order: f.order(), is64: f.is64()}
	e.u32(uint32(typ))
	if e.is64 {
		e.u32(0)
	}
	e.word(size)
	e.word(align)
	return e.b
}

// Strings builds a string table holding names. It returns the table and
// the offset of each name.
func Strings(names ...string) ([]byte, map[string]uint32) {
	var b bytes.Buffer
	b.WriteByte(0)
	offs := map[string]uint32{"": 0}
	for _, n := range names {
		if _, ok := offs[n]; ok {
			continue
		}
		offs[n] = uint32(b.Len())
		b.WriteString(n)
		b.WriteByte(0)
	}
	return b.Bytes(), offs
}

type encoder struct {
	b     []byte
	order binary.AppendByteOrder
	is64  bool
}

func (e *encoder) u16(v uint16) { e.b = e.order.AppendUint16(e.b, v) }
func (e *encoder) u32(v uint32) { e.b = e.order.AppendUint32(e.b, v) }
func (e *encoder) u64(v uint64) { e.b = e.order.AppendUint64(e.b, v) }

func (e *encoder) word(v uint64) {
	if e.is64 {
		e.u64(v)
	} else {
		e.u32(uint32(v))
	}
}
