// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package obj decodes the structure of ELF object files.
//
// Every table is decoded into one canonical form regardless of whether
// the file is ELF32 or ELF64, so callers never see width-specific
// records. Names are stored as string table indexes and resolved on
// demand.
package obj

import (
	"debug/elf"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"

	"github.com/aclements/go-readelf/arch"
)

// A File is a decoding session over one ELF file.
//
// The file header, section header table, and program header table are
// decoded when the File is opened. Symbol tables and the dynamic
// section are decoded on first use and cached. A File may be used from
// multiple goroutines.
type File struct {
	r      io.ReaderAt
	closer io.Closer
	logger log.Logger

	hdr      *Header
	sections []SectionHeader
	segments []ProgramHeader

	// shstrndx is the section holding section names, or 0.
	shstrndx uint32
	shstrtab StringTable

	// warnings collects failures of tables that did not prevent the
	// rest of the file from decoding.
	warnings *multierror.Error

	mu      sync.Mutex
	symtabs map[int]*SymbolTable

	dynOnce sync.Once
	dynamic []DynEntry
	dynInfo DynamicInfo
	dynErr  error

	dynstrOnce sync.Once
	dynstr     StringTable
}

// An Option configures a File.
type Option func(*File)

// WithLogger sets the logger used to report recoverable decoding
// problems. By default nothing is logged.
func WithLogger(logger log.Logger) Option {
	return func(f *File) {
		f.logger = logger
	}
}

// Open decodes the ELF file read from r.
//
// A malformed file header is fatal. Failures reading the section or
// program header tables are not: the affected table is left empty and
// the failure is reported by Warnings.
func Open(r io.ReaderAt, opts ...Option) (*File, error) {
	f := &File{r: r, logger: log.NewNopLogger(), symtabs: make(map[int]*SymbolTable)}
	for _, o := range opts {
		o(f)
	}

	hdr, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	f.hdr = hdr

	f.segments, err = ReadSegments(hdr, r)
	if err != nil {
		f.warn(err, "msg", "reading program headers")
	}
	f.sections, err = ReadSections(hdr, r)
	if err != nil {
		f.warn(err, "msg", "reading section headers")
	}

	f.shstrndx = SectionNameIndex(hdr, f.sections)
	if f.shstrndx != 0 {
		if s, ok := f.Section(int(f.shstrndx)); !ok {
			f.warn(fmt.Errorf("%w: section name table %d", ErrUnresolvableIndex, f.shstrndx), "msg", "locating section names")
			f.shstrndx = 0
		} else if data, err := s.ReadPayload(r); err != nil {
			f.warn(err, "msg", "reading section names")
		} else {
			f.shstrtab = data
		}
	}

	level.Debug(f.logger).Log("msg", "opened ELF file", "class", hdr.Class, "data", hdr.Data, "machine", hdr.Machine,
		"sections", len(f.sections), "segments", len(f.segments))
	return f, nil
}

// OpenFile opens the named file and decodes it. Close releases the
// underlying file.
func OpenFile(path string, opts ...Option) (*File, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	f, err := Open(fp, opts...)
	if err != nil {
		fp.Close()
		return nil, err
	}
	f.closer = fp
	return f, nil
}

func (f *File) warn(err error, keyvals ...interface{}) {
	f.warnings = multierror.Append(f.warnings, err)
	level.Warn(f.logger).Log(append(keyvals, "err", err)...)
}

// Close releases the file opened by OpenFile. Files created by Open do
// not own their reader, and Close does nothing.
func (f *File) Close() error {
	if f.closer == nil {
		return nil
	}
	err := f.closer.Close()
	f.closer = nil
	return err
}

// Warnings returns the failures of independent tables encountered while
// opening the file, or nil.
func (f *File) Warnings() error {
	return f.warnings.ErrorOrNil()
}

// Header returns the file header.
func (f *File) Header() *Header {
	return f.hdr
}

// Arch returns the machine architecture of this file, or nil if it is
// not one this package knows.
func (f *File) Arch() *arch.Arch {
	return arch.ForMachine(f.hdr.Machine)
}

// Sections returns the section header table, indexed by section number.
// The caller must not modify the returned slice.
func (f *File) Sections() []SectionHeader {
	return f.sections
}

// Section returns section i, or false if i is out of range.
func (f *File) Section(i int) (*SectionHeader, bool) {
	if i < 0 || i >= len(f.sections) {
		return nil, false
	}
	return &f.sections[i], true
}

// Segments returns the program header table, indexed by segment number.
// The caller must not modify the returned slice.
func (f *File) Segments() []ProgramHeader {
	return f.segments
}

// SectionNameTable returns the index of the section holding section
// names, or 0 if there is none.
func (f *File) SectionNameTable() uint32 {
	return f.shstrndx
}

// SectionName returns the name of section i. It returns "" if i is out
// of range or the name does not resolve.
func (f *File) SectionName(i int) string {
	s, ok := f.Section(i)
	if !ok {
		return ""
	}
	name, _ := f.shstrtab.Lookup(s.NameIndex)
	return name
}

// SectionData returns the raw file contents of section i.
func (f *File) SectionData(i int) ([]byte, error) {
	s, ok := f.Section(i)
	if !ok {
		return nil, fmt.Errorf("%w: section %d of %d", ErrUnresolvableIndex, i, len(f.sections))
	}
	return s.ReadPayload(f.r)
}

// DecompressedSectionData returns the contents of section i,
// decompressing them if the section is SHF_COMPRESSED.
func (f *File) DecompressedSectionData(i int) ([]byte, error) {
	data, err := f.SectionData(i)
	if err != nil {
		return nil, err
	}
	return Decompress(f.hdr, &f.sections[i], data)
}

// LookupSection returns the first section named name.
func (f *File) LookupSection(name string) (*SectionHeader, bool) {
	for i := range f.sections {
		if i != 0 && f.SectionName(i) == name {
			return &f.sections[i], true
		}
	}
	return nil, false
}

// Symbols decodes the symbol table in section i and pairs it with its
// string table. The result is cached.
//
// If the symbol table's link names the section name table, that table
// is reused. A missing or unreadable string table is logged and leaves
// the names unresolved; it does not fail the symbol table.
func (f *File) Symbols(i int) (*SymbolTable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.symtabs[i]; ok {
		return t, nil
	}

	sec, ok := f.Section(i)
	if !ok {
		return nil, fmt.Errorf("%w: section %d of %d", ErrUnresolvableIndex, i, len(f.sections))
	}
	syms, err := ReadSymbols(f.hdr, f.r, sec)
	if err != nil {
		return nil, fmt.Errorf("symbol table %d: %w", i, err)
	}
	t := &SymbolTable{Section: sec, Symbols: syms}

	switch strSec, ok := f.Section(int(sec.Link)); {
	case sec.Link != 0 && sec.Link == f.shstrndx:
		t.Strings = f.shstrtab
	case sec.Link == 0 || !ok:
		level.Warn(f.logger).Log("msg", "symbol table has no string table", "section", i, "link", sec.Link)
	default:
		data, err := strSec.ReadPayload(f.r)
		if err != nil {
			level.Warn(f.logger).Log("msg", "reading symbol string table", "section", i, "err", err)
		}
		t.Strings = data
	}

	f.symtabs[i] = t
	return t, nil
}

// SymbolTables decodes every SHT_SYMTAB and SHT_DYNSYM section. Tables
// that fail to decode are left out and their errors joined.
func (f *File) SymbolTables() ([]*SymbolTable, error) {
	var out []*SymbolTable
	var errs *multierror.Error
	for i := range f.sections {
		if t := f.sections[i].Type; t != elf.SHT_SYMTAB && t != elf.SHT_DYNSYM {
			continue
		}
		st, err := f.Symbols(i)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		out = append(out, st)
	}
	return out, errs.ErrorOrNil()
}

// DynamicSegment returns the PT_DYNAMIC segment, or false if there is
// none.
func (f *File) DynamicSegment() (*ProgramHeader, bool) {
	for i := range f.segments {
		if f.segments[i].Type == elf.PT_DYNAMIC {
			return &f.segments[i], true
		}
	}
	return nil, false
}

func (f *File) loadDynamic() {
	f.dynOnce.Do(func() {
		var off, size uint64
		if seg, ok := f.DynamicSegment(); ok {
			off, size = seg.Offset, seg.Filesz
		}
		f.dynamic, f.dynErr = ReadDynamic(f.hdr, f.r, off, size)
		f.dynInfo = FoldDynamic(f.dynamic)
	})
}

// Dynamic returns the entries of the dynamic segment up to its DT_NULL
// terminator. A file without a PT_DYNAMIC segment has no entries.
func (f *File) Dynamic() ([]DynEntry, error) {
	f.loadDynamic()
	return f.dynamic, f.dynErr
}

// DynamicInfo returns the folded dynamic section.
func (f *File) DynamicInfo() (DynamicInfo, error) {
	f.loadDynamic()
	return f.dynInfo, f.dynErr
}

// AddrToOffset translates virtual address addr to a file offset using
// the PT_LOAD segments. It fails if no segment maps addr from the file.
func (f *File) AddrToOffset(addr uint64) (uint64, bool) {
	for i := range f.segments {
		seg := &f.segments[i]
		if seg.Type != elf.PT_LOAD {
			continue
		}
		if addr >= seg.Vaddr && addr-seg.Vaddr < seg.Filesz {
			return seg.Offset + (addr - seg.Vaddr), true
		}
	}
	return 0, false
}

// dynamicStrings returns the dynamic string table. It is located by
// DT_STRTAB and DT_STRSZ, both of which must be present, or failing
// that by the link of the SHT_DYNAMIC section.
func (f *File) dynamicStrings() StringTable {
	f.dynstrOnce.Do(func() {
		info, _ := f.DynamicInfo()
		addr, hasAddr := info[elf.DT_STRTAB]
		size, hasSize := info[elf.DT_STRSZ]
		if hasAddr && hasSize {
			if off, ok := f.AddrToOffset(addr); ok {
				data, err := readAt(f.r, off, size)
				if err == nil {
					f.dynstr = data
					return
				}
				level.Warn(f.logger).Log("msg", "reading dynamic string table", "err", err)
			}
		}
		for i := range f.sections {
			if f.sections[i].Type != elf.SHT_DYNAMIC {
				continue
			}
			if s, ok := f.Section(int(f.sections[i].Link)); ok {
				f.dynstr, _ = s.ReadPayload(f.r)
			}
			return
		}
	})
	return f.dynstr
}

// DynamicString returns the string value of e, for tags such as
// DT_NEEDED whose value is an offset into the dynamic string table.
func (f *File) DynamicString(e *DynEntry) (string, bool) {
	if !IsStringTag(e.Tag) || e.Val > uint64(^uint32(0)) {
		return "", false
	}
	return f.dynamicStrings().Lookup(uint32(e.Val))
}

// SegmentSections returns, for each segment, the indexes of the sections
// it contains.
func (f *File) SegmentSections() [][]int {
	return SegmentSections(f.sections, f.segments)
}
