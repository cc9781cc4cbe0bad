// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obj

import (
	"bytes"
	"debug/elf"
	"fmt"
	"io"
	"math"
	"strings"
)

// shfExclude is the GNU SHF_EXCLUDE flag, which lives in the
// processor-specific mask.
const shfExclude elf.SectionFlag = 0x80000000

// A SectionHeader is one entry of the section header table in canonical
// form.
//
// The section name is not resolved when the table is read. NameIndex is
// an offset into the section name string table; see File.SectionName.
type SectionHeader struct {
	// Index is the position of this section in the section header
	// table. Index 0 is the reserved null section.
	Index int

	NameIndex uint32
	Type      elf.SectionType
	Flags     elf.SectionFlag
	Addr      uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	Addralign uint64
	Entsize   uint64
}

// Alloc reports whether the section occupies memory at run time.
func (s *SectionHeader) Alloc() bool {
	return s.Flags&elf.SHF_ALLOC != 0
}

// TLS reports whether the section holds thread-local storage.
func (s *SectionHeader) TLS() bool {
	return s.Flags&elf.SHF_TLS != 0
}

// FileSize returns the number of bytes the section occupies in the file.
func (s *SectionHeader) FileSize() uint64 {
	if s.Type == elf.SHT_NOBITS {
		return 0
	}
	return s.Size
}

// decodeSection decodes one section header record. The 32- and 64-bit
// records have the same fields in the same order; only the address-
// and size-typed fields change width.
func decodeSection(rd *Reader) SectionHeader {
	var s SectionHeader
	s.NameIndex = rd.Uint32()
	s.Type = elf.SectionType(rd.Uint32())
	s.Flags = elf.SectionFlag(rd.Word())
	s.Addr = rd.Word()
	s.Offset = rd.Word()
	s.Size = rd.Word()
	s.Link = rd.Uint32()
	s.Info = rd.Uint32()
	s.Addralign = rd.Word()
	s.Entsize = rd.Word()
	return s
}

// shentsize returns the stride of the section header table.
func (h *Header) shentsize() (uint64, error) {
	if int(h.Shentsize) < h.class.shdr {
		return 0, fmt.Errorf("%w: section header entry size %d, want at least %d", ErrMalformedHeader, h.Shentsize, h.class.shdr)
	}
	return uint64(h.Shentsize), nil
}

// readSectionHeader reads the i'th record of the section header table
// without consulting the section count.
func readSectionHeader(h *Header, r io.ReaderAt, i uint64) (SectionHeader, error) {
	stride, err := h.shentsize()
	if err != nil {
		return SectionHeader{}, err
	}
	if i > (math.MaxInt64-h.Shoff)/stride {
		return SectionHeader{}, fmt.Errorf("%w: section %d", ErrUnresolvableIndex, i)
	}
	buf, err := readAt(r, h.Shoff+i*stride, uint64(h.class.shdr))
	if err != nil {
		return SectionHeader{}, fmt.Errorf("reading section header %d: %w", i, err)
	}
	s := decodeSection(NewReader(&Data{Off: h.Shoff + i*stride, P: buf, Layout: h.layout}))
	s.Index = int(i)
	return s, nil
}

// SectionCount returns the number of entries in the section header
// table. When the count does not fit in the file header, e_shnum is 0
// and the real count is in the size field of section 0.
func SectionCount(h *Header, r io.ReaderAt) (uint64, error) {
	if h.Shoff == 0 {
		return 0, nil
	}
	if h.Shnum != 0 {
		return uint64(h.Shnum), nil
	}
	s0, err := readSectionHeader(h, r, 0)
	if err != nil {
		return 0, err
	}
	return s0.Size, nil
}

// ReadSections reads the entire section header table of r in on-disk
// order, so that element i describes section index i.
func ReadSections(h *Header, r io.ReaderAt) ([]SectionHeader, error) {
	n, err := SectionCount(h, r)
	if err != nil || n == 0 {
		return nil, err
	}
	stride, err := h.shentsize()
	if err != nil {
		return nil, err
	}
	if n > math.MaxInt64/stride {
		return nil, fmt.Errorf("%w: %d section headers", ErrTruncated, n)
	}
	buf, err := readAt(r, h.Shoff, n*stride)
	if err != nil {
		return nil, fmt.Errorf("reading section headers: %w", err)
	}

	d := &Data{Off: h.Shoff, P: buf, Layout: h.layout}
	rd := NewReader(d)
	out := make([]SectionHeader, n)
	for i := range out {
		rd.SetOffset(i * int(stride))
		out[i] = decodeSection(rd)
		out[i].Index = i
	}
	if err := rd.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SectionNameIndex returns the index of the section holding section
// names, following the SHN_XINDEX escape through section 0's link
// field. It returns 0 (SHN_UNDEF) if there is none.
func SectionNameIndex(h *Header, sections []SectionHeader) uint32 {
	if elf.SectionIndex(h.Shstrndx) == elf.SHN_XINDEX {
		if len(sections) == 0 {
			return 0
		}
		return sections[0].Link
	}
	return uint32(h.Shstrndx)
}

// ReadSectionPayload reads the file contents of section index i of r.
//
// It locates the section's header record directly rather than relying
// on a previously decoded table. SHT_NOBITS sections have no file
// contents and yield an empty slice.
func ReadSectionPayload(h *Header, r io.ReaderAt, i int) ([]byte, error) {
	n, err := SectionCount(h, r)
	if err != nil {
		return nil, err
	}
	if i < 0 || uint64(i) >= n {
		return nil, fmt.Errorf("%w: section %d of %d", ErrUnresolvableIndex, i, n)
	}
	s, err := readSectionHeader(h, r, uint64(i))
	if err != nil {
		return nil, err
	}
	return s.ReadPayload(r)
}

// ReadPayload reads the file contents of section s from r.
func (s *SectionHeader) ReadPayload(r io.ReaderAt) ([]byte, error) {
	data, err := readAt(r, s.Offset, s.FileSize())
	if err != nil {
		return nil, fmt.Errorf("reading section %d: %w", s.Index, err)
	}
	return data, nil
}

// A StringTable is the contents of a string table section: a flat
// buffer of NUL-terminated strings addressed by byte offset.
type StringTable []byte

// Lookup returns the string starting at byte offset i.
//
// If there is no NUL before the end of the table, the string runs to
// the end of the table. Lookup fails only if i is past the end of the
// table.
func (t StringTable) Lookup(i uint32) (string, bool) {
	if uint64(i) > uint64(len(t)) {
		return "", false
	}
	s := t[i:]
	if n := bytes.IndexByte(s, 0); n >= 0 {
		s = s[:n]
	}
	return string(s), true
}

var sectionFlagKeys = []struct {
	flag elf.SectionFlag
	key  byte
}{
	{elf.SHF_WRITE, 'W'},
	{elf.SHF_ALLOC, 'A'},
	{elf.SHF_EXECINSTR, 'X'},
	{elf.SHF_MERGE, 'M'},
	{elf.SHF_STRINGS, 'S'},
	{elf.SHF_INFO_LINK, 'I'},
	{elf.SHF_LINK_ORDER, 'L'},
	{elf.SHF_OS_NONCONFORMING, 'O'},
	{elf.SHF_GROUP, 'G'},
	{elf.SHF_TLS, 'T'},
	{elf.SHF_COMPRESSED, 'C'},
	{shfExclude, 'E'},
}

// SectionFlagKeys returns the compact key letters for flags in the
// style of readelf: W A X M S I L O G T C E for the known flags, o for
// other OS-specific bits, p for other processor-specific bits, and x
// for anything else.
func SectionFlagKeys(flags elf.SectionFlag) string {
	var b strings.Builder
	for _, k := range sectionFlagKeys {
		if flags&k.flag != 0 {
			b.WriteByte(k.key)
			flags &^= k.flag
		}
	}
	if flags&elf.SHF_MASKOS != 0 {
		b.WriteByte('o')
		flags &^= elf.SHF_MASKOS
	}
	if flags&elf.SHF_MASKPROC != 0 {
		b.WriteByte('p')
		flags &^= elf.SHF_MASKPROC
	}
	if flags != 0 {
		b.WriteByte('x')
	}
	return b.String()
}
