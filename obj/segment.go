// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obj

import (
	"debug/elf"
	"fmt"
	"io"
	"math"
	"strings"
)

// ptGNUSframe is PT_GNU_SFRAME, the segment holding the SFrame stack
// trace table.
const ptGNUSframe elf.ProgType = 0x6474e554

// A ProgramHeader describes one segment in canonical form.
type ProgramHeader struct {
	// Index is the position of this segment in the program header
	// table.
	Index int

	Type   elf.ProgType
	Flags  elf.ProgFlag
	Offset uint64
	Vaddr  uint64
	Paddr  uint64
	Filesz uint64
	Memsz  uint64
	Align  uint64
}

// The flags word moves between the 32- and 64-bit layouts, so each class
// has its own decoder.

func decodeSegment32(rd *Reader) ProgramHeader {
	var p ProgramHeader
	p.Type = elf.ProgType(rd.Uint32())
	p.Offset = uint64(rd.Uint32())
	p.Vaddr = uint64(rd.Uint32())
	p.Paddr = uint64(rd.Uint32())
	p.Filesz = uint64(rd.Uint32())
	p.Memsz = uint64(rd.Uint32())
	p.Flags = elf.ProgFlag(rd.Uint32())
	p.Align = uint64(rd.Uint32())
	return p
}

func decodeSegment64(rd *Reader) ProgramHeader {
	var p ProgramHeader
	p.Type = elf.ProgType(rd.Uint32())
	p.Flags = elf.ProgFlag(rd.Uint32())
	p.Offset = rd.Uint64()
	p.Vaddr = rd.Uint64()
	p.Paddr = rd.Uint64()
	p.Filesz = rd.Uint64()
	p.Memsz = rd.Uint64()
	p.Align = rd.Uint64()
	return p
}

// pnXNum in e_phnum means the program header count is in the info
// field of section 0.
const pnXNum = 0xffff

// SegmentCount returns the number of entries in the program header
// table, following the PN_XNUM escape the same way SectionCount follows
// a zero e_shnum.
func SegmentCount(h *Header, r io.ReaderAt) (uint64, error) {
	if h.Phoff == 0 {
		return 0, nil
	}
	if h.Phnum != pnXNum || h.Shoff == 0 {
		return uint64(h.Phnum), nil
	}
	s0, err := readSectionHeader(h, r, 0)
	if err != nil {
		return 0, fmt.Errorf("resolving program header count: %w", err)
	}
	return uint64(s0.Info), nil
}

// ReadSegments reads the program header table of r in on-disk order.
func ReadSegments(h *Header, r io.ReaderAt) ([]ProgramHeader, error) {
	n, err := SegmentCount(h, r)
	if err != nil || n == 0 {
		return nil, err
	}
	if int(h.Phentsize) < h.class.phdr {
		return nil, fmt.Errorf("%w: program header entry size %d, want at least %d", ErrMalformedHeader, h.Phentsize, h.class.phdr)
	}
	stride := uint64(h.Phentsize)
	if h.Phoff > math.MaxInt64-n*stride {
		return nil, fmt.Errorf("%w: program header table at %#x", ErrTruncated, h.Phoff)
	}
	buf, err := readAt(r, h.Phoff, n*stride)
	if err != nil {
		return nil, fmt.Errorf("reading program headers: %w", err)
	}

	decode := decodeSegment32
	if h.Is64() {
		decode = decodeSegment64
	}
	rd := NewReader(&Data{Off: h.Phoff, P: buf, Layout: h.layout})
	out := make([]ProgramHeader, n)
	for i := range out {
		rd.SetOffset(i * int(stride))
		out[i] = decode(rd)
		out[i].Index = i
	}
	if err := rd.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Contains reports whether virtual address addr falls in the memory
// image of p.
func (p *ProgramHeader) Contains(addr uint64) bool {
	return addr >= p.Vaddr && addr-p.Vaddr < p.Memsz
}

// FlagString returns the segment permissions as readelf prints them,
// such as "R E".
func (p *ProgramHeader) FlagString() string {
	var b strings.Builder
	for _, f := range []struct {
		bit elf.ProgFlag
		c   byte
	}{{elf.PF_R, 'R'}, {elf.PF_W, 'W'}, {elf.PF_X, 'E'}} {
		if p.Flags&f.bit != 0 {
			b.WriteByte(f.c)
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// SegmentTypeName returns the display name of a segment type. Values
// outside the known set are rendered by range with their raw value.
func SegmentTypeName(t elf.ProgType) string {
	switch {
	case t == ptGNUSframe:
		return "GNU_SFRAME"
	case t >= elf.PT_GNU_MBIND_LO && t <= elf.PT_GNU_MBIND_HI:
		return fmt.Sprintf("GNU_MBIND+%#x", uint32(t-elf.PT_GNU_MBIND_LO))
	}
	// The stringer renders values between known names as "PT_X+n".
	if s := t.String(); strings.HasPrefix(s, "PT_") && !strings.Contains(s, "+") {
		return strings.TrimPrefix(s, "PT_")
	}
	switch {
	case t >= elf.PT_LOOS && t <= elf.PT_HIOS:
		return fmt.Sprintf("LOOS+%#x", uint32(t-elf.PT_LOOS))
	case t >= elf.PT_LOPROC && t <= elf.PT_HIPROC:
		return fmt.Sprintf("LOPROC+%#x", uint32(t-elf.PT_LOPROC))
	}
	return fmt.Sprintf("<unknown>: %#x", uint32(t))
}
