// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obj

import "debug/elf"

// tbssSpecial reports whether sec is a .tbss-like section: thread-local,
// with no file contents, being tested against a segment other than
// PT_TLS. Such a section occupies no space in any other segment.
func tbssSpecial(sec *SectionHeader, seg *ProgramHeader) bool {
	return sec.Flags&elf.SHF_TLS != 0 &&
		sec.Type == elf.SHT_NOBITS &&
		seg.Type != elf.PT_TLS
}

// sectionSize returns the size sec occupies within seg: 0 for the
// .tbss special case, and its declared size otherwise.
func sectionSize(sec *SectionHeader, seg *ProgramHeader) uint64 {
	if tbssSpecial(sec, seg) {
		return 0
	}
	return sec.Size
}

// isGNUMbind reports whether t is in the PT_GNU_MBIND range.
//
// This range sits inside the OS-specific range, so it is matched on its
// own bounds and never inferred from PT_LOOS/PT_HIOS.
func isGNUMbind(t elf.ProgType) bool {
	return t >= elf.PT_GNU_MBIND_LO && t <= elf.PT_GNU_MBIND_HI
}

// allocOnly reports whether a segment of type t may hold only sections
// that occupy memory.
func allocOnly(t elf.ProgType) bool {
	switch t {
	case elf.PT_LOAD, elf.PT_DYNAMIC, elf.PT_GNU_EH_FRAME, elf.PT_GNU_STACK,
		elf.PT_GNU_RELRO, ptGNUSframe:
		return true
	}
	return isGNUMbind(t)
}

// SectionInSegment reports whether section sec belongs to segment seg.
//
// If checkVMA is set, an allocated section must also lie within the
// segment's memory image. If strict is set, a section must start
// strictly before the end of the segment, so an empty section just past
// the end does not count.
//
// A .tbss-like section never belongs to a non-TLS segment: it
// contributes nothing to the segment's file or memory image.
func SectionInSegment(sec *SectionHeader, seg *ProgramHeader, checkVMA, strict bool) bool {
	return !tbssSpecial(sec, seg) && sectionInSegment1(sec, seg, checkVMA, strict)
}

func sectionInSegment1(sec *SectionHeader, seg *ProgramHeader, checkVMA, strict bool) bool {
	tls := sec.Flags&elf.SHF_TLS != 0
	alloc := sec.Flags&elf.SHF_ALLOC != 0
	nobits := sec.Type == elf.SHT_NOBITS
	size := sectionSize(sec, seg)

	// Only PT_LOAD, PT_GNU_RELRO and PT_TLS segments can contain
	// SHF_TLS sections.
	if tls && seg.Type != elf.PT_TLS && seg.Type != elf.PT_GNU_RELRO && seg.Type != elf.PT_LOAD {
		return false
	}
	// PT_TLS and PT_PHDR segments contain only SHF_TLS sections.
	if !tls && (seg.Type == elf.PT_TLS || seg.Type == elf.PT_PHDR) {
		return false
	}
	// Segments that describe the memory image contain only SHF_ALLOC
	// sections.
	if !alloc && allocOnly(seg.Type) {
		return false
	}

	// Any section with file contents must be within the segment's file
	// image.
	if !nobits {
		if sec.Offset < seg.Offset {
			return false
		}
		d := sec.Offset - seg.Offset
		if d > seg.Filesz || size > seg.Filesz-d {
			return false
		}
		// Filesz-1 wraps for an empty segment, which then holds only
		// empty sections at its start.
		if strict && d > seg.Filesz-1 {
			return false
		}
	}

	// Allocated sections must be within the segment's memory image.
	if checkVMA && alloc {
		if sec.Addr < seg.Vaddr {
			return false
		}
		d := sec.Addr - seg.Vaddr
		if d > seg.Memsz || size > seg.Memsz-d {
			return false
		}
		if strict && d > seg.Memsz-1 {
			return false
		}
	}

	// PT_DYNAMIC and PT_NOTE segments never start or end with an empty
	// section.
	if (seg.Type == elf.PT_DYNAMIC || seg.Type == elf.PT_NOTE) && sec.Size == 0 && seg.Memsz != 0 {
		if !nobits && !(sec.Offset > seg.Offset && sec.Offset-seg.Offset < seg.Filesz) {
			return false
		}
		if alloc && !(sec.Addr > seg.Vaddr && sec.Addr-seg.Vaddr < seg.Memsz) {
			return false
		}
	}
	return true
}

// SegmentSections returns, for each segment, the indexes of the sections
// it contains, in section order. The null section is never reported.
//
// This tests every section against every segment.
func SegmentSections(sections []SectionHeader, segments []ProgramHeader) [][]int {
	out := make([][]int, len(segments))
	for i := range segments {
		seg := &segments[i]
		for j := range sections {
			if j == 0 {
				continue
			}
			if SectionInSegment(&sections[j], seg, true, true) {
				out[i] = append(out[i], j)
			}
		}
	}
	return out
}
