// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obj

import (
	"debug/elf"
	"fmt"
	"io"
	"strings"
)

// Dynamic tags for relative relocations, which postdate the debug/elf
// tag set.
const (
	dtRELRSZ  elf.DynTag = 35
	dtRELR    elf.DynTag = 36
	dtRELRENT elf.DynTag = 37
)

// A DynEntry is one entry of the dynamic section.
//
// The on-disk value is a union of an integer and an address. Val holds
// the raw bits; Addr interprets them according to Tag.
type DynEntry struct {
	// Index is the position of this entry in the dynamic section.
	Index int

	Tag elf.DynTag
	Val uint64
}

// addrTags are the dynamic tags whose value is a virtual address.
var addrTags = map[elf.DynTag]bool{
	elf.DT_PLTGOT:        true,
	elf.DT_HASH:          true,
	elf.DT_STRTAB:        true,
	elf.DT_SYMTAB:        true,
	elf.DT_RELA:          true,
	elf.DT_INIT:          true,
	elf.DT_FINI:          true,
	elf.DT_REL:           true,
	elf.DT_DEBUG:         true,
	elf.DT_JMPREL:        true,
	elf.DT_INIT_ARRAY:    true,
	elf.DT_FINI_ARRAY:    true,
	elf.DT_PREINIT_ARRAY: true,
	elf.DT_SYMTAB_SHNDX:  true,
	dtRELR:               true,
	elf.DT_GNU_HASH:      true,
	elf.DT_TLSDESC_PLT:   true,
	elf.DT_TLSDESC_GOT:   true,
	elf.DT_GNU_CONFLICT:  true,
	elf.DT_GNU_LIBLIST:   true,
	elf.DT_CONFIG:        true,
	elf.DT_DEPAUDIT:      true,
	elf.DT_AUDIT:         true,
	elf.DT_PLTPAD:        true,
	elf.DT_MOVETAB:       true,
	elf.DT_SYMINFO:       true,
	elf.DT_VERSYM:        true,
	elf.DT_VERDEF:        true,
	elf.DT_VERNEED:       true,
}

// stringTags are the dynamic tags whose value is an offset into the
// dynamic string table.
var stringTags = map[elf.DynTag]bool{
	elf.DT_NEEDED:  true,
	elf.DT_SONAME:  true,
	elf.DT_RPATH:   true,
	elf.DT_RUNPATH: true,
}

// IsAddressTag reports whether the value of a tag is a virtual address.
func IsAddressTag(tag elf.DynTag) bool {
	return addrTags[tag]
}

// IsStringTag reports whether the value of a tag is an offset into the
// dynamic string table.
func IsStringTag(tag elf.DynTag) bool {
	return stringTags[tag]
}

// Addr returns the entry's value as a virtual address, or false if the
// entry's tag does not carry an address.
func (e *DynEntry) Addr() (uint64, bool) {
	if !addrTags[e.Tag] {
		return 0, false
	}
	return e.Val, true
}

// DynTagName returns the display name of a dynamic tag.
func DynTagName(tag elf.DynTag) string {
	switch tag {
	case dtRELRSZ:
		return "RELRSZ"
	case dtRELR:
		return "RELR"
	case dtRELRENT:
		return "RELRENT"
	}
	// The stringer renders values between known names as "DT_X+n".
	if s := tag.String(); strings.HasPrefix(s, "DT_") && !strings.Contains(s, "+") {
		return strings.TrimPrefix(s, "DT_")
	}
	return fmt.Sprintf("<unknown>: %#x", uint64(tag))
}

// ReadDynamic decodes the dynamic entries in the size bytes at file
// offset off of r.
//
// Decoding stops at the first DT_NULL entry. Entries after it are
// discarded even if the region holds more bytes. A zero size yields no
// entries.
func ReadDynamic(h *Header, r io.ReaderAt, off, size uint64) ([]DynEntry, error) {
	if size == 0 {
		return nil, nil
	}
	buf, err := readAt(r, off, size)
	if err != nil {
		return nil, fmt.Errorf("reading dynamic section: %w", err)
	}
	rd := NewReader(&Data{Off: off, P: buf, Layout: h.layout})
	entsize := h.class.dyn
	var out []DynEntry
	for rd.Avail() >= entsize {
		var e DynEntry
		e.Index = len(out)
		// d_tag is signed; widen a 32-bit tag with its sign so the
		// processor- and OS-specific ranges compare correctly.
		e.Tag = elf.DynTag(rd.SWord())
		e.Val = rd.Word()
		if e.Tag == elf.DT_NULL {
			break
		}
		out = append(out, e)
	}
	return out, rd.Err()
}

// DynamicInfo is the folded form of a dynamic section, indexed by tag.
type DynamicInfo map[elf.DynTag]uint64

// foldTags are the tags FoldDynamic records.
var foldTags = map[elf.DynTag]bool{
	elf.DT_PLTRELSZ:        true,
	elf.DT_PLTGOT:          true,
	elf.DT_HASH:            true,
	elf.DT_STRTAB:          true,
	elf.DT_SYMTAB:          true,
	elf.DT_RELA:            true,
	elf.DT_RELASZ:          true,
	elf.DT_RELAENT:         true,
	elf.DT_STRSZ:           true,
	elf.DT_SYMENT:          true,
	elf.DT_INIT:            true,
	elf.DT_FINI:            true,
	elf.DT_RPATH:           true,
	elf.DT_SYMBOLIC:        true,
	elf.DT_REL:             true,
	elf.DT_RELSZ:           true,
	elf.DT_RELENT:          true,
	elf.DT_PLTREL:          true,
	elf.DT_DEBUG:           true,
	elf.DT_TEXTREL:         true,
	elf.DT_JMPREL:          true,
	elf.DT_BIND_NOW:        true,
	elf.DT_INIT_ARRAY:      true,
	elf.DT_FINI_ARRAY:      true,
	elf.DT_INIT_ARRAYSZ:    true,
	elf.DT_FINI_ARRAYSZ:    true,
	elf.DT_RUNPATH:         true,
	elf.DT_FLAGS:           true,
	elf.DT_PREINIT_ARRAY:   true,
	elf.DT_PREINIT_ARRAYSZ: true,
	elf.DT_SYMTAB_SHNDX:    true,
	dtRELRSZ:               true,
	dtRELR:                 true,
	dtRELRENT:              true,
	elf.DT_GNU_HASH:        true,
	elf.DT_FLAGS_1:         true,
}

// FoldDynamic records the value of each structurally significant tag in
// entries. When a tag repeats, the last value wins. Other tags, such as
// DT_NEEDED which legitimately repeats, are not recorded.
func FoldDynamic(entries []DynEntry) DynamicInfo {
	info := make(DynamicInfo)
	for _, e := range entries {
		if foldTags[e.Tag] {
			info[e.Tag] = e.Val
		}
	}
	return info
}

// Lookup returns the value recorded for tag.
func (d DynamicInfo) Lookup(tag elf.DynTag) (uint64, bool) {
	v, ok := d[tag]
	return v, ok
}
