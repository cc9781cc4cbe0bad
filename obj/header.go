// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obj

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/aclements/go-readelf/arch"
)

// elfMagic is the ELF signature in the first four identification bytes.
var elfMagic = [4]byte{0x7f, 'E', 'L', 'F'}

// Ident is the 16-byte e_ident block at the start of every ELF file.
// Its fields are single bytes, so it decodes the same way regardless of
// class or encoding.
type Ident struct {
	Magic      [4]byte
	Class      elf.Class
	Data       elf.Data
	Version    elf.Version
	OSABI      elf.OSABI
	ABIVersion uint8
}

// ParseIdent decodes an identification block. b must hold at least
// elf.EI_NIDENT bytes.
func ParseIdent(b []byte) (Ident, error) {
	if len(b) < elf.EI_NIDENT {
		return Ident{}, fmt.Errorf("%w: identification is %d bytes, want %d", ErrMalformedHeader, len(b), elf.EI_NIDENT)
	}
	var id Ident
	copy(id.Magic[:], b[:4])
	id.Class = elf.Class(b[elf.EI_CLASS])
	id.Data = elf.Data(b[elf.EI_DATA])
	id.Version = elf.Version(b[elf.EI_VERSION])
	id.OSABI = elf.OSABI(b[elf.EI_OSABI])
	id.ABIVersion = b[elf.EI_ABIVERSION]
	return id, nil
}

// Endian returns the byte order declared by the identification block,
// or false if the encoding byte is not recognized.
func (id Ident) Endian() (binary.ByteOrder, bool) {
	return byteOrder(id.Data)
}

// MagicOK reports whether the signature bytes match the ELF signature.
// The bytes are read as a word in the file's own declared byte order
// and compared against the signature read the same way, so a file with
// an unrecognized encoding never matches.
func (id Ident) MagicOK() bool {
	order, ok := id.Endian()
	if !ok {
		return false
	}
	l := arch.NewLayout(order, 4)
	return l.Uint32(id.Magic[:]) == l.Uint32(elfMagic[:])
}

// KnownOSABI reports whether id.OSABI is one of the ABIs OSABIName has a
// display name for.
func (id Ident) KnownOSABI() bool {
	_, ok := osabiNames[id.OSABI]
	return ok
}

var osabiNames = map[elf.OSABI]string{
	elf.ELFOSABI_NONE:       "UNIX - System V",
	elf.ELFOSABI_HPUX:       "HP-UX",
	elf.ELFOSABI_NETBSD:     "NetBSD",
	elf.ELFOSABI_LINUX:      "Linux",
	elf.ELFOSABI_HURD:       "GNU/Hurd",
	elf.ELFOSABI_SOLARIS:    "Solaris",
	elf.ELFOSABI_AIX:        "AIX",
	elf.ELFOSABI_IRIX:       "IRIX",
	elf.ELFOSABI_FREEBSD:    "FreeBSD",
	elf.ELFOSABI_TRU64:      "UNIX - Tru64",
	elf.ELFOSABI_MODESTO:    "Novell Modesto",
	elf.ELFOSABI_OPENBSD:    "OpenBSD",
	elf.ELFOSABI_OPENVMS:    "OpenVMS",
	elf.ELFOSABI_NSK:        "HP - Non-Stop Kernel",
	elf.ELFOSABI_AROS:       "AROS",
	elf.ELFOSABI_FENIXOS:    "FenixOS",
	elf.ELFOSABI_CLOUDABI:   "Nuxi CloudABI",
	elf.ELFOSABI_ARM:        "ARM",
	elf.ELFOSABI_STANDALONE: "Standalone App",
}

// OSABIName returns the display name of an OS/ABI byte. Unknown values
// are rendered with their raw value rather than rejected.
func OSABIName(a elf.OSABI) string {
	if s, ok := osabiNames[a]; ok {
		return s
	}
	return fmt.Sprintf("<unknown: %x>", uint8(a))
}

// A Header is the canonical, class-independent ELF file header. Every
// field is widened from its on-disk width without loss.
type Header struct {
	Ident

	Type      elf.Type
	Machine   elf.Machine
	Version   uint32
	Entry     uint64
	Phoff     uint64
	Shoff     uint64
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16

	layout arch.Layout
	class  classInfo
}

// ReadHeader reads and validates the file header of r.
//
// It reads a block the size of the 64-bit header, which is the larger
// layout, determines the class from the identification bytes, and then
// decodes the class-specific layout. A short read, a bad signature, or
// an unknown class or encoding fail with ErrMalformedHeader.
func ReadHeader(r io.ReaderAt) (*Header, error) {
	var buf [64]byte
	n, err := r.ReadAt(buf[:], 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading ELF header: %w", err)
	}
	id, err := ParseIdent(buf[:n])
	if err != nil {
		return nil, err
	}
	if !id.MagicOK() {
		return nil, fmt.Errorf("%w: bad signature % x", ErrMalformedHeader, id.Magic[:])
	}
	layout, err := layoutFor(id.Class, id.Data)
	if err != nil {
		return nil, err
	}
	ci, _ := classOf(id.Class)
	if n < ci.ehdr {
		return nil, fmt.Errorf("%w: read %d header bytes, want %d for %s", ErrMalformedHeader, n, ci.ehdr, id.Class)
	}

	h := &Header{Ident: id, layout: layout, class: ci}
	rd := NewReader(&Data{P: buf[elf.EI_NIDENT:ci.ehdr], Off: elf.EI_NIDENT, Layout: layout})
	h.Type = elf.Type(rd.Uint16())
	h.Machine = elf.Machine(rd.Uint16())
	h.Version = rd.Uint32()
	h.Entry = rd.Word()
	h.Phoff = rd.Word()
	h.Shoff = rd.Word()
	h.Flags = rd.Uint32()
	h.Ehsize = rd.Uint16()
	h.Phentsize = rd.Uint16()
	h.Phnum = rd.Uint16()
	h.Shentsize = rd.Uint16()
	h.Shnum = rd.Uint16()
	h.Shstrndx = rd.Uint16()
	if err := rd.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	return h, nil
}

// Layout returns the byte order and class word size of the file.
func (h *Header) Layout() arch.Layout {
	return h.layout
}

// Is64 reports whether the file is ELFCLASS64.
func (h *Header) Is64() bool {
	return h.Class == elf.ELFCLASS64
}

// ObjectType returns a display string for the file's object type,
// mapping the OS- and processor-specific ranges.
func (h *Header) ObjectType() string {
	switch t := h.Type; {
	case t == elf.ET_NONE:
		return "NONE (None)"
	case t == elf.ET_REL:
		return "REL (Relocatable file)"
	case t == elf.ET_EXEC:
		return "EXEC (Executable file)"
	case t == elf.ET_DYN:
		return "DYN (Shared object file)"
	case t == elf.ET_CORE:
		return "CORE (Core file)"
	case t >= elf.ET_LOOS && t <= elf.ET_HIOS:
		return fmt.Sprintf("OS Specific: (%x)", uint16(t))
	case t >= elf.ET_LOPROC:
		return fmt.Sprintf("Processor Specific: (%x)", uint16(t))
	default:
		return fmt.Sprintf("<unknown>: %x", uint16(t))
	}
}
