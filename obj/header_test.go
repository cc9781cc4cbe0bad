// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obj

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/aclements/go-readelf/internal/elftest"
)

func TestReadHeader64(t *testing.T) {
	img := elftest.Minimal64().Build()
	h, err := ReadHeader(img.Reader())
	if err != nil {
		t.Fatalf("ReadHeader failed unexpectedly: %v", err)
	}
	if !h.Is64() || h.Data != elf.ELFDATA2LSB {
		t.Errorf("want ELFCLASS64 ELFDATA2LSB, got %s %s", h.Class, h.Data)
	}
	if h.Type != elf.ET_EXEC || h.Machine != elf.EM_X86_64 {
		t.Errorf("want ET_EXEC EM_X86_64, got %s %s", h.Type, h.Machine)
	}
	if h.Entry != 0x400078 {
		t.Errorf("want entry 0x400078, got %#x", h.Entry)
	}
	if h.Phoff != 64 || h.Phnum != 1 || h.Phentsize != 56 {
		t.Errorf("want 1 program header of 56 bytes at 64, got %d of %d at %d", h.Phnum, h.Phentsize, h.Phoff)
	}
	if h.Shoff != 160 || h.Shnum != 3 || h.Shentsize != 64 || h.Shstrndx != 2 {
		t.Errorf("want 3 section headers of 64 bytes at 160 (names in 2), got %d of %d at %d (names in %d)", h.Shnum, h.Shentsize, h.Shoff, h.Shstrndx)
	}
	if h.Ehsize != 64 {
		t.Errorf("want header size 64, got %d", h.Ehsize)
	}
	if got := h.ObjectType(); got != "EXEC (Executable file)" {
		t.Errorf("want object type %q, got %q", "EXEC (Executable file)", got)
	}
	if l := h.Layout(); l.WordSize() != 8 || l.BigEndian() {
		t.Errorf("want 64-bit little-endian layout, got %s", l)
	}
}

func TestReadHeader32BigEndian(t *testing.T) {
	img := elftest.Rel32BE()
	h, err := ReadHeader(img.Reader())
	if err != nil {
		t.Fatalf("ReadHeader failed unexpectedly: %v", err)
	}
	if h.Is64() || h.Data != elf.ELFDATA2MSB {
		t.Errorf("want ELFCLASS32 ELFDATA2MSB, got %s %s", h.Class, h.Data)
	}
	if h.Machine != elf.EM_PPC || h.Type != elf.ET_REL {
		t.Errorf("want ET_REL EM_PPC, got %s %s", h.Type, h.Machine)
	}
	// 32-bit words are widened without loss.
	if h.Shoff != img.Shoff {
		t.Errorf("want shoff %#x, got %#x", img.Shoff, h.Shoff)
	}
	if h.Ehsize != 52 || h.Shentsize != 40 {
		t.Errorf("want 32-bit record sizes 52/40, got %d/%d", h.Ehsize, h.Shentsize)
	}
	if l := h.Layout(); l.WordSize() != 4 || !l.BigEndian() {
		t.Errorf("want 32-bit big-endian layout, got %s", l)
	}

	// The header must agree with the standard library's reading.
	ef, err := elf.NewFile(img.Reader())
	if err != nil {
		t.Fatalf("debug/elf rejected fixture: %v", err)
	}
	if ef.Machine != h.Machine || ef.Type != h.Type || ef.ByteOrder != binary.BigEndian {
		t.Errorf("debug/elf disagrees: %s %s %s", ef.Machine, ef.Type, ef.ByteOrder)
	}
}

func TestReadHeaderErrors(t *testing.T) {
	valid := elftest.Minimal64().Build().Bytes()
	patch := func(off int, b ...byte) []byte {
		p := append([]byte(nil), valid...)
		copy(p[off:], b)
		return p
	}
	for _, test := range []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrMalformedHeader},
		{"short ident", valid[:10], ErrMalformedHeader},
		{"short header", valid[:40], ErrMalformedHeader},
		{"bad magic", patch(1, 'e'), ErrMalformedHeader},
		{"unknown class", patch(elf.EI_CLASS, 42), ErrUnknownClass},
		{"class none", patch(elf.EI_CLASS, byte(elf.ELFCLASSNONE)), ErrUnknownClass},
		{"unknown data", patch(elf.EI_DATA, 7), ErrMalformedHeader},
	} {
		t.Run(test.name, func(t *testing.T) {
			_, err := ReadHeader(bytes.NewReader(test.data))
			if err == nil {
				t.Fatalf("ReadHeader succeeded unexpectedly")
			}
			if !errors.Is(err, test.want) {
				t.Fatalf("want %v, got %v", test.want, err)
			}
		})
	}
}

func TestUnknownClassIsMalformed(t *testing.T) {
	if !errors.Is(ErrUnknownClass, ErrMalformedHeader) {
		t.Fatalf("ErrUnknownClass does not wrap ErrMalformedHeader")
	}
}

func TestMagicOK(t *testing.T) {
	for _, test := range []struct {
		name  string
		ident []byte
		want  bool
	}{
		{"little endian", []byte{0x7f, 'E', 'L', 'F', 2, 1, 1}, true},
		{"big endian", []byte{0x7f, 'E', 'L', 'F', 1, 2, 1}, true},
		{"bad signature", []byte{0x7f, 'E', 'L', 'G', 2, 1, 1}, false},
		{"reversed signature", []byte{'F', 'L', 'E', 0x7f, 2, 2, 1}, false},
		{"no encoding", []byte{0x7f, 'E', 'L', 'F', 2, 0, 1}, false},
	} {
		t.Run(test.name, func(t *testing.T) {
			b := make([]byte, elf.EI_NIDENT)
			copy(b, test.ident)
			id, err := ParseIdent(b)
			if err != nil {
				t.Fatalf("ParseIdent failed unexpectedly: %v", err)
			}
			if got := id.MagicOK(); got != test.want {
				t.Fatalf("want MagicOK %v, got %v", test.want, got)
			}
		})
	}
}

func TestParseIdent(t *testing.T) {
	b := []byte{0x7f, 'E', 'L', 'F', 2, 2, 1, byte(elf.ELFOSABI_FREEBSD), 3, 0, 0, 0, 0, 0, 0, 0}
	id, err := ParseIdent(b)
	if err != nil {
		t.Fatalf("ParseIdent failed unexpectedly: %v", err)
	}
	want := Ident{Magic: [4]byte{0x7f, 'E', 'L', 'F'}, Class: elf.ELFCLASS64, Data: elf.ELFDATA2MSB, Version: elf.EV_CURRENT, OSABI: elf.ELFOSABI_FREEBSD, ABIVersion: 3}
	if id != want {
		t.Errorf("want %+v, got %+v", want, id)
	}
	if order, ok := id.Endian(); !ok || order != binary.BigEndian {
		t.Errorf("want big endian, got %v, %v", order, ok)
	}
	if !id.KnownOSABI() {
		t.Errorf("FreeBSD OS/ABI not known")
	}

	if _, err := ParseIdent(b[:15]); !errors.Is(err, ErrMalformedHeader) {
		t.Errorf("want ErrMalformedHeader for short ident, got %v", err)
	}
}

func TestOSABIName(t *testing.T) {
	for abi, want := range map[elf.OSABI]string{
		elf.ELFOSABI_NONE:  "UNIX - System V",
		elf.ELFOSABI_LINUX: "Linux",
		elf.ELFOSABI_TRU64: "UNIX - Tru64",
		0x42:               "<unknown: 42>",
	} {
		if got := OSABIName(abi); got != want {
			t.Errorf("OSABIName(%d): want %q, got %q", abi, want, got)
		}
	}
}

func TestObjectType(t *testing.T) {
	for typ, want := range map[elf.Type]string{
		elf.ET_REL:  "REL (Relocatable file)",
		elf.ET_DYN:  "DYN (Shared object file)",
		elf.ET_CORE: "CORE (Core file)",
		0xfe01:      "OS Specific: (fe01)",
		0xff02:      "Processor Specific: (ff02)",
		0x1234:      "<unknown>: 1234",
	} {
		h := &Header{Type: typ}
		if got := h.ObjectType(); got != want {
			t.Errorf("ObjectType(%#x): want %q, got %q", uint16(typ), want, got)
		}
	}
}

func TestDecodeWord(t *testing.T) {
	b := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8}
	for _, test := range []struct {
		class elf.Class
		order binary.ByteOrder
		off   int
		want  uint64
	}{
		{elf.ELFCLASS32, binary.LittleEndian, 0, 0x03020100},
		{elf.ELFCLASS32, binary.BigEndian, 1, 0x01020304},
		{elf.ELFCLASS64, binary.LittleEndian, 1, 0x0807060504030201},
		{elf.ELFCLASS64, binary.BigEndian, 0, 0x0001020304050607},
	} {
		got, err := DecodeWord(test.class, test.order, b, test.off)
		if err != nil {
			t.Errorf("DecodeWord(%s, %s, %d) failed: %v", test.class, test.order, test.off, err)
			continue
		}
		if got != test.want {
			t.Errorf("DecodeWord(%s, %s, %d): want %#x, got %#x", test.class, test.order, test.off, test.want, got)
		}
	}

	if _, err := DecodeWord(elf.ELFCLASS64, binary.LittleEndian, b, 2); !errors.Is(err, ErrTruncated) {
		t.Errorf("want ErrTruncated reading past end, got %v", err)
	}
	if _, err := DecodeWord(elf.ELFCLASS64, binary.LittleEndian, b, -1); !errors.Is(err, ErrTruncated) {
		t.Errorf("want ErrTruncated for negative offset, got %v", err)
	}
	if _, err := DecodeWord(elf.ELFCLASSNONE, binary.LittleEndian, b, 0); !errors.Is(err, ErrUnknownClass) {
		t.Errorf("want ErrUnknownClass, got %v", err)
	}
}
