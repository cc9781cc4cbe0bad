// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obj

import (
	"bytes"
	"debug/elf"
	"errors"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"

	"github.com/aclements/go-readelf/internal/elftest"
)

var debugText = bytes.Repeat([]byte("compressed debug section contents "), 20)

func zlibStream(t *testing.T, p []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(p); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func zstdStream(t *testing.T, p []byte) []byte {
	t.Helper()
	zw, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer zw.Close()
	return zw.EncodeAll(p, nil)
}

func compressedFile(class elf.Class, typ elf.CompressionType, size uint64, stream []byte) *elftest.File {
	f := elftest.Minimal64()
	f.Class = class
	chdr := f.Chdr(typ, size, 1)
	f.Sections = append(f.Sections, elftest.Section{
		Name:  ".debug_info",
		Type:  elf.SHT_PROGBITS,
		Flags: elf.SHF_COMPRESSED,
		Align: 8,
		Data:  append(chdr, stream...),
	})
	return f
}

func TestDecompress(t *testing.T) {
	for _, test := range []struct {
		name  string
		class elf.Class
		typ   elf.CompressionType
		enc   func(*testing.T, []byte) []byte
	}{
		{"zlib64", elf.ELFCLASS64, elf.COMPRESS_ZLIB, zlibStream},
		{"zlib32", elf.ELFCLASS32, elf.COMPRESS_ZLIB, zlibStream},
		{"zstd64", elf.ELFCLASS64, elf.COMPRESS_ZSTD, zstdStream},
	} {
		t.Run(test.name, func(t *testing.T) {
			img := compressedFile(test.class, test.typ, uint64(len(debugText)), test.enc(t, debugText)).Build()
			f, err := Open(img.Reader())
			if err != nil {
				t.Fatalf("Open failed unexpectedly: %v", err)
			}
			i := img.Index[".debug_info"]

			raw, err := f.SectionData(i)
			if err != nil {
				t.Fatalf("SectionData failed unexpectedly: %v", err)
			}
			ch, err := ParseCompressionHeader(f.Header(), raw)
			if err != nil {
				t.Fatalf("ParseCompressionHeader failed unexpectedly: %v", err)
			}
			wantHdr := 24
			if test.class == elf.ELFCLASS32 {
				wantHdr = 12
			}
			if ch.Type != test.typ || ch.Size != uint64(len(debugText)) || ch.Addralign != 1 || ch.HeaderSize != wantHdr {
				t.Errorf("want header %s size %d align 1 (%d bytes), got %+v", test.typ, len(debugText), wantHdr, ch)
			}

			got, err := f.DecompressedSectionData(i)
			if err != nil {
				t.Fatalf("DecompressedSectionData failed unexpectedly: %v", err)
			}
			if !bytes.Equal(got, debugText) {
				t.Errorf("want %q, got %q", debugText, got)
			}
		})
	}
}

func TestDecompressErrors(t *testing.T) {
	stream := zlibStream(t, debugText)
	for _, test := range []struct {
		name string
		file *elftest.File
		want error
	}{
		{"size mismatch", compressedFile(elf.ELFCLASS64, elf.COMPRESS_ZLIB, uint64(len(debugText))+1, stream), ErrTruncated},
		{"overlong zlib", compressedFile(elf.ELFCLASS64, elf.COMPRESS_ZLIB, 10, stream), ErrTruncated},
		{"overlong zstd", compressedFile(elf.ELFCLASS64, elf.COMPRESS_ZSTD, uint64(len(debugText))-1, zstdStream(t, debugText)), ErrTruncated},
		{"unsupported", compressedFile(elf.ELFCLASS64, 42, uint64(len(debugText)), stream), ErrUnsupportedCompression},
	} {
		t.Run(test.name, func(t *testing.T) {
			img := test.file.Build()
			f, err := Open(img.Reader())
			if err != nil {
				t.Fatalf("Open failed unexpectedly: %v", err)
			}
			if _, err := f.DecompressedSectionData(img.Index[".debug_info"]); !errors.Is(err, test.want) {
				t.Fatalf("want %v, got %v", test.want, err)
			}
		})
	}

	// A header that does not fit is truncated.
	h, err := ReadHeader(elftest.Minimal64().Build().Reader())
	if err != nil {
		t.Fatalf("ReadHeader failed unexpectedly: %v", err)
	}
	if _, err := ParseCompressionHeader(h, make([]byte, 10)); !errors.Is(err, ErrTruncated) {
		t.Errorf("short header: want ErrTruncated, got %v", err)
	}
}

func TestDecompressUncompressed(t *testing.T) {
	f, err := Open(elftest.Exec64().Reader())
	if err != nil {
		t.Fatalf("Open failed unexpectedly: %v", err)
	}
	got, err := f.DecompressedSectionData(1)
	if err != nil {
		t.Fatalf("DecompressedSectionData failed unexpectedly: %v", err)
	}
	if !bytes.Equal(got, elftest.Text) {
		t.Errorf("want .text unchanged, got % x", got)
	}
}
