// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obj

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// zstdMinLimit is the smallest output bound given to the zstd decoder.
const zstdMinLimit = 8 << 20

// A CompressionHeader is the canonical form of the Elf32_Chdr or
// Elf64_Chdr that prefixes the contents of an SHF_COMPRESSED section.
type CompressionHeader struct {
	Type      elf.CompressionType
	Size      uint64 // Uncompressed size
	Addralign uint64

	// HeaderSize is the on-disk size of the header. The compressed
	// stream starts at this offset in the section contents.
	HeaderSize int
}

// ParseCompressionHeader decodes the compression header at the start of
// payload, the raw contents of a compressed section.
func ParseCompressionHeader(h *Header, payload []byte) (CompressionHeader, error) {
	rd := NewReader(&Data{P: payload, Layout: h.layout})
	var ch CompressionHeader
	ch.Type = elf.CompressionType(rd.Uint32())
	if h.Is64() {
		rd.Skip(4) // ch_reserved
	}
	ch.Size = rd.Word()
	ch.Addralign = rd.Word()
	if err := rd.Err(); err != nil {
		return CompressionHeader{}, fmt.Errorf("reading compression header: %w", err)
	}
	ch.HeaderSize = h.class.chdr
	return ch, nil
}

// Decompress returns the uncompressed contents of a section given its
// raw payload. If the section is not SHF_COMPRESSED, payload is
// returned unchanged.
func Decompress(h *Header, s *SectionHeader, payload []byte) ([]byte, error) {
	if s.Flags&elf.SHF_COMPRESSED == 0 {
		return payload, nil
	}
	ch, err := ParseCompressionHeader(h, payload)
	if err != nil {
		return nil, err
	}
	stream := payload[ch.HeaderSize:]

	var out []byte
	switch ch.Type {
	case elf.COMPRESS_ZLIB:
		zr, err := zlib.NewReader(bytes.NewReader(stream))
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", s.Index, err)
		}
		defer zr.Close()
		// Read one byte past the declared size so an overlong stream
		// fails the length check below.
		out, err = io.ReadAll(io.LimitReader(zr, int64(ch.Size)+1))
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", s.Index, err)
		}
	case elf.COMPRESS_ZSTD:
		// The decoder also bounds the window by this limit, so it
		// must cover the encoder's default window.
		limit := max(ch.Size+1, zstdMinLimit)
		zr, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1), zstd.WithDecoderMaxMemory(limit))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		out, err = zr.DecodeAll(stream, nil)
		if errors.Is(err, zstd.ErrDecoderSizeExceeded) {
			return nil, fmt.Errorf("%w: section %d decompresses past %d bytes", ErrTruncated, s.Index, ch.Size)
		} else if err != nil {
			return nil, fmt.Errorf("section %d: %w", s.Index, err)
		}
	default:
		return nil, fmt.Errorf("%w: section %d uses %s", ErrUnsupportedCompression, s.Index, ch.Type)
	}

	if uint64(len(out)) != ch.Size {
		return nil, fmt.Errorf("%w: section %d decompressed to %d bytes, want %d", ErrTruncated, s.Index, len(out), ch.Size)
	}
	return out, nil
}
