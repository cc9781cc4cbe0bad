// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package arch

import (
	"encoding/binary"
	"fmt"
)

// Layout describes a data layout: a byte order and a word size.
//
// Object file decoders use a Layout per file, where the word size is
// the file's class width (4 for ELFCLASS32, 8 for ELFCLASS64) rather
// than the width of the target architecture.
type Layout struct {
	// order is 0 for little endian and 1 for big endian. We don't use
	// binary.ByteOrder directly for this because the interface call (and
	// inlining prevention) is costly.
	order    uint8
	wordSize uint8
}

// NewLayout returns a new Layout with the given byte order and word size.
//
// wordSize must be 1, 2, 4, or 8.
func NewLayout(order binary.ByteOrder, wordSize int) Layout {
	var l Layout
	switch order {
	case binary.LittleEndian:
		l.order = 0
	case binary.BigEndian:
		l.order = 1
	default:
		panic(fmt.Errorf("unknown byte order %v", order))
	}
	if wordSize < 1 || wordSize > 8 || (wordSize&(wordSize-1) != 0) {
		panic("word size must be 1, 2, 4, or 8")
	}
	l.wordSize = uint8(wordSize)
	return l
}

// Order returns the byte order of l.
func (l Layout) Order() binary.ByteOrder {
	if l.order == 0 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// BigEndian reports whether l is big endian.
func (l Layout) BigEndian() bool {
	return l.order != 0
}

// WordSize returns the word size of l.
func (l Layout) WordSize() int {
	return int(l.wordSize)
}

// String returns a short description of l, such as "LE64".
func (l Layout) String() string {
	e := "LE"
	if l.order != 0 {
		e = "BE"
	}
	return fmt.Sprintf("%s%d", e, 8*int(l.wordSize))
}

func (l Layout) Uint16(b []byte) uint16 {
	_ = b[1]
	if l.order == 0 {
		return uint16(b[0]) | uint16(b[1])<<8
	}
	return uint16(b[1]) | uint16(b[0])<<8
}

func (l Layout) Uint32(b []byte) uint32 {
	_ = b[3]
	if l.order == 0 {
		return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	}
	return uint32(b[3]) | uint32(b[2])<<8 | uint32(b[1])<<16 | uint32(b[0])<<24
}

func (l Layout) Uint64(b []byte) uint64 {
	_ = b[7]
	if l.order == 0 {
		return uint64(l.Uint32(b)) | uint64(l.Uint32(b[4:]))<<32
	}
	return uint64(l.Uint32(b[4:])) | uint64(l.Uint32(b))<<32
}

// Word decodes an unsigned word of l's word size from b and
// zero-extends it to 64 bits.
func (l Layout) Word(b []byte) uint64 {
	return l.Uint(b, int(l.wordSize))
}

// SWord decodes a signed word of l's word size from b and
// sign-extends it to 64 bits.
func (l Layout) SWord(b []byte) int64 {
	switch l.wordSize {
	case 8:
		return int64(l.Uint64(b))
	case 4:
		return int64(int32(l.Uint32(b)))
	case 2:
		return int64(int16(l.Uint16(b)))
	}
	return int64(int8(b[0]))
}

// Uint decodes an unsigned integer of size bytes from b. size must be
// 1, 2, 4, or 8.
func (l Layout) Uint(b []byte, size int) uint64 {
	switch size {
	case 8:
		return l.Uint64(b)
	case 4:
		return uint64(l.Uint32(b))
	case 2:
		return uint64(l.Uint16(b))
	case 1:
		return uint64(b[0])
	}
	panic(fmt.Sprintf("bad integer size %d", size))
}
