// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package arch

import (
	"debug/elf"
	"encoding/binary"
	"testing"
)

var randomData16K = generateData(16 << 10)

func generateData(size int) []byte {
	out := make([]byte, size)
	for i := 0; i < size; i += 8 {
		for j := 0; j < 8; j++ {
			out[i+j] = byte(i)
		}
	}
	return out
}

func TestLayoutOrder(t *testing.T) {
	data := []byte{0xff, 0xfe, 0xfd, 0xfc, 0xfb, 0xfa, 0xf9, 0xf8}
	check := func(layout Layout, label string, want, got interface{}) {
		t.Helper()
		if want != got {
			t.Errorf("for %s %s: want %v, got %v", layout, label, want, got)
		}
	}

	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		l := NewLayout(order, 1)
		check(l, "Uint16", order.Uint16(data), l.Uint16(data))
		check(l, "Uint32", order.Uint32(data), l.Uint32(data))
		check(l, "Uint64", order.Uint64(data), l.Uint64(data))
		if l.BigEndian() != (order == binary.BigEndian) {
			t.Errorf("for %s: BigEndian() = %v", l, l.BigEndian())
		}
	}
}

func TestLayoutWord(t *testing.T) {
	data := []byte{0xff, 0xfe, 0xfd, 0xfc, 0xfb, 0xfa, 0xf9, 0xf8}
	check := func(wordSize int, want uint64, wantSigned int64) {
		t.Helper()
		l := NewLayout(binary.LittleEndian, wordSize)
		if got := l.Word(data); want != got {
			t.Errorf("for word size %d: want %#x, got %#x", wordSize, want, got)
		}
		if got := l.SWord(data); wantSigned != got {
			t.Errorf("for word size %d: want signed %d, got %d", wordSize, wantSigned, got)
		}
	}
	check(1, 0xff, -1)
	check(2, 0xfeff, -0x101)
	check(4, 0xfcfdfeff, -0x3020101)
	check(8, 0xf8f9fafbfcfdfeff, -0x706050403020101)
}

func TestLayoutWordWidensUnsigned(t *testing.T) {
	// A 32-bit offset with the high bit set must not sign-extend.
	l := NewLayout(binary.BigEndian, 4)
	if got := l.Word([]byte{0x80, 0, 0, 0}); got != 0x80000000 {
		t.Errorf("want 0x80000000, got %#x", got)
	}
}

func TestLayoutString(t *testing.T) {
	if got := NewLayout(binary.BigEndian, 4).String(); got != "BE32" {
		t.Errorf("want BE32, got %s", got)
	}
	if got := NewLayout(binary.LittleEndian, 8).String(); got != "LE64" {
		t.Errorf("want LE64, got %s", got)
	}
}

func TestForMachine(t *testing.T) {
	if got := ForMachine(elf.EM_X86_64); got != AMD64 {
		t.Errorf("EM_X86_64: want %s, got %s", AMD64, got)
	}
	if got := ForMachine(elf.EM_AARCH64); got != ARM64 {
		t.Errorf("EM_AARCH64: want %s, got %s", ARM64, got)
	}
	if got := ForMachine(elf.EM_MIPS); got != nil {
		t.Errorf("EM_MIPS: want nil, got %s", got)
	}
}

func BenchmarkOrder(b *testing.B) {
	b.Run("size=16KiB/order=little/bits=64", func(b *testing.B) {
		benchmarkOrder64(b, NewLayout(binary.LittleEndian, 1))
	})
	b.Run("size=16KiB/order=big/bits=64", func(b *testing.B) {
		benchmarkOrder64(b, NewLayout(binary.BigEndian, 1))
	})
}

func benchmarkOrder64(b *testing.B, order Layout) {
	data := randomData16K
	for i := 0; i < b.N; i++ {
		var sum uint64
		for off := 0; off < len(data); off += 8 {
			sum += order.Uint64(data[off:])
		}
		if sum != 16421219234243403776 {
			b.Fatalf("bad sum %d", sum)
		}
	}
}
