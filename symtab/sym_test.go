// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symtab

import (
	"bytes"
	"debug/elf"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/aclements/go-readelf/internal/elftest"
	"github.com/aclements/go-readelf/obj"
)

func TestSynthesizeSizes(t *testing.T) {
	sections := []obj.SectionHeader{
		{Addr: 0, Size: 100},
		{Addr: 100, Size: 100},
		{Addr: 1000, Size: 100},
		{Addr: 2000, Size: 100},
	}
	type symTest struct {
		size int // -1 if non-synthesized
		sym  Sym
	}
	test := []symTest{
		{-1, Sym{Section: -1}}, // Non-data
		// Section symbols
		{-1, Sym{Section: 1, Kind: SymSection, Value: 100, Size: 100}}, // Has size
		{-1, Sym{Section: 1, Kind: SymSection, Value: 200, Size: 0}},   // Value doesn't match base
		{100, Sym{Section: 1, Kind: SymSection, Value: 100, Size: 0}},  // Synthesize
		// Data symbols
		{-1, Sym{Section: 0, Value: 100, Size: 100}}, // Has size
		{10, Sym{Section: 0, Value: 90}},             // To end of section
		{20, Sym{Section: 1, Value: 150}},            // To next symbol
		{-1, Sym{Section: 1, Value: 170, Size: 1}},
		// Multiple zero-sized symbols at the same address.
		{30, Sym{Section: 2, Value: 1000}},
		{30, Sym{Section: 2, Value: 1000}},
		{-1, Sym{Section: 2, Value: 1000, Size: 10}},
		{-1, Sym{Section: 2, Value: 1030, Size: 1}},
		// Symbols outside section.
		{150, Sym{Section: 3, Value: 1900}}, // To next symbol
		{50, Sym{Section: 3, Value: 2050}},  // Only to end of section
		{-1, Sym{Section: 3, Value: 2150}},  // Past end, ignored
		// Section index out of range.
		{-1, Sym{Section: 9, Value: 10}},
	}

	var syms []Sym
	for _, t := range test {
		syms = append(syms, t.sym)
	}
	SynthesizeSizes(syms, sections)

	for i, want := range test {
		got := syms[i]
		if want.size == -1 {
			if got.SizeSynthesized {
				t.Errorf("symbol %d: incorrectly marked synthesized", i)
			} else if want.sym.Size != got.Size {
				t.Errorf("symbol %d: want non-synthetic size %d, got %d", i, want.sym.Size, got.Size)
			}
			continue
		}

		if !got.SizeSynthesized {
			t.Errorf("symbol %d: incorrectly marked non-synthesized", i)
		} else if uint64(want.size) != got.Size {
			t.Errorf("symbol %d: want synthetic size %d, got %d", i, want.size, got.Size)
		}
	}
}

func TestFromFile(t *testing.T) {
	img := elftest.Exec64()
	f, err := obj.Open(bytes.NewReader(img.Bytes()))
	if err != nil {
		t.Fatal(err)
	}

	syms, err := FromFile(f)
	if err != nil {
		t.Fatal(err)
	}
	want := []Sym{
		{Name: ".text", Section: 1, Mapped: true, Value: elftest.TextAddr, Kind: SymSection, Local: true},
		{Name: "main", Section: 1, Mapped: true, Value: elftest.TextAddr, Size: 8, Kind: SymText},
		{Name: "helper", Section: 1, Mapped: true, Value: elftest.TextAddr + 8, Kind: SymText, Local: true},
		{Name: "puts", Section: -1, Kind: SymUndef},
		{Name: "answer", Section: -1, Value: 42, Kind: SymAbsolute},
	}
	if diff := cmp.Diff(want, syms); diff != "" {
		t.Fatalf("FromFile mismatch (-want +got):\n%s", diff)
	}

	SynthesizeSizes(syms, f.Sections())
	if !syms[2].SizeSynthesized || syms[2].Size != elftest.TextSize-8 {
		t.Errorf("helper: want synthesized size %d, got %d (synthesized %v)", elftest.TextSize-8, syms[2].Size, syms[2].SizeSynthesized)
	}

	tab := NewTable(syms)
	if id := tab.Name("main"); id != 1 {
		t.Errorf("Name(main): want 1, got %s", id)
	}
	if id := tab.Addr(-1, elftest.TextAddr+9); id != 2 {
		t.Errorf("Addr(%#x): want 2, got %s", elftest.TextAddr+9, id)
	}
	if f.Header().Type != elf.ET_EXEC {
		t.Errorf("fixture type %s, want ET_EXEC", f.Header().Type)
	}
}
