// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symtab

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const (
	section1 = 1 // Mapped
	section2 = 2 // Mapped
	section3 = 3 // NOT mapped
)

func mapped(s Sym) Sym {
	s.Mapped = true
	return s
}

func TestAddr(t *testing.T) {
	// Basic address lookup test.
	tab := NewTable([]Sym{
		0: mapped(Sym{Section: section1, Value: 1000, Size: 10}),
		1: mapped(Sym{Section: section1, Value: 1050, Size: 10}),
		2: mapped(Sym{Section: section2, Value: 2000, Size: 10}),
		3: {Section: section3, Value: 3000, Size: 10},
	})
	check := func(label string, section int, addr uint64, want SymID) {
		t.Helper()
		got := tab.Addr(section, addr)
		if want != got {
			t.Errorf("%s: looking up (%d, %d) want %s, got %s", label, section, addr, want, got)
		}
	}
	check("beginning of symbol", section1, 1000, 0)
	check("beginning of symbol", section1, 1050, 1)
	check("beginning of symbol", section2, 2000, 2)
	check("beginning of symbol", section3, 3000, 3)

	check("end of symbol", section1, 1009, 0)
	check("end of symbol", section1, 1059, 1)
	check("just past end of symbol", section1, 1010, NoSym)
	check("just past end of symbol", section1, 1060, NoSym)

	check("any mapped section checks all mapped sections", section1, 2000, 2)
	check("no section checks all mapped sections", -1, 2000, 2)
	check("mapped section does not check unmapped sections", section1, 3000, NoSym)
	check("no section does not check unmapped sections", -1, 3000, NoSym)

	check("before first symbol", section1, 100, NoSym)
	check("before first symbol", -1, 100, NoSym)

	check("unknown section", 42, 1000, NoSym)

	if name, base := tab.SymName(1055); name != "" || base != 1050 {
		// Symbols in this table are unnamed.
		t.Errorf("SymName(1055): want \"\", 1050, got %q, %d", name, base)
	}
	if name, base := tab.SymName(1070); name != "" || base != 0 {
		t.Errorf("SymName(1070): want \"\", 0, got %q, %d", name, base)
	}
}

func TestName(t *testing.T) {
	tab := NewTable([]Sym{
		0: mapped(Sym{Section: section1, Name: "sym0", Value: 1000, Size: 10}),
		1: mapped(Sym{Section: section1, Name: "sym1", Value: 1001, Size: 0}),
		2: {Section: section3, Name: "sym2", Value: 3000, Size: 0},
		3: mapped(Sym{Section: section1, Name: "sym3", Value: 1002, Size: 10, Local: true}),
		4: {Section: -1, Name: "sym4", Kind: SymUndef},
		5: mapped(Sym{Section: section2, Name: "sym0", Value: 2000, Size: 10}),
	})
	check := func(label string, name string, want SymID) {
		t.Helper()
		got := tab.Name(name)
		if want != got {
			t.Errorf("%s: looking up %s want %s, got %s", label, name, want, got)
		}
	}

	check("mapped symbol with size", "sym0", 0)
	check("mapped symbol without size", "sym1", 1)
	check("unmapped symbol without size", "sym2", 2)
	check("local symbol", "sym3", NoSym)
	check("undefined symbol", "sym4", NoSym)
	check("unknown symbol", "sym100", NoSym)
}

func TestSyms(t *testing.T) {
	syms := []Sym{
		0: mapped(Sym{Section: section1, Value: 1000, Size: 10}),
		1: mapped(Sym{Section: section1, Value: 1010, Size: 10}),
	}
	tab := NewTable(syms)
	if diff := cmp.Diff(syms, tab.Syms()); diff != "" {
		t.Fatalf("Syms mismatch (-want +got):\n%s", diff)
	}
	if got := tab.Sym(1); got.Value != 1010 {
		t.Errorf("Sym(1): want value 1010, got %d", got.Value)
	}
}

func TestOverlap(t *testing.T) {
	const minAddr = 1000
	syms := []Sym{
		// Strictly nested.
		{Value: 1000, Size: 3},
		{Value: 1001, Size: 1},
		// Same beginning. Smaller symbols should be preferred.
		{Value: 1010, Size: 5},
		{Value: 1010, Size: 4},
		{Value: 1010, Size: 3},
		// Same end.
		{Value: 1020, Size: 5},
		{Value: 1021, Size: 4},
		{Value: 1022, Size: 3},
		// Overlap in the middle with same size. Earlier symbol should be preferred.
		{Value: 1030, Size: 5},
		{Value: 1032, Size: 5},
		// Nested abutting symbols.
		{Value: 1040, Size: 5},
		{Value: 1041, Size: 1},
		{Value: 1042, Size: 1},
		// Same end nested in another symbol.
		{Value: 1050, Size: 5},
		{Value: 1051, Size: 2},
		{Value: 1052, Size: 1},
		// Totally overlapping. Lower SymIDs should be preferred.
		{Value: 1060, Size: 1},
		{Value: 1060, Size: 1},
	}
	const maxAddr = 1070
	for i := range syms {
		syms[i].Section = section1
		syms[i].Mapped = true
		syms[i].Name = fmt.Sprintf("sym%d", i)
	}

	// For this test, we compare against a brute-force reference
	// implementation.
	prefer := func(a, b SymID) bool {
		sa, sb := &syms[a], &syms[b]
		if sa.Value != sb.Value {
			return sa.Value > sb.Value
		}
		if sa.Size != sb.Size {
			return sa.Size < sb.Size
		}
		return a < b
	}
	slow := func(addr uint64) SymID {
		best := NoSym
		for i := range syms {
			i := SymID(i)
			if syms[i].Value <= addr && addr < syms[i].Value+syms[i].Size {
				if best == NoSym || prefer(i, best) {
					best = i
				}
			}
		}
		return best
	}

	tab := NewTable(syms)
	for addr := uint64(minAddr); addr < maxAddr; addr++ {
		want := slow(addr)
		got := tab.Addr(-1, addr)
		if want != got {
			t.Errorf("at address %d: want symbol %s, got %s", addr, want, got)
		}
	}
}
