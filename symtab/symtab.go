// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package symtab implements symbol table lookup by name and address.
package symtab

import (
	"sort"

	"golang.org/x/exp/slices"
)

// mappedKey indexes the address table shared by all mapped sections.
const mappedKey = -1

// Table facilitates fast symbol lookup by name and address.
type Table struct {
	// syms is the original syms slice, by SymID
	syms []Sym

	// sections contains the address to symbol mapping for each section.
	// Mapped sections are all indexed under mappedKey.
	sections map[int]sectionTable

	// mapped records which sections are mapped.
	mapped map[int]bool

	// name indexes non-local symbols by name.
	name map[string]SymID
}

type sectionTable struct {
	// addr contains boundaries of symbols in Table.syms, ordered by
	// address. The boundary from symbol to NoSym is not explicitly
	// represented, since lookup can check the size of the symbol.
	//
	// If symbols overlap, this may contain the same symbol multiple
	// times. E.g., given one symbol strictly nested in another, the
	// outer symbol will appear both at its beginning address and at the
	// end address of the inner symbol.
	addr []symAddr
}

type symAddr struct {
	// addr is the address of this symbol boundary. Usually this is
	// beginning of the symbol, except in the case of overlapping
	// symbols.
	addr uint64
	id   SymID
}

// NewTable creates a new table for syms, indexed by SymID.
//
// NewTable uses sizes as they appear in syms, so the caller may wish to
// first call SynthesizeSizes.
func NewTable(syms []Sym) *Table {
	name := make(map[string]SymID)
	mapped := make(map[int]bool)
	sectionSyms := map[int][]SymID{mappedKey: {}}
	for i, s := range syms {
		if !s.Local && s.Kind != SymUndef {
			if _, ok := name[s.Name]; !ok {
				name[s.Name] = SymID(i)
			}
		}
		// Add symbols that have data to the address list. We omit
		// symbols of size 0 because they can't be the result of a
		// lookup and mess up the algorithm that computes the index.
		if s.Section >= 0 && s.Size != 0 {
			key := s.Section
			if s.Mapped {
				mapped[s.Section] = true
				key = mappedKey
			}
			sectionSyms[key] = append(sectionSyms[key], SymID(i))
		}
	}

	sections := make(map[int]sectionTable)
	for section, symIDs := range sectionSyms {
		sections[section] = sectionTable{makeAddrIndex(syms, symIDs)}
	}

	return &Table{syms, sections, mapped, name}
}

func makeAddrIndex(syms []Sym, ids []SymID) []symAddr {
	// Sort by starting address then priority, with low priority symbols
	// before higher priority so the higher priority ones override the
	// lower priority as we loop over the slice.
	slices.SortFunc(ids, func(i, j SymID) bool {
		si, sj := &syms[i], &syms[j]
		if si.Value != sj.Value {
			return si.Value < sj.Value
		}
		// Then size, preferring smaller symbols.
		if si.Size != sj.Size {
			return si.Size > sj.Size
		}
		// Then by index, which is guaranteed to be unique. This prefers
		// earlier symbols, which are the static ones when FromFile
		// built syms.
		return i > j
	})

	// Create the address index. This would be trivial except that
	// symbols can and do overlap. See Addr for the rules of
	// disambiguation. We iterate through each symbol *boundary*
	// (beginning and end) and keep a stack of symbols at the current
	// address (lowest end address at top of stack). Typically this
	// stack will be very shallow.
	var out []symAddr
	stack := make([]symAddr, 0, 8) // addr is *end* address
	drainStack := func(addr uint64) {
		for len(stack) > 0 {
			endAddr := stack[len(stack)-1].addr
			if endAddr > addr {
				return
			}
			// Pop all of the symbols that end at the next boundary.
			for len(stack) > 0 && stack[len(stack)-1].addr == endAddr {
				stack = stack[:len(stack)-1]
			}
			// At endAddr, we drop to the symbol at top of stack. If the
			// stack is empty now, we drop to NoSym, which doesn't have
			// an explicit marker.
			if len(stack) > 0 {
				out = append(out, symAddr{endAddr, stack[len(stack)-1].id})
			}
		}
	}
	for _, id := range ids {
		sym := syms[id]
		if len(stack) == 1 {
			if stack[0].addr <= sym.Value {
				// Back to NoSym; no boundary needed.
				stack = stack[:0]
			}
		} else if len(stack) > 0 {
			drainStack(sym.Value)
		}
		// Transition to sym at sym.Value.
		start := symAddr{sym.Value, id}
		if len(out) > 0 && out[len(out)-1].addr == sym.Value {
			out[len(out)-1] = start
		} else {
			out = append(out, start)
		}
		// Add symbol to the stack, keeping it ordered by end address.
		stack = append(stack, symAddr{sym.Value + sym.Size, id})
		for i := len(stack) - 1; i >= 1 && stack[i].addr > stack[i-1].addr; i-- {
			stack[i], stack[i-1] = stack[i-1], stack[i]
		}
	}
	drainStack(^uint64(0))

	return out
}

// Syms returns all symbols in Table. The returned slice can be
// indexed by SymID. The caller must not modify the returned slice.
func (t *Table) Syms() []Sym {
	return t.syms
}

// Sym returns symbol id.
func (t *Table) Sym(id SymID) *Sym {
	return &t.syms[id]
}

// Name returns the first defined, non-local symbol with the given name,
// or NoSym.
func (t *Table) Name(name string) SymID {
	if i, ok := t.name[name]; ok {
		return i
	}
	return NoSym
}

// Addr returns the symbol containing addr in section, or NoSym.
//
// If section is negative or a mapped section, Addr considers symbols in
// all mapped sections.
//
// This symbol may not be unique, in which case Addr prioritizes the
// symbol with the latest starting address, followed by the symbol with
// the smallest size.
func (t *Table) Addr(section int, addr uint64) SymID {
	if section < 0 || t.mapped[section] {
		section = mappedKey
	}
	tab, ok := t.sections[section]
	if !ok {
		return NoSym
	}
	i := sort.Search(len(tab.addr), func(i int) bool {
		return addr < tab.addr[i].addr
	}) - 1
	if i < 0 {
		return NoSym
	}
	id := tab.addr[i].id
	sym := &t.syms[id]
	if sym.Value+sym.Size <= addr {
		return NoSym
	}
	return id
}

// SymName returns the name and start address of the mapped symbol
// containing addr, or "", 0. It has the form disassemblers expect for
// symbolizing operands.
func (t *Table) SymName(addr uint64) (string, uint64) {
	id := t.Addr(mappedKey, addr)
	if id == NoSym {
		return "", 0
	}
	return t.syms[id].Name, t.syms[id].Value
}
