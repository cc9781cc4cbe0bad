// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import (
	"strings"
	"testing"

	"github.com/aclements/go-readelf/arch"
	"github.com/aclements/go-readelf/internal/elftest"
)

func symAt(name string, addr uint64) SymLookup {
	return func(a uint64) (string, uint64) {
		if a == addr {
			return name, addr
		}
		return "", 0
	}
}

func TestDisasmX86(t *testing.T) {
	// main, then helper's call and ret.
	text := elftest.Text[:14]
	seq, err := Disasm(arch.AMD64, text, elftest.TextAddr)
	if err != nil {
		t.Fatalf("Disasm failed unexpectedly: %v", err)
	}
	if seq.Len() != 7 {
		t.Fatalf("want 7 instructions, got %d", seq.Len())
	}

	var n int
	pc := uint64(elftest.TextAddr)
	for i := 0; i < seq.Len(); i++ {
		inst := seq.Get(i)
		if inst.PC() != pc {
			t.Errorf("instruction %d: want PC %#x, got %#x", i, pc, inst.PC())
		}
		pc += uint64(inst.Len())
		n += inst.Len()
	}
	if n != len(text) {
		t.Errorf("want %d bytes decoded, got %d", len(text), n)
	}

	sym := symAt("main", elftest.TextAddr)
	// The operand size of PUSH is reported as 32 bits in 64-bit mode.
	if got := seq.Get(0).GoSyntax(sym); got != "PUSHL BP" {
		t.Errorf("want PUSHL BP, got %q", got)
	}
	if got := seq.Get(4).GoSyntax(sym); got != "RET" {
		t.Errorf("want RET, got %q", got)
	}
	if got := seq.Get(5).GoSyntax(sym); got != "CALL main(SB)" {
		t.Errorf("want CALL main(SB), got %q", got)
	}
	if got := seq.Get(5).GNUSyntax(nil); !strings.HasPrefix(got, "call") {
		t.Errorf("want GNU call, got %q", got)
	}

	if c := seq.Get(4).Control(); c.Type != ControlRet {
		t.Errorf("ret: want %s, got %s", ControlRet, c.Type)
	}
	c := seq.Get(5).Control()
	if c.Type != ControlCall || !c.HasTarget || c.TargetPC != elftest.TextAddr {
		t.Errorf("call: want call to %#x, got %+v", elftest.TextAddr, c)
	}
	if c := seq.Get(1).Control(); c.Type != ControlNone {
		t.Errorf("mov: want no control flow, got %s", c.Type)
	}
}

func TestDisasmX86Bad(t *testing.T) {
	// A call with its displacement cut off.
	seq, err := Disasm(arch.AMD64, []byte{0x90, 0xe8}, 0x1000)
	if err != nil {
		t.Fatalf("Disasm failed unexpectedly: %v", err)
	}
	if seq.Len() != 2 {
		t.Fatalf("want 2 instructions, got %d", seq.Len())
	}
	if got := seq.Get(0).GoSyntax(nil); got != "NOPL" && got != "NOP" {
		t.Errorf("want NOP, got %q", got)
	}
	bad := seq.Get(1)
	if bad.GoSyntax(nil) != "?" || bad.GNUSyntax(nil) != "(bad)" || bad.Len() != 1 || bad.PC() != 0x1001 {
		t.Errorf("want one undecodable byte at 0x1001, got %q (%d bytes at %#x)", bad.GoSyntax(nil), bad.Len(), bad.PC())
	}
}

func TestDisasmARM64(t *testing.T) {
	text := []byte{
		0x1f, 0x20, 0x03, 0xd5, // nop
		0xff, 0xff, 0xff, 0x97, // bl .-4
		0xc0, 0x03, 0x5f, 0xd6, // ret
		0x00, 0x00, // partial word
	}
	const base = 0x10000
	seq, err := Disasm(arch.ARM64, text, base)
	if err != nil {
		t.Fatalf("Disasm failed unexpectedly: %v", err)
	}
	if seq.Len() != 3 {
		t.Fatalf("want 3 instructions, got %d", seq.Len())
	}
	if got := seq.Get(0).GNUSyntax(nil); got != "nop" {
		t.Errorf("want nop, got %q", got)
	}
	bl := seq.Get(1)
	if bl.PC() != base+4 || bl.Len() != 4 {
		t.Errorf("want bl at %#x with length 4, got %#x, %d", base+4, bl.PC(), bl.Len())
	}
	c := bl.Control()
	if c.Type != ControlCall || !c.HasTarget || c.TargetPC != base {
		t.Errorf("bl: want call to %#x, got %+v", base, c)
	}
	if got := bl.GNUSyntax(symAt("start", base)); !strings.HasSuffix(got, " <start>") {
		t.Errorf("want target annotated with <start>, got %q", got)
	}
	if got := seq.Get(2).GNUSyntax(nil); got != "ret" {
		t.Errorf("want ret, got %q", got)
	}
	if c := seq.Get(2).Control(); c.Type != ControlRet {
		t.Errorf("ret: want %s, got %s", ControlRet, c.Type)
	}
}

func TestDisasmUnsupported(t *testing.T) {
	if _, err := Disasm(nil, []byte{0}, 0); err == nil {
		t.Errorf("nil architecture: want error")
	}
	if _, err := Disasm(&arch.Arch{GoArch: "mips"}, []byte{0}, 0); err == nil {
		t.Errorf("mips: want error")
	}
}
