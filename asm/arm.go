// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"
)

const arm64InstLen = 4

func disasmARM64(text []byte, pc uint64) Seq {
	out := arm64Seq{text: text, base: pc}
	// A trailing partial word is not an instruction.
	for len(text) >= arm64InstLen {
		inst, err := arm64asm.Decode(text[:arm64InstLen])
		if err != nil || inst.Op == 0 {
			inst = arm64asm.Inst{}
		}
		out.insts = append(out.insts, arm64Inst{inst, pc, &out})

		text = text[arm64InstLen:]
		pc += arm64InstLen
	}
	return &out
}

type arm64Seq struct {
	insts []arm64Inst
	// text is the raw code starting at address base, used to resolve
	// PC-relative literal loads.
	text []byte
	base uint64
}

// ReadAt reads code at address off.
func (s *arm64Seq) ReadAt(p []byte, off int64) (int, error) {
	addr := uint64(off)
	if addr < s.base || addr-s.base >= uint64(len(s.text)) {
		return 0, io.EOF
	}
	n := copy(p, s.text[addr-s.base:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s *arm64Seq) Len() int {
	return len(s.insts)
}

func (s *arm64Seq) Get(i int) Inst {
	return &s.insts[i]
}

type arm64Inst struct {
	arm64asm.Inst
	pc  uint64
	seq *arm64Seq
}

func (i *arm64Inst) GoSyntax(symname SymLookup) string {
	if i.Op == 0 {
		return "?"
	}
	if symname == nil {
		symname = func(uint64) (string, uint64) { return "", 0 }
	}
	return arm64asm.GoSyntax(i.Inst, i.pc, symname, i.seq)
}

func (i *arm64Inst) GNUSyntax(symname SymLookup) string {
	if i.Op == 0 {
		return "?"
	}
	// Instructions without operands come back with a trailing space.
	s := strings.TrimSpace(arm64asm.GNUSyntax(i.Inst))
	if c := i.Control(); c.HasTarget && symname != nil {
		if name, base := symname(c.TargetPC); name != "" {
			if off := c.TargetPC - base; off != 0 {
				return fmt.Sprintf("%s <%s+%#x>", s, name, off)
			}
			return fmt.Sprintf("%s <%s>", s, name)
		}
	}
	return s
}

func (i *arm64Inst) PC() uint64 {
	return i.pc
}

func (i *arm64Inst) Len() int { return arm64InstLen }

func (i *arm64Inst) Control() Control {
	var c Control

	switch i.Op {
	case arm64asm.B, arm64asm.BR, arm64asm.CBZ, arm64asm.CBNZ, arm64asm.TBZ, arm64asm.TBNZ:
		c.Type = ControlJump
	case arm64asm.BL, arm64asm.BLR:
		c.Type = ControlCall
	case arm64asm.RET, arm64asm.ERET:
		c.Type = ControlRet
		return c
	default:
		return c
	}

	for _, arg := range i.Args {
		switch arg := arg.(type) {
		case arm64asm.Cond:
			c.Conditional = true
		case arm64asm.PCRel:
			c.TargetPC = uint64(int64(i.pc) + int64(arg))
			c.HasTarget = true
		}
	}
	switch i.Op {
	case arm64asm.CBZ, arm64asm.CBNZ, arm64asm.TBZ, arm64asm.TBNZ:
		c.Conditional = true
	}
	return c
}
