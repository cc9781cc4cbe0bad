// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package asm abstracts disassembling machine code from various
// architectures.
package asm

import (
	"fmt"

	"github.com/aclements/go-readelf/arch"
)

// Disasm disassembles machine code for the given architecture. pc is
// the program counter at which text begins.
func Disasm(a *arch.Arch, text []byte, pc uint64) (Seq, error) {
	if a != nil {
		switch a.GoArch {
		case "amd64":
			return disasmX86(text, pc, 64), nil
		case "386":
			return disasmX86(text, pc, 32), nil
		case "arm64":
			return disasmARM64(text, pc), nil
		}
	}
	return nil, fmt.Errorf("unsupported assembly architecture: %s", a)
}

// SymLookup returns the name and base address of the symbol
// containing addr, or "" if symbol lookup fails.
type SymLookup func(addr uint64) (name string, base uint64)

// Seq is a sequence of instructions.
type Seq interface {
	Len() int
	Get(i int) Inst
}

// Inst is a single machine instruction.
type Inst interface {
	// GoSyntax returns the Go assembler syntax representation of
	// this instruction. symName may be nil.
	GoSyntax(symName SymLookup) string

	// GNUSyntax returns the GNU assembler syntax representation of
	// this instruction, as objdump prints it. symName may be nil.
	GNUSyntax(symName SymLookup) string

	// PC returns the address of this instruction.
	PC() uint64

	// Len returns the length of this instruction in bytes.
	Len() int

	// Control returns the control-flow effects of this
	// instruction.
	Control() Control
}

// Control captures control-flow effects of an instruction.
type Control struct {
	Type        ControlType
	Conditional bool

	// TargetPC is the destination of a PC-relative transfer. It is
	// valid only if HasTarget is set.
	TargetPC  uint64
	HasTarget bool
}

type ControlType uint8

const (
	ControlNone ControlType = iota
	ControlJump
	ControlCall
	ControlRet

	// ControlExit is like a call that never returns.
	ControlExit
)

func (c ControlType) String() string {
	switch c {
	case ControlNone:
		return "none"
	case ControlJump:
		return "jump"
	case ControlCall:
		return "call"
	case ControlRet:
		return "ret"
	case ControlExit:
		return "exit"
	}
	return fmt.Sprintf("ControlType(%d)", uint8(c))
}
