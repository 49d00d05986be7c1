// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package debugmap

import (
	"gate.computer/meter/code"
	"gate.computer/meter/wa/opcode"
)

// Relocator maps references to an original module to references to its
// instrumented version.
type Relocator interface {
	// Func maps a function index.
	Func(index uint32) uint32

	// Insn maps an instruction index within a function.  The function is
	// identified by its original index.  False is returned if it's not a
	// defined function or the instruction index is out of range.
	Insn(funcIndex, insnIndex uint32) (uint32, bool)

	// Label maps the ordinal of a block, loop or if instruction within a
	// function.  The function is identified by its original index.
	Label(funcIndex, label uint32) (uint32, bool)
}

// Relocation describes the changes made by instrumentation.  It implements
// Relocator.
type Relocation struct {
	NumImportFuncs uint32 // Number of function imports in the original module.
	FuncInserted   bool   // A function import was added after the original ones.

	// Original and rewritten bodies, and the instructions inserted into them.
	// Indexed by defined function index.
	Orig   []code.Body
	New    []code.Body
	Shifts []code.Shifts
}

func (r *Relocation) Func(index uint32) uint32 {
	if r.FuncInserted && index >= r.NumImportFuncs {
		return index + 1
	}
	return index
}

func (r *Relocation) defined(funcIndex uint32) (int, bool) {
	if funcIndex < r.NumImportFuncs {
		return 0, false
	}
	i := funcIndex - r.NumImportFuncs
	if i >= uint32(len(r.Orig)) {
		return 0, false
	}
	return int(i), true
}

func (r *Relocation) Insn(funcIndex, insnIndex uint32) (uint32, bool) {
	i, ok := r.defined(funcIndex)
	if !ok || insnIndex >= uint32(len(r.Orig[i].Insns)) {
		return 0, false
	}
	if i >= len(r.Shifts) {
		return insnIndex, true
	}
	return r.Shifts[i].Map(insnIndex), true
}

func (r *Relocation) Label(funcIndex, label uint32) (uint32, bool) {
	i, ok := r.defined(funcIndex)
	if !ok {
		return 0, false
	}

	pos, ok := labelPosition(r.Orig[i].Insns, label)
	if !ok {
		return 0, false
	}
	if i >= len(r.Shifts) || i >= len(r.New) {
		return label, true
	}

	return labelsBefore(r.New[i].Insns, r.Shifts[i].Map(pos)), true
}

func opensBlock(op opcode.Opcode) bool {
	return op == opcode.Block || op == opcode.Loop || op == opcode.If
}

// labelPosition finds the instruction index of the nth label.
func labelPosition(insns []code.Insn, n uint32) (uint32, bool) {
	for i, insn := range insns {
		if opensBlock(insn.Op) {
			if n == 0 {
				return uint32(i), true
			}
			n--
		}
	}
	return 0, false
}

func labelsBefore(insns []code.Insn, pos uint32) (n uint32) {
	for _, insn := range insns[:min(int(pos), len(insns))] {
		if opensBlock(insn.Op) {
			n++
		}
	}
	return
}
