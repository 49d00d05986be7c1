// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rules defines instruction cost rules for gas metering.
package rules

import (
	"gate.computer/meter/code"
)

// MemoryGrowCost is charged per page requested by memory.grow, in addition to
// the instruction cost.  Zero means that growth is free.
type MemoryGrowCost struct {
	PerPage uint32
}

func (c MemoryGrowCost) Free() bool { return c.PerPage == 0 }

// Rules are consulted for every instruction in a metered function.
type Rules interface {
	// InstructionCost returns false if the instruction must not appear in a
	// metered module.
	InstructionCost(insn code.Insn) (cost uint32, ok bool)

	MemoryGrowCost() MemoryGrowCost
}

// LocalRules charge for initialization of declared local variables when a
// function is entered.
type LocalRules interface {
	Rules
	CallPerLocalCost() uint32
}

type constant struct {
	insn  uint32
	grow  MemoryGrowCost
	local uint32
}

// Constant cost for every instruction.
func Constant(insnCost, perPage, perLocal uint32) LocalRules {
	return constant{insnCost, MemoryGrowCost{perPage}, perLocal}
}

// Default rules charge one unit per instruction and per local variable;
// memory growth is free.
func Default() LocalRules {
	return Constant(1, 0, 1)
}

func (r constant) InstructionCost(code.Insn) (uint32, bool) { return r.insn, true }
func (r constant) MemoryGrowCost() MemoryGrowCost           { return r.grow }
func (r constant) CallPerLocalCost() uint32                 { return r.local }
