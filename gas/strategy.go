// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gas

import (
	"gate.computer/meter/code"
	"gate.computer/meter/module"
	"gate.computer/meter/rules"
)

// Strategy for charging gas.  Prepare is called once per module before any
// function is rewritten; it declares the module-level state needed by the
// returned Charger.
type Strategy interface {
	Prepare(m *module.Module, r rules.Rules) (Charger, error)
}

// Charger emits charging code.  It must be safe for concurrent use after
// preparation.
type Charger interface {
	// Overhead is added to every static charge.
	Overhead() uint64

	// AppendCharge of a constant cost.
	AppendCharge(insns []code.Insn, cost uint64) []code.Insn

	// AppendStackCharge of an i64 cost which is on top of the operand stack.
	// The charger may declare locals in the body of a function with numParams
	// parameters.
	AppendStackCharge(body *code.Body, numParams uint32)

	// ImportedFunc reports a function import which was added during
	// preparation.
	ImportedFunc() (index uint32, added bool)
}
