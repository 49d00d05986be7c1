// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gas

import (
	"math/bits"

	"gate.computer/meter/code"
	"gate.computer/meter/internal/errors"
	"gate.computer/meter/module"
	"gate.computer/meter/rules"
	"gate.computer/meter/wa"
	"gate.computer/meter/wa/opcode"
)

const DefaultGlobal = "gas_left"

// Exhausted is stored in the gas global before trapping.
const Exhausted = ^uint64(0)

var globalType = wa.MakeGlobalType(wa.I64, true)

// MutableGlobal charges by decrementing an exported mutable i64 global which
// holds the remaining gas.  The host initializes it before execution.  When
// the remaining gas is insufficient, a shared trampoline function stores
// Exhausted in the global and executes unreachable.
type MutableGlobal struct {
	Export string // Defaults to DefaultGlobal.

	// ChargeOverhead adds the cost of the non-trapping charging instructions
	// to every charge.
	ChargeOverhead bool
}

// Prepare reuses a compatible exported global or adds a new one, and adds
// the out-of-gas trampoline.
func (s MutableGlobal) Prepare(m *module.Module, r rules.Rules) (Charger, error) {
	name := s.Export
	if name == "" {
		name = DefaultGlobal
	}

	var global uint32

	if exp, found := m.FindExport(name); found {
		if exp.Kind != module.GlobalKind {
			return nil, errors.ConfigErrorf("export %q is a %s", name, exp.Kind)
		}
		if t, _ := m.GlobalType(exp.Index); t != globalType {
			return nil, errors.ConfigErrorf("exported global %q has incompatible type %s", name, t)
		}
		global = exp.Index
	} else {
		global = m.AddGlobal(module.Global{
			Type: globalType,
			Init: module.ConstInit(wa.I64, 0),
		})
		m.AddExport(name, module.GlobalKind, global)
	}

	c := &globalCharger{global: global}

	if s.ChargeOverhead {
		for _, insn := range c.AppendCharge(nil, 0) {
			if insn.Op == opcode.Call {
				continue // Only on the failure path.
			}
			cost, ok := r.InstructionCost(insn)
			if !ok {
				return nil, errors.ConfigErrorf("cost rules forbid %s which is needed for gas metering", insn.Op)
			}
			c.overhead += uint64(cost)
		}
	}

	c.trampoline = m.AddFunc(m.TypeIndex(wa.FuncType{}), code.Body{
		Insns: []code.Insn{
			code.I64Const(-1), // Exhausted
			code.SetGlobal(global),
			code.Unreachable(),
			code.End(),
		},
	})

	return c, nil
}

type globalCharger struct {
	global     uint32
	trampoline uint32
	overhead   uint64
}

func (c *globalCharger) Overhead() uint64 { return c.overhead }

// AppendCharge checks before subtracting, so the global never wraps around.
func (c *globalCharger) AppendCharge(insns []code.Insn, cost uint64) []code.Insn {
	return append(insns,
		code.GetGlobal(c.global),
		code.I64Const(int64(cost)),
		code.Op(opcode.I64LtU),
		code.If(code.Void),
		code.Call(c.trampoline),
		code.End(),
		code.GetGlobal(c.global),
		code.I64Const(int64(cost)),
		code.Op(opcode.I64Sub),
		code.SetGlobal(c.global),
	)
}

func (c *globalCharger) AppendStackCharge(body *code.Body, numParams uint32) {
	local := numParams + body.AddLocal(wa.I64)

	body.Insns = append(body.Insns,
		code.SetLocal(local),
		code.GetGlobal(c.global),
		code.GetLocal(local),
		code.Op(opcode.I64LtU),
		code.If(code.Void),
		code.Call(c.trampoline),
		code.End(),
		code.GetGlobal(c.global),
		code.GetLocal(local),
		code.Op(opcode.I64Sub),
		code.SetGlobal(c.global),
	)
}

func (*globalCharger) ImportedFunc() (uint32, bool) { return 0, false }

func addOverhead(cost, overhead uint64) (uint64, bool) {
	sum, carry := bits.Add64(cost, overhead, 0)
	return sum, carry == 0 && sum <= 1<<63-1
}
