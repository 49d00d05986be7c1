// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gas

import (
	"gate.computer/meter/code"
	"gate.computer/meter/internal/errors"
	"gate.computer/meter/module"
	"gate.computer/meter/rules"
	"gate.computer/meter/wa"
)

const (
	DefaultModule = "env"
	DefaultField  = "gas"
)

// ChargeType is the signature of the charging function.
var ChargeType = wa.FuncType{Params: []wa.Type{wa.I64}}

// HostFunc charges by calling an imported function with the cost as an i64
// argument.  The host traps when gas is exhausted.
type HostFunc struct {
	Module string // Defaults to DefaultModule.
	Field  string // Defaults to DefaultField.
}

func (s HostFunc) names() (string, string) {
	mod, field := s.Module, s.Field
	if mod == "" {
		mod = DefaultModule
	}
	if field == "" {
		field = DefaultField
	}
	return mod, field
}

// Prepare reuses a compatible import or adds a new one.
func (s HostFunc) Prepare(m *module.Module, _ rules.Rules) (Charger, error) {
	mod, field := s.names()

	if i, found := m.FindImport(mod, field); found {
		imp := m.Imports[i]
		if imp.Kind != module.FuncKind {
			return nil, errors.ConfigErrorf("import %s.%s is a %s", mod, field, imp.Kind)
		}
		index := m.ImportFuncIndex(i)
		if ft, _ := m.FuncType(index); !ft.Equal(ChargeType) {
			return nil, errors.ConfigErrorf("import %s.%s has incompatible type %s", mod, field, ft)
		}
		return &hostCharger{index: index}, nil
	}

	index := m.AddImportFunc(mod, field, m.TypeIndex(ChargeType))
	return &hostCharger{index: index, added: true}, nil
}

type hostCharger struct {
	index uint32
	added bool
}

func (*hostCharger) Overhead() uint64 { return 0 }

func (c *hostCharger) AppendCharge(insns []code.Insn, cost uint64) []code.Insn {
	return append(insns,
		code.I64Const(int64(cost)),
		code.Call(c.index),
	)
}

func (c *hostCharger) AppendStackCharge(body *code.Body, _ uint32) {
	body.Insns = append(body.Insns, code.Call(c.index))
}

func (c *hostCharger) ImportedFunc() (uint32, bool) {
	return c.index, c.added
}
