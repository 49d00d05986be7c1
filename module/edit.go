// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package module

import (
	"gate.computer/meter/code"
	"gate.computer/meter/wa"
	"gate.computer/meter/wa/opcode"
)

// TypeIndex finds a function type or appends it.
func (m *Module) TypeIndex(ft wa.FuncType) uint32 {
	for i, t := range m.Types {
		if t.Equal(ft) {
			return uint32(i)
		}
	}
	m.Types = append(m.Types, ft.Clone())
	return uint32(len(m.Types) - 1)
}

// AddImportFunc appends a function import.  Its index is the number of
// previously imported functions, so all defined function indexes are shifted
// by one.  References in code, globals, element segments, exports and the
// start section are renumbered; custom sections are left alone.
func (m *Module) AddImportFunc(module, field string, typeIndex uint32) uint32 {
	index := m.NumImportFuncs()
	m.Imports = append(m.Imports, Import{
		Module: module,
		Field:  field,
		Kind:   FuncKind,
		Type:   typeIndex,
	})
	m.shiftFuncs(index, 1)
	return index
}

func (m *Module) shiftFuncs(threshold, delta uint32) {
	shift := func(i *uint32) {
		if *i >= threshold {
			*i += delta
		}
	}

	shiftExpr := func(expr []code.Insn) {
		for i := range expr {
			switch expr[i].Op {
			case opcode.Call, opcode.RefFunc:
				shift(&expr[i].Index)
			}
		}
	}

	for i := range m.Code {
		shiftExpr(m.Code[i].Insns)
	}
	for i := range m.Globals {
		shiftExpr(m.Globals[i].Init)
	}
	for i := range m.Elements {
		e := &m.Elements[i]
		for j := range e.Funcs {
			shift(&e.Funcs[j])
		}
		for _, expr := range e.Exprs {
			shiftExpr(expr)
		}
	}
	for i := range m.Exports {
		if m.Exports[i].Kind == FuncKind {
			shift(&m.Exports[i].Index)
		}
	}
	if m.StartDefined {
		shift(&m.StartIndex)
	}
}

// AddFunc appends a defined function, returning its index in the function
// index space.
func (m *Module) AddFunc(typeIndex uint32, body code.Body) uint32 {
	m.Funcs = append(m.Funcs, typeIndex)
	m.Code = append(m.Code, body)
	return m.NumFuncs() - 1
}

// AddGlobal appends a defined global, returning its index in the global index
// space.
func (m *Module) AddGlobal(g Global) uint32 {
	m.Globals = append(m.Globals, g)
	return m.NumImportGlobals() + uint32(len(m.Globals)) - 1
}

// ConstInit expression for a global.
func ConstInit(t wa.Type, bits uint64) []code.Insn {
	var insn code.Insn
	switch t {
	case wa.I32:
		insn = code.I32Const(int32(bits))
	case wa.I64:
		insn = code.I64Const(int64(bits))
	case wa.F32:
		insn = code.Insn{Op: opcode.F32Const, Value: uint64(uint32(bits))}
	case wa.F64:
		insn = code.Insn{Op: opcode.F64Const, Value: bits}
	default:
		insn = code.Insn{Op: opcode.RefNull, Types: []wa.Type{t}}
	}
	return []code.Insn{insn, code.End()}
}

// AddExport appends an export.  Name collisions are not checked.
func (m *Module) AddExport(name string, kind ExternalKind, index uint32) {
	m.Exports = append(m.Exports, Export{name, kind, index})
}
