// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stack

import (
	"math"
	"testing"

	"gate.computer/meter/code"
	werrors "gate.computer/meter/errors"
	"gate.computer/meter/module"
	"gate.computer/meter/wa"
	"gate.computer/meter/wa/opcode"
	"github.com/stretchr/testify/require"
)

const limit = 1024

var (
	voidType  = wa.FuncType{}
	i32Result = wa.FuncType{Results: []wa.Type{wa.I32}}
	binaryOp  = wa.FuncType{Params: []wa.Type{wa.I32, wa.I32}, Results: []wa.Type{wa.I32}}
)

func insns(x ...code.Insn) []code.Insn { return x }

func newModule(ft wa.FuncType, body ...code.Insn) *module.Module {
	return &module.Module{
		Types: []wa.FuncType{ft, binaryOp},
		Funcs: []uint32{0},
		Code:  []code.Body{{Insns: body}},
	}
}

func height(t *testing.T, ft wa.FuncType, body ...code.Insn) uint32 {
	t.Helper()

	m := newModule(ft, body...)
	h, err := Cost(m, 0)
	require.NoError(t, err)
	return h
}

func exit(h int32) []code.Insn {
	return insns(
		code.GetGlobal(0),
		code.I32Const(h),
		code.Op(opcode.I32Sub),
		code.SetGlobal(0),
	)
}

func entry(h int32) []code.Insn {
	return insns(
		code.GetGlobal(0),
		code.I32Const(h),
		code.Op(opcode.I32Add),
		code.I32Const(limit),
		code.Op(opcode.I32GtU),
		code.If(code.Void),
		code.Call(1),
		code.End(),
		code.GetGlobal(0),
		code.I32Const(h),
		code.Op(opcode.I32Add),
		code.SetGlobal(0),
	)
}

func join(parts ...[]code.Insn) (all []code.Insn) {
	for _, p := range parts {
		all = append(all, p...)
	}
	return
}

func rewrite(t *testing.T, m *module.Module, config Config) (code.Body, code.Shifts, uint32) {
	t.Helper()

	inj, err := Prepare(m, config)
	require.NoError(t, err)

	body, shifts, h, err := inj.Rewrite(0, &m.Code[0])
	require.NoError(t, err)
	return body, shifts, h
}

func TestMaxHeight(t *testing.T) {
	for _, tc := range []struct {
		name   string
		ft     wa.FuncType
		body   []code.Insn
		height uint32
	}{
		{"empty", voidType, insns(code.End()), 0},
		{"const", i32Result, insns(code.I32Const(1), code.End()), 1},
		{"add", i32Result, insns(code.I32Const(1), code.I32Const(2), code.Op(opcode.I32Add), code.End()), 2},
		{
			"params", binaryOp,
			insns(code.GetLocal(0), code.GetLocal(1), code.Op(opcode.I32Add), code.End()),
			2,
		},
		{
			"nested", i32Result,
			insns(
				code.I32Const(1),
				code.Block(code.ValueBlock(wa.I32)),
				code.I32Const(2),
				code.I32Const(3),
				code.Op(opcode.I32Add),
				code.End(),
				code.Op(opcode.I32Add),
				code.End(),
			),
			3,
		},
		{
			"if else", voidType,
			insns(
				code.I32Const(1),
				code.If(code.ValueBlock(wa.I32)),
				code.I32Const(1),
				code.I32Const(2),
				code.Op(opcode.I32Add),
				code.Else(),
				code.I32Const(3),
				code.End(),
				code.Drop(),
				code.End(),
			),
			2,
		},
		{
			"multi-value block", voidType,
			insns(
				code.I32Const(1),
				code.I32Const(2),
				code.Block(code.TypeIndexBlock(1)),
				code.Op(opcode.I32Add),
				code.End(),
				code.Drop(),
				code.End(),
			),
			2,
		},
		{
			"call", voidType,
			insns(
				code.I32Const(1),
				code.I32Const(2),
				code.I32Const(3),
				code.Call(0),
				code.Drop(),
				code.Drop(),
				code.Drop(),
				code.End(),
			),
			3,
		},
		{
			"unreachable", voidType,
			insns(
				code.I32Const(1),
				code.Unreachable(),
				code.I32Const(1),
				code.I32Const(2),
				code.I32Const(3),
				code.Op(opcode.I32Add),
				code.Op(opcode.I32Add),
				code.Op(opcode.I32Add),
				code.Drop(),
				code.End(),
			),
			1,
		},
		{
			"polymorphic block end", voidType,
			insns(
				code.Block(code.ValueBlock(wa.I32)),
				code.Br(1),
				code.End(),
				code.I32Const(1),
				code.Op(opcode.I32Add),
				code.Drop(),
				code.End(),
			),
			2,
		},
		{
			"br_if", i32Result,
			insns(
				code.I32Const(7),
				code.I32Const(1),
				code.BrIf(0),
				code.End(),
			),
			2,
		},
		{
			"br_table", voidType,
			insns(
				code.Block(code.Void),
				code.Block(code.Void),
				code.I32Const(0),
				code.BrTable(0, 1, 2),
				code.End(),
				code.End(),
				code.End(),
			),
			1,
		},
		{
			"store", voidType,
			insns(
				code.I32Const(0),
				code.I64Const(1),
				code.Insn{Op: opcode.I64Store, Align: 3},
				code.End(),
			),
			2,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m := newModule(tc.ft, tc.body...)
			require.Equal(t, tc.height, maxHeight(m, tc.ft, &m.Code[0]))
		})
	}
}

func TestInvalidBody(t *testing.T) {
	for name, body := range map[string][]code.Insn{
		"underflow":       insns(code.Drop(), code.End()),
		"block underflow": insns(code.I32Const(1), code.Block(code.Void), code.Drop(), code.End(), code.End()),
		"unterminated":    insns(code.Nop()),
		"after end":       insns(code.End(), code.Nop()),
		"bad label":       insns(code.Br(1), code.End()),
		"bad call":        insns(code.Call(99), code.End()),
		"br_table arity": insns(
			code.Block(code.ValueBlock(wa.I32)),
			code.I32Const(0),
			code.I32Const(0),
			code.BrTable(0, 1),
			code.End(),
			code.Drop(),
			code.End(),
		),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Cost(newModule(voidType, body...), 0)
			require.True(t, werrors.AsModuleError(err), "%v", err)
		})
	}
}

func TestCost(t *testing.T) {
	require.Equal(t, uint32(0+0+0+injectedHeight), height(t, voidType, code.End()))
	require.Equal(t, uint32(2+0+2+injectedHeight), height(t, binaryOp, code.GetLocal(0), code.GetLocal(1), code.Op(opcode.I32Add), code.End()))

	m := newModule(voidType, code.End())
	m.Code[0].Locals = []code.Local{{Count: 2, Type: wa.I64}, {Count: 3, Type: wa.F32}}
	h, err := Cost(m, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(5+injectedHeight), h)

	// Scratch local for a conditional return.
	require.Equal(t, uint32(1+1+injectedHeight), height(t, voidType, code.I32Const(1), code.BrIf(0), code.End()))
}

func TestFallThrough(t *testing.T) {
	m := newModule(i32Result, code.I32Const(1), code.End())

	body, shifts, h := rewrite(t, m, Config{Limit: limit})
	require.Equal(t, uint32(4), h)
	require.Equal(t,
		join(entry(4), insns(code.I32Const(1)), exit(4), insns(code.End())),
		body.Insns)
	require.Equal(t, code.Shifts{{Index: 0, Count: 12}, {Index: 1, Count: 4}}, shifts)

	require.Len(t, m.Globals, 1)
	require.Equal(t, globalType, m.Globals[0].Type)
	require.Empty(t, m.Exports)
	require.Equal(t, insns(code.Unreachable(), code.End()), m.Code[1].Insns)
}

func TestReturn(t *testing.T) {
	m := newModule(i32Result, code.I32Const(1), code.Return(), code.End())

	body, shifts, _ := rewrite(t, m, Config{Limit: limit})
	require.Equal(t,
		join(entry(4), insns(code.I32Const(1)), exit(4), insns(code.Return()), exit(4), insns(code.End())),
		body.Insns)
	require.Equal(t, code.Shifts{{Index: 0, Count: 12}, {Index: 1, Count: 4}, {Index: 2, Count: 4}}, shifts)

	m = newModule(voidType, code.Return(), code.End())

	_, shifts, _ = rewrite(t, m, Config{Limit: limit})
	require.Equal(t, code.Shifts{{Index: 0, Count: 16}, {Index: 1, Count: 4}}, shifts)
}

func TestBranchToFunction(t *testing.T) {
	m := newModule(voidType,
		code.Block(code.Void),
		code.Br(0),
		code.End(),
		code.Block(code.Void),
		code.Br(1),
		code.End(),
		code.End(),
	)

	body, _, h := rewrite(t, m, Config{Limit: limit})
	require.Equal(t, uint32(injectedHeight), h)
	require.Equal(t,
		join(
			entry(3),
			insns(code.Block(code.Void), code.Br(0), code.End(), code.Block(code.Void)),
			exit(3),
			insns(code.Br(1), code.End()),
			exit(3),
			insns(code.End()),
		),
		body.Insns)
}

func TestConditionalReturn(t *testing.T) {
	m := newModule(voidType,
		code.Block(code.Void),
		code.I32Const(1),
		code.BrIf(1),
		code.End(),
		code.End(),
	)

	body, shifts, h := rewrite(t, m, Config{Limit: limit})
	require.Equal(t, uint32(5), h)
	require.Equal(t, []code.Local{{Count: 1, Type: wa.I32}}, body.Locals)
	require.Equal(t,
		join(
			entry(5),
			insns(code.Block(code.Void), code.I32Const(1)),
			insns(code.SetLocal(0), code.GetLocal(0), code.If(code.Void)),
			exit(5),
			insns(code.End(), code.GetLocal(0)),
			insns(code.BrIf(1), code.End()),
			exit(5),
			insns(code.End()),
		),
		body.Insns)
	require.Equal(t, code.Shifts{{Index: 0, Count: 12}, {Index: 2, Count: 9}, {Index: 4, Count: 4}}, shifts)
}

func TestConditionalReturnWithParams(t *testing.T) {
	m := newModule(binaryOp,
		code.GetLocal(0),
		code.GetLocal(1),
		code.BrIf(0),
		code.End(),
	)

	body, _, _ := rewrite(t, m, Config{Limit: limit})
	require.Equal(t, []code.Local{{Count: 1, Type: wa.I32}}, body.Locals)
	require.Contains(t, body.Insns, code.SetLocal(2))
}

func TestTableReturn(t *testing.T) {
	m := newModule(voidType,
		code.Block(code.Void),
		code.I32Const(0),
		code.BrTable(0, 1, 0),
		code.End(),
		code.End(),
	)

	body, _, h := rewrite(t, m, Config{Limit: limit})
	require.Equal(t, uint32(5), h)
	require.Equal(t,
		join(
			entry(5),
			insns(code.Block(code.Void), code.I32Const(0)),
			insns(
				code.SetLocal(0),
				code.Block(code.Void),
				code.Block(code.Void),
				code.GetLocal(0),
				code.BrTable(1, 0, 1),
				code.End(),
			),
			exit(5),
			insns(code.End(), code.GetLocal(0)),
			insns(code.BrTable(0, 1, 0), code.End()),
			exit(5),
			insns(code.End()),
		),
		body.Insns)
}

func TestRewriteDoesNotModifyInput(t *testing.T) {
	m := newModule(voidType, code.I32Const(1), code.BrIf(0), code.End())
	orig := m.Code[0].Clone()

	rewrite(t, m, Config{Limit: limit})
	require.Equal(t, orig, m.Code[0])
}

func TestLimitOverflow(t *testing.T) {
	m := newModule(voidType, code.End())

	inj, err := Prepare(m, Config{Limit: math.MaxUint32 - 1})
	require.NoError(t, err)

	_, _, _, err = inj.Rewrite(0, &m.Code[0])
	require.True(t, werrors.AsConfigError(err), "%v", err)

	_, err = Prepare(m, Config{})
	require.True(t, werrors.AsConfigError(err), "%v", err)
}

func TestExport(t *testing.T) {
	m := newModule(voidType, code.End())
	rewrite(t, m, Config{Limit: limit, Export: "stack_height"})

	exp, found := m.FindExport("stack_height")
	require.True(t, found)
	require.Equal(t, module.Export{Name: "stack_height", Kind: module.GlobalKind, Index: 0}, exp)
}

func TestExportReuse(t *testing.T) {
	m := newModule(voidType, code.End())
	m.Globals = []module.Global{
		{Type: wa.MakeGlobalType(wa.I64, false), Init: module.ConstInit(wa.I64, 0)},
		{Type: globalType, Init: module.ConstInit(wa.I32, 0)},
	}
	m.AddExport("depth", module.GlobalKind, 1)

	inj, err := Prepare(m, Config{Limit: limit, Export: "depth"})
	require.NoError(t, err)
	require.Equal(t, uint32(1), inj.Global())
	require.Len(t, m.Globals, 2)

	m = newModule(voidType, code.End())
	m.Globals = []module.Global{{Type: wa.MakeGlobalType(wa.I64, true), Init: module.ConstInit(wa.I64, 0)}}
	m.AddExport("depth", module.GlobalKind, 0)

	_, err = Prepare(m, Config{Limit: limit, Export: "depth"})
	require.True(t, werrors.AsConfigError(err), "%v", err)

	m = newModule(voidType, code.End())
	m.AddExport("depth", module.FuncKind, 0)

	_, err = Prepare(m, Config{Limit: limit, Export: "depth"})
	require.True(t, werrors.AsConfigError(err), "%v", err)
}
