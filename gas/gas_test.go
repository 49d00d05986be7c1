// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gas

import (
	"testing"

	"gate.computer/meter/code"
	werrors "gate.computer/meter/errors"
	"gate.computer/meter/module"
	"gate.computer/meter/rules"
	"gate.computer/meter/wa"
	"gate.computer/meter/wa/opcode"
	"github.com/stretchr/testify/require"
)

var (
	gg   = code.GetGlobal(0)
	drop = code.Drop()
	end  = code.End()
)

func insns(x ...code.Insn) []code.Insn { return x }

func join(parts ...[]code.Insn) (all []code.Insn) {
	for _, p := range parts {
		all = append(all, p...)
	}
	return
}

func charge(cost int64) []code.Insn {
	return insns(code.I64Const(cost), code.Call(0))
}

// newModule with one global and the given function bodies of type
// () -> (i32).
func newModule(bodies ...[]code.Insn) *module.Module {
	m := &module.Module{
		Types: []wa.FuncType{{Results: []wa.Type{wa.I32}}},
		Globals: []module.Global{
			{Type: wa.MakeGlobalType(wa.I32, false), Init: module.ConstInit(wa.I32, 42)},
		},
		Memories: []byte{1, 1, 0, 1},
	}
	for _, b := range bodies {
		m.Funcs = append(m.Funcs, 0)
		m.Code = append(m.Code, code.Body{Insns: b})
	}
	return m
}

func inject(t *testing.T, m *module.Module, config Config) (*module.Module, []code.Shifts) {
	t.Helper()

	numFuncs := len(m.Code)
	inj, err := Prepare(m, numFuncs, config)
	require.NoError(t, err)

	var shifts []code.Shifts
	for i := range m.Code[:numFuncs] {
		body, s, _, err := inj.Rewrite(&m.Code[i])
		require.NoError(t, err)
		m.Code[i] = body
		shifts = append(shifts, s)
	}
	return m, shifts
}

func injectBody(t *testing.T, body []code.Insn) []code.Insn {
	t.Helper()

	m, _ := inject(t, newModule(body), Config{})
	return m.Code[0].Insns
}

func TestSimple(t *testing.T) {
	require.Equal(t,
		join(charge(1), insns(gg, end)),
		injectBody(t, insns(gg, end)))
}

func TestNested(t *testing.T) {
	require.Equal(t,
		join(charge(6), insns(gg, code.Block(code.Void), gg, gg, gg, end, gg, end)),
		injectBody(t, insns(gg, code.Block(code.Void), gg, gg, gg, end, gg, end)))
}

func TestIfElse(t *testing.T) {
	require.Equal(t,
		join(
			charge(3),
			insns(gg, code.If(code.Void)),
			charge(3),
			insns(gg, gg, gg, code.Else()),
			charge(2),
			insns(gg, gg, end, gg, end),
		),
		injectBody(t, insns(
			gg, code.If(code.Void),
			gg, gg, gg,
			code.Else(),
			gg, gg,
			end,
			gg, end,
		)))
}

func TestBranchInnermost(t *testing.T) {
	require.Equal(t,
		join(
			charge(6),
			insns(gg, code.Block(code.Void), gg, drop, code.Br(0)),
			charge(2),
			insns(gg, drop, end, gg, end),
		),
		injectBody(t, insns(
			gg, code.Block(code.Void),
			gg, drop, code.Br(0),
			gg, drop,
			end,
			gg, end,
		)))
}

func TestBranchOuterBlock(t *testing.T) {
	require.Equal(t,
		join(
			charge(5),
			insns(gg, code.Block(code.Void), gg, code.If(code.Void)),
			charge(4),
			insns(gg, gg, drop, code.BrIf(1), end),
			charge(2),
			insns(gg, drop, end, gg, end),
		),
		injectBody(t, insns(
			gg, code.Block(code.Void),
			gg, code.If(code.Void),
			gg, gg, drop, code.BrIf(1),
			end,
			gg, drop,
			end,
			gg, end,
		)))
}

func TestBranchOuterLoop(t *testing.T) {
	require.Equal(t,
		join(
			charge(3),
			insns(gg, code.Loop(code.Void)),
			charge(4),
			insns(gg, code.If(code.Void)),
			charge(2),
			insns(gg, code.BrIf(0), code.Else()),
			charge(4),
			insns(gg, gg, drop, code.BrIf(1), end, gg, drop, end, gg, end),
		),
		injectBody(t, insns(
			gg, code.Loop(code.Void),
			gg, code.If(code.Void),
			gg, code.BrIf(0),
			code.Else(),
			gg, gg, drop, code.BrIf(1),
			end,
			gg, drop,
			end,
			gg, end,
		)))
}

func TestReturnFromFunc(t *testing.T) {
	require.Equal(t,
		join(
			charge(2),
			insns(gg, code.If(code.Void)),
			charge(1),
			insns(code.Return(), end),
			charge(1),
			insns(gg, end),
		),
		injectBody(t, insns(gg, code.If(code.Void), code.Return(), end, gg, end)))
}

func TestBranchFromIfNotElse(t *testing.T) {
	require.Equal(t,
		join(
			charge(5),
			insns(gg, code.Block(code.Void), gg, code.If(code.Void)),
			charge(1),
			insns(code.Br(1), code.Else()),
			charge(1),
			insns(code.Br(0), end),
			charge(2),
			insns(gg, drop, end, gg, end),
		),
		injectBody(t, insns(
			gg, code.Block(code.Void),
			gg, code.If(code.Void),
			code.Br(1),
			code.Else(),
			code.Br(0),
			end,
			gg, drop,
			end,
			gg, end,
		)))
}

func TestEmptyLoop(t *testing.T) {
	require.Equal(t,
		join(
			charge(2),
			insns(code.Loop(code.Void)),
			charge(1),
			insns(code.Br(0), end, code.Unreachable(), end),
		),
		injectBody(t, insns(code.Loop(code.Void), code.Br(0), end, code.Unreachable(), end)))
}

func TestEmptyBody(t *testing.T) {
	m := newModule(insns(end))
	m.Types[0] = wa.FuncType{}

	m, shifts := inject(t, m, Config{})
	require.Equal(t, insns(end), m.Code[0].Insns)
	require.Empty(t, shifts[0])
}

func TestLocals(t *testing.T) {
	m := newModule(insns(gg, end))
	m.Code[0].Locals = []code.Local{{Count: 3, Type: wa.I64}}

	m, _ = inject(t, m, Config{})
	require.Equal(t, join(charge(4), insns(gg, end)), m.Code[0].Insns)
	require.Equal(t, []code.Local{{Count: 3, Type: wa.I64}}, m.Code[0].Locals)
}

func TestConcreteScenario(t *testing.T) {
	body := insns(code.I32Const(1), code.I32Const(2), code.Op(opcode.I32Add), code.Return(), end)

	p, err := PartitionBody(&code.Body{Insns: body}, rules.Default(), Options{})
	require.NoError(t, err)
	require.Equal(t, []Unit{{0, 4}}, p.Units)

	m, shifts := inject(t, newModule(body), Config{})
	require.Equal(t, join(charge(4), body), m.Code[0].Insns)
	require.Equal(t, code.Shifts{{Index: 0, Count: 2}}, shifts[0])
}

func TestCalls(t *testing.T) {
	// Function 0 calls itself; after injection it is function 1.  Prepare
	// renumbers calls in place, so each module gets its own body.
	body := func() []code.Insn {
		return insns(gg, code.Call(0), code.Call(0), drop, drop, drop, end)
	}

	m, _ := inject(t, newModule(body()), Config{})
	require.Equal(t,
		join(charge(6), insns(gg, code.Call(1), code.Call(1), drop, drop, drop, end)),
		m.Code[0].Insns)

	m, _ = inject(t, newModule(body()), Config{SplitCalls: true})
	require.Equal(t,
		join(
			charge(2),
			insns(gg, code.Call(1)),
			charge(1),
			insns(code.Call(1)),
			charge(3),
			insns(drop, drop, drop, end),
		),
		m.Code[0].Insns)
}

func TestUnitCostIsSum(t *testing.T) {
	r := &rules.Table{
		Default: 2,
		Costs: map[opcode.Opcode]uint32{
			opcode.I32Add: 5,
			opcode.I32Mul: 7,
			opcode.Drop:   0,
		},
	}

	body := insns(code.I32Const(1), code.I32Const(2), code.Op(opcode.I32Add), code.I32Const(3), code.Op(opcode.I32Mul), drop, end)
	var expect uint64
	for _, insn := range body[:len(body)-1] {
		c, _ := r.InstructionCost(insn)
		expect += uint64(c)
	}

	p, err := PartitionBody(&code.Body{Insns: body}, r, Options{})
	require.NoError(t, err)
	require.Equal(t, []Unit{{0, expect}}, p.Units)
}

func TestZeroCostUnitsElided(t *testing.T) {
	r := rules.Constant(0, 0, 0)

	m, shifts := inject(t, newModule(insns(gg, code.If(code.Void), gg, drop, end, gg, end)), Config{Rules: r})
	require.Equal(t, insns(gg, code.If(code.Void), gg, drop, end, gg, end), m.Code[0].Insns)
	require.Empty(t, shifts[0])
}

func TestForbidden(t *testing.T) {
	r := &rules.Table{Default: 1, Forbidden: map[opcode.Opcode]bool{opcode.Unreachable: true}}

	m := newModule(insns(code.Unreachable(), end))
	inj, err := Prepare(m, 1, Config{Rules: r})
	require.NoError(t, err)

	_, _, _, err = inj.Rewrite(&m.Code[0])
	require.True(t, werrors.AsModuleError(err))
}

func TestUnbalanced(t *testing.T) {
	for name, body := range map[string][]code.Insn{
		"missing end": insns(code.Block(code.Void), gg),
		"extra end":   insns(end, end),
		"bad label":   insns(code.Br(1), end),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := PartitionBody(&code.Body{Insns: body}, rules.Default(), Options{})
			require.Error(t, err)
			require.True(t, werrors.AsModuleError(err), "%v", err)
		})
	}
}

func TestCostOverflow(t *testing.T) {
	r := rules.Constant(^uint32(0), ^uint32(0), 0)

	// A single grow fits in 64 bits but not in 63.
	m := newModule(insns(code.I32Const(-1), code.GrowMemory(0), end))
	inj, err := Prepare(m, 1, Config{Rules: r})
	require.NoError(t, err)
	_, _, _, err = inj.Rewrite(&m.Code[0])
	require.ErrorIs(t, err, werrors.ErrCostOverflow)

	// Two of them don't fit in 64 bits.
	body := &code.Body{Insns: insns(
		code.I32Const(-1), code.GrowMemory(0), drop,
		code.I32Const(-1), code.GrowMemory(0), end,
	)}
	_, err = PartitionBody(body, r, Options{})
	require.ErrorIs(t, err, werrors.ErrCostOverflow)
}

func TestGrowDynamic(t *testing.T) {
	m := newModule(insns(gg, code.GrowMemory(0), end))

	m, shifts := inject(t, m, Config{Rules: rules.Constant(1, 10000, 1)})
	require.Equal(t, join(charge(2), insns(gg, code.Call(2), end)), m.Code[0].Insns)
	require.Equal(t, code.Shifts{{Index: 0, Count: 2}}, shifts[0])

	require.Len(t, m.Code, 2)
	require.Equal(t, wa.FuncType{Params: []wa.Type{wa.I32}, Results: []wa.Type{wa.I32}}, m.Types[m.Funcs[1]])
	require.Equal(t,
		insns(
			code.GetLocal(0),
			code.GetLocal(0),
			code.Op(opcode.I64ExtendUI32),
			code.I64Const(10000),
			code.Op(opcode.I64Mul),
			code.Call(0),
			code.GrowMemory(0),
			end,
		),
		m.Code[1].Insns)
}

func TestGrowFree(t *testing.T) {
	m, _ := inject(t, newModule(insns(gg, code.GrowMemory(0), end)), Config{})
	require.Equal(t, join(charge(2), insns(gg, code.GrowMemory(0), end)), m.Code[0].Insns)
	require.Len(t, m.Code, 1)
}

func TestGrowStatic(t *testing.T) {
	m, _ := inject(t, newModule(insns(code.I32Const(3), code.GrowMemory(0), end)), Config{Rules: rules.Constant(1, 10000, 1)})
	require.Equal(t, join(charge(30002), insns(code.I32Const(3), code.GrowMemory(0), end)), m.Code[0].Insns)
	require.Len(t, m.Code, 1)
}

func TestHostFuncReuse(t *testing.T) {
	m := newModule(insns(gg, end))
	m.Types = append(m.Types, ChargeType)
	m.Imports = []module.Import{{Module: "env", Field: "gas", Kind: module.FuncKind, Type: 1}}

	m, _ = inject(t, m, Config{})
	require.Len(t, m.Imports, 1)
	require.Equal(t, join(charge(1), insns(gg, end)), m.Code[0].Insns)
}

func TestHostFuncCollision(t *testing.T) {
	m := newModule(insns(gg, end))
	m.Imports = []module.Import{{Module: "env", Field: "gas", Kind: module.FuncKind, Type: 0}}
	orig := m.Clone()

	_, err := Prepare(m, 1, Config{})
	require.True(t, werrors.AsConfigError(err), "%v", err)
	require.Equal(t, orig, m)

	m.Imports[0] = module.Import{Module: "env", Field: "gas", Kind: module.GlobalKind, Global: wa.MakeGlobalType(wa.I64, true)}
	_, err = Prepare(m, 1, Config{})
	require.True(t, werrors.AsConfigError(err), "%v", err)
}

func globalCharge(global, trampoline uint32, cost int64) []code.Insn {
	return insns(
		code.GetGlobal(global),
		code.I64Const(cost),
		code.Op(opcode.I64LtU),
		code.If(code.Void),
		code.Call(trampoline),
		end,
		code.GetGlobal(global),
		code.I64Const(cost),
		code.Op(opcode.I64Sub),
		code.SetGlobal(global),
	)
}

func TestMutableGlobal(t *testing.T) {
	body := insns(code.I32Const(1), code.I32Const(2), code.Op(opcode.I32Add), code.Return(), end)

	m, shifts := inject(t, newModule(body), Config{Strategy: MutableGlobal{}})
	require.Equal(t, join(globalCharge(1, 1, 4), body), m.Code[0].Insns)
	require.Equal(t, code.Shifts{{Index: 0, Count: 10}}, shifts[0])

	require.Empty(t, m.Imports)
	require.Equal(t, wa.MakeGlobalType(wa.I64, true), m.Globals[1].Type)
	exp, ok := m.FindExport(DefaultGlobal)
	require.True(t, ok)
	require.Equal(t, module.Export{Name: DefaultGlobal, Kind: module.GlobalKind, Index: 1}, exp)

	require.Equal(t,
		insns(code.I64Const(-1), code.SetGlobal(1), code.Unreachable(), end),
		m.Code[1].Insns)
	require.Equal(t, Exhausted, m.Code[1].Insns[0].Value)
}

func TestMutableGlobalOverhead(t *testing.T) {
	body := insns(gg, end)

	m, _ := inject(t, newModule(body), Config{Strategy: MutableGlobal{ChargeOverhead: true}})
	require.Equal(t, join(globalCharge(1, 1, 1+9), body), m.Code[0].Insns)
}

func TestMutableGlobalReuse(t *testing.T) {
	m := newModule(insns(gg, end))
	m.Globals = append(m.Globals, module.Global{Type: wa.MakeGlobalType(wa.I64, true), Init: module.ConstInit(wa.I64, 0)})
	m.AddExport("fuel", module.GlobalKind, 1)

	m, _ = inject(t, m, Config{Strategy: MutableGlobal{Export: "fuel"}})
	require.Len(t, m.Globals, 2)
	require.Len(t, m.Exports, 1)
	require.Equal(t, join(globalCharge(1, 1, 1), insns(gg, end)), m.Code[0].Insns)
}

func TestMutableGlobalCollision(t *testing.T) {
	m := newModule(insns(gg, end))
	m.AddExport(DefaultGlobal, module.GlobalKind, 0) // Immutable i32.

	_, err := Prepare(m, 1, Config{Strategy: MutableGlobal{}})
	require.True(t, werrors.AsConfigError(err), "%v", err)

	m = newModule(insns(gg, end))
	m.AddExport(DefaultGlobal, module.FuncKind, 0)

	_, err = Prepare(m, 1, Config{Strategy: MutableGlobal{}})
	require.True(t, werrors.AsConfigError(err), "%v", err)
}

func TestMutableGlobalGrow(t *testing.T) {
	m, _ := inject(t, newModule(insns(gg, code.GrowMemory(0), end)), Config{
		Strategy: MutableGlobal{},
		Rules:    rules.Constant(1, 64, 0),
	})

	// Trampoline is function 1, grow counter is function 2.
	require.Equal(t, join(globalCharge(1, 1, 2), insns(gg, code.Call(2), end)), m.Code[0].Insns)
	require.Equal(t, []code.Local{{Count: 1, Type: wa.I64}}, m.Code[2].Locals)
	require.Equal(t,
		insns(
			code.GetLocal(0),
			code.GetLocal(0),
			code.Op(opcode.I64ExtendUI32),
			code.I64Const(64),
			code.Op(opcode.I64Mul),
			code.SetLocal(1),
			code.GetGlobal(1),
			code.GetLocal(1),
			code.Op(opcode.I64LtU),
			code.If(code.Void),
			code.Call(1),
			end,
			code.GetGlobal(1),
			code.GetLocal(1),
			code.Op(opcode.I64Sub),
			code.SetGlobal(1),
			code.GrowMemory(0),
			end,
		),
		m.Code[2].Insns)
}

func TestRewriteDoesNotModifyInput(t *testing.T) {
	m := newModule(insns(gg, code.If(code.Void), code.Return(), end, gg, end))
	orig := m.Code[0].Clone()

	inj, err := Prepare(m, 1, Config{})
	require.NoError(t, err)

	_, _, stats, err := inj.Rewrite(&m.Code[0])
	require.NoError(t, err)
	require.Equal(t, 3, stats.Units)
	require.Equal(t, 6, stats.Inserted)
	require.Equal(t, uint64(4), stats.Cost)
	require.Equal(t, orig, m.Code[0])
}
