// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import (
	"context"
	"sync"
	"testing"

	"gate.computer/meter/code"
	"gate.computer/meter/gas"
	"gate.computer/meter/module"
	"gate.computer/meter/wa"
	"gate.computer/meter/wa/opcode"
	"github.com/stretchr/testify/require"
)

func TestMeter(t *testing.T) {
	m := NewMeter(10)
	require.True(t, m.Charge(4))
	require.True(t, m.Charge(6))
	require.Equal(t, uint64(10), m.Used())
	require.False(t, m.Exhausted())

	require.True(t, m.Charge(0))
	require.False(t, m.Charge(1))
	require.True(t, m.Exhausted())
	require.Equal(t, uint64(10), m.Used())
}

func TestMeterHuge(t *testing.T) {
	m := NewMeter(5)
	require.False(t, m.Charge(^uint64(0)))
	require.Zero(t, m.Used())
}

func TestMeterConcurrent(t *testing.T) {
	m := NewMeter(1000)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				m.Charge(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, uint64(1000), m.Used())
	require.True(t, m.Exhausted())
}

// chargingModule calls the imported charging function with the argument and
// returns 42.
func chargingModule() []byte {
	m := &module.Module{
		Types: []wa.FuncType{
			gas.ChargeType,
			{Params: []wa.Type{wa.I64}, Results: []wa.Type{wa.I32}},
		},
		Imports: []module.Import{{Module: gas.DefaultModule, Field: gas.DefaultField, Kind: module.FuncKind, Type: 0}},
		Funcs:   []uint32{1},
		Code: []code.Body{{Insns: []code.Insn{
			code.GetLocal(0),
			code.Call(0),
			code.I32Const(42),
			code.End(),
		}}},
	}
	m.AddExport("main", module.FuncKind, 1)
	return m.Bytes()
}

func TestRunHostFunc(t *testing.T) {
	ctx := context.Background()
	wasm := chargingModule()

	res, err := Run(ctx, wasm, Config{Entry: "main", Args: []uint64{7}, Gas: 10})
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, res.Values)
	require.Equal(t, uint64(7), res.GasUsed)

	res, err = Run(ctx, wasm, Config{Entry: "main", Args: []uint64{11}, Gas: 10})
	require.ErrorIs(t, err, ErrOutOfGas)
	require.Zero(t, res.GasUsed)

	_, err = Run(ctx, wasm, Config{Entry: "missing", Gas: 10})
	require.ErrorContains(t, err, "missing")
}

func TestRunCustomImport(t *testing.T) {
	m, err := module.LoadBytes(chargingModule())
	require.NoError(t, err)
	m.Imports[0].Module = "meter"
	m.Imports[0].Field = "charge"

	res, err := Run(context.Background(), m.Bytes(), Config{Entry: "main", Args: []uint64{3}, Gas: 3, Module: "meter", Field: "charge"})
	require.NoError(t, err)
	require.Equal(t, uint64(3), res.GasUsed)
}

// globalModule decrements an exported global by the argument, trapping via
// the exhaustion marker like the metering trampoline does.
func globalModule() []byte {
	m := &module.Module{
		Types: []wa.FuncType{{Params: []wa.Type{wa.I64}}},
		Funcs: []uint32{0},
		Globals: []module.Global{
			{Type: wa.MakeGlobalType(wa.I64, true), Init: module.ConstInit(wa.I64, 0)},
			{Type: wa.MakeGlobalType(wa.I32, true), Init: module.ConstInit(wa.I32, 5)},
		},
		Code: []code.Body{{Insns: []code.Insn{
			code.GetGlobal(0),
			code.GetLocal(0),
			code.Op(opcode.I64LtU),
			code.If(code.Void),
			code.I64Const(-1), // gas.Exhausted
			code.SetGlobal(0),
			code.Unreachable(),
			code.End(),
			code.GetGlobal(0),
			code.GetLocal(0),
			code.Op(opcode.I64Sub),
			code.SetGlobal(0),
			code.End(),
		}}},
	}
	m.AddExport("main", module.FuncKind, 0)
	m.AddExport(gas.DefaultGlobal, module.GlobalKind, 0)
	m.AddExport("height", module.GlobalKind, 1)
	return m.Bytes()
}

func TestRunGlobal(t *testing.T) {
	ctx := context.Background()
	wasm := globalModule()

	res, err := Run(ctx, wasm, Config{Entry: "main", Args: []uint64{4}, Gas: 4, Global: gas.DefaultGlobal, StackGlobal: "height"})
	require.NoError(t, err)
	require.Equal(t, uint64(4), res.GasUsed)
	require.Equal(t, uint32(5), res.StackHeight)

	res, err = Run(ctx, wasm, Config{Entry: "main", Args: []uint64{5}, Gas: 4, Global: gas.DefaultGlobal})
	require.ErrorIs(t, err, ErrOutOfGas)
	require.Equal(t, uint64(4), res.GasUsed)

	_, err = Run(ctx, wasm, Config{Entry: "main", Args: []uint64{1}, Gas: 4, Global: "nonexistent"})
	require.ErrorContains(t, err, "nonexistent")
}

func TestRunGlobalReservedBudget(t *testing.T) {
	ctx := context.Background()

	res, err := Run(ctx, globalModule(), Config{Entry: "main", Args: []uint64{1}, Gas: gas.Exhausted, Global: gas.DefaultGlobal})
	require.ErrorContains(t, err, "reserved")
	require.NotErrorIs(t, err, ErrOutOfGas)
	require.Nil(t, res)

	res, err = Run(ctx, globalModule(), Config{Entry: "main", Args: []uint64{1}, Gas: gas.Exhausted - 1, Global: gas.DefaultGlobal})
	require.NoError(t, err)
	require.Equal(t, uint64(1), res.GasUsed)
}
