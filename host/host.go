// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package host executes instrumented modules with wazero.
package host

import (
	"context"
	"errors"
	"sync/atomic"

	"gate.computer/meter/gas"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"golang.org/x/xerrors"
)

// ErrOutOfGas is returned when execution is stopped due to exhausted gas.
var ErrOutOfGas = errors.New("out of gas")

// Meter is a gas budget for modules instrumented with the host function
// strategy.
type Meter struct {
	limit     uint64
	used      atomic.Uint64
	exhausted atomic.Bool
}

func NewMeter(limit uint64) *Meter {
	return &Meter{limit: limit}
}

// Charge cost.  Nothing is consumed if the cost exceeds the remaining gas.
func (m *Meter) Charge(cost uint64) bool {
	for {
		used := m.used.Load()
		if cost > m.limit-used {
			m.exhausted.Store(true)
			return false
		}
		if m.used.CompareAndSwap(used, used+cost) {
			return true
		}
	}
}

func (m *Meter) Used() uint64    { return m.used.Load() }
func (m *Meter) Exhausted() bool { return m.exhausted.Load() }

// InstantiateGas instantiates a host module which exports the charging
// function.
func InstantiateGas(ctx context.Context, rt wazero.Runtime, module, field string, meter *Meter) (api.Module, error) {
	charge := func(ctx context.Context, m api.Module, stack []uint64) {
		if !meter.Charge(stack[0]) {
			panic(ErrOutOfGas)
		}
	}

	return rt.NewHostModuleBuilder(module).
		NewFunctionBuilder().WithGoModuleFunction(api.GoModuleFunc(charge), []api.ValueType{api.ValueTypeI64}, nil).Export(field).
		Instantiate(ctx)
}

// SetGlobal value of an exported mutable global.
func SetGlobal(mod api.Module, name string, value uint64) error {
	g, ok := mod.ExportedGlobal(name).(api.MutableGlobal)
	if !ok {
		return xerrors.Errorf("module does not export mutable global %q", name)
	}
	g.Set(value)
	return nil
}

// GetGlobal value of an exported global.
func GetGlobal(mod api.Module, name string) (uint64, error) {
	g := mod.ExportedGlobal(name)
	if g == nil {
		return 0, xerrors.Errorf("module does not export global %q", name)
	}
	return g.Get(), nil
}

type Config struct {
	Entry string   // Exported function to call.
	Args  []uint64 // Encoded with api.EncodeI32 etc.
	Gas   uint64   // Budget.

	// Import names of the charging function.  Defaults to gas.DefaultModule
	// and gas.DefaultField.  The function is provided only if the module
	// imports it.
	Module string
	Field  string

	// Exported gas global name.  If set, it's initialized to the budget
	// after instantiation.  A start function runs with zero gas.
	Global string

	// Exported stack height global name, read after execution if set.
	StackGlobal string

	// Compiler is used instead of the interpreter if set and supported.
	Compiler bool
}

type Result struct {
	Values      []uint64
	GasUsed     uint64
	StackHeight uint32
}

// Run a module.  Result is returned also with ErrOutOfGas and other
// execution errors.
func Run(ctx context.Context, wasm []byte, c Config) (*Result, error) {
	// The global holds gas.Exhausted after a trap, so the budget can't.
	if c.Global != "" && c.Gas == gas.Exhausted {
		return nil, xerrors.Errorf("gas budget %d is reserved for the exhausted marker", c.Gas)
	}

	rc := wazero.NewRuntimeConfigInterpreter()
	if c.Compiler {
		rc = wazero.NewRuntimeConfig()
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rc)
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		return nil, err
	}

	moduleName, field := c.Module, c.Field
	if moduleName == "" {
		moduleName = gas.DefaultModule
	}
	if field == "" {
		field = gas.DefaultField
	}

	var meter *Meter

	for _, def := range compiled.ImportedFunctions() {
		if m, f, _ := def.Import(); m == moduleName && f == field {
			meter = NewMeter(c.Gas)
			if _, err := InstantiateGas(ctx, rt, moduleName, field, meter); err != nil {
				return nil, xerrors.Errorf("gas host module: %w", err)
			}
			break
		}
	}

	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		return nil, err
	}

	if c.Global != "" {
		if err := SetGlobal(mod, c.Global, c.Gas); err != nil {
			return nil, err
		}
	}

	fn := mod.ExportedFunction(c.Entry)
	if fn == nil {
		return nil, xerrors.Errorf("function %q not found", c.Entry)
	}

	res := new(Result)
	res.Values, err = fn.Call(ctx, c.Args...)

	outOfGas := false

	if meter != nil {
		res.GasUsed = meter.Used()
		outOfGas = meter.Exhausted()
	}

	if c.Global != "" {
		left, getErr := GetGlobal(mod, c.Global)
		if getErr != nil {
			return nil, getErr
		}
		if left == gas.Exhausted {
			outOfGas = true
			res.GasUsed = c.Gas
		} else {
			res.GasUsed = c.Gas - left
		}
	}

	if c.StackGlobal != "" {
		h, getErr := GetGlobal(mod, c.StackGlobal)
		if getErr != nil {
			return nil, getErr
		}
		res.StackHeight = uint32(h)
	}

	if err != nil {
		if outOfGas {
			err = xerrors.Errorf("%v: %w", err, ErrOutOfGas)
		}
		return res, err
	}

	return res, nil
}
