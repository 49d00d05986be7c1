// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package meter instruments WebAssembly modules with gas metering and stack
height limiting.

Passes

The gas pass partitions each function into metering units and charges the
static cost of a unit before it's entered, either by calling a host function
or by decrementing a mutable global.  The stack pass adds each function's
stack contribution to a global counter on entry and subtracts it on exit,
trapping when the configured limit would be exceeded.  Either pass may be
disabled.

Module-level declarations (imports, globals, trampoline functions) are added
before any function body is rewritten.  Function bodies are then rewritten
concurrently.  The output is identical regardless of parallelism.

Debug information

Custom sections with a known format are rewritten so that their function and
instruction references point to the original instructions in the
instrumented bodies.  See package debugmap.
*/
package meter

import (
	"log/slog"
	"runtime"

	"gate.computer/meter/code"
	"gate.computer/meter/debugmap"
	"gate.computer/meter/gas"
	"gate.computer/meter/internal/errors"
	"gate.computer/meter/logger"
	"gate.computer/meter/module"
	"gate.computer/meter/rules"
	"gate.computer/meter/stack"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// Strategy for charging gas.
type Strategy int

const (
	HostFunc      Strategy = iota // Call an imported function.
	MutableGlobal                 // Decrement an exported global.
)

func (s Strategy) String() string {
	switch s {
	case HostFunc:
		return "host"
	case MutableGlobal:
		return "global"
	}
	return "invalid"
}

// ParseStrategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "", "host":
		return HostFunc, nil
	case "global":
		return MutableGlobal, nil
	}
	return 0, errors.ConfigErrorf("unknown gas strategy: %q", s)
}

type GasConfig struct {
	Strategy Strategy
	Rules    rules.Rules // Defaults to rules.Default().

	Module string // Import module name for HostFunc.
	Field  string // Import field name for HostFunc.
	Global string // Export name for MutableGlobal.

	// ChargeOverhead includes the cost of MutableGlobal charging
	// instructions in every charge.
	ChargeOverhead bool

	// SplitCalls ends metering units after calls.
	SplitCalls bool
}

func (c *GasConfig) strategy() gas.Strategy {
	if c.Strategy == MutableGlobal {
		return gas.MutableGlobal{Export: c.Global, ChargeOverhead: c.ChargeOverhead}
	}
	return gas.HostFunc{Module: c.Module, Field: c.Field}
}

type StackConfig struct {
	Limit  uint32
	Global string // Export name of the height counter; empty means not exported.
}

type Config struct {
	Gas   *GasConfig   // Gas pass is skipped if nil.
	Stack *StackConfig // Stack pass is skipped if nil.

	DebugPolicy  debugmap.Policy
	DebugFormats []debugmap.Format // Defaults to debugmap.DefaultFormats().

	// ExportMutableGlobals exports the module's own mutable globals with
	// this name prefix, if set.
	ExportMutableGlobals string

	Parallelism int          // Defaults to GOMAXPROCS.
	Logger      *slog.Logger // Defaults to discarding.
}

// FuncReport describes how a defined function was instrumented.
type FuncReport struct {
	Units       int    // Metering units which were charged.
	Cost        uint64 // Sum of unit charges.
	Inserted    int    // Instructions inserted by both passes.
	StackHeight uint32 // Stack contribution.
}

// Report describes how a module was instrumented.
type Report struct {
	Funcs []FuncReport // Indexed by original defined function index.

	GasFunc        uint32 // Charging function index, if HostFunc strategy was used.
	GasFuncAdded   bool   // Charging function import was added to the module.
	StackGlobal    uint32 // Height counter global index, if stack pass was enabled.
	Units          int
	Inserted       int
	MaxStackHeight uint32
}

func (r *Report) total() {
	for _, f := range r.Funcs {
		r.Units += f.Units
		r.Inserted += f.Inserted
		r.MaxStackHeight = max(r.MaxStackHeight, f.StackHeight)
	}
}

// Instrument a module.  The input module is not modified.
func Instrument(orig *module.Module, config Config) (*module.Module, *Report, error) {
	log := logger.OrDiscard(config.Logger)

	numFuncs := len(orig.Funcs)
	if len(orig.Code) != numFuncs {
		return nil, nil, errors.ModuleErrorf("function and code section counts differ: %d != %d", numFuncs, len(orig.Code))
	}

	m := orig.Clone()
	report := &Report{Funcs: make([]FuncReport, numFuncs)}

	if config.ExportMutableGlobals != "" {
		n, err := ExportMutableGlobals(m, config.ExportMutableGlobals)
		if err != nil {
			return nil, nil, err
		}
		log.Debug("exported mutable globals", logger.Data(n))
	}

	var (
		gasInj   *gas.Injector
		stackInj *stack.Injector
		err      error
	)

	if c := config.Gas; c != nil {
		gasInj, err = gas.Prepare(m, numFuncs, gas.Config{
			Strategy:   c.strategy(),
			Rules:      c.Rules,
			SplitCalls: c.SplitCalls,
		})
		if err != nil {
			return nil, nil, xerrors.Errorf("gas: %w", err)
		}
		report.GasFunc, report.GasFuncAdded = gasInj.ImportedFunc()
	}

	if c := config.Stack; c != nil {
		stackInj, err = stack.Prepare(m, stack.Config{
			Limit:  c.Limit,
			Export: c.Global,
		})
		if err != nil {
			return nil, nil, xerrors.Errorf("stack: %w", err)
		}
		report.StackGlobal = stackInj.Global()
	}

	shifts := make([]code.Shifts, numFuncs)
	if err := rewrite(m, gasInj, stackInj, report, shifts, config.Parallelism, log); err != nil {
		return nil, nil, err
	}
	report.total()

	reloc := &debugmap.Relocation{
		NumImportFuncs: orig.NumImportFuncs(),
		FuncInserted:   report.GasFuncAdded,
		Orig:           orig.Code,
		New:            m.Code[:numFuncs],
		Shifts:         shifts,
	}

	formats := config.DebugFormats
	if formats == nil {
		formats = debugmap.DefaultFormats()
	}

	if err := debugmap.Reconcile(m, formats, reloc, config.DebugPolicy, log.With(logger.Pass("debug"))); err != nil {
		return nil, nil, err
	}

	return m, report, nil
}

// rewrite the original function bodies of a prepared module.
func rewrite(m *module.Module, gasInj *gas.Injector, stackInj *stack.Injector, report *Report, shifts []code.Shifts, parallelism int, log *slog.Logger) error {
	if gasInj == nil && stackInj == nil {
		return nil
	}

	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	numImportFuncs := m.NumImportFuncs()
	errs := make([]error, len(shifts))

	var g errgroup.Group
	g.SetLimit(parallelism)

	for i := range shifts {
		i := i
		g.Go(func() error {
			funcIndex := numImportFuncs + uint32(i)
			body := m.Code[i]
			r := &report.Funcs[i]

			if gasInj != nil {
				b, s, stats, err := gasInj.Rewrite(&body)
				if err != nil {
					errs[i] = xerrors.Errorf("gas: function %d: %w", funcIndex, err)
					return nil
				}
				body = b
				shifts[i] = s
				r.Units = stats.Units
				r.Cost = stats.Cost
			}

			if stackInj != nil {
				b, s, h, err := stackInj.Rewrite(i, &body)
				if err != nil {
					errs[i] = xerrors.Errorf("stack: function %d: %w", funcIndex, err)
					return nil
				}
				body = b
				shifts[i] = code.Compose(shifts[i], s)
				r.StackHeight = h
			}

			r.Inserted = int(shifts[i].Inserted())
			m.Code[i] = body

			log.Debug("function instrumented",
				logger.Func(funcIndex),
				slog.Int("units", r.Units),
				slog.Int("inserted", r.Inserted),
				slog.Uint64("stack", uint64(r.StackHeight)))
			return nil
		})
	}

	g.Wait()

	// Report the error of the lowest function index.
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// InstrumentBinary loads, instruments and encodes a module.
func InstrumentBinary(wasm []byte, config Config) ([]byte, *Report, error) {
	m, err := module.LoadBytes(wasm)
	if err != nil {
		return nil, nil, err
	}

	m, report, err := Instrument(m, config)
	if err != nil {
		return nil, nil, err
	}

	return m.Bytes(), report, nil
}
