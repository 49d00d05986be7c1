// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gas injects gas metering into WebAssembly functions.
//
// Function bodies are partitioned into metering units, and the static cost of
// each unit is charged before the unit is entered.  Memory growth with a
// non-constant page count is charged dynamically by a generated wrapper
// function.
package gas

import (
	"slices"

	"gate.computer/meter/code"
	"gate.computer/meter/internal/errors"
	"gate.computer/meter/module"
	"gate.computer/meter/rules"
	"gate.computer/meter/wa"
	"gate.computer/meter/wa/opcode"
)

type Config struct {
	Strategy   Strategy    // Defaults to HostFunc.
	Rules      rules.Rules // Defaults to rules.Default().
	SplitCalls bool
}

// Injector rewrites function bodies of a prepared module.  Its methods may be
// called concurrently.
type Injector struct {
	charger   Charger
	rules     rules.Rules
	options   Options
	growFuncs map[uint32]uint32 // Memory index to function index.
}

// Stats of a rewritten function.
type Stats struct {
	Units    int
	Inserted int
	Cost     uint64 // Sum of unit costs including overhead.
}

// Prepare module-level declarations.  The first numFuncs defined functions
// are going to be rewritten; functions added here are not.
func Prepare(m *module.Module, numFuncs int, config Config) (*Injector, error) {
	strategy := config.Strategy
	if strategy == nil {
		strategy = HostFunc{}
	}
	r := config.Rules
	if r == nil {
		r = rules.Default()
	}

	charger, err := strategy.Prepare(m, r)
	if err != nil {
		return nil, err
	}

	inj := &Injector{
		charger: charger,
		rules:   r,
		options: Options{SplitCalls: config.SplitCalls},
	}

	if grow := r.MemoryGrowCost(); !grow.Free() {
		var memories []uint32
		for i := range m.Code[:numFuncs] {
			insns := m.Code[i].Insns
			for j, insn := range insns {
				if insn.Op == opcode.GrowMemory && dynamicGrow(insns, j) {
					memories = append(memories, insn.Index)
				}
			}
		}
		slices.Sort(memories)
		memories = slices.Compact(memories)

		if len(memories) > 0 {
			inj.growFuncs = make(map[uint32]uint32)
			typeIndex := m.TypeIndex(growType)
			for _, memory := range memories {
				inj.growFuncs[memory] = m.AddFunc(typeIndex, growCounter(charger, memory, grow))
			}
		}
	}

	return inj, nil
}

// ImportedFunc reports a function import which was added to the module.
func (inj *Injector) ImportedFunc() (uint32, bool) {
	return inj.charger.ImportedFunc()
}

// Rewrite a function body.  The input is not modified.  Shifts describe the
// inserted instructions; replaced memory.grow instructions don't cause
// shifts.
func (inj *Injector) Rewrite(body *code.Body) (code.Body, code.Shifts, Stats, error) {
	var stats Stats

	p, err := PartitionBody(body, inj.rules, inj.options)
	if err != nil {
		return code.Body{}, nil, stats, err
	}

	overhead := inj.charger.Overhead()
	insns := make([]code.Insn, 0, len(body.Insns)+len(p.Units)*10)
	var shifts code.Shifts
	units := p.Units
	grows := p.Grows

	for i, insn := range body.Insns {
		index := uint32(i)

		if len(units) > 0 && units[0].Start == index {
			cost, ok := addOverhead(units[0].Cost, overhead)
			if !ok {
				return code.Body{}, nil, stats, errors.ErrCostOverflow
			}
			units = units[1:]

			n := len(insns)
			insns = inj.charger.AppendCharge(insns, cost)
			shifts = append(shifts, code.Shift{Index: index, Count: uint32(len(insns) - n)})

			stats.Units++
			stats.Inserted += len(insns) - n
			stats.Cost += cost
		}

		if len(grows) > 0 && grows[0] == index {
			grows = grows[1:]
			insn = code.Call(inj.growFuncs[insn.Index])
		} else {
			insn = insn.Clone()
		}

		insns = append(insns, insn)
	}

	return code.Body{Locals: slices.Clone(body.Locals), Insns: insns}, shifts, stats, nil
}

func dynamicGrow(insns []code.Insn, i int) bool {
	return i == 0 || insns[i-1].Op != opcode.I32Const
}

var growType = wa.FuncType{
	Params:  []wa.Type{wa.I32},
	Results: []wa.Type{wa.I32},
}

// growCounter charges for the requested pages and then grows the memory.
func growCounter(c Charger, memory uint32, grow rules.MemoryGrowCost) code.Body {
	body := code.Body{
		Insns: []code.Insn{
			code.GetLocal(0),
			code.GetLocal(0),
			code.Op(opcode.I64ExtendUI32),
			code.I64Const(int64(grow.PerPage)),
			code.Op(opcode.I64Mul),
		},
	}
	c.AppendStackCharge(&body, 1)
	body.Insns = append(body.Insns, code.GrowMemory(memory), code.End())
	return body
}
