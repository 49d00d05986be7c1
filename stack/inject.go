// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stack limits the logical stack height of WebAssembly programs.
//
// Each function adds its static stack contribution to a mutable global when
// it's entered, and subtracts it on every exit path.  The function traps if
// the sum would exceed the configured limit.
package stack

import (
	"math"
	"slices"

	"gate.computer/meter/code"
	"gate.computer/meter/internal"
	"gate.computer/meter/internal/errors"
	"gate.computer/meter/module"
	"gate.computer/meter/wa"
	"gate.computer/meter/wa/opcode"
	"import.name/pan"
)

// Peak operand stack usage of the injected instruction sequences.
const injectedHeight = 3

var globalType = wa.MakeGlobalType(wa.I32, true)

type Config struct {
	Limit  uint32 // Maximum total height.  Must be nonzero.
	Export string // Export the height global under this name if set.
}

// Injector rewrites function bodies of a prepared module.  Its methods may be
// called concurrently, as long as the module's types and imports are not
// modified.
type Injector struct {
	m          *module.Module
	limit      uint32
	global     uint32
	trampoline uint32
}

// Prepare adds or reuses the height global and adds the stack overflow
// trampoline function.
func Prepare(m *module.Module, config Config) (*Injector, error) {
	if config.Limit == 0 {
		return nil, errors.ConfigErr("stack height limit is zero")
	}

	var global uint32
	var found bool

	if config.Export != "" {
		var exp module.Export
		if exp, found = m.FindExport(config.Export); found {
			if exp.Kind != module.GlobalKind {
				return nil, errors.ConfigErrorf("export %q is a %s", config.Export, exp.Kind)
			}
			if t, _ := m.GlobalType(exp.Index); t != globalType {
				return nil, errors.ConfigErrorf("exported global %q has incompatible type %s", config.Export, t)
			}
			global = exp.Index
		}
	}

	if !found {
		global = m.AddGlobal(module.Global{
			Type: globalType,
			Init: module.ConstInit(wa.I32, 0),
		})
		if config.Export != "" {
			m.AddExport(config.Export, module.GlobalKind, global)
		}
	}

	trampoline := m.AddFunc(m.TypeIndex(wa.FuncType{}), code.Body{
		Insns: []code.Insn{
			code.Unreachable(),
			code.End(),
		},
	})

	return &Injector{
		m:          m,
		limit:      config.Limit,
		global:     global,
		trampoline: trampoline,
	}, nil
}

// Global index of the stack height counter.
func (inj *Injector) Global() uint32 { return inj.global }

// Cost of a defined function is its contribution to the stack height when
// instrumented.
func Cost(m *module.Module, definedIndex int) (h uint32, err error) {
	if internal.DontPanic() {
		defer func() { err = internal.Error(recover()) }()
	}

	ft := definedFuncType(m, definedIndex)
	if definedIndex >= len(m.Code) {
		pan.Panic(errors.ModuleErrorf("function %d has no body", definedIndex))
	}
	body := &m.Code[definedIndex]
	h = uint32(contribution(m, ft, body, needsScratch(body.Insns)))
	return
}

func definedFuncType(m *module.Module, definedIndex int) wa.FuncType {
	if definedIndex < 0 || definedIndex >= len(m.Funcs) {
		pan.Panic(errors.ModuleErrorf("defined function index out of range: %d", definedIndex))
	}
	ft, ok := m.FuncType(m.NumImportFuncs() + uint32(definedIndex))
	if !ok {
		pan.Panic(errors.ModuleErrorf("function %d has invalid type", definedIndex))
	}
	return ft
}

func contribution(m *module.Module, ft wa.FuncType, body *code.Body, scratch bool) uint64 {
	h := uint64(len(ft.Params)) + body.NumLocals() + uint64(maxHeight(m, ft, body)) + injectedHeight
	if scratch {
		h++
	}
	return h
}

// needsScratch reports if a conditional branch targets the function label.
func needsScratch(insns []code.Insn) bool {
	var depth uint32

	for _, insn := range insns {
		switch insn.Op {
		case opcode.Block, opcode.Loop, opcode.If:
			depth++

		case opcode.End:
			depth--

		case opcode.BrIf:
			if insn.Index == depth {
				return true
			}

		case opcode.BrTable:
			if slices.Contains(insn.Labels, depth) {
				return true
			}
		}
	}

	return false
}

// Rewrite a defined function's body.  The input is not modified.  The stack
// contribution of the function is returned.
func (inj *Injector) Rewrite(definedIndex int, body *code.Body) (_ code.Body, _ code.Shifts, h uint32, err error) {
	if internal.DontPanic() {
		defer func() { err = internal.Error(recover()) }()
	}

	b, shifts, h := inj.rewrite(definedFuncType(inj.m, definedIndex), body)
	return b, shifts, h, nil
}

func (inj *Injector) rewrite(ft wa.FuncType, body *code.Body) (code.Body, code.Shifts, uint32) {
	scratch := needsScratch(body.Insns)

	total := contribution(inj.m, ft, body, scratch)
	if total+uint64(inj.limit) > math.MaxUint32 {
		pan.Panic(errors.ConfigErrorf("stack height limit %d is too large for function with contribution %d", inj.limit, total))
	}
	h := uint32(total)

	r := rewriter{
		global: inj.global,
		h:      h,
		insns:  make([]code.Insn, 0, len(body.Insns)+20),
	}
	out := code.Body{Locals: slices.Clone(body.Locals)}
	if scratch {
		r.local = uint32(len(ft.Params)) + out.AddLocal(wa.I32)
	}

	r.insert(0, r.entry(inj.limit, inj.trampoline)...)

	var depth uint32

	for i, insn := range body.Insns {
		index := uint32(i)

		switch insn.Op {
		case opcode.Block, opcode.Loop, opcode.If:
			depth++

		case opcode.End:
			if depth == 0 {
				r.insert(index, r.exit()...)
			} else {
				depth--
			}

		case opcode.Return:
			r.insert(index, r.exit()...)

		case opcode.Br:
			if insn.Index == depth {
				r.insert(index, r.exit()...)
			}

		case opcode.BrIf:
			if insn.Index == depth {
				r.insert(index, r.conditionalExit()...)
			}

		case opcode.BrTable:
			if slices.Contains(insn.Labels, depth) {
				r.insert(index, r.tableExit(insn.Labels, depth)...)
			}
		}

		r.insns = append(r.insns, insn.Clone())
	}

	out.Insns = r.insns
	return out, r.shifts, h
}

type rewriter struct {
	global uint32
	local  uint32
	h      uint32
	insns  []code.Insn
	shifts code.Shifts
}

func (r *rewriter) insert(index uint32, seq ...code.Insn) {
	r.insns = append(r.insns, seq...)

	if n := len(r.shifts); n > 0 && r.shifts[n-1].Index == index {
		r.shifts[n-1].Count += uint32(len(seq))
	} else {
		r.shifts = append(r.shifts, code.Shift{Index: index, Count: uint32(len(seq))})
	}
}

func (r *rewriter) entry(limit, trampoline uint32) []code.Insn {
	return []code.Insn{
		code.GetGlobal(r.global),
		code.I32Const(int32(r.h)),
		code.Op(opcode.I32Add),
		code.I32Const(int32(limit)),
		code.Op(opcode.I32GtU),
		code.If(code.Void),
		code.Call(trampoline),
		code.End(),
		code.GetGlobal(r.global),
		code.I32Const(int32(r.h)),
		code.Op(opcode.I32Add),
		code.SetGlobal(r.global),
	}
}

func (r *rewriter) exit() []code.Insn {
	return []code.Insn{
		code.GetGlobal(r.global),
		code.I32Const(int32(r.h)),
		code.Op(opcode.I32Sub),
		code.SetGlobal(r.global),
	}
}

// conditionalExit decrements if the condition on top of the stack is true.
// The condition is left on the stack.
func (r *rewriter) conditionalExit() []code.Insn {
	seq := []code.Insn{
		code.SetLocal(r.local),
		code.GetLocal(r.local),
		code.If(code.Void),
	}
	seq = append(seq, r.exit()...)
	return append(seq,
		code.End(),
		code.GetLocal(r.local),
	)
}

// tableExit decrements if the index on top of the stack selects the function
// label.  The index is left on the stack.
func (r *rewriter) tableExit(labels []uint32, funcLabel uint32) []code.Insn {
	selector := make([]uint32, len(labels))
	for i, l := range labels {
		if l != funcLabel {
			selector[i] = 1
		}
	}

	seq := []code.Insn{
		code.SetLocal(r.local),
		code.Block(code.Void),
		code.Block(code.Void),
		code.GetLocal(r.local),
		code.BrTable(selector...),
		code.End(),
	}
	seq = append(seq, r.exit()...)
	return append(seq,
		code.End(),
		code.GetLocal(r.local),
	)
}
