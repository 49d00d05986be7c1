// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stack

import (
	"gate.computer/meter/code"
	"gate.computer/meter/internal/errors"
	"gate.computer/meter/module"
	"gate.computer/meter/wa"
	"gate.computer/meter/wa/opcode"
	"import.name/pan"
)

type frame struct {
	startHeight uint32
	params      uint32 // Re-pushed at else.
	endArity    uint32
	branchArity uint32 // Params of loop, results of others.
	polymorphic bool
}

type analyzer struct {
	m         *module.Module
	height    uint32
	maxHeight uint32
	frames    []frame
}

func (a *analyzer) top() *frame {
	if len(a.frames) == 0 {
		pan.Panic(errors.ModuleErr("instruction outside of function block"))
	}
	return &a.frames[len(a.frames)-1]
}

func (a *analyzer) label(depth uint32) *frame {
	if uint64(depth) >= uint64(len(a.frames)) {
		pan.Panic(errors.ModuleErrorf("branch target out of range: %d", depth))
	}
	return &a.frames[len(a.frames)-1-int(depth)]
}

func (a *analyzer) push(n uint32) {
	a.height += n
	if a.height > a.maxHeight && !a.top().polymorphic {
		a.maxHeight = a.height
	}
}

// pop values pushed within the current frame.  An unreachable frame yields
// as many values as needed.
func (a *analyzer) pop(n uint32) {
	f := a.top()
	if a.height-f.startHeight < n {
		if !f.polymorphic {
			pan.Panic(errors.ModuleErr("operand stack underflow"))
		}
		a.height = f.startHeight
		return
	}
	a.height -= n
}

func (a *analyzer) unreachable() {
	f := a.top()
	a.height = f.startHeight
	f.polymorphic = true
}

func (a *analyzer) enter(bt code.BlockType, loop bool) {
	params, results := a.blockSignature(bt)
	a.pop(params)

	arity := results
	if loop {
		arity = params
	}

	a.frames = append(a.frames, frame{
		startHeight: a.height,
		params:      params,
		endArity:    results,
		branchArity: arity,
	})
	a.push(params)
}

func (a *analyzer) blockSignature(bt code.BlockType) (params, results uint32) {
	if i, ok := bt.TypeIndex(); ok && i >= uint32(len(a.m.Types)) {
		pan.Panic(errors.ModuleErrorf("block type index out of range: %d", i))
	}
	p, r := bt.Signature(a.m.Types)
	return uint32(len(p)), uint32(len(r))
}

func (a *analyzer) funcType(funcIndex uint32) wa.FuncType {
	ft, ok := a.m.FuncType(funcIndex)
	if !ok {
		pan.Panic(errors.ModuleErrorf("function index out of range: %d", funcIndex))
	}
	return ft
}

func (a *analyzer) insn(insn code.Insn) {
	switch op := insn.Op; op {
	case opcode.Nop, opcode.DropData, opcode.DropElem:

	case opcode.Block:
		a.enter(insn.Block, false)

	case opcode.Loop:
		a.enter(insn.Block, true)

	case opcode.If:
		a.pop(1)
		a.enter(insn.Block, false)

	case opcode.Else:
		f := a.top()
		a.pop(f.endArity)
		a.height = f.startHeight
		f.polymorphic = false
		a.push(f.params)

	case opcode.End:
		f := a.top()
		a.pop(f.endArity)
		a.frames = a.frames[:len(a.frames)-1]
		a.height = f.startHeight
		if len(a.frames) > 0 {
			a.push(f.endArity)
		}

	case opcode.Unreachable:
		a.unreachable()

	case opcode.Br:
		a.pop(a.label(insn.Index).branchArity)
		a.unreachable()

	case opcode.BrIf:
		a.pop(1)
		arity := a.label(insn.Index).branchArity
		a.pop(arity)
		a.push(arity)

	case opcode.BrTable:
		a.pop(1)
		var arity uint32
		for i, l := range insn.Labels {
			n := a.label(l).branchArity
			if i > 0 && n != arity {
				pan.Panic(errors.ModuleErr("br_table targets have different arities"))
			}
			arity = n
		}
		a.pop(arity)
		a.unreachable()

	case opcode.Return:
		a.pop(a.frames[0].endArity)
		a.unreachable()

	case opcode.Call:
		ft := a.funcType(insn.Index)
		a.pop(uint32(len(ft.Params)))
		a.push(uint32(len(ft.Results)))

	case opcode.CallIndirect:
		if insn.Index >= uint32(len(a.m.Types)) {
			pan.Panic(errors.ModuleErrorf("type index out of range: %d", insn.Index))
		}
		ft := a.m.Types[insn.Index]
		a.pop(1)
		a.pop(uint32(len(ft.Params)))
		a.push(uint32(len(ft.Results)))

	default:
		pops, pushes, ok := effect(op)
		if !ok {
			pan.Panic(errors.ModuleErrorf("unsupported instruction: %s", op))
		}
		a.pop(pops)
		a.push(pushes)
	}
}

// effect of an instruction which doesn't affect control flow or depend on
// module types.
func effect(op opcode.Opcode) (pops, pushes uint32, ok bool) {
	switch {
	case op == opcode.Drop, op == opcode.SetLocal, op == opcode.SetGlobal:
		return 1, 0, true

	case op == opcode.Select, op == opcode.SelectTyped:
		return 3, 1, true

	case op == opcode.GetLocal, op == opcode.GetGlobal, op == opcode.CurrentMemory,
		op >= opcode.I32Const && op <= opcode.F64Const,
		op == opcode.RefNull, op == opcode.RefFunc, op == opcode.SizeTable:
		return 0, 1, true

	case op == opcode.TeeLocal, op == opcode.GetTable, op == opcode.GrowMemory,
		op >= opcode.I32Load && op <= opcode.I64Load32U,
		op == opcode.I32Eqz, op == opcode.I64Eqz,
		op >= opcode.I32Clz && op <= opcode.I32Popcnt,
		op >= opcode.I64Clz && op <= opcode.I64Popcnt,
		op >= opcode.F32Abs && op <= opcode.F32Sqrt,
		op >= opcode.F64Abs && op <= opcode.F64Sqrt,
		op >= opcode.I32WrapI64 && op <= opcode.I64Extend32S,
		op == opcode.RefIsNull,
		op >= opcode.I32TruncSatSF32 && op <= opcode.I64TruncSatUF64:
		return 1, 1, true

	case op == opcode.SetTable, op >= opcode.I32Store && op <= opcode.I64Store32:
		return 2, 0, true

	case op >= opcode.I32Eq && op <= opcode.I32GeU,
		op >= opcode.I64Eq && op <= opcode.F64Ge,
		op >= opcode.I32Add && op <= opcode.I32Rotr,
		op >= opcode.I64Add && op <= opcode.I64Rotr,
		op >= opcode.F32Add && op <= opcode.F32Copysign,
		op >= opcode.F64Add && op <= opcode.F64Copysign,
		op == opcode.GrowTable:
		return 2, 1, true

	case op == opcode.InitMemory, op == opcode.CopyMemory, op == opcode.FillMemory,
		op == opcode.InitTable, op == opcode.CopyTable, op == opcode.FillTable:
		return 3, 0, true
	}

	return 0, 0, false
}

// maxHeight of the operand stack over all paths through a function body.
func maxHeight(m *module.Module, ft wa.FuncType, body *code.Body) uint32 {
	a := analyzer{m: m}

	results := uint32(len(ft.Results))
	a.frames = append(a.frames, frame{
		endArity:    results,
		branchArity: results,
	})

	for i, insn := range body.Insns {
		if len(a.frames) == 0 {
			pan.Panic(errors.ModuleErrorf("instructions after function end at %d", i))
		}
		a.insn(insn)
	}

	if len(a.frames) != 0 {
		pan.Panic(errors.ModuleErr("function body is not terminated"))
	}

	return a.maxHeight
}
