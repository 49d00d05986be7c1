// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package code models WebAssembly function bodies as instruction sequences.
package code

import (
	"fmt"
	"slices"
	"strings"

	"gate.computer/meter/wa"
	"gate.computer/meter/wa/opcode"
)

// BlockType is a signed 33-bit block type: a negative value encodes the
// empty type or a single value type, a non-negative value is a type index.
type BlockType int64

const Void BlockType = -64

// ValueBlock has a single result.
func ValueBlock(t wa.Type) BlockType {
	if t == wa.Void {
		return Void
	}
	return BlockType(int8(t.Encode()<<1) >> 1)
}

// TypeIndexBlock refers to a function type.
func TypeIndexBlock(index uint32) BlockType {
	return BlockType(index)
}

// TypeIndex of a multi-value block type.
func (bt BlockType) TypeIndex() (uint32, bool) {
	if bt < 0 {
		return 0, false
	}
	return uint32(bt), true
}

// ValueType of a single-result block type.  Void means no results or a type
// index.
func (bt BlockType) ValueType() wa.Type {
	if bt < 0 && bt != Void {
		t, _ := wa.DecodeType(byte(bt) & 0x7f)
		return t
	}
	return wa.Void
}

// Signature of the block in the context of module types.
func (bt BlockType) Signature(types []wa.FuncType) (params, results []wa.Type) {
	if i, ok := bt.TypeIndex(); ok {
		if i < uint32(len(types)) {
			ft := types[i]
			return ft.Params, ft.Results
		}
		return
	}
	if t := bt.ValueType(); t != wa.Void {
		results = []wa.Type{t}
	}
	return
}

func (bt BlockType) valid() bool {
	if bt >= 0 {
		return bt <= 0xffffffff
	}
	if bt == Void {
		return true
	}
	return bt >= -64 && bt.ValueType() != wa.Void
}

// Insn is an instruction with its immediates.  Only the fields relevant to
// the opcode are set.
type Insn struct {
	Op     opcode.Opcode
	Block  BlockType // block, loop, if.
	Index  uint32    // Label, local, global, function, type, table, memory, data or element index.
	Index2 uint32    // Table of call_indirect, source of copy, destination of init.
	Offset uint64    // Memory access offset.
	Align  uint32    // Memory access alignment (log2).
	Value  uint64    // Constant bits.
	Labels []uint32  // br_table targets; the default target is last.
	Types  []wa.Type // Typed select results, or ref.null type.
}

func (insn Insn) Clone() Insn {
	insn.Labels = slices.Clone(insn.Labels)
	insn.Types = slices.Clone(insn.Types)
	return insn
}

// Label depths targeted by a branch instruction.
func (insn Insn) Targets() []uint32 {
	switch insn.Op {
	case opcode.Br, opcode.BrIf:
		return []uint32{insn.Index}

	case opcode.BrTable:
		return insn.Labels
	}
	return nil
}

func (insn Insn) String() string {
	s := insn.Op.String()

	switch insn.Op {
	case opcode.Block, opcode.Loop, opcode.If:
		if i, ok := insn.Block.TypeIndex(); ok {
			s += fmt.Sprintf(" (type %d)", i)
		} else if t := insn.Block.ValueType(); t != wa.Void {
			s += " (result " + t.String() + ")"
		}

	case opcode.Br, opcode.BrIf, opcode.Call, opcode.GetLocal, opcode.SetLocal, opcode.TeeLocal,
		opcode.GetGlobal, opcode.SetGlobal, opcode.RefFunc, opcode.GetTable, opcode.SetTable,
		opcode.DropData, opcode.DropElem, opcode.GrowTable, opcode.SizeTable, opcode.FillTable:
		s += fmt.Sprintf(" %d", insn.Index)

	case opcode.CallIndirect, opcode.CopyMemory, opcode.CopyTable, opcode.InitMemory, opcode.InitTable:
		s += fmt.Sprintf(" %d %d", insn.Index, insn.Index2)

	case opcode.BrTable:
		var b strings.Builder
		for _, l := range insn.Labels {
			fmt.Fprintf(&b, " %d", l)
		}
		s += b.String()

	case opcode.I32Const:
		s += fmt.Sprintf(" %d", int32(insn.Value))

	case opcode.I64Const:
		s += fmt.Sprintf(" %d", int64(insn.Value))

	case opcode.F32Const, opcode.F64Const:
		s += fmt.Sprintf(" 0x%x", insn.Value)

	case opcode.SelectTyped, opcode.RefNull:
		for _, t := range insn.Types {
			s += " " + t.String()
		}

	case opcode.CurrentMemory, opcode.GrowMemory, opcode.FillMemory:
		if insn.Index != 0 {
			s += fmt.Sprintf(" %d", insn.Index)
		}

	default:
		if isMemoryAccess(insn.Op) {
			if insn.Index != 0 {
				s += fmt.Sprintf(" %d", insn.Index)
			}
			if insn.Offset != 0 {
				s += fmt.Sprintf(" offset=%d", insn.Offset)
			}
			s += fmt.Sprintf(" align=%d", 1<<insn.Align)
		}
	}

	return s
}

func isMemoryAccess(op opcode.Opcode) bool {
	return op >= opcode.I32Load && op <= opcode.I64Store32
}

// Local variable declaration group.
type Local struct {
	Count uint32
	Type  wa.Type
}

// Body of a defined function.  Insns includes the final end instruction.
type Body struct {
	Locals []Local
	Insns  []Insn
}

// NumLocals declared in the body (excluding parameters).
func (b *Body) NumLocals() (n uint64) {
	for _, l := range b.Locals {
		n += uint64(l.Count)
	}
	return
}

// AddLocal declares a new local variable, returning its index relative to
// the first declared local.
func (b *Body) AddLocal(t wa.Type) uint32 {
	index := uint32(b.NumLocals())
	b.Locals = append(b.Locals, Local{1, t})
	return index
}

func (b Body) Clone() Body {
	insns := make([]Insn, len(b.Insns))
	for i, insn := range b.Insns {
		insns[i] = insn.Clone()
	}
	return Body{
		Locals: slices.Clone(b.Locals),
		Insns:  insns,
	}
}
