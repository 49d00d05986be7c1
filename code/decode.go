// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package code

import (
	"bytes"

	"gate.computer/meter/internal"
	"gate.computer/meter/internal/errors"
	"gate.computer/meter/internal/loader"
	"gate.computer/meter/wa"
	"gate.computer/meter/wa/opcode"
	"import.name/pan"
)

const (
	maxLocals      = 50000
	maxBrTableSize = 65520
	maxSelectTypes = 1
)

// DecodeBody of a code section entry (without the size prefix).
func DecodeBody(data []byte) (body Body, err error) {
	if internal.DontPanic() {
		defer func() { err = internal.Error(recover()) }()
	}

	load := loader.New(bytes.NewReader(data))
	body = LoadBody(load, uint32(len(data)))
	return
}

// LoadBody panics on error.
func LoadBody(load *loader.L, size uint32) (body Body) {
	begin := load.Tell()

	var total uint64
	for range load.Count(maxLocals, "local group") {
		count := load.Varuint32()
		total += uint64(count)
		if total > maxLocals {
			pan.Panic(errors.ModuleErrorf("local count is too large: %d", total))
		}
		body.Locals = append(body.Locals, Local{count, loadValueType(load)})
	}

	for depth := 1; depth > 0; {
		if load.Tell()-begin >= int64(size) {
			pan.Panic(errors.ModuleErr("function body is not terminated"))
		}

		insn := LoadInsn(load)
		switch insn.Op {
		case opcode.Block, opcode.Loop, opcode.If:
			depth++
		case opcode.End:
			depth--
		}
		body.Insns = append(body.Insns, insn)
	}

	if load.Tell()-begin != int64(size) {
		pan.Panic(errors.ModuleErr("function body size mismatch"))
	}
	return
}

// LoadExpr reads a constant expression including the terminating end.
func LoadExpr(load *loader.L) (expr []Insn) {
	for depth := 1; depth > 0; {
		insn := LoadInsn(load)
		switch insn.Op {
		case opcode.Block, opcode.Loop, opcode.If:
			depth++
		case opcode.End:
			depth--
		}
		expr = append(expr, insn)
	}
	return
}

// LoadInsn reads one instruction with its immediates.
func LoadInsn(load *loader.L) (insn Insn) {
	b := load.Byte()
	if !opcode.Exists(b) {
		pan.Panic(errors.ModuleErrorf("unsupported instruction: 0x%02x", b))
	}
	insn.Op = opcode.Opcode(b)

	switch insn.Op {
	case opcode.Block, opcode.Loop, opcode.If:
		insn.Block = BlockType(load.Varint64())
		if !insn.Block.valid() {
			pan.Panic(errors.ModuleErrorf("invalid block type: %d", insn.Block))
		}

	case opcode.Br, opcode.BrIf, opcode.Call, opcode.GetLocal, opcode.SetLocal, opcode.TeeLocal,
		opcode.GetGlobal, opcode.SetGlobal, opcode.GetTable, opcode.SetTable, opcode.RefFunc,
		opcode.CurrentMemory, opcode.GrowMemory:
		insn.Index = load.Varuint32()

	case opcode.CallIndirect:
		insn.Index = load.Varuint32()
		insn.Index2 = load.Varuint32()

	case opcode.BrTable:
		for range load.Count(maxBrTableSize, "br_table target") {
			insn.Labels = append(insn.Labels, load.Varuint32())
		}
		insn.Labels = append(insn.Labels, load.Varuint32())

	case opcode.SelectTyped:
		for range load.Count(maxSelectTypes, "select result") {
			insn.Types = append(insn.Types, loadValueType(load))
		}
		if len(insn.Types) == 0 {
			pan.Panic(errors.ModuleErr("typed select without result type"))
		}

	case opcode.RefNull:
		t := loadValueType(load)
		if !t.Reference() {
			pan.Panic(errors.ModuleErrorf("ref.null with non-reference type: %s", t))
		}
		insn.Types = []wa.Type{t}

	case opcode.I32Const:
		insn.Value = uint64(uint32(load.Varint32()))

	case opcode.I64Const:
		insn.Value = uint64(load.Varint64())

	case opcode.F32Const:
		insn.Value = uint64(load.Uint32())

	case opcode.F64Const:
		insn.Value = load.Uint64()

	case opcode.MiscPrefix:
		sub := load.Varuint32()
		if !opcode.MiscExists(sub) {
			pan.Panic(errors.ModuleErrorf("unsupported instruction: 0xfc 0x%02x", sub))
		}
		insn.Op = opcode.MiscPrefix<<8 | opcode.Opcode(sub)
		loadMiscImmediates(load, &insn)

	default:
		if isMemoryAccess(insn.Op) {
			flags := load.Varuint32()
			if flags&0x40 != 0 {
				flags &^= 0x40
				insn.Index = load.Varuint32()
			}
			insn.Align = flags
			insn.Offset = load.Varuint64()
		}
	}

	return
}

func loadMiscImmediates(load *loader.L, insn *Insn) {
	switch insn.Op {
	case opcode.InitMemory, opcode.InitTable, opcode.CopyMemory, opcode.CopyTable:
		insn.Index = load.Varuint32()
		insn.Index2 = load.Varuint32()

	case opcode.DropData, opcode.DropElem, opcode.FillMemory, opcode.GrowTable, opcode.SizeTable,
		opcode.FillTable:
		insn.Index = load.Varuint32()
	}
}

func loadValueType(load *loader.L) wa.Type {
	b := load.Byte()
	t, ok := wa.DecodeType(b)
	if !ok {
		pan.Panic(errors.ModuleErrorf("unsupported value type: 0x%02x", b))
	}
	return t
}
