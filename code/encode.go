// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package code

import (
	"gate.computer/meter/binary"
	"gate.computer/meter/wa/opcode"
)

// Append the body encoding (without the size prefix).
func (b *Body) Append(buf []byte) []byte {
	buf = binary.AppendVaruint32(buf, uint32(len(b.Locals)))
	for _, l := range b.Locals {
		buf = binary.AppendVaruint32(buf, l.Count)
		buf = append(buf, l.Type.Encode())
	}
	return AppendInsns(buf, b.Insns)
}

func AppendInsns(buf []byte, insns []Insn) []byte {
	for _, insn := range insns {
		buf = AppendInsn(buf, insn)
	}
	return buf
}

func AppendInsn(buf []byte, insn Insn) []byte {
	if insn.Op.Prefix() != 0 {
		buf = append(buf, insn.Op.Prefix())
		buf = binary.AppendVaruint32(buf, uint32(insn.Op&0xff))
	} else {
		buf = append(buf, byte(insn.Op))
	}

	switch insn.Op {
	case opcode.Block, opcode.Loop, opcode.If:
		buf = binary.AppendVarint64(buf, int64(insn.Block))

	case opcode.Br, opcode.BrIf, opcode.Call, opcode.GetLocal, opcode.SetLocal, opcode.TeeLocal,
		opcode.GetGlobal, opcode.SetGlobal, opcode.GetTable, opcode.SetTable, opcode.RefFunc,
		opcode.CurrentMemory, opcode.GrowMemory,
		opcode.DropData, opcode.DropElem, opcode.FillMemory, opcode.GrowTable, opcode.SizeTable,
		opcode.FillTable:
		buf = binary.AppendVaruint32(buf, insn.Index)

	case opcode.CallIndirect, opcode.InitMemory, opcode.InitTable, opcode.CopyMemory, opcode.CopyTable:
		buf = binary.AppendVaruint32(buf, insn.Index)
		buf = binary.AppendVaruint32(buf, insn.Index2)

	case opcode.BrTable:
		buf = binary.AppendVaruint32(buf, uint32(len(insn.Labels)-1))
		for _, l := range insn.Labels {
			buf = binary.AppendVaruint32(buf, l)
		}

	case opcode.SelectTyped:
		buf = binary.AppendVaruint32(buf, uint32(len(insn.Types)))
		for _, t := range insn.Types {
			buf = append(buf, t.Encode())
		}

	case opcode.RefNull:
		buf = append(buf, insn.Types[0].Encode())

	case opcode.I32Const:
		buf = binary.AppendVarint32(buf, insn.Int32())

	case opcode.I64Const:
		buf = binary.AppendVarint64(buf, insn.Int64())

	case opcode.F32Const:
		buf = binary.AppendUint32(buf, uint32(insn.Value))

	case opcode.F64Const:
		buf = binary.AppendUint64(buf, insn.Value)

	default:
		if isMemoryAccess(insn.Op) {
			if insn.Index != 0 {
				buf = binary.AppendVaruint32(buf, insn.Align|0x40)
				buf = binary.AppendVaruint32(buf, insn.Index)
			} else {
				buf = binary.AppendVaruint32(buf, insn.Align)
			}
			buf = binary.AppendVaruint64(buf, insn.Offset)
		}
	}

	return buf
}
