// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package code

import (
	"gate.computer/meter/wa/opcode"
)

// Op without immediates.
func Op(op opcode.Opcode) Insn { return Insn{Op: op} }

func Unreachable() Insn           { return Insn{Op: opcode.Unreachable} }
func Nop() Insn                   { return Insn{Op: opcode.Nop} }
func Block(bt BlockType) Insn     { return Insn{Op: opcode.Block, Block: bt} }
func Loop(bt BlockType) Insn      { return Insn{Op: opcode.Loop, Block: bt} }
func If(bt BlockType) Insn        { return Insn{Op: opcode.If, Block: bt} }
func Else() Insn                  { return Insn{Op: opcode.Else} }
func End() Insn                   { return Insn{Op: opcode.End} }
func Br(depth uint32) Insn        { return Insn{Op: opcode.Br, Index: depth} }
func BrIf(depth uint32) Insn      { return Insn{Op: opcode.BrIf, Index: depth} }
func Return() Insn                { return Insn{Op: opcode.Return} }
func Call(funcIndex uint32) Insn  { return Insn{Op: opcode.Call, Index: funcIndex} }
func Drop() Insn                  { return Insn{Op: opcode.Drop} }
func GetLocal(index uint32) Insn  { return Insn{Op: opcode.GetLocal, Index: index} }
func SetLocal(index uint32) Insn  { return Insn{Op: opcode.SetLocal, Index: index} }
func TeeLocal(index uint32) Insn  { return Insn{Op: opcode.TeeLocal, Index: index} }
func GetGlobal(index uint32) Insn { return Insn{Op: opcode.GetGlobal, Index: index} }
func SetGlobal(index uint32) Insn { return Insn{Op: opcode.SetGlobal, Index: index} }
func RefFunc(funcIndex uint32) Insn {
	return Insn{Op: opcode.RefFunc, Index: funcIndex}
}

// BrTable with the default target as the last label.
func BrTable(labels ...uint32) Insn {
	return Insn{Op: opcode.BrTable, Labels: labels}
}

func I32Const(x int32) Insn {
	return Insn{Op: opcode.I32Const, Value: uint64(uint32(x))}
}

func I64Const(x int64) Insn {
	return Insn{Op: opcode.I64Const, Value: uint64(x)}
}

func CurrentMemory(memory uint32) Insn {
	return Insn{Op: opcode.CurrentMemory, Index: memory}
}

func GrowMemory(memory uint32) Insn {
	return Insn{Op: opcode.GrowMemory, Index: memory}
}

// Int32 value of an i32.const instruction.
func (insn Insn) Int32() int32 { return int32(uint32(insn.Value)) }

// Int64 value of an i64.const instruction.
func (insn Insn) Int64() int64 { return int64(insn.Value) }
