// Copyright (c) 2016 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wa contains WebAssembly value and declaration types.
package wa

type ScalarCategory uint8

const (
	Int   = ScalarCategory(0)
	Float = ScalarCategory(1)
)

func (cat ScalarCategory) String() string {
	switch cat {
	case Int:
		return "int"

	case Float:
		return "float"

	default:
		return "<invalid scalar category>"
	}
}

type Size uint8

const (
	Size32 = Size(4)
	Size64 = Size(8)
)

type Type uint8

const (
	Void      = Type(0)
	I32       = Type(4 | Int)
	I64       = Type(8 | Int)
	F32       = Type(4 | Float)
	F64       = Type(8 | Float)
	FuncRef   = Type(16)
	ExternRef = Type(17)
)

// Category of a numeric type.
func (t Type) Category() ScalarCategory {
	return ScalarCategory(t & 1)
}

// Size in bytes of a numeric type.
func (t Type) Size() Size {
	return Size(t) & (4 | 8)
}

// Reference type?
func (t Type) Reference() bool {
	return t&16 != 0
}

func (t Type) String() string {
	switch t {
	case Void:
		return "void"

	case I32:
		return "i32"

	case I64:
		return "i64"

	case F32:
		return "f32"

	case F64:
		return "f64"

	case FuncRef:
		return "funcref"

	case ExternRef:
		return "externref"

	default:
		return "<invalid type>"
	}
}

var typeEncoding = [32]byte{
	Void:      0x40,
	I32:       0x7f,
	I64:       0x7e,
	F32:       0x7d,
	F64:       0x7c,
	FuncRef:   0x70,
	ExternRef: 0x6f,
}

// Encode as WebAssembly.  Result is undefined if Type representation is not
// valid.  Void is encoded as the empty block type.
func (t Type) Encode() byte {
	return typeEncoding[t&31]
}

// DecodeType of a value.  Void is not a value type.
func DecodeType(b byte) (t Type, ok bool) {
	switch b {
	case 0x7f:
		t = I32
	case 0x7e:
		t = I64
	case 0x7d:
		t = F32
	case 0x7c:
		t = F64
	case 0x70:
		t = FuncRef
	case 0x6f:
		t = ExternRef
	default:
		return
	}
	ok = true
	return
}
