// Copyright (c) 2016 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package opcode enumerates WebAssembly instructions.
//
// Prefixed instructions are represented with the prefix byte in the high
// byte and the secondary opcode in the low byte.
package opcode

import (
	"fmt"
)

type Opcode uint16

// Prefix byte, or zero for single-byte instructions.
func (op Opcode) Prefix() byte {
	return byte(op >> 8)
}

func (op Opcode) String() (s string) {
	switch op.Prefix() {
	case 0:
		s = strings[op]
		if s == "" {
			s = fmt.Sprintf("0x%02x", uint16(op))
		}

	case byte(MiscPrefix):
		if i := int(op & 0xff); i < len(miscStrings) {
			s = miscStrings[i]
		}
		if s == "" {
			s = fmt.Sprintf("0xfc 0x%02x", byte(op))
		}

	default:
		s = fmt.Sprintf("0x%04x", uint16(op))
	}
	return
}

func Exists(opcode byte) bool {
	return strings[opcode] != "" || Opcode(opcode) == MiscPrefix
}

// MiscExists checks if a secondary opcode following MiscPrefix is known.
func MiscExists(sub uint32) bool {
	return sub < uint32(len(miscStrings)) && miscStrings[sub] != ""
}

var byName map[string][]Opcode

func init() {
	byName = make(map[string][]Opcode)
	for i, s := range strings {
		if s != "" {
			byName[s] = append(byName[s], Opcode(i))
		}
	}
	for i, s := range miscStrings {
		byName[s] = append(byName[s], MiscPrefix<<8|Opcode(i))
	}
}

// Lookup instructions by text format mnemonic.  Some mnemonics (e.g. select)
// have multiple encodings.
func Lookup(name string) []Opcode {
	return byName[name]
}
