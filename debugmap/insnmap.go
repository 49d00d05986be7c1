// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package debugmap

import (
	"strconv"

	"github.com/fxamacker/cbor/v2"
)

// InsnMapName is the custom section name of the InsnMap format.
const InsnMapName = "insnmap"

// InsnMapVersion is the supported format version.
const InsnMapVersion = 1

// SourceMap is the content of an "insnmap" custom section.  It maps
// instruction indexes of defined functions to source code positions.
type SourceMap struct {
	Version uint        `cbor:"1,keyasint"`
	Files   []string    `cbor:"2,keyasint"`
	Funcs   []FuncLines `cbor:"3,keyasint"`
}

// FuncLines of a function.  Lines are ordered by instruction index.
type FuncLines struct {
	Func  uint32     `cbor:"1,keyasint"` // Function index space.
	Lines []Position `cbor:"2,keyasint"`
}

// Position of an instruction.
type Position struct {
	_      struct{} `cbor:",toarray"`
	Insn   uint32
	File   uint32
	Line   uint32
	Column uint32
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}

	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Marshal the source map with deterministic encoding.
func (sm *SourceMap) Marshal() ([]byte, error) {
	return encMode.Marshal(sm)
}

// UnmarshalSourceMap decodes "insnmap" section data.
func UnmarshalSourceMap(data []byte) (*SourceMap, error) {
	sm := new(SourceMap)
	if err := decMode.Unmarshal(data, sm); err != nil {
		return nil, err
	}
	return sm, nil
}

// InsnMap format relocates instruction references of a SourceMap.
type InsnMap struct{}

func (InsnMap) Name() string { return InsnMapName }

func (f InsnMap) Rewrite(data []byte, r Relocator) ([]byte, error) {
	sm, err := UnmarshalSourceMap(data)
	if err != nil {
		return nil, formatError(f, err)
	}
	if sm.Version != InsnMapVersion {
		return nil, formatError(f, versionError(sm.Version))
	}

	for i := range sm.Funcs {
		fn := &sm.Funcs[i]

		for j := range fn.Lines {
			pos := &fn.Lines[j]

			if pos.File >= uint32(len(sm.Files)) {
				return nil, formatError(f, fileError(pos.File))
			}

			insn, ok := r.Insn(fn.Func, pos.Insn)
			if !ok {
				return nil, formatError(f, insnError{fn.Func, pos.Insn})
			}
			pos.Insn = insn
		}

		fn.Func = r.Func(fn.Func)
	}

	return sm.Marshal()
}

type versionError uint

func (e versionError) Error() string { return "unsupported version " + strconv.FormatUint(uint64(e), 10) }

type fileError uint32

func (e fileError) Error() string { return "file index out of range: " + itoa(uint32(e)) }

type insnError struct {
	funcIndex uint32
	insn      uint32
}

func (e insnError) Error() string {
	return "function " + itoa(e.funcIndex) + " has no instruction " + itoa(e.insn)
}

func itoa(x uint32) string {
	return strconv.FormatUint(uint64(x), 10)
}
