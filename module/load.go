// Copyright (c) 2015 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package module

import (
	"bytes"
	"io"

	"gate.computer/meter/binary"
	"gate.computer/meter/code"
	"gate.computer/meter/internal"
	"gate.computer/meter/internal/errors"
	"gate.computer/meter/internal/loader"
	"gate.computer/meter/section"
	"gate.computer/meter/wa"
	"import.name/pan"
)

const (
	maxTypes    = 100000
	maxParams   = 1000
	maxResults  = 1000
	maxImports  = 100000
	maxFuncs    = 1000000
	maxGlobals  = 1000000
	maxExports  = 100000
	maxElements = 100000
	maxElemSize = 10000000
	maxStrLen   = 100000
)

// Load a binary module.
func Load(r binary.Reader) (m *Module, err error) {
	if internal.DontPanic() {
		defer func() { err = internal.Error(recover()) }()
	}

	m = load(loader.New(r))
	return
}

// LoadBytes is a convenience function.
func LoadBytes(wasm []byte) (*Module, error) {
	return Load(bytes.NewReader(wasm))
}

func load(load *loader.L) *Module {
	if load.Uint32() != MagicNumber {
		pan.Panic(errors.ModuleErr("not a WebAssembly module"))
	}
	if v := load.Uint32(); v != Version {
		pan.Panic(errors.ModuleErrorf("unsupported module version: %d", v))
	}

	m := new(Module)
	after := section.Custom
	var numCode uint32

	for {
		b, err := load.ReadByte()
		if err == io.EOF {
			break
		}
		check(err)

		id := section.ID(b)
		payload := load.Bytes(load.Varuint32())

		if id == section.Custom {
			name, data, err := section.SplitCustom(payload)
			check(err)
			m.Customs = append(m.Customs, Custom{name, data, after})
			continue
		}

		if id.Rank() == 0 {
			pan.Panic(errors.ModuleErrorf("unknown section id: 0x%02x", b))
		}
		if id.Rank() <= after.Rank() {
			pan.Panic(errors.ModuleErrorf("%s section out of order", id))
		}
		after = id

		p := loader.New(bytes.NewReader(payload))

		switch id {
		case section.Type:
			loadTypes(p, m)
		case section.Import:
			loadImports(p, m)
		case section.Function:
			for range p.Count(maxFuncs, "function") {
				m.Funcs = append(m.Funcs, p.Varuint32())
			}
		case section.Table:
			m.Tables = payload
			p.Discard(uint32(len(payload)))
		case section.Memory:
			m.Memories = payload
			p.Discard(uint32(len(payload)))
		case section.Global:
			for range p.Count(maxGlobals, "global") {
				t := loadGlobalType(p)
				m.Globals = append(m.Globals, Global{t, code.LoadExpr(p)})
			}
		case section.Export:
			for range p.Count(maxExports, "export") {
				name := p.String(p.Varuint32(), "export name")
				kind := loadKind(p)
				m.Exports = append(m.Exports, Export{name, kind, p.Varuint32()})
			}
		case section.Start:
			m.StartIndex = p.Varuint32()
			m.StartDefined = true
		case section.Element:
			for range p.Count(maxElements, "element segment") {
				m.Elements = append(m.Elements, loadElement(p))
			}
		case section.DataCount:
			m.DataCount = p.Varuint32()
			m.HasDataCount = true
		case section.Code:
			for range p.Count(maxFuncs, "function body") {
				numCode++
				m.Code = append(m.Code, code.LoadBody(p, p.Varuint32()))
			}
		case section.Data:
			m.Data = payload
			p.Discard(uint32(len(payload)))
		}

		if p.Tell() != int64(len(payload)) {
			pan.Panic(errors.ModuleErrorf("%s section size mismatch", id))
		}
	}

	if numCode != uint32(len(m.Funcs)) {
		pan.Panic(errors.ModuleErrorf("function and code section counts differ: %d and %d", len(m.Funcs), numCode))
	}

	return m
}

func loadTypes(load *loader.L, m *Module) {
	for range load.Count(maxTypes, "type") {
		if form := load.Byte(); form != 0x60 {
			pan.Panic(errors.ModuleErrorf("unsupported type form: 0x%02x", form))
		}

		var ft wa.FuncType
		for range load.Count(maxParams, "parameter") {
			ft.Params = append(ft.Params, loadValueType(load))
		}
		for range load.Count(maxResults, "result") {
			ft.Results = append(ft.Results, loadValueType(load))
		}
		m.Types = append(m.Types, ft)
	}
}

func loadImports(load *loader.L, m *Module) {
	for range load.Count(maxImports, "import") {
		imp := Import{
			Module: load.String(load.Varuint32(), "import module name"),
			Field:  load.String(load.Varuint32(), "import field name"),
			Kind:   loadKind(load),
		}

		switch imp.Kind {
		case FuncKind:
			imp.Type = load.Varuint32()

		case TableKind:
			t := loadValueType(load)
			if !t.Reference() {
				pan.Panic(errors.ModuleErrorf("table element type is not a reference: %s", t))
			}
			imp.Desc = appendLimits([]byte{t.Encode()}, load)

		case MemoryKind:
			imp.Desc = appendLimits(nil, load)

		case GlobalKind:
			imp.Global = loadGlobalType(load)
		}

		m.Imports = append(m.Imports, imp)
	}
}

func appendLimits(buf []byte, load *loader.L) []byte {
	flags := load.Byte()
	if flags > 7 {
		pan.Panic(errors.ModuleErrorf("unsupported limits flags: 0x%02x", flags))
	}
	buf = append(buf, flags)
	buf = binary.AppendVaruint64(buf, load.Varuint64())
	if flags&1 != 0 {
		buf = binary.AppendVaruint64(buf, load.Varuint64())
	}
	return buf
}

func loadElement(load *loader.L) (e Element) {
	e.Flags = load.Varuint32()
	if e.Flags > 7 {
		pan.Panic(errors.ModuleErrorf("unsupported element segment flags: %d", e.Flags))
	}

	if e.Flags&1 == 0 { // Active.
		if e.Flags&2 != 0 {
			e.Table = load.Varuint32()
		}
		e.Offset = code.LoadExpr(load)
	}

	if e.Flags&3 != 0 {
		e.Kind = load.Byte()
	} else if e.Flags&4 != 0 {
		e.Kind = wa.FuncRef.Encode()
	}

	if e.HasExprs() {
		for range load.Count(maxElemSize, "element") {
			e.Exprs = append(e.Exprs, code.LoadExpr(load))
		}
	} else {
		for range load.Count(maxElemSize, "element") {
			e.Funcs = append(e.Funcs, load.Varuint32())
		}
	}
	return
}

func loadKind(load *loader.L) ExternalKind {
	k := ExternalKind(load.Byte())
	if k > GlobalKind {
		pan.Panic(errors.ModuleErrorf("unsupported external kind: %d", k))
	}
	return k
}

func loadValueType(load *loader.L) wa.Type {
	b := load.Byte()
	t, ok := wa.DecodeType(b)
	if !ok {
		pan.Panic(errors.ModuleErrorf("unsupported value type: 0x%02x", b))
	}
	return t
}

func loadGlobalType(load *loader.L) wa.GlobalType {
	t := loadValueType(load)
	mut := load.Byte()
	if mut > 1 {
		pan.Panic(errors.ModuleErrorf("invalid global mutability: %d", mut))
	}
	return wa.MakeGlobalType(t, mut == 1)
}

func check(err error) {
	if err != nil {
		pan.Panic(err)
	}
}
