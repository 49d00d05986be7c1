// Copyright (c) 2015 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package module contains a structured representation of a WebAssembly
// module.  Function bodies are decoded into instructions; sections which are
// not affected by instrumentation are kept in encoded form.
package module

import (
	"slices"

	"gate.computer/meter/code"
	"gate.computer/meter/section"
	"gate.computer/meter/wa"
)

const (
	MagicNumber = uint32(0x6d736100)
	Version     = uint32(1)
)

type ExternalKind byte

const (
	FuncKind   = ExternalKind(0)
	TableKind  = ExternalKind(1)
	MemoryKind = ExternalKind(2)
	GlobalKind = ExternalKind(3)
)

func (k ExternalKind) String() string {
	switch k {
	case FuncKind:
		return "func"
	case TableKind:
		return "table"
	case MemoryKind:
		return "memory"
	case GlobalKind:
		return "global"
	default:
		return "<invalid external kind>"
	}
}

type Import struct {
	Module string
	Field  string
	Kind   ExternalKind
	Type   uint32        // Function type index.
	Global wa.GlobalType // Global type.
	Desc   []byte        // Encoded table or memory type.
}

type Global struct {
	Type wa.GlobalType
	Init []code.Insn // Constant expression including end.
}

type Export struct {
	Name  string
	Kind  ExternalKind
	Index uint32
}

// Element segment.  Flags select the encoding variant; either Funcs or Exprs
// is used depending on bit 2.
type Element struct {
	Flags  uint32
	Table  uint32
	Offset []code.Insn
	Kind   byte // Element kind or reference type encoding.
	Funcs  []uint32
	Exprs  [][]code.Insn
}

func (e *Element) HasExprs() bool { return e.Flags&4 != 0 }

// Custom section positioned after a standard section (or at the beginning if
// After is section.Custom).
type Custom struct {
	Name  string
	Data  []byte
	After section.ID
}

type Module struct {
	Types        []wa.FuncType
	Imports      []Import
	Funcs        []uint32 // Type indexes of defined functions.
	Tables       []byte   // Encoded table section payload.
	Memories     []byte   // Encoded memory section payload.
	Globals      []Global // Defined globals.
	Exports      []Export
	StartIndex   uint32
	StartDefined bool
	Elements     []Element
	DataCount    uint32
	HasDataCount bool
	Code         []code.Body
	Data         []byte // Encoded data section payload.
	Customs      []Custom
}

func (m *Module) NumImportFuncs() uint32   { return m.numImports(FuncKind) }
func (m *Module) NumImportGlobals() uint32 { return m.numImports(GlobalKind) }

func (m *Module) numImports(kind ExternalKind) (n uint32) {
	for _, imp := range m.Imports {
		if imp.Kind == kind {
			n++
		}
	}
	return
}

// NumFuncs in the function index space.
func (m *Module) NumFuncs() uint32 {
	return m.NumImportFuncs() + uint32(len(m.Funcs))
}

// FuncTypeIndex of a function in the function index space.
func (m *Module) FuncTypeIndex(funcIndex uint32) (uint32, bool) {
	for _, imp := range m.Imports {
		if imp.Kind == FuncKind {
			if funcIndex == 0 {
				return imp.Type, true
			}
			funcIndex--
		}
	}
	if funcIndex < uint32(len(m.Funcs)) {
		return m.Funcs[funcIndex], true
	}
	return 0, false
}

// FuncType of a function in the function index space.
func (m *Module) FuncType(funcIndex uint32) (wa.FuncType, bool) {
	i, ok := m.FuncTypeIndex(funcIndex)
	if !ok || i >= uint32(len(m.Types)) {
		return wa.FuncType{}, false
	}
	return m.Types[i], true
}

// GlobalType of a global in the global index space.
func (m *Module) GlobalType(globalIndex uint32) (wa.GlobalType, bool) {
	for _, imp := range m.Imports {
		if imp.Kind == GlobalKind {
			if globalIndex == 0 {
				return imp.Global, true
			}
			globalIndex--
		}
	}
	if globalIndex < uint32(len(m.Globals)) {
		return m.Globals[globalIndex].Type, true
	}
	return 0, false
}

// FindImport by name.
func (m *Module) FindImport(module, field string) (int, bool) {
	for i, imp := range m.Imports {
		if imp.Module == module && imp.Field == field {
			return i, true
		}
	}
	return -1, false
}

// ImportFuncIndex of an import in the function index space.
func (m *Module) ImportFuncIndex(importIndex int) uint32 {
	var n uint32
	for _, imp := range m.Imports[:importIndex] {
		if imp.Kind == FuncKind {
			n++
		}
	}
	return n
}

// FindExport by name.
func (m *Module) FindExport(name string) (Export, bool) {
	for _, exp := range m.Exports {
		if exp.Name == name {
			return exp, true
		}
	}
	return Export{}, false
}

// Custom section by name.  The first one is returned.
func (m *Module) Custom(name string) (*Custom, bool) {
	for i := range m.Customs {
		if m.Customs[i].Name == name {
			return &m.Customs[i], true
		}
	}
	return nil, false
}

// Clone makes a deep copy.
func (m *Module) Clone() *Module {
	return &Module{
		Types:        cloneEach(m.Types, wa.FuncType.Clone),
		Imports:      cloneEach(m.Imports, cloneImport),
		Funcs:        slices.Clone(m.Funcs),
		Tables:       slices.Clone(m.Tables),
		Memories:     slices.Clone(m.Memories),
		Globals:      cloneEach(m.Globals, cloneGlobal),
		Exports:      slices.Clone(m.Exports),
		StartIndex:   m.StartIndex,
		StartDefined: m.StartDefined,
		Elements:     cloneEach(m.Elements, cloneElement),
		DataCount:    m.DataCount,
		HasDataCount: m.HasDataCount,
		Code:         cloneEach(m.Code, code.Body.Clone),
		Data:         slices.Clone(m.Data),
		Customs:      cloneEach(m.Customs, cloneCustom),
	}
}

func cloneEach[T any](s []T, f func(T) T) []T {
	if s == nil {
		return nil
	}
	c := make([]T, len(s))
	for i, x := range s {
		c[i] = f(x)
	}
	return c
}

func cloneImport(imp Import) Import {
	imp.Desc = slices.Clone(imp.Desc)
	return imp
}

func cloneGlobal(g Global) Global {
	g.Init = cloneExpr(g.Init)
	return g
}

func cloneElement(e Element) Element {
	e.Offset = cloneExpr(e.Offset)
	e.Funcs = slices.Clone(e.Funcs)
	e.Exprs = cloneEach(e.Exprs, cloneExpr)
	return e
}

func cloneCustom(c Custom) Custom {
	c.Data = slices.Clone(c.Data)
	return c
}

func cloneExpr(expr []code.Insn) []code.Insn {
	return cloneEach(expr, code.Insn.Clone)
}
