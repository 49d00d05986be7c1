// Copyright (c) 2016 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package section

import (
	"bytes"
	"sort"

	"gate.computer/meter/binary"
	"gate.computer/meter/internal"
	"gate.computer/meter/internal/errors"
	"gate.computer/meter/internal/loader"
	"import.name/pan"
)

const (
	maxFuncNames  = 1000000 // Industry standard.
	maxLocalNames = 50000   // Industry standard.
)

const CustomName = "name"

const (
	nameSubsectionModuleName byte = iota
	nameSubsectionFunctionNames
	nameSubsectionLocalNames
	nameSubsectionLabelNames
)

// Naming of an index.
type Naming struct {
	Index uint32
	Name  string
}

// NameMap is ordered by index.
type NameMap []Naming

// IndirectNaming associates a name map with a function.
type IndirectNaming struct {
	Index uint32
	Names NameMap
}

type IndirectNameMap []IndirectNaming

// RawSubsection is a subsection which is carried over as-is.
type RawSubsection struct {
	ID   byte
	Data []byte
}

type NameSection struct {
	ModuleName    string
	HasModuleName bool
	FuncNames     NameMap
	LocalNames    IndirectNameMap
	LabelNames    IndirectNameMap
	Other         []RawSubsection
}

// Load "name" section payload (after the section name).
func (ns *NameSection) Load(data []byte) (err error) {
	if internal.DontPanic() {
		defer func() { err = internal.Error(recover()) }()
	}

	load := loader.New(bytes.NewReader(data))
	lastID := -1

	for load.Tell() < int64(len(data)) {
		id := load.Byte()
		if int(id) <= lastID {
			pan.Panic(errors.ModuleErrorf("name subsection %d out of order", id))
		}
		lastID = int(id)

		size := load.Varuint32()
		begin := load.Tell()
		if begin+int64(size) > int64(len(data)) {
			pan.Panic(errors.ModuleErr("name section content exceeded payload length"))
		}

		switch id {
		case nameSubsectionModuleName:
			ns.ModuleName = load.String(load.Varuint32(), "name section: module name")
			ns.HasModuleName = true

		case nameSubsectionFunctionNames:
			ns.FuncNames = loadNameMap(load, maxFuncNames, "function name")

		case nameSubsectionLocalNames:
			ns.LocalNames = loadIndirectNameMap(load, "local name")

		case nameSubsectionLabelNames:
			ns.LabelNames = loadIndirectNameMap(load, "label name")

		default:
			ns.Other = append(ns.Other, RawSubsection{id, load.Bytes(size)})
		}

		if load.Tell()-begin != int64(size) {
			pan.Panic(errors.ModuleErrorf("name subsection %d size mismatch", id))
		}
	}

	return
}

func loadNameMap(load *loader.L, maxCount uint32, what string) NameMap {
	m := NameMap{}
	for range load.Count(maxCount, what) {
		index := load.Varuint32()
		if len(m) > 0 && index <= m[len(m)-1].Index {
			pan.Panic(errors.ModuleErrorf("%s indexes are not in ascending order", what))
		}
		m = append(m, Naming{index, load.String(load.Varuint32(), "name section: "+what)})
	}
	return m
}

func loadIndirectNameMap(load *loader.L, what string) IndirectNameMap {
	m := IndirectNameMap{}
	for range load.Count(maxFuncNames, what+" function") {
		index := load.Varuint32()
		if len(m) > 0 && index <= m[len(m)-1].Index {
			pan.Panic(errors.ModuleErrorf("%s function indexes are not in ascending order", what))
		}
		m = append(m, IndirectNaming{index, loadNameMap(load, maxLocalNames, what)})
	}
	return m
}

// Append "name" section payload (after the section name).
func (ns *NameSection) Append(buf []byte) []byte {
	if ns.HasModuleName {
		buf = appendSubsection(buf, nameSubsectionModuleName, binary.AppendName(nil, ns.ModuleName))
	}
	if ns.FuncNames != nil {
		buf = appendSubsection(buf, nameSubsectionFunctionNames, ns.FuncNames.append(nil))
	}
	if ns.LocalNames != nil {
		buf = appendSubsection(buf, nameSubsectionLocalNames, ns.LocalNames.append(nil))
	}
	if ns.LabelNames != nil {
		buf = appendSubsection(buf, nameSubsectionLabelNames, ns.LabelNames.append(nil))
	}
	for _, sub := range ns.Other {
		buf = appendSubsection(buf, sub.ID, sub.Data)
	}
	return buf
}

func appendSubsection(buf []byte, id byte, content []byte) []byte {
	buf = append(buf, id)
	buf = binary.AppendVaruint32(buf, uint32(len(content)))
	return append(buf, content...)
}

func (m NameMap) append(buf []byte) []byte {
	buf = binary.AppendVaruint32(buf, uint32(len(m)))
	for _, n := range m {
		buf = binary.AppendVaruint32(buf, n.Index)
		buf = binary.AppendName(buf, n.Name)
	}
	return buf
}

func (m IndirectNameMap) append(buf []byte) []byte {
	buf = binary.AppendVaruint32(buf, uint32(len(m)))
	for _, n := range m {
		buf = binary.AppendVaruint32(buf, n.Index)
		buf = n.Names.append(buf)
	}
	return buf
}

// Get name by index.
func (m NameMap) Get(index uint32) (string, bool) {
	i := sort.Search(len(m), func(i int) bool { return m[i].Index >= index })
	if i < len(m) && m[i].Index == index {
		return m[i].Name, true
	}
	return "", false
}

// Get name map by function index.
func (m IndirectNameMap) Get(index uint32) NameMap {
	i := sort.Search(len(m), func(i int) bool { return m[i].Index >= index })
	if i < len(m) && m[i].Index == index {
		return m[i].Names
	}
	return nil
}
