// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package module

import (
	"io"

	"gate.computer/meter/binary"
	"gate.computer/meter/code"
	"gate.computer/meter/section"
)

// Bytes encodes the module.  Standard sections are emitted in canonical
// order; custom sections keep their position relative to the standard
// sections.
func (m *Module) Bytes() []byte {
	buf := binary.AppendUint32(nil, MagicNumber)
	buf = binary.AppendUint32(buf, Version)
	buf = m.appendCustoms(buf, section.Custom)

	for _, id := range section.Order {
		if payload, ok := m.appendPayload(nil, id); ok {
			buf = binary.AppendSection(buf, byte(id), payload)
		}
		buf = m.appendCustoms(buf, id)
	}

	return buf
}

// WriteTo implements io.WriterTo.
func (m *Module) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(m.Bytes())
	return int64(n), err
}

func (m *Module) appendCustoms(buf []byte, after section.ID) []byte {
	for _, c := range m.Customs {
		if c.After == after {
			buf = section.AppendCustom(buf, c.Name, c.Data)
		}
	}
	return buf
}

func (m *Module) appendPayload(buf []byte, id section.ID) ([]byte, bool) {
	switch id {
	case section.Type:
		if len(m.Types) == 0 {
			return nil, false
		}
		buf = binary.AppendVaruint32(buf, uint32(len(m.Types)))
		for _, ft := range m.Types {
			buf = append(buf, 0x60)
			buf = binary.AppendVaruint32(buf, uint32(len(ft.Params)))
			for _, t := range ft.Params {
				buf = append(buf, t.Encode())
			}
			buf = binary.AppendVaruint32(buf, uint32(len(ft.Results)))
			for _, t := range ft.Results {
				buf = append(buf, t.Encode())
			}
		}

	case section.Import:
		if len(m.Imports) == 0 {
			return nil, false
		}
		buf = binary.AppendVaruint32(buf, uint32(len(m.Imports)))
		for _, imp := range m.Imports {
			buf = binary.AppendName(buf, imp.Module)
			buf = binary.AppendName(buf, imp.Field)
			buf = append(buf, byte(imp.Kind))
			switch imp.Kind {
			case FuncKind:
				buf = binary.AppendVaruint32(buf, imp.Type)
			case TableKind, MemoryKind:
				buf = append(buf, imp.Desc...)
			case GlobalKind:
				enc := imp.Global.Encode()
				buf = append(buf, enc[:]...)
			}
		}

	case section.Function:
		if len(m.Funcs) == 0 {
			return nil, false
		}
		buf = binary.AppendVaruint32(buf, uint32(len(m.Funcs)))
		for _, i := range m.Funcs {
			buf = binary.AppendVaruint32(buf, i)
		}

	case section.Table:
		if m.Tables == nil {
			return nil, false
		}
		buf = append(buf, m.Tables...)

	case section.Memory:
		if m.Memories == nil {
			return nil, false
		}
		buf = append(buf, m.Memories...)

	case section.Global:
		if len(m.Globals) == 0 {
			return nil, false
		}
		buf = binary.AppendVaruint32(buf, uint32(len(m.Globals)))
		for _, g := range m.Globals {
			enc := g.Type.Encode()
			buf = append(buf, enc[:]...)
			buf = code.AppendInsns(buf, g.Init)
		}

	case section.Export:
		if len(m.Exports) == 0 {
			return nil, false
		}
		buf = binary.AppendVaruint32(buf, uint32(len(m.Exports)))
		for _, e := range m.Exports {
			buf = binary.AppendName(buf, e.Name)
			buf = append(buf, byte(e.Kind))
			buf = binary.AppendVaruint32(buf, e.Index)
		}

	case section.Start:
		if !m.StartDefined {
			return nil, false
		}
		buf = binary.AppendVaruint32(buf, m.StartIndex)

	case section.Element:
		if len(m.Elements) == 0 {
			return nil, false
		}
		buf = binary.AppendVaruint32(buf, uint32(len(m.Elements)))
		for i := range m.Elements {
			buf = m.Elements[i].append(buf)
		}

	case section.DataCount:
		if !m.HasDataCount {
			return nil, false
		}
		buf = binary.AppendVaruint32(buf, m.DataCount)

	case section.Code:
		if len(m.Code) == 0 {
			return nil, false
		}
		buf = binary.AppendVaruint32(buf, uint32(len(m.Code)))
		for i := range m.Code {
			body := m.Code[i].Append(nil)
			buf = binary.AppendVaruint32(buf, uint32(len(body)))
			buf = append(buf, body...)
		}

	case section.Data:
		if m.Data == nil {
			return nil, false
		}
		buf = append(buf, m.Data...)

	default:
		return nil, false
	}

	return buf, true
}

func (e *Element) append(buf []byte) []byte {
	buf = binary.AppendVaruint32(buf, e.Flags)

	if e.Flags&1 == 0 {
		if e.Flags&2 != 0 {
			buf = binary.AppendVaruint32(buf, e.Table)
		}
		buf = code.AppendInsns(buf, e.Offset)
	}

	if e.Flags&3 != 0 {
		buf = append(buf, e.Kind)
	}

	if e.HasExprs() {
		buf = binary.AppendVaruint32(buf, uint32(len(e.Exprs)))
		for _, expr := range e.Exprs {
			buf = code.AppendInsns(buf, expr)
		}
	} else {
		buf = binary.AppendVaruint32(buf, uint32(len(e.Funcs)))
		for _, f := range e.Funcs {
			buf = binary.AppendVaruint32(buf, f)
		}
	}

	return buf
}
