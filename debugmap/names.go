// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package debugmap

import (
	"gate.computer/meter/section"
)

// Names format is the standard "name" section.  Function indexes are
// renumbered, and label names are re-indexed since injected if instructions
// change the ordinals of the original blocks.
type Names struct{}

func (Names) Name() string { return section.CustomName }

func (f Names) Rewrite(data []byte, r Relocator) ([]byte, error) {
	var ns section.NameSection
	if err := ns.Load(data); err != nil {
		return nil, formatError(f, err)
	}

	for i := range ns.FuncNames {
		ns.FuncNames[i].Index = r.Func(ns.FuncNames[i].Index)
	}
	for i := range ns.LocalNames {
		ns.LocalNames[i].Index = r.Func(ns.LocalNames[i].Index)
	}

	for i := range ns.LabelNames {
		fn := &ns.LabelNames[i]

		for j := range fn.Names {
			label, ok := r.Label(fn.Index, fn.Names[j].Index)
			if !ok {
				return nil, formatError(f, labelError{fn.Index, fn.Names[j].Index})
			}
			fn.Names[j].Index = label
		}

		fn.Index = r.Func(fn.Index)
	}

	return ns.Append(nil), nil
}

type labelError struct {
	funcIndex uint32
	label     uint32
}

func (e labelError) Error() string {
	return "function " + itoa(e.funcIndex) + " has no label " + itoa(e.label)
}
