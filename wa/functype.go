// Copyright (c) 2016 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wa

import (
	"slices"
)

type FuncType struct {
	Params  []Type
	Results []Type
}

func (f FuncType) Equal(other FuncType) bool {
	return slices.Equal(f.Params, other.Params) && slices.Equal(f.Results, other.Results)
}

func (f FuncType) Clone() FuncType {
	return FuncType{
		Params:  slices.Clone(f.Params),
		Results: slices.Clone(f.Results),
	}
}

func (f FuncType) String() (s string) {
	s = "("
	for i, t := range f.Params {
		if i > 0 {
			s += ", "
		}
		s += t.String()
	}
	s += ")"

	switch len(f.Results) {
	case 0:
	case 1:
		s += " " + f.Results[0].String()
	default:
		s += " ("
		for i, t := range f.Results {
			if i > 0 {
				s += ", "
			}
			s += t.String()
		}
		s += ")"
	}

	return
}
