// Copyright (c) 2018 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package section contains WebAssembly section identifiers and custom section
// formats.
package section

import (
	"fmt"
)

type ID byte

const (
	Custom    = ID(0)
	Type      = ID(1)
	Import    = ID(2)
	Function  = ID(3)
	Table     = ID(4)
	Memory    = ID(5)
	Global    = ID(6)
	Export    = ID(7)
	Start     = ID(8)
	Element   = ID(9)
	Code      = ID(10)
	Data      = ID(11)
	DataCount = ID(12)

	NumSections = 13
)

// Order lists standard sections in the order they must appear in a module.
var Order = [...]ID{Type, Import, Function, Table, Memory, Global, Export, Start, Element, DataCount, Code, Data}

var rank [NumSections]int

func init() {
	for i, id := range Order {
		rank[id] = i + 1
	}
}

// Rank of a standard section in Order (1-based), or 0 for custom or unknown
// sections.
func (id ID) Rank() int {
	if int(id) < len(rank) {
		return rank[id]
	}
	return 0
}

var names = [NumSections]string{
	Custom:    "custom",
	Type:      "type",
	Import:    "import",
	Function:  "function",
	Table:     "table",
	Memory:    "memory",
	Global:    "global",
	Export:    "export",
	Start:     "start",
	Element:   "element",
	Code:      "code",
	Data:      "data",
	DataCount: "datacount",
}

func (id ID) String() string {
	if int(id) < len(names) {
		return names[id]
	}
	return fmt.Sprintf("section 0x%02x", byte(id))
}
