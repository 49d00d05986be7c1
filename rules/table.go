// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rules

import (
	"io"
	"slices"

	"gate.computer/meter/code"
	"gate.computer/meter/internal/errors"
	"gate.computer/meter/wa/opcode"
	"gopkg.in/yaml.v3"
)

// Table of per-opcode costs.
type Table struct {
	Default   uint32
	Costs     map[opcode.Opcode]uint32
	Forbidden map[opcode.Opcode]bool
	Grow      MemoryGrowCost
	Local     uint32
}

var _ LocalRules = (*Table)(nil)

func (t *Table) InstructionCost(insn code.Insn) (uint32, bool) {
	if t.Forbidden[insn.Op] {
		return 0, false
	}
	if c, found := t.Costs[insn.Op]; found {
		return c, true
	}
	return t.Default, true
}

func (t *Table) MemoryGrowCost() MemoryGrowCost {
	return t.Grow
}

func (t *Table) CallPerLocalCost() uint32 {
	return t.Local
}

// tableFile is the YAML representation.  Opcodes are identified by their
// text format mnemonics.
type tableFile struct {
	Default    *uint32           `yaml:"default"`
	Costs      map[string]uint32 `yaml:"costs,omitempty"`
	Forbidden  []string          `yaml:"forbidden,omitempty"`
	MemoryGrow uint32            `yaml:"memory_grow_per_page,omitempty"`
	Local      uint32            `yaml:"per_local,omitempty"`
}

// LoadTable from YAML.  Default cost is 1 unless specified.
func LoadTable(r io.Reader) (*Table, error) {
	var f tableFile

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, errors.ConfigErrorf("cost table: %v", err)
	}

	t := &Table{
		Default:   1,
		Costs:     make(map[opcode.Opcode]uint32),
		Forbidden: make(map[opcode.Opcode]bool),
		Grow:      MemoryGrowCost{f.MemoryGrow},
		Local:     f.Local,
	}
	if f.Default != nil {
		t.Default = *f.Default
	}

	for name, cost := range f.Costs {
		ops := opcode.Lookup(name)
		if len(ops) == 0 {
			return nil, errors.ConfigErrorf("cost table: unknown instruction: %q", name)
		}
		for _, op := range ops {
			t.Costs[op] = cost
		}
	}

	for _, name := range f.Forbidden {
		ops := opcode.Lookup(name)
		if len(ops) == 0 {
			return nil, errors.ConfigErrorf("cost table: unknown instruction: %q", name)
		}
		for _, op := range ops {
			t.Forbidden[op] = true
		}
	}

	return t, nil
}

// WriteYAML encodes the table with sorted keys.
func (t *Table) WriteYAML(w io.Writer) error {
	def := t.Default
	f := tableFile{
		Default:    &def,
		Costs:      make(map[string]uint32),
		MemoryGrow: t.Grow.PerPage,
		Local:      t.Local,
	}
	for op, cost := range t.Costs {
		f.Costs[op.String()] = cost
	}
	for op, forbidden := range t.Forbidden {
		if forbidden {
			f.Forbidden = append(f.Forbidden, op.String())
		}
	}
	slices.Sort(f.Forbidden)
	f.Forbidden = slices.Compact(f.Forbidden)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&f); err != nil {
		return err
	}
	return enc.Close()
}
