// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gas

import (
	"math/bits"
	"slices"

	"gate.computer/meter/code"
	"gate.computer/meter/internal"
	"gate.computer/meter/internal/errors"
	"gate.computer/meter/rules"
	"gate.computer/meter/wa/opcode"
	"import.name/pan"
)

// Unit is a metering unit: a run of instructions which is always executed
// in full once its first instruction is reached.
type Unit struct {
	Start uint32 // Index of the first instruction.
	Cost  uint64
}

// Partition of a function body.
type Partition struct {
	Units []Unit   // Ordered by start index; units without cost are omitted.
	Grows []uint32 // Indexes of memory.grow instructions which need dynamic charging.
}

type meteredBlock struct {
	start uint32
	cost  uint64
}

type controlBlock struct {
	// Lowest control stack index targeted by a forward branch from within
	// this block.
	lowestForwardTarget int

	active meteredBlock
	loop   bool
}

type counter struct {
	stack     []controlBlock
	finalized []meteredBlock
}

func (c *counter) top() *controlBlock {
	if len(c.stack) == 0 {
		pan.Panic(errors.ModuleErr("instruction outside of function block"))
	}
	return &c.stack[len(c.stack)-1]
}

func (c *counter) begin(cursor uint32, loop bool) {
	c.stack = append(c.stack, controlBlock{
		lowestForwardTarget: len(c.stack),
		active:              meteredBlock{start: cursor},
		loop:                loop,
	})
}

func (c *counter) increment(cost uint64) {
	b := &c.top().active
	sum, carry := bits.Add64(b.cost, cost, 0)
	if carry != 0 {
		pan.Panic(errors.ErrCostOverflow)
	}
	b.cost = sum
}

// finalizeMetered either finalizes the active metered block or merges it
// into the active metered block of the enclosing control block.  A block
// opened by a block instruction shares its start with the enclosing unit.
func (c *counter) finalizeMetered(cursor uint32) {
	top := c.top()
	closing := top.active
	top.active = meteredBlock{start: cursor + 1}

	if n := len(c.stack); n > 1 {
		prev := &c.stack[n-2].active
		if closing.start == prev.start {
			sum, carry := bits.Add64(prev.cost, closing.cost, 0)
			if carry != 0 {
				pan.Panic(errors.ErrCostOverflow)
			}
			prev.cost = sum
			return
		}
	}

	if closing.cost > 0 {
		c.finalized = append(c.finalized, closing)
	}
}

func (c *counter) finalizeControl(cursor uint32) {
	c.finalizeMetered(cursor)

	closing := *c.top()
	c.stack = c.stack[:len(c.stack)-1]
	closingIndex := len(c.stack)

	if len(c.stack) == 0 {
		return
	}

	top := c.top()
	top.lowestForwardTarget = min(top.lowestForwardTarget, closing.lowestForwardTarget)

	// A branch may have left the enclosing block early, so its unit ends
	// here too.
	if closing.lowestForwardTarget < closingIndex {
		c.finalizeMetered(cursor)
	}
}

func (c *counter) branch(cursor uint32, targets []int) {
	c.finalizeMetered(cursor)

	for _, target := range targets {
		if c.stack[target].loop {
			continue
		}
		top := c.top()
		top.lowestForwardTarget = min(top.lowestForwardTarget, target)
	}
}

func (c *counter) target(label uint32) int {
	active := len(c.stack) - 1
	if uint64(label) > uint64(active) {
		pan.Panic(errors.ModuleErrorf("branch target out of range: %d", label))
	}
	return active - int(label)
}

// Options for partitioning.
type Options struct {
	// SplitCalls ends a unit after each call instruction.
	SplitCalls bool
}

// Partition a function body into metering units.  The body is assumed to be
// valid; unbalanced control structure is reported as a module error.
func PartitionBody(body *code.Body, r rules.Rules, opt Options) (p Partition, err error) {
	if internal.DontPanic() {
		defer func() { err = internal.Error(recover()) }()
	}

	p = partition(body, r, opt)
	return
}

func partition(body *code.Body, r rules.Rules, opt Options) (p Partition) {
	grow := r.MemoryGrowCost()
	insns := body.Insns

	var c counter
	c.begin(0, false)

	if lr, ok := r.(rules.LocalRules); ok {
		hi, cost := bits.Mul64(uint64(lr.CallPerLocalCost()), body.NumLocals())
		if hi != 0 {
			pan.Panic(errors.ErrCostOverflow)
		}
		c.increment(cost)
	}

	for i, insn := range insns {
		if len(c.stack) == 0 {
			pan.Panic(errors.ModuleErr("instructions after function end"))
		}

		cursor := uint32(i)
		cost, ok := r.InstructionCost(insn)
		if !ok {
			pan.Panic(errors.ModuleErrorf("instruction %s is forbidden by cost rules", insn.Op))
		}

		switch insn.Op {
		case opcode.Block:
			c.increment(uint64(cost))
			c.begin(c.top().active.start, false)

		case opcode.If:
			c.increment(uint64(cost))
			c.begin(cursor+1, false)

		case opcode.Loop:
			c.increment(uint64(cost))
			c.begin(cursor+1, true)

		case opcode.End:
			c.finalizeControl(cursor)

		case opcode.Else:
			c.finalizeMetered(cursor)

		case opcode.Br, opcode.BrIf, opcode.BrTable:
			c.increment(uint64(cost))
			labels := insn.Targets()
			targets := make([]int, len(labels))
			for j, label := range labels {
				targets[j] = c.target(label)
			}
			c.branch(cursor, targets)

		case opcode.Return:
			c.increment(uint64(cost))
			c.branch(cursor, []int{0})

		case opcode.Call, opcode.CallIndirect:
			c.increment(uint64(cost))
			if opt.SplitCalls {
				c.finalizeMetered(cursor)
			}

		case opcode.GrowMemory:
			c.increment(uint64(cost))
			if !grow.Free() {
				if dynamicGrow(insns, i) {
					p.Grows = append(p.Grows, cursor)
				} else {
					pages := uint64(uint32(insns[i-1].Value))
					hi, cost := bits.Mul64(pages, uint64(grow.PerPage))
					if hi != 0 {
						pan.Panic(errors.ErrCostOverflow)
					}
					c.increment(cost)
				}
			}

		default:
			c.increment(uint64(cost))
		}
	}

	if len(c.stack) != 0 {
		pan.Panic(errors.ModuleErr("function body is not terminated"))
	}

	p.Units = make([]Unit, len(c.finalized))
	for i, b := range c.finalized {
		p.Units[i] = Unit{b.start, b.cost}
	}
	slices.SortStableFunc(p.Units, func(a, b Unit) int {
		return int(int64(a.Start) - int64(b.Start))
	})
	return
}
