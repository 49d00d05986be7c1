// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package code

import (
	"slices"
)

// Shift records that Count instructions were inserted before the instruction
// which was originally at Index.
type Shift struct {
	Index uint32
	Count uint32
}

// Shifts of a function body, ordered by index.
type Shifts []Shift

// Map an original instruction index to its index in the rewritten body.
func (s Shifts) Map(index uint32) uint32 {
	n := index
	for _, x := range s {
		if x.Index > index {
			break
		}
		n += x.Count
	}
	return n
}

// Unmap a rewritten instruction index to the smallest original index which
// maps at or after it.
func (s Shifts) Unmap(index uint32) uint32 {
	var lo, sum uint32

	for _, x := range s {
		if index <= lo+sum {
			return lo
		}
		if index-sum < x.Index {
			return index - sum
		}
		sum += x.Count
		lo = x.Index
	}

	if index <= lo+sum {
		return lo
	}
	return index - sum
}

// Inserted instruction count.
func (s Shifts) Inserted() (n uint32) {
	for _, x := range s {
		n += x.Count
	}
	return
}

// Compose shifts of two consecutive rewrites into shifts relative to the
// original body.
func Compose(first, second Shifts) Shifts {
	if len(second) == 0 {
		return first
	}

	all := slices.Clone(first)
	for _, x := range second {
		all = append(all, Shift{first.Unmap(x.Index), x.Count})
	}
	slices.SortStableFunc(all, func(a, b Shift) int {
		return int(int64(a.Index) - int64(b.Index))
	})

	var out Shifts
	for _, x := range all {
		if n := len(out); n > 0 && out[n-1].Index == x.Index {
			out[n-1].Count += x.Count
		} else if x.Count > 0 {
			out = append(out, x)
		}
	}
	return out
}
