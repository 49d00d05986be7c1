// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package code

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShiftsMap(t *testing.T) {
	s := Shifts{{0, 2}, {3, 1}, {5, 4}}

	for orig, expect := range []uint32{2, 3, 4, 6, 7, 12, 13} {
		require.Equal(t, expect, s.Map(uint32(orig)), "index %d", orig)
	}
	require.Equal(t, uint32(7), s.Inserted())
}

func TestShiftsUnmap(t *testing.T) {
	s := Shifts{{0, 2}, {3, 1}, {5, 4}}

	for index, expect := range []uint32{0, 0, 0, 1, 2, 3, 3, 4, 5, 5, 5, 5, 5, 6} {
		require.Equal(t, expect, s.Unmap(uint32(index)), "index %d", index)
	}
}

func TestCompose(t *testing.T) {
	// Original: a b c d
	// First:    X a b Y c d
	// Second:   Z X a b Y c W d
	first := Shifts{{0, 1}, {2, 1}}
	second := Shifts{{0, 1}, {5, 1}}

	c := Compose(first, second)
	require.Equal(t, Shifts{{0, 2}, {2, 1}, {3, 1}}, c)

	for orig := uint32(0); orig < 4; orig++ {
		require.Equal(t, second.Map(first.Map(orig)), c.Map(orig))
	}
}

func TestComposeInsertedTarget(t *testing.T) {
	// Second pass inserts before an instruction which was inserted by the
	// first pass; it belongs to the following original instruction.
	first := Shifts{{1, 3}}
	second := Shifts{{2, 2}}

	c := Compose(first, second)
	require.Equal(t, Shifts{{1, 5}}, c)
	require.Equal(t, uint32(6), c.Map(1))
	require.Equal(t, uint32(0), c.Map(0))
}
