// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package section

import (
	"testing"

	werrors "gate.computer/meter/errors"
	"github.com/stretchr/testify/require"
)

func TestNameSection(t *testing.T) {
	ns := NameSection{
		ModuleName:    "test",
		HasModuleName: true,
		FuncNames:     NameMap{{0, "env.gas"}, {1, "main"}, {4, "helper"}},
		LocalNames:    IndirectNameMap{{1, NameMap{{0, "x"}, {2, "y"}}}},
		LabelNames:    IndirectNameMap{{4, NameMap{{0, "outer"}}}},
		Other:         []RawSubsection{{7, []byte{0}}},
	}

	data := ns.Append(nil)

	var loaded NameSection
	require.NoError(t, loaded.Load(data))
	require.Equal(t, ns, loaded)
	require.Equal(t, data, loaded.Append(nil))

	name, ok := loaded.FuncNames.Get(4)
	require.True(t, ok)
	require.Equal(t, "helper", name)

	_, ok = loaded.FuncNames.Get(2)
	require.False(t, ok)

	y, _ := loaded.LocalNames.Get(1).Get(2)
	require.Equal(t, "y", y)
}

func TestNameSectionErrors(t *testing.T) {
	for name, data := range map[string][]byte{
		"order":    {1, 1, 0, 0, 1, 0},
		"size":     {0, 5, 1, 'a'},
		"unsorted": {1, 7, 2, 1, 1, 'a', 0, 1, 'b'},
		"utf8":     {0, 2, 1, 0xff},
	} {
		t.Run(name, func(t *testing.T) {
			var ns NameSection
			err := ns.Load(data)
			require.Error(t, err)
			require.True(t, werrors.AsModuleError(err), "%v", err)
		})
	}
}

func TestCustom(t *testing.T) {
	buf := AppendCustom(nil, "abc", []byte{1, 2})
	require.Equal(t, []byte{0, 6, 3, 'a', 'b', 'c', 1, 2}, buf)

	name, data, err := SplitCustom(buf[2:])
	require.NoError(t, err)
	require.Equal(t, "abc", name)
	require.Equal(t, []byte{1, 2}, data)
}
