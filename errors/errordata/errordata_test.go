// Copyright (c) 2022 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package errordata

import (
	"errors"
	"io"
	"testing"

	werrors "gate.computer/meter/errors"
	internal "gate.computer/meter/internal/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestModuleError(t *testing.T) {
	err := xerrors.Errorf("function 3: %w", internal.WrapModuleError(io.ErrUnexpectedEOF, "truncated body"))

	x := Deconstruct(err)
	require.NotNil(t, x.Public)
	require.Equal(t, "truncated body", x.Public.Error)
	require.True(t, x.Public.Module.UnexpectedEOF)

	r := x.Reconstruct()
	require.Equal(t, err.Error(), r.Error())
	require.True(t, werrors.AsModuleError(r))
	require.True(t, errors.Is(r, io.ErrUnexpectedEOF))
}

func TestConfigError(t *testing.T) {
	x := Deconstruct(internal.ConfigErrorf("import %s.%s has incompatible type", "env", "gas"))
	require.True(t, x.Public.Config)
	require.Empty(t, x.Error)
	require.True(t, werrors.AsConfigError(x.Public.Reconstruct()))
}

func TestSentinel(t *testing.T) {
	x := Deconstruct(xerrors.Errorf("function 0: %w", werrors.ErrCostOverflow))
	require.True(t, x.Public.CostOverflow)
	require.ErrorIs(t, x.Reconstruct(), werrors.ErrCostOverflow)
}

func TestInternal(t *testing.T) {
	x := Deconstruct(errors.New("boom"))
	require.Nil(t, x.Public)
	require.Equal(t, "internal error", x.GetPublic().Error)
	require.Equal(t, "boom", x.Reconstruct().Error())
}
