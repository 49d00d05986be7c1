// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormatTimeAttr(t *testing.T) {
	t.Run("empty format string", func(t *testing.T) {
		require.Nil(t, formatTimeAttr(""))
	})

	t.Run("format: none", func(t *testing.T) {
		f := formatTimeAttr("none")
		require.NotNil(t, f)
		now := time.Now()

		require.Equal(t, slog.Attr{}, f(nil, slog.Time(slog.TimeKey, now)))
		require.True(t, f(nil, slog.Time("foo", now)).Equal(slog.Time("foo", now)))
	})

	t.Run("format: layout", func(t *testing.T) {
		f := formatTimeAttr("15:04:05")
		require.NotNil(t, f)

		require.Equal(t, slog.Time(slog.TimeKey, time.Time{}), f(nil, slog.Time(slog.TimeKey, time.Time{})))

		ts := time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC)
		require.Equal(t, slog.String(slog.TimeKey, "12:30:45"), f(nil, slog.Time(slog.TimeKey, ts)))
	})
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer

	log, err := New(&buf, Config{Level: "debug", Format: "json", TimeFormat: "none"})
	require.NoError(t, err)

	log.With(Pass("gas")).Debug("rewrote", Func(3), Error(errors.New("oops")))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "rewrote", rec[slog.MessageKey])
	require.Equal(t, "gas", rec[PassKey])
	require.Equal(t, float64(3), rec[FuncKey])
	require.Equal(t, "oops", rec[ErrorKey])
	require.NotContains(t, rec, slog.TimeKey)
}

func TestNewErrors(t *testing.T) {
	_, err := New(nil, Config{Level: "loud"})
	require.Error(t, err)

	_, err = New(nil, Config{Format: "xml"})
	require.Error(t, err)
}

func TestDiscard(t *testing.T) {
	require.False(t, OrDiscard(nil).Enabled(context.Background(), slog.LevelError))

	l := slog.Default()
	require.Same(t, l, OrDiscard(l))
}

func TestBytes(t *testing.T) {
	require.Equal(t, "12 B", Bytes("size", 12).Value.String())
	require.Equal(t, "2.0 KiB", Bytes("size", 2048).Value.String())
	require.Equal(t, "1.5 MiB", Bytes("size", 3<<19).Value.String())
}
