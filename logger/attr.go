// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package logger has log/slog attribute constructors and handler setup.
package logger

import (
	"fmt"
	"log/slog"
)

/*
Log attribute key values.  Generally shouldn't be used directly, use the
appropriate attribute constructor function instead.
*/
const (
	ErrorKey   = "err"
	FuncKey    = "func"
	PassKey    = "pass"
	SectionKey = "section"
	DataKey    = "data"
)

/*
Error adds error to the log

	if err := f(); err != nil {
		log.Warn("calling f", logger.Error(err))
	}
*/
func Error(err error) slog.Attr {
	return slog.Any(ErrorKey, err)
}

// Func is the index of a function in the function index space.
func Func(index uint32) slog.Attr {
	return slog.Uint64(FuncKey, uint64(index))
}

/*
Pass names the instrumentation pass (gas, stack, debug).

This function should be used with logger.With() method to create a
sub-logger for the pass rather than adding it to individual logging calls.
*/
func Pass(name string) slog.Attr {
	return slog.String(PassKey, name)
}

// Section is the name of a custom section.
func Section(name string) slog.Attr {
	return slog.String(SectionKey, name)
}

/*
Data adds additional data field to the message.  Use of anonymous types is
discouraged.
*/
func Data(d any) slog.Attr {
	return slog.Any(DataKey, d)
}

// Bytes is a human-readable byte count.
func Bytes(key string, n int) slog.Attr {
	switch {
	case n < 1<<10:
		return slog.String(key, fmt.Sprintf("%d B", n))
	case n < 1<<20:
		return slog.String(key, fmt.Sprintf("%.1f KiB", float64(n)/(1<<10)))
	default:
		return slog.String(key, fmt.Sprintf("%.1f MiB", float64(n)/(1<<20)))
	}
}
