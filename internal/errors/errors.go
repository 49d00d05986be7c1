// Copyright (c) 2019 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package errors

import (
	"fmt"
)

type PublicError interface {
	error
	PublicError() string
}

type ModuleError interface {
	PublicError
	ModuleError() bool
}

type ConfigError interface {
	PublicError
	ConfigError() bool
}

type moduleError struct {
	text  string
	cause error
}

func ModuleErr(text string) error {
	return &moduleError{text, nil}
}

func ModuleErrorf(format string, args ...any) error {
	return &moduleError{fmt.Sprintf(format, args...), nil}
}

func WrapModuleError(cause error, text string) error {
	return &moduleError{text, cause}
}

func (e *moduleError) Error() string       { return e.text }
func (e *moduleError) PublicError() string { return e.text }
func (e *moduleError) ModuleError() bool   { return true }
func (e *moduleError) Unwrap() error       { return e.cause }

type configError struct {
	text string
}

func ConfigErr(text string) error {
	return &configError{text}
}

func ConfigErrorf(format string, args ...any) error {
	return &configError{fmt.Sprintf(format, args...)}
}

func (e *configError) Error() string       { return e.text }
func (e *configError) PublicError() string { return e.text }
func (e *configError) ConfigError() bool   { return true }

type sentinel string

func (s sentinel) Error() string       { return string(s) }
func (s sentinel) PublicError() string { return string(s) }

const (
	ErrCostOverflow = sentinel("cost does not fit in 63 bits")
	ErrDebugFormat  = sentinel("unrecognized debug section format")
)
