// Copyright (c) 2019 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errors exports common error types without unnecessary dependencies.
package errors

import (
	"errors"

	internal "gate.computer/meter/internal/errors"
)

// PublicError has a message which doesn't reveal implementation details.
type PublicError = internal.PublicError

// ModuleError indicates that the error is caused by unsupported or malformed
// WebAssembly module.  It may wrap an underlying error.
type ModuleError = internal.ModuleError

// ConfigError indicates that the instrumentation configuration cannot be
// applied to the module, e.g. due to an import or export name collision.
type ConfigError = internal.ConfigError

var (
	// ErrCostOverflow is wrapped when a statically summed metering cost
	// would not fit in a signed 64-bit integer.
	ErrCostOverflow error = internal.ErrCostOverflow

	// ErrDebugFormat is wrapped when a debug section cannot be reconciled
	// and the policy is strict.
	ErrDebugFormat error = internal.ErrDebugFormat
)

// AsModuleError checks if the error chain contains a ModuleError.
func AsModuleError(err error) bool {
	var e ModuleError
	return errors.As(err, &e) && e.ModuleError()
}

// AsConfigError checks if the error chain contains a ConfigError.
func AsConfigError(err error) bool {
	var e ConfigError
	return errors.As(err, &e) && e.ConfigError()
}
