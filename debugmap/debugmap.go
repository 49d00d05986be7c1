// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package debugmap reconciles debug information custom sections with
// instrumented function bodies.
package debugmap

import (
	"log/slog"

	"gate.computer/meter/internal/errors"
	"gate.computer/meter/logger"
	"gate.computer/meter/module"
	"golang.org/x/xerrors"
)

// Policy for debug sections which cannot be reconciled.
type Policy int

const (
	// Strict fails instrumentation.
	Strict Policy = iota

	// Skip logs a warning and keeps the section unchanged.  Its references
	// may point to wrong instructions.
	Skip
)

func (p Policy) String() string {
	switch p {
	case Strict:
		return "strict"
	case Skip:
		return "skip"
	}
	return "invalid"
}

// ParsePolicy name.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "strict":
		return Strict, nil
	case "skip":
		return Skip, nil
	}
	return 0, errors.ConfigErrorf("unknown debug policy: %q", s)
}

// Format of a custom section which refers to functions or instructions.
type Format interface {
	// Name of the custom section.
	Name() string

	// Rewrite section data.  Errors caused by unexpected data should wrap
	// errors.ErrDebugFormat.
	Rewrite(data []byte, r Relocator) ([]byte, error)
}

// DefaultFormats which are reconciled when nothing else is configured.
func DefaultFormats() []Format {
	return []Format{Names{}, InsnMap{}}
}

func formatError(format Format, cause error) error {
	return xerrors.Errorf("%s section: %v: %w", format.Name(), cause, errors.ErrDebugFormat)
}

// Reconcile the custom sections of m which have one of the formats.  Other
// custom sections are left alone.
func Reconcile(m *module.Module, formats []Format, r Relocator, policy Policy, log *slog.Logger) error {
	log = logger.OrDiscard(log)

	for i := range m.Customs {
		c := &m.Customs[i]

		for _, f := range formats {
			if f.Name() != c.Name {
				continue
			}

			data, err := f.Rewrite(c.Data, r)
			if err != nil {
				if policy == Skip && xerrors.Is(err, errors.ErrDebugFormat) {
					log.Warn("debug section not reconciled", logger.Section(c.Name), logger.Error(err))
					break
				}
				return err
			}

			c.Data = data
			log.Debug("debug section reconciled", logger.Section(c.Name), logger.Bytes("size", len(data)))
			break
		}
	}

	return nil
}
