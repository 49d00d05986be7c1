// Copyright (c) 2022 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errordata helps with error serialization.
package errordata

import (
	"errors"
	"io"

	werrors "gate.computer/meter/errors"
)

// Internal details of an error.
type Internal struct {
	Error  string  `json:"error,omitempty" cbor:"1,keyasint,omitempty"` // Omitted if same as public error.
	Public *Public `json:"public,omitempty" cbor:"2,keyasint,omitempty"`
}

// Deconstruct an error on best-effort basis.
func Deconstruct(err error) *Internal {
	if pub := deconstructModule(err); pub != nil {
		return newInternalWithPublic(err, pub)
	}
	if pub := deconstructConfig(err); pub != nil {
		return newInternalWithPublic(err, pub)
	}
	if pub := deconstructPublic(err); pub != nil { // Must be last.
		return newInternalWithPublic(err, pub)
	}

	return &Internal{
		Error: err.Error(),
	}
}

func newInternalWithPublic(err error, pub *Public) *Internal {
	x := &Internal{
		Public: pub,
	}
	if s := err.Error(); s != pub.Error {
		x.Error = s
	}
	return x
}

// GetPublic representation which is well-formed even if there are no public
// details.
func (x *Internal) GetPublic() *Public {
	if x.Public != nil {
		return x.Public
	}

	return &Public{
		Error: "internal error",
	}
}

// Reconstruct an error.
func (x *Internal) Reconstruct() error {
	if x.Public == nil {
		return errors.New(x.Error)
	}

	s := x.Public.Error
	if x.Error != "" {
		s = x.Error
	}
	return reconstructError(s, x.Public)
}

// Public details of an error.
type Public struct {
	Error        string  `json:"error" cbor:"1,keyasint"`
	Module       *Module `json:"module,omitempty" cbor:"2,keyasint,omitempty"`
	Config       bool    `json:"config,omitempty" cbor:"3,keyasint,omitempty"`
	CostOverflow bool    `json:"cost_overflow,omitempty" cbor:"4,keyasint,omitempty"`
	DebugFormat  bool    `json:"debug_format,omitempty" cbor:"5,keyasint,omitempty"`
}

func deconstructPublic(err error) *Public {
	var e werrors.PublicError
	if !errors.As(err, &e) {
		return nil
	}

	return &Public{
		Error:        e.PublicError(),
		CostOverflow: errors.Is(err, werrors.ErrCostOverflow),
		DebugFormat:  errors.Is(err, werrors.ErrDebugFormat),
	}
}

// Reconstruct an error without internal details.
func (x *Public) Reconstruct() error {
	return reconstructError(x.Error, x)
}

// Module error details.
type Module struct {
	UnexpectedEOF bool `json:"unexpected_eof,omitempty" cbor:"1,keyasint,omitempty"`
}

func deconstructModule(err error) *Public {
	var e werrors.ModuleError
	if !errors.As(err, &e) {
		return nil
	}

	return &Public{
		Error: e.PublicError(),
		Module: &Module{
			UnexpectedEOF: errors.Is(err, io.ErrUnexpectedEOF),
		},
	}
}

func deconstructConfig(err error) *Public {
	var e werrors.ConfigError
	if !errors.As(err, &e) {
		return nil
	}

	return &Public{
		Error:  e.PublicError(),
		Config: true,
	}
}

func reconstructError(s string, x *Public) error {
	switch {
	case x.Module != nil:
		return newModuleError(s, x)
	case x.Config:
		return &configError{publicError{s: s, public: x.Error}}
	case x.CostOverflow:
		return &publicError{s: s, public: x.Error, wrapped: werrors.ErrCostOverflow}
	case x.DebugFormat:
		return &publicError{s: s, public: x.Error, wrapped: werrors.ErrDebugFormat}
	default:
		return &publicError{s: s, public: x.Error}
	}
}

type publicError struct {
	s       string
	public  string
	wrapped error
}

var _ werrors.PublicError = (*publicError)(nil)

func (e *publicError) Error() string       { return e.s }
func (e *publicError) PublicError() string { return e.public }
func (e *publicError) Unwrap() error       { return e.wrapped }

type moduleError struct {
	publicError
}

func (*moduleError) ModuleError() bool { return true }

var _ werrors.ModuleError = (*moduleError)(nil)

func newModuleError(s string, x *Public) error {
	e := &moduleError{publicError{
		s:      s,
		public: x.Error,
	}}
	if x.Module.UnexpectedEOF {
		e.wrapped = io.ErrUnexpectedEOF
	}
	return e
}

type configError struct {
	publicError
}

func (*configError) ConfigError() bool { return true }

var _ werrors.ConfigError = (*configError)(nil)
