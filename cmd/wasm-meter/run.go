// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"math"
	"strconv"

	"gate.computer/meter"
	"gate.computer/meter/gas"
	"gate.computer/meter/host"
	"gate.computer/meter/module"
	"gate.computer/meter/wa"
	"github.com/spf13/cobra"
	"github.com/tetratelabs/wazero/api"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/xerrors"
)

func newRunCmd(root *rootConfig) *cobra.Command {
	var (
		flags    instrumentFlags
		entry    string
		budget   uint64
		compiler bool
	)

	cmd := &cobra.Command{
		Use:   "run [flags] input.wasm [arg...]",
		Short: "Instrument and execute a module",
		Long: `Instrument a module and call an exported function with the given arguments.
Arguments and results are converted according to the function signature.
Gas consumption and final stack height are reported.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx, span := startSpan(cmd.Context(), "run", attribute.String("entry", entry))
			defer func() { endSpan(span, err) }()

			wasm, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			ft, err := entryType(wasm, entry)
			if err != nil {
				return err
			}

			params, err := encodeArgs(ft, args[1:])
			if err != nil {
				return err
			}

			out, _, err := instrument(ctx, root.log, &flags, wasm)
			if err != nil {
				return err
			}

			c := host.Config{
				Entry:    entry,
				Args:     params,
				Gas:      budget,
				Module:   flags.GasModule,
				Field:    flags.GasField,
				Compiler: compiler,
			}
			if !flags.NoGas && flags.Strategy == meter.MutableGlobal.String() {
				c.Global = flags.GasGlobal
				if c.Global == "" {
					c.Global = gas.DefaultGlobal
				}
			}
			if flags.StackLimit != 0 {
				c.StackGlobal = flags.StackGlobal
			}

			res, runErr := host.Run(ctx, out, c)
			if res == nil {
				return runErr
			}

			w := cmd.OutOrStdout()
			for i, t := range ft.Results {
				if runErr == nil && i < len(res.Values) {
					fmt.Fprintf(w, "%s\n", valueColor.Sprint(decodeValue(t, res.Values[i])))
				}
			}
			if !flags.NoGas {
				fmt.Fprintf(w, "%s %d/%d\n", nameColor.Sprint("gas"), res.GasUsed, budget)
			}
			if c.StackGlobal != "" {
				fmt.Fprintf(w, "%s %d/%d\n", nameColor.Sprint("stack"), res.StackHeight, flags.StackLimit)
			}

			if xerrors.Is(runErr, host.ErrOutOfGas) {
				printError(cmd.ErrOrStderr(), "out of gas")
			}
			return runErr
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().StringVarP(&entry, "entry", "e", "main", "exported function to call")
	cmd.Flags().Uint64Var(&budget, "gas", 1000000, "gas budget")
	cmd.Flags().BoolVar(&compiler, "compiler", false, "use wazero's compiler instead of the interpreter")

	return cmd
}

func entryType(wasm []byte, entry string) (wa.FuncType, error) {
	m, err := module.LoadBytes(wasm)
	if err != nil {
		return wa.FuncType{}, err
	}

	exp, found := m.FindExport(entry)
	if !found || exp.Kind != module.FuncKind {
		return wa.FuncType{}, xerrors.Errorf("function %q is not exported", entry)
	}

	ft, ok := m.FuncType(exp.Index)
	if !ok {
		return wa.FuncType{}, xerrors.Errorf("function %q has invalid type", entry)
	}
	return ft, nil
}

func encodeArgs(ft wa.FuncType, args []string) ([]uint64, error) {
	if len(args) != len(ft.Params) {
		return nil, xerrors.Errorf("function type is %s but %d arguments were given", ft, len(args))
	}

	values := make([]uint64, len(args))

	for i, s := range args {
		var err error

		switch ft.Params[i] {
		case wa.I32:
			var x int64
			x, err = strconv.ParseInt(s, 0, 32)
			values[i] = api.EncodeI32(int32(x))

		case wa.I64:
			var x int64
			x, err = strconv.ParseInt(s, 0, 64)
			values[i] = api.EncodeI64(x)

		case wa.F32:
			var x float64
			x, err = strconv.ParseFloat(s, 32)
			values[i] = api.EncodeF32(float32(x))

		case wa.F64:
			var x float64
			x, err = strconv.ParseFloat(s, 64)
			values[i] = api.EncodeF64(x)

		default:
			return nil, xerrors.Errorf("argument %d: unsupported type %s", i, ft.Params[i])
		}

		if err != nil {
			return nil, xerrors.Errorf("argument %d: %w", i, err)
		}
	}

	return values, nil
}

func decodeValue(t wa.Type, x uint64) string {
	switch t {
	case wa.I32:
		return strconv.FormatInt(int64(api.DecodeI32(x)), 10)
	case wa.I64:
		return strconv.FormatInt(int64(x), 10)
	case wa.F32:
		return strconv.FormatFloat(float64(api.DecodeF32(x)), 'g', -1, 32)
	case wa.F64:
		return strconv.FormatFloat(math.Float64frombits(x), 'g', -1, 64)
	default:
		return fmt.Sprintf("0x%x", x)
	}
}
