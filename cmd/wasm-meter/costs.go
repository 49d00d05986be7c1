// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"

	"gate.computer/meter/rules"
	"gate.computer/meter/wa/opcode"
	"github.com/spf13/cobra"
)

func newCostsCmd(root *rootConfig) *cobra.Command {
	var flags instrumentFlags

	cmd := &cobra.Command{
		Use:   "costs [flags] [input.wasm]",
		Short: "Show the cost table or per-function costs of a module",
		Long: `Without arguments, the effective cost table is written as YAML.  It can be
edited and passed back with --rules.

With a module argument, the module is instrumented in memory and the
metering units, static costs and stack contributions of its functions are
listed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return writeTable(cmd, flags.RulesFile)
			}

			wasm, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			_, report, err := instrument(cmd.Context(), root.log, &flags, wasm)
			if err != nil {
				return err
			}

			if len(report.Funcs) == 0 {
				printWarning(cmd.ErrOrStderr(), "module defines no functions")
			}
			printReport(cmd.OutOrStdout(), args[0], report, true)
			return nil
		},
	}

	flags.register(cmd.Flags())

	return cmd
}

func writeTable(cmd *cobra.Command, filename string) error {
	var table *rules.Table

	if filename != "" {
		f, err := os.Open(filename)
		if err != nil {
			return err
		}
		defer f.Close()

		if table, err = rules.LoadTable(f); err != nil {
			return err
		}
	} else {
		table = defaultTable()
	}

	return table.WriteYAML(cmd.OutOrStdout())
}

// defaultTable is equivalent to rules.Default().
func defaultTable() *rules.Table {
	return &rules.Table{
		Default:   1,
		Costs:     map[opcode.Opcode]uint32{},
		Forbidden: map[opcode.Opcode]bool{},
		Local:     1,
	}
}
