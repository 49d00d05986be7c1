// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"gate.computer/meter"
	"gate.computer/meter/debugmap"
	"gate.computer/meter/rules"
	"github.com/spf13/pflag"
)

// instrumentFlags are shared by the commands which instrument modules.
type instrumentFlags struct {
	NoGas          bool
	Strategy       string
	RulesFile      string
	GasModule      string
	GasField       string
	GasGlobal      string
	ChargeOverhead bool
	SplitCalls     bool
	StackLimit     uint32
	StackGlobal    string
	DebugPolicy    string
	ExportGlobals  string
	Parallelism    int
	CacheFile      string
}

func (f *instrumentFlags) register(flags *pflag.FlagSet) {
	flags.BoolVar(&f.NoGas, "no-gas", false, "disable gas metering")
	flags.StringVar(&f.Strategy, "gas-strategy", "host", "gas charging strategy: host or global")
	flags.StringVar(&f.RulesFile, "rules", "", "YAML cost table (default charges 1 per instruction and local)")
	flags.StringVar(&f.GasModule, "gas-module", "", "import module name of the charging function (default \"env\")")
	flags.StringVar(&f.GasField, "gas-field", "", "import field name of the charging function (default \"gas\")")
	flags.StringVar(&f.GasGlobal, "gas-global", "", "export name of the gas global (default \"gas_left\")")
	flags.BoolVar(&f.ChargeOverhead, "charge-overhead", false, "include the cost of global charging instructions")
	flags.BoolVar(&f.SplitCalls, "split-calls", false, "end metering units after calls")
	flags.Uint32Var(&f.StackLimit, "stack-limit", 0, "stack height limit; 0 disables stack instrumentation")
	flags.StringVar(&f.StackGlobal, "stack-global", "", "export name of the stack height global")
	flags.StringVar(&f.DebugPolicy, "debug-policy", "strict", "handling of unreconcilable debug sections: strict or skip")
	flags.StringVar(&f.ExportGlobals, "export-globals", "", "export the module's mutable globals with this name prefix")
	flags.IntVar(&f.Parallelism, "parallelism", 0, "number of concurrently instrumented functions (default GOMAXPROCS)")
	flags.StringVar(&f.CacheFile, "cache", "", "cache database file")
}

// config for the instrumentation.  The fingerprint identifies the settings
// which affect the output.
func (f *instrumentFlags) config(log *slog.Logger) (meter.Config, []byte, error) {
	var fingerprint bytes.Buffer

	policy, err := debugmap.ParsePolicy(f.DebugPolicy)
	if err != nil {
		return meter.Config{}, nil, err
	}

	c := meter.Config{
		DebugPolicy:          policy,
		ExportMutableGlobals: f.ExportGlobals,
		Parallelism:          f.Parallelism,
		Logger:               log,
	}
	fmt.Fprintf(&fingerprint, "debug=%s export=%q\n", policy, f.ExportGlobals)

	if !f.NoGas {
		strategy, err := meter.ParseStrategy(f.Strategy)
		if err != nil {
			return meter.Config{}, nil, err
		}

		c.Gas = &meter.GasConfig{
			Strategy:       strategy,
			Module:         f.GasModule,
			Field:          f.GasField,
			Global:         f.GasGlobal,
			ChargeOverhead: f.ChargeOverhead,
			SplitCalls:     f.SplitCalls,
		}
		fmt.Fprintf(&fingerprint, "gas=%s module=%q field=%q global=%q overhead=%t split=%t\n", strategy, f.GasModule, f.GasField, f.GasGlobal, f.ChargeOverhead, f.SplitCalls)

		if f.RulesFile != "" {
			data, err := os.ReadFile(f.RulesFile)
			if err != nil {
				return meter.Config{}, nil, err
			}
			table, err := rules.LoadTable(bytes.NewReader(data))
			if err != nil {
				return meter.Config{}, nil, err
			}
			c.Gas.Rules = table
			fmt.Fprintf(&fingerprint, "rules=%d\n", len(data))
			fingerprint.Write(data)
		}
	}

	if f.StackLimit != 0 {
		c.Stack = &meter.StackConfig{
			Limit:  f.StackLimit,
			Global: f.StackGlobal,
		}
		fmt.Fprintf(&fingerprint, "stack=%d global=%q\n", f.StackLimit, f.StackGlobal)
	}

	return c, fingerprint.Bytes(), nil
}
