// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"

	"gate.computer/meter"
	"github.com/fatih/color"
)

var (
	headerColor = color.New(color.Bold)
	nameColor   = color.New(color.FgCyan)
	valueColor  = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	errorColor  = color.New(color.FgRed, color.Bold)
)

// printReport summary, and per-function details if requested.
func printReport(w io.Writer, name string, r *meter.Report, funcs bool) {
	headerColor.Fprintln(w, name)

	field := func(label string, value any) {
		fmt.Fprintf(w, "  %-18s %s\n", nameColor.Sprint(label), valueColor.Sprint(value))
	}

	field("functions", len(r.Funcs))
	field("metering units", r.Units)
	field("inserted insns", r.Inserted)
	if r.GasFuncAdded {
		field("gas import", fmt.Sprintf("function %d", r.GasFunc))
	}
	if r.MaxStackHeight > 0 {
		field("stack global", r.StackGlobal)
		field("max stack height", r.MaxStackHeight)
	}

	if !funcs {
		return
	}

	fmt.Fprintln(w)
	headerColor.Fprintf(w, "  %8s %8s %20s %8s %8s\n", "func", "units", "cost", "inserted", "stack")
	for i, f := range r.Funcs {
		fmt.Fprintf(w, "  %8d %8d %20d %8d %8d\n", i, f.Units, f.Cost, f.Inserted, f.StackHeight)
	}
}

func printWarning(w io.Writer, format string, args ...any) {
	warnColor.Fprintf(w, format+"\n", args...)
}

func printError(w io.Writer, format string, args ...any) {
	errorColor.Fprintf(w, format+"\n", args...)
}
