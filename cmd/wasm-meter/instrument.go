// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"log/slog"
	"os"

	"gate.computer/meter"
	"gate.computer/meter/internal/codecache"
	"gate.computer/meter/logger"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
)

func newInstrumentCmd(root *rootConfig) *cobra.Command {
	var (
		flags  instrumentFlags
		output string
		quiet  bool
	)

	cmd := &cobra.Command{
		Use:   "instrument [flags] input.wasm",
		Short: "Instrument a module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wasm, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			out, report, err := instrument(cmd.Context(), root.log, &flags, wasm)
			if err != nil {
				return err
			}

			if output == "" {
				output = args[0] + ".metered"
			}
			if output == "-" {
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			if err := os.WriteFile(output, out, 0644); err != nil {
				return err
			}

			if !quiet {
				printReport(cmd.OutOrStdout(), output, report, false)
			}
			return nil
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, or - for standard output (default is input file name with .metered suffix)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "don't print report")

	return cmd
}

// instrument a module, through the cache if one is configured.
func instrument(ctx context.Context, log *slog.Logger, flags *instrumentFlags, wasm []byte) (out []byte, report *meter.Report, err error) {
	ctx, span := startSpan(ctx, "instrument", attribute.Int("wasm.size", len(wasm)))
	defer func() { endSpan(span, err) }()

	config, fingerprint, err := flags.config(log)
	if err != nil {
		return nil, nil, err
	}

	strategy := "none"
	if config.Gas != nil {
		strategy = config.Gas.Strategy.String()
	}

	var cached bool

	if flags.CacheFile != "" {
		cache, err := codecache.Open(flags.CacheFile)
		if err != nil {
			return nil, nil, err
		}
		defer cache.Close()

		out, report, cached, err = cache.Instrument(wasm, fingerprint, config)
		if err != nil {
			return nil, nil, err
		}
		log.Debug("cache lookup", slog.Bool("hit", cached))
	} else {
		out, report, err = meter.InstrumentBinary(wasm, config)
		if err != nil {
			return nil, nil, err
		}
	}

	span.SetAttributes(
		attribute.Int("meter.functions", len(report.Funcs)),
		attribute.Int("meter.inserted", report.Inserted),
		attribute.Bool("meter.cached", cached),
	)
	newMetrics(log).record(ctx, report, strategy, cached)

	log.Info("module instrumented",
		logger.Bytes("input", len(wasm)),
		logger.Bytes("output", len(out)),
		slog.Int("units", report.Units))

	return out, report, nil
}
