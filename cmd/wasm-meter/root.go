// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gate.computer/meter/logger"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/xerrors"
)

const (
	// Prefix of configuration keys in environment.
	envPrefix = "METER"

	// Config file name (without extension) searched from the working
	// directory when --config is not given.
	defaultConfigName = "wasm-meter"
)

type rootConfig struct {
	CfgFile   string
	LogLevel  string
	LogFormat string
	NoColor   bool

	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	config := &rootConfig{}

	cmd := &cobra.Command{
		Use:   "wasm-meter",
		Short: "WebAssembly gas metering and stack height instrumentation",
		Long: `wasm-meter rewrites WebAssembly modules so that executing them enforces a
deterministic resource budget.  Gas is charged per metering unit by calling
an imported function or by decrementing an exported global.  Stack height
is tracked in a global and execution traps when the limit is exceeded.

Flags can also be set via environment variables prefixed with METER_ (e.g.
METER_STACK_LIMIT) or via a YAML config file.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initializeConfig(cmd, config)
		},
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&config.CfgFile, "config", "", "config file (default is ./wasm-meter.yaml if it exists)")
	flags.StringVar(&config.LogLevel, "log-level", "warn", "log level: debug, info, warn or error")
	flags.StringVar(&config.LogFormat, "log-format", "text", "log format: text or json")
	flags.BoolVar(&config.NoColor, "no-color", false, "disable colored output")

	cmd.AddCommand(
		newInstrumentCmd(config),
		newRunCmd(config),
		newCostsCmd(config),
	)

	return cmd
}

// initializeConfig reads the config file and environment, and applies them
// to flags which were not set on the command line.
func initializeConfig(cmd *cobra.Command, config *rootConfig) error {
	v := viper.New()

	if config.CfgFile != "" {
		v.SetConfigFile(config.CfgFile)
	} else {
		v.SetConfigName(defaultConfigName)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if config.CfgFile != "" || !xerrors.As(err, &notFound) {
			return xerrors.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if err := bindFlags(cmd, v); err != nil {
		return err
	}

	if config.NoColor {
		color.NoColor = true
	}

	log, err := logger.New(cmd.ErrOrStderr(), logger.Config{
		Level:  config.LogLevel,
		Format: config.LogFormat,
	})
	if err != nil {
		return err
	}
	config.log = log

	return nil
}

// bindFlags applies viper values to each flag of the command which was not
// set explicitly.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var bindErr error

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if bindErr != nil {
			return
		}

		// Environment variables can't have dashes.
		if strings.Contains(f.Name, "-") {
			suffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if err := v.BindEnv(f.Name, envPrefix+"_"+suffix); err != nil {
				bindErr = xerrors.Errorf("binding flag %s to environment: %w", f.Name, err)
				return
			}
		}

		if !f.Changed && v.IsSet(f.Name) {
			if err := setFlag(cmd.Flags(), f, v.Get(f.Name)); err != nil {
				bindErr = xerrors.Errorf("setting flag %s: %w", f.Name, err)
			}
		}
	})

	return bindErr
}

func setFlag(flags *pflag.FlagSet, f *pflag.Flag, value any) error {
	if list, ok := value.([]any); ok {
		for _, x := range list {
			if err := flags.Set(f.Name, fmt.Sprint(x)); err != nil {
				return err
			}
		}
		return nil
	}
	return flags.Set(f.Name, fmt.Sprint(value))
}

// readInput file, or standard input if name is "-".
func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(name)
}
