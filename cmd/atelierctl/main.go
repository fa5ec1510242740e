// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

// Command atelierctl is the offline companion of the server: it builds and
// queries vector indexes, simulates recommendation sessions, consolidates
// tags, backs up the state store and prints the effective configuration.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tomtom215/atelier/internal/config"
	"github.com/tomtom215/atelier/internal/logging"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "atelierctl",
		Short:         "Offline tools for the Atelier recommendation service",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level, _ := cmd.Flags().GetString("log-level") //nolint:errcheck // flag is registered below
			logging.Init(logging.Config{Level: level, Format: "console", Output: cmd.ErrOrStderr()})
		},
	}
	root.PersistentFlags().String("config", "", "config file (default: CONFIG_PATH or ./config.yaml)")
	root.PersistentFlags().String("log-level", "warn", "log level: trace, debug, info, warn, error")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "atelierctl %s\n", version)
		},
	})
	root.AddCommand(newIndexCmd(), newRecommendCmd(), newTagsCmd(), newConfigCmd(), newStateCmd())
	return root
}

// loadConfig honors --config, falling back to the server's search order.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config") //nolint:errcheck // persistent flag
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}
