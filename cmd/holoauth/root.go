// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/holomush/holoauth/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the holoauth CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "holoauth",
		Short: "holoauth - user authentication service",
		Long: `holoauth registers users, checks passwords, issues session cookies
and runs the password reset flow over HTTP.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/holoauth/config.yaml if present)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

// resolveConfigFile returns --config, or the XDG config file when it exists.
// An empty result means no file.
func resolveConfigFile() string {
	if configFile != "" {
		return configFile
	}
	// A missing HOME only disables the default file.
	path, exists, err := xdg.ConfigFile()
	if err != nil || !exists {
		return ""
	}
	return path
}
