// Copyright The Lode Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli carries the setup shared by lode commands: the version
// subcommand, capnslog formatter wiring, and the global log level
// flags.
package cli

import (
	"os"

	"github.com/coreos/pkg/capnslog"
	"github.com/spf13/cobra"

	"github.com/otakit/lode/version"
)

var (
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number and exit.",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("%s version %s\n", cmd.Root().Name(), version.Version)
		},
	}

	logDebug   bool
	logVerbose bool
	logLevel   = capnslog.NOTICE

	plog = capnslog.NewPackageLogger("github.com/otakit/lode", "cli")
)

// Execute sets up common features that all lode commands share and
// then executes the command. It does not return.
func Execute(main *cobra.Command) {
	main.AddCommand(versionCmd)

	main.PersistentFlags().Var(&logLevel, "log-level",
		"Set global log level.")
	main.PersistentFlags().BoolVarP(&logVerbose, "verbose", "v", false,
		"Alias for --log-level=INFO")
	main.PersistentFlags().BoolVarP(&logDebug, "debug", "d", false,
		"Alias for --log-level=DEBUG")

	WrapPreRun(main, func(cmd *cobra.Command, args []string) error {
		startLogging(cmd)
		return nil
	})

	if err := main.Execute(); err != nil {
		plog.Fatal(err)
	}
	os.Exit(0)
}

func startLogging(cmd *cobra.Command) {
	switch {
	case logDebug:
		logLevel = capnslog.DEBUG
	case logVerbose:
		logLevel = capnslog.INFO
	}

	capnslog.SetFormatter(capnslog.NewStringFormatter(cmd.OutOrStderr()))
	capnslog.SetGlobalLogLevel(logLevel)

	plog.Infof("Started logging at level %s", logLevel)
}

type PreRunEFunc func(cmd *cobra.Command, args []string) error

// WrapPreRun prepends f to root's persistent pre-run chain, keeping
// any hook the command already installed.
func WrapPreRun(root *cobra.Command, f PreRunEFunc) {
	preRun, preRunE := root.PersistentPreRun, root.PersistentPreRunE
	root.PersistentPreRun, root.PersistentPreRunE = nil, nil

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := f(cmd, args); err != nil {
			return err
		}
		if preRun != nil {
			preRun(cmd, args)
		} else if preRunE != nil {
			return preRunE(cmd, args)
		}
		return nil
	}
}
