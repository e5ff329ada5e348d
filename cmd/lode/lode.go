// Copyright The Lode Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/coreos/pkg/capnslog"
	"github.com/spf13/cobra"

	"github.com/otakit/lode/cli"
)

var (
	plog = capnslog.NewPackageLogger("github.com/otakit/lode", "cmd/lode")

	root = &cobra.Command{
		Use:   "lode",
		Short: "Android OTA payload inspection and extraction tool",
	}
)

func main() {
	cli.Execute(root)
}
