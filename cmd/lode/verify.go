// Copyright The Lode Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/otakit/lode/payload"
)

var cmdVerify = &cobra.Command{
	Use:   "verify <payload>",
	Short: "Check a payload's operation data without writing images",
	Long: `Walk every partition in the payload and verify that each operation has
a destination, that its data lies inside the payload, and that the
data matches the operation's declared SHA-256 hash.`,
	Run: runVerify,
}

func init() {
	root.AddCommand(cmdVerify)
}

func runVerify(cmd *cobra.Command, args []string) {
	if len(args) != 1 {
		plog.Fatal("Expected exactly one payload path")
	}

	p, err := payload.Open(args[0])
	if err != nil {
		plog.Fatal(err)
	}
	defer p.Close()

	if err := p.VerifyData(); err != nil {
		plog.Fatal(err)
	}
	fmt.Println("Done")
}
