// Copyright The Lode Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/otakit/lode/payload"
)

var cmdList = &cobra.Command{
	Use:   "list <payload>",
	Short: "List the partitions in an update payload",
	Long: `Print the payload header fields and, per partition, the name, size,
and declared SHA-256 hash of the partition image it reconstructs.

The payload may be a bare payload.bin or an OTA zip containing one.`,
	Run: runList,
}

func init() {
	root.AddCommand(cmdList)
}

func runList(cmd *cobra.Command, args []string) {
	if len(args) != 1 {
		plog.Fatal("Expected exactly one payload path")
	}

	p, err := payload.Open(args[0])
	if err != nil {
		plog.Fatal(err)
	}
	defer p.Close()

	fmt.Print(p.PartitionList())
}
