// Copyright The Lode Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/otakit/lode/payload/generator"
)

var (
	cmdPack = &cobra.Command{
		Use:   "pack name:image [name:image...]",
		Short: "Build an update payload from partition images",
		Long: `Assemble a full (non-delta) update payload from raw partition images.
Each argument names a partition and the image file it should
reconstruct to; images must be a whole number of 4096 byte blocks.`,
		Run: runPack,
	}

	packOutput     string
	packCompress   = generator.CompressXz
	packPatchLevel string
)

func init() {
	cmdPack.Flags().StringVarP(&packOutput, "output", "o", "payload.bin",
		"payload file to write")
	cmdPack.Flags().Var(&packCompress, "compress",
		"data chunk compression: none, xz, or bz2")
	cmdPack.Flags().StringVar(&packPatchLevel, "security-patch-level", "",
		"security patch level to record in the manifest")
	root.AddCommand(cmdPack)
}

func runPack(cmd *cobra.Command, args []string) {
	if len(args) == 0 {
		plog.Fatal("Expected at least one name:image argument")
	}

	g := &generator.Generator{
		Compression:        packCompress,
		SecurityPatchLevel: packPatchLevel,
	}
	defer g.Destroy()

	for _, arg := range args {
		name, image, ok := strings.Cut(arg, ":")
		if !ok || name == "" || image == "" {
			plog.Fatalf("Malformed argument %q, expected name:image", arg)
		}

		f, err := os.Open(image)
		if err != nil {
			plog.Fatal(err)
		}
		err = g.Partition(name, f)
		f.Close()
		if err != nil {
			plog.Fatal(err)
		}
	}

	if err := g.Write(packOutput); err != nil {
		plog.Fatal(err)
	}
	plog.Noticef("Wrote %s", packOutput)
}
