// Copyright The Lode Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/otakit/lode/payload"
	"github.com/otakit/lode/util"
)

var (
	cmdExtract = &cobra.Command{
		Use:   "extract <payload> [partition...]",
		Short: "Extract partition images from an update payload",
		Long: `Reconstruct partition images from an update payload and verify each
against the SHA-256 hash declared in the manifest. With no partition
names, every partition in the payload is extracted.

Images are written to the output directory as <partition>.img.`,
		Run: runExtract,
	}

	extractOutputDir string
	extractParallel  int
)

func init() {
	cmdExtract.Flags().StringVarP(&extractOutputDir, "output-dir", "o", ".",
		"directory to write images into")
	cmdExtract.Flags().IntVar(&extractParallel, "parallel", 1,
		"number of partitions to extract at once")
	root.AddCommand(cmdExtract)
}

func runExtract(cmd *cobra.Command, args []string) {
	if len(args) < 1 {
		plog.Fatal("Expected a payload path")
	}
	if extractParallel < 1 {
		plog.Fatal("--parallel must be at least 1")
	}
	source := args[0]
	names := args[1:]

	if len(names) == 0 {
		p, err := payload.Open(source)
		if err != nil {
			plog.Fatal(err)
		}
		for _, part := range p.Manifest.GetPartitions() {
			names = append(names, part.GetPartitionName())
		}
		p.Close()
	}

	if err := os.MkdirAll(extractOutputDir, 0755); err != nil {
		plog.Fatal(err)
	}

	// A Payload does not extract concurrently, so each worker opens
	// its own. Progress bars only draw cleanly one at a time.
	drawBars := extractParallel == 1
	jobs := make(chan string)
	errs := make(chan error, len(names)+extractParallel)
	var wg sync.WaitGroup
	for i := 0; i < extractParallel; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := payload.Open(source)
			if err != nil {
				errs <- err
				for range jobs {
				}
				return
			}
			defer p.Close()
			for name := range jobs {
				if err := extractOne(p, name, drawBars); err != nil {
					errs <- fmt.Errorf("%s: %w", name, err)
				}
			}
		}()
	}
	for _, name := range names {
		jobs <- name
	}
	close(jobs)
	wg.Wait()
	close(errs)

	failed := false
	for err := range errs {
		failed = true
		plog.Errorf("%v", err)
	}
	if failed {
		plog.Fatal("Extraction failed")
	}
	fmt.Println("Done")
}

func extractOne(p *payload.Payload, name string, drawBar bool) error {
	part, err := p.Partition(name)
	if err != nil {
		return err
	}

	var progress payload.ProgressFunc
	var finish func() error
	if drawBar {
		label := fmt.Sprintf("%s (%s)", name,
			humanize.Bytes(part.GetNewPartitionInfo().GetSize()))
		bar := util.NewProgressBar(os.Stderr, label)
		progress = bar.Percent
		finish = bar.Finish
	}

	out := filepath.Join(extractOutputDir, name+".img")
	err = p.Extract(name, out, progress, func(state payload.VerifyState) error {
		plog.Infof("Verification of %s: %s", name, state)
		return nil
	})
	if finish != nil {
		finish()
	}
	if err != nil {
		return err
	}

	plog.Noticef("Wrote %s", out)
	return nil
}
