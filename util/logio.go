// Copyright The Lode Authors
// SPDX-License-Identifier: Apache-2.0

package util

import (
	"fmt"
	"io"
	"os"

	"github.com/coreos/ioprogress"
	"github.com/coreos/pkg/capnslog"
)

var plog = capnslog.NewPackageLogger("github.com/otakit/lode", "util")

// CopyProgress copies data from reader into writer, logging progress through level.
func CopyProgress(level capnslog.LogLevel, prefix string, writer io.Writer, reader io.Reader, total int64) (int64, error) {
	if plog.LevelAt(level) {
		fmtBytesSize := 18
		barSize := int64(80 - len(prefix) - fmtBytesSize)
		if barSize < 8 {
			barSize = 8
		}
		bar := ioprogress.DrawTextFormatBarForW(barSize, os.Stderr)
		fmtfunc := func(progress, total int64) string {
			if total < 0 {
				return fmt.Sprintf(
					"%s: %v of an unknown total size",
					prefix,
					ioprogress.ByteUnitStr(progress),
				)
			}
			return fmt.Sprintf(
				"%s: %s %s",
				prefix,
				bar(progress, total),
				ioprogress.DrawTextFormatBytes(progress, total),
			)
		}

		reader = &ioprogress.Reader{
			Reader:   reader,
			Size:     total,
			DrawFunc: ioprogress.DrawTerminalf(os.Stderr, fmtfunc),
		}
	}

	return io.Copy(writer, reader)
}
