// Copyright The Lode Authors
// SPDX-License-Identifier: Apache-2.0

package util

import (
	"fmt"
	"io"

	"github.com/coreos/ioprogress"
)

// ProgressBar draws a terminal progress bar for work that is reported
// in whole percentages rather than byte counts.
type ProgressBar struct {
	draw ioprogress.DrawFunc
}

// NewProgressBar returns a bar labeled with prefix that renders to w.
func NewProgressBar(w io.Writer, prefix string) *ProgressBar {
	barSize := int64(80 - len(prefix) - 7)
	if barSize < 8 {
		barSize = 8
	}
	bar := ioprogress.DrawTextFormatBarForW(barSize, w)
	fmtfunc := func(progress, total int64) string {
		return fmt.Sprintf("%s: %s %3d%%", prefix, bar(progress, total), progress)
	}
	return &ProgressBar{draw: ioprogress.DrawTerminalf(w, fmtfunc)}
}

// Percent draws the bar at pct out of 100.
func (p *ProgressBar) Percent(pct int) error {
	return p.draw(int64(pct), 100)
}

// Finish completes the bar and advances past it.
func (p *ProgressBar) Finish() error {
	return p.draw(-1, -1)
}
