// Copyright The Lode Authors
// SPDX-License-Identifier: Apache-2.0

package util

import (
	"bytes"
	"strings"
	"testing"
)

func TestProgressBar(t *testing.T) {
	var buf bytes.Buffer
	bar := NewProgressBar(&buf, "boot")

	for _, pct := range []int{0, 50, 100} {
		if err := bar.Percent(pct); err != nil {
			t.Fatal(err)
		}
	}
	if err := bar.Finish(); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.Contains(out, "boot") {
		t.Errorf("output is missing the prefix: %q", out)
	}
	if !strings.Contains(out, "50") {
		t.Errorf("output is missing the percentage: %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Errorf("Finish should end the line: %q", out)
	}
}

func TestProgressBarLongPrefix(t *testing.T) {
	var buf bytes.Buffer
	bar := NewProgressBar(&buf, strings.Repeat("x", 100))

	if err := bar.Percent(100); err != nil {
		t.Fatal(err)
	}
	if err := bar.Finish(); err != nil {
		t.Fatal(err)
	}
}
