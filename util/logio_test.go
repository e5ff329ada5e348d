// Copyright The Lode Authors
// SPDX-License-Identifier: Apache-2.0

package util

import (
	"bytes"
	"testing"

	"github.com/coreos/pkg/capnslog"
)

func TestCopyProgress(t *testing.T) {
	src := bytes.Repeat([]byte{7}, 100000)

	var dst bytes.Buffer
	n, err := CopyProgress(capnslog.DEBUG, "copy", &dst, bytes.NewReader(src), int64(len(src)))
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len(src)) {
		t.Errorf("copied %d bytes, want %d", n, len(src))
	}
	if !bytes.Equal(dst.Bytes(), src) {
		t.Error("copy corrupted the data")
	}
}
