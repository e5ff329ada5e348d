// Copyright The Lode Authors
// SPDX-License-Identifier: Apache-2.0

package util

import (
	"bytes"
	"testing"
)

func TestBunzip2Garbage(t *testing.T) {
	var out bytes.Buffer
	if _, err := Bunzip2(&out, bytes.NewReader([]byte("BZh & garbage"))); err == nil {
		t.Fatal("expected an error for garbage input")
	}
}
