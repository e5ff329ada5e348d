// Copyright The Lode Authors
// SPDX-License-Identifier: Apache-2.0

package util

import (
	"io"

	"github.com/ulikunitz/xz"
)

// Unxz does xz decompression from src to dst.
//
// It matches the signature of io.Copy.
func Unxz(dst io.Writer, src io.Reader) (written int64, err error) {
	xzr, err := xz.NewReader(src)
	if err != nil {
		return 0, err
	}
	return io.Copy(dst, xzr)
}
