// Copyright The Lode Authors
// SPDX-License-Identifier: Apache-2.0

package util

import (
	"compress/bzip2"
	"io"
)

// Bunzip2 does bunzip2 decompression from src to dst.
//
// It matches the signature of io.Copy.
func Bunzip2(dst io.Writer, src io.Reader) (written int64, err error) {
	bzr := bzip2.NewReader(src)
	return io.Copy(dst, bzr)
}
