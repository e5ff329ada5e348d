// Copyright The Lode Authors
// SPDX-License-Identifier: Apache-2.0

package generator

import (
	"bytes"

	"github.com/ulikunitz/xz"
)

// Xz compresses an in-memory buffer into the xz container format.
func Xz(data []byte) ([]byte, error) {
	buf := bytes.Buffer{}
	zw, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, err
	}

	if _, err := zw.Write(data); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
