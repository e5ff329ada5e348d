// Copyright The Lode Authors
// SPDX-License-Identifier: Apache-2.0

package payload

import (
	"archive/zip"
	"fmt"
	"io"
)

// payloadEntry is the archive member OTA packages store the payload
// under.
const payloadEntry = "payload.bin"

// zipPayloadRange locates the payload.bin entry in the zip archive
// held by ra and returns the absolute offset and length of its data.
// The entry must be stored, not deflated: a deflated entry has no flat
// byte range to read operations from.
func zipPayloadRange(ra io.ReaderAt, size int64) (offset, length int64, err error) {
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return 0, 0, fmt.Errorf("opening zip archive: %w", err)
	}

	for _, zf := range zr.File {
		if zf.Name != payloadEntry {
			continue
		}
		if zf.Method != zip.Store {
			return 0, 0, ErrEntryCompressed
		}
		off, err := zf.DataOffset()
		if err != nil {
			return 0, 0, fmt.Errorf("locating %s data: %w", payloadEntry, err)
		}
		return off, int64(zf.UncompressedSize64), nil
	}
	return 0, 0, ErrNoPayloadEntry
}
