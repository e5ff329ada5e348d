// Copyright The Lode Authors
// SPDX-License-Identifier: Apache-2.0

package payload

import (
	"errors"
	"fmt"

	"github.com/otakit/lode/payload/metadata"
)

var (
	// ErrBadMagic reports a source that does not begin with the
	// payload magic token.
	ErrBadMagic = errors.New("payload: bad magic, not an update payload")

	// ErrNoPayloadEntry reports a zip archive without a payload.bin
	// entry.
	ErrNoPayloadEntry = errors.New("payload: payload.bin not found inside zip")

	// ErrEntryCompressed reports a payload.bin entry that was
	// deflated. Only stored entries have a flat byte range that can
	// be read in place.
	ErrEntryCompressed = errors.New("payload: payload.bin entry is compressed, expected stored")

	// ErrManifestDecode reports a manifest that could not be read or
	// decoded. It appears wrapped with the underlying cause.
	ErrManifestDecode = errors.New("payload: decoding manifest failed")

	// ErrCallback reports a progress or verify observer that returned
	// an error. It appears wrapped with the observer's error.
	ErrCallback = errors.New("payload: observer callback failed")
)

// UnsupportedVersionError reports a payload whose major version this
// package cannot process.
type UnsupportedVersionError struct {
	Version uint64
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("payload: unsupported payload version %d, only version %d is supported",
		e.Version, metadata.Version)
}

// PartitionNotFoundError reports a requested partition name with no
// entry in the manifest.
type PartitionNotFoundError struct {
	Source    string
	Partition string
}

func (e *PartitionNotFoundError) Error() string {
	return fmt.Sprintf("payload: no partition %q in %s", e.Partition, e.Source)
}

// InvalidExtentError reports an operation with an empty destination
// extent list.
type InvalidExtentError struct {
	Partition string
	Index     int
}

func (e *InvalidExtentError) Error() string {
	return fmt.Sprintf("payload: partition %s operation %d has no destination extents",
		e.Partition, e.Index)
}

// UnsupportedOperationError reports an operation kind this package
// does not apply. Full payloads only carry replace and zero kinds;
// anything else implies a delta payload.
type UnsupportedOperationError struct {
	Type metadata.InstallOperation_Type
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("payload: unsupported operation type %s", e.Type)
}

// OperationHashMismatchError reports an operation whose source data
// does not match its declared SHA-256 hash.
type OperationHashMismatchError struct {
	Partition string
	Type      metadata.InstallOperation_Type
}

func (e *OperationHashMismatchError) Error() string {
	return fmt.Sprintf("payload: source data hash mismatch for %s operation in %s",
		e.Type, e.Partition)
}

// ShortWriteError reports an operation that produced a different
// number of bytes than its destination extent covers.
type ShortWriteError struct {
	Written  uint64
	Expected uint64
}

func (e *ShortWriteError) Error() string {
	return fmt.Sprintf("payload: operation wrote %d bytes, expected %d", e.Written, e.Expected)
}

// PartitionHashMismatchError reports a reconstructed image whose
// SHA-256 digest does not match the hash declared in the manifest.
type PartitionHashMismatchError struct {
	Partition string
	Hash      string
}

func (e *PartitionHashMismatchError) Error() string {
	return fmt.Sprintf("payload: verification failed for %s, sha256 of output is %s",
		e.Partition, e.Hash)
}
