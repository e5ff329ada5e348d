// Copyright The Lode Authors
// SPDX-License-Identifier: Apache-2.0

// Package metadata describes the update_engine payload format: the
// fixed envelope header that begins every payload and the protobuf
// manifest that follows it. The manifest model in update_metadata.pb.go
// tracks AOSP's update_metadata.proto; update_metadata.proto in this
// directory is the schema of record for the retained subset.
package metadata

// Magic is the first four bytes of any update payload.
const Magic = "CrAU"

// Version is the supported payload major version. Version 2 ("brillo")
// introduced the metadata signature length field and per-partition
// update records; it is the only major version current OTA packages
// use and the only one this code accepts.
const Version = 2

// BlockSize is the size of a destination block in bytes. Extents
// address partition images in whole blocks of this size.
const BlockSize = 4096

// HeaderSize is the byte length of the fixed envelope header:
// magic, version, manifest size and metadata signature size.
const HeaderSize = 4 + 8 + 8 + 4

// DeltaArchiveHeader begins the payload file. All integer fields are
// big-endian on the wire; the manifest follows immediately after the
// header, then the metadata signature blob, then operation data.
type DeltaArchiveHeader struct {
	Magic         [4]byte // "CrAU"
	Version       uint64  // 2
	ManifestSize  uint64
	SignatureSize uint32
}

// MetadataSize is the byte count of the header plus the manifest.
func (h *DeltaArchiveHeader) MetadataSize() uint64 {
	return HeaderSize + h.ManifestSize
}

// DataOffset is the offset of the operation data region relative to
// the start of the payload. Operation data offsets in the manifest are
// relative to this position.
func (h *DeltaArchiveHeader) DataOffset() uint64 {
	return uint64(h.SignatureSize) + h.MetadataSize()
}
