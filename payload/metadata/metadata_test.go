// Copyright The Lode Authors
// SPDX-License-Identifier: Apache-2.0

package metadata

import (
	"crypto/sha256"
	"encoding/binary"
	"testing"

	"github.com/golang/protobuf/proto"
)

func TestHeaderSize(t *testing.T) {
	if HeaderSize != 24 {
		t.Errorf("HeaderSize is %d, want 24", HeaderSize)
	}
	if s := binary.Size(DeltaArchiveHeader{}); s != HeaderSize {
		t.Errorf("DeltaArchiveHeader encodes to %d bytes, want %d", s, HeaderSize)
	}
}

func TestHeaderOffsets(t *testing.T) {
	h := DeltaArchiveHeader{
		Version:       Version,
		ManifestSize:  100,
		SignatureSize: 32,
	}
	if got := h.MetadataSize(); got != 124 {
		t.Errorf("MetadataSize is %d, want 124", got)
	}
	if got := h.DataOffset(); got != 156 {
		t.Errorf("DataOffset is %d, want 156", got)
	}
}

func TestManifestRoundTrip(t *testing.T) {
	sum := sha256.Sum256([]byte("image"))
	m := &DeltaArchiveManifest{
		BlockSize:    proto.Uint32(BlockSize),
		MinorVersion: proto.Uint32(0),
		Partitions: []*PartitionUpdate{{
			PartitionName: proto.String("boot"),
			NewPartitionInfo: &PartitionInfo{
				Size: proto.Uint64(BlockSize),
				Hash: sum[:],
			},
			Operations: []*InstallOperation{{
				Type:           InstallOperation_REPLACE_XZ.Enum(),
				DataOffset:     proto.Uint64(12),
				DataLength:     proto.Uint64(34),
				DataSha256Hash: sum[:],
				DstExtents: []*Extent{{
					StartBlock: proto.Uint64(0),
					NumBlocks:  proto.Uint64(1),
				}},
			}},
		}},
		SecurityPatchLevel: proto.String("2026-08-01"),
	}

	raw, err := proto.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}

	got := new(DeltaArchiveManifest)
	if err := proto.Unmarshal(raw, got); err != nil {
		t.Fatal(err)
	}

	if !proto.Equal(m, got) {
		t.Errorf("round trip changed the manifest:\n got: %v\nwant: %v", got, m)
	}

	op := got.GetPartitions()[0].GetOperations()[0]
	if op.GetType() != InstallOperation_REPLACE_XZ {
		t.Errorf("operation type is %s, want REPLACE_XZ", op.GetType())
	}
	if op.GetDstExtents()[0].GetNumBlocks() != 1 {
		t.Error("extent lost its block count")
	}
	if got.GetSecurityPatchLevel() != "2026-08-01" {
		t.Errorf("patch level is %q", got.GetSecurityPatchLevel())
	}
}

func TestManifestDefaults(t *testing.T) {
	var m DeltaArchiveManifest
	if got := m.GetBlockSize(); got != 4096 {
		t.Errorf("default block size is %d, want 4096", got)
	}
	if got := m.GetMinorVersion(); got != 0 {
		t.Errorf("default minor version is %d, want 0", got)
	}
}

func TestOperationTypeNames(t *testing.T) {
	if s := InstallOperation_REPLACE.String(); s != "REPLACE" {
		t.Errorf("REPLACE is named %q", s)
	}
	if s := InstallOperation_ZERO.String(); s != "ZERO" {
		t.Errorf("ZERO is named %q", s)
	}
	if v := InstallOperation_Type_value["REPLACE_XZ"]; v != 8 {
		t.Errorf("REPLACE_XZ is %d, want 8", v)
	}
	if InstallOperation_ZERO != 6 {
		t.Errorf("ZERO is %d, want 6", InstallOperation_ZERO)
	}
	if InstallOperation_ZSTD != 14 {
		t.Errorf("ZSTD is %d, want 14", InstallOperation_ZSTD)
	}
}
