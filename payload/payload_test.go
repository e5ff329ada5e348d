// Copyright The Lode Authors
// SPDX-License-Identifier: Apache-2.0

package payload

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/protobuf/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otakit/lode/payload/metadata"
)

// testImage returns n bytes of deterministic non-zero content.
func testImage(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i%251 + 1)
	}
	return b
}

func sha(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

func extent(start, num uint64) *metadata.Extent {
	return &metadata.Extent{
		StartBlock: proto.Uint64(start),
		NumBlocks:  proto.Uint64(num),
	}
}

// replaceOp builds a REPLACE operation whose data sits at offset
// within the data region and reconstructs numBlocks blocks starting
// at startBlock.
func replaceOp(offset uint64, data []byte, startBlock, numBlocks uint64) *metadata.InstallOperation {
	return &metadata.InstallOperation{
		Type:           metadata.InstallOperation_REPLACE.Enum(),
		DataOffset:     proto.Uint64(offset),
		DataLength:     proto.Uint64(uint64(len(data))),
		DataSha256Hash: sha(data),
		DstExtents:     []*metadata.Extent{extent(startBlock, numBlocks)},
	}
}

// onePartition builds a manifest holding a single partition whose
// reconstructed image must equal image.
func onePartition(name string, image []byte, ops ...*metadata.InstallOperation) *metadata.DeltaArchiveManifest {
	return &metadata.DeltaArchiveManifest{
		BlockSize: proto.Uint32(metadata.BlockSize),
		Partitions: []*metadata.PartitionUpdate{{
			PartitionName: proto.String(name),
			NewPartitionInfo: &metadata.PartitionInfo{
				Size: proto.Uint64(uint64(len(image))),
				Hash: sha(image),
			},
			Operations: ops,
		}},
	}
}

func marshal(t *testing.T, m *metadata.DeltaArchiveManifest) []byte {
	t.Helper()
	b, err := proto.Marshal(m)
	require.Nil(t, err)
	return b
}

// envelope assembles payload bytes from raw parts: header, manifest,
// a zeroed signature block of sigLen bytes, then the data region.
func envelope(magic string, version uint64, manifest []byte, sigLen uint32, data []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(magic)
	binary.Write(&buf, binary.BigEndian, version)
	binary.Write(&buf, binary.BigEndian, uint64(len(manifest)))
	binary.Write(&buf, binary.BigEndian, sigLen)
	buf.Write(manifest)
	buf.Write(make([]byte, sigLen))
	buf.Write(data)
	return buf.Bytes()
}

func payloadFrom(t *testing.T, raw []byte) *Payload {
	t.Helper()
	p, err := NewPayloadFrom(bytes.NewReader(raw), int64(len(raw)))
	require.Nil(t, err)
	return p
}

func TestHeaderDerivedOffsets(t *testing.T) {
	for i, sigLen := range []uint32{0, 1, 57, 4096} {
		m := onePartition("boot", testImage(metadata.BlockSize))
		m.SecurityPatchLevel = proto.String(strings.Repeat("x", i*17))
		mb := marshal(t, m)

		p := payloadFrom(t, envelope(metadata.Magic, metadata.Version, mb, sigLen, nil))
		assert.Equal(t, uint64(len(mb)), p.Header.ManifestSize)
		assert.Equal(t, sigLen, p.Header.SignatureSize)
		assert.Equal(t, 24+uint64(len(mb)), p.Header.MetadataSize())
		assert.Equal(t, uint64(sigLen)+24+uint64(len(mb)), p.Header.DataOffset())
	}
}

func TestBadMagic(t *testing.T) {
	mb := marshal(t, onePartition("boot", testImage(metadata.BlockSize)))
	for _, magic := range []string{"CrAV", "toot", "\x00\x00\x00\x00"} {
		raw := envelope(magic, metadata.Version, mb, 0, nil)
		_, err := NewPayloadFrom(bytes.NewReader(raw), int64(len(raw)))
		assert.ErrorIs(t, err, ErrBadMagic, "magic %q", magic)
	}
}

func TestUnsupportedVersion(t *testing.T) {
	mb := marshal(t, onePartition("boot", testImage(metadata.BlockSize)))
	for _, version := range []uint64{0, 1, 3} {
		raw := envelope(metadata.Magic, version, mb, 0, nil)
		_, err := NewPayloadFrom(bytes.NewReader(raw), int64(len(raw)))

		var verr *UnsupportedVersionError
		require.ErrorAs(t, err, &verr, "version %d", version)
		assert.Equal(t, version, verr.Version)
	}
}

func TestTruncatedManifest(t *testing.T) {
	mb := marshal(t, onePartition("boot", testImage(metadata.BlockSize)))
	raw := envelope(metadata.Magic, metadata.Version, mb, 0, nil)
	raw = raw[:len(raw)-1]

	_, err := NewPayloadFrom(bytes.NewReader(raw), int64(len(raw)))
	assert.ErrorIs(t, err, ErrManifestDecode)
}

func TestManifestLengthBeyondPayload(t *testing.T) {
	// Lengths near the uint64 limit wrap the header+manifest sum back
	// inside the payload; they must fail like any other oversize.
	for _, length := range []uint64{1 << 40, ^uint64(0) - 9, ^uint64(0)} {
		raw := envelope(metadata.Magic, metadata.Version, nil, 0, nil)
		binary.BigEndian.PutUint64(raw[12:], length)

		_, err := NewPayloadFrom(bytes.NewReader(raw), int64(len(raw)))
		assert.ErrorIs(t, err, ErrManifestDecode, "manifest length %d", length)
	}
}

func TestEmptyManifest(t *testing.T) {
	p := payloadFrom(t, envelope(metadata.Magic, metadata.Version, nil, 0, nil))

	assert.Equal(t, uint64(0), p.Header.ManifestSize)
	assert.Equal(t, uint32(metadata.BlockSize), p.Manifest.GetBlockSize())
	assert.Empty(t, p.Manifest.GetPartitions())
	assert.Contains(t, p.PartitionList(), "Partitions: 0")

	var nferr *PartitionNotFoundError
	_, err := p.Partition("boot")
	assert.ErrorAs(t, err, &nferr)
}

func TestGarbageManifest(t *testing.T) {
	raw := envelope(metadata.Magic, metadata.Version, []byte{0x07}, 0, nil)
	_, err := NewPayloadFrom(bytes.NewReader(raw), int64(len(raw)))
	assert.ErrorIs(t, err, ErrManifestDecode)
}

func TestPartitionLookup(t *testing.T) {
	img := testImage(metadata.BlockSize)
	p := payloadFrom(t, envelope(metadata.Magic, metadata.Version,
		marshal(t, onePartition("boot", img)), 0, nil))

	part, err := p.Partition("boot")
	require.Nil(t, err)
	assert.Equal(t, "boot", part.GetPartitionName())
	assert.Equal(t, uint64(len(img)), part.GetNewPartitionInfo().GetSize())

	_, err = p.Partition("vendor")
	var nferr *PartitionNotFoundError
	require.ErrorAs(t, err, &nferr)
	assert.Equal(t, "vendor", nferr.Partition)
}

func TestPartitionList(t *testing.T) {
	img := testImage(metadata.BlockSize)
	m := onePartition("boot", img)
	m.SecurityPatchLevel = proto.String("2026-07-05")
	p := payloadFrom(t, envelope(metadata.Magic, metadata.Version, marshal(t, m), 0, nil))

	list := p.PartitionList()
	assert.Contains(t, list, "Version: 2")
	assert.Contains(t, list, "boot")
	assert.Contains(t, list, "4096")
	assert.Contains(t, list, "2026-07-05")
	assert.Contains(t, list, hex.EncodeToString(sha(img)))
}

func writeZip(t *testing.T, entry string, method uint16, contents []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ota.zip")
	f, err := os.Create(path)
	require.Nil(t, err)

	zw := zip.NewWriter(f)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: entry, Method: method})
	require.Nil(t, err)
	_, err = w.Write(contents)
	require.Nil(t, err)
	require.Nil(t, zw.Close())
	require.Nil(t, f.Close())
	return path
}

func TestOpenZip(t *testing.T) {
	img := testImage(metadata.BlockSize)
	raw := envelope(metadata.Magic, metadata.Version,
		marshal(t, onePartition("boot", img, replaceOp(0, img, 0, 1))), 0, img)

	t.Run("Stored", func(t *testing.T) {
		p, err := Open(writeZip(t, "payload.bin", zip.Store, raw))
		require.Nil(t, err)
		defer p.Close()

		assert.Equal(t, uint64(metadata.Version), p.Header.Version)
		_, err = p.Partition("boot")
		assert.Nil(t, err)
	})
	t.Run("MissingEntry", func(t *testing.T) {
		_, err := Open(writeZip(t, "other.bin", zip.Store, raw))
		assert.ErrorIs(t, err, ErrNoPayloadEntry)
	})
	t.Run("Deflated", func(t *testing.T) {
		_, err := Open(writeZip(t, "payload.bin", zip.Deflate, raw))
		assert.ErrorIs(t, err, ErrEntryCompressed)
	})
}

func TestOpenBareFile(t *testing.T) {
	img := testImage(metadata.BlockSize)
	raw := envelope(metadata.Magic, metadata.Version,
		marshal(t, onePartition("boot", img, replaceOp(0, img, 0, 1))), 0, img)

	path := filepath.Join(t.TempDir(), "payload.bin")
	require.Nil(t, os.WriteFile(path, raw, 0644))

	p, err := Open(path)
	require.Nil(t, err)
	assert.Contains(t, p.PartitionList(), "boot")
	assert.Nil(t, p.Close())
}
