// Copyright The Lode Authors
// SPDX-License-Identifier: Apache-2.0

// Package generator assembles update payloads from partition images,
// the inverse of package payload. Images are encoded as full replace
// and zero operations, never deltas; the result is a plain version 2
// payload the extraction engine round-trips.
package generator

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/coreos/pkg/capnslog"
	"github.com/golang/protobuf/proto"

	"github.com/otakit/lode/payload/metadata"
	"github.com/otakit/lode/util"
)

// chunkBlocks is the number of destination blocks covered by one
// operation, 2 MiB of image data.
const chunkBlocks = 512

// Compression selects the encoding applied to non-zero data chunks.
type Compression int

const (
	// CompressNone stores chunks verbatim.
	CompressNone Compression = iota
	// CompressXz encodes chunks with xz when that is smaller.
	CompressXz
	// CompressBzip2 encodes chunks with bzip2 when that is smaller.
	CompressBzip2
)

func (c Compression) String() string {
	switch c {
	case CompressNone:
		return "none"
	case CompressXz:
		return "xz"
	case CompressBzip2:
		return "bz2"
	}
	return fmt.Sprintf("Compression(%d)", int(c))
}

// ParseCompression maps the command line names none, xz, and bz2.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "none":
		return CompressNone, nil
	case "xz":
		return CompressXz, nil
	case "bz2":
		return CompressBzip2, nil
	}
	return 0, fmt.Errorf("unknown compression %q", s)
}

// Set selects the compression by name, for flag parsing.
func (c *Compression) Set(s string) error {
	parsed, err := ParseCompression(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Type describes the flag value in command help text.
func (c *Compression) Type() string {
	return "compression"
}

// A Generator accumulates partition images and assembles them into an
// update payload. The zero value is ready to use; Destroy releases the
// temporary file that spools operation data between Partition and
// Write calls.
type Generator struct {
	// Compression selects the encoding of non-zero data chunks.
	Compression Compression

	// SecurityPatchLevel, when non-empty, is recorded in the
	// manifest.
	SecurityPatchLevel string

	partitions []*metadata.PartitionUpdate
	blobs      *os.File
	blobOffset uint64
}

// Partition appends the named partition image to the payload. The
// image must be a whole number of 4096 byte blocks. It is consumed in
// chunks of 2 MiB, each becoming one operation: an all-zero chunk
// becomes a ZERO operation carrying no payload data, any other chunk
// is stored per g.Compression.
func (g *Generator) Partition(name string, image io.ReadSeeker) error {
	info, err := NewPartitionInfo(image)
	if err != nil {
		return fmt.Errorf("hashing %s image: %w", name, err)
	}
	if info.GetSize()%metadata.BlockSize != 0 {
		return fmt.Errorf("%s image is %d bytes, not a multiple of %d",
			name, info.GetSize(), metadata.BlockSize)
	}

	if g.blobs == nil {
		f, err := os.CreateTemp("", "lode-blobs-")
		if err != nil {
			return fmt.Errorf("creating data spool: %w", err)
		}
		g.blobs = f
	}

	part := &metadata.PartitionUpdate{
		PartitionName:    proto.String(name),
		NewPartitionInfo: info,
	}

	block := uint64(0)
	chunk := make([]byte, chunkBlocks*metadata.BlockSize)
	for {
		n, err := io.ReadFull(image, chunk)
		if err == io.EOF {
			break
		}
		if err != nil && err != io.ErrUnexpectedEOF {
			return fmt.Errorf("reading %s image: %w", name, err)
		}

		op, err := g.operation(chunk[:n])
		if err != nil {
			return fmt.Errorf("encoding %s: %w", name, err)
		}

		numBlocks := uint64(n) / metadata.BlockSize
		op.DstExtents = []*metadata.Extent{{
			StartBlock: proto.Uint64(block),
			NumBlocks:  proto.Uint64(numBlocks),
		}}
		part.Operations = append(part.Operations, op)
		block += numBlocks
	}

	g.partitions = append(g.partitions, part)
	return nil
}

// operation encodes one image chunk, appending any payload data to the
// spool file.
func (g *Generator) operation(data []byte) (*metadata.InstallOperation, error) {
	if allZero(data) {
		return &metadata.InstallOperation{
			Type: metadata.InstallOperation_ZERO.Enum(),
		}, nil
	}

	typ, blob := metadata.InstallOperation_REPLACE, data
	switch g.Compression {
	case CompressNone:
	case CompressXz:
		z, err := Xz(data)
		if err != nil {
			return nil, err
		}
		if len(z) < len(data) {
			typ, blob = metadata.InstallOperation_REPLACE_XZ, z
		}
	case CompressBzip2:
		z, err := Bzip2(data)
		if err != nil {
			return nil, err
		}
		if len(z) < len(data) {
			typ, blob = metadata.InstallOperation_REPLACE_BZ, z
		}
	default:
		return nil, fmt.Errorf("unknown compression %d", g.Compression)
	}

	if _, err := g.blobs.Write(blob); err != nil {
		return nil, fmt.Errorf("spooling data: %w", err)
	}

	sum := sha256.Sum256(blob)
	op := &metadata.InstallOperation{
		Type:           typ.Enum(),
		DataOffset:     proto.Uint64(g.blobOffset),
		DataLength:     proto.Uint64(uint64(len(blob))),
		DataSha256Hash: sum[:],
	}
	g.blobOffset += uint64(len(blob))
	return op, nil
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// Write assembles the payload into a new file at path.
func (g *Generator) Write(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := g.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteTo assembles the payload: the fixed header, the manifest, and
// every operation's data in the order it was added. The signature
// block is empty; nothing here signs payloads.
func (g *Generator) WriteTo(w io.Writer) (int64, error) {
	manifest := &metadata.DeltaArchiveManifest{
		BlockSize:  proto.Uint32(metadata.BlockSize),
		Partitions: g.partitions,
	}
	if g.SecurityPatchLevel != "" {
		manifest.SecurityPatchLevel = proto.String(g.SecurityPatchLevel)
	}

	manifestBytes, err := proto.Marshal(manifest)
	if err != nil {
		return 0, fmt.Errorf("encoding manifest: %w", err)
	}

	header := metadata.DeltaArchiveHeader{
		Version:      metadata.Version,
		ManifestSize: uint64(len(manifestBytes)),
	}
	copy(header.Magic[:], metadata.Magic)

	if err := binary.Write(w, binary.BigEndian, &header); err != nil {
		return 0, fmt.Errorf("writing header: %w", err)
	}
	total := int64(metadata.HeaderSize)

	n, err := w.Write(manifestBytes)
	total += int64(n)
	if err != nil {
		return total, fmt.Errorf("writing manifest: %w", err)
	}

	if g.blobs != nil {
		if _, err := g.blobs.Seek(0, io.SeekStart); err != nil {
			return total, fmt.Errorf("rewinding data spool: %w", err)
		}
		c, err := util.CopyProgress(capnslog.DEBUG, "Writing operation data",
			w, g.blobs, int64(g.blobOffset))
		total += c
		if err != nil {
			return total, fmt.Errorf("writing operation data: %w", err)
		}
	}
	return total, nil
}

// Destroy removes the spooled operation data, leaving the Generator
// unusable.
func (g *Generator) Destroy() error {
	if g.blobs == nil {
		return nil
	}
	name := g.blobs.Name()
	err := g.blobs.Close()
	g.blobs = nil
	if rerr := os.Remove(name); err == nil {
		err = rerr
	}
	return err
}
