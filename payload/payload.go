// Copyright The Lode Authors
// SPDX-License-Identifier: Apache-2.0

// Package payload reads Android OTA update payloads and reconstructs
// partition images from them.
//
// A payload is a "CrAU" envelope: a fixed 24 byte big-endian header, a
// protobuf manifest, an optional signature block, and the operation
// data region the manifest's operations point into. The envelope may
// sit at the start of a bare file or inside a zip archive as a stored
// entry named payload.bin.
//
// All reads go through an io.ReaderAt at explicit absolute offsets, so
// a Payload holds no cursor state: the header and manifest are parsed
// once when the Payload is constructed and any number of extractions
// may follow. A single Payload must not run two extractions
// concurrently; callers wanting parallelism open one Payload per
// goroutine.
package payload

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/coreos/pkg/capnslog"
	"github.com/dustin/go-humanize"
	"github.com/golang/protobuf/proto"

	"github.com/otakit/lode/payload/metadata"
)

var plog = capnslog.NewPackageLogger("github.com/otakit/lode", "payload")

// Payload is an open update payload with its header and manifest
// parsed. The exported fields are read-only views of that parse.
type Payload struct {
	source string
	f      *os.File
	r      *io.SectionReader

	Header   *metadata.DeltaArchiveHeader
	Manifest *metadata.DeltaArchiveManifest
}

// Open opens the payload at path and parses its header and manifest.
// A path ending in .zip is treated as an archive holding a stored
// payload.bin entry; anything else is read as a bare payload.
func Open(path string) (*Payload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening payload: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening payload: %w", err)
	}

	base, size := int64(0), fi.Size()
	if strings.HasSuffix(path, ".zip") {
		base, size, err = zipPayloadRange(f, fi.Size())
		if err != nil {
			f.Close()
			return nil, err
		}
		plog.Debugf("Found payload.bin at offset %d in %s", base, path)
	}

	p := &Payload{
		source: path,
		f:      f,
		r:      io.NewSectionReader(f, base, size),
	}
	if err := p.parse(); err != nil {
		f.Close()
		return nil, err
	}
	return p, nil
}

// NewPayloadFrom parses a payload from ra, which holds size bytes of
// payload envelope starting at offset 0.
func NewPayloadFrom(ra io.ReaderAt, size int64) (*Payload, error) {
	p := &Payload{
		source: "payload",
		r:      io.NewSectionReader(ra, 0, size),
	}
	if err := p.parse(); err != nil {
		return nil, err
	}
	return p, nil
}

// Close releases the backing file, if Open provided one.
func (p *Payload) Close() error {
	if p.f == nil {
		return nil
	}
	return p.f.Close()
}

func (p *Payload) parse() error {
	header, err := p.readHeader()
	if err != nil {
		return err
	}

	manifest, err := p.readManifest(header)
	if err != nil {
		return err
	}

	p.Header = header
	p.Manifest = manifest
	return nil
}

// readHeader reads and validates the fixed envelope header at the
// start of the payload.
func (p *Payload) readHeader() (*metadata.DeltaArchiveHeader, error) {
	var header metadata.DeltaArchiveHeader
	sr := io.NewSectionReader(p.r, 0, metadata.HeaderSize)
	if err := binary.Read(sr, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("reading payload header: %w", err)
	}

	if string(header.Magic[:]) != metadata.Magic {
		return nil, ErrBadMagic
	}
	if header.Version != metadata.Version {
		return nil, &UnsupportedVersionError{Version: header.Version}
	}
	return &header, nil
}

// readManifest decodes the manifest immediately following the header.
// The manifest length comes off the wire, so the bound is checked by
// subtraction; adding it to the header size could wrap.
func (p *Payload) readManifest(header *metadata.DeltaArchiveHeader) (*metadata.DeltaArchiveManifest, error) {
	size := uint64(p.r.Size())
	if size < metadata.HeaderSize || header.ManifestSize > size-metadata.HeaderSize {
		return nil, fmt.Errorf("%w: manifest length %d exceeds payload size %d",
			ErrManifestDecode, header.ManifestSize, p.r.Size())
	}

	buf := make([]byte, header.ManifestSize)
	if len(buf) > 0 {
		if _, err := p.r.ReadAt(buf, metadata.HeaderSize); err != nil {
			return nil, fmt.Errorf("%w: reading %d manifest bytes: %v",
				ErrManifestDecode, header.ManifestSize, err)
		}
	}

	manifest := new(metadata.DeltaArchiveManifest)
	if err := proto.Unmarshal(buf, manifest); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestDecode, err)
	}
	return manifest, nil
}

// dataRegionSize is the byte count of the operation data region, zero
// when the data offset lies at or past the end of the payload.
func (p *Payload) dataRegionSize() uint64 {
	if total := uint64(p.r.Size()); total > p.Header.DataOffset() {
		return total - p.Header.DataOffset()
	}
	return 0
}

// Partition returns the manifest entry for the named partition.
func (p *Payload) Partition(name string) (*metadata.PartitionUpdate, error) {
	for _, part := range p.Manifest.GetPartitions() {
		if part.GetPartitionName() == name {
			return part, nil
		}
	}
	return nil, &PartitionNotFoundError{Source: p.source, Partition: name}
}

// PartitionList renders a summary of the payload header followed by
// one line per partition: name, new image size in bytes, and the
// declared SHA-256 hash of the new image.
func (p *Payload) PartitionList() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Version: %d\n", p.Header.Version)
	fmt.Fprintf(&b, "Manifest length: %d\n", p.Header.ManifestSize)
	fmt.Fprintf(&b, "Signature length: %d\n", p.Header.SignatureSize)
	fmt.Fprintf(&b, "Block size: %d\n", p.Manifest.GetBlockSize())
	fmt.Fprintf(&b, "Minor version: %d\n", p.Manifest.GetMinorVersion())
	if p.Manifest.SecurityPatchLevel != nil {
		fmt.Fprintf(&b, "Security patch level: %s\n", p.Manifest.GetSecurityPatchLevel())
	}
	fmt.Fprintf(&b, "Partitions: %d\n", len(p.Manifest.GetPartitions()))

	for _, part := range p.Manifest.GetPartitions() {
		info := part.GetNewPartitionInfo()
		fmt.Fprintf(&b, "%s %d (%s) %s\n",
			part.GetPartitionName(),
			info.GetSize(),
			humanize.Bytes(info.GetSize()),
			hex.EncodeToString(info.GetHash()))
	}
	return b.String()
}
