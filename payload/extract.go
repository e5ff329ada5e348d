// Copyright The Lode Authors
// SPDX-License-Identifier: Apache-2.0

package payload

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"github.com/otakit/lode/payload/metadata"
	"github.com/otakit/lode/util"
)

// ProgressFunc observes extraction progress as a whole percentage of
// completed operations for the partition being extracted. It is
// invoked once per operation with a non-decreasing value ending at
// 100. A non-nil return aborts the extraction.
type ProgressFunc func(percent int) error

// VerifyFunc observes the verification of a reconstructed image. It is
// invoked with VerifyStarted once all operations are applied, then
// exactly once more with VerifyPassed or VerifyFailed. A non-nil
// return aborts the extraction.
type VerifyFunc func(state VerifyState) error

// VerifyState is a phase of output verification.
type VerifyState int

const (
	VerifyStarted VerifyState = iota
	VerifyPassed
	VerifyFailed
)

func (s VerifyState) String() string {
	switch s {
	case VerifyStarted:
		return "started"
	case VerifyPassed:
		return "passed"
	case VerifyFailed:
		return "failed"
	}
	return fmt.Sprintf("VerifyState(%d)", int(s))
}

// Extract reconstructs the named partition into a new file at outPath.
//
// Operations are applied in manifest order, each appending its decoded
// bytes to the output; afterwards the output is re-read and its
// SHA-256 digest compared against the hash declared in the manifest.
// Any failure aborts immediately and leaves the partial output file in
// place. progress and verify may be nil.
func (p *Payload) Extract(partition, outPath string, progress ProgressFunc, verify VerifyFunc) error {
	part, err := p.Partition(partition)
	if err != nil {
		return err
	}
	plog.Debugf("Extracting %s (%d operations) to %s",
		partition, len(part.GetOperations()), outPath)

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}

	err = p.applyOperations(part, out, progress)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("closing output: %w", cerr)
	}
	if err != nil {
		return err
	}

	return p.verifyImage(part, outPath, verify)
}

// applyOperations walks the partition's operations in order, writing
// each decoded result sequentially to out.
func (p *Payload) applyOperations(part *metadata.PartitionUpdate, out io.Writer, progress ProgressFunc) error {
	name := part.GetPartitionName()
	ops := part.GetOperations()
	dataOffset := int64(p.Header.DataOffset())
	dataSize := p.dataRegionSize()

	for i, op := range ops {
		if len(op.GetDstExtents()) == 0 {
			return &InvalidExtentError{Partition: name, Index: i}
		}
		dst := op.GetDstExtents()[0]
		expected := dst.GetNumBlocks() * metadata.BlockSize

		if err := checkDataRange(op, dataSize, name, i); err != nil {
			return err
		}

		data := make([]byte, op.GetDataLength())
		if len(data) > 0 {
			if _, err := p.r.ReadAt(data, dataOffset+int64(op.GetDataOffset())); err != nil {
				return fmt.Errorf("partition %s operation %d: reading %d data bytes: %w",
					name, i, op.GetDataLength(), err)
			}
		}

		sum := sha256.Sum256(data)
		if declared := op.GetDataSha256Hash(); len(declared) > 0 && !bytes.Equal(sum[:], declared) {
			return &OperationHashMismatchError{Partition: name, Type: op.GetType()}
		}

		written, err := applyOperation(op, data, expected, out)
		if err != nil {
			return fmt.Errorf("partition %s operation %d: %w", name, i, err)
		}
		if written != expected {
			return &ShortWriteError{Written: written, Expected: expected}
		}

		if progress != nil {
			if err := progress((i + 1) * 100 / len(ops)); err != nil {
				return fmt.Errorf("%w: %w", ErrCallback, err)
			}
		}
	}
	return nil
}

// checkDataRange rejects an operation whose declared source bytes do
// not lie inside the payload's data region. Offset and length come off
// the wire, so the bound is checked by subtraction; their sum could
// wrap.
func checkDataRange(op *metadata.InstallOperation, dataSize uint64, partition string, index int) error {
	length := op.GetDataLength()
	if length == 0 {
		return nil
	}
	if length > dataSize || op.GetDataOffset() > dataSize-length {
		return fmt.Errorf("partition %s operation %d: %d data bytes at offset %d outside %d byte data region",
			partition, index, length, op.GetDataOffset(), dataSize)
	}
	return nil
}

// applyOperation decodes one operation's source data into out and
// returns the number of bytes written. expected is the byte size of
// the operation's destination extent; only the zero kind consumes it.
func applyOperation(op *metadata.InstallOperation, data []byte, expected uint64, out io.Writer) (uint64, error) {
	switch typ := op.GetType(); typ {
	case metadata.InstallOperation_REPLACE:
		n, err := out.Write(data)
		return uint64(n), err
	case metadata.InstallOperation_REPLACE_XZ:
		n, err := util.Unxz(out, bytes.NewReader(data))
		return uint64(n), err
	case metadata.InstallOperation_REPLACE_BZ:
		n, err := util.Bunzip2(out, bytes.NewReader(data))
		return uint64(n), err
	case metadata.InstallOperation_ZERO:
		n, err := io.CopyN(out, zeroReader{}, int64(expected))
		return uint64(n), err
	default:
		return 0, &UnsupportedOperationError{Type: typ}
	}
}

// zeroReader reads an endless stream of zero bytes.
type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}
