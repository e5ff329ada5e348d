// Copyright The Lode Authors
// SPDX-License-Identifier: Apache-2.0

package payload

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/otakit/lode/payload/metadata"
)

// verifyChunkSize is the read granularity for hashing a reconstructed
// image, independent of operation boundaries.
const verifyChunkSize = 64 * 1024

// verifyImage re-reads the image written at path and compares its
// SHA-256 digest against the manifest's declared hash for part.
func (p *Payload) verifyImage(part *metadata.PartitionUpdate, path string, verify VerifyFunc) error {
	if err := notifyVerify(verify, VerifyStarted); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("reopening output: %w", err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.CopyBuffer(hasher, f, make([]byte, verifyChunkSize)); err != nil {
		return fmt.Errorf("hashing output: %w", err)
	}

	computed := hex.EncodeToString(hasher.Sum(nil))
	declared := hex.EncodeToString(part.GetNewPartitionInfo().GetHash())
	if computed != declared {
		if err := notifyVerify(verify, VerifyFailed); err != nil {
			plog.Errorf("Reporting failed verification of %s: %v", part.GetPartitionName(), err)
		}
		return &PartitionHashMismatchError{Partition: part.GetPartitionName(), Hash: computed}
	}
	return notifyVerify(verify, VerifyPassed)
}

func notifyVerify(verify VerifyFunc, state VerifyState) error {
	if verify == nil {
		return nil
	}
	if err := verify(state); err != nil {
		return fmt.Errorf("%w: %w", ErrCallback, err)
	}
	return nil
}

// VerifyData checks every operation in the payload without writing any
// output: each operation must have a destination extent, its data
// range must lie inside the data region, and its source bytes must
// match the declared SHA-256 hash when one is present.
func (p *Payload) VerifyData() error {
	dataOffset := p.Header.DataOffset()
	dataSize := p.dataRegionSize()

	for _, part := range p.Manifest.GetPartitions() {
		name := part.GetPartitionName()
		for i, op := range part.GetOperations() {
			if len(op.GetDstExtents()) == 0 {
				return &InvalidExtentError{Partition: name, Index: i}
			}
			if op.GetDataLength() == 0 {
				continue
			}
			if err := checkDataRange(op, dataSize, name, i); err != nil {
				return err
			}

			data := make([]byte, op.GetDataLength())
			if _, err := p.r.ReadAt(data, int64(dataOffset)+int64(op.GetDataOffset())); err != nil {
				return fmt.Errorf("partition %s operation %d: %w", name, i, err)
			}
			sum := sha256.Sum256(data)
			if declared := op.GetDataSha256Hash(); len(declared) > 0 && !bytes.Equal(sum[:], declared) {
				return &OperationHashMismatchError{Partition: name, Type: op.GetType()}
			}
		}
	}
	return nil
}
