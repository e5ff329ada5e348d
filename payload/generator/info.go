// Copyright The Lode Authors
// SPDX-License-Identifier: Apache-2.0

package generator

import (
	"crypto/sha256"
	"io"

	"github.com/golang/protobuf/proto"

	"github.com/otakit/lode/payload/metadata"
)

// NewPartitionInfo computes the size and SHA-256 hash the manifest
// declares for a partition image, leaving r positioned back at the
// start.
func NewPartitionInfo(r io.ReadSeeker) (*metadata.PartitionInfo, error) {
	sha := sha256.New()
	size, err := io.Copy(sha, r)
	if err != nil {
		return nil, err
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	return &metadata.PartitionInfo{
		Hash: sha.Sum(nil),
		Size: proto.Uint64(uint64(size)),
	}, nil
}
