// Copyright The Lode Authors
// SPDX-License-Identifier: Apache-2.0

// Protocol buffer model for update_metadata.proto, maintained by hand
// against the legacy github.com/golang/protobuf API. The runtime derives
// the wire format from the struct tags, so a schema change must update
// both the .proto file and the tags here.

package metadata

import (
	fmt "fmt"
	math "math"

	proto "github.com/golang/protobuf/proto"
)

// Reference imports to suppress errors if they are not otherwise used.
var _ = proto.Marshal
var _ = fmt.Errorf
var _ = math.Inf

type InstallOperation_Type int32

const (
	InstallOperation_REPLACE    InstallOperation_Type = 0
	InstallOperation_REPLACE_BZ InstallOperation_Type = 1
	// Deprecated: Do not use.
	InstallOperation_MOVE InstallOperation_Type = 2
	// Deprecated: Do not use.
	InstallOperation_BSDIFF           InstallOperation_Type = 3
	InstallOperation_SOURCE_COPY      InstallOperation_Type = 4
	InstallOperation_SOURCE_BSDIFF    InstallOperation_Type = 5
	InstallOperation_ZERO             InstallOperation_Type = 6
	InstallOperation_DISCARD          InstallOperation_Type = 7
	InstallOperation_REPLACE_XZ       InstallOperation_Type = 8
	InstallOperation_PUFFDIFF         InstallOperation_Type = 9
	InstallOperation_BROTLI_BSDIFF    InstallOperation_Type = 10
	InstallOperation_ZUCCHINI         InstallOperation_Type = 11
	InstallOperation_LZ4DIFF_BSDIFF   InstallOperation_Type = 12
	InstallOperation_LZ4DIFF_PUFFDIFF InstallOperation_Type = 13
	InstallOperation_ZSTD             InstallOperation_Type = 14
)

var InstallOperation_Type_name = map[int32]string{
	0:  "REPLACE",
	1:  "REPLACE_BZ",
	2:  "MOVE",
	3:  "BSDIFF",
	4:  "SOURCE_COPY",
	5:  "SOURCE_BSDIFF",
	6:  "ZERO",
	7:  "DISCARD",
	8:  "REPLACE_XZ",
	9:  "PUFFDIFF",
	10: "BROTLI_BSDIFF",
	11: "ZUCCHINI",
	12: "LZ4DIFF_BSDIFF",
	13: "LZ4DIFF_PUFFDIFF",
	14: "ZSTD",
}

var InstallOperation_Type_value = map[string]int32{
	"REPLACE":          0,
	"REPLACE_BZ":       1,
	"MOVE":             2,
	"BSDIFF":           3,
	"SOURCE_COPY":      4,
	"SOURCE_BSDIFF":    5,
	"ZERO":             6,
	"DISCARD":          7,
	"REPLACE_XZ":       8,
	"PUFFDIFF":         9,
	"BROTLI_BSDIFF":    10,
	"ZUCCHINI":         11,
	"LZ4DIFF_BSDIFF":   12,
	"LZ4DIFF_PUFFDIFF": 13,
	"ZSTD":             14,
}

func (x InstallOperation_Type) Enum() *InstallOperation_Type {
	p := new(InstallOperation_Type)
	*p = x
	return p
}

func (x InstallOperation_Type) String() string {
	return proto.EnumName(InstallOperation_Type_name, int32(x))
}

func (x *InstallOperation_Type) UnmarshalJSON(data []byte) error {
	value, err := proto.UnmarshalJSONEnum(InstallOperation_Type_value, data, "InstallOperation_Type")
	if err != nil {
		return err
	}
	*x = InstallOperation_Type(value)
	return nil
}

// A sequence of blocks on a partition image.
type Extent struct {
	StartBlock       *uint64 `protobuf:"varint,1,opt,name=start_block,json=startBlock" json:"start_block,omitempty"`
	NumBlocks        *uint64 `protobuf:"varint,2,opt,name=num_blocks,json=numBlocks" json:"num_blocks,omitempty"`
	XXX_unrecognized []byte  `json:"-"`
}

func (m *Extent) Reset()         { *m = Extent{} }
func (m *Extent) String() string { return proto.CompactTextString(m) }
func (*Extent) ProtoMessage()    {}

func (m *Extent) GetStartBlock() uint64 {
	if m != nil && m.StartBlock != nil {
		return *m.StartBlock
	}
	return 0
}

func (m *Extent) GetNumBlocks() uint64 {
	if m != nil && m.NumBlocks != nil {
		return *m.NumBlocks
	}
	return 0
}

// Signature blobs covering the payload or a partition.
type Signatures struct {
	Signatures       []*Signatures_Signature `protobuf:"bytes,1,rep,name=signatures" json:"signatures,omitempty"`
	XXX_unrecognized []byte                  `json:"-"`
}

func (m *Signatures) Reset()         { *m = Signatures{} }
func (m *Signatures) String() string { return proto.CompactTextString(m) }
func (*Signatures) ProtoMessage()    {}

func (m *Signatures) GetSignatures() []*Signatures_Signature {
	if m != nil {
		return m.Signatures
	}
	return nil
}

type Signatures_Signature struct {
	// Deprecated: Do not use.
	Version *uint32 `protobuf:"varint,1,opt,name=version" json:"version,omitempty"`
	Data    []byte  `protobuf:"bytes,2,opt,name=data" json:"data,omitempty"`
	// The signature blob is zero padded; this is the size before padding.
	UnpaddedSignatureSize *uint32 `protobuf:"fixed32,3,opt,name=unpadded_signature_size,json=unpaddedSignatureSize" json:"unpadded_signature_size,omitempty"`
	XXX_unrecognized      []byte  `json:"-"`
}

func (m *Signatures_Signature) Reset()         { *m = Signatures_Signature{} }
func (m *Signatures_Signature) String() string { return proto.CompactTextString(m) }
func (*Signatures_Signature) ProtoMessage()    {}

// Deprecated: Do not use.
func (m *Signatures_Signature) GetVersion() uint32 {
	if m != nil && m.Version != nil {
		return *m.Version
	}
	return 0
}

func (m *Signatures_Signature) GetData() []byte {
	if m != nil {
		return m.Data
	}
	return nil
}

func (m *Signatures_Signature) GetUnpaddedSignatureSize() uint32 {
	if m != nil && m.UnpaddedSignatureSize != nil {
		return *m.UnpaddedSignatureSize
	}
	return 0
}

type PartitionInfo struct {
	Size             *uint64 `protobuf:"varint,1,opt,name=size" json:"size,omitempty"`
	Hash             []byte  `protobuf:"bytes,2,opt,name=hash" json:"hash,omitempty"`
	XXX_unrecognized []byte  `json:"-"`
}

func (m *PartitionInfo) Reset()         { *m = PartitionInfo{} }
func (m *PartitionInfo) String() string { return proto.CompactTextString(m) }
func (*PartitionInfo) ProtoMessage()    {}

func (m *PartitionInfo) GetSize() uint64 {
	if m != nil && m.Size != nil {
		return *m.Size
	}
	return 0
}

func (m *PartitionInfo) GetHash() []byte {
	if m != nil {
		return m.Hash
	}
	return nil
}

type InstallOperation struct {
	Type             *InstallOperation_Type `protobuf:"varint,1,req,name=type,enum=chromeos_update_engine.InstallOperation_Type" json:"type,omitempty"`
	DataOffset       *uint64                `protobuf:"varint,2,opt,name=data_offset,json=dataOffset" json:"data_offset,omitempty"`
	DataLength       *uint64                `protobuf:"varint,3,opt,name=data_length,json=dataLength" json:"data_length,omitempty"`
	SrcExtents       []*Extent              `protobuf:"bytes,4,rep,name=src_extents,json=srcExtents" json:"src_extents,omitempty"`
	SrcLength        *uint64                `protobuf:"varint,5,opt,name=src_length,json=srcLength" json:"src_length,omitempty"`
	DstExtents       []*Extent              `protobuf:"bytes,6,rep,name=dst_extents,json=dstExtents" json:"dst_extents,omitempty"`
	DstLength        *uint64                `protobuf:"varint,7,opt,name=dst_length,json=dstLength" json:"dst_length,omitempty"`
	DataSha256Hash   []byte                 `protobuf:"bytes,8,opt,name=data_sha256_hash,json=dataSha256Hash" json:"data_sha256_hash,omitempty"`
	SrcSha256Hash    []byte                 `protobuf:"bytes,9,opt,name=src_sha256_hash,json=srcSha256Hash" json:"src_sha256_hash,omitempty"`
	XXX_unrecognized []byte                 `json:"-"`
}

func (m *InstallOperation) Reset()         { *m = InstallOperation{} }
func (m *InstallOperation) String() string { return proto.CompactTextString(m) }
func (*InstallOperation) ProtoMessage()    {}

func (m *InstallOperation) GetType() InstallOperation_Type {
	if m != nil && m.Type != nil {
		return *m.Type
	}
	return InstallOperation_REPLACE
}

func (m *InstallOperation) GetDataOffset() uint64 {
	if m != nil && m.DataOffset != nil {
		return *m.DataOffset
	}
	return 0
}

func (m *InstallOperation) GetDataLength() uint64 {
	if m != nil && m.DataLength != nil {
		return *m.DataLength
	}
	return 0
}

func (m *InstallOperation) GetSrcExtents() []*Extent {
	if m != nil {
		return m.SrcExtents
	}
	return nil
}

func (m *InstallOperation) GetSrcLength() uint64 {
	if m != nil && m.SrcLength != nil {
		return *m.SrcLength
	}
	return 0
}

func (m *InstallOperation) GetDstExtents() []*Extent {
	if m != nil {
		return m.DstExtents
	}
	return nil
}

func (m *InstallOperation) GetDstLength() uint64 {
	if m != nil && m.DstLength != nil {
		return *m.DstLength
	}
	return 0
}

func (m *InstallOperation) GetDataSha256Hash() []byte {
	if m != nil {
		return m.DataSha256Hash
	}
	return nil
}

func (m *InstallOperation) GetSrcSha256Hash() []byte {
	if m != nil {
		return m.SrcSha256Hash
	}
	return nil
}

// Describes the update to a single partition.
type PartitionUpdate struct {
	PartitionName    *string             `protobuf:"bytes,1,req,name=partition_name,json=partitionName" json:"partition_name,omitempty"`
	OldPartitionInfo *PartitionInfo      `protobuf:"bytes,6,opt,name=old_partition_info,json=oldPartitionInfo" json:"old_partition_info,omitempty"`
	NewPartitionInfo *PartitionInfo      `protobuf:"bytes,7,opt,name=new_partition_info,json=newPartitionInfo" json:"new_partition_info,omitempty"`
	Operations       []*InstallOperation `protobuf:"bytes,8,rep,name=operations" json:"operations,omitempty"`
	Version          *string             `protobuf:"bytes,17,opt,name=version" json:"version,omitempty"`
	XXX_unrecognized []byte              `json:"-"`
}

func (m *PartitionUpdate) Reset()         { *m = PartitionUpdate{} }
func (m *PartitionUpdate) String() string { return proto.CompactTextString(m) }
func (*PartitionUpdate) ProtoMessage()    {}

func (m *PartitionUpdate) GetPartitionName() string {
	if m != nil && m.PartitionName != nil {
		return *m.PartitionName
	}
	return ""
}

func (m *PartitionUpdate) GetOldPartitionInfo() *PartitionInfo {
	if m != nil {
		return m.OldPartitionInfo
	}
	return nil
}

func (m *PartitionUpdate) GetNewPartitionInfo() *PartitionInfo {
	if m != nil {
		return m.NewPartitionInfo
	}
	return nil
}

func (m *PartitionUpdate) GetOperations() []*InstallOperation {
	if m != nil {
		return m.Operations
	}
	return nil
}

func (m *PartitionUpdate) GetVersion() string {
	if m != nil && m.Version != nil {
		return *m.Version
	}
	return ""
}

type DeltaArchiveManifest struct {
	BlockSize        *uint32 `protobuf:"varint,3,opt,name=block_size,json=blockSize,def=4096" json:"block_size,omitempty"`
	SignaturesOffset *uint64 `protobuf:"varint,4,opt,name=signatures_offset,json=signaturesOffset" json:"signatures_offset,omitempty"`
	SignaturesSize   *uint64 `protobuf:"varint,5,opt,name=signatures_size,json=signaturesSize" json:"signatures_size,omitempty"`
	MinorVersion     *uint32 `protobuf:"varint,12,opt,name=minor_version,json=minorVersion,def=0" json:"minor_version,omitempty"`
	// Only present in major version 2 or newer.
	Partitions         []*PartitionUpdate `protobuf:"bytes,13,rep,name=partitions" json:"partitions,omitempty"`
	MaxTimestamp       *int64             `protobuf:"varint,14,opt,name=max_timestamp,json=maxTimestamp" json:"max_timestamp,omitempty"`
	SecurityPatchLevel *string            `protobuf:"bytes,18,opt,name=security_patch_level,json=securityPatchLevel" json:"security_patch_level,omitempty"`
	XXX_unrecognized   []byte             `json:"-"`
}

func (m *DeltaArchiveManifest) Reset()         { *m = DeltaArchiveManifest{} }
func (m *DeltaArchiveManifest) String() string { return proto.CompactTextString(m) }
func (*DeltaArchiveManifest) ProtoMessage()    {}

const Default_DeltaArchiveManifest_BlockSize uint32 = 4096
const Default_DeltaArchiveManifest_MinorVersion uint32 = 0

func (m *DeltaArchiveManifest) GetBlockSize() uint32 {
	if m != nil && m.BlockSize != nil {
		return *m.BlockSize
	}
	return Default_DeltaArchiveManifest_BlockSize
}

func (m *DeltaArchiveManifest) GetSignaturesOffset() uint64 {
	if m != nil && m.SignaturesOffset != nil {
		return *m.SignaturesOffset
	}
	return 0
}

func (m *DeltaArchiveManifest) GetSignaturesSize() uint64 {
	if m != nil && m.SignaturesSize != nil {
		return *m.SignaturesSize
	}
	return 0
}

func (m *DeltaArchiveManifest) GetMinorVersion() uint32 {
	if m != nil && m.MinorVersion != nil {
		return *m.MinorVersion
	}
	return Default_DeltaArchiveManifest_MinorVersion
}

func (m *DeltaArchiveManifest) GetPartitions() []*PartitionUpdate {
	if m != nil {
		return m.Partitions
	}
	return nil
}

func (m *DeltaArchiveManifest) GetMaxTimestamp() int64 {
	if m != nil && m.MaxTimestamp != nil {
		return *m.MaxTimestamp
	}
	return 0
}

func (m *DeltaArchiveManifest) GetSecurityPatchLevel() string {
	if m != nil && m.SecurityPatchLevel != nil {
		return *m.SecurityPatchLevel
	}
	return ""
}

func init() {
	proto.RegisterEnum("chromeos_update_engine.InstallOperation_Type", InstallOperation_Type_name, InstallOperation_Type_value)
	proto.RegisterType((*Extent)(nil), "chromeos_update_engine.Extent")
	proto.RegisterType((*Signatures)(nil), "chromeos_update_engine.Signatures")
	proto.RegisterType((*Signatures_Signature)(nil), "chromeos_update_engine.Signatures.Signature")
	proto.RegisterType((*PartitionInfo)(nil), "chromeos_update_engine.PartitionInfo")
	proto.RegisterType((*InstallOperation)(nil), "chromeos_update_engine.InstallOperation")
	proto.RegisterType((*PartitionUpdate)(nil), "chromeos_update_engine.PartitionUpdate")
	proto.RegisterType((*DeltaArchiveManifest)(nil), "chromeos_update_engine.DeltaArchiveManifest")
}
