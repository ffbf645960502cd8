// File: internal/parsers/squashfs/fragment_table_reader.go
package squashfs

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-squashdelta/internal/interfaces"
	"github.com/deploymenttheory/go-squashdelta/internal/types"
)

// FragmentTableReader walks the fragment table: an index of group
// pointers at FragmentTableStart, each naming one metadata block that
// holds up to 512 fragment entries.
type FragmentTableReader struct {
	src          interfaces.ByteSource
	codec        interfaces.Codec
	groupOffsets []uint64
	remaining    uint32

	group      *MetadataReader
	groupIndex int
	inGroup    int
}

// NewFragmentTableReader reads the group index described by the
// superblock. An image with zero fragments yields an empty reader.
func NewFragmentTableReader(src interfaces.ByteSource, sb *types.Superblock, codec interfaces.Codec) (*FragmentTableReader, error) {
	groups := (sb.Fragments + types.FragmentsPerGroup - 1) / types.FragmentsPerGroup
	index, err := src.Bytes(sb.FragmentTableStart, uint64(groups)*8)
	if err != nil {
		return nil, fmt.Errorf("%w: fragment table index at 0x%x out of range",
			types.ErrMalformedImage, sb.FragmentTableStart)
	}

	offsets := make([]uint64, groups)
	for i := range offsets {
		offsets[i] = binary.LittleEndian.Uint64(index[i*8 : i*8+8])
	}
	return &FragmentTableReader{
		src:          src,
		codec:        codec,
		groupOffsets: offsets,
		remaining:    sb.Fragments,
	}, nil
}

// GroupOffsets returns the disk positions of the table's metadata
// blocks, one per group of 512 entries.
func (r *FragmentTableReader) GroupOffsets() []uint64 {
	return r.groupOffsets
}

// Remaining returns the number of fragment entries not yet decoded.
func (r *FragmentTableReader) Remaining() uint32 {
	return r.remaining
}

// Next decodes the next fragment entry, crossing into the following
// group's metadata block when the current one is exhausted.
func (r *FragmentTableReader) Next() (*types.FragmentEntry, error) {
	if r.remaining == 0 {
		return nil, fmt.Errorf("%w: fragment table exhausted", types.ErrInternal)
	}
	if r.group == nil || r.inGroup == types.FragmentsPerGroup {
		if err := r.openNextGroup(); err != nil {
			return nil, err
		}
	}
	r.remaining--
	r.inGroup++

	raw, err := r.group.ReadBytes(types.FragmentEntrySize)
	if err != nil {
		return nil, err
	}
	return &types.FragmentEntry{
		StartBlock: binary.LittleEndian.Uint64(raw[0:8]),
		Size:       binary.LittleEndian.Uint32(raw[8:12]),
		Unused:     binary.LittleEndian.Uint32(raw[12:16]),
	}, nil
}

func (r *FragmentTableReader) openNextGroup() error {
	if r.group != nil {
		if _, err := r.group.BlockCount(); err != nil {
			return err
		}
	}
	if r.groupIndex == len(r.groupOffsets) {
		return fmt.Errorf("%w: fragment count exceeds table index", types.ErrMalformedImage)
	}
	r.group = NewMetadataReader(r.src, r.codec, r.groupOffsets[r.groupIndex])
	r.groupIndex++
	r.inGroup = 0
	return nil
}
