// File: internal/parsers/squashfs/superblock_reader.go
package squashfs

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-squashdelta/internal/interfaces"
	"github.com/deploymenttheory/go-squashdelta/internal/types"
)

// ReadSuperblock parses and validates the superblock at offset 0.
func ReadSuperblock(src interfaces.ByteSource) (*types.Superblock, error) {
	data, err := src.Bytes(0, types.SuperblockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: image smaller than a superblock", types.ErrNotSquashFS)
	}

	endian := binary.LittleEndian

	sb := &types.Superblock{
		Magic:               endian.Uint32(data[0:4]),
		Inodes:              endian.Uint32(data[4:8]),
		MkfsTime:            endian.Uint32(data[8:12]),
		BlockSize:           endian.Uint32(data[12:16]),
		Fragments:           endian.Uint32(data[16:20]),
		Compression:         types.CompressionID(endian.Uint16(data[20:22])),
		BlockLog:            endian.Uint16(data[22:24]),
		Flags:               endian.Uint16(data[24:26]),
		NoIds:               endian.Uint16(data[26:28]),
		Major:               endian.Uint16(data[28:30]),
		Minor:               endian.Uint16(data[30:32]),
		RootInode:           endian.Uint64(data[32:40]),
		BytesUsed:           endian.Uint64(data[40:48]),
		IdTableStart:        endian.Uint64(data[48:56]),
		XattrIdTableStart:   endian.Uint64(data[56:64]),
		InodeTableStart:     endian.Uint64(data[64:72]),
		DirectoryTableStart: endian.Uint64(data[72:80]),
		FragmentTableStart:  endian.Uint64(data[80:88]),
		LookupTableStart:    endian.Uint64(data[88:96]),
	}

	if err := ValidateSuperblock(sb); err != nil {
		return nil, err
	}
	return sb, nil
}

// ValidateSuperblock checks the invariants the rest of the pipeline
// relies on.
func ValidateSuperblock(sb *types.Superblock) error {
	if sb.Magic != types.SquashFSMagic {
		return fmt.Errorf("%w: magic 0x%08x", types.ErrNotSquashFS, sb.Magic)
	}
	if sb.Major != types.MajorVersion || sb.Minor != types.MinorVersion {
		return fmt.Errorf("%w: found %d.%d, only 4.0 is supported",
			types.ErrUnsupportedVersion, sb.Major, sb.Minor)
	}
	if sb.BlockLog > 30 || sb.BlockSize != 1<<sb.BlockLog {
		return fmt.Errorf("%w: block size %d does not match block log %d",
			types.ErrBlockSizeMismatch, sb.BlockSize, sb.BlockLog)
	}
	return nil
}
