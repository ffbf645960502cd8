// File: internal/parsers/squashfs/inode_reader.go
package squashfs

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-squashdelta/internal/interfaces"
	"github.com/deploymenttheory/go-squashdelta/internal/types"
)

// InodeReader walks the inode table sequentially, decoding regular
// inodes in full and skipping every other variant by its on-disk size.
type InodeReader struct {
	meta      *MetadataReader
	remaining uint32
	blockSize uint32
	blockLog  uint16
}

// NewInodeReader opens the inode table described by the superblock.
func NewInodeReader(src interfaces.ByteSource, sb *types.Superblock, codec interfaces.Codec) *InodeReader {
	return &InodeReader{
		meta:      NewMetadataReader(src, codec, sb.InodeTableStart),
		remaining: sb.Inodes,
		blockSize: sb.BlockSize,
		blockLog:  sb.BlockLog,
	}
}

// Next decodes the next inode. It returns (nil, nil) for inode types
// that carry no data blocks; callers bound the walk with Remaining.
func (r *InodeReader) Next() (*types.RegularInode, error) {
	if r.remaining == 0 {
		return nil, fmt.Errorf("%w: inode table exhausted", types.ErrInternal)
	}
	r.remaining--

	header, err := r.meta.ReadBytes(types.InodeHeaderSize)
	if err != nil {
		return nil, err
	}
	inodeType := binary.LittleEndian.Uint16(header[0:2])

	switch inodeType {
	case types.InodeReg:
		return r.readRegular()
	case types.InodeLReg:
		return r.readExtendedRegular()
	case types.InodeDir:
		return nil, r.meta.Skip(16)
	case types.InodeLDir:
		return nil, r.skipExtendedDir()
	case types.InodeSymlink:
		return nil, r.skipSymlink(false)
	case types.InodeLSymlink:
		return nil, r.skipSymlink(true)
	case types.InodeBlkDev, types.InodeChrDev:
		return nil, r.meta.Skip(8)
	case types.InodeLBlkDev, types.InodeLChrDev:
		return nil, r.meta.Skip(12)
	case types.InodeFifo, types.InodeSocket:
		return nil, r.meta.Skip(4)
	case types.InodeLFifo, types.InodeLSocket:
		return nil, r.meta.Skip(8)
	default:
		return nil, fmt.Errorf("%w: unknown inode type %d", types.ErrMalformedImage, inodeType)
	}
}

// Remaining returns the number of inodes not yet decoded.
func (r *InodeReader) Remaining() uint32 {
	return r.remaining
}

// BlockCount reports the number of metadata blocks the table occupied,
// failing if decoding stopped mid-block.
func (r *InodeReader) BlockCount() (int, error) {
	return r.meta.BlockCount()
}

func (r *InodeReader) readRegular() (*types.RegularInode, error) {
	body, err := r.meta.ReadBytes(16)
	if err != nil {
		return nil, err
	}
	in := &types.RegularInode{
		StartBlock: uint64(binary.LittleEndian.Uint32(body[0:4])),
		Fragment:   binary.LittleEndian.Uint32(body[4:8]),
		FileSize:   uint64(binary.LittleEndian.Uint32(body[12:16])),
	}
	return r.readBlockList(in)
}

func (r *InodeReader) readExtendedRegular() (*types.RegularInode, error) {
	body, err := r.meta.ReadBytes(40)
	if err != nil {
		return nil, err
	}
	in := &types.RegularInode{
		StartBlock: binary.LittleEndian.Uint64(body[0:8]),
		FileSize:   binary.LittleEndian.Uint64(body[8:16]),
		Fragment:   binary.LittleEndian.Uint32(body[28:32]),
	}
	return r.readBlockList(in)
}

func (r *InodeReader) readBlockList(in *types.RegularInode) (*types.RegularInode, error) {
	count := types.BlockCount(in.FileSize, in.Fragment, r.blockSize, r.blockLog)
	in.BlockSizes = make([]uint32, count)
	for i := range in.BlockSizes {
		size, err := r.meta.ReadUint32()
		if err != nil {
			return nil, err
		}
		in.BlockSizes[i] = size
	}
	return in, nil
}

func (r *InodeReader) skipExtendedDir() error {
	body, err := r.meta.ReadBytes(24)
	if err != nil {
		return err
	}
	indexCount := binary.LittleEndian.Uint16(body[16:18])
	for i := uint16(0); i < indexCount; i++ {
		// Each index entry carries a name of size+1 bytes after the
		// 12-byte fixed part.
		entry, err := r.meta.ReadBytes(12)
		if err != nil {
			return err
		}
		nameSize := binary.LittleEndian.Uint32(entry[8:12])
		if err := r.meta.Skip(int(nameSize) + 1); err != nil {
			return err
		}
	}
	return nil
}

func (r *InodeReader) skipSymlink(extended bool) error {
	body, err := r.meta.ReadBytes(8)
	if err != nil {
		return err
	}
	targetSize := binary.LittleEndian.Uint32(body[4:8])
	if err := r.meta.Skip(int(targetSize)); err != nil {
		return err
	}
	if extended {
		return r.meta.Skip(4)
	}
	return nil
}
