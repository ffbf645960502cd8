// File: internal/services/collector.go
package services

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spaolacci/murmur3"

	"github.com/deploymenttheory/go-squashdelta/internal/compression"
	"github.com/deploymenttheory/go-squashdelta/internal/interfaces"
	"github.com/deploymenttheory/go-squashdelta/internal/parsers/squashfs"
	"github.com/deploymenttheory/go-squashdelta/internal/types"
)

// Collection is everything the later pipeline stages need from one
// parsed image: its superblock and the compressed blocks found in it,
// metadata blocks first, data blocks in ascending offset order after.
type Collection struct {
	Superblock *types.Superblock
	Blocks     []types.BlockDescriptor
}

// Collector parses images into Collections. One collector serves both
// images of a run so the codec resolved from the first superblock is
// validated against, and reused for, the second.
type Collector struct {
	codec  interfaces.Codec
	logger *logrus.Entry
}

// NewCollector returns a collector with no codec bound yet.
func NewCollector(logger *logrus.Logger) *Collector {
	return &Collector{logger: logger.WithField("service", "collector")}
}

// Codec returns the codec resolved from the first collected image, or
// nil before any collection ran.
func (c *Collector) Codec() interfaces.Codec {
	return c.codec
}

// Collect parses one image end to end: superblock, codec options,
// inode table, fragment table, then the sorted and offset-deduplicated
// block list.
func (c *Collector) Collect(src interfaces.ByteSource) (*Collection, error) {
	sb, err := squashfs.ReadSuperblock(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Path(), err)
	}
	c.logger.WithFields(logrus.Fields{
		"image":       src.Path(),
		"compression": sb.Compression.String(),
		"block_size":  sb.BlockSize,
		"inodes":      sb.Inodes,
		"fragments":   sb.Fragments,
	}).Debug("superblock parsed")

	if err := c.bindCodec(src, sb); err != nil {
		return nil, err
	}

	data, metaCount, err := c.collectInodeBlocks(src, sb)
	if err != nil {
		return nil, fmt.Errorf("%s: inode table: %w", src.Path(), err)
	}
	metadata, err := c.hashMetadataRun(src, sb.InodeTableStart, metaCount)
	if err != nil {
		return nil, fmt.Errorf("%s: inode table: %w", src.Path(), err)
	}

	if sb.Fragments > 0 {
		fragData, groupOffsets, err := c.collectFragmentBlocks(src, sb)
		if err != nil {
			return nil, fmt.Errorf("%s: fragment table: %w", src.Path(), err)
		}
		data = append(data, fragData...)
		for _, off := range groupOffsets {
			group, err := c.hashMetadataRun(src, off, 1)
			if err != nil {
				return nil, fmt.Errorf("%s: fragment table: %w", src.Path(), err)
			}
			metadata = append(metadata, group...)
		}
	}

	data, err = finishDataBlocks(src, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Path(), err)
	}

	c.logger.WithFields(logrus.Fields{
		"image":           src.Path(),
		"metadata_blocks": len(metadata),
		"data_blocks":     len(data),
	}).Info("image collected")

	return &Collection{
		Superblock: sb,
		Blocks:     append(metadata, data...),
	}, nil
}

// bindCodec resolves the codec on first use, enforces identifier
// equality on the second image, and feeds it the optional options
// block that follows the superblock.
func (c *Collector) bindCodec(src interfaces.ByteSource, sb *types.Superblock) error {
	if c.codec == nil {
		codec, err := compression.Resolve(sb.Compression)
		if err != nil {
			return fmt.Errorf("%s: %w", src.Path(), err)
		}
		c.codec = codec
	} else {
		if c.codec.ID() != sb.Compression {
			return fmt.Errorf("%w: %s uses %s, expected %s", types.ErrCodecMismatch,
				src.Path(), sb.Compression, c.codec.ID())
		}
		c.codec.Reset()
	}

	var options []byte
	if sb.HasCompressorOptions() {
		reader := squashfs.NewBlockReader(src, c.codec, types.SuperblockSize)
		block, err := reader.NextRaw()
		if err != nil {
			return fmt.Errorf("%s: compression options: %w", src.Path(), err)
		}
		if block.Compressed {
			return fmt.Errorf("%w: %s: compressed compression-options block",
				types.ErrMalformedImage, src.Path())
		}
		options = block.Payload
	}
	if err := c.codec.Configure(options); err != nil {
		return fmt.Errorf("%s: %w", src.Path(), err)
	}
	return nil
}

// collectInodeBlocks walks every inode and returns the unhashed data
// descriptors plus the number of metadata blocks the table spanned.
func (c *Collector) collectInodeBlocks(src interfaces.ByteSource, sb *types.Superblock) ([]types.BlockDescriptor, int, error) {
	inodes := squashfs.NewInodeReader(src, sb, c.codec)
	var data []types.BlockDescriptor
	for inodes.Remaining() > 0 {
		inode, err := inodes.Next()
		if err != nil {
			return nil, 0, err
		}
		if inode == nil {
			continue
		}
		offset := inode.StartBlock
		for _, word := range inode.BlockSizes {
			length := word &^ types.DataBlockUncompressed
			switch {
			case length == 0:
				// sparse hole
			case word&types.DataBlockUncompressed != 0:
				offset += uint64(length)
			default:
				data = append(data, types.BlockDescriptor{Offset: offset, Length: length})
				offset += uint64(length)
			}
		}
	}
	count, err := inodes.BlockCount()
	if err != nil {
		return nil, 0, err
	}
	return data, count, nil
}

// collectFragmentBlocks walks the fragment table and returns unhashed
// data descriptors for compressed fragments plus the table's group
// block offsets.
func (c *Collector) collectFragmentBlocks(src interfaces.ByteSource, sb *types.Superblock) ([]types.BlockDescriptor, []uint64, error) {
	fragments, err := squashfs.NewFragmentTableReader(src, sb, c.codec)
	if err != nil {
		return nil, nil, err
	}
	var data []types.BlockDescriptor
	for fragments.Remaining() > 0 {
		entry, err := fragments.Next()
		if err != nil {
			return nil, nil, err
		}
		length := entry.Size &^ types.DataBlockUncompressed
		if length == 0 || entry.Size&types.DataBlockUncompressed != 0 {
			continue
		}
		data = append(data, types.BlockDescriptor{Offset: entry.StartBlock, Length: length})
	}
	return data, fragments.GroupOffsets(), nil
}

// hashMetadataRun re-reads count metadata blocks starting at start and
// returns descriptors for the compressed ones, hashed as stored.
func (c *Collector) hashMetadataRun(src interfaces.ByteSource, start uint64, count int) ([]types.BlockDescriptor, error) {
	reader := squashfs.NewBlockReader(src, c.codec, start)
	var out []types.BlockDescriptor
	for i := 0; i < count; i++ {
		block, err := reader.NextRaw()
		if err != nil {
			return nil, err
		}
		if !block.Compressed {
			continue
		}
		out = append(out, types.BlockDescriptor{
			Offset: block.DiskOffset,
			Length: block.DiskLength,
			Hash:   murmur3.Sum32WithSeed(block.Payload, 0),
		})
	}
	return out, nil
}

// finishDataBlocks sorts the data list by offset, drops exact-offset
// duplicates, verifies the spans do not overlap, and hashes the
// survivors from their on-disk bytes.
func finishDataBlocks(src interfaces.ByteSource, data []types.BlockDescriptor) ([]types.BlockDescriptor, error) {
	sort.Slice(data, func(i, j int) bool { return data[i].Offset < data[j].Offset })

	out := data[:0]
	for i := range data {
		if len(out) > 0 {
			prev := &out[len(out)-1]
			if data[i].Offset == prev.Offset {
				if data[i].Length != prev.Length {
					return nil, fmt.Errorf("%w: blocks at 0x%x disagree on length (%d vs %d)",
						types.ErrMalformedImage, data[i].Offset, data[i].Length, prev.Length)
				}
				continue
			}
			if data[i].Offset < prev.End() {
				return nil, fmt.Errorf("%w: block at 0x%x overlaps block at 0x%x",
					types.ErrMalformedImage, data[i].Offset, prev.Offset)
			}
		}
		raw, err := src.Bytes(data[i].Offset, uint64(data[i].Length))
		if err != nil {
			return nil, fmt.Errorf("%w: data block at 0x%x out of range",
				types.ErrMalformedImage, data[i].Offset)
		}
		data[i].Hash = murmur3.Sum32WithSeed(raw, 0)
		out = append(out, data[i])
	}
	return out, nil
}
