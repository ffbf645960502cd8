// File: internal/services/expander.go
package services

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-squashdelta/internal/interfaces"
	"github.com/deploymenttheory/go-squashdelta/internal/types"
)

// Expander writes expanded intermediate files: the original image with
// every recorded compressed block hollowed into a sparse hole, the
// decompressed payloads concatenated after it, and the block index as
// a trailer.
type Expander struct {
	codec  interfaces.Codec
	logger *logrus.Entry
}

// NewExpander returns an expander bound to the run's shared codec.
func NewExpander(codec interfaces.Codec, logger *logrus.Logger) *Expander {
	return &Expander{codec: codec, logger: logger.WithField("service", "expander")}
}

// Expand writes the expanded form of src into out. blocks must be
// sorted by ascending offset; each element's UncompressedLength is
// filled in as its payload is inflated.
func (e *Expander) Expand(src interfaces.ByteSource, sb *types.Superblock, blocks []types.BlockDescriptor, out *os.File) error {
	if err := e.writePassthrough(src, blocks, out); err != nil {
		return fmt.Errorf("%s: passthrough: %w", src.Path(), err)
	}
	if err := e.writePayloads(src, sb, blocks, out); err != nil {
		return fmt.Errorf("%s: payloads: %w", src.Path(), err)
	}
	if err := WriteBlockIndex(out, blocks); err != nil {
		return fmt.Errorf("%s: index: %w", src.Path(), err)
	}
	if err := WriteDeltaHeader(out, e.codec.CompressionValue(), uint32(len(blocks))); err != nil {
		return fmt.Errorf("%s: trailer: %w", src.Path(), err)
	}
	e.logger.WithFields(logrus.Fields{
		"image":  src.Path(),
		"blocks": len(blocks),
		"output": out.Name(),
	}).Debug("image expanded")
	return nil
}

// writePassthrough copies the image verbatim, seeking over each
// recorded block's span so the output stays sparse there.
func (e *Expander) writePassthrough(src interfaces.ByteSource, blocks []types.BlockDescriptor, out *os.File) error {
	cursor := uint64(0)
	for i := range blocks {
		block := &blocks[i]
		if block.Offset < cursor {
			return fmt.Errorf("%w: block list not in ascending offset order", types.ErrInternal)
		}
		if err := copySpan(src, cursor, block.Offset-cursor, out); err != nil {
			return err
		}
		if _, err := out.Seek(int64(block.Length), io.SeekCurrent); err != nil {
			return err
		}
		cursor = block.End()
	}
	if cursor > src.Size() {
		return fmt.Errorf("%w: last block ends past the image", types.ErrMalformedImage)
	}
	return copySpan(src, cursor, src.Size()-cursor, out)
}

// writePayloads appends each block's decompressed bytes and records
// the produced size in the descriptor.
func (e *Expander) writePayloads(src interfaces.ByteSource, sb *types.Superblock, blocks []types.BlockDescriptor, out *os.File) error {
	capacity := sb.BlockSize
	if capacity < types.MetadataBlockSize {
		capacity = types.MetadataBlockSize
	}
	scratch := make([]byte, capacity)

	for i := range blocks {
		block := &blocks[i]
		raw, err := src.Bytes(block.Offset, uint64(block.Length))
		if err != nil {
			return fmt.Errorf("%w: block at 0x%x out of range", types.ErrMalformedImage, block.Offset)
		}
		n, err := e.codec.Decompress(scratch, raw)
		if err != nil {
			return fmt.Errorf("block at 0x%x: %w", block.Offset, err)
		}
		if _, err := out.Write(scratch[:n]); err != nil {
			return err
		}
		block.UncompressedLength = uint32(n)
	}
	return nil
}

func copySpan(src interfaces.ByteSource, off, n uint64, out *os.File) error {
	if n == 0 {
		return nil
	}
	raw, err := src.Bytes(off, n)
	if err != nil {
		return fmt.Errorf("%w: span at 0x%x out of range", types.ErrMalformedImage, off)
	}
	_, err = out.Write(raw)
	return err
}

// WriteBlockIndex serializes the descriptors as packed 16-byte
// big-endian records: offset, on-disk length, uncompressed length.
func WriteBlockIndex(w io.Writer, blocks []types.BlockDescriptor) error {
	record := make([]byte, types.SerializedBlockSize)
	for _, block := range blocks {
		binary.BigEndian.PutUint64(record[0:8], block.Offset)
		binary.BigEndian.PutUint32(record[8:12], block.Length)
		binary.BigEndian.PutUint32(record[12:16], block.UncompressedLength)
		if _, err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}

// WriteDeltaHeader writes the 16-byte big-endian header record. The
// same record serves as the trailer of an expanded file and the front
// header of a patch file.
func WriteDeltaHeader(w io.Writer, compressionValue, blockCount uint32) error {
	record := make([]byte, types.DeltaHeaderSize)
	binary.BigEndian.PutUint32(record[0:4], types.DeltaMagic)
	binary.BigEndian.PutUint32(record[4:8], 0)
	binary.BigEndian.PutUint32(record[8:12], compressionValue)
	binary.BigEndian.PutUint32(record[12:16], blockCount)
	_, err := w.Write(record)
	return err
}
