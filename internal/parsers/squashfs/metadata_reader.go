// File: internal/parsers/squashfs/metadata_reader.go
package squashfs

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-squashdelta/internal/interfaces"
	"github.com/deploymenttheory/go-squashdelta/internal/types"
)

// MetadataBlock is one raw metadata block as stored on disk. DiskOffset
// and DiskLength describe the payload span (after the 2-byte length
// header) so the block can be hashed and recorded exactly as stored.
type MetadataBlock struct {
	Payload    []byte
	DiskOffset uint64
	DiskLength uint32
	Compressed bool
}

// BlockReader walks consecutive metadata blocks starting at a table
// offset, decompressing each into a reusable scratch buffer.
type BlockReader struct {
	src     interfaces.ByteSource
	codec   interfaces.Codec
	offset  uint64
	scratch [types.MetadataBlockSize]byte
}

// NewBlockReader positions a raw metadata-block reader at start.
func NewBlockReader(src interfaces.ByteSource, codec interfaces.Codec, start uint64) *BlockReader {
	return &BlockReader{src: src, codec: codec, offset: start}
}

// Offset returns the disk position of the next block header.
func (r *BlockReader) Offset() uint64 {
	return r.offset
}

// NextRaw reads the metadata block at the current position without
// decompressing it. The payload is the on-disk bytes either way; use
// it to hash blocks as stored.
func (r *BlockReader) NextRaw() (*MetadataBlock, error) {
	return r.next(false)
}

// Next reads and decompresses the metadata block at the current
// position and advances past it. The returned payload aliases the
// reader's scratch buffer (or the source for uncompressed blocks) and
// is only valid until the next call.
func (r *BlockReader) Next() (*MetadataBlock, error) {
	return r.next(true)
}

func (r *BlockReader) next(inflate bool) (*MetadataBlock, error) {
	header, err := r.src.Bytes(r.offset, 2)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata block header at 0x%x out of range",
			types.ErrMalformedImage, r.offset)
	}
	word := binary.LittleEndian.Uint16(header)
	compressed := word&types.MetadataUncompressed == 0
	length := uint32(word &^ types.MetadataUncompressed)

	if length == 0 {
		return nil, fmt.Errorf("%w: zero-length metadata block at 0x%x",
			types.ErrMalformedImage, r.offset)
	}
	if !compressed && length > types.MetadataBlockSize {
		return nil, fmt.Errorf("%w: metadata block of %d bytes at 0x%x",
			types.ErrMalformedImage, length, r.offset)
	}

	payloadOffset := r.offset + 2
	raw, err := r.src.Bytes(payloadOffset, uint64(length))
	if err != nil {
		return nil, fmt.Errorf("%w: metadata block at 0x%x truncated",
			types.ErrMalformedImage, payloadOffset)
	}

	block := &MetadataBlock{
		DiskOffset: payloadOffset,
		DiskLength: length,
		Compressed: compressed,
	}
	if compressed && inflate {
		n, err := r.codec.Decompress(r.scratch[:], raw)
		if err != nil {
			return nil, fmt.Errorf("metadata block at 0x%x: %w", payloadOffset, err)
		}
		block.Payload = r.scratch[:n]
	} else {
		block.Payload = raw
	}

	r.offset = payloadOffset + uint64(length)
	return block, nil
}

// MetadataReader presents a sequence of metadata blocks as one logical
// byte stream, refilling from the underlying block reader on demand.
// Inode records may straddle block boundaries, so reads buffer up to
// two blocks' worth of bytes.
type MetadataReader struct {
	blocks *BlockReader
	buf    []byte
	start  int
	count  int
}

// NewMetadataReader opens a logical metadata stream at start.
func NewMetadataReader(src interfaces.ByteSource, codec interfaces.Codec, start uint64) *MetadataReader {
	return &MetadataReader{
		blocks: NewBlockReader(src, codec, start),
		buf:    make([]byte, 0, 2*types.MetadataBlockSize),
	}
}

// buffered returns the number of unread bytes currently held.
func (r *MetadataReader) buffered() int {
	return len(r.buf) - r.start
}

// fill reads whole blocks until at least n bytes are buffered.
func (r *MetadataReader) fill(n int) error {
	for r.buffered() < n {
		if r.start > 0 {
			r.buf = append(r.buf[:0], r.buf[r.start:]...)
			r.start = 0
		}
		block, err := r.blocks.Next()
		if err != nil {
			return err
		}
		r.buf = append(r.buf, block.Payload...)
		r.count++
	}
	return nil
}

// ReadBytes returns the next n bytes of the stream. The slice aliases
// the reader's buffer and is only valid until the next read.
func (r *MetadataReader) ReadBytes(n int) ([]byte, error) {
	if err := r.fill(n); err != nil {
		return nil, err
	}
	out := r.buf[r.start : r.start+n]
	r.start += n
	return out, nil
}

// Skip discards the next n bytes of the stream.
func (r *MetadataReader) Skip(n int) error {
	for n > 0 {
		step := n
		if step > types.MetadataBlockSize {
			step = types.MetadataBlockSize
		}
		if _, err := r.ReadBytes(step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}

// ReadUint16 reads a little-endian 16-bit value.
func (r *MetadataReader) ReadUint16() (uint16, error) {
	b, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadUint32 reads a little-endian 32-bit value.
func (r *MetadataReader) ReadUint32() (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadUint64 reads a little-endian 64-bit value.
func (r *MetadataReader) ReadUint64() (uint64, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// BlockCount returns the number of metadata blocks consumed so far. It
// fails if the stream stopped mid-block, which means a record
// description disagreed with the table layout.
func (r *MetadataReader) BlockCount() (int, error) {
	if r.buffered() != 0 {
		return 0, fmt.Errorf("%w: metadata stream ended with %d bytes unread in a block",
			types.ErrMalformedImage, r.buffered())
	}
	return r.count, nil
}
