// File: internal/types/delta.go
package types

// Patch-format definitions. Unlike the SquashFS image itself, every
// integer written by the delta layer is big-endian so the envelope
// stays portable around the little-endian inner image.

const (
	// DeltaMagic identifies both the patch header and the trailer of an
	// expanded intermediate file.
	DeltaMagic uint32 = 0x5371CEB4

	// DeltaHeaderSize is the size of the header/trailer record.
	DeltaHeaderSize = 16

	// SerializedBlockSize is the size of one serialized block descriptor.
	SerializedBlockSize = 16
)

// DeltaHeader is the 16-byte record written at the front of a patch
// file and at the very end of an expanded intermediate file.
type DeltaHeader struct {
	Magic       uint32
	Flags       uint32
	Compression uint32
	BlockCount  uint32
}

// BlockDescriptor records one compressed block of an image. Offset and
// Length describe the on-disk compressed span; Hash is a murmur3 x86
// 32-bit digest (seed 0) of those exact bytes. UncompressedLength is
// zero until the expander fills it in.
type BlockDescriptor struct {
	Offset             uint64
	Length             uint32
	UncompressedLength uint32
	Hash               uint32
}

// End returns the first offset past the block's on-disk span.
func (b BlockDescriptor) End() uint64 {
	return b.Offset + uint64(b.Length)
}
