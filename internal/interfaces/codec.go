// File: internal/interfaces/codec.go
package interfaces

import "github.com/deploymenttheory/go-squashdelta/internal/types"

// Codec decompresses the blocks of one compression algorithm. A single
// codec instance is shared across both image runs of a delta
// generation, with Reset called between them.
type Codec interface {
	// ID echoes the SquashFS identifier the codec was resolved from.
	ID() types.CompressionID

	// Configure consumes the payload of the optional codec-options
	// metadata block. It is called with nil when the superblock carries
	// no options.
	Configure(options []byte) error

	// Decompress inflates src into dst and returns the produced size,
	// which never exceeds len(dst).
	Decompress(dst, src []byte) (int, error)

	// Reset releases per-image scratch state between image runs.
	Reset()

	// CompressionValue returns the 32-bit word recorded in the patch
	// header and expanded-file trailer for this codec and its options.
	CompressionValue() uint32
}
