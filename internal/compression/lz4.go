// File: internal/compression/lz4.go
package compression

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/deploymenttheory/go-squashdelta/internal/types"
)

const (
	lz4VersionLegacy uint32 = 1

	lz4FlagHC    uint32 = 1
	lz4FlagsMask uint32 = lz4FlagHC
)

// lz4Codec decompresses raw LZ4 blocks.
type lz4Codec struct {
	hc bool
}

func (c *lz4Codec) ID() types.CompressionID {
	return types.CompressionLz4
}

func (c *lz4Codec) Configure(options []byte) error {
	if options == nil {
		return fmt.Errorf("%w: no compression options for LZ4 found",
			types.ErrMalformedImage)
	}
	if len(options) < 8 {
		return fmt.Errorf("%w: LZ4 compression options too short (%d bytes)",
			types.ErrMalformedImage, len(options))
	}
	version := binary.LittleEndian.Uint32(options[0:4])
	flags := binary.LittleEndian.Uint32(options[4:8])

	if version != lz4VersionLegacy {
		return fmt.Errorf("%w: unsupported LZ4 stream version %d",
			types.ErrUnsupportedCodec, version)
	}
	if flags&^lz4FlagsMask != 0 {
		return fmt.Errorf("%w: unknown LZ4 flags 0x%x", types.ErrMalformedImage, flags)
	}
	c.hc = flags&lz4FlagHC != 0
	return nil
}

func (c *lz4Codec) Decompress(dst, src []byte) (int, error) {
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return 0, fmt.Errorf("%w: lz4: %v", types.ErrDecompress, err)
	}
	return n, nil
}

func (c *lz4Codec) Reset() {}

func (c *lz4Codec) CompressionValue() uint32 {
	value := lz4ValueTag
	if c.hc {
		value |= lz4FlagHC
	}
	return value
}
