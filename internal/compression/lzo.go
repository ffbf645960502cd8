// File: internal/compression/lzo.go
package compression

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/rasky/go-lzo"

	"github.com/deploymenttheory/go-squashdelta/internal/types"
)

// LZO option word layout mirrored into the compression value.
const (
	lzoAlgorithm1x999 uint32 = 4

	lzoValueOptimized uint32 = 0x10
	lzoDefaultLevel   uint32 = 8
)

// lzoCodec decompresses lzo1x blocks.
type lzoCodec struct {
	level uint32
}

func newLzoCodec() *lzoCodec {
	return &lzoCodec{level: lzoDefaultLevel}
}

func (c *lzoCodec) ID() types.CompressionID {
	return types.CompressionLzo
}

func (c *lzoCodec) Configure(options []byte) error {
	if options == nil {
		return nil
	}
	if len(options) < 8 {
		return fmt.Errorf("%w: LZO compression options too short (%d bytes)",
			types.ErrMalformedImage, len(options))
	}
	algorithm := binary.LittleEndian.Uint32(options[0:4])
	level := binary.LittleEndian.Uint32(options[4:8])

	if algorithm != lzoAlgorithm1x999 {
		return fmt.Errorf("%w: only the lzo1x_999 algorithm is supported (got %d)",
			types.ErrUnsupportedCodec, algorithm)
	}
	if level < 1 || level > 9 {
		return fmt.Errorf("%w: invalid LZO compression level %d",
			types.ErrMalformedImage, level)
	}
	c.level = level
	return nil
}

func (c *lzoCodec) Decompress(dst, src []byte) (int, error) {
	out, err := lzo.Decompress1X(bytes.NewReader(src), len(src), len(dst))
	if err != nil {
		return 0, fmt.Errorf("%w: lzo1x: %v", types.ErrDecompress, err)
	}
	if len(out) > len(dst) {
		return 0, fmt.Errorf("%w: output exceeds block size", types.ErrDecompress)
	}
	copy(dst, out)
	return len(out), nil
}

func (c *lzoCodec) Reset() {}

func (c *lzoCodec) CompressionValue() uint32 {
	// mksquashfs emits optimized lzo1x_999 output since 4.3.
	return lzoValueTag | lzoValueOptimized | c.level
}
