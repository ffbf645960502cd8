// File: internal/compression/zstd.go
package compression

import (
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/deploymenttheory/go-squashdelta/internal/types"
)

// zstdCodec decompresses zstandard frame blocks.
type zstdCodec struct {
	decoder *zstd.Decoder
}

func newZstdCodec() *zstdCodec {
	// The decoder cannot fail with these fixed, valid options and is
	// reused for every block of both images.
	decoder, _ := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(true))
	return &zstdCodec{decoder: decoder}
}

func (c *zstdCodec) ID() types.CompressionID {
	return types.CompressionZstd
}

func (c *zstdCodec) Configure(options []byte) error {
	// The zstd options block carries only the compression level.
	return nil
}

func (c *zstdCodec) Decompress(dst, src []byte) (int, error) {
	out, err := c.decoder.DecodeAll(src, dst[:0])
	if err != nil {
		return 0, fmt.Errorf("%w: zstd: %v", types.ErrDecompress, err)
	}
	if len(out) > len(dst) {
		return 0, fmt.Errorf("%w: output exceeds block size", types.ErrDecompress)
	}
	// DecodeAll reallocates when its capacity hint is exceeded.
	copy(dst, out)
	return len(out), nil
}

func (c *zstdCodec) Reset() {}

func (c *zstdCodec) CompressionValue() uint32 {
	return uint32(types.CompressionZstd)
}
