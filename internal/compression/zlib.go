// File: internal/compression/zlib.go
package compression

import (
	"bytes"
	"compress/zlib"
	"fmt"

	"github.com/deploymenttheory/go-squashdelta/internal/types"
)

// zlibCodec decompresses zlib-wrapped deflate blocks.
type zlibCodec struct{}

func (c *zlibCodec) ID() types.CompressionID {
	return types.CompressionZlib
}

func (c *zlibCodec) Configure(options []byte) error {
	// Compression level, window size and strategies only affect the
	// compressor; decompression accepts any of them.
	return nil
}

func (c *zlibCodec) Decompress(dst, src []byte) (int, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrDecompress, err)
	}
	defer r.Close()
	return drainInto(dst, r)
}

func (c *zlibCodec) Reset() {}

func (c *zlibCodec) CompressionValue() uint32 {
	return uint32(types.CompressionZlib)
}
