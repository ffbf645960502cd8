// File: internal/compression/xz.go
package compression

import (
	"bytes"
	"fmt"

	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"

	"github.com/deploymenttheory/go-squashdelta/internal/types"
)

// xzCodec decompresses xz stream blocks.
type xzCodec struct{}

func (c *xzCodec) ID() types.CompressionID {
	return types.CompressionXz
}

func (c *xzCodec) Configure(options []byte) error {
	// Dictionary size and filter options shape the compressor only.
	return nil
}

func (c *xzCodec) Decompress(dst, src []byte) (int, error) {
	r, err := xz.NewReader(bytes.NewReader(src))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrDecompress, err)
	}
	return drainInto(dst, r)
}

func (c *xzCodec) Reset() {}

func (c *xzCodec) CompressionValue() uint32 {
	return uint32(types.CompressionXz)
}

// lzmaCodec decompresses legacy LZMA ("alone" format) blocks.
type lzmaCodec struct{}

func (c *lzmaCodec) ID() types.CompressionID {
	return types.CompressionLzma
}

func (c *lzmaCodec) Configure(options []byte) error {
	return nil
}

func (c *lzmaCodec) Decompress(dst, src []byte) (int, error) {
	r, err := lzma.NewReader(bytes.NewReader(src))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrDecompress, err)
	}
	return drainInto(dst, r)
}

func (c *lzmaCodec) Reset() {}

func (c *lzmaCodec) CompressionValue() uint32 {
	return uint32(types.CompressionLzma)
}
