// File: internal/compression/compression.go
package compression

import (
	"fmt"
	"io"

	"github.com/deploymenttheory/go-squashdelta/internal/interfaces"
	"github.com/deploymenttheory/go-squashdelta/internal/types"
)

// Compression value tags recorded in the patch header for codecs whose
// options matter on the apply side. Codecs without recorded options
// use their plain SquashFS identifier instead.
const (
	lzoValueTag uint32 = 0x01 << 24
	lz4ValueTag uint32 = 0x02 << 24
)

// Resolve maps a SquashFS compression identifier to a fresh codec
// instance.
func Resolve(id types.CompressionID) (interfaces.Codec, error) {
	switch id {
	case types.CompressionZlib:
		return &zlibCodec{}, nil
	case types.CompressionLzma:
		return &lzmaCodec{}, nil
	case types.CompressionLzo:
		return newLzoCodec(), nil
	case types.CompressionXz:
		return &xzCodec{}, nil
	case types.CompressionLz4:
		return &lz4Codec{}, nil
	case types.CompressionZstd:
		return newZstdCodec(), nil
	default:
		return nil, fmt.Errorf("%w: id %d", types.ErrUnsupportedCodec, id)
	}
}

// drainInto reads a decompression stream into dst and returns the
// produced size. Producing more than len(dst) bytes is a codec error.
func drainInto(dst []byte, r io.Reader) (int, error) {
	n := 0
	for {
		if n == len(dst) {
			var probe [1]byte
			if m, _ := r.Read(probe[:]); m > 0 {
				return 0, fmt.Errorf("%w: output exceeds block size", types.ErrDecompress)
			}
			return n, nil
		}
		m, err := r.Read(dst[n:])
		n += m
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return 0, fmt.Errorf("%w: %v", types.ErrDecompress, err)
		}
	}
}
