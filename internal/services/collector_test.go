// File: internal/services/collector_test.go
package services

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spaolacci/murmur3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-squashdelta/internal/device"
	"github.com/deploymenttheory/go-squashdelta/internal/types"
)

const (
	testBlockSize uint32 = 4096
	testBlockLog  uint16 = 12
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func zlibCompress(t *testing.T, data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// testImage is a synthetic single-file SquashFS 4.0 image small enough
// to reason about span by span.
type testImage struct {
	data      []byte
	dataSpans []types.BlockDescriptor
	metaSpans []types.BlockDescriptor
	content   []byte
}

type testImageOptions struct {
	withFragment     bool
	compressMetadata bool
	compression      types.CompressionID
}

// createTestImage lays out: superblock, compressed data blocks, the
// fragment payload (optional), the inode table, the fragment entry
// block and index (optional).
func createTestImage(t *testing.T, content []byte, opts testImageOptions) *testImage {
	if opts.compression == 0 {
		opts.compression = types.CompressionZlib
	}
	img := &testImage{content: content}
	buf := make([]byte, types.SuperblockSize)

	chunks := splitChunks(content, int(testBlockSize))
	var fragment []byte
	if opts.withFragment && len(chunks) > 0 && len(chunks[len(chunks)-1]) < int(testBlockSize) {
		fragment = chunks[len(chunks)-1]
		chunks = chunks[:len(chunks)-1]
	}

	startBlock := uint64(len(buf))
	var blockList []uint32
	for _, chunk := range chunks {
		compressed := zlibCompress(t, chunk)
		img.dataSpans = append(img.dataSpans, types.BlockDescriptor{
			Offset: uint64(len(buf)),
			Length: uint32(len(compressed)),
		})
		blockList = append(blockList, uint32(len(compressed)))
		buf = append(buf, compressed...)
	}

	var fragmentSpan types.BlockDescriptor
	if fragment != nil {
		compressed := zlibCompress(t, fragment)
		fragmentSpan = types.BlockDescriptor{
			Offset: uint64(len(buf)),
			Length: uint32(len(compressed)),
		}
		img.dataSpans = append(img.dataSpans, fragmentSpan)
		buf = append(buf, compressed...)
	}

	inodePayload := buildRegularInode(startBlock, uint64(len(content)), fragment != nil, blockList)
	inodeTableStart := uint64(len(buf))
	buf = appendMetadataBlock(t, buf, inodePayload, opts.compressMetadata, &img.metaSpans)

	fragments := uint32(0)
	var fragmentTableStart uint64
	if fragment != nil {
		fragments = 1
		entry := make([]byte, types.FragmentEntrySize)
		binary.LittleEndian.PutUint64(entry[0:8], fragmentSpan.Offset)
		binary.LittleEndian.PutUint32(entry[8:12], fragmentSpan.Length)
		entryBlockStart := uint64(len(buf))
		buf = appendMetadataBlock(t, buf, entry, opts.compressMetadata, &img.metaSpans)
		fragmentTableStart = uint64(len(buf))
		buf = binary.LittleEndian.AppendUint64(buf, entryBlockStart)
	} else {
		fragmentTableStart = uint64(len(buf))
	}

	le := binary.LittleEndian
	le.PutUint32(buf[0:4], types.SquashFSMagic)
	le.PutUint32(buf[4:8], 1) // inodes
	le.PutUint32(buf[8:12], 1700000000)
	le.PutUint32(buf[12:16], testBlockSize)
	le.PutUint32(buf[16:20], fragments)
	le.PutUint16(buf[20:22], uint16(opts.compression))
	le.PutUint16(buf[22:24], testBlockLog)
	le.PutUint16(buf[24:26], 0)
	le.PutUint16(buf[26:28], 1)
	le.PutUint16(buf[28:30], types.MajorVersion)
	le.PutUint16(buf[30:32], types.MinorVersion)
	le.PutUint64(buf[40:48], uint64(len(buf)))
	le.PutUint64(buf[64:72], inodeTableStart)
	le.PutUint64(buf[80:88], fragmentTableStart)

	img.data = buf
	return img
}

func splitChunks(content []byte, size int) [][]byte {
	var chunks [][]byte
	for len(content) > 0 {
		n := size
		if n > len(content) {
			n = len(content)
		}
		chunks = append(chunks, content[:n])
		content = content[n:]
	}
	return chunks
}

func buildRegularInode(startBlock, fileSize uint64, withFragment bool, blockList []uint32) []byte {
	payload := make([]byte, types.InodeHeaderSize)
	binary.LittleEndian.PutUint16(payload[0:2], types.InodeReg)

	payload = binary.LittleEndian.AppendUint32(payload, uint32(startBlock))
	fragment := types.InvalidFragment
	if withFragment {
		fragment = 0
	}
	payload = binary.LittleEndian.AppendUint32(payload, fragment)
	payload = binary.LittleEndian.AppendUint32(payload, 0) // offset in fragment
	payload = binary.LittleEndian.AppendUint32(payload, uint32(fileSize))
	for _, size := range blockList {
		payload = binary.LittleEndian.AppendUint32(payload, size)
	}
	return payload
}

func appendMetadataBlock(t *testing.T, buf, payload []byte, compress bool, spans *[]types.BlockDescriptor) []byte {
	stored := payload
	header := uint16(len(payload)) | types.MetadataUncompressed
	if compress {
		stored = zlibCompress(t, payload)
		header = uint16(len(stored))
		*spans = append(*spans, types.BlockDescriptor{
			Offset: uint64(len(buf)) + 2,
			Length: uint32(len(stored)),
		})
	}
	buf = binary.LittleEndian.AppendUint16(buf, header)
	return append(buf, stored...)
}

func testContent(n int) []byte {
	content := make([]byte, n)
	for i := range content {
		content[i] = byte(i % 251)
	}
	return content
}

func hashSpan(img *testImage, span types.BlockDescriptor) uint32 {
	return murmur3.Sum32WithSeed(img.data[span.Offset:span.Offset+uint64(span.Length)], 0)
}

func TestCollectorCollect(t *testing.T) {
	tests := []struct {
		name string
		opts testImageOptions
	}{
		{"uncompressed metadata, no fragment", testImageOptions{}},
		{"fragment tail", testImageOptions{withFragment: true}},
		{"compressed metadata", testImageOptions{compressMetadata: true}},
		{"compressed metadata and fragment", testImageOptions{withFragment: true, compressMetadata: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := createTestImage(t, testContent(5000), tt.opts)
			src := device.NewByteSource("test.squashfs", img.data)

			collector := NewCollector(testLogger())
			run, err := collector.Collect(src)
			require.NoError(t, err)
			require.NotNil(t, collector.Codec())
			assert.Equal(t, types.CompressionZlib, collector.Codec().ID())

			require.Len(t, run.Blocks, len(img.metaSpans)+len(img.dataSpans))

			got := map[uint64]types.BlockDescriptor{}
			for _, block := range run.Blocks {
				got[block.Offset] = block
			}
			for _, want := range append(append([]types.BlockDescriptor{}, img.metaSpans...), img.dataSpans...) {
				block, ok := got[want.Offset]
				require.True(t, ok, "missing block at 0x%x", want.Offset)
				assert.Equal(t, want.Length, block.Length)
				assert.Equal(t, hashSpan(img, want), block.Hash)
				assert.Zero(t, block.UncompressedLength)
			}

			// Data blocks come after the metadata ones, in ascending
			// offset order with non-overlapping spans.
			data := run.Blocks[len(img.metaSpans):]
			for i := 1; i < len(data); i++ {
				assert.True(t, data[i-1].End() <= data[i].Offset)
			}
		})
	}
}

func TestCollectorCodecMismatch(t *testing.T) {
	zlibImg := createTestImage(t, testContent(3000), testImageOptions{})
	lz4Img := createTestImage(t, testContent(3000), testImageOptions{compression: types.CompressionLz4})

	collector := NewCollector(testLogger())
	_, err := collector.Collect(device.NewByteSource("source.squashfs", zlibImg.data))
	require.NoError(t, err)

	_, err = collector.Collect(device.NewByteSource("target.squashfs", lz4Img.data))
	assert.ErrorIs(t, err, types.ErrCodecMismatch)
}

func TestCollectorRejectsBadImages(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		expectError error
	}{
		{
			name:        "truncated image",
			data:        make([]byte, 20),
			expectError: types.ErrNotSquashFS,
		},
		{
			name: "wrong magic",
			data: func() []byte {
				img := createTestImage(t, testContent(1000), testImageOptions{})
				binary.LittleEndian.PutUint32(img.data[0:4], 0x12345678)
				return img.data
			}(),
			expectError: types.ErrNotSquashFS,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector := NewCollector(testLogger())
			_, err := collector.Collect(device.NewByteSource("test.squashfs", tt.data))
			assert.ErrorIs(t, err, tt.expectError)
		})
	}
}

func TestFinishDataBlocks(t *testing.T) {
	image := testContent(600)
	src := device.NewByteSource("test.squashfs", image)

	t.Run("duplicate offsets collapse", func(t *testing.T) {
		blocks := []types.BlockDescriptor{
			{Offset: 300, Length: 50},
			{Offset: 100, Length: 40},
			{Offset: 300, Length: 50},
		}
		out, err := finishDataBlocks(src, blocks)
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, uint64(100), out[0].Offset)
		assert.Equal(t, uint64(300), out[1].Offset)
		assert.Equal(t, murmur3.Sum32WithSeed(image[100:140], 0), out[0].Hash)
	})

	t.Run("duplicate offsets with different lengths", func(t *testing.T) {
		blocks := []types.BlockDescriptor{
			{Offset: 100, Length: 40},
			{Offset: 100, Length: 41},
		}
		_, err := finishDataBlocks(src, blocks)
		assert.ErrorIs(t, err, types.ErrMalformedImage)
	})

	t.Run("overlapping spans", func(t *testing.T) {
		blocks := []types.BlockDescriptor{
			{Offset: 100, Length: 40},
			{Offset: 120, Length: 40},
		}
		_, err := finishDataBlocks(src, blocks)
		assert.ErrorIs(t, err, types.ErrMalformedImage)
	})

	t.Run("span past the image", func(t *testing.T) {
		blocks := []types.BlockDescriptor{{Offset: 580, Length: 40}}
		_, err := finishDataBlocks(src, blocks)
		assert.ErrorIs(t, err, types.ErrMalformedImage)
	})
}
