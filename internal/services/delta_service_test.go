// File: internal/services/delta_service_test.go
package services

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-squashdelta/internal/device"
	"github.com/deploymenttheory/go-squashdelta/internal/types"
)

// writeTestImage materializes a synthetic image in dir and returns its
// path.
func writeTestImage(t *testing.T, dir, name string, img *testImage) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, img.data, 0o600))
	return path
}

func testConfig(t *testing.T) *device.Config {
	return &device.Config{
		ScratchDir: t.TempDir(),
		DiffTool:   "true",
	}
}

func TestGenerateIdenticalImages(t *testing.T) {
	dir := t.TempDir()
	img := createTestImage(t, testContent(5000), testImageOptions{})
	sourcePath := writeTestImage(t, dir, "source.squashfs", img)
	targetPath := writeTestImage(t, dir, "target.squashfs", img)
	patchPath := filepath.Join(dir, "patch.sqdelta")

	cfg := testConfig(t)
	service := NewDeltaService(cfg, testLogger())
	require.NoError(t, service.Generate(context.Background(), sourcePath, targetPath, patchPath))

	// Every block deduplicates away, so the patch is a bare header
	// with block_count zero plus whatever the diff tool emitted.
	patch, err := os.ReadFile(patchPath)
	require.NoError(t, err)
	require.Len(t, patch, types.DeltaHeaderSize)
	assert.Equal(t, types.DeltaMagic, binary.BigEndian.Uint32(patch[0:4]))
	assert.Equal(t, uint32(0), binary.BigEndian.Uint32(patch[4:8]))
	assert.Equal(t, uint32(types.CompressionZlib), binary.BigEndian.Uint32(patch[8:12]))
	assert.Equal(t, uint32(0), binary.BigEndian.Uint32(patch[12:16]))

	// The expanded temporaries were cleaned up.
	leftovers, err := os.ReadDir(cfg.ScratchDir)
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestGenerateOneBlockDiffers(t *testing.T) {
	dir := t.TempDir()

	sourceContent := testContent(5000)
	targetContent := append([]byte{}, sourceContent...)
	targetContent[4500] ^= 0xff // inside the second block

	sourceImg := createTestImage(t, sourceContent, testImageOptions{})
	targetImg := createTestImage(t, targetContent, testImageOptions{})
	sourcePath := writeTestImage(t, dir, "source.squashfs", sourceImg)
	targetPath := writeTestImage(t, dir, "target.squashfs", targetImg)
	patchPath := filepath.Join(dir, "patch.sqdelta")

	service := NewDeltaService(testConfig(t), testLogger())
	require.NoError(t, service.Generate(context.Background(), sourcePath, targetPath, patchPath))

	patch, err := os.ReadFile(patchPath)
	require.NoError(t, err)
	require.Len(t, patch, types.DeltaHeaderSize+types.SerializedBlockSize)
	assert.Equal(t, uint32(1), binary.BigEndian.Uint32(patch[12:16]))

	// The surviving source descriptor is the changed second block,
	// with its uncompressed length recorded by the expander.
	record := patch[types.DeltaHeaderSize:]
	assert.Equal(t, sourceImg.dataSpans[1].Offset, binary.BigEndian.Uint64(record[0:8]))
	assert.Equal(t, sourceImg.dataSpans[1].Length, binary.BigEndian.Uint32(record[8:12]))
	assert.Equal(t, uint32(904), binary.BigEndian.Uint32(record[12:16]))
}

func TestGenerateCodecMismatch(t *testing.T) {
	dir := t.TempDir()
	sourceImg := createTestImage(t, testContent(3000), testImageOptions{})
	targetImg := createTestImage(t, testContent(3000), testImageOptions{compression: types.CompressionXz})
	sourcePath := writeTestImage(t, dir, "source.squashfs", sourceImg)
	targetPath := writeTestImage(t, dir, "target.squashfs", targetImg)

	service := NewDeltaService(testConfig(t), testLogger())
	err := service.Generate(context.Background(), sourcePath, targetPath, filepath.Join(dir, "patch"))
	assert.ErrorIs(t, err, types.ErrCodecMismatch)
}

func TestGenerateNotSquashFS(t *testing.T) {
	dir := t.TempDir()
	bogus := filepath.Join(dir, "bogus")
	require.NoError(t, os.WriteFile(bogus, []byte("not an image"), 0o600))

	img := createTestImage(t, testContent(3000), testImageOptions{})
	targetPath := writeTestImage(t, dir, "target.squashfs", img)

	service := NewDeltaService(testConfig(t), testLogger())
	err := service.Generate(context.Background(), bogus, targetPath, filepath.Join(dir, "patch"))
	assert.ErrorIs(t, err, types.ErrNotSquashFS)
}

func TestGenerateDiffToolFailure(t *testing.T) {
	dir := t.TempDir()
	img := createTestImage(t, testContent(3000), testImageOptions{})
	sourcePath := writeTestImage(t, dir, "source.squashfs", img)
	targetPath := writeTestImage(t, dir, "target.squashfs", img)

	cfg := testConfig(t)
	cfg.DiffTool = "false"
	service := NewDeltaService(cfg, testLogger())
	err := service.Generate(context.Background(), sourcePath, targetPath, filepath.Join(dir, "patch"))
	assert.ErrorIs(t, err, types.ErrDiffToolFailed)

	leftovers, readErr := os.ReadDir(cfg.ScratchDir)
	require.NoError(t, readErr)
	assert.Empty(t, leftovers)
}

func TestGenerateMissingInput(t *testing.T) {
	dir := t.TempDir()
	service := NewDeltaService(testConfig(t), testLogger())
	err := service.Generate(context.Background(),
		filepath.Join(dir, "missing-source"),
		filepath.Join(dir, "missing-target"),
		filepath.Join(dir, "patch"))
	assert.Error(t, err)
}
