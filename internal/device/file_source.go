// File: internal/device/file_source.go
package device

import (
	"fmt"
	"os"

	"github.com/deploymenttheory/go-squashdelta/internal/interfaces"
)

// fileSource implements interfaces.ByteSource over an image file loaded
// into memory. Holding the whole image gives every reader an
// independent zero-copy cursor over the same immutable bytes.
type fileSource struct {
	path string
	data []byte
}

// Open loads the image at path and returns a ByteSource over it.
func Open(path string) (interfaces.ByteSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	return &fileSource{path: path, data: data}, nil
}

// NewByteSource wraps an in-memory image, mainly for tests.
func NewByteSource(path string, data []byte) interfaces.ByteSource {
	return &fileSource{path: path, data: data}
}

func (f *fileSource) Size() uint64 {
	return uint64(len(f.data))
}

func (f *fileSource) ReadAt(p []byte, off uint64) error {
	view, err := f.Bytes(off, uint64(len(p)))
	if err != nil {
		return err
	}
	copy(p, view)
	return nil
}

func (f *fileSource) Bytes(off, n uint64) ([]byte, error) {
	end := off + n
	if end < off || end > uint64(len(f.data)) {
		return nil, fmt.Errorf("read of %d bytes at offset %d past end of %s (%d bytes)",
			n, off, f.path, len(f.data))
	}
	return f.data[off:end], nil
}

func (f *fileSource) Path() string {
	return f.path
}
