// File: internal/interfaces/byte_source.go
package interfaces

// ByteSource is a random-access view over a whole image file. The
// underlying bytes are immutable for the lifetime of a run, so any
// number of independent readers may walk the same source concurrently.
type ByteSource interface {
	// Size returns the total length of the image in bytes.
	Size() uint64

	// ReadAt copies len(p) bytes starting at off. It fails if the span
	// [off, off+len(p)) is not fully inside the image.
	ReadAt(p []byte, off uint64) error

	// Bytes returns a read-only view of n bytes starting at off without
	// copying. The slice aliases the image; callers must not modify it.
	Bytes(off, n uint64) ([]byte, error)

	// Path returns the file the bytes came from, for diagnostics.
	Path() string
}
