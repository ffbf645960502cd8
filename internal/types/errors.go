// File: internal/types/errors.go
package types

import "errors"

// Fatal error kinds. Parsing, validation, codec and diff-tool failures
// wrap exactly one of these so the command layer can name the kind in
// its diagnostic line. Failures to open, create or write files are
// returned as the underlying os errors and wrap none of them.
var (
	ErrNotSquashFS        = errors.New("not a SquashFS image")
	ErrUnsupportedVersion = errors.New("unsupported SquashFS version")
	ErrBlockSizeMismatch  = errors.New("block size and block log disagree")
	ErrCodecMismatch      = errors.New("images use different compression algorithms")
	ErrUnsupportedCodec   = errors.New("unsupported compression algorithm")
	ErrMalformedImage     = errors.New("malformed image")
	ErrDecompress         = errors.New("decompression failed")
	ErrDiffToolFailed     = errors.New("external diff tool failed")
	ErrInternal           = errors.New("internal invariant violated")
)
