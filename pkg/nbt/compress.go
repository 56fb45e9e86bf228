package nbt

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// Compression selects the framing around the NBT payload.
type Compression int

const (
	// CompressionNone stores the raw tag bytes.
	CompressionNone Compression = iota
	// CompressionGZip wraps the payload in an RFC 1952 member.
	CompressionGZip
	// CompressionZLib wraps the payload in an RFC 1950 stream; the
	// Adler-32 footer is computed over the uncompressed bytes on write
	// and verified on read.
	CompressionZLib
	// CompressionAutoDetect picks the framing from the first byte when
	// loading. It is illegal on write.
	CompressionAutoDetect
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGZip:
		return "gzip"
	case CompressionZLib:
		return "zlib"
	case CompressionAutoDetect:
		return "auto"
	}
	return fmt.Sprintf("compression(%d)", int(c))
}

// ParseCompression maps a config string to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "none":
		return CompressionNone, nil
	case "gzip":
		return CompressionGZip, nil
	case "zlib":
		return CompressionZLib, nil
	case "auto":
		return CompressionAutoDetect, nil
	}
	return 0, fmt.Errorf("%w: unknown compression %q", ErrInvalidArgument, s)
}

// detectCompression maps the first byte of a stream to its framing:
// a gzip magic byte, a zlib CMF byte, or a compound tag header.
func detectCompression(first byte) (Compression, error) {
	switch first {
	case 0x1f:
		return CompressionGZip, nil
	case 0x78:
		return CompressionZLib, nil
	case byte(TagCompound):
		return CompressionNone, nil
	}
	return 0, fmt.Errorf("%w: cannot detect compression from leading byte 0x%02x", ErrMalformed, first)
}

// wrapped chains Close through the decoder and, when ownership was
// requested, the inner transport.
type wrapped struct {
	io.Reader
	closers []io.Closer
}

func (w *wrapped) Close() error {
	var first error
	for _, c := range w.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type wrappedWriter struct {
	io.Writer
	closers []io.Closer
}

func (w *wrappedWriter) Close() error {
	var first error
	for _, c := range w.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NewDecompressor wraps r according to c. The returned Close releases
// the codec; it closes r itself only when closeInner is set and r is an
// io.Closer.
func NewDecompressor(r io.Reader, c Compression, closeInner bool) (io.ReadCloser, error) {
	var (
		out     io.Reader
		closers []io.Closer
	)
	switch c {
	case CompressionNone:
		out = r
	case CompressionGZip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: bad gzip header: %v", ErrMalformed, err)
		}
		out = zr
		closers = append(closers, zr)
	case CompressionZLib:
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: bad zlib header: %v", ErrMalformed, err)
		}
		out = zr
		closers = append(closers, zr)
	default:
		return nil, fmt.Errorf("%w: unsupported read compression %s", ErrInvalidArgument, c)
	}
	if closeInner {
		if rc, ok := r.(io.Closer); ok {
			closers = append(closers, rc)
		}
	}
	return &wrapped{Reader: out, closers: closers}, nil
}

// NewCompressor wraps w according to c. Close flushes the codec; the
// inner transport is closed only when closeInner is set.
func NewCompressor(w io.Writer, c Compression, closeInner bool) (io.WriteCloser, error) {
	var (
		out     io.Writer
		closers []io.Closer
	)
	switch c {
	case CompressionNone:
		out = w
	case CompressionGZip:
		zw := gzip.NewWriter(w)
		out = zw
		closers = append(closers, zw)
	case CompressionZLib:
		zw := zlib.NewWriter(w)
		out = zw
		closers = append(closers, zw)
	case CompressionAutoDetect:
		return nil, fmt.Errorf("%w: auto-detect is illegal on write", ErrInvalidArgument)
	default:
		return nil, fmt.Errorf("%w: unsupported write compression %s", ErrInvalidArgument, c)
	}
	if closeInner {
		if wc, ok := w.(io.Closer); ok {
			closers = append(closers, wc)
		}
	}
	return &wrappedWriter{Writer: out, closers: closers}, nil
}
