package nbt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

const (
	// maxStringLen is the wire limit on a string's UTF-8 byte length.
	maxStringLen = 32767

	// maxWriteChunk bounds a single Write call on bulk payloads to keep
	// per-call memory predictable over buffered sinks.
	maxWriteChunk = 4 << 20

	// stringStreamThreshold is the length above which strings are written
	// through a fixed-size buffer instead of one conversion.
	stringStreamThreshold = 512
)

// truncated converts end-of-stream conditions into ErrTruncated; other
// transport errors pass through untouched.
func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	return err
}

func readU8(r *countingReader) (byte, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, truncated(err)
	}
	return b, nil
}

func readI16(r *countingReader, order binary.ByteOrder) (int16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, truncated(err)
	}
	return int16(order.Uint16(buf[:])), nil
}

func readI32(r *countingReader, order binary.ByteOrder) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, truncated(err)
	}
	return int32(order.Uint32(buf[:])), nil
}

func readI64(r *countingReader, order binary.ByteOrder) (int64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, truncated(err)
	}
	return int64(order.Uint64(buf[:])), nil
}

func readF32(r *countingReader, order binary.ByteOrder) (float32, error) {
	v, err := readI32(r, order)
	return math.Float32frombits(uint32(v)), err
}

func readF64(r *countingReader, order binary.ByteOrder) (float64, error) {
	v, err := readI64(r, order)
	return math.Float64frombits(uint64(v)), err
}

// readWireString reads a u16-length-prefixed UTF-8 string. The length is
// interpreted as a signed 16-bit value; negative lengths and invalid
// UTF-8 are malformed.
func readWireString(r *countingReader, order binary.ByteOrder) (string, error) {
	n, err := readI16(r, order)
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", fmt.Errorf("%w: negative string length %d", ErrMalformed, n)
	}
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", truncated(err)
	}
	if !utf8.Valid(buf) {
		return "", fmt.Errorf("%w: string is not valid UTF-8", ErrMalformed)
	}
	return string(buf), nil
}

func writeU8(w *countingWriter, b byte) error {
	return w.WriteByte(b)
}

func writeI16(w *countingWriter, order binary.ByteOrder, v int16) error {
	var buf [2]byte
	order.PutUint16(buf[:], uint16(v))
	_, err := w.Write(buf[:])
	return err
}

func writeI32(w *countingWriter, order binary.ByteOrder, v int32) error {
	var buf [4]byte
	order.PutUint32(buf[:], uint32(v))
	_, err := w.Write(buf[:])
	return err
}

func writeI64(w *countingWriter, order binary.ByteOrder, v int64) error {
	var buf [8]byte
	order.PutUint64(buf[:], uint64(v))
	_, err := w.Write(buf[:])
	return err
}

func writeF32(w *countingWriter, order binary.ByteOrder, v float32) error {
	return writeI32(w, order, int32(math.Float32bits(v)))
}

func writeF64(w *countingWriter, order binary.ByteOrder, v float64) error {
	return writeI64(w, order, int64(math.Float64bits(v)))
}

// writeWireString writes a u16-length-prefixed UTF-8 string. Strings
// longer than the wire limit fail; long strings go through a fixed
// buffer to avoid a full byte-slice conversion.
func writeWireString(w *countingWriter, order binary.ByteOrder, s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: string is not valid UTF-8", ErrInvalidArgument)
	}
	if len(s) > maxStringLen {
		return fmt.Errorf("%w: string of %d bytes exceeds the %d-byte wire limit",
			ErrInvalidArgument, len(s), maxStringLen)
	}
	if err := writeI16(w, order, int16(len(s))); err != nil {
		return err
	}
	if len(s) == 0 {
		return nil
	}
	if len(s) <= stringStreamThreshold {
		_, err := w.Write([]byte(s))
		return err
	}
	var buf [stringStreamThreshold]byte
	for off := 0; off < len(s); {
		n := copy(buf[:], s[off:])
		if _, err := w.Write(buf[:n]); err != nil {
			return err
		}
		off += n
	}
	return nil
}

// writeBytes writes p in chunks bounded by maxWriteChunk.
func writeBytes(w *countingWriter, p []byte) error {
	for len(p) > 0 {
		n := len(p)
		if n > maxWriteChunk {
			n = maxWriteChunk
		}
		if _, err := w.Write(p[:n]); err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// skipBytes discards n payload bytes, reporting truncation when the
// source ends early.
func skipBytes(r *countingReader, n int64) error {
	if err := r.Discard(n); err != nil {
		return truncated(err)
	}
	return nil
}
