package nbt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"strings"
	"testing"
)

func TestPrimitiveSymmetry(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		var buf bytes.Buffer
		cw := newCountingWriter(&buf)

		if err := writeU8(cw, 0xAB); err != nil {
			t.Fatalf("writeU8: %v", err)
		}
		if err := writeI16(cw, order, -12345); err != nil {
			t.Fatalf("writeI16: %v", err)
		}
		if err := writeI32(cw, order, -123456789); err != nil {
			t.Fatalf("writeI32: %v", err)
		}
		if err := writeI64(cw, order, -1234567890123456789); err != nil {
			t.Fatalf("writeI64: %v", err)
		}
		if err := writeF32(cw, order, float32(math.Pi)); err != nil {
			t.Fatalf("writeF32: %v", err)
		}
		if err := writeF64(cw, order, math.E); err != nil {
			t.Fatalf("writeF64: %v", err)
		}

		cr := newCountingReader(bytes.NewReader(buf.Bytes()))
		if v, err := readU8(cr); err != nil || v != 0xAB {
			t.Fatalf("readU8 = %v, %v", v, err)
		}
		if v, err := readI16(cr, order); err != nil || v != -12345 {
			t.Fatalf("readI16 = %v, %v", v, err)
		}
		if v, err := readI32(cr, order); err != nil || v != -123456789 {
			t.Fatalf("readI32 = %v, %v", v, err)
		}
		if v, err := readI64(cr, order); err != nil || v != -1234567890123456789 {
			t.Fatalf("readI64 = %v, %v", v, err)
		}
		if v, err := readF32(cr, order); err != nil || v != float32(math.Pi) {
			t.Fatalf("readF32 = %v, %v", v, err)
		}
		if v, err := readF64(cr, order); err != nil || v != math.E {
			t.Fatalf("readF64 = %v, %v", v, err)
		}
		if cr.BytesRead() != cw.BytesWritten() {
			t.Fatalf("byte accounting mismatch: read %d, wrote %d", cr.BytesRead(), cw.BytesWritten())
		}
	}
}

func TestShortSymmetryExhaustive(t *testing.T) {
	var buf bytes.Buffer
	cw := newCountingWriter(&buf)
	for v := math.MinInt16; v <= math.MaxInt16; v++ {
		if err := writeI16(cw, binary.BigEndian, int16(v)); err != nil {
			t.Fatalf("writeI16(%d): %v", v, err)
		}
	}
	cr := newCountingReader(bytes.NewReader(buf.Bytes()))
	for v := math.MinInt16; v <= math.MaxInt16; v++ {
		got, err := readI16(cr, binary.BigEndian)
		if err != nil {
			t.Fatalf("readI16: %v", err)
		}
		if got != int16(v) {
			t.Fatalf("readI16 = %d, want %d", got, v)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, s := range []string{
		"",
		"hello",
		"héllo wörld é世界",
		strings.Repeat("x", stringStreamThreshold+100),
		strings.Repeat("y", maxStringLen),
	} {
		var buf bytes.Buffer
		if err := writeWireString(newCountingWriter(&buf), binary.BigEndian, s); err != nil {
			t.Fatalf("write %q: %v", s[:min(len(s), 16)], err)
		}
		got, err := readWireString(newCountingReader(bytes.NewReader(buf.Bytes())), binary.BigEndian)
		if err != nil {
			t.Fatalf("read back: %v", err)
		}
		if got != s {
			t.Fatalf("round trip mismatch for %d-byte string", len(s))
		}
	}
}

func TestStringTooLong(t *testing.T) {
	var buf bytes.Buffer
	err := writeWireString(newCountingWriter(&buf), binary.BigEndian, strings.Repeat("z", maxStringLen+1))
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestStringNegativeLength(t *testing.T) {
	// Length 0x8000 reads as a negative int16.
	data := []byte{0x80, 0x00}
	_, err := readWireString(newCountingReader(bytes.NewReader(data)), binary.BigEndian)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestStringInvalidUTF8(t *testing.T) {
	data := []byte{0x00, 0x02, 0xff, 0xfe}
	_, err := readWireString(newCountingReader(bytes.NewReader(data)), binary.BigEndian)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestTruncatedReads(t *testing.T) {
	for _, data := range [][]byte{
		{},
		{0x01},
		{0x00, 0x05, 'a', 'b'},
	} {
		cr := newCountingReader(bytes.NewReader(data))
		var err error
		if len(data) < 2 {
			_, err = readI16(cr, binary.BigEndian)
		} else {
			_, err = readWireString(cr, binary.BigEndian)
		}
		if !errors.Is(err, ErrTruncated) {
			t.Fatalf("input %v: expected ErrTruncated, got %v", data, err)
		}
	}
}

// nonSeeker hides Seek, ReadByte and friends from the counting reader.
type nonSeeker struct {
	r io.Reader
}

func (n *nonSeeker) Read(p []byte) (int, error) { return n.r.Read(p) }

func TestCountingReaderSingleAndBulk(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6}

	// Source without a native ReadByte: the single-byte path goes
	// through bulk Read and must count each byte exactly once.
	cr := newCountingReader(&nonSeeker{r: bytes.NewReader(data)})
	if _, err := cr.ReadByte(); err != nil {
		t.Fatalf("ReadByte: %v", err)
	}
	buf := make([]byte, 3)
	if _, err := io.ReadFull(cr, buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if _, err := cr.ReadByte(); err != nil {
		t.Fatalf("ReadByte: %v", err)
	}
	if cr.BytesRead() != 5 {
		t.Fatalf("BytesRead = %d, want 5", cr.BytesRead())
	}

	// Source with a native ReadByte.
	cr = newCountingReader(bytes.NewReader(data))
	if _, err := cr.ReadByte(); err != nil {
		t.Fatalf("ReadByte: %v", err)
	}
	if _, err := io.ReadFull(cr, buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if cr.BytesRead() != 4 {
		t.Fatalf("BytesRead = %d, want 4", cr.BytesRead())
	}
}

func TestCountingWriterSingleAndBulk(t *testing.T) {
	var sink bytes.Buffer
	cw := newCountingWriter(&sink) // bytes.Buffer has WriteByte
	if err := cw.WriteByte(1); err != nil {
		t.Fatalf("WriteByte: %v", err)
	}
	if _, err := cw.Write([]byte{2, 3, 4}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if cw.BytesWritten() != 4 {
		t.Fatalf("BytesWritten = %d, want 4", cw.BytesWritten())
	}
}

func TestDiscardSeekableAndNot(t *testing.T) {
	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i)
	}

	seekable := newCountingReader(bytes.NewReader(data))
	if err := seekable.Discard(900); err != nil {
		t.Fatalf("Discard seekable: %v", err)
	}
	if seekable.BytesRead() != 900 {
		t.Fatalf("BytesRead = %d, want 900", seekable.BytesRead())
	}
	b, err := seekable.ReadByte()
	if err != nil || b != data[900] {
		t.Fatalf("ReadByte after seek = %d, %v", b, err)
	}

	plain := newCountingReader(&nonSeeker{r: bytes.NewReader(data)})
	if err := plain.Discard(900); err != nil {
		t.Fatalf("Discard read-through: %v", err)
	}
	if plain.BytesRead() != 900 {
		t.Fatalf("BytesRead = %d, want 900", plain.BytesRead())
	}
	b, err = plain.ReadByte()
	if err != nil || b != data[900] {
		t.Fatalf("ReadByte after discard = %d, %v", b, err)
	}
}
