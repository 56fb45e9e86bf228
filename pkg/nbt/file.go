package nbt

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// File is the load/mutate/save façade over the tree reader and writer.
// The zero value is not ready; use NewFile. Readers and writers borrow
// the transports passed to Load and Save; files opened by LoadFile and
// SaveFile are owned and closed by the method.
type File struct {
	// Root is the tree's root compound. Never nil after a successful
	// load; must be a compound when saving.
	Root *Tag

	// Compression selects the framing. CompressionAutoDetect (the
	// default) resolves from the leading byte on load and is illegal on
	// save.
	Compression Compression

	// ByteOrder is the wire endianness, big-endian by default.
	ByteOrder binary.ByteOrder

	// BufferSize is the read buffer for stream loads; 0 means
	// unbuffered. Snapshotted from the process default at construction.
	BufferSize int

	// Selector, when set, prunes tags during loads.
	Selector Selector
}

// NewFile returns a File with an empty root compound and the
// process-wide default buffer size.
func NewFile() *File {
	return &File{
		Root:        NewNamedCompound(""),
		Compression: CompressionAutoDetect,
		ByteOrder:   binary.BigEndian,
		BufferSize:  DefaultBufferSize(),
	}
}

func (f *File) order() binary.ByteOrder {
	if f.ByteOrder == nil {
		return binary.BigEndian
	}
	return f.ByteOrder
}

// LoadFile reads the tree from the file at path. It returns the number
// of uncompressed NBT bytes consumed.
func (f *File) LoadFile(path string) (int64, error) {
	fh, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open nbt file: %w", err)
	}
	defer fh.Close()
	n, err := f.Load(fh)
	if err != nil {
		return n, fmt.Errorf("load %s: %w", path, err)
	}
	return n, nil
}

// LoadBytes reads the tree from an in-memory buffer.
func (f *File) LoadBytes(p []byte) (int64, error) {
	return f.Load(bytes.NewReader(p))
}

// Load reads the tree from r, resolving auto-detected compression by
// peeking the first byte. The target tree is replaced only on success.
func (f *File) Load(r io.Reader) (int64, error) {
	var src io.Reader = r
	if f.BufferSize > 0 {
		src = bufio.NewReaderSize(r, f.BufferSize)
	}
	comp := f.Compression
	if comp == CompressionAutoDetect {
		var first [1]byte
		if _, err := io.ReadFull(src, first[:]); err != nil {
			return 0, truncated(err)
		}
		var err error
		if comp, err = detectCompression(first[0]); err != nil {
			return 0, err
		}
		src = io.MultiReader(bytes.NewReader(first[:]), src)
	}
	dec, err := NewDecompressor(src, comp, false)
	if err != nil {
		return 0, err
	}
	defer dec.Close()
	cr := newCountingReader(dec)
	root, err := readRoot(cr, f.order(), f.Selector)
	if err != nil {
		return cr.BytesRead(), err
	}
	f.Root = root
	return cr.BytesRead(), nil
}

// SaveFile writes the tree to path atomically: the bytes land in a
// temporary file that replaces path only after a clean close.
func (f *File) SaveFile(path string) (int64, error) {
	tmp := path + ".tmp"
	fh, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create temp nbt file: %w", err)
	}
	defer func() {
		fh.Close()
		os.Remove(tmp)
	}()
	n, err := f.Save(fh)
	if err != nil {
		return n, fmt.Errorf("save %s: %w", path, err)
	}
	if err := fh.Close(); err != nil {
		return n, fmt.Errorf("close temp nbt file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return n, fmt.Errorf("rename nbt file: %w", err)
	}
	return n, nil
}

// SaveBytes serializes the tree into a fresh buffer.
func (f *File) SaveBytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := f.Save(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the tree to w and returns the number of bytes delivered
// to it (after compression).
func (f *File) Save(w io.Writer) (int64, error) {
	if f.Root == nil || f.Root.typ != TagCompound {
		return 0, fmt.Errorf("%w: file root must be a compound", ErrFormat)
	}
	if f.Compression == CompressionAutoDetect {
		return 0, fmt.Errorf("%w: auto-detect is illegal on write", ErrInvalidArgument)
	}
	cw := newCountingWriter(w)
	enc, err := NewCompressor(cw, f.Compression, false)
	if err != nil {
		return 0, err
	}
	if err := writeRoot(newCountingWriter(enc), f.order(), f.Root); err != nil {
		enc.Close()
		return cw.BytesWritten(), err
	}
	if err := enc.Close(); err != nil {
		return cw.BytesWritten(), fmt.Errorf("flush compressed stream: %w", err)
	}
	return cw.BytesWritten(), nil
}
