package nbt

import (
	"encoding/binary"
	"fmt"
	"io"
)

// defaultCopyBuffer is the buffer size used when streaming array
// payloads from a reader and the caller supplied none.
const defaultCopyBuffer = 8 << 10

// Writer emits a well-formed NBT byte stream without building a tag
// tree. The root compound is established at construction; every call is
// validated against the current frame: names are required in compound
// context and forbidden in list context (pass "" for list elements),
// list elements must match the declared type and count.
//
// The writer enforces structural rules only: it does not track name
// uniqueness inside compounds, so emitting two children with the same
// name produces bytes a strict consumer may reject.
//
// The writer borrows w and never closes it.
type Writer struct {
	cw       *countingWriter
	order    binary.ByteOrder
	stack    []frame
	finished bool
	err      error // deferred root header error
}

// NewWriter returns a big-endian writer whose root compound carries the
// given name.
func NewWriter(w io.Writer, rootName string) *Writer {
	return NewWriterByteOrder(w, rootName, binary.BigEndian)
}

// NewWriterByteOrder returns a writer emitting with the given byte order.
func NewWriterByteOrder(w io.Writer, rootName string, order binary.ByteOrder) *Writer {
	nw := &Writer{cw: newCountingWriter(w), order: order}
	if err := writeU8(nw.cw, byte(TagCompound)); err != nil {
		nw.err = err
	} else if err := writeWireString(nw.cw, order, rootName); err != nil {
		nw.err = err
	}
	nw.stack = append(nw.stack, frame{typ: TagCompound, name: rootName, hasName: true, elemType: TagUnknown, length: -1})
	return nw
}

// BytesWritten returns the number of bytes delivered to the sink.
func (w *Writer) BytesWritten() int64 { return w.cw.BytesWritten() }

// Depth returns the number of open containers, the root included.
func (w *Writer) Depth() int { return len(w.stack) }

// enforce validates one emission in the current context and writes the
// tag header when in compound context.
func (w *Writer) enforce(name string, typ TagType) error {
	if w.err != nil {
		return w.err
	}
	if w.finished {
		return fmt.Errorf("%w: writer is finished", ErrFormat)
	}
	if len(w.stack) == 0 {
		return fmt.Errorf("%w: root compound is closed", ErrFormat)
	}
	top := &w.stack[len(w.stack)-1]
	if top.typ == TagList {
		if name != "" {
			return fmt.Errorf("%w: list elements are unnamed", ErrFormat)
		}
		if typ != top.elemType {
			return fmt.Errorf("%w: list of %s cannot hold %s", ErrFormat, top.elemType, typ)
		}
		if top.index >= top.length {
			return fmt.Errorf("%w: list is full: declared %d elements", ErrFormat, top.length)
		}
		top.index++
		return nil
	}
	if err := writeU8(w.cw, byte(typ)); err != nil {
		return err
	}
	return writeWireString(w.cw, w.order, name)
}

// WriteByte emits a byte tag. In list context name must be "".
func (w *Writer) WriteByte(name string, v byte) error {
	if err := w.enforce(name, TagByte); err != nil {
		return err
	}
	return writeU8(w.cw, v)
}

// WriteShort emits a short tag.
func (w *Writer) WriteShort(name string, v int16) error {
	if err := w.enforce(name, TagShort); err != nil {
		return err
	}
	return writeI16(w.cw, w.order, v)
}

// WriteInt emits an int tag.
func (w *Writer) WriteInt(name string, v int32) error {
	if err := w.enforce(name, TagInt); err != nil {
		return err
	}
	return writeI32(w.cw, w.order, v)
}

// WriteLong emits a long tag.
func (w *Writer) WriteLong(name string, v int64) error {
	if err := w.enforce(name, TagLong); err != nil {
		return err
	}
	return writeI64(w.cw, w.order, v)
}

// WriteFloat emits a float tag.
func (w *Writer) WriteFloat(name string, v float32) error {
	if err := w.enforce(name, TagFloat); err != nil {
		return err
	}
	return writeF32(w.cw, w.order, v)
}

// WriteDouble emits a double tag.
func (w *Writer) WriteDouble(name string, v float64) error {
	if err := w.enforce(name, TagDouble); err != nil {
		return err
	}
	return writeF64(w.cw, w.order, v)
}

// WriteString emits a string tag.
func (w *Writer) WriteString(name, v string) error {
	if err := w.enforce(name, TagString); err != nil {
		return err
	}
	return writeWireString(w.cw, w.order, v)
}

// WriteByteArray emits a byte array tag from a slice.
func (w *Writer) WriteByteArray(name string, v []byte) error {
	if v == nil {
		return fmt.Errorf("%w: nil byte array", ErrInvalidArgument)
	}
	if err := w.enforce(name, TagByteArray); err != nil {
		return err
	}
	if err := writeI32(w.cw, w.order, int32(len(v))); err != nil {
		return err
	}
	return writeBytes(w.cw, v)
}

// WriteByteArrayFrom emits a byte array tag by copying count bytes out
// of r through buf. A nil buf uses an internal 8 KiB buffer.
func (w *Writer) WriteByteArrayFrom(name string, r io.Reader, count int, buf []byte) error {
	if r == nil {
		return fmt.Errorf("%w: nil reader", ErrInvalidArgument)
	}
	if count < 0 {
		return fmt.Errorf("%w: negative count %d", ErrInvalidArgument, count)
	}
	if buf != nil && len(buf) == 0 {
		return fmt.Errorf("%w: empty copy buffer", ErrInvalidArgument)
	}
	if buf == nil {
		buf = make([]byte, defaultCopyBuffer)
	}
	if err := w.enforce(name, TagByteArray); err != nil {
		return err
	}
	if err := writeI32(w.cw, w.order, int32(count)); err != nil {
		return err
	}
	for count > 0 {
		chunk := len(buf)
		if count < chunk {
			chunk = count
		}
		n, err := io.ReadFull(r, buf[:chunk])
		if err != nil {
			return truncated(err)
		}
		if _, err := w.cw.Write(buf[:n]); err != nil {
			return err
		}
		count -= n
	}
	return nil
}

// WriteIntArray emits an int array tag.
func (w *Writer) WriteIntArray(name string, v []int32) error {
	if v == nil {
		return fmt.Errorf("%w: nil int array", ErrInvalidArgument)
	}
	if err := w.enforce(name, TagIntArray); err != nil {
		return err
	}
	if err := writeI32(w.cw, w.order, int32(len(v))); err != nil {
		return err
	}
	for _, val := range v {
		if err := writeI32(w.cw, w.order, val); err != nil {
			return err
		}
	}
	return nil
}

// WriteLongArray emits a long array tag.
func (w *Writer) WriteLongArray(name string, v []int64) error {
	if v == nil {
		return fmt.Errorf("%w: nil long array", ErrInvalidArgument)
	}
	if err := w.enforce(name, TagLongArray); err != nil {
		return err
	}
	if err := writeI32(w.cw, w.order, int32(len(v))); err != nil {
		return err
	}
	for _, val := range v {
		if err := writeI64(w.cw, w.order, val); err != nil {
			return err
		}
	}
	return nil
}

// BeginCompound opens a compound tag. Close it with EndCompound.
func (w *Writer) BeginCompound(name string) error {
	if err := w.enforce(name, TagCompound); err != nil {
		return err
	}
	w.stack = append(w.stack, frame{typ: TagCompound, name: name, hasName: true, elemType: TagUnknown, length: -1})
	return nil
}

// EndCompound closes the innermost compound, emitting its end marker.
func (w *Writer) EndCompound() error {
	if w.err != nil {
		return w.err
	}
	if w.finished {
		return fmt.Errorf("%w: writer is finished", ErrFormat)
	}
	if len(w.stack) == 0 || w.stack[len(w.stack)-1].typ != TagCompound {
		return fmt.Errorf("%w: not in a compound", ErrFormat)
	}
	if err := writeU8(w.cw, byte(TagEnd)); err != nil {
		return err
	}
	w.stack = w.stack[:len(w.stack)-1]
	return nil
}

// BeginList opens a list tag that will hold exactly size elements of
// the given type. Close it with EndList after writing all elements.
func (w *Writer) BeginList(name string, elem TagType, size int) error {
	if size < 0 {
		return fmt.Errorf("%w: negative list size %d", ErrInvalidArgument, size)
	}
	if elem < TagByte || elem > TagLongArray {
		return fmt.Errorf("%w: invalid list element type %s", ErrInvalidArgument, elem)
	}
	if err := w.enforce(name, TagList); err != nil {
		return err
	}
	if err := writeU8(w.cw, byte(elem)); err != nil {
		return err
	}
	if err := writeI32(w.cw, w.order, int32(size)); err != nil {
		return err
	}
	w.stack = append(w.stack, frame{typ: TagList, name: name, hasName: name != "", elemType: elem, length: int32(size)})
	return nil
}

// EndList closes the innermost list. All declared elements must have
// been written.
func (w *Writer) EndList() error {
	if w.err != nil {
		return w.err
	}
	if w.finished {
		return fmt.Errorf("%w: writer is finished", ErrFormat)
	}
	if len(w.stack) == 0 || w.stack[len(w.stack)-1].typ != TagList {
		return fmt.Errorf("%w: not in a list", ErrFormat)
	}
	top := w.stack[len(w.stack)-1]
	if top.index != top.length {
		return fmt.Errorf("%w: not all list elements written: expected %d, written %d", ErrFormat, top.length, top.index)
	}
	w.stack = w.stack[:len(w.stack)-1]
	return nil
}

// WriteTag emits a tag tree in the current context: named when in a
// compound (the tag must carry a name), unnamed when in a list.
func (w *Writer) WriteTag(t *Tag) error {
	if t == nil {
		return fmt.Errorf("%w: nil tag", ErrInvalidArgument)
	}
	if len(w.stack) > 0 && w.stack[len(w.stack)-1].typ == TagCompound && !t.hasName {
		return fmt.Errorf("%w: compound entries must be named", ErrFormat)
	}
	name := ""
	if len(w.stack) > 0 && w.stack[len(w.stack)-1].typ == TagCompound {
		name = t.name
	}
	if err := w.enforce(name, t.typ); err != nil {
		return err
	}
	return writePayload(w.cw, w.order, t)
}

// Finish verifies that every container has been closed. It emits no
// bytes; an unclosed frame is a format error.
func (w *Writer) Finish() error {
	if w.err != nil {
		return w.err
	}
	if w.finished {
		return nil
	}
	if len(w.stack) > 0 {
		return fmt.Errorf("%w: %d container(s) left open", ErrFormat, len(w.stack))
	}
	w.finished = true
	return nil
}
