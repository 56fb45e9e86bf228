package nbt

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Selector filters tags during a read. It is invoked with a partially
// populated tag (type, name and parent chain only, payload not yet
// decoded) so it can prune by location; returning false skips the
// payload without materializing it and omits the tag from the result.
// The root is always kept.
type Selector func(*Tag) bool

// readRoot materializes a full tag tree from the stream. The root must
// be a compound.
func readRoot(cr *countingReader, order binary.ByteOrder, sel Selector) (*Tag, error) {
	tb, err := readU8(cr)
	if err != nil {
		return nil, err
	}
	if TagType(tb) != TagCompound {
		return nil, fmt.Errorf("%w: root tag must be a compound, got %s", ErrMalformed, TagType(tb))
	}
	name, err := readWireString(cr, order)
	if err != nil {
		return nil, err
	}
	root := NewNamedCompound(name)
	if err := readCompoundPayload(cr, order, sel, root); err != nil {
		return nil, err
	}
	return root, nil
}

func readCompoundPayload(cr *countingReader, order binary.ByteOrder, sel Selector, parent *Tag) error {
	for {
		tb, err := readU8(cr)
		if err != nil {
			return err
		}
		typ := TagType(tb)
		if typ == TagEnd {
			return nil
		}
		if !typ.IsWireType() {
			return fmt.Errorf("%w: invalid tag type %d", ErrMalformed, tb)
		}
		name, err := readWireString(cr, order)
		if err != nil {
			return err
		}
		child := newShell(typ)
		child.name = name
		child.hasName = true
		child.parent = parent // selector sees the parent chain
		if sel != nil && !sel(child) {
			child.parent = nil
			if err := skipPayload(cr, order, typ); err != nil {
				return err
			}
			continue
		}
		if err := readPayload(cr, order, sel, child); err != nil {
			return err
		}
		child.parent = nil
		if err := parent.Add(child); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
}

// newShell allocates a tag of the given type with container fields
// initialized but no payload.
func newShell(typ TagType) *Tag {
	t := &Tag{typ: typ}
	switch typ {
	case TagCompound:
		t.index = make(map[string]int)
	case TagList:
		t.elemType = TagUnknown
	}
	return t
}

func readPayload(cr *countingReader, order binary.ByteOrder, sel Selector, t *Tag) error {
	switch t.typ {
	case TagByte:
		b, err := readU8(cr)
		if err != nil {
			return err
		}
		t.num = uint64(b)
	case TagShort:
		v, err := readI16(cr, order)
		if err != nil {
			return err
		}
		t.num = uint64(uint16(v))
	case TagInt:
		v, err := readI32(cr, order)
		if err != nil {
			return err
		}
		t.num = uint64(uint32(v))
	case TagLong:
		v, err := readI64(cr, order)
		if err != nil {
			return err
		}
		t.num = uint64(v)
	case TagFloat:
		v, err := readI32(cr, order)
		if err != nil {
			return err
		}
		t.num = uint64(uint32(v))
	case TagDouble:
		v, err := readI64(cr, order)
		if err != nil {
			return err
		}
		t.num = uint64(v)
	case TagString:
		s, err := readWireString(cr, order)
		if err != nil {
			return err
		}
		t.str = s
	case TagByteArray:
		n, err := readArrayLength(cr, order)
		if err != nil {
			return err
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(cr, buf); err != nil {
			return truncated(err)
		}
		t.bytes = buf
	case TagIntArray:
		n, err := readArrayLength(cr, order)
		if err != nil {
			return err
		}
		vals := make([]int32, n)
		for i := range vals {
			if vals[i], err = readI32(cr, order); err != nil {
				return err
			}
		}
		t.ints = vals
	case TagLongArray:
		n, err := readArrayLength(cr, order)
		if err != nil {
			return err
		}
		vals := make([]int64, n)
		for i := range vals {
			if vals[i], err = readI64(cr, order); err != nil {
				return err
			}
		}
		t.longs = vals
	case TagCompound:
		return readCompoundPayload(cr, order, sel, t)
	case TagList:
		return readListPayload(cr, order, sel, t)
	default:
		return fmt.Errorf("%w: invalid tag type %d", ErrMalformed, byte(t.typ))
	}
	return nil
}

func readListPayload(cr *countingReader, order binary.ByteOrder, sel Selector, t *Tag) error {
	eb, err := readU8(cr)
	if err != nil {
		return err
	}
	elem := TagType(eb)
	if !elem.IsWireType() {
		return fmt.Errorf("%w: invalid list element type %d", ErrMalformed, eb)
	}
	n, err := readI32(cr, order)
	if err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("%w: negative list length %d", ErrMalformed, n)
	}
	if n > 0 && elem == TagEnd {
		return fmt.Errorf("%w: non-empty list of TAG_End", ErrMalformed)
	}
	t.elemType = elem
	for i := int32(0); i < n; i++ {
		el := newShell(elem)
		el.parent = t
		if sel != nil && !sel(el) {
			el.parent = nil
			if err := skipPayload(cr, order, elem); err != nil {
				return err
			}
			continue
		}
		if err := readPayload(cr, order, sel, el); err != nil {
			return err
		}
		t.children = append(t.children, el)
	}
	return nil
}

func readArrayLength(cr *countingReader, order binary.ByteOrder) (int32, error) {
	n, err := readI32(cr, order)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative array length %d", ErrMalformed, n)
	}
	return n, nil
}

// skipPayload consumes a tag's payload without materializing it.
func skipPayload(cr *countingReader, order binary.ByteOrder, typ TagType) error {
	_, err := skipPayloadN(cr, order, typ)
	return err
}

// skipPayloadN consumes a tag's payload and returns the number of tags
// it contained (compound children and list elements, recursively).
func skipPayloadN(cr *countingReader, order binary.ByteOrder, typ TagType) (int, error) {
	if size := typ.payloadSize(); size >= 0 {
		return 0, skipBytes(cr, int64(size))
	}
	switch typ {
	case TagString:
		n, err := readI16(cr, order)
		if err != nil {
			return 0, err
		}
		if n < 0 {
			return 0, fmt.Errorf("%w: negative string length %d", ErrMalformed, n)
		}
		return 0, skipBytes(cr, int64(n))
	case TagByteArray:
		n, err := readArrayLength(cr, order)
		if err != nil {
			return 0, err
		}
		return 0, skipBytes(cr, int64(n))
	case TagIntArray:
		n, err := readArrayLength(cr, order)
		if err != nil {
			return 0, err
		}
		return 0, skipBytes(cr, int64(n)*4)
	case TagLongArray:
		n, err := readArrayLength(cr, order)
		if err != nil {
			return 0, err
		}
		return 0, skipBytes(cr, int64(n)*8)
	case TagCompound:
		tags := 0
		for {
			tb, err := readU8(cr)
			if err != nil {
				return tags, err
			}
			if TagType(tb) == TagEnd {
				return tags, nil
			}
			if !TagType(tb).IsWireType() {
				return tags, fmt.Errorf("%w: invalid tag type %d", ErrMalformed, tb)
			}
			n, err := readI16(cr, order)
			if err != nil {
				return tags, err
			}
			if n < 0 {
				return tags, fmt.Errorf("%w: negative string length %d", ErrMalformed, n)
			}
			if err := skipBytes(cr, int64(n)); err != nil {
				return tags, err
			}
			inner, err := skipPayloadN(cr, order, TagType(tb))
			tags += 1 + inner
			if err != nil {
				return tags, err
			}
		}
	case TagList:
		eb, err := readU8(cr)
		if err != nil {
			return 0, err
		}
		elem := TagType(eb)
		if !elem.IsWireType() {
			return 0, fmt.Errorf("%w: invalid list element type %d", ErrMalformed, eb)
		}
		n, err := readI32(cr, order)
		if err != nil {
			return 0, err
		}
		if n < 0 {
			return 0, fmt.Errorf("%w: negative list length %d", ErrMalformed, n)
		}
		if n > 0 && elem == TagEnd {
			return 0, fmt.Errorf("%w: non-empty list of TAG_End", ErrMalformed)
		}
		if size := elem.payloadSize(); size >= 0 {
			return int(n), skipBytes(cr, int64(n)*int64(size))
		}
		tags := 0
		for i := int32(0); i < n; i++ {
			inner, err := skipPayloadN(cr, order, elem)
			tags += 1 + inner
			if err != nil {
				return tags, err
			}
		}
		return tags, nil
	}
	return 0, fmt.Errorf("%w: invalid tag type %d", ErrMalformed, byte(typ))
}
