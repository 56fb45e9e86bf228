package nbt

import (
	"encoding/binary"
	"fmt"
	"math"
)

// writeRoot serializes a tag tree. The root must be a compound; its name
// is written even when empty.
func writeRoot(cw *countingWriter, order binary.ByteOrder, root *Tag) error {
	if root == nil {
		return fmt.Errorf("%w: nil root", ErrInvalidArgument)
	}
	if root.typ != TagCompound {
		return fmt.Errorf("%w: root tag must be a compound, got %s", ErrFormat, root.typ)
	}
	return writeNamedTag(cw, order, root)
}

func writeNamedTag(cw *countingWriter, order binary.ByteOrder, t *Tag) error {
	if err := writeU8(cw, byte(t.typ)); err != nil {
		return err
	}
	if err := writeWireString(cw, order, t.name); err != nil {
		return err
	}
	return writePayload(cw, order, t)
}

func writePayload(cw *countingWriter, order binary.ByteOrder, t *Tag) error {
	switch t.typ {
	case TagByte:
		return writeU8(cw, byte(t.num))
	case TagShort:
		return writeI16(cw, order, int16(uint16(t.num)))
	case TagInt:
		return writeI32(cw, order, int32(uint32(t.num)))
	case TagLong:
		return writeI64(cw, order, int64(t.num))
	case TagFloat:
		return writeF32(cw, order, math.Float32frombits(uint32(t.num)))
	case TagDouble:
		return writeF64(cw, order, math.Float64frombits(t.num))
	case TagString:
		return writeWireString(cw, order, t.str)
	case TagByteArray:
		if err := writeI32(cw, order, int32(len(t.bytes))); err != nil {
			return err
		}
		return writeBytes(cw, t.bytes)
	case TagIntArray:
		if err := writeI32(cw, order, int32(len(t.ints))); err != nil {
			return err
		}
		for _, v := range t.ints {
			if err := writeI32(cw, order, v); err != nil {
				return err
			}
		}
		return nil
	case TagLongArray:
		if err := writeI32(cw, order, int32(len(t.longs))); err != nil {
			return err
		}
		for _, v := range t.longs {
			if err := writeI64(cw, order, v); err != nil {
				return err
			}
		}
		return nil
	case TagCompound:
		for _, child := range t.children {
			if err := writeNamedTag(cw, order, child); err != nil {
				return err
			}
		}
		return writeU8(cw, byte(TagEnd))
	case TagList:
		if t.elemType == TagUnknown {
			return fmt.Errorf("%w: list %q has an undetermined element type", ErrFormat, t.name)
		}
		if err := writeU8(cw, byte(t.elemType)); err != nil {
			return err
		}
		if err := writeI32(cw, order, int32(len(t.children))); err != nil {
			return err
		}
		for _, child := range t.children {
			if err := writePayload(cw, order, child); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: cannot serialize %s", ErrFormat, t.typ)
}
