package nbt

import "fmt"

// TagType identifies the payload kind of a tag. The wire values are fixed
// by the NBT format.
type TagType byte

const (
	TagEnd       TagType = 0
	TagByte      TagType = 1
	TagShort     TagType = 2
	TagInt       TagType = 3
	TagLong      TagType = 4
	TagFloat     TagType = 5
	TagDouble    TagType = 6
	TagByteArray TagType = 7
	TagString    TagType = 8
	TagList      TagType = 9
	TagCompound  TagType = 10
	TagIntArray  TagType = 11
	TagLongArray TagType = 12

	// TagUnknown marks a list whose element type has not been determined
	// yet. It exists only in memory and is never written to the wire.
	TagUnknown TagType = 0xff
)

var tagTypeNames = [...]string{
	"TAG_End", "TAG_Byte", "TAG_Short", "TAG_Int", "TAG_Long", "TAG_Float",
	"TAG_Double", "TAG_Byte_Array", "TAG_String", "TAG_List", "TAG_Compound",
	"TAG_Int_Array", "TAG_Long_Array",
}

func (t TagType) String() string {
	if t == TagUnknown {
		return "TAG_Unknown"
	}
	if int(t) < len(tagTypeNames) {
		return tagTypeNames[t]
	}
	return fmt.Sprintf("TAG_Invalid(%d)", byte(t))
}

// IsWireType reports whether t has a wire representation, End included.
func (t TagType) IsWireType() bool {
	return t <= TagLongArray
}

// HasValue reports whether tags of this type carry a directly readable
// payload: every type except End, List, Compound and Unknown.
func (t TagType) HasValue() bool {
	switch t {
	case TagEnd, TagList, TagCompound, TagUnknown:
		return false
	}
	return t.IsWireType()
}

// IsContainer reports whether tags of this type hold child tags.
func (t TagType) IsContainer() bool {
	return t == TagList || t == TagCompound
}

// hasLength reports whether the type carries an element count on the wire.
func (t TagType) hasLength() bool {
	switch t {
	case TagList, TagByteArray, TagIntArray, TagLongArray:
		return true
	}
	return false
}

// payloadSize returns the fixed payload width in bytes, or -1 for
// variable-size types.
func (t TagType) payloadSize() int {
	switch t {
	case TagEnd:
		return 0
	case TagByte:
		return 1
	case TagShort:
		return 2
	case TagInt, TagFloat:
		return 4
	case TagLong, TagDouble:
		return 8
	}
	return -1
}
