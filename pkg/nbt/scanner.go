package nbt

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Scanner walks an NBT byte stream one tag at a time without
// materializing the tree. It borrows the underlying reader and never
// closes it. A Scanner is single-owner: concurrent calls on one instance
// have undefined behavior.
//
// Any format violation latches the scanner into an error state; every
// later advancing operation fails with ErrInvalidState until a new
// Scanner is constructed.
type Scanner struct {
	cr    *countingReader
	order binary.ByteOrder

	// SkipEndTags hides compound end markers from the ReadTo* family
	// when true (the default). When false, each end marker surfaces as a
	// transition with TagType() == TagEnd.
	SkipEndTags bool

	// CacheValues memoizes ReadValue output so repeated reads of the
	// same position return the cached copy.
	CacheValues bool

	started  bool
	atEnd    bool
	err      error
	tagsRead int
	rootName string

	stack []frame
	cur   current
}

// frame records one open container enclosing the scanner's position.
type frame struct {
	typ      TagType
	name     string
	hasName  bool
	elemType TagType
	length   int32 // list length; -1 for compounds
	index    int32 // next list element to read
}

// current describes the tag whose header was read last.
type current struct {
	typ       TagType
	name      string
	hasName   bool
	listType  TagType
	length    int32
	hasLength bool
	listIndex int32 // -1 unless the tag is a list element
	depth     int
	offset    int64
	consumed  bool // payload consumed (read, skipped or materialized)
	value     any
	hasValue  bool
}

// NewScanner returns a big-endian scanner over r. Use NewScannerByteOrder
// for little-endian streams.
func NewScanner(r io.Reader) *Scanner {
	return NewScannerByteOrder(r, binary.BigEndian)
}

// NewScannerByteOrder returns a scanner reading with the given byte order.
func NewScannerByteOrder(r io.Reader, order binary.ByteOrder) *Scanner {
	return &Scanner{
		cr:          newCountingReader(r),
		order:       order,
		SkipEndTags: true,
	}
}

// --- observable state ---

// TagType returns the current tag's type, TagUnknown before the first
// read and after the stream end.
func (s *Scanner) TagType() TagType {
	if !s.positioned() {
		return TagUnknown
	}
	return s.cur.typ
}

// ListType returns the element type when positioned on a list, else
// TagUnknown.
func (s *Scanner) ListType() TagType {
	if !s.positioned() || s.cur.typ != TagList {
		return TagUnknown
	}
	return s.cur.listType
}

// Name returns the current tag's name ("" when unnamed).
func (s *Scanner) Name() string { return s.cur.name }

// HasName reports whether the current tag carries a name.
func (s *Scanner) HasName() bool { return s.positioned() && s.cur.hasName }

// Length returns the element count of the current list or array tag.
func (s *Scanner) Length() int32 { return s.cur.length }

// HasLength reports whether the current tag carries an element count.
func (s *Scanner) HasLength() bool { return s.positioned() && s.cur.hasLength }

// HasValue reports whether the current tag has a readable payload.
func (s *Scanner) HasValue() bool { return s.positioned() && s.cur.typ.HasValue() }

// IsList reports whether the current tag is a list.
func (s *Scanner) IsList() bool { return s.positioned() && s.cur.typ == TagList }

// IsCompound reports whether the current tag is a compound.
func (s *Scanner) IsCompound() bool { return s.positioned() && s.cur.typ == TagCompound }

// IsListElement reports whether the current tag is an element of a list.
func (s *Scanner) IsListElement() bool { return s.positioned() && s.cur.listIndex >= 0 }

// ListIndex returns the current tag's index within its parent list, or
// -1 when it is not a list element.
func (s *Scanner) ListIndex() int32 {
	if !s.positioned() {
		return -1
	}
	return s.cur.listIndex
}

// Depth returns the nesting depth of the current tag; the root compound
// is depth 1. Zero before the first read and after the stream end.
func (s *Scanner) Depth() int {
	if !s.positioned() {
		return 0
	}
	return s.cur.depth
}

// ParentType returns the type of the container enclosing the current
// tag, TagUnknown for the root.
func (s *Scanner) ParentType() TagType {
	if len(s.stack) == 0 {
		return TagUnknown
	}
	return s.stack[len(s.stack)-1].typ
}

// ParentName returns the name of the enclosing container.
func (s *Scanner) ParentName() string {
	if len(s.stack) == 0 {
		return ""
	}
	return s.stack[len(s.stack)-1].name
}

// ParentLength returns the declared length of the enclosing list, or 0.
func (s *Scanner) ParentLength() int32 {
	if len(s.stack) == 0 || s.stack[len(s.stack)-1].typ != TagList {
		return 0
	}
	return s.stack[len(s.stack)-1].length
}

// TagsRead returns the number of tag headers surfaced or skipped so far.
func (s *Scanner) TagsRead() int { return s.tagsRead }

// TagStartOffset returns the input bytes consumed before the current
// tag's header.
func (s *Scanner) TagStartOffset() int64 { return s.cur.offset }

// BytesRead returns the total bytes consumed from the source.
func (s *Scanner) BytesRead() int64 { return s.cr.BytesRead() }

// RootName returns the root compound's name once the root header has
// been read.
func (s *Scanner) RootName() string { return s.rootName }

// AtStreamEnd reports whether the document has been fully traversed.
func (s *Scanner) AtStreamEnd() bool { return s.atEnd }

// Err returns the latched error, if any.
func (s *Scanner) Err() error { return s.err }

func (s *Scanner) positioned() bool {
	return s.started && !s.atEnd
}

func (s *Scanner) fail(err error) error {
	s.err = err
	return err
}

func (s *Scanner) latched() error {
	return fmt.Errorf("%w: scanner is in an error state: %v", ErrInvalidState, s.err)
}

// --- traversal ---

// ReadToFollowing advances to the next tag header in document order,
// descending into and ascending out of containers as needed. It returns
// false at the end of the stream. The payload of a value tag is not
// consumed until ReadValue or the next advance.
func (s *Scanner) ReadToFollowing() (bool, error) {
	if s.err != nil {
		return false, s.latched()
	}
	if s.atEnd {
		return false, nil
	}
	if !s.started {
		return s.readRootHeader()
	}
	if err := s.leaveCurrent(); err != nil {
		return false, s.fail(err)
	}
	for {
		if len(s.stack) == 0 {
			s.atEnd = true
			s.cur = current{listIndex: -1}
			return false, nil
		}
		top := &s.stack[len(s.stack)-1]
		if top.typ == TagList {
			if top.index >= top.length {
				s.stack = s.stack[:len(s.stack)-1]
				continue
			}
			offset := s.cr.BytesRead()
			idx := top.index
			top.index++
			if err := s.setCurrent(top.elemType, "", false, idx, offset); err != nil {
				return false, s.fail(err)
			}
			return true, nil
		}
		// Compound: read the next child header.
		offset := s.cr.BytesRead()
		tb, err := readU8(s.cr)
		if err != nil {
			return false, s.fail(err)
		}
		typ := TagType(tb)
		if typ == TagEnd {
			depth := len(s.stack) + 1
			s.stack = s.stack[:len(s.stack)-1]
			if s.SkipEndTags {
				continue
			}
			s.cur = current{
				typ:       TagEnd,
				listType:  TagUnknown,
				listIndex: -1,
				depth:     depth,
				offset:    offset,
				consumed:  true,
			}
			return true, nil
		}
		if !typ.IsWireType() {
			return false, s.fail(fmt.Errorf("%w: invalid tag type %d", ErrMalformed, tb))
		}
		name, err := readWireString(s.cr, s.order)
		if err != nil {
			return false, s.fail(err)
		}
		if err := s.setCurrent(typ, name, true, -1, offset); err != nil {
			return false, s.fail(err)
		}
		return true, nil
	}
}

func (s *Scanner) readRootHeader() (bool, error) {
	s.started = true
	offset := s.cr.BytesRead()
	tb, err := readU8(s.cr)
	if err != nil {
		return false, s.fail(err)
	}
	if TagType(tb) != TagCompound {
		return false, s.fail(fmt.Errorf("%w: root tag must be a compound, got %s", ErrMalformed, TagType(tb)))
	}
	name, err := readWireString(s.cr, s.order)
	if err != nil {
		return false, s.fail(err)
	}
	s.rootName = name
	s.cur = current{
		typ:       TagCompound,
		name:      name,
		hasName:   true,
		listType:  TagUnknown,
		listIndex: -1,
		depth:     1,
		offset:    offset,
	}
	s.tagsRead++
	return true, nil
}

// setCurrent records a freshly read tag header. List and array headers
// carry their element counts, which are consumed eagerly so Length is
// observable before the payload is read.
func (s *Scanner) setCurrent(typ TagType, name string, hasName bool, listIndex int32, offset int64) error {
	cur := current{
		typ:       typ,
		name:      name,
		hasName:   hasName,
		listType:  TagUnknown,
		listIndex: listIndex,
		depth:     len(s.stack) + 1,
		offset:    offset,
	}
	switch typ {
	case TagList:
		eb, err := readU8(s.cr)
		if err != nil {
			return err
		}
		elem := TagType(eb)
		if !elem.IsWireType() {
			return fmt.Errorf("%w: invalid list element type %d", ErrMalformed, eb)
		}
		n, err := readI32(s.cr, s.order)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("%w: negative list length %d", ErrMalformed, n)
		}
		if n > 0 && elem == TagEnd {
			return fmt.Errorf("%w: non-empty list of TAG_End", ErrMalformed)
		}
		cur.listType = elem
		cur.length = n
		cur.hasLength = true
	case TagByteArray, TagIntArray, TagLongArray:
		n, err := readArrayLength(s.cr, s.order)
		if err != nil {
			return err
		}
		cur.length = n
		cur.hasLength = true
	}
	s.cur = cur
	s.tagsRead++
	return nil
}

// leaveCurrent moves past the current tag: containers are entered (a new
// frame is pushed), unconsumed value payloads are skipped.
func (s *Scanner) leaveCurrent() error {
	switch {
	case s.cur.consumed || s.cur.typ == TagEnd:
		return nil
	case s.cur.typ == TagCompound:
		s.stack = append(s.stack, frame{typ: TagCompound, name: s.cur.name, hasName: s.cur.hasName, elemType: TagUnknown, length: -1})
	case s.cur.typ == TagList:
		s.stack = append(s.stack, frame{typ: TagList, name: s.cur.name, hasName: s.cur.hasName, elemType: s.cur.listType, length: s.cur.length})
	default:
		return s.skipCurrentPayload()
	}
	s.cur.consumed = true
	return nil
}

// skipCurrentPayload discards the unread payload of the current value
// tag. Array lengths were consumed with the header, so only the element
// bytes remain.
func (s *Scanner) skipCurrentPayload() error {
	defer func() { s.cur.consumed = true }()
	if size := s.cur.typ.payloadSize(); size >= 0 {
		return skipBytes(s.cr, int64(size))
	}
	switch s.cur.typ {
	case TagString:
		n, err := readI16(s.cr, s.order)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("%w: negative string length %d", ErrMalformed, n)
		}
		return skipBytes(s.cr, int64(n))
	case TagByteArray:
		return skipBytes(s.cr, int64(s.cur.length))
	case TagIntArray:
		return skipBytes(s.cr, int64(s.cur.length)*4)
	case TagLongArray:
		return skipBytes(s.cr, int64(s.cur.length)*8)
	}
	return fmt.Errorf("%w: cannot skip %s", ErrInvalidState, s.cur.typ)
}

// ReadToFollowingNamed advances through following tags until one with
// the given name is found, or the stream ends.
func (s *Scanner) ReadToFollowingNamed(name string) (bool, error) {
	for {
		ok, err := s.ReadToFollowing()
		if err != nil || !ok {
			return false, err
		}
		if s.cur.hasName && s.cur.name == name {
			return true, nil
		}
	}
}

// ReadToDescendant advances only among descendants of the current tag,
// stopping either on a matching name or once the current subtree has
// been exited. When the subtree is exited, the scanner is positioned on
// the first tag after it.
func (s *Scanner) ReadToDescendant(name string) (bool, error) {
	if s.err != nil {
		return false, s.latched()
	}
	if s.atEnd {
		return false, nil
	}
	if !s.started {
		return s.ReadToFollowingNamed(name)
	}
	d := s.cur.depth
	for {
		ok, err := s.ReadToFollowing()
		if err != nil || !ok {
			return false, err
		}
		if s.cur.depth <= d {
			return false, nil
		}
		if s.cur.hasName && s.cur.name == name {
			return true, nil
		}
	}
}

// ReadToNextSibling skips the current tag and its descendants and
// advances to the next tag at the same depth. Reading past the last
// sibling returns false, leaving the scanner on the parent's successor.
func (s *Scanner) ReadToNextSibling() (bool, error) {
	if s.err != nil {
		return false, s.latched()
	}
	if s.atEnd {
		return false, nil
	}
	if !s.started {
		return s.ReadToFollowing()
	}
	d := s.cur.depth
	for {
		ok, err := s.ReadToFollowing()
		if err != nil || !ok {
			return false, err
		}
		if s.cur.typ == TagEnd {
			continue
		}
		if s.cur.depth == d {
			return true, nil
		}
		if s.cur.depth < d {
			return false, nil
		}
	}
}

// ReadToNextSiblingNamed advances across siblings until one with the
// given name is found, or the parent is exhausted.
func (s *Scanner) ReadToNextSiblingNamed(name string) (bool, error) {
	for {
		ok, err := s.ReadToNextSibling()
		if err != nil || !ok {
			return false, err
		}
		if s.cur.hasName && s.cur.name == name {
			return true, nil
		}
	}
}

// --- value access ---

// ReadValue consumes the payload of the current value tag and returns it
// as a native Go value (byte, int16, int32, int64, float32, float64,
// string, []byte, []int32 or []int64). With CacheValues enabled, later
// reads of the same position return the memoized copy.
func (s *Scanner) ReadValue() (any, error) {
	if s.err != nil {
		return nil, s.latched()
	}
	if !s.positioned() {
		return nil, fmt.Errorf("%w: no current tag", ErrInvalidState)
	}
	if !s.cur.typ.HasValue() {
		return nil, fmt.Errorf("%w: %s has no value", ErrInvalidState, s.cur.typ)
	}
	if s.cur.consumed {
		if s.CacheValues && s.cur.hasValue {
			return s.cur.value, nil
		}
		return nil, fmt.Errorf("%w: value already consumed", ErrInvalidState)
	}
	v, err := s.readCurrentValue()
	if err != nil {
		return nil, s.fail(err)
	}
	s.cur.consumed = true
	if s.CacheValues {
		s.cur.value = v
		s.cur.hasValue = true
	}
	return v, nil
}

func (s *Scanner) readCurrentValue() (any, error) {
	switch s.cur.typ {
	case TagByte:
		v, err := readU8(s.cr)
		return v, err
	case TagShort:
		v, err := readI16(s.cr, s.order)
		return v, err
	case TagInt:
		v, err := readI32(s.cr, s.order)
		return v, err
	case TagLong:
		v, err := readI64(s.cr, s.order)
		return v, err
	case TagFloat:
		v, err := readF32(s.cr, s.order)
		return v, err
	case TagDouble:
		v, err := readF64(s.cr, s.order)
		return v, err
	case TagString:
		v, err := readWireString(s.cr, s.order)
		return v, err
	case TagByteArray:
		buf := make([]byte, s.cur.length)
		if _, err := io.ReadFull(s.cr, buf); err != nil {
			return nil, truncated(err)
		}
		return buf, nil
	case TagIntArray:
		vals := make([]int32, s.cur.length)
		for i := range vals {
			v, err := readI32(s.cr, s.order)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		return vals, nil
	case TagLongArray:
		vals := make([]int64, s.cur.length)
		for i := range vals {
			v, err := readI64(s.cr, s.order)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		return vals, nil
	}
	return nil, fmt.Errorf("%w: %s has no value", ErrInvalidState, s.cur.typ)
}

// ReadAsTag materializes the current tag and its subtree as a Tag value,
// advancing past it. Calling it on a surfaced end marker fails.
func (s *Scanner) ReadAsTag() (*Tag, error) {
	if s.err != nil {
		return nil, s.latched()
	}
	if !s.started {
		if ok, err := s.ReadToFollowing(); err != nil || !ok {
			if err == nil {
				err = fmt.Errorf("%w: empty stream", ErrInvalidState)
			}
			return nil, err
		}
	}
	if s.atEnd {
		return nil, fmt.Errorf("%w: at stream end", ErrInvalidState)
	}
	if s.cur.typ == TagEnd {
		return nil, fmt.Errorf("%w: cannot materialize an end marker", ErrInvalidState)
	}
	if s.cur.consumed {
		return nil, fmt.Errorf("%w: tag already consumed", ErrInvalidState)
	}
	t := newShell(s.cur.typ)
	if s.cur.hasName {
		t.name = s.cur.name
		t.hasName = true
	}
	var err error
	switch s.cur.typ {
	case TagCompound:
		err = readCompoundPayload(s.cr, s.order, nil, t)
	case TagList:
		t.elemType = s.cur.listType
		for i := int32(0); i < s.cur.length && err == nil; i++ {
			el := newShell(s.cur.listType)
			if err = readPayload(s.cr, s.order, nil, el); err == nil {
				el.parent = t
				t.children = append(t.children, el)
			}
		}
	default:
		var v any
		if v, err = s.readCurrentValue(); err == nil {
			err = t.SetValue(v)
		}
	}
	if err != nil {
		return nil, s.fail(err)
	}
	s.cur.consumed = true
	return t, nil
}

// Skip advances past the current tag and all its descendants, returning
// the number of tags skipped, the current tag included. On a seekable
// source, array payloads are skipped by relative seek.
func (s *Scanner) Skip() (int, error) {
	if s.err != nil {
		return 0, s.latched()
	}
	if !s.started {
		if ok, err := s.ReadToFollowing(); err != nil || !ok {
			return 0, err
		}
	}
	if s.atEnd || s.cur.typ == TagEnd {
		return 0, nil
	}
	if s.cur.consumed && !s.cur.typ.IsContainer() {
		return 1, nil
	}
	if s.cur.consumed {
		return 0, fmt.Errorf("%w: tag already consumed", ErrInvalidState)
	}
	count := 1
	var err error
	switch s.cur.typ {
	case TagCompound:
		var n int
		n, err = skipPayloadN(s.cr, s.order, TagCompound)
		count += n
	case TagList:
		for i := int32(0); i < s.cur.length && err == nil; i++ {
			var n int
			n, err = skipPayloadN(s.cr, s.order, s.cur.listType)
			count += 1 + n
		}
	default:
		err = s.skipCurrentPayload()
	}
	if err != nil {
		return 0, s.fail(err)
	}
	s.cur.consumed = true
	s.tagsRead += count - 1
	return count, nil
}

// --- typed reads ---

// Value enumerates the Go types NBT payload values widen to.
type Value interface {
	byte | int16 | int32 | int64 | float32 | float64 | string
}

// ReadValueAs reads the current value tag's payload and widens it to T
// under the same rules as the tag model's accessors.
func ReadValueAs[T Value](s *Scanner) (T, error) {
	var zero T
	typ := s.TagType()
	v, err := s.ReadValue()
	if err != nil {
		return zero, err
	}
	t := newShell(typ)
	if err := t.SetValue(v); err != nil {
		return zero, err
	}
	return convertTag[T](t)
}

// ReadListAs reads every element of the current list into a typed slice,
// widening as needed. Lists of compounds or lists cannot be flattened
// and fail with ErrInvalidState.
func ReadListAs[T Value](s *Scanner) ([]T, error) {
	if s.err != nil {
		return nil, s.latched()
	}
	if !s.positioned() || s.cur.typ != TagList {
		return nil, fmt.Errorf("%w: not positioned on a list", ErrInvalidState)
	}
	elem := s.cur.listType
	if elem.IsContainer() {
		return nil, fmt.Errorf("%w: cannot read a list of %s as a flat array", ErrInvalidState, elem)
	}
	if s.cur.consumed {
		return nil, fmt.Errorf("%w: list already consumed", ErrInvalidState)
	}
	out := make([]T, 0, s.cur.length)
	for i := int32(0); i < s.cur.length; i++ {
		el := newShell(elem)
		if err := readPayload(s.cr, s.order, nil, el); err != nil {
			return nil, s.fail(err)
		}
		v, err := convertTag[T](el)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	s.cur.consumed = true
	return out, nil
}

// convertTag widens a value tag's payload to T via the model accessors.
func convertTag[T Value](t *Tag) (T, error) {
	var zero T
	var out any
	var err error
	switch any(zero).(type) {
	case byte:
		out, err = t.AsByte()
	case int16:
		out, err = t.AsShort()
	case int32:
		out, err = t.AsInt()
	case int64:
		out, err = t.AsLong()
	case float32:
		out, err = t.AsFloat()
	case float64:
		out, err = t.AsDouble()
	case string:
		out, err = t.AsString()
	default:
		err = fmt.Errorf("%w: unsupported target type", ErrInvalidArgument)
	}
	if err != nil {
		return zero, err
	}
	return out.(T), nil
}
