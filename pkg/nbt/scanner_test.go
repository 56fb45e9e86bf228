package nbt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// readerTestTree builds the standard traversal test document:
//
//	root
//	├── first: String
//	├── second: Short
//	├── third-comp: Compound {inComp1, inComp2, inComp3}
//	├── fourth-list: List<List> [3 × List<Compound> [1 × {x: Byte}]]
//	├── fifth: Int
//	└── hugeArray: ByteArray[1024]
func readerTestTree(t *testing.T) *Tag {
	t.Helper()
	root := NewNamedCompound("root")
	mustAdd(t, root, NewNamedString("first", "Hello, world!"))
	mustAdd(t, root, NewNamedShort("second", 4660))
	third := NewNamedCompound("third-comp")
	mustAdd(t, third, NewNamedInt("inComp1", 1))
	mustAdd(t, third, NewNamedString("inComp2", "two"))
	mustAdd(t, third, NewNamedByte("inComp3", 3))
	mustAdd(t, root, third)
	fourth := NewNamedList("fourth-list", TagList)
	for i := 0; i < 3; i++ {
		inner := NewList(TagCompound)
		entry := NewCompound()
		mustAdd(t, entry, NewNamedByte("x", byte(i)))
		if err := inner.Append(entry); err != nil {
			t.Fatal(err)
		}
		if err := fourth.Append(inner); err != nil {
			t.Fatal(err)
		}
	}
	mustAdd(t, root, fourth)
	mustAdd(t, root, NewNamedInt("fifth", 99))
	mustAdd(t, root, NewNamedByteArray("hugeArray", make([]byte, 1024)))
	return root
}

// readerTestTreeTags is the total tag count of readerTestTree:
// root + 2 + (1+3) + (1 + 3 lists + 3 compounds + 3 bytes) + 2.
const readerTestTreeTags = 19

func readerTestBytes(t *testing.T) []byte {
	t.Helper()
	return saveTree(t, readerTestTree(t), binary.BigEndian)
}

func TestScannerStateAtFourthList(t *testing.T) {
	s := NewScanner(bytes.NewReader(readerTestBytes(t)))
	ok, err := s.ReadToFollowingNamed("fourth-list")
	if err != nil || !ok {
		t.Fatalf("ReadToFollowingNamed = %v, %v", ok, err)
	}
	if s.Depth() != 2 {
		t.Errorf("Depth = %d, want 2", s.Depth())
	}
	if s.TagType() != TagList {
		t.Errorf("TagType = %s", s.TagType())
	}
	if s.ListType() != TagList {
		t.Errorf("ListType = %s", s.ListType())
	}
	if s.Length() != 3 {
		t.Errorf("Length = %d, want 3", s.Length())
	}
	if s.ParentName() != "root" {
		t.Errorf("ParentName = %q", s.ParentName())
	}
	if s.ParentType() != TagCompound {
		t.Errorf("ParentType = %s", s.ParentType())
	}
	if s.TagsRead() != 8 {
		t.Errorf("TagsRead = %d, want 8", s.TagsRead())
	}
	if s.IsListElement() {
		t.Error("fourth-list is not a list element")
	}

	ok, err = s.ReadToFollowing()
	if err != nil || !ok {
		t.Fatalf("ReadToFollowing = %v, %v", ok, err)
	}
	if s.Depth() != 3 {
		t.Errorf("element Depth = %d, want 3", s.Depth())
	}
	if s.TagType() != TagList {
		t.Errorf("element TagType = %s", s.TagType())
	}
	if s.ListType() != TagCompound {
		t.Errorf("element ListType = %s", s.ListType())
	}
	if !s.IsListElement() {
		t.Error("expected a list element")
	}
	if s.ListIndex() != 0 {
		t.Errorf("ListIndex = %d, want 0", s.ListIndex())
	}
	if s.HasName() {
		t.Error("list elements are unnamed")
	}
	if s.ParentLength() != 3 {
		t.Errorf("ParentLength = %d, want 3", s.ParentLength())
	}
}

func TestScannerFullWalk(t *testing.T) {
	data := readerTestBytes(t)
	s := NewScanner(bytes.NewReader(data))
	count := 0
	for {
		ok, err := s.ReadToFollowing()
		if err != nil {
			t.Fatalf("walk: %v", err)
		}
		if !ok {
			break
		}
		count++
	}
	if count != readerTestTreeTags {
		t.Fatalf("surfaced %d tags, want %d", count, readerTestTreeTags)
	}
	if !s.AtStreamEnd() {
		t.Fatal("not at stream end")
	}
	if s.RootName() != "root" {
		t.Fatalf("RootName = %q", s.RootName())
	}
	if s.BytesRead() != int64(len(data)) {
		t.Fatalf("BytesRead = %d, want %d", s.BytesRead(), len(data))
	}
	// Stream end is sticky, not an error.
	if ok, err := s.ReadToFollowing(); ok || err != nil {
		t.Fatalf("past end = %v, %v", ok, err)
	}
}

func TestScannerValues(t *testing.T) {
	s := NewScanner(bytes.NewReader(readerTestBytes(t)))
	if ok, _ := s.ReadToFollowingNamed("first"); !ok {
		t.Fatal("first not found")
	}
	v, err := s.ReadValue()
	if err != nil {
		t.Fatalf("ReadValue: %v", err)
	}
	if v != "Hello, world!" {
		t.Fatalf("value = %v", v)
	}
	// Without caching a second read is an error.
	if _, err := s.ReadValue(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second read should fail, got %v", err)
	}

	if ok, _ := s.ReadToFollowingNamed("second"); !ok {
		t.Fatal("second not found")
	}
	n, err := ReadValueAs[int64](s)
	if err != nil {
		t.Fatalf("ReadValueAs: %v", err)
	}
	if n != 4660 {
		t.Fatalf("widened value = %d", n)
	}
}

func TestScannerValueCaching(t *testing.T) {
	s := NewScanner(bytes.NewReader(readerTestBytes(t)))
	s.CacheValues = true
	if ok, _ := s.ReadToFollowingNamed("second"); !ok {
		t.Fatal("second not found")
	}
	first, err := s.ReadValue()
	if err != nil {
		t.Fatalf("ReadValue: %v", err)
	}
	again, err := s.ReadValue()
	if err != nil {
		t.Fatalf("cached ReadValue: %v", err)
	}
	if first != again {
		t.Fatalf("cached value differs: %v vs %v", first, again)
	}
}

func TestScannerReadValueInvalidStates(t *testing.T) {
	s := NewScanner(bytes.NewReader(readerTestBytes(t)))
	if _, err := s.ReadValue(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("before first read: %v", err)
	}
	if ok, _ := s.ReadToFollowing(); !ok {
		t.Fatal("root not read")
	}
	if _, err := s.ReadValue(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("on a compound: %v", err)
	}
}

func TestScannerSkipSubtree(t *testing.T) {
	s := NewScanner(bytes.NewReader(readerTestBytes(t)))
	if ok, _ := s.ReadToFollowingNamed("third-comp"); !ok {
		t.Fatal("third-comp not found")
	}
	n, err := s.Skip()
	if err != nil {
		t.Fatalf("Skip: %v", err)
	}
	if n != 4 {
		t.Fatalf("skipped %d tags, want 4", n)
	}
	ok, err := s.ReadToFollowing()
	if err != nil || !ok {
		t.Fatalf("after skip: %v, %v", ok, err)
	}
	if s.Name() != "fourth-list" {
		t.Fatalf("positioned on %q, want fourth-list", s.Name())
	}
}

func TestScannerSkipWholeDocument(t *testing.T) {
	s := NewScanner(bytes.NewReader(readerTestBytes(t)))
	n, err := s.Skip()
	if err != nil {
		t.Fatalf("Skip: %v", err)
	}
	if n != readerTestTreeTags {
		t.Fatalf("skipped %d tags, want %d", n, readerTestTreeTags)
	}
	if ok, _ := s.ReadToFollowing(); ok {
		t.Fatal("expected stream end after skipping the root")
	}
}

func TestScannerSkipNonSeekable(t *testing.T) {
	s := NewScanner(&nonSeeker{r: bytes.NewReader(readerTestBytes(t))})
	if ok, _ := s.ReadToFollowingNamed("hugeArray"); !ok {
		t.Fatal("hugeArray not found")
	}
	if s.Length() != 1024 {
		t.Fatalf("Length = %d", s.Length())
	}
	n, err := s.Skip()
	if err != nil {
		t.Fatalf("Skip: %v", err)
	}
	if n != 1 {
		t.Fatalf("skipped %d, want 1", n)
	}
	if ok, _ := s.ReadToFollowing(); ok {
		t.Fatal("hugeArray is the last tag")
	}
}

func TestScannerReadToNextSibling(t *testing.T) {
	s := NewScanner(bytes.NewReader(readerTestBytes(t)))
	if ok, _ := s.ReadToFollowingNamed("third-comp"); !ok {
		t.Fatal("third-comp not found")
	}
	ok, err := s.ReadToNextSibling()
	if err != nil || !ok {
		t.Fatalf("ReadToNextSibling = %v, %v", ok, err)
	}
	if s.Name() != "fourth-list" {
		t.Fatalf("sibling = %q", s.Name())
	}
	ok, err = s.ReadToNextSiblingNamed("hugeArray")
	if err != nil || !ok {
		t.Fatalf("named sibling = %v, %v", ok, err)
	}
	// Reading past the last sibling returns false.
	ok, err = s.ReadToNextSibling()
	if err != nil || ok {
		t.Fatalf("past last sibling = %v, %v", ok, err)
	}
}

func TestScannerReadToDescendant(t *testing.T) {
	s := NewScanner(bytes.NewReader(readerTestBytes(t)))
	if ok, _ := s.ReadToFollowingNamed("third-comp"); !ok {
		t.Fatal("third-comp not found")
	}
	ok, err := s.ReadToDescendant("inComp2")
	if err != nil || !ok {
		t.Fatalf("ReadToDescendant = %v, %v", ok, err)
	}
	if s.Depth() != 3 {
		t.Fatalf("descendant depth = %d", s.Depth())
	}

	// A name that only exists outside the subtree is not found; the
	// scanner stops on the subtree's successor.
	s = NewScanner(bytes.NewReader(readerTestBytes(t)))
	if ok, _ := s.ReadToFollowingNamed("third-comp"); !ok {
		t.Fatal("third-comp not found")
	}
	ok, err = s.ReadToDescendant("fifth")
	if err != nil || ok {
		t.Fatalf("out-of-subtree descendant = %v, %v", ok, err)
	}
	if s.Name() != "fourth-list" {
		t.Fatalf("stopped on %q", s.Name())
	}
}

func TestScannerReadAsTag(t *testing.T) {
	s := NewScanner(bytes.NewReader(readerTestBytes(t)))
	if ok, _ := s.ReadToFollowingNamed("third-comp"); !ok {
		t.Fatal("third-comp not found")
	}
	tag, err := s.ReadAsTag()
	if err != nil {
		t.Fatalf("ReadAsTag: %v", err)
	}
	if tag.Name() != "third-comp" || tag.Type() != TagCompound || tag.Len() != 3 {
		t.Fatalf("materialized %s %q with %d children", tag.Type(), tag.Name(), tag.Len())
	}
	if v, _ := tag.Get("inComp1").AsInt(); v != 1 {
		t.Fatalf("inComp1 = %d", v)
	}
	// The scanner continues after the subtree.
	ok, err := s.ReadToFollowing()
	if err != nil || !ok {
		t.Fatalf("after ReadAsTag: %v, %v", ok, err)
	}
	if s.Name() != "fourth-list" {
		t.Fatalf("positioned on %q", s.Name())
	}
}

func TestScannerReadAsTagWholeDocument(t *testing.T) {
	want := readerTestTree(t)
	s := NewScanner(bytes.NewReader(readerTestBytes(t)))
	root, err := s.ReadAsTag()
	if err != nil {
		t.Fatalf("ReadAsTag: %v", err)
	}
	if root.Dump(" ") != want.Dump(" ") {
		t.Fatal("materialized tree differs from the original")
	}
}

func TestScannerListAs(t *testing.T) {
	root := NewNamedCompound("root")
	list := NewNamedList("bytes", TagByte)
	for i := byte(0); i < 5; i++ {
		if err := list.Append(NewByte(i * 10)); err != nil {
			t.Fatal(err)
		}
	}
	mustAdd(t, root, list)
	nested := NewNamedList("nested", TagCompound)
	entry := NewCompound()
	mustAdd(t, entry, NewNamedInt("v", 1))
	if err := nested.Append(entry); err != nil {
		t.Fatal(err)
	}
	mustAdd(t, root, nested)

	s := NewScanner(bytes.NewReader(saveTree(t, root, binary.BigEndian)))
	if ok, _ := s.ReadToFollowingNamed("bytes"); !ok {
		t.Fatal("bytes not found")
	}
	widened, err := ReadListAs[int16](s)
	if err != nil {
		t.Fatalf("ReadListAs: %v", err)
	}
	for i, v := range widened {
		if v != int16(i*10) {
			t.Fatalf("element %d = %d", i, v)
		}
	}

	if ok, _ := s.ReadToFollowingNamed("nested"); !ok {
		t.Fatal("nested not found")
	}
	if _, err := ReadListAs[int16](s); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("list of compounds should fail, got %v", err)
	}
}

func TestScannerEndTagsSurfaced(t *testing.T) {
	s := NewScanner(bytes.NewReader(readerTestBytes(t)))
	s.SkipEndTags = false
	ends := 0
	for {
		ok, err := s.ReadToFollowing()
		if err != nil {
			t.Fatalf("walk: %v", err)
		}
		if !ok {
			break
		}
		if s.TagType() == TagEnd {
			ends++
			if s.HasName() || s.HasValue() {
				t.Fatal("end markers carry neither name nor value")
			}
		}
	}
	// One per compound: root, third-comp, and the three list entries.
	if ends != 5 {
		t.Fatalf("surfaced %d end markers, want 5", ends)
	}
	// Materializing an end marker is illegal.
	s = NewScanner(bytes.NewReader(readerTestBytes(t)))
	s.SkipEndTags = false
	for {
		ok, err := s.ReadToFollowing()
		if err != nil || !ok {
			t.Fatalf("no end marker reached: %v", err)
		}
		if s.TagType() == TagEnd {
			break
		}
	}
	if _, err := s.ReadAsTag(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("ReadAsTag on end marker: %v", err)
	}
}

func TestScannerErrorLatching(t *testing.T) {
	// Root is a string tag: malformed.
	data := []byte{0x08, 0x00, 0x01, 'x', 0x00, 0x02, 'h', 'i'}
	s := NewScanner(bytes.NewReader(data))
	_, err := s.ReadToFollowing()
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if s.Err() == nil {
		t.Fatal("error not latched")
	}
	if _, err := s.ReadToFollowing(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("latched op should fail with ErrInvalidState, got %v", err)
	}
	if _, err := s.ReadValue(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("latched ReadValue: %v", err)
	}
	if _, err := s.Skip(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("latched Skip: %v", err)
	}
}

func TestScannerTruncatedLatches(t *testing.T) {
	data := readerTestBytes(t)
	s := NewScanner(bytes.NewReader(data[:len(data)-300]))
	for {
		ok, err := s.ReadToFollowing()
		if err != nil {
			if !errors.Is(err, ErrTruncated) && !errors.Is(err, ErrMalformed) {
				t.Fatalf("unexpected error kind: %v", err)
			}
			break
		}
		if !ok {
			t.Fatal("walk ended without error on truncated input")
		}
		if s.HasValue() {
			if _, err := s.ReadValue(); err != nil {
				break
			}
		}
	}
	if s.Err() == nil {
		t.Fatal("error not latched")
	}
}

func TestScannerOffsets(t *testing.T) {
	data := readerTestBytes(t)
	s := NewScanner(bytes.NewReader(data))
	if ok, _ := s.ReadToFollowing(); !ok {
		t.Fatal("root not read")
	}
	if s.TagStartOffset() != 0 {
		t.Fatalf("root offset = %d", s.TagStartOffset())
	}
	if ok, _ := s.ReadToFollowing(); !ok {
		t.Fatal("first not read")
	}
	// Root header: type byte + u16 length + "root".
	if s.TagStartOffset() != 1+2+4 {
		t.Fatalf("first offset = %d, want 7", s.TagStartOffset())
	}
}

func TestScannerLittleEndian(t *testing.T) {
	data := saveTree(t, readerTestTree(t), binary.LittleEndian)
	s := NewScannerByteOrder(bytes.NewReader(data), binary.LittleEndian)
	if ok, _ := s.ReadToFollowingNamed("second"); !ok {
		t.Fatal("second not found")
	}
	v, err := ReadValueAs[int16](s)
	if err != nil || v != 4660 {
		t.Fatalf("value = %d, %v", v, err)
	}
}
