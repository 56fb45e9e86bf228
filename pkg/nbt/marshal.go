package nbt

import (
	"fmt"
	"reflect"
	"sort"
)

const tagName = "nbt"

// Marshal encodes a struct, map or pointer thereof into a compound tag
// using `nbt` struct tags. Untagged exported fields map under their
// field name; fields tagged "-" are skipped. Supported kinds: bool
// (stored as a byte), uint8, int8, int16, int32, int64 and int (stored
// as a long), float32, float64, string, []byte, []int32, []int64, other
// slices (stored as lists), nested structs and string-keyed maps.
func Marshal(v any) (*Tag, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("%w: nil pointer", ErrInvalidArgument)
		}
		rv = rv.Elem()
	}
	t, err := marshalValue(rv)
	if err != nil {
		return nil, err
	}
	if t.typ != TagCompound {
		return nil, fmt.Errorf("%w: top-level value must marshal to a compound, got %s", ErrInvalidArgument, t.typ)
	}
	return t, nil
}

func marshalValue(rv reflect.Value) (*Tag, error) {
	switch rv.Kind() {
	case reflect.Bool:
		var b byte
		if rv.Bool() {
			b = 1
		}
		return NewByte(b), nil
	case reflect.Uint8:
		return NewByte(byte(rv.Uint())), nil
	case reflect.Int8:
		return NewByte(byte(rv.Int())), nil
	case reflect.Int16:
		return NewShort(int16(rv.Int())), nil
	case reflect.Int32:
		return NewInt(int32(rv.Int())), nil
	case reflect.Int64, reflect.Int:
		return NewLong(rv.Int()), nil
	case reflect.Float32:
		return NewFloat(float32(rv.Float())), nil
	case reflect.Float64:
		return NewDouble(rv.Float()), nil
	case reflect.String:
		return NewString(rv.String()), nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, fmt.Errorf("%w: nil value", ErrInvalidArgument)
		}
		return marshalValue(rv.Elem())
	case reflect.Slice, reflect.Array:
		return marshalSequence(rv)
	case reflect.Struct:
		return marshalStruct(rv)
	case reflect.Map:
		return marshalMap(rv)
	}
	return nil, fmt.Errorf("%w: cannot marshal %s", ErrInvalidArgument, rv.Kind())
}

func marshalSequence(rv reflect.Value) (*Tag, error) {
	switch rv.Type().Elem().Kind() {
	case reflect.Uint8:
		buf := make([]byte, rv.Len())
		reflect.Copy(reflect.ValueOf(buf), rv)
		return NewByteArray(buf), nil
	case reflect.Int32:
		vals := make([]int32, rv.Len())
		for i := range vals {
			vals[i] = int32(rv.Index(i).Int())
		}
		return NewIntArray(vals), nil
	case reflect.Int64:
		vals := make([]int64, rv.Len())
		for i := range vals {
			vals[i] = rv.Index(i).Int()
		}
		return NewLongArray(vals), nil
	}
	list := NewList(TagUnknown)
	for i := 0; i < rv.Len(); i++ {
		el, err := marshalValue(rv.Index(i))
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		if err := list.Append(el); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	if rv.Len() == 0 {
		// An empty slice takes its element type from the slice's Go
		// element type, so the list can still be serialized.
		et := rv.Type().Elem()
		for et.Kind() == reflect.Pointer {
			et = et.Elem()
		}
		if zero, err := marshalValue(reflect.Zero(et)); err == nil {
			if err := list.SetListType(zero.typ); err != nil {
				return nil, err
			}
		}
	}
	return list, nil
}

func marshalStruct(rv reflect.Value) (*Tag, error) {
	c := NewCompound()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Tag.Get(tagName)
		if name == "-" {
			continue
		}
		if name == "" {
			name = field.Name
		}
		child, err := marshalValue(rv.Field(i))
		if err != nil {
			return nil, fmt.Errorf("marshal field %s: %w", field.Name, err)
		}
		if err := child.SetName(name); err != nil {
			return nil, err
		}
		if err := c.Add(child); err != nil {
			return nil, fmt.Errorf("marshal field %s: %w", field.Name, err)
		}
	}
	return c, nil
}

func marshalMap(rv reflect.Value) (*Tag, error) {
	if rv.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("%w: map keys must be strings, got %s", ErrInvalidArgument, rv.Type().Key())
	}
	keys := make([]string, 0, rv.Len())
	for _, k := range rv.MapKeys() {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)
	c := NewCompound()
	for _, k := range keys {
		child, err := marshalValue(rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())))
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		if err := child.SetName(k); err != nil {
			return nil, err
		}
		if err := c.Add(child); err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
	}
	return c, nil
}

// Unmarshal decodes a compound tag into a struct pointer using the same
// field mapping as Marshal. Compound entries with no matching field are
// ignored; numeric fields accept any payload that widens to them.
func Unmarshal(t *Tag, v any) error {
	if t == nil {
		return fmt.Errorf("%w: nil tag", ErrInvalidArgument)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: expected non-nil pointer, got %T", ErrInvalidArgument, v)
	}
	return unmarshalValue(t, rv.Elem())
}

func unmarshalValue(t *Tag, rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.Bool:
		b, err := t.AsByte()
		if err != nil {
			return err
		}
		rv.SetBool(b != 0)
		return nil
	case reflect.Uint8:
		b, err := t.AsByte()
		if err != nil {
			return err
		}
		rv.SetUint(uint64(b))
		return nil
	case reflect.Int8:
		b, err := t.AsByte()
		if err != nil {
			return err
		}
		rv.SetInt(int64(int8(b)))
		return nil
	case reflect.Int16:
		n, err := t.AsShort()
		if err != nil {
			return err
		}
		rv.SetInt(int64(n))
		return nil
	case reflect.Int32:
		n, err := t.AsInt()
		if err != nil {
			return err
		}
		rv.SetInt(int64(n))
		return nil
	case reflect.Int64, reflect.Int:
		n, err := t.AsLong()
		if err != nil {
			return err
		}
		rv.SetInt(n)
		return nil
	case reflect.Float32:
		f, err := t.AsFloat()
		if err != nil {
			return err
		}
		rv.SetFloat(float64(f))
		return nil
	case reflect.Float64:
		f, err := t.AsDouble()
		if err != nil {
			return err
		}
		rv.SetFloat(f)
		return nil
	case reflect.String:
		s, err := t.AsString()
		if err != nil {
			return err
		}
		rv.SetString(s)
		return nil
	case reflect.Pointer:
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		return unmarshalValue(t, rv.Elem())
	case reflect.Slice:
		return unmarshalSequence(t, rv)
	case reflect.Struct:
		return unmarshalStruct(t, rv)
	case reflect.Map:
		return unmarshalMap(t, rv)
	}
	return fmt.Errorf("%w: cannot unmarshal into %s", ErrInvalidArgument, rv.Kind())
}

func unmarshalSequence(t *Tag, rv reflect.Value) error {
	switch t.typ {
	case TagByteArray:
		if rv.Type().Elem().Kind() != reflect.Uint8 {
			return fmt.Errorf("%w: byte array into %s", ErrTypeMismatch, rv.Type())
		}
		rv.SetBytes(append([]byte(nil), t.bytes...))
		return nil
	case TagIntArray:
		if rv.Type().Elem().Kind() != reflect.Int32 {
			return fmt.Errorf("%w: int array into %s", ErrTypeMismatch, rv.Type())
		}
		out := reflect.MakeSlice(rv.Type(), len(t.ints), len(t.ints))
		for i, v := range t.ints {
			out.Index(i).SetInt(int64(v))
		}
		rv.Set(out)
		return nil
	case TagLongArray:
		if rv.Type().Elem().Kind() != reflect.Int64 {
			return fmt.Errorf("%w: long array into %s", ErrTypeMismatch, rv.Type())
		}
		out := reflect.MakeSlice(rv.Type(), len(t.longs), len(t.longs))
		for i, v := range t.longs {
			out.Index(i).SetInt(v)
		}
		rv.Set(out)
		return nil
	case TagList:
		out := reflect.MakeSlice(rv.Type(), len(t.children), len(t.children))
		for i, c := range t.children {
			if err := unmarshalValue(c, out.Index(i)); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		rv.Set(out)
		return nil
	}
	return fmt.Errorf("%w: %s into %s", ErrTypeMismatch, t.typ, rv.Type())
}

func unmarshalStruct(t *Tag, rv reflect.Value) error {
	if t.typ != TagCompound {
		return fmt.Errorf("%w: %s into struct %s", ErrTypeMismatch, t.typ, rv.Type())
	}
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Tag.Get(tagName)
		if name == "-" {
			continue
		}
		if name == "" {
			name = field.Name
		}
		child := t.Get(name)
		if child == nil {
			continue
		}
		if err := unmarshalValue(child, rv.Field(i)); err != nil {
			return fmt.Errorf("unmarshal field %s: %w", field.Name, err)
		}
	}
	return nil
}

func unmarshalMap(t *Tag, rv reflect.Value) error {
	if t.typ != TagCompound {
		return fmt.Errorf("%w: %s into map %s", ErrTypeMismatch, t.typ, rv.Type())
	}
	if rv.Type().Key().Kind() != reflect.String {
		return fmt.Errorf("%w: map keys must be strings, got %s", ErrInvalidArgument, rv.Type().Key())
	}
	out := reflect.MakeMapWithSize(rv.Type(), len(t.children))
	for _, c := range t.children {
		ev := reflect.New(rv.Type().Elem()).Elem()
		if err := unmarshalValue(c, ev); err != nil {
			return fmt.Errorf("unmarshal key %q: %w", c.name, err)
		}
		out.SetMapIndex(reflect.ValueOf(c.name).Convert(rv.Type().Key()), ev)
	}
	rv.Set(out)
	return nil
}
