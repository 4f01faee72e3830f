package ttlmemo

import (
	"encoding"
	"fmt"
	"reflect"
	"sort"

	c "github.com/unkn0wn-root/ttlmemo/codec"
)

// maxKeyDepth bounds how far keyValue descends; deeper values (or pointer
// cycles) are rejected.
const maxKeyDepth = 32

// CallKey is the normalized form of Args that key codecs encode.
// Keyword is sorted by Name; empty slices are nil so Argv() and
// Args{Positional: []any{}} produce the same key.
//
// Every value is tagged with its dynamic Go type, so int(5) and int64(5), or
// two struct types with the same fields, never share a key.
type CallKey struct {
	Positional []Arg   `cbor:"p" msgpack:"p" json:"p"`
	Keyword    []KwArg `cbor:"k" msgpack:"k" json:"k"`
}

// Arg is one argument value together with its type.
type Arg struct {
	Type  string `cbor:"t" msgpack:"t" json:"t"`
	Value any    `cbor:"v" msgpack:"v" json:"v"`
}

type KwArg struct {
	Name  string `cbor:"n" msgpack:"n" json:"n"`
	Type  string `cbor:"t" msgpack:"t" json:"t"`
	Value any    `cbor:"v" msgpack:"v" json:"v"`
}

func normalize(args Args) (CallKey, error) {
	var ck CallKey
	if len(args.Positional) > 0 {
		ck.Positional = make([]Arg, 0, len(args.Positional))
		for i, v := range args.Positional {
			a, err := tagged(reflect.ValueOf(v), 0)
			if err != nil {
				return CallKey{}, fmt.Errorf("positional argument %d: %w", i, err)
			}
			ck.Positional = append(ck.Positional, a)
		}
	}
	if len(args.Keyword) > 0 {
		ck.Keyword = make([]KwArg, 0, len(args.Keyword))
		for name, v := range args.Keyword {
			a, err := tagged(reflect.ValueOf(v), 0)
			if err != nil {
				return CallKey{}, fmt.Errorf("keyword argument %q: %w", name, err)
			}
			ck.Keyword = append(ck.Keyword, KwArg{Name: name, Type: a.Type, Value: a.Value})
		}
		sort.Slice(ck.Keyword, func(i, j int) bool { return ck.Keyword[i].Name < ck.Keyword[j].Name })
	}
	return ck, nil
}

func encodeKey(kc c.Codec[CallKey], args Args) (string, error) {
	ck, err := normalize(args)
	if err != nil {
		return "", err
	}
	b, err := kc.Encode(ck)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func tagged(v reflect.Value, depth int) (Arg, error) {
	if !v.IsValid() {
		return Arg{Type: "nil"}, nil
	}
	kv, err := keyValue(v, depth)
	if err != nil {
		return Arg{}, err
	}
	return Arg{Type: typeName(v.Type()), Value: kv}, nil
}

// keyValue rewrites v into plain values every key codec encodes the same
// way: scalars, strings, []byte and []any. Anything that would lose
// information on the way (unexported fields, funcs, chans) is an error.
func keyValue(v reflect.Value, depth int) (any, error) {
	if depth > maxKeyDepth {
		return nil, fmt.Errorf("%w: nested deeper than %d levels", ErrUnkeyable, maxKeyDepth)
	}
	t := v.Type()

	if t.Kind() == reflect.Pointer && v.IsNil() {
		return nil, nil
	}
	// Types that define their own encoding (time.Time among them) are keyed
	// by it.
	if t.Kind() != reflect.Interface {
		switch m := v.Interface().(type) {
		case encoding.BinaryMarshaler:
			b, err := m.MarshalBinary()
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrUnkeyable, t, err)
			}
			return b, nil
		case encoding.TextMarshaler:
			b, err := m.MarshalText()
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrUnkeyable, t, err)
			}
			return string(b), nil
		}
	}

	switch t.Kind() {
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.Complex64, reflect.Complex128:
		z := v.Complex()
		return []any{real(z), imag(z)}, nil
	case reflect.String:
		return v.String(), nil

	case reflect.Pointer:
		return keyValue(v.Elem(), depth+1)

	case reflect.Interface:
		if v.IsNil() {
			return Arg{Type: "nil"}, nil
		}
		return tagged(v.Elem(), depth+1)

	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 && t.Kind() == reflect.Slice {
			return append([]byte{}, v.Bytes()...), nil
		}
		out := make([]any, v.Len())
		for i := range out {
			e, err := keyValue(v.Index(i), depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = e
		}
		return out, nil

	case reflect.Map:
		type pair struct {
			sortKey string
			kv      []any
		}
		pairs := make([]pair, 0, v.Len())
		it := v.MapRange()
		for it.Next() {
			k, err := keyValue(it.Key(), depth+1)
			if err != nil {
				return nil, err
			}
			e, err := keyValue(it.Value(), depth+1)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, pair{sortKey: fmt.Sprintf("%#v", k), kv: []any{k, e}})
		}
		sort.Slice(pairs, func(i, j int) bool { return pairs[i].sortKey < pairs[j].sortKey })
		out := make([]any, len(pairs))
		for i, p := range pairs {
			out[i] = p.kv
		}
		return out, nil

	case reflect.Struct:
		out := make([]any, t.NumField())
		for i := range out {
			f := t.Field(i)
			if !f.IsExported() {
				return nil, fmt.Errorf("%w: %s has unexported field %s", ErrUnkeyable, t, f.Name)
			}
			e, err := keyValue(v.Field(i), depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = e
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: unsupported kind %s", ErrUnkeyable, t.Kind())
}

// typeName is like reflect.Type.String but qualifies named types with their
// full import path, so same-named types from different packages differ.
func typeName(t reflect.Type) string {
	if t.Name() != "" {
		if t.PkgPath() == "" {
			return t.Name()
		}
		return t.PkgPath() + "." + t.Name()
	}
	switch t.Kind() {
	case reflect.Pointer:
		return "*" + typeName(t.Elem())
	case reflect.Slice:
		return "[]" + typeName(t.Elem())
	case reflect.Array:
		return fmt.Sprintf("[%d]%s", t.Len(), typeName(t.Elem()))
	case reflect.Map:
		return "map[" + typeName(t.Key()) + "]" + typeName(t.Elem())
	}
	return t.String()
}
