// Package metadata models provider metadata records as a closed variant tree
// and flattens them into single-level rows.
package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
)

// Node is one node of a metadata record: a Scalar, a Sequence or a Mapping.
// The set is closed; the unexported method keeps other types out.
type Node interface {
	node()
}

// Scalar is a leaf value. Value keeps its decoded type
// (string, bool, nil, json.Number, float64, int...).
type Scalar struct {
	Value any
}

// Sequence is an ordered list of nodes.
type Sequence []Node

// Mapping is a keyed set of nodes. Iteration order carries no meaning.
type Mapping map[string]Node

func (Scalar) node()   {}
func (Sequence) node() {}
func (Mapping) node()  {}

// FromJSON decodes a JSON document into a Node tree.
// Numbers decode as json.Number so integers keep their exact digits.
func FromJSON(data []byte) (Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("decode metadata: trailing data after document")
	}
	return FromValue(v)
}

// FromValue converts a decoded value (JSON or YAML style) into a Node tree.
// Maps with non-string keys use their fmt representation as key.
// Values nesting deeper than MaxDepth, such as a map containing itself,
// return ErrTooDeep.
func FromValue(v any) (Node, error) {
	return fromValue(v, 0)
}

func fromValue(v any, depth int) (Node, error) {
	if depth > MaxDepth {
		return nil, ErrTooDeep
	}

	switch val := v.(type) {
	case Node:
		return val, nil
	case map[string]any:
		m := make(Mapping, len(val))
		for k, child := range val {
			n, err := fromValue(child, depth+1)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			m[k] = n
		}
		return m, nil
	case map[any]any:
		m := make(Mapping, len(val))
		for k, child := range val {
			key := fmt.Sprint(k)
			n, err := fromValue(child, depth+1)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			m[key] = n
		}
		return m, nil
	case []any:
		s := make(Sequence, len(val))
		for i, child := range val {
			n, err := fromValue(child, depth+1)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			s[i] = n
		}
		return s, nil
	case nil, string, bool, json.Number,
		float32, float64, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return Scalar{Value: val}, nil
	default:
		return fromReflect(reflect.ValueOf(v), depth)
	}
}

// fromReflect handles typed maps and slices such as map[string]string.
func fromReflect(rv reflect.Value, depth int) (Node, error) {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Scalar{}, nil
		}
		return fromValue(rv.Elem().Interface(), depth+1)
	case reflect.Map:
		m := make(Mapping, rv.Len())
		for _, k := range rv.MapKeys() {
			n, err := fromValue(rv.MapIndex(k).Interface(), depth+1)
			if err != nil {
				return nil, err
			}
			m[fmt.Sprint(k.Interface())] = n
		}
		return m, nil
	case reflect.Slice, reflect.Array:
		s := make(Sequence, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			n, err := fromValue(rv.Index(i).Interface(), depth+1)
			if err != nil {
				return nil, err
			}
			s[i] = n
		}
		return s, nil
	case reflect.String:
		return Scalar{Value: rv.String()}, nil
	default:
		return nil, fmt.Errorf("unsupported metadata value of type %s", rv.Type())
	}
}

// ToValue converts a Node back into plain Go values, suitable for JSON encoding.
func ToValue(n Node) any {
	switch v := n.(type) {
	case Scalar:
		return v.Value
	case Sequence:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = ToValue(child)
		}
		return out
	case Mapping:
		out := make(map[string]any, len(v))
		for k, child := range v {
			out[k] = ToValue(child)
		}
		return out
	default:
		return nil
	}
}

// MarshalIndent renders a Node as indented JSON with sorted keys.
func MarshalIndent(n Node) ([]byte, error) {
	return json.MarshalIndent(ToValue(n), "", "  ")
}
