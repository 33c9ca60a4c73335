package metadata

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// Separator joins path segments in flattened keys.
const Separator = "_"

// MaxDepth bounds recursion. Provider metadata is a tree far shallower than
// this; hitting the limit means the input loops back on itself.
const MaxDepth = 256

// ErrTooDeep is returned when a record nests deeper than MaxDepth.
var ErrTooDeep = errors.New("metadata nesting exceeds max depth")

// FlatRow maps a path key to the scalar found at that path.
type FlatRow map[string]any

// Keys returns the row's keys in no particular order.
func (r FlatRow) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	return keys
}

// Flatten turns a record into a FlatRow.
//
// Mapping entries extend the path with their key, sequence elements with
// their zero-based index, and scalars become leaves under the current path.
// With an empty prefix the first segment stands alone: {"a": {"b": 1}}
// flattens to {"a_b": 1}. Scalar values are kept as-is.
//
// Mapping keys are walked in sorted order, so when two paths produce the
// same key the later path in that order wins and the row is stable.
func Flatten(n Node, prefix string) (FlatRow, error) {
	row := make(FlatRow)
	if err := flatten(n, prefix, 0, row); err != nil {
		return nil, err
	}
	return row, nil
}

func flatten(n Node, prefix string, depth int, row FlatRow) error {
	if depth > MaxDepth {
		return fmt.Errorf("%w at %q", ErrTooDeep, prefix)
	}

	switch v := n.(type) {
	case Mapping:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := flatten(v[k], join(prefix, k), depth+1, row); err != nil {
				return err
			}
		}
	case Sequence:
		for i, child := range v {
			if err := flatten(child, join(prefix, strconv.Itoa(i)), depth+1, row); err != nil {
				return err
			}
		}
	case Scalar:
		row[prefix] = v.Value
	case nil:
		row[prefix] = nil
	default:
		return fmt.Errorf("unknown metadata node %T at %q", n, prefix)
	}
	return nil
}

func join(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return prefix + Separator + segment
}
