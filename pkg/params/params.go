// Package params flattens nested parameter trees into the flat ordered
// key/value pairs that form- and query-encoded vendor APIs expect.
// Nested maps become bracketed key paths (`card[number]`), arrays become
// indexed key paths (`tags[0]`, `tags[1]`), and nil leaves are dropped
// entirely rather than encoded as empty strings.
package params

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Tree is a nested, JSON-like parameter value: leaves are strings, numbers
// or booleans, branches are Tree maps or []any slices. Trees are built
// fresh per call and never mutated by this package.
type Tree = map[string]any

// Pair is one serialized key/value. Values are already stringified but not
// yet URL-escaped.
type Pair struct {
	Key   string
	Value string
}

// Serialize flattens tree into ordered pairs. Map keys are emitted in
// sorted order (Go maps carry no insertion order); array elements keep
// index order. Cyclic trees are a caller error and will recurse forever.
func Serialize(tree Tree, prefix string) []Pair {
	var pairs []Pair
	keys := make([]string, 0, len(tree))
	for k := range tree {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key := k
		if prefix != "" {
			key = prefix + "[" + k + "]"
		}
		pairs = append(pairs, serializeValue(key, tree[k])...)
	}
	return pairs
}

func serializeValue(key string, v any) []Pair {
	switch val := v.(type) {
	case nil:
		return nil
	case Tree:
		return Serialize(val, key)
	case []any:
		var pairs []Pair
		for i, elem := range val {
			pairs = append(pairs, serializeValue(key+"["+strconv.Itoa(i)+"]", elem)...)
		}
		return pairs
	default:
		return []Pair{{Key: key, Value: stringify(val)}}
	}
}

// stringify converts a leaf to its wire form. Conversion is
// locale-independent: decimal digits for numbers, "true"/"false" for
// booleans.
func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Values converts tree to url.Values suitable for http request bodies and
// query strings.
func Values(tree Tree) url.Values {
	values := url.Values{}
	for _, p := range Serialize(tree, "") {
		values.Add(p.Key, p.Value)
	}
	return values
}

// Encode serializes tree into a form/query string. Key order matches
// Serialize, unlike url.Values.Encode which re-sorts escaped keys.
func Encode(tree Tree) string {
	pairs := Serialize(tree, "")
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, url.QueryEscape(p.Key)+"="+url.QueryEscape(p.Value))
	}
	return strings.Join(parts, "&")
}

// Compact returns a copy of tree with nil leaves removed at every depth.
// JSON-bodied vendors get the compacted tree marshaled 1:1, so null
// handling stays consistent with the form path.
func Compact(tree Tree) Tree {
	out := make(Tree, len(tree))
	for k, v := range tree {
		switch val := v.(type) {
		case nil:
			continue
		case Tree:
			out[k] = Compact(val)
		case []any:
			elems := make([]any, 0, len(val))
			for _, e := range val {
				if e == nil {
					continue
				}
				if sub, ok := e.(Tree); ok {
					elems = append(elems, Compact(sub))
				} else {
					elems = append(elems, e)
				}
			}
			out[k] = elems
		default:
			out[k] = v
		}
	}
	return out
}

// Parse rebuilds a Tree from a form/query string produced by Encode. All
// leaves come back as strings; bracketed segments become nested maps and
// numeric segments become arrays.
func Parse(encoded string) (Tree, error) {
	tree := Tree{}
	if encoded == "" {
		return tree, nil
	}
	for _, part := range strings.Split(encoded, "&") {
		key, value, found := strings.Cut(part, "=")
		if !found {
			return nil, errors.Errorf("malformed pair %q", part)
		}
		k, err := url.QueryUnescape(key)
		if err != nil {
			return nil, errors.Wrapf(err, "malformed key %q", key)
		}
		v, err := url.QueryUnescape(value)
		if err != nil {
			return nil, errors.Wrapf(err, "malformed value %q", value)
		}
		segments, err := splitKeyPath(k)
		if err != nil {
			return nil, err
		}
		if err := insert(tree, segments, v); err != nil {
			return nil, errors.Wrapf(err, "key %q", k)
		}
	}
	return tree, nil
}

// splitKeyPath turns "a[b][0]" into ["a", "b", "0"].
func splitKeyPath(key string) ([]string, error) {
	open := strings.IndexByte(key, '[')
	if open < 0 {
		return []string{key}, nil
	}
	if open == 0 {
		return nil, errors.Errorf("key %q has no root segment", key)
	}
	segments := []string{key[:open]}
	rest := key[open:]
	for rest != "" {
		if rest[0] != '[' {
			return nil, errors.Errorf("key %q has trailing garbage", key)
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return nil, errors.Errorf("key %q has unterminated bracket", key)
		}
		segments = append(segments, rest[1:end])
		rest = rest[end+1:]
	}
	return segments, nil
}

// insert places value at the path described by segments, growing nested
// maps and arrays as needed. A numeric segment addresses an array slot in
// its parent container.
func insert(tree Tree, segments []string, value string) error {
	head := segments[0]
	child, err := place(tree[head], segments[1:], value)
	if err != nil {
		return err
	}
	tree[head] = child
	return nil
}

func place(existing any, segments []string, value string) (any, error) {
	if len(segments) == 0 {
		if existing != nil {
			return nil, errors.New("duplicate leaf")
		}
		return value, nil
	}

	if idx, err := strconv.Atoi(segments[0]); err == nil {
		arr, ok := existing.([]any)
		if !ok && existing != nil {
			return nil, errors.New("segment is both leaf and branch")
		}
		if idx < 0 {
			return nil, errors.Errorf("negative array index %d", idx)
		}
		for len(arr) <= idx {
			arr = append(arr, nil)
		}
		child, err := place(arr[idx], segments[1:], value)
		if err != nil {
			return nil, err
		}
		arr[idx] = child
		return arr, nil
	}

	sub, ok := existing.(Tree)
	if !ok {
		if existing != nil {
			return nil, errors.New("segment is both leaf and branch")
		}
		sub = Tree{}
	}
	if err := insert(sub, segments, value); err != nil {
		return nil, err
	}
	return sub, nil
}
