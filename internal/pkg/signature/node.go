package signature

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind discriminates the payload tree variants.
type Kind int

const (
	KindLeaf Kind = iota
	KindMap
	KindList
)

// Node is the explicit tree shape a gateway payload is normalized into
// before canonicalization: a leaf string, a map, or a list. Building the
// tree explicitly keeps form-encoded and JSON-encoded deliveries of the
// same payload byte-identical after canonicalization.
type Node struct {
	Kind   Kind
	Value  string
	Items  []*Node
	Fields map[string]*Node
}

// Leaf returns a leaf node holding the given string value.
func Leaf(v string) *Node {
	return &Node{Kind: KindLeaf, Value: v}
}

// NewMap returns an empty map node.
func NewMap() *Node {
	return &Node{Kind: KindMap, Fields: make(map[string]*Node)}
}

// NewList returns an empty list node.
func NewList() *Node {
	return &Node{Kind: KindList}
}

// Set adds or replaces a field on a map node.
func (n *Node) Set(key string, child *Node) *Node {
	n.Fields[key] = child
	return n
}

// Append adds an element to a list node.
func (n *Node) Append(child *Node) *Node {
	n.Items = append(n.Items, child)
	return n
}

// BuildFromForm reconstructs the nested payload tree from flat form fields,
// expanding PHP-style bracket notation (products[0][name]=X) the same way
// the sender's runtime built it before signing. Keys listed in skip are
// left out entirely (the signature field must not sign itself).
func BuildFromForm(fields map[string]string, skip ...string) *Node {
	skipSet := make(map[string]struct{}, len(skip))
	for _, s := range skip {
		skipSet[s] = struct{}{}
	}

	// Insert in sorted key order so conflicting flat and nested spellings
	// of the same key ("a" vs "a[b]") resolve the same way on every run:
	// the flat leaf goes in first and the nested form wins.
	keys := make([]string, 0, len(fields))
	for key := range fields {
		if _, drop := skipSet[key]; drop {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	root := NewMap()
	for _, key := range keys {
		insertPath(root, splitBracketKey(key), fields[key])
	}
	return normalizeLists(root)
}

// BuildFromJSON decodes a JSON body into the payload tree. Numbers keep
// their literal text (json.Number) so "100.00" survives untouched; booleans
// and null collapse to the sender's PHP string casts ("1", "", "").
func BuildFromJSON(body []byte, skip ...string) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode json payload: %w", err)
	}

	node := fromValue(raw)
	if node.Kind == KindMap {
		for _, s := range skip {
			delete(node.Fields, s)
		}
	}
	return node, nil
}

func fromValue(v interface{}) *Node {
	switch t := v.(type) {
	case map[string]interface{}:
		n := NewMap()
		for k, child := range t {
			n.Set(k, fromValue(child))
		}
		return n
	case []interface{}:
		n := NewList()
		for _, child := range t {
			n.Append(fromValue(child))
		}
		return n
	case string:
		return Leaf(t)
	case json.Number:
		return Leaf(t.String())
	case bool:
		if t {
			return Leaf("1")
		}
		return Leaf("")
	case nil:
		return Leaf("")
	default:
		return Leaf(fmt.Sprintf("%v", t))
	}
}

// splitBracketKey turns "products[0][name]" into ["products","0","name"].
// Keys without well-formed bracket suffixes are kept as a single literal
// segment, matching how PHP's parse_str treats them.
func splitBracketKey(key string) []string {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return []string{key}
	}

	segments := []string{key[:open]}
	rest := key[open:]
	for len(rest) > 0 {
		if rest[0] != '[' {
			return []string{key}
		}
		close := strings.IndexByte(rest, ']')
		if close < 0 {
			return []string{key}
		}
		segments = append(segments, rest[1:close])
		rest = rest[close+1:]
	}
	return segments
}

func insertPath(root *Node, path []string, value string) {
	cur := root
	for i, seg := range path {
		if i == len(path)-1 {
			cur.Fields[seg] = Leaf(value)
			return
		}
		next, ok := cur.Fields[seg]
		if !ok || next.Kind != KindMap {
			next = NewMap()
			cur.Fields[seg] = next
		}
		cur = next
	}
}

// normalizeLists rewrites map nodes whose keys are exactly 0..n-1 into list
// nodes, mirroring PHP's array-to-JSON rule. Sparse or non-numeric keyed
// maps stay maps.
func normalizeLists(n *Node) *Node {
	switch n.Kind {
	case KindMap:
		for k, child := range n.Fields {
			n.Fields[k] = normalizeLists(child)
		}
		if idx, ok := sequentialIndexes(n.Fields); ok {
			list := NewList()
			for _, k := range idx {
				list.Append(n.Fields[k])
			}
			return list
		}
		return n
	case KindList:
		for i, child := range n.Items {
			n.Items[i] = normalizeLists(child)
		}
		return n
	default:
		return n
	}
}

func sequentialIndexes(fields map[string]*Node) ([]string, bool) {
	if len(fields) == 0 {
		return nil, false
	}
	type kv struct {
		key string
		idx int
	}
	pairs := make([]kv, 0, len(fields))
	for k := range fields {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 {
			return nil, false
		}
		pairs = append(pairs, kv{key: k, idx: i})
	}
	sort.Slice(pairs, func(a, b int) bool { return pairs[a].idx < pairs[b].idx })
	keys := make([]string, len(pairs))
	for i, p := range pairs {
		if p.idx != i {
			return nil, false
		}
		keys[i] = p.key
	}
	return keys, true
}
