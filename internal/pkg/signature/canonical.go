package signature

import (
	"fmt"
	"sort"
	"strings"
)

// Canonicalize serializes a payload tree into the exact byte string the
// gateway signs: map keys recursively sorted, compact JSON with no
// whitespace, non-ASCII characters emitted literally and "/" escaped as
// "\/" (PHP json_encode with JSON_UNESCAPED_UNICODE). The output must match
// the gateway's PHP reference byte for byte or every signature fails.
func Canonicalize(n *Node) []byte {
	var b strings.Builder
	encodeNode(&b, n)
	return []byte(b.String())
}

func encodeNode(b *strings.Builder, n *Node) {
	if n == nil {
		b.WriteString(`""`)
		return
	}
	switch n.Kind {
	case KindMap:
		b.WriteByte('{')
		keys := make([]string, 0, len(n.Fields))
		for k := range n.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			encodeString(b, k)
			b.WriteByte(':')
			encodeNode(b, n.Fields[k])
		}
		b.WriteByte('}')
	case KindList:
		b.WriteByte('[')
		for i, item := range n.Items {
			if i > 0 {
				b.WriteByte(',')
			}
			encodeNode(b, item)
		}
		b.WriteByte(']')
	default:
		encodeString(b, n.Value)
	}
}

// encodeString writes a JSON string the way PHP's json_encode does: the
// usual short escapes plus "\/", remaining control characters as \u00XX,
// everything else (including multibyte runes) literal.
func encodeString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '/':
			b.WriteString(`\/`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}
