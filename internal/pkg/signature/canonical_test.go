package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeSortsKeysRecursively(t *testing.T) {
	n := NewMap().
		Set("sum", Leaf("100.00")).
		Set("order_id", Leaf("42:course-a")).
		Set("customer", NewMap().
			Set("phone", Leaf("+79990000000")).
			Set("email", Leaf("a@b.c")))

	got := string(Canonicalize(n))
	assert.Equal(t, `{"customer":{"email":"a@b.c","phone":"+79990000000"},"order_id":"42:course-a","sum":"100.00"}`, got)
}

func TestCanonicalizeEmptyMap(t *testing.T) {
	assert.Equal(t, "{}", string(Canonicalize(NewMap())))
}

func TestCanonicalizeEscapes(t *testing.T) {
	n := NewMap().
		Set("path", Leaf("a/b")).
		Set("quote", Leaf(`say "hi"`)).
		Set("newline", Leaf("x\ny")).
		Set("ctrl", Leaf("a\x01b")).
		Set("unicode", Leaf("Курс по Go"))

	got := string(Canonicalize(n))
	assert.Contains(t, got, `"path":"a\/b"`)
	assert.Contains(t, got, `"quote":"say \"hi\""`)
	assert.Contains(t, got, `"newline":"x\ny"`)
	assert.Contains(t, got, `"ctrl":"a\u0001b"`)
	// Multibyte runes stay literal, no \uXXXX escaping.
	assert.Contains(t, got, `"unicode":"Курс по Go"`)
}

func TestBuildFromFormExpandsBrackets(t *testing.T) {
	n := BuildFromForm(map[string]string{
		"order_id":           "42:course-a",
		"products[0][name]":  "Course A",
		"products[0][price]": "100.00",
		"products[1][name]":  "Course B",
	})

	got := string(Canonicalize(n))
	assert.Equal(t, `{"order_id":"42:course-a","products":[{"name":"Course A","price":"100.00"},{"name":"Course B"}]}`, got)
}

func TestBuildFromFormSparseIndexesStayMap(t *testing.T) {
	n := BuildFromForm(map[string]string{
		"items[0]": "a",
		"items[2]": "c",
	})

	assert.Equal(t, `{"items":{"0":"a","2":"c"}}`, string(Canonicalize(n)))
}

func TestBuildFromFormSkipsSignatureFields(t *testing.T) {
	n := BuildFromForm(map[string]string{
		"order_id":  "1:r",
		"signature": "deadbeef",
		"Sign":      "deadbeef",
	}, "Sign", "signature")

	assert.Equal(t, `{"order_id":"1:r"}`, string(Canonicalize(n)))
}

func TestBuildFromFormConflictingKeysAreDeterministic(t *testing.T) {
	// "a" and "a[b]" describe the same slot; the nested form must win on
	// every run, independent of map iteration order.
	for i := 0; i < 20; i++ {
		n := BuildFromForm(map[string]string{
			"a":    "1",
			"a[b]": "2",
		})
		assert.Equal(t, `{"a":{"b":"2"}}`, string(Canonicalize(n)))
	}
}

func TestBuildFromFormMalformedBracketKeyIsLiteral(t *testing.T) {
	n := BuildFromForm(map[string]string{
		"items[0":  "a",
		"[weird]":  "b",
		"plain":    "c",
		"items]0[": "d",
	})

	got := string(Canonicalize(n))
	assert.Contains(t, got, `"items[0":"a"`)
	assert.Contains(t, got, `"[weird]":"b"`)
	assert.Contains(t, got, `"plain":"c"`)
}

func TestBuildFromJSONMatchesFormEncoding(t *testing.T) {
	form := BuildFromForm(map[string]string{
		"order_id":           "42:course-a",
		"sum":                "100.00",
		"products[0][name]":  "Course A",
		"products[0][price]": "100.00",
	})

	jsonNode, err := BuildFromJSON([]byte(`{
		"order_id": "42:course-a",
		"sum": "100.00",
		"products": [{"name": "Course A", "price": "100.00"}]
	}`))
	require.NoError(t, err)

	assert.Equal(t, Canonicalize(form), Canonicalize(jsonNode))
}

func TestBuildFromJSONScalarCasts(t *testing.T) {
	n, err := BuildFromJSON([]byte(`{"paid":true,"test":false,"note":null,"sum":100.00,"count":3}`))
	require.NoError(t, err)

	assert.Equal(t, `{"count":"3","note":"","paid":"1","sum":"100.00","test":""}`, string(Canonicalize(n)))
}

func TestBuildFromJSONRejectsGarbage(t *testing.T) {
	_, err := BuildFromJSON([]byte(`{"order_id":`))
	assert.Error(t, err)
}
