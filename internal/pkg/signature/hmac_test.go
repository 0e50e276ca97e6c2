package signature

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "payform-secret"

func TestSignIsEncodingIndependent(t *testing.T) {
	form := BuildFromForm(map[string]string{
		"order_id":          "42:course-a",
		"payment_status":    "success",
		"products[0][name]": "Course A",
	})
	jsonNode, err := BuildFromJSON([]byte(`{"order_id":"42:course-a","payment_status":"success","products":[{"name":"Course A"}]}`))
	require.NoError(t, err)

	assert.Equal(t, Sign(form, testSecret), Sign(jsonNode, testSecret))
}

func TestVerifyAcceptsUppercaseHex(t *testing.T) {
	n := NewMap().Set("order_id", Leaf("1:r"))
	sig := Sign(n, testSecret)
	require.NotEmpty(t, sig)

	assert.True(t, Verify(n, testSecret, sig))
	assert.True(t, Verify(n, testSecret, strings.ToUpper(sig)))
	assert.True(t, Verify(n, testSecret, "  "+sig+"\n"))
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	n := NewMap().Set("sum", Leaf("100.00"))
	sig := Sign(n, testSecret)

	n.Set("sum", Leaf("1.00"))
	assert.False(t, Verify(n, testSecret, sig))
}

func TestVerifyFailsClosed(t *testing.T) {
	n := NewMap().Set("order_id", Leaf("1:r"))

	assert.False(t, Verify(n, testSecret, ""))
	assert.False(t, Verify(n, "", Sign(n, testSecret)))
	assert.False(t, Verify(n, testSecret, "not-hex-at-all"))
	assert.False(t, Verify(nil, testSecret, Sign(n, testSecret)))
}
