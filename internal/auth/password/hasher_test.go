package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasher_HashAndVerify(t *testing.T) {
	h := NewHasher(4) // low cost keeps the test fast

	digest, err := h.Hash("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", digest)

	assert.True(t, h.Verify("s3cret", digest))
	assert.False(t, h.Verify("wrong", digest))
}

func TestHasher_Hash_UniqueSalt(t *testing.T) {
	h := NewHasher(4)

	a, err := h.Hash("same-password")
	require.NoError(t, err)
	b, err := h.Hash("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, h.Verify("same-password", a))
	assert.True(t, h.Verify("same-password", b))
}

func TestHasher_Hash_OverLongPassword(t *testing.T) {
	h := NewHasher(4)

	// bcrypt rejects inputs beyond 72 bytes.
	_, err := h.Hash(strings.Repeat("x", 100))
	assert.Error(t, err)
}

func TestHasher_Verify_GarbageDigest(t *testing.T) {
	h := NewHasher(4)

	assert.False(t, h.Verify("password", "not-a-bcrypt-digest"))
}

func TestNewHasher_CostClamped(t *testing.T) {
	h := NewHasher(0)

	digest, err := h.Hash("password")
	require.NoError(t, err)
	assert.True(t, h.Verify("password", digest))
}
