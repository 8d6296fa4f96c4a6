package token

import (
	"context"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-key")

func TestNewService_EmptySecret(t *testing.T) {
	_, err := NewService(nil)
	assert.Error(t, err)
}

func TestService_IssueAndVerify(t *testing.T) {
	svc, err := NewService(testSecret)
	require.NoError(t, err)

	raw, err := svc.Issue("account-1")
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	accountID, err := svc.Verify(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "account-1", accountID)
}

func TestService_Issue_EmptyAccountID(t *testing.T) {
	svc, err := NewService(testSecret)
	require.NoError(t, err)

	_, err = svc.Issue("")
	assert.Error(t, err)
}

func TestService_Verify_Expired(t *testing.T) {
	issued := time.Now().Add(-2 * time.Hour)
	past, err := NewService(testSecret,
		WithTTL(time.Hour),
		WithClock(func() time.Time { return issued }))
	require.NoError(t, err)

	raw, err := past.Issue("account-1")
	require.NoError(t, err)

	svc, err := NewService(testSecret)
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), raw)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestService_Verify_WrongSecret(t *testing.T) {
	svc, err := NewService(testSecret)
	require.NoError(t, err)

	other, err := NewService([]byte("another-secret"))
	require.NoError(t, err)

	raw, err := other.Issue("account-1")
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), raw)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestService_Verify_Malformed(t *testing.T) {
	svc, err := NewService(testSecret)
	require.NoError(t, err)

	for _, raw := range []string{"", "garbage", "a.b.c"} {
		_, err = svc.Verify(context.Background(), raw)
		assert.ErrorIs(t, err, ErrInvalid)
	}
}

func TestService_Verify_MissingAccountClaim(t *testing.T) {
	svc, err := NewService(testSecret)
	require.NoError(t, err)

	// Correctly signed token that never carried the account claim.
	now := time.Now()
	tok, err := jwt.NewBuilder().
		IssuedAt(now).
		Expiration(now.Add(time.Hour)).
		Build()
	require.NoError(t, err)

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, testSecret))
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), string(signed))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestService_Verify_NotYetExpired(t *testing.T) {
	svc, err := NewService(testSecret, WithTTL(time.Minute))
	require.NoError(t, err)

	raw, err := svc.Issue("account-1")
	require.NoError(t, err)

	accountID, err := svc.Verify(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "account-1", accountID)
}
