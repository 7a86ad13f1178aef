package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	tm, err := NewTokenManager("secret", "laala", time.Hour)
	require.NoError(t, err)

	token, err := tm.GenerateToken(Identity{Subject: "u-1", Email: "a@example.com", Name: "Awa", Role: "creator", Kind: KindPrincipal})
	require.NoError(t, err)

	id, err := tm.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, &Identity{Subject: "u-1", Email: "a@example.com", Name: "Awa", Role: "creator", Kind: KindPrincipal}, id)
}

func TestTokenRejections(t *testing.T) {
	tm, err := NewTokenManager("secret", "laala", time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("wrong secret", func(t *testing.T) {
		other, _ := NewTokenManager("other", "laala", time.Hour)
		token, err := other.GenerateToken(Identity{Subject: "u-1", Email: "a@example.com"})
		require.NoError(t, err)
		_, err = tm.Verify(ctx, token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		past, _ := NewTokenManager("secret", "laala", time.Minute)
		past.now = func() time.Time { return time.Now().Add(-time.Hour) }
		token, err := past.GenerateToken(Identity{Subject: "u-1", Email: "a@example.com"})
		require.NoError(t, err)
		_, err = tm.Verify(ctx, token)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, _ := NewTokenManager("secret", "someone-else", time.Hour)
		token, err := other.GenerateToken(Identity{Subject: "u-1", Email: "a@example.com"})
		require.NoError(t, err)
		_, err = tm.Verify(ctx, token)
		assert.Error(t, err)
	})

	t.Run("none algorithm", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u-1", "iss": "laala"})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = tm.Verify(ctx, signed)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tm.Verify(ctx, "not-a-token")
		assert.Error(t, err)
	})
}

func TestNewTokenManagerRequiresSecret(t *testing.T) {
	_, err := NewTokenManager("", "laala", time.Hour)
	assert.Error(t, err)
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{header: "Bearer abc", want: "abc"},
		{header: "bearer abc", want: "abc"},
		{header: "", wantErr: true},
		{header: "Basic abc", wantErr: true},
		{header: "Bearer", wantErr: true},
		{header: "Bearer a b", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ExtractToken(tt.header)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrMissingToken, tt.header)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

type stubVerifier struct {
	id  *Identity
	err error
}

func (s stubVerifier) Verify(context.Context, string) (*Identity, error) { return s.id, s.err }

func TestChainVerifier(t *testing.T) {
	ctx := context.Background()
	want := &Identity{Subject: "u-2", Email: "b@example.com"}

	chain := ChainVerifier{stubVerifier{err: errors.New("not mine")}, stubVerifier{id: want}}
	got, err := chain.Verify(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	chain = ChainVerifier{stubVerifier{err: errors.New("first")}, stubVerifier{err: errors.New("second")}}
	_, err = chain.Verify(ctx, "tok")
	assert.ErrorContains(t, err, "second")

	_, err = ChainVerifier{}.Verify(ctx, "tok")
	assert.Error(t, err)
}

func TestPasswords(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "s3cret-pass"))
	assert.False(t, CheckPassword(hash, "wrong"))
	assert.False(t, CheckPassword("", "s3cret-pass"))

	a, err := GenerateTemporaryPassword()
	require.NoError(t, err)
	b, err := GenerateTemporaryPassword()
	require.NoError(t, err)
	assert.Len(t, a, TemporaryPasswordLength)
	assert.NotEqual(t, a, b)
	assert.False(t, strings.ContainsAny(a, "0O1lI"))
}
