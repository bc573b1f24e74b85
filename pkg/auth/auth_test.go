package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	req := require.New(t)
	tokens := NewTokens("test-secret")

	access, refresh, err := tokens.Generate(42)
	req.NoError(err)
	req.NotEmpty(access)
	req.NotEmpty(refresh)

	claims, err := tokens.VerifyAccess(access)
	req.NoError(err)
	req.Equal(int64(42), claims.UserID)

	claims, err = tokens.VerifyRefresh(refresh)
	req.NoError(err)
	req.Equal(int64(42), claims.UserID)
}

func TestTokenKindsAreNotInterchangeable(t *testing.T) {
	req := require.New(t)
	tokens := NewTokens("test-secret")

	access, refresh, err := tokens.Generate(1)
	req.NoError(err)

	_, err = tokens.VerifyAccess(refresh)
	req.Error(err, "refresh token must not act as access token")

	_, err = tokens.VerifyRefresh(access)
	req.Error(err)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	req := require.New(t)
	tokens := NewTokens("test-secret")

	for _, bad := range []string{"", "not-a-token", "a.b.c", "🙂"} {
		_, err := tokens.Verify(bad)
		req.Error(err, "input %q", bad)
	}
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	req := require.New(t)

	access, _, err := NewTokens("their-secret").Generate(7)
	req.NoError(err)

	_, err = NewTokens("our-secret").VerifyAccess(access)
	req.Error(err)
}

func TestPasswordHashAndCompare(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("correct horse battery staple")
	req.NoError(err)
	req.Contains(hash, "$argon2id$")

	ok, err := ComparePassword("correct horse battery staple", hash)
	req.NoError(err)
	req.True(ok)

	ok, err = ComparePassword("wrong", hash)
	req.NoError(err)
	req.False(ok)

	_, err = ComparePassword("anything", "not-a-hash")
	req.Error(err)
}

func TestPasswordHashesAreSalted(t *testing.T) {
	req := require.New(t)

	h1, err := HashPassword("same password")
	req.NoError(err)
	h2, err := HashPassword("same password")
	req.NoError(err)
	req.NotEqual(h1, h2)
}
