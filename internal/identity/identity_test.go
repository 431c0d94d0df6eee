package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTVerifier(t *testing.T) {
	ctx := context.Background()
	v := NewJWTVerifier("secret")

	token, err := v.Issue("user-1", "alice", time.Minute)
	require.NoError(t, err)

	id, err := v.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserId: "user-1", Username: "alice", Verified: true}, id)
}

func TestJWTVerifierRejects(t *testing.T) {
	ctx := context.Background()
	v := NewJWTVerifier("secret")

	other, err := NewJWTVerifier("other").Issue("user-1", "alice", time.Minute)
	require.NoError(t, err)
	expired, err := v.Issue("user-1", "alice", -time.Minute)
	require.NoError(t, err)
	noName, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":        "",
		"garbage":      "not-a-token",
		"wrong secret": other,
		"expired":      expired,
		"no username":  noName,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(ctx, token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestAnonymous(t *testing.T) {
	first, err := Anonymous{}.Verify(context.Background(), "")
	require.NoError(t, err)
	second, err := Anonymous{}.Verify(context.Background(), "")
	require.NoError(t, err)

	assert.NotEmpty(t, first.UserId)
	assert.NotEqual(t, first.UserId, second.UserId)
	assert.False(t, first.Verified)
}
