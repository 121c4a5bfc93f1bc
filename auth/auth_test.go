package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": "u1"}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestStaticSignedOut(t *testing.T) {
	s := NewStatic(Identity{}, "")

	_, ok := s.CurrentUser()
	assert.False(t, ok)
	_, ok = s.Token()
	assert.False(t, ok)
}

func TestStaticSignedIn(t *testing.T) {
	s := NewStatic(Identity{ID: "u1", Name: "Ada", Email: "ada@example.com"}, "opaque-token")

	user, ok := s.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "Ada", user.Name)

	token, ok := s.Token()
	require.True(t, ok)
	assert.Equal(t, "opaque-token", token)
}

func TestTokenUsable(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"opaque token passes through", "not-a-jwt", true},
		{"jwt without exp", signedJWT(t, time.Time{}), true},
		{"jwt expiring in the future", signedJWT(t, now.Add(time.Hour)), true},
		{"expired jwt", signedJWT(t, now.Add(-time.Minute)), false},
		{"malformed jwt-shaped token", "a.b.c", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TokenUsable(tt.token, now))
		})
	}
}

func TestStaticExpiredTokenCountsAsAbsent(t *testing.T) {
	s := NewStatic(Identity{ID: "u1"}, signedJWT(t, time.Now().Add(-time.Hour)))

	_, hasUser := s.CurrentUser()
	assert.True(t, hasUser, "identity is independent of the credential")

	_, hasToken := s.Token()
	assert.False(t, hasToken)
}
