// Package auth is the engine's view of the authentication collaborator.
//
// The engine does not issue or store credentials; it only consumes two
// facts from the host application: who the current shopper is and whether
// an auth token is present. Tokens that carry a JWT expiry are additionally
// checked locally so an expired credential counts as "not authenticated"
// before checkout even starts. Signature verification stays with the
// remote service.
package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity describes the current shopper.
type Identity struct {
	ID    string
	Name  string
	Email string
}

// Session exposes the authentication facts the engine consumes.
type Session interface {
	// CurrentUser returns the signed-in shopper, if any.
	CurrentUser() (Identity, bool)

	// Token returns the opaque credential to attach to service calls,
	// if any.
	Token() (string, bool)
}

// Static is a Session for hosts that already hold a user and token.
type Static struct {
	User        Identity
	Credential  string
	hasIdentity bool
}

// NewStatic builds a Static session. An empty credential means signed out.
func NewStatic(user Identity, token string) *Static {
	return &Static{
		User:        user,
		Credential:  token,
		hasIdentity: user.ID != "" || user.Email != "",
	}
}

// CurrentUser implements Session.
func (s *Static) CurrentUser() (Identity, bool) {
	return s.User, s.hasIdentity
}

// Token implements Session. An expired JWT credential is treated as absent.
func (s *Static) Token() (string, bool) {
	if s.Credential == "" {
		return "", false
	}
	if !TokenUsable(s.Credential, time.Now()) {
		return "", false
	}
	return s.Credential, true
}

// TokenUsable reports whether the credential can still be attached to
// requests at the given time. JWTs with an exp claim in the past are
// unusable; anything that does not parse as a JWT is passed through as an
// opaque token and left for the service to judge.
func TokenUsable(token string, now time.Time) bool {
	if strings.Count(token, ".") != 2 {
		return true
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return true
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return exp.After(now)
}
