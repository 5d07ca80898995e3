package session

import (
	"github.com/golang-jwt/jwt/v5"
)

// Identity is the display identity recovered from a token payload. It is used
// for role lookups and UI labelling only.
//
// DecodeIdentity does not verify the token signature. Treating this value as a
// verified identity would be a security bug: verification is the backend's
// responsibility, and every request is authorised server-side against the
// token it actually carries.
type Identity struct {
	Email string
}

// DecodeIdentity extracts the subject email from the payload segment of a JWT
// without verifying it. Malformed tokens, or tokens without a subject, yield
// (nil, false) rather than an error: the caller degrades to "no identity
// known".
func DecodeIdentity(token string) (*Identity, bool) {
	if token == "" {
		return nil, false
	}

	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, false
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, false
	}
	return &Identity{Email: sub}, true
}
