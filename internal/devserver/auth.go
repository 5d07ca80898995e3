package devserver

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Predefined auth errors.
var (
	ErrInvalidToken = errors.New("invalid access token")
	ErrTokenExpired = errors.New("access token has expired")
)

// Authenticator issues and validates the development server's HS256 access
// tokens. The subject claim carries the account email, which is what the SDK's
// display-identity decode expects to find.
type Authenticator struct {
	signingKey []byte
	issuer     string
	lifetime   time.Duration
}

// AuthConfig holds authenticator settings.
type AuthConfig struct {
	SigningKey string
	Issuer     string
	Lifetime   time.Duration
}

// NewAuthenticator creates an authenticator.
func NewAuthenticator(cfg AuthConfig) *Authenticator {
	lifetime := cfg.Lifetime
	if lifetime == 0 {
		lifetime = 24 * time.Hour
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = "echosys-dev"
	}
	return &Authenticator{
		signingKey: []byte(cfg.SigningKey),
		issuer:     issuer,
		lifetime:   lifetime,
	}
}

// Issue creates an access token for the given account email. Returns the
// signed token and its lifetime in seconds.
func (a *Authenticator) Issue(email string) (string, int64, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    a.issuer,
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.lifetime)),
		NotBefore: jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.signingKey)
	if err != nil {
		return "", 0, fmt.Errorf("signing access token: %w", err)
	}
	return signed, int64(a.lifetime.Seconds()), nil
}

// Validate checks a token and returns the subject email.
func (a *Authenticator) Validate(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %s", ErrInvalidToken, err.Error())
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// HashPassword hashes a password for storage. SHA-256 is fine for a
// development fixture; the production backend owns real credential handling.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// CheckPassword reports whether the password matches the stored hash.
func CheckPassword(password, hash string) bool {
	return HashPassword(password) == hash
}
