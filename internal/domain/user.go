package domain

import "time"

// User is the account record returned by the auth endpoints.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// TokenResponse is the payload returned by login and register: the account,
// a bearer token, and its advertised lifetime in seconds.
type TokenResponse struct {
	User      User   `json:"user"`
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
}
