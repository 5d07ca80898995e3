package session_test

import (
	"encoding/base64"
	"testing"

	"github.com/echosysai/echosys-go/internal/session"
)

// token builds an unsigned JWT-shaped string around the given payload JSON.
func token(payload string) string {
	b64 := func(s string) string {
		return base64.RawURLEncoding.EncodeToString([]byte(s))
	}
	return b64(`{"alg":"HS256","typ":"JWT"}`) + "." + b64(payload) + ".sig"
}

func TestDecodeIdentity_SubjectEmail(t *testing.T) {
	identity, ok := session.DecodeIdentity(token(`{"sub":"dev@example.com","exp":9999999999}`))
	if !ok {
		t.Fatal("expected identity from well-formed payload")
	}
	if identity.Email != "dev@example.com" {
		t.Errorf("expected subject email, got %q", identity.Email)
	}
}

func TestDecodeIdentity_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":           "",
		"no dots":         "garbage",
		"bad base64":      "a.!!!.c",
		"payload not json": token(`not-json`),
		"missing subject": token(`{"exp":9999999999}`),
		"empty subject":   token(`{"sub":""}`),
	}

	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			if identity, ok := session.DecodeIdentity(tok); ok {
				t.Errorf("expected no identity, got %+v", identity)
			}
		})
	}
}
