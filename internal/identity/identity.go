// Package identity provides the per-session token used to tell the local
// user's messages apart from the counterpart's.
//
// The token is generated on the client and echoed back by the server inside
// every live message. It is not issued or verified by the server and must not
// be treated as proof of who wrote a message.
package identity

import (
	"fmt"

	"github.com/google/uuid"
)

// Token is a random per-session identifier (UUID version 4, canonical form).
type Token string

// NewToken generates a fresh random session token.
func NewToken() (Token, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return Token(id.String()), nil
}

// String returns the token in canonical form.
func (t Token) String() string {
	return string(t)
}

// Matches reports whether a token received from the wire is this token.
// The comparison is exact and case-sensitive.
func (t Token) Matches(wire string) bool {
	return t != "" && string(t) == wire
}
