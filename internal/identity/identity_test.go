package identity

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewToken(t *testing.T) {
	a, err := NewToken()
	if err != nil {
		t.Fatalf("NewToken() error = %v", err)
	}
	b, err := NewToken()
	if err != nil {
		t.Fatalf("NewToken() error = %v", err)
	}

	id, err := uuid.Parse(a.String())
	if err != nil {
		t.Fatalf("token %q is not a uuid: %v", a, err)
	}
	if id.Version() != 4 || id.String() != a.String() {
		t.Errorf("token %q is not a canonical version 4 uuid", a)
	}
	if a == b {
		t.Errorf("expected two distinct tokens, got %q twice", a)
	}
}

func TestToken_Matches(t *testing.T) {
	tok := Token("3b241101-e2bb-4255-8caf-4136c566a962")

	tests := []struct {
		name string
		tok  Token
		wire string
		want bool
	}{
		{name: "same token", tok: tok, wire: "3b241101-e2bb-4255-8caf-4136c566a962", want: true},
		{name: "other token", tok: tok, wire: "9f1c1a5e-44a1-4c6c-9d5e-0b1b6a2f1e11", want: false},
		{name: "upper case is different", tok: tok, wire: "3B241101-E2BB-4255-8CAF-4136C566A962", want: false},
		{name: "empty wire", tok: tok, wire: "", want: false},
		{name: "empty token never matches", tok: "", wire: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tok.Matches(tt.wire); got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.wire, got, tt.want)
			}
		})
	}
}
