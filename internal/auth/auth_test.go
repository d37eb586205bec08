package auth

import (
	"testing"

	"rulegate/internal/metadata"
)

func TestTokenRoundTrip(t *testing.T) {
	user := &metadata.UserContext{
		ID:    "u1",
		Email: "alice@example.com",
		Name:  "Alice",
		Roles: []string{"admin", "editor"},
	}

	token, err := GenerateToken("secret", user)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	got, err := ParseToken("secret", token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.ID != user.ID || got.Email != user.Email || got.Name != user.Name {
		t.Fatalf("round trip: %+v", got)
	}
	if !got.IsAdmin() || !got.HasRole("editor") {
		t.Fatalf("roles lost: %v", got.Roles)
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken("secret", &metadata.UserContext{ID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseToken("other", token); err == nil {
		t.Fatal("wrong secret must fail")
	}
}

func TestParseTokenGarbage(t *testing.T) {
	if _, err := ParseToken("secret", "not.a.token"); err == nil {
		t.Fatal("garbage token must fail")
	}
}
