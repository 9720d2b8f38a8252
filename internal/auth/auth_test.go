package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const secret = "test-secret"

func TestMakeAndParse(t *testing.T) {
	tok, err := MakeToken("u1", secret, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	c, err := ParseToken(tok, secret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.UserID != "u1" || c.Subject != "u1" {
		t.Errorf("claims = %+v", c)
	}
}

func TestParseRejects(t *testing.T) {
	good, _ := MakeToken("u1", secret, time.Minute)
	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString([]byte(secret))
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	noUser, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{}).SignedString([]byte(secret))

	tests := []struct {
		name, tok, secret string
	}{
		{"wrong secret", good, "other"},
		{"expired", expired, secret},
		{"alg none", none, secret},
		{"garbage", "not.a.token", secret},
		{"missing uid", noUser, secret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.tok, tt.secret); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestMakeTokenRequiresUser(t *testing.T) {
	if _, err := MakeToken("", secret, 0); err == nil {
		t.Fatal("expected error")
	}
}

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"":             "",
		"Bearer":       "",
	}
	for in, want := range tests {
		if got := BearerToken(in); got != want {
			t.Errorf("BearerToken(%q) = %q, want %q", in, got, want)
		}
	}
}
