package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestStaticTokenVerifier_Verify(t *testing.T) {
	v := NewStaticTokenVerifier("s3cret", "")

	tests := []struct {
		name        string
		token       string
		wantSubject string
		wantErr     error
	}{
		{name: "matching token", token: "s3cret", wantSubject: DefaultSubject},
		{name: "wrong token", token: "nope", wantErr: ErrInvalidToken},
		{name: "prefix of secret", token: "s3cre", wantErr: ErrInvalidToken},
		{name: "empty token", token: "", wantErr: ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, err := v.Verify(tt.token)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Verify() error = %v, want %v", err, tt.wantErr)
			}
			if subject != tt.wantSubject {
				t.Errorf("Verify() subject = %q, want %q", subject, tt.wantSubject)
			}
		})
	}
}

func TestStaticTokenVerifier_EmptySecretRejectsEverything(t *testing.T) {
	v := NewStaticTokenVerifier("", "svc")
	if _, err := v.Verify(""); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify(\"\") error = %v, want ErrInvalidToken", err)
	}
	if _, err := v.Verify("anything"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify(anything) error = %v, want ErrInvalidToken", err)
	}
}

func TestHashedTokenVerifier_SHA256(t *testing.T) {
	v, err := NewHashedTokenVerifier(HashTokenSHA256("s3cret"), "svc@example.com")
	if err != nil {
		t.Fatalf("NewHashedTokenVerifier() error = %v", err)
	}

	subject, err := v.Verify("s3cret")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if subject != "svc@example.com" {
		t.Errorf("Verify() subject = %q, want svc@example.com", subject)
	}

	if _, err := v.Verify("other"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify(other) error = %v, want ErrInvalidToken", err)
	}
}

func TestHashedTokenVerifier_Argon2id(t *testing.T) {
	hash, err := HashTokenArgon2id("s3cret")
	if err != nil {
		t.Fatalf("HashTokenArgon2id() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("hash = %q, want PHC argon2id format", hash)
	}

	v, err := NewHashedTokenVerifier(hash, "")
	if err != nil {
		t.Fatalf("NewHashedTokenVerifier() error = %v", err)
	}
	if _, err := v.Verify("s3cret"); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
	if _, err := v.Verify("wrong"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify(wrong) error = %v, want ErrInvalidToken", err)
	}
}

func TestNewHashedTokenVerifier_UnknownFormat(t *testing.T) {
	for _, hash := range []string{"", "plain", "sha256:abc", "md5:0123"} {
		if _, err := NewHashedTokenVerifier(hash, ""); !errors.Is(err, ErrUnknownHashType) {
			t.Errorf("NewHashedTokenVerifier(%q) error = %v, want ErrUnknownHashType", hash, err)
		}
	}
}

func TestVerifyToken_MalformedArgon2idDoesNotPanic(t *testing.T) {
	match, err := VerifyToken("x", "$argon2id$v=19$m=0,t=0,p=0$c2FsdA$aGFzaA")
	if match {
		t.Error("VerifyToken() matched a malformed hash")
	}
	if err == nil {
		t.Error("VerifyToken() expected error for malformed hash")
	}
}
