package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
)

// ErrUnknownHashType is returned when a configured hash has an unrecognized format.
var ErrUnknownHashType = errors.New("unknown hash type")

// TokenVerifier checks a bearer token and returns the subject it identifies.
// Implementations must return ErrInvalidToken for tokens that do not verify.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// StaticTokenVerifier accepts exactly one shared secret.
type StaticTokenVerifier struct {
	secret  []byte
	subject string
}

// NewStaticTokenVerifier creates a verifier for a plaintext shared secret.
// An empty subject defaults to DefaultSubject.
func NewStaticTokenVerifier(secret, subject string) *StaticTokenVerifier {
	if subject == "" {
		subject = DefaultSubject
	}
	return &StaticTokenVerifier{secret: []byte(secret), subject: subject}
}

// Verify compares token against the secret in constant time.
func (v *StaticTokenVerifier) Verify(token string) (string, error) {
	if token == "" || len(v.secret) == 0 {
		return "", ErrInvalidToken
	}
	if subtle.ConstantTimeCompare([]byte(token), v.secret) != 1 {
		return "", ErrInvalidToken
	}
	return v.subject, nil
}

// HashedTokenVerifier accepts the token whose hash is configured, so the
// plaintext secret never has to be stored in config.
// Supported formats: "$argon2id$..." (PHC) and "sha256:<hex>".
type HashedTokenVerifier struct {
	hash    string
	subject string
}

// NewHashedTokenVerifier creates a verifier for a stored token hash.
// Returns ErrUnknownHashType if the hash format is not recognized.
func NewHashedTokenVerifier(hash, subject string) (*HashedTokenVerifier, error) {
	if DetectHashType(hash) == "unknown" {
		return nil, ErrUnknownHashType
	}
	if subject == "" {
		subject = DefaultSubject
	}
	return &HashedTokenVerifier{hash: hash, subject: subject}, nil
}

// Verify checks token against the stored hash.
func (v *HashedTokenVerifier) Verify(token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	match, err := VerifyToken(token, v.hash)
	if err != nil || !match {
		return "", ErrInvalidToken
	}
	return v.subject, nil
}

// HashTokenSHA256 returns the "sha256:"-prefixed hex digest of token.
func HashTokenSHA256(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "sha256:" + hex.EncodeToString(sum[:])
}

// argon2idParams follows the OWASP minimum recommendation for Argon2id.
var argon2idParams = &argon2id.Params{
	Memory:      47 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// HashTokenArgon2id returns an Argon2id hash of token in PHC format.
func HashTokenArgon2id(token string) (string, error) {
	return argon2id.CreateHash(token, argon2idParams)
}

// DetectHashType identifies the algorithm of a stored hash:
// "argon2id", "sha256" or "unknown".
func DetectHashType(storedHash string) string {
	switch {
	case strings.HasPrefix(storedHash, "$argon2id$"):
		return "argon2id"
	case strings.HasPrefix(storedHash, "sha256:") && len(storedHash) == len("sha256:")+64:
		return "sha256"
	default:
		return "unknown"
	}
}

// VerifyToken verifies a raw token against a stored hash.
func VerifyToken(token, storedHash string) (bool, error) {
	switch DetectHashType(storedHash) {
	case "argon2id":
		return safeArgon2idCompare(token, storedHash)
	case "sha256":
		computed := HashTokenSHA256(token)
		return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1, nil
	default:
		return false, ErrUnknownHashType
	}
}

// safeArgon2idCompare converts panics from malformed hash parameters
// (e.g. t=0 or p=0) into errors.
func safeArgon2idCompare(token, storedHash string) (match bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			match = false
			err = fmt.Errorf("invalid argon2id hash parameters: %v", r)
		}
	}()
	return argon2id.ComparePasswordAndHash(token, storedHash)
}

// Compile-time interface verification.
var (
	_ TokenVerifier = (*StaticTokenVerifier)(nil)
	_ TokenVerifier = (*HashedTokenVerifier)(nil)
)
