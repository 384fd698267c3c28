package validator

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// PKCE code challenge methods (RFC 7636 §4.2).
const (
	CodeChallengeMethodPlain = "plain"
	CodeChallengeMethodS256  = "S256"
)

// ValidatePKCE checks a code_verifier against the stored code_challenge.
// S256: base64url(SHA256(ASCII(verifier))) must equal the challenge.
// plain: direct string equality.
func ValidatePKCE(codeVerifier, codeChallenge, codeChallengeMethod string) bool {
	if codeVerifier == "" || codeChallenge == "" {
		return false
	}
	switch codeChallengeMethod {
	case CodeChallengeMethodS256:
		sum := sha256.Sum256([]byte(codeVerifier))
		computed := base64.RawURLEncoding.EncodeToString(sum[:])
		return computed == codeChallenge
	case CodeChallengeMethodPlain, "":
		return codeVerifier == codeChallenge
	default:
		return false
	}
}

// ValidCodeChallengeMethod reports whether method is one the server
// accepts at the authorization endpoint.
func ValidCodeChallengeMethod(method string) bool {
	switch strings.TrimSpace(method) {
	case CodeChallengeMethodPlain, CodeChallengeMethodS256:
		return true
	default:
		return false
	}
}
