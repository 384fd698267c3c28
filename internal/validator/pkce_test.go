package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// RFC 7636 appendix B test vector.
const (
	rfcVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	rfcChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
)

func TestValidatePKCE_S256MatchesRFCVector(t *testing.T) {
	assert.True(t, ValidatePKCE(rfcVerifier, rfcChallenge, CodeChallengeMethodS256))
}

func TestValidatePKCE_S256RejectsOtherVerifiers(t *testing.T) {
	assert.False(t, ValidatePKCE("wrong-verifier", rfcChallenge, CodeChallengeMethodS256))
	assert.False(t, ValidatePKCE("", rfcChallenge, CodeChallengeMethodS256))
	assert.False(t, ValidatePKCE(rfcChallenge, rfcChallenge, CodeChallengeMethodS256))
}

func TestValidatePKCE_PlainIsEquality(t *testing.T) {
	assert.True(t, ValidatePKCE("secret-verifier", "secret-verifier", CodeChallengeMethodPlain))
	assert.False(t, ValidatePKCE("secret-verifier", "other", CodeChallengeMethodPlain))
}

func TestValidatePKCE_UnknownMethodFails(t *testing.T) {
	assert.False(t, ValidatePKCE(rfcVerifier, rfcChallenge, "S512"))
	assert.False(t, ValidatePKCE(rfcVerifier, rfcChallenge, ""))
}

func TestValidCodeChallengeMethod(t *testing.T) {
	assert.True(t, ValidCodeChallengeMethod(CodeChallengeMethodPlain))
	assert.True(t, ValidCodeChallengeMethod(CodeChallengeMethodS256))
	assert.False(t, ValidCodeChallengeMethod("s256"))
	assert.False(t, ValidCodeChallengeMethod(""))
}
