package extension

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/config"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/models"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/util"
)

const (
	dpopExtensionID = "dpop"
	dpopHeaderTyp   = "dpop+jwt"
	dpopNonceHeader = "DPoP-Nonce"

	// nonceRotation is how long a minted nonce stays current; the previous
	// nonce remains acceptable for one more rotation window.
	nonceRotation = 5 * time.Minute
)

var dpopAllowedAlgs = map[string]bool{
	"ES256": true, "ES384": true, "ES512": true,
	"RS256": true, "RS384": true, "RS512": true,
	"PS256": true, "PS384": true, "PS512": true,
	"EdDSA": true,
}

// DPoPExtension implements Demonstrating Proof-of-Possession (RFC 9449).
// Token requests bearing a DPoP proof header are validated against the
// request method and URI, and successful token responses are rewritten to
// token_type DPoP with a rotating anti-replay nonce attached.
type DPoPExtension struct {
	Base

	config *config.Config

	mu            sync.Mutex
	currentNonce  string
	previousNonce string
	rotatedAt     time.Time
	seenJTIs      map[string]time.Time
}

var _ OAuthExtension = (*DPoPExtension)(nil)

func NewDPoPExtension(cfg *config.Config) *DPoPExtension {
	return &DPoPExtension{
		config:   cfg,
		seenJTIs: make(map[string]time.Time),
	}
}

func (e *DPoPExtension) ExtensionID() string { return dpopExtensionID }

func (e *DPoPExtension) Capabilities() Capabilities {
	return Capabilities{
		ModifiesTokenRequest:  true,
		ModifiesTokenResponse: true,
		AddsEndpoints:         true,
	}
}

func (e *DPoPExtension) Initialize() error {
	if e.config.DPoPProofMaxAge <= 0 {
		return NewError(dpopExtensionID, ErrCodeConfiguration,
			"DPoP proof max age must be positive",
			"set DPOP_PROOF_MAX_AGE to a positive duration", nil)
	}
	return nil
}

func (e *DPoPExtension) AddRoutes(rg *gin.RouterGroup) {
	rg.GET("/dpop_nonce", e.handleNonce)
}

func (e *DPoPExtension) Metadata() map[string]any {
	algs := make([]string, 0, len(dpopAllowedAlgs))
	for alg := range dpopAllowedAlgs {
		algs = append(algs, alg)
	}
	return map[string]any{"dpop_signing_alg_values_supported": algs}
}

// handleNonce hands the client a fresh server nonce (RFC 9449 §8).
func (e *DPoPExtension) handleNonce(c *gin.Context) {
	c.Header(dpopNonceHeader, e.nonce())
	c.Header("Cache-Control", "no-store")
	c.Status(http.StatusOK)
}

// ProcessTokenRequest validates the proof when the request carries a DPoP
// header; requests without one pass through untouched.
func (e *DPoPExtension) ProcessTokenRequest(c *gin.Context) error {
	proof := c.GetHeader("DPoP")
	if proof == "" {
		return nil
	}
	if err := e.validateProof(proof, c.Request); err != nil {
		c.Header(dpopNonceHeader, e.nonce())
		return err
	}
	return nil
}

// ProcessTokenResponse rewrites token_type for proof-bound requests and
// attaches the rotating nonce.
func (e *DPoPExtension) ProcessTokenResponse(c *gin.Context, response map[string]any) (map[string]any, error) {
	if c.GetHeader("DPoP") == "" {
		return nil, nil
	}
	c.Header(dpopNonceHeader, e.nonce())

	updated := make(map[string]any, len(response))
	for k, v := range response {
		updated[k] = v
	}
	updated["token_type"] = models.TokenTypeDPoP
	return updated, nil
}

func (e *DPoPExtension) ValidateRequest(c *gin.Context) []error {
	proof := c.GetHeader("DPoP")
	if proof == "" {
		return nil
	}
	if err := e.validateProof(proof, c.Request); err != nil {
		return []error{err}
	}
	return nil
}

// validateProof checks the proof JWT per RFC 9449 §4.3: typ and alg
// headers, signature by the embedded JWK, htm/htu binding, iat freshness,
// jti uniqueness, and the nonce when the proof carries one.
func (e *DPoPExtension) validateProof(proof string, r *http.Request) error {
	parsed, err := jwt.Parse(proof, func(t *jwt.Token) (any, error) {
		typ, _ := t.Header["typ"].(string)
		if typ != dpopHeaderTyp {
			return nil, fmt.Errorf("typ must be %s", dpopHeaderTyp)
		}
		alg, _ := t.Header["alg"].(string)
		if !dpopAllowedAlgs[alg] {
			return nil, fmt.Errorf("alg %s is not an asymmetric DPoP algorithm", alg)
		}
		jwk, ok := t.Header["jwk"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("jwk header is required")
		}
		return publicKeyFromJWK(jwk)
	})
	if err != nil {
		return NewError(dpopExtensionID, ErrCodeInvalidParameter,
			"DPoP proof is invalid", "send a freshly signed DPoP proof", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return NewError(dpopExtensionID, ErrCodeInvalidParameter,
			"DPoP proof claims are malformed", "send a freshly signed DPoP proof", nil)
	}

	htm, _ := claims["htm"].(string)
	if !strings.EqualFold(htm, r.Method) {
		return NewError(dpopExtensionID, ErrCodeValidationFailed,
			"DPoP proof htm does not match the request method",
			"sign the proof over the actual HTTP method", nil)
	}

	htu, _ := claims["htu"].(string)
	if !matchesRequestURI(htu, r) {
		return NewError(dpopExtensionID, ErrCodeValidationFailed,
			"DPoP proof htu does not match the request URI",
			"sign the proof over the actual request URI without query or fragment", nil)
	}

	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return NewError(dpopExtensionID, ErrCodeInvalidParameter,
			"DPoP proof is missing iat", "include iat in the proof", err)
	}
	age := time.Since(iat.Time)
	if age > e.config.DPoPProofMaxAge || age < -e.config.DPoPProofMaxAge {
		return NewError(dpopExtensionID, ErrCodeValidationFailed,
			"DPoP proof iat is outside the acceptance window",
			"synchronize the client clock and sign a fresh proof", nil)
	}

	jti, _ := claims["jti"].(string)
	if jti == "" {
		return NewError(dpopExtensionID, ErrCodeInvalidParameter,
			"DPoP proof is missing jti", "include a unique jti in the proof", nil)
	}
	if !e.rememberJTI(jti) {
		return NewError(dpopExtensionID, ErrCodeValidationFailed,
			"DPoP proof has already been used",
			"sign a fresh proof for every request", nil)
	}

	if nonce, ok := claims["nonce"].(string); ok && nonce != "" {
		if !e.acceptNonce(nonce) {
			return NewError(dpopExtensionID, ErrCodeValidationFailed,
				"DPoP proof nonce is stale",
				"fetch a fresh nonce from the DPoP-Nonce header", nil)
		}
	}

	return nil
}

// matchesRequestURI compares htu to the request target without query or
// fragment (RFC 9449 §4.3 step 9).
func matchesRequestURI(htu string, r *http.Request) bool {
	if htu == "" {
		return false
	}
	claimed, err := url.Parse(htu)
	if err != nil {
		return false
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return strings.EqualFold(claimed.Scheme, scheme) &&
		strings.EqualFold(claimed.Host, r.Host) &&
		claimed.Path == r.URL.Path
}

// rememberJTI records a proof identifier, reporting false on replay.
// Entries older than twice the proof window are pruned on the way in.
func (e *DPoPExtension) rememberJTI(jti string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := time.Now().Add(-2 * e.config.DPoPProofMaxAge)
	for id, seen := range e.seenJTIs {
		if seen.Before(cutoff) {
			delete(e.seenJTIs, id)
		}
	}

	if _, replayed := e.seenJTIs[jti]; replayed {
		return false
	}
	e.seenJTIs[jti] = time.Now()
	return true
}

// nonce returns the current server nonce, rotating it lazily.
func (e *DPoPExtension) nonce() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rotateLocked()
	return e.currentNonce
}

// acceptNonce accepts the current nonce and the previous one, giving
// clients one rotation window of grace.
func (e *DPoPExtension) acceptNonce(nonce string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rotateLocked()
	return nonce == e.currentNonce || nonce == e.previousNonce
}

func (e *DPoPExtension) rotateLocked() {
	if e.currentNonce != "" && time.Since(e.rotatedAt) < nonceRotation {
		return
	}
	fresh, err := util.CryptoRandomURLString(16)
	if err != nil {
		return
	}
	e.previousNonce = e.currentNonce
	e.currentNonce = fresh
	e.rotatedAt = time.Now()
}

// publicKeyFromJWK converts an embedded JWK (RFC 7517) to a verification
// key. EC, RSA and Ed25519 keys are supported.
func publicKeyFromJWK(jwk map[string]any) (crypto.PublicKey, error) {
	kty, _ := jwk["kty"].(string)
	switch kty {
	case "EC":
		return ecKeyFromJWK(jwk)
	case "RSA":
		return rsaKeyFromJWK(jwk)
	case "OKP":
		return okpKeyFromJWK(jwk)
	default:
		return nil, fmt.Errorf("unsupported jwk key type %q", kty)
	}
}

func ecKeyFromJWK(jwk map[string]any) (*ecdsa.PublicKey, error) {
	var curve elliptic.Curve
	switch crv, _ := jwk["crv"].(string); crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	case "P-521":
		curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("unsupported EC curve %q", jwk["crv"])
	}

	x, err := jwkBigInt(jwk, "x")
	if err != nil {
		return nil, err
	}
	y, err := jwkBigInt(jwk, "y")
	if err != nil {
		return nil, err
	}
	key := &ecdsa.PublicKey{Curve: curve, X: x, Y: y}
	if !curve.IsOnCurve(x, y) {
		return nil, fmt.Errorf("EC point is not on the curve")
	}
	return key, nil
}

func rsaKeyFromJWK(jwk map[string]any) (*rsa.PublicKey, error) {
	n, err := jwkBigInt(jwk, "n")
	if err != nil {
		return nil, err
	}
	eInt, err := jwkBigInt(jwk, "e")
	if err != nil {
		return nil, err
	}
	return &rsa.PublicKey{N: n, E: int(eInt.Int64())}, nil
}

func okpKeyFromJWK(jwk map[string]any) (ed25519.PublicKey, error) {
	if crv, _ := jwk["crv"].(string); crv != "Ed25519" {
		return nil, fmt.Errorf("unsupported OKP curve %q", jwk["crv"])
	}
	raw, err := jwkBytes(jwk, "x")
	if err != nil {
		return nil, err
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("Ed25519 key has wrong length %d", len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

func jwkBytes(jwk map[string]any, field string) ([]byte, error) {
	encoded, _ := jwk[field].(string)
	if encoded == "" {
		return nil, fmt.Errorf("jwk is missing %s", field)
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("jwk %s is not base64url: %w", field, err)
	}
	return raw, nil
}

func jwkBigInt(jwk map[string]any, field string) (*big.Int, error) {
	raw, err := jwkBytes(jwk, field)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(raw), nil
}
