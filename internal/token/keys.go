package token

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// SigningKey pairs a signing method with its key material so the token
// format (HMAC, RSA, ECDSA) can change without touching grant logic.
type SigningKey struct {
	// KeyID becomes the "kid" header on signed tokens.
	KeyID string

	method    jwt.SigningMethod
	signKey   any
	verifyKey any
}

// NewHMACKey builds a SigningKey for HS256.
func NewHMACKey(keyID string, secret []byte) (*SigningKey, error) {
	if len(secret) == 0 {
		return nil, errors.New("hmac secret is required")
	}
	return &SigningKey{
		KeyID:     keyID,
		method:    jwt.SigningMethodHS256,
		signKey:   secret,
		verifyKey: secret,
	}, nil
}

// NewRSAKey builds a SigningKey for RS256.
func NewRSAKey(keyID string, privateKey *rsa.PrivateKey) (*SigningKey, error) {
	if privateKey == nil {
		return nil, errors.New("rsa private key is required")
	}
	return &SigningKey{
		KeyID:     keyID,
		method:    jwt.SigningMethodRS256,
		signKey:   privateKey,
		verifyKey: &privateKey.PublicKey,
	}, nil
}

// NewECDSAKey builds a SigningKey for ES256.
func NewECDSAKey(keyID string, privateKey *ecdsa.PrivateKey) (*SigningKey, error) {
	if privateKey == nil {
		return nil, errors.New("ecdsa private key is required")
	}
	return &SigningKey{
		KeyID:     keyID,
		method:    jwt.SigningMethodES256,
		signKey:   privateKey,
		verifyKey: &privateKey.PublicKey,
	}, nil
}

// ParsePEMKey loads an RSA or ECDSA private key from PEM bytes.
func ParsePEMKey(keyID string, pemBytes []byte) (*SigningKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return NewRSAKey(keyID, key)
	}
	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return NewECDSAKey(keyID, key)
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		switch k := key.(type) {
		case *rsa.PrivateKey:
			return NewRSAKey(keyID, k)
		case *ecdsa.PrivateKey:
			return NewECDSAKey(keyID, k)
		}
	}
	return nil, errors.New("unsupported private key type")
}

// Sign signs claims and sets the kid header when a key ID is configured.
func (k *SigningKey) Sign(claims jwt.Claims) (string, error) {
	tok := jwt.NewWithClaims(k.method, claims)
	if k.KeyID != "" {
		tok.Header["kid"] = k.KeyID
	}
	return tok.SignedString(k.signKey)
}

// Keyfunc is the verification callback for jwt.Parse; it pins the
// expected algorithm to prevent algorithm-confusion attacks.
func (k *SigningKey) Keyfunc(tok *jwt.Token) (any, error) {
	if tok.Method.Alg() != k.method.Alg() {
		return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
	}
	return k.verifyKey, nil
}

// Alg returns the JWS algorithm name, e.g. "HS256".
func (k *SigningKey) Alg() string {
	return k.method.Alg()
}

// KeyCollection resolves the active signing key and verification keys by
// kid, so deployments can rotate keys without invalidating live tokens.
type KeyCollection struct {
	active *SigningKey
	byKid  map[string]*SigningKey
}

func NewKeyCollection(active *SigningKey, previous ...*SigningKey) *KeyCollection {
	byKid := make(map[string]*SigningKey, len(previous)+1)
	byKid[active.KeyID] = active
	for _, key := range previous {
		byKid[key.KeyID] = key
	}
	return &KeyCollection{active: active, byKid: byKid}
}

// Active returns the key used to sign new tokens.
func (c *KeyCollection) Active() *SigningKey {
	return c.active
}

// Keyfunc resolves the verification key from the token's kid header,
// falling back to the active key when no kid is present.
func (c *KeyCollection) Keyfunc(tok *jwt.Token) (any, error) {
	key := c.active
	if kid, ok := tok.Header["kid"].(string); ok {
		k, found := c.byKid[kid]
		if !found {
			return nil, fmt.Errorf("unknown key id %q", kid)
		}
		key = k
	}
	return key.Keyfunc(tok)
}
