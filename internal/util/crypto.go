package util

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

// CryptoRandomBytes generates cryptographically secure random bytes.
func CryptoRandomBytes(length int64) ([]byte, error) {
	buf := make([]byte, length)
	_, err := rand.Read(buf)
	return buf, err
}

// CryptoRandomHex generates a random lowercase hex string of the given length.
func CryptoRandomHex(length int) (string, error) {
	bytes, err := CryptoRandomBytes(int64((length + 1) / 2))
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes)[:length], nil
}

// CryptoRandomURLString generates an unpadded base64url string from
// byteLen random bytes. Used for opaque tokens and PAR request URIs.
func CryptoRandomURLString(byteLen int64) (string, error) {
	bytes, err := CryptoRandomBytes(byteLen)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// HashToken returns the PBKDF2 hash of token with salt, hex-encoded.
// Used for device codes, which are attacker-pollable and stored at rest.
func HashToken(token, salt string) string {
	hash := pbkdf2.Key([]byte(token), []byte(salt), 10000, 50, sha256.New)
	return hex.EncodeToString(hash)
}

// SHA256Hex returns the SHA-256 hash of s as a lowercase hex string.
// Sufficient on its own for high-entropy values such as authorization
// codes; low-entropy secrets need HashToken instead.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
