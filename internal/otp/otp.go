// Package otp generates numeric one-time passwords and the keyed digests
// stored in their place.
package otp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
)

var (
	ErrInvalidDigits = errors.New("invalid otp digits")
	ErrEmptySecret   = errors.New("otp secret must not be empty")
)

// Generate returns a uniformly random numeric code of the given length.
func Generate(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", ErrInvalidDigits
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// Valid reports whether code is exactly digits ASCII digits.
func Valid(code string, digits int) bool {
	if len(code) != digits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// Hash binds code to subject under secret. The hex digest is what gets
// persisted; the code itself never is.
func Hash(secret []byte, subject, code string) (string, error) {
	if len(secret) == 0 {
		return "", ErrEmptySecret
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(subject))
	mac.Write([]byte{':'})
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Equal compares two digests in constant time.
func Equal(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
