// Package random produces unguessable strings for secrets and request ids.
package random

import (
	crand "crypto/rand"
	"math/big"
)

const charset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

var charsetLen = big.NewInt(int64(len(charset)))

// String returns length characters drawn from crypto/rand.
func String(length int) (string, error) {
	b := make([]byte, length)
	for i := range b {
		num, err := crand.Int(crand.Reader, charsetLen)
		if err != nil {
			return "", err
		}
		b[i] = charset[num.Int64()]
	}
	return string(b), nil
}

// MustString is String for callers that cannot recover from a broken
// entropy source.
func MustString(length int) string {
	s, err := String(length)
	if err != nil {
		panic(err)
	}
	return s
}
