// Package otp owns the one-time code gating final portal access after the
// password check: code generation, delivery, and the per-login-attempt
// challenge registry. Codes live only in memory and are discarded on
// verification, cancel, or expiry.
package otp

import (
	"crypto/rand"
	"math/big"
	"strconv"
)

// GenerateCode returns a uniformly distributed 6-digit numeric code drawn
// from 100000-999999 inclusive. Codes always render as exactly six digits
// and are never zero-padded from a smaller number.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}
