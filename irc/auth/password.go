// Package auth provides password hashing for account registration and
// SASL PLAIN verification, backed by golang.org/x/crypto/bcrypt.
package auth

import "golang.org/x/crypto/bcrypt"

// DefaultCost mirrors bcrypt's recommended default; callers needing a
// different cost (e.g. faster tests) pass it explicitly to HashWithCost.
const DefaultCost = bcrypt.DefaultCost

// Hash bcrypt-hashes plaintext at DefaultCost.
func Hash(plaintext string) (string, error) {
	return HashWithCost(plaintext, DefaultCost)
}

// HashWithCost bcrypt-hashes plaintext at the given cost factor.
func HashWithCost(plaintext string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether plaintext matches the stored bcrypt hash.
func Verify(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
