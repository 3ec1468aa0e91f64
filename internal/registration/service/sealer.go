package service

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// BcryptSealer hashes secrets with bcrypt before they are stored. Secrets are
// first reduced with SHA-256 so inputs past bcrypt's 72 byte limit still seal
// and their tail still counts.
type BcryptSealer struct {
	cost int
}

func NewBcryptSealer(cost int) *BcryptSealer {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptSealer{cost: cost}
}

func (b *BcryptSealer) Seal(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(prehash(secret), b.cost)
	if err != nil {
		return "", fmt.Errorf("seal secret: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether secret matches a value produced by Seal.
func (b *BcryptSealer) Verify(sealed, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(sealed), prehash(secret)) == nil
}

// prehash is base64 encoded so the bcrypt input never holds a NUL byte.
func prehash(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}
