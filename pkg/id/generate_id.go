package id

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewID32 returns exactly 32 hex characters (no separators/prefixes).
// Loan ids use this form.
func NewID32() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// NewUUID returns a canonical random UUID string; audit event ids use this
// form so they are distinguishable from loan ids at a glance.
func NewUUID() string {
	return uuid.NewString()
}
