// Package sha256 names failure snapshots by content digest.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/seapigy/procuro-site-sub000/internal/pricing"
)

// Hasher implements pricing.Hasher using SHA-256.
type Hasher struct{}

var _ pricing.Hasher = (*Hasher)(nil)

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the lowercase hex digest of data.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
