// Package uuid generates the time-ordered ids that tag aggregations.
package uuid

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/seapigy/procuro-site-sub000/internal/pricing"
)

// Generator creates UUIDv7 strings, so ids sort by creation time.
type Generator struct{}

var _ pricing.IDGenerator = Generator{}

// New creates a Generator.
func New() Generator {
	return Generator{}
}

// NewID returns a UUIDv7 string.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}
