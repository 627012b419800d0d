// Package uuid provides ID generation helpers for storage keys.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates UUID strings for asset keys.
type Generator struct{}

// NewGenerator creates a new Generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// NewID returns a UUID7 string. UUID7 keeps keys roughly time-ordered,
// which keeps object listings for a date partition contiguous.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// NewV4ID returns a UUIDv4 string (mainly for compatibility purposes).
func (Generator) NewV4ID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid4: %w", err)
	}
	return id.String(), nil
}
