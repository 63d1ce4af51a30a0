package core

import (
	"github.com/google/uuid"
)

// GenerateID returns a new random identifier for debates and turns.
func GenerateID() string {
	return uuid.NewString()
}

// ShortID returns the first eight characters of an ID for display.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
