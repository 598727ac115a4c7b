package utils

import (
	"strings"

	"github.com/google/uuid"
)

// SessionKeyLength is the number of hex characters in an interaction key.
const SessionKeyLength = 8

// NewHexID returns a random UUIDv4 as 32 lowercase hex characters.
func NewHexID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewSessionKey returns a short random hex key. Collisions are tolerated by callers.
func NewSessionKey() string {
	return NewHexID()[:SessionKeyLength]
}
