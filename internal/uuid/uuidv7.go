// Package uuid generates row ids and checks the ids that arrive from
// external vocabularies.
package uuid

import (
	googleuuid "github.com/google/uuid"
)

// New returns a time-ordered UUIDv7 string. If the clock-based generator
// fails it falls back to a random v4 id, which is still a valid key.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		return googleuuid.NewString()
	}
	return id.String()
}

// IsV4 reports whether s is a well-formed random (version 4) UUID. GCMD
// publishes every concept under a v4 id; anything else is a malformed row.
func IsV4(s string) bool {
	id, err := googleuuid.Parse(s)
	return err == nil && id.Version() == 4 && id.Variant() == googleuuid.RFC4122
}
