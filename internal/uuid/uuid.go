// Package uuid provides UUID v4 generation and validation utilities,
// plus the client-id scheme used for records created offline.
package uuid

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// LocalPrefix marks ids generated on this client before the remote
// service has assigned one. The replay engine swaps these for the
// remote id on first successful sync.
const LocalPrefix = "local-"

// UUID v4 format: xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx
// where y is one of [8, 9, a, b] (variant bits)
var uuidV4Regex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-4[0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

// New generates a new UUID v4.
func New() string {
	return uuid.New().String()
}

// NewLocal generates a client-local record id.
func NewLocal() string {
	return LocalPrefix + uuid.New().String()
}

// IsLocal reports whether an id was generated by NewLocal.
func IsLocal(id string) bool {
	return strings.HasPrefix(id, LocalPrefix)
}

// IsValid checks if a string is a valid UUID v4.
// Enforces strict format with dashes and correct variant bits.
func IsValid(s string) bool {
	return uuidV4Regex.MatchString(s)
}

// Validate returns an error if the string is neither a valid UUID v4
// nor a client-local id wrapping one.
func Validate(s string) error {
	candidate := strings.TrimPrefix(s, LocalPrefix)
	if !IsValid(candidate) {
		return fmt.Errorf("invalid record id: %q", s)
	}
	return nil
}
