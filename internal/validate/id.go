package validate

import (
	"regexp"

	"github.com/google/uuid"
)

// Canonical textual UUID shape: 8-4-4-4-12 hex groups. uuid.Parse is not
// used for this check because it also accepts braced, urn-prefixed and
// unhyphenated forms, which are not valid identifiers here.
var idPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// NewID generates a fresh resource identifier. Identifiers are always
// assigned server-side; ids supplied by clients on create are ignored.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether s has the canonical UUID shape. Handlers must
// reject malformed path identifiers before any storage call.
func ValidID(s string) bool {
	return idPattern.MatchString(s)
}
