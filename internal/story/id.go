package story

import "github.com/google/uuid"

// newID creates a prefixed random ID, e.g. "ai-story-1b4e28ba-...".
func newID(prefix string) string {
	return prefix + uuid.NewString()
}
