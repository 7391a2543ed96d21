// Package tokenstore is the single source of truth for the two bearer
// tokens, their expiry, and the last-known user blob, persisted across
// process restarts through a pluggable storage backend.
package tokenstore

// Storage keys. Other code may rely on these names; they mirror what the
// backend's other clients persist.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyTokenExpiry  = "token_expiry" // absolute epoch millis, stored as string
	KeyUser         = "user"         // JSON-serialized user object

	// KeyLegacyToken is an obsolete bare key older releases wrote. It is
	// deleted during rehydration.
	KeyLegacyToken = "token"
)

// Backend is the durable storage port. Implementations must be safe for
// concurrent use. Get reports absence with ok=false rather than an error so
// that a missing or unreadable store degrades to "no session".
type Backend interface {
	Get(key string) (value string, ok bool)
	Set(key, value string) error
	Delete(key string) error
}
