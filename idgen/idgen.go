// Package idgen generates the opaque unique identifiers StoredKey
// entries need. IDs are never required to be human-readable,
// so a v4 UUID is the natural fit — unlike the teacher's Base36
// readable-ID generator, which exists for user-facing identifiers
// such as invoice numbers.
package idgen

import "github.com/google/uuid"

// NewID returns a fresh opaque identifier, suitable for StoredKey.ID
// or a vault instance ID.
func NewID() string {
	return uuid.NewString()
}

// IsValidID reports whether s looks like an identifier minted by
// NewID. Vault import paths use this to reject obviously-malformed
// ids from a tampered or hand-edited export blob.
func IsValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
