// Package store persists generated landing-page documents under short share
// ids with a bounded lifetime. Two backends are provided: the hosted Redis
// REST service used in production and a local SQLite file for offline use.
package store

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"pivotlp/internal/core"
)

var (
	// ErrNotFound is returned when no record exists under an id, or when the
	// record's lifetime has elapsed.
	ErrNotFound = errors.New("page not found")

	// ErrCorruptRecord is returned when a record exists but its payload can
	// no longer be decoded. Distinct from ErrNotFound so operators can tell
	// data loss from natural expiry.
	ErrCorruptRecord = errors.New("stored page record is corrupt")
)

const (
	// keyPrefix namespaces page records in shared keyspaces.
	keyPrefix = "lp:"

	// DefaultTTL is the record lifetime when none is configured.
	DefaultTTL = 30 * 24 * time.Hour

	idLength   = 10
	idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

// Record is the persisted envelope around a landing-page document.
type Record struct {
	Page      core.LandingPage `json:"page"`
	CreatedAt time.Time        `json:"created_at"`
}

// Store persists and retrieves landing-page records.
type Store interface {
	// Save persists the page under a fresh short id and returns that id.
	Save(ctx context.Context, page core.LandingPage) (string, error)

	// Load returns the record stored under id, or ErrNotFound when the id
	// is unknown or expired.
	Load(ctx context.Context, id string) (*Record, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// idByteLimit is the largest multiple of the alphabet size that fits in a
// byte; values at or above it are redrawn to keep the ids uniform.
const idByteLimit = 256 - 256%len(idAlphabet)

// newPageID generates an unguessable URL-safe share id, uniform over the
// base62 alphabet.
func newPageID() (string, error) {
	id := make([]byte, 0, idLength)
	buf := make([]byte, 2*idLength)
	for len(id) < idLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate page id: %w", err)
		}
		for _, b := range buf {
			if int(b) >= idByteLimit {
				continue
			}
			id = append(id, idAlphabet[int(b)%len(idAlphabet)])
			if len(id) == idLength {
				break
			}
		}
	}
	return string(id), nil
}
