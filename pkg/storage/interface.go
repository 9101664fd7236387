// Package storage persists portal session state (the access blob and the
// cookie jar contents) across process restarts.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when no saved state exists for an account.
var ErrNotFound = errors.New("storage: not found")

// Access is the reusable session state captured after a successful login.
type Access struct {
	// Token is the aura CSRF token.
	Token string `json:"token"`

	// Identities holds the logged-in account identifiers, e.g. the
	// account id and display name reported by the portal.
	Identities map[string]string `json:"identities"`

	// Context is the aura framework context JSON scraped at login.
	Context json.RawMessage `json:"context"`

	SavedAt time.Time `json:"savedAt"`
}

// Cookie is a persisted cookie name/value pair scoped to the portal origin.
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Store defines the interface for persisting session state per account.
type Store interface {
	LoadAccess(ctx context.Context, account string) (Access, error)
	SaveAccess(ctx context.Context, account string, access Access) error

	LoadCookies(ctx context.Context, account string) ([]Cookie, error)
	SaveCookies(ctx context.Context, account string, cookies []Cookie) error

	Close() error
}
