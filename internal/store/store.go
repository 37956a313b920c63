// Package store persists the session credentials between CLI invocations.
package store

import (
	"context"
	"errors"

	"github.com/cloudvault/cloudvault-cli/internal/models"
)

// ErrIncomplete is returned by Load when a token is stored without a usable user.
var ErrIncomplete = errors.New("stored session is incomplete")

// Credentials is everything a session needs to resume.
type Credentials struct {
	Token        string
	RefreshToken string
	User         *models.User
}

// Store keeps the token and the user together: Save and Clear are atomic,
// so a reader never sees one without the other.
type Store interface {
	// Load returns (nil, nil) when nothing is stored.
	Load(ctx context.Context) (*Credentials, error)
	Save(ctx context.Context, creds Credentials) error
	Clear(ctx context.Context) error
}
