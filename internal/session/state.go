package session

import (
	"github.com/cloudvault/cloudvault-cli/internal/models"
)

// State is the session lifecycle.
type State int

const (
	StateUnknown State = iota
	StateValidating
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateValidating:
		return "validating"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "invalid"
	}
}

// Reasons attached to SessionChangedEvent.
const (
	ReasonBootstrap        = "bootstrap"
	ReasonLogin            = "login"
	ReasonSignup           = "signup"
	ReasonLogout           = "logout"
	ReasonValidationFailed = "validation_failed"
	ReasonAuthError        = "auth_error"
	ReasonNoCredentials    = "no_credentials"
)

// Snapshot is a read-only copy of the session.
type Snapshot struct {
	State      State
	User       *models.User
	Quota      *models.StorageQuota
	Generation uint64
}

// IsAuthenticated reports whether the snapshot holds a validated user.
func (s Snapshot) IsAuthenticated() bool {
	return s.State == StateAuthenticated && s.User != nil
}

// UserKey is the namespace the user's files live under.
func (s Snapshot) UserKey() string {
	return s.User.Key()
}

func copyUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Storage != nil {
		q := *u.Storage
		c.Storage = &q
	}
	return &c
}

func copyQuota(q *models.StorageQuota) *models.StorageQuota {
	if q == nil {
		return nil
	}
	c := *q
	return &c
}
