package session

import (
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/practicehub/core"
)

// ErrNoCredentials is returned by a CredentialStore holding no session.
var ErrNoCredentials = errors.New("no persisted credentials")

// Status tracks how much the client trusts its token.
type Status uint8

const (
	StatusAnonymous Status = iota // no token
	StatusPending                 // token rehydrated from storage, not validated yet
	StatusVerified                // token accepted by login or the last CheckAuth
	StatusInvalid                 // token rejected; the session was wiped
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusVerified:
		return "verified"
	case StatusInvalid:
		return "invalid"
	default:
		return "anonymous"
	}
}

// UserProfile is replaced wholesale on login and CheckAuth, never patched.
type UserProfile struct {
	ID        core.ID `json:"id"`
	Role      Role    `json:"role,omitempty"`
	Username  string  `json:"username,omitempty"`
	Email     string  `json:"email,omitempty"`
	FirstName string  `json:"firstName,omitempty"`
	LastName  string  `json:"lastName,omitempty"`
}

// DisplayName is the name shown in headers and chat bubbles.
func (u UserProfile) DisplayName() string {
	if u.Role == RoleTeacher {
		if name := core.CleanString(u.FirstName + " " + u.LastName); name != "" {
			return name
		}
	}
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

// Session is a snapshot of the auth store.
type Session struct {
	Token     string
	User      *UserProfile
	Role      Role
	Status    Status
	ExpiresAt time.Time // `exp` claim of a JWT token, zero for opaque tokens
}

// IsAuthenticated is optimistic: a rehydrated token counts until proven invalid.
func (s Session) IsAuthenticated() bool {
	return s.Token != "" && (s.Status == StatusPending || s.Status == StatusVerified)
}

// Persisted is the part of the session that survives restarts.
type Persisted struct {
	Token string       `json:"token"`
	User  *UserProfile `json:"user"`
	Role  Role         `json:"role"`
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
		Role     string `json:"role,omitempty"`
	}

	LoginResponse struct {
		Token string      `json:"token"`
		User  UserProfile `json:"user"`
	}
)

// Result is what login and registration report to views. They never fail with an error.
type Result struct {
	Success bool
	Message string
}
