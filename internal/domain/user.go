// Package domain contains entities without logic, just meta-data.
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const (
	MaxEmailLen    = 254
	MaxUsernameLen = 36
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
	ErrEmailEmpty      = errors.New("email empty")
	ErrEmailTooLong    = errors.New("email too long")
	ErrEmailTaken      = errors.New("email already registered")
)

type UserID string

type User struct {
	ID       UserID `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(email, username string) (*User, error) {
	if len(email) == 0 {
		return nil, ErrEmailEmpty
	}
	if len(email) > MaxEmailLen {
		return nil, ErrEmailTooLong
	}
	if len(username) == 0 {
		return nil, ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return nil, ErrUsernameTooLong
	}
	return &User{ID: UserID(uuid.NewString()), Email: email, Username: username}, nil
}
