package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Theme is the per-user display preference.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme converts a string to a Theme, defaulting to light.
func ParseTheme(s string) Theme {
	switch s {
	case "dark":
		return ThemeDark
	default:
		return ThemeLight
	}
}

type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	Theme        Theme
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the cacheable projection of a User. It carries everything the
// presentation layer needs and nothing secret, so it is safe to serialize
// into shared caches.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Theme     Theme     `json:"theme"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile returns the cacheable projection of the user.
func (u *User) Profile() *Profile {
	return &Profile{
		ID:        u.ID,
		Username:  u.Username,
		Theme:     u.Theme,
		CreatedAt: u.CreatedAt,
	}
}

type UserRepository interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, username, passwordHash string) (*User, error)
	UpdateTheme(ctx context.Context, userID uuid.UUID, theme Theme) error
}
