package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no identity matches the lookup.
	ErrNotFound = errors.New("identity not found")
	// ErrEmailTaken is returned when a unique email constraint is violated.
	ErrEmailTaken = errors.New("email already registered")
	// ErrNoPassword is returned when a password operation targets an
	// account created through social auth, which has no password hash.
	ErrNoPassword = errors.New("account has no password")
	// ErrStoreUnavailable wraps infrastructure failures of the backing store.
	ErrStoreUnavailable = errors.New("identity store unavailable")
)

// CreateInput is the input for Store.Create.
type CreateInput struct {
	Name         string
	Email        string
	PasswordHash string
	Avatar       Avatar
	Role         Role
	Verified     bool
}

// Store is the credential-store boundary. Plain lookups return users with
// an empty PasswordHash; the WithHash variants are reserved for the login
// and password-change paths, which must compare against the stored hash.
type Store interface {
	Create(ctx context.Context, in CreateInput) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByIDWithHash(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailWithHash(ctx context.Context, email string) (*User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, name, email string) (*User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, newHash string) (*User, error)
	UpdateAvatar(ctx context.Context, id uuid.UUID, avatar Avatar) (*User, error)
	MarkVerified(ctx context.Context, id uuid.UUID) (*User, error)
	AddCourse(ctx context.Context, id uuid.UUID, courseID uuid.UUID) (*User, error)
	List(ctx context.Context) ([]*User, error)
}
