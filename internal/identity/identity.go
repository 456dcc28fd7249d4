// Package identity holds the durable user model and the credential store
// boundary. The store owns password hashes; everything that leaves this
// package toward the cache or the API goes through Snapshot, which has no
// credential fields by construction.
package identity

import (
	"time"

	"github.com/google/uuid"
)

// Role is the authorization role of an identity.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Avatar is a reference to an uploaded avatar object.
type Avatar struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
}

// User is the durable identity record. PasswordHash is only populated by
// the WithHash store lookups and is never serialized.
type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	Avatar       Avatar
	Role         Role
	IsVerified   bool
	Courses      []uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OwnsCourse reports whether the user owns the given course. Membership is
// checked over the normalized id type, not by structural comparison of
// embedded snapshots.
func (u *User) OwnsCourse(courseID uuid.UUID) bool {
	for _, id := range u.Courses {
		if id == courseID {
			return true
		}
	}
	return false
}

// Snapshot is the public view of an identity: what the session cache stores
// and what API responses return. It deliberately has no field that could
// carry credential material.
type Snapshot struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Avatar     Avatar    `json:"avatar"`
	Role       Role      `json:"role"`
	IsVerified bool      `json:"isVerified"`
	Courses    []string  `json:"courses"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Snapshot produces the public view of u.
func (u *User) Snapshot() Snapshot {
	courses := make([]string, 0, len(u.Courses))
	for _, id := range u.Courses {
		courses = append(courses, id.String())
	}
	return Snapshot{
		ID:         u.ID.String(),
		Name:       u.Name,
		Email:      u.Email,
		Avatar:     u.Avatar,
		Role:       u.Role,
		IsVerified: u.IsVerified,
		Courses:    courses,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}
