package identity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleAdmin.Valid())
	assert.False(t, Role("superuser").Valid())
	assert.False(t, Role("").Valid())
}

func TestOwnsCourse(t *testing.T) {
	owned := uuid.New()
	other := uuid.New()

	u := &User{Courses: []uuid.UUID{owned}}
	assert.True(t, u.OwnsCourse(owned))
	assert.False(t, u.OwnsCourse(other))

	empty := &User{}
	assert.False(t, empty.OwnsCourse(owned))
}

func TestSnapshotCarriesNoCredentialMaterial(t *testing.T) {
	hash, err := HashPassword("hunter2-secret")
	require.NoError(t, err)

	u := &User{
		ID:           uuid.New(),
		Name:         "Test User",
		Email:        "test@example.com",
		PasswordHash: hash,
		Role:         RoleUser,
		IsVerified:   true,
		Courses:      []uuid.UUID{uuid.New()},
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	snap := u.Snapshot()
	assert.Equal(t, u.ID.String(), snap.ID)
	assert.Equal(t, u.Email, snap.Email)
	assert.Len(t, snap.Courses, 1)

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.NotContains(t, string(data), hash)
	assert.NotContains(t, string(data), "password")
}

func TestSnapshotCoursesNeverNil(t *testing.T) {
	u := &User{ID: uuid.New()}
	snap := u.Snapshot()
	assert.NotNil(t, snap.Courses)

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"courses":[]`)
}
