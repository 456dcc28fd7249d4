package identity

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore connects to the database named by COURSEHUB_TEST_DATABASE_URL
// and skips the test when it is unset.
func newTestStore(t *testing.T) *PostgresStore {
	t.Helper()

	dsn := os.Getenv("COURSEHUB_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("COURSEHUB_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store, err := NewPostgresStore(pool)
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(ctx))
	return store
}

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%s@example.com", prefix, uuid.NewString()[:8])
}

func TestPostgresCreateAndLookups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	email := uniqueEmail("create")

	created, err := store.Create(ctx, CreateInput{
		Name:         "Test User",
		Email:        email,
		PasswordHash: "$2a$10$fakehashfakehashfakehash",
		Role:         RoleUser,
	})
	require.NoError(t, err)
	assert.Empty(t, created.PasswordHash)
	assert.False(t, created.IsVerified)
	assert.NotNil(t, created.Courses)

	byID, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, email, byID.Email)
	assert.Empty(t, byID.PasswordHash)

	withHash, err := store.GetByEmailWithHash(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, "$2a$10$fakehashfakehashfakehash", withHash.PasswordHash)
}

func TestPostgresDuplicateEmail(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	email := uniqueEmail("dup")

	_, err := store.Create(ctx, CreateInput{Name: "A", Email: email, Role: RoleUser})
	require.NoError(t, err)

	_, err = store.Create(ctx, CreateInput{Name: "B", Email: email, Role: RoleUser})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestPostgresNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetByEmail(ctx, uniqueEmail("ghost"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.MarkVerified(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresUpdates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	u, err := store.Create(ctx, CreateInput{Name: "Before", Email: uniqueEmail("upd"), Role: RoleUser})
	require.NoError(t, err)

	newEmail := uniqueEmail("after")
	updated, err := store.UpdateProfile(ctx, u.ID, "After", newEmail)
	require.NoError(t, err)
	assert.Equal(t, "After", updated.Name)
	assert.Equal(t, newEmail, updated.Email)

	verified, err := store.MarkVerified(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)

	withAvatar, err := store.UpdateAvatar(ctx, u.ID, Avatar{PublicID: "p1", URL: "https://cdn/p1"})
	require.NoError(t, err)
	assert.Equal(t, "p1", withAvatar.Avatar.PublicID)

	_, err = store.UpdatePassword(ctx, u.ID, "$2a$10$newhash")
	require.NoError(t, err)
	reread, err := store.GetByIDWithHash(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "$2a$10$newhash", reread.PasswordHash)
}

func TestPostgresAddCourseIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	u, err := store.Create(ctx, CreateInput{Name: "Learner", Email: uniqueEmail("course"), Role: RoleUser})
	require.NoError(t, err)

	courseID := uuid.New()
	first, err := store.AddCourse(ctx, u.ID, courseID)
	require.NoError(t, err)
	assert.True(t, first.OwnsCourse(courseID))

	second, err := store.AddCourse(ctx, u.ID, courseID)
	require.NoError(t, err)
	assert.Len(t, second.Courses, len(first.Courses))
}
