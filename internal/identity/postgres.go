package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over a pgx pool. The pool is owned by the
// caller; the store never closes it.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("identity: nil pool")
	}
	return &PostgresStore{pool: pool}, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS users (
    id               UUID PRIMARY KEY,
    name             TEXT NOT NULL,
    email            TEXT NOT NULL UNIQUE,
    password_hash    TEXT NOT NULL DEFAULT '',
    avatar_public_id TEXT NOT NULL DEFAULT '',
    avatar_url       TEXT NOT NULL DEFAULT '',
    role             TEXT NOT NULL DEFAULT 'user',
    is_verified      BOOLEAN NOT NULL DEFAULT FALSE,
    courses          UUID[] NOT NULL DEFAULT '{}',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// EnsureSchema creates the users table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

const userColumns = `id::text, name, email, password_hash, avatar_public_id, avatar_url,
    role, is_verified, courses::text[], created_at, updated_at`

// Ping checks store reachability.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Create inserts a new identity. A duplicate email maps to ErrEmailTaken.
func (s *PostgresStore) Create(ctx context.Context, in CreateInput) (*User, error) {
	role := in.Role
	if role == "" {
		role = RoleUser
	}

	row := s.pool.QueryRow(ctx, `
        INSERT INTO users (id, name, email, password_hash, avatar_public_id, avatar_url, role, is_verified)
        VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8)
        RETURNING `+userColumns,
		uuid.New().String(), in.Name, strings.ToLower(in.Email), in.PasswordHash,
		in.Avatar.PublicID, in.Avatar.URL, string(role), in.Verified,
	)

	u, err := scanUser(row, false)
	if err != nil {
		return nil, mapPgError(err)
	}
	return u, nil
}

// GetByID fetches an identity without its password hash.
func (s *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1::uuid`, false, id.String())
}

// GetByIDWithHash fetches an identity including its password hash. Reserved
// for the password-change path.
func (s *PostgresStore) GetByIDWithHash(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1::uuid`, true, id.String())
}

// GetByEmail fetches an identity by email without its password hash.
func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, false, strings.ToLower(email))
}

// GetByEmailWithHash fetches an identity by email including its password
// hash. Reserved for the login path.
func (s *PostgresStore) GetByEmailWithHash(ctx context.Context, email string) (*User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, true, strings.ToLower(email))
}

// UpdateProfile updates name and email. A duplicate email maps to
// ErrEmailTaken.
func (s *PostgresStore) UpdateProfile(ctx context.Context, id uuid.UUID, name, email string) (*User, error) {
	row := s.pool.QueryRow(ctx, `
        UPDATE users SET name = $2, email = $3, updated_at = now()
        WHERE id = $1::uuid
        RETURNING `+userColumns,
		id.String(), name, strings.ToLower(email),
	)
	u, err := scanUser(row, false)
	if err != nil {
		return nil, mapPgError(err)
	}
	return u, nil
}

// UpdatePassword replaces the stored password hash.
func (s *PostgresStore) UpdatePassword(ctx context.Context, id uuid.UUID, newHash string) (*User, error) {
	row := s.pool.QueryRow(ctx, `
        UPDATE users SET password_hash = $2, updated_at = now()
        WHERE id = $1::uuid
        RETURNING `+userColumns,
		id.String(), newHash,
	)
	u, err := scanUser(row, false)
	if err != nil {
		return nil, mapPgError(err)
	}
	return u, nil
}

// UpdateAvatar replaces the avatar reference.
func (s *PostgresStore) UpdateAvatar(ctx context.Context, id uuid.UUID, avatar Avatar) (*User, error) {
	row := s.pool.QueryRow(ctx, `
        UPDATE users SET avatar_public_id = $2, avatar_url = $3, updated_at = now()
        WHERE id = $1::uuid
        RETURNING `+userColumns,
		id.String(), avatar.PublicID, avatar.URL,
	)
	u, err := scanUser(row, false)
	if err != nil {
		return nil, mapPgError(err)
	}
	return u, nil
}

// MarkVerified flips the verification flag.
func (s *PostgresStore) MarkVerified(ctx context.Context, id uuid.UUID) (*User, error) {
	row := s.pool.QueryRow(ctx, `
        UPDATE users SET is_verified = TRUE, updated_at = now()
        WHERE id = $1::uuid
        RETURNING `+userColumns,
		id.String(),
	)
	u, err := scanUser(row, false)
	if err != nil {
		return nil, mapPgError(err)
	}
	return u, nil
}

// AddCourse appends a course reference unless already present.
func (s *PostgresStore) AddCourse(ctx context.Context, id uuid.UUID, courseID uuid.UUID) (*User, error) {
	row := s.pool.QueryRow(ctx, `
        UPDATE users
        SET courses = array_append(courses, $2::uuid), updated_at = now()
        WHERE id = $1::uuid AND NOT ($2::uuid = ANY (courses))
        RETURNING `+userColumns,
		id.String(), courseID.String(),
	)
	u, err := scanUser(row, false)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the user is absent or the course is already owned;
			// re-read to distinguish.
			return s.GetByID(ctx, id)
		}
		return nil, mapPgError(err)
	}
	return u, nil
}

// List returns all identities, newest first, without password hashes.
func (s *PostgresStore) List(ctx context.Context) ([]*User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows, false)
		if err != nil {
			return nil, mapPgError(err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}
	return users, nil
}

func (s *PostgresStore) getOne(ctx context.Context, query string, withHash bool, arg any) (*User, error) {
	row := s.pool.QueryRow(ctx, query, arg)
	u, err := scanUser(row, withHash)
	if err != nil {
		return nil, mapPgError(err)
	}
	return u, nil
}

func scanUser(row pgx.Row, withHash bool) (*User, error) {
	var (
		u       User
		idStr   string
		role    string
		courses []string
	)
	err := row.Scan(
		&idStr, &u.Name, &u.Email, &u.PasswordHash,
		&u.Avatar.PublicID, &u.Avatar.URL,
		&role, &u.IsVerified, &courses, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed user id: %v", ErrStoreUnavailable, err)
	}
	u.ID = id

	u.Courses = make([]uuid.UUID, 0, len(courses))
	for _, c := range courses {
		cid, err := uuid.Parse(c)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed course id: %v", ErrStoreUnavailable, err)
		}
		u.Courses = append(u.Courses, cid)
	}

	u.Role = Role(role)
	if !withHash {
		u.PasswordHash = ""
	}
	return &u, nil
}

func mapPgError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrEmailTaken
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
