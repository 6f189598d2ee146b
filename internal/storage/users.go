package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/neexbeast/geoplaces/internal/auth"
)

const userColumns = `id, username, password_hash, role, created_at`

// UserRepository is the user directory backed by the users table.
type UserRepository struct {
	q Querier
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(q Querier) *UserRepository {
	return &UserRepository{q: q}
}

// FindByUsername returns nil, nil when no user has that username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (u *auth.User, err error) {
	defer observe("user_by_username", time.Now(), &err)

	u, err = scanUser(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		return nil, fmt.Errorf("querying user %s: %w", username, err)
	}
	return u, nil
}

// FindByID returns nil, nil when no user has that id.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (u *auth.User, err error) {
	defer observe("user_by_id", time.Now(), &err)

	u, err = scanUser(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("querying user %d: %w", id, err)
	}
	return u, nil
}

// Create inserts a user. A taken username is a Conflict.
func (r *UserRepository) Create(ctx context.Context, username, passwordHash, role string) (u *auth.User, err error) {
	defer observe("user_create", time.Now(), &err)

	u = &auth.User{}
	err = r.q.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, role)
		VALUES ($1, $2, $3)
		RETURNING `+userColumns, username, passwordHash, role,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting user %s: %w", username, translate(err, "user not found", "username already registered"))
	}
	return u, nil
}

func scanUser(row pgx.Row) (*auth.User, error) {
	var u auth.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
