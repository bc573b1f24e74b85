package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/notedhq/noted/pkg/model"
)

const userColumns = "id, username, email, bio, avatar, created_at, updated_at"

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var u model.User
	var created, updated int64
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Bio, &u.Avatar, &created, &updated); err != nil {
		return model.User{}, err
	}
	u.CreatedAt = fromMillis(created)
	u.UpdatedAt = fromMillis(updated)
	return u, nil
}

// CreateUser registers a new user. Returns ErrDuplicate when the username or
// email is already taken.
func (s *Store) CreateUser(ctx context.Context, username, email, passwordHash, bio string) (model.User, error) {
	id := s.ids.Generate()
	now := toMillis(time.Now())

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, bio, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, username, email, passwordHash, bio, now, now)
	if isUniqueViolation(err) {
		return model.User{}, ErrDuplicate
	}
	if err != nil {
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}

	return model.User{
		ID:        id,
		Username:  username,
		Email:     email,
		Bio:       bio,
		CreatedAt: fromMillis(now),
		UpdatedAt: fromMillis(now),
	}, nil
}

// UserByUsername returns the user and its stored password hash for login.
func (s *Store) UserByUsername(ctx context.Context, username string) (model.User, string, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+`, password_hash FROM users WHERE username = ?`, username)

	var u model.User
	var created, updated int64
	var hash string
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Bio, &u.Avatar, &created, &updated, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, "", ErrNotFound
	}
	if err != nil {
		return model.User{}, "", fmt.Errorf("select user: %w", err)
	}
	u.CreatedAt = fromMillis(created)
	u.UpdatedAt = fromMillis(updated)
	return u, hash, nil
}

func (s *Store) UserByID(ctx context.Context, id int64) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}

// UpdateUserBio updates the caller's profile bio.
func (s *Store) UpdateUserBio(ctx context.Context, id int64, bio string) (model.User, error) {
	now := toMillis(time.Now())
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET bio = ?, updated_at = ? WHERE id = ?`, bio, now, id)
	if err != nil {
		return model.User{}, fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.User{}, ErrNotFound
	}
	return s.UserByID(ctx, id)
}
