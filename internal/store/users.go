package store

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

var ErrNotFound = errors.New("not found")

// normUsername trims and lowercases the login name
func normUsername(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// CreateUser inserts a new user with a hashed password
func (p *Postgres) CreateUser(ctx context.Context, username, name, password string) (User, error) {
	username = normUsername(username)
	if username == "" || password == "" {
		return User{}, errors.New("missing username or password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	row := p.pool.QueryRow(ctx, `
		INSERT INTO users (username, name, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, username, name, created_at
	`, username, name, string(hash))

	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.Name, &u.CreatedAt); err != nil {
		return User{}, err
	}
	return u, nil
}

// GetUserByUsername returns the user + hashed password for login verification
func (p *Postgres) GetUserByUsername(ctx context.Context, username string) (User, string, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, username, name, password_hash, created_at
		FROM users
		WHERE username = $1
	`, normUsername(username))

	var u User
	var hash string
	if err := row.Scan(&u.ID, &u.Username, &u.Name, &hash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, "", ErrNotFound
		}
		return User{}, "", err
	}
	return u, hash, nil
}

// VerifyUser checks username + password match
func (p *Postgres) VerifyUser(ctx context.Context, username, password string) (User, error) {
	u, hash, err := p.GetUserByUsername(ctx, username)
	if err != nil {
		return User{}, errors.New("invalid credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, errors.New("invalid credentials")
	}
	return u, nil
}
