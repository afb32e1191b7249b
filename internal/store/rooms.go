package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrSlugTaken = errors.New("slug already exists")

// CreateRoom inserts a room owned by hostID, keyed by a unique slug
func (p *Postgres) CreateRoom(ctx context.Context, slug, hostID string) (Room, error) {
	row := p.pool.QueryRow(ctx, `
		INSERT INTO rooms (slug, host_id)
		VALUES ($1, $2)
		RETURNING id, slug, host_id, created_at
	`, slug, hostID)

	var r Room
	if err := row.Scan(&r.ID, &r.Slug, &r.HostID, &r.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Room{}, ErrSlugTaken
		}
		return Room{}, err
	}
	return r, nil
}

// GetRoomBySlug fetches a room by its slug
func (p *Postgres) GetRoomBySlug(ctx context.Context, slug string) (Room, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, slug, host_id, created_at
		FROM rooms
		WHERE slug = $1
	`, slug)

	var r Room
	if err := row.Scan(&r.ID, &r.Slug, &r.HostID, &r.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Room{}, ErrNotFound
		}
		return Room{}, err
	}
	return r, nil
}
