package store

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// InsertChats writes all records in one transaction; either every row
// commits or none do.
func (p *Postgres) InsertChats(ctx context.Context, recs []ChatRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	b := &pgx.Batch{}
	for _, r := range recs {
		b.Queue(`
			INSERT INTO chats (room_id, user_id, message)
			VALUES ($1, $2, $3)
		`, r.RoomID, r.UserID, r.Message)
	}
	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	p.log.Info("chats.flushed", "count", len(recs))
	return nil
}

// ListChats returns the most recent messages for a room, oldest first
func (p *Postgres) ListChats(ctx context.Context, roomID string, limit int) ([]Chat, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, room_id, user_id, message, created_at
		FROM (
			SELECT id, room_id, user_id, message, created_at
			FROM chats
			WHERE room_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC
	`, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.RoomID, &c.UserID, &c.Message, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
