package ws

import (
	"context"
	"encoding/json"

	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Absterrg0/Excalidraw/internal/app"
)

// BusMessage is one accepted room message relayed between instances.
type BusMessage struct {
	Origin string `json:"origin"`
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
	Body   string `json:"body"`
}

// Bus mirrors accepted messages across instances over redis pub/sub.
// Each instance tags what it publishes with its own origin ID and drops
// its own traffic on the subscribe side, since local members already
// got the local fan-out.
type Bus struct {
	rdb    *redis.Client
	log    *slog.Logger
	origin string
}

// NewBus connects to redis and verifies connectivity
func NewBus(ctx context.Context, cfg app.Config, log *slog.Logger) (*Bus, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Bus{rdb: rdb, log: log, origin: uuid.NewString()}, nil
}

// Publish sends a message to the redis channel for a room
func (b *Bus) Publish(ctx context.Context, roomID, userID, body string) error {
	raw, _ := json.Marshal(BusMessage{Origin: b.origin, RoomID: roomID, UserID: userID, Body: body})
	return b.rdb.Publish(ctx, channel(roomID), raw).Err()
}

// Subscribe listens to all room channels and invokes fn for every
// message published by another instance
func (b *Bus) Subscribe(ctx context.Context, fn func(BusMessage)) {
	pubsub := b.rdb.PSubscribe(ctx, channel("*"))
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			_ = pubsub.Close()
			return
		case msg := <-ch:
			var bm BusMessage
			if err := json.Unmarshal([]byte(msg.Payload), &bm); err != nil {
				b.log.Debug("bus.decode", "err", err)
				continue
			}
			if bm.RoomID == "" || bm.Origin == b.origin {
				continue
			}
			fn(bm)
		}
	}
}

// Close shuts down the redis connection
func (b *Bus) Close() { _ = b.rdb.Close() }

// channel namespacing for room pub/sub
func channel(roomID string) string { return "room:" + roomID }
