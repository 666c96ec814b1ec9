package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"example.com/grimoire/internal/game"
	"example.com/grimoire/internal/roomsync"
)

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisRoomStore keeps each room as one JSON value. Compare-and-swap uses
// WATCH on the room key, so a concurrent writer aborts the transaction.
type RedisRoomStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisRoomStore(rdb *redis.Client, ttl time.Duration) *RedisRoomStore {
	return &RedisRoomStore{rdb: rdb, ttl: ttl}
}

func (s *RedisRoomStore) key(code string) string {
	return fmt.Sprintf("room:%s", code)
}

func (s *RedisRoomStore) Create(ctx context.Context, room roomsync.Room) error {
	b, err := json.Marshal(room)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, s.key(room.Code), b, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return roomsync.ErrRoomExists
	}
	return nil
}

func (s *RedisRoomStore) Get(ctx context.Context, code string) (roomsync.Room, error) {
	return s.load(ctx, s.rdb, code)
}

func (s *RedisRoomStore) CompareAndSwap(ctx context.Context, code string, expected time.Time, state *game.GameState, next time.Time) error {
	key := s.key(code)
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		room, err := s.load(ctx, tx, code)
		if err != nil {
			return err
		}
		if !room.Version.Equal(expected) {
			return roomsync.ErrVersionConflict
		}
		room.State = state
		room.Version = next
		b, err := json.Marshal(room)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, s.ttl)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return roomsync.ErrVersionConflict
	}
	return err
}

func (s *RedisRoomStore) load(ctx context.Context, c getter, code string) (roomsync.Room, error) {
	val, err := c.Get(ctx, s.key(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return roomsync.Room{}, roomsync.ErrRoomNotFound
	}
	if err != nil {
		return roomsync.Room{}, err
	}

	var room roomsync.Room
	if err := json.Unmarshal(val, &room); err != nil {
		return roomsync.Room{}, fmt.Errorf("decode room %s: %w", code, err)
	}
	return room, nil
}
