package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/grimoire/internal/game"
	"example.com/grimoire/internal/roomsync"
)

// RoomStore keeps one JSONB document per room. updated_at is the version
// marker used for compare-and-swap.
type RoomStore struct {
	db *pgxpool.Pool
}

func NewRoomStore(db *pgxpool.Pool) *RoomStore {
	return &RoomStore{db: db}
}

func (s *RoomStore) Create(ctx context.Context, room roomsync.Room) error {
	data, err := json.Marshal(room.State)
	if err != nil {
		return fmt.Errorf("encode room state: %w", err)
	}
	tag, err := s.db.Exec(ctx, `
		INSERT INTO rooms (code, storyteller_id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO NOTHING
	`, room.Code, room.StorytellerID, data, room.CreatedAt, room.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return roomsync.ErrRoomExists
	}
	return nil
}

func (s *RoomStore) Get(ctx context.Context, code string) (roomsync.Room, error) {
	var (
		r    = roomsync.Room{Code: code}
		data []byte
	)
	err := s.db.QueryRow(ctx, `
		SELECT storyteller_id, data, created_at, updated_at
		FROM rooms WHERE code = $1
	`, code).Scan(&r.StorytellerID, &data, &r.CreatedAt, &r.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return roomsync.Room{}, roomsync.ErrRoomNotFound
	}
	if err != nil {
		return roomsync.Room{}, err
	}

	r.State = new(game.GameState)
	if err := json.Unmarshal(data, r.State); err != nil {
		return roomsync.Room{}, fmt.Errorf("decode room %s: %w", code, err)
	}
	r.Version = r.Version.UTC()
	return r, nil
}

func (s *RoomStore) CompareAndSwap(ctx context.Context, code string, expected time.Time, state *game.GameState, next time.Time) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode room state: %w", err)
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE rooms SET data = $3, updated_at = $4
		WHERE code = $1 AND updated_at = $2
	`, code, expected, data, next)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rooms WHERE code = $1)`, code).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return roomsync.ErrRoomNotFound
	}
	return roomsync.ErrVersionConflict
}

// MemberStore records which users joined which rooms.
type MemberStore struct {
	db *pgxpool.Pool
}

func NewMemberStore(db *pgxpool.Pool) *MemberStore {
	return &MemberStore{db: db}
}

func (s *MemberStore) Add(ctx context.Context, roomCode, userID string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO room_members (room_code, user_id)
		VALUES ($1, $2)
		ON CONFLICT (room_code, user_id) DO NOTHING
	`, roomCode, userID)
	return err
}

func (s *MemberStore) IsMember(ctx context.Context, roomCode, userID string) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM room_members WHERE room_code = $1 AND user_id = $2)
	`, roomCode, userID).Scan(&ok)
	return ok, err
}
