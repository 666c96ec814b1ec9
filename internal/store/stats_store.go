package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PlayerStats are per-user activity counters shown on the profile.
type PlayerStats struct {
	UserID           string
	RoomsCreated     int
	RoomsJoined      int
	OperationsSynced int64
	UpdatedAt        time.Time
}

type StatsStore struct {
	db *pgxpool.Pool
}

func NewStatsStore(db *pgxpool.Pool) *StatsStore {
	return &StatsStore{db: db}
}

func (s *StatsStore) InitForUser(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO player_stats (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	return err
}

func (s *StatsStore) Get(ctx context.Context, userID string) (PlayerStats, error) {
	var st PlayerStats
	err := s.db.QueryRow(ctx, `
		SELECT user_id, rooms_created, rooms_joined, operations_synced, updated_at
		FROM player_stats
		WHERE user_id=$1
	`, userID).Scan(&st.UserID, &st.RoomsCreated, &st.RoomsJoined, &st.OperationsSynced, &st.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		// missing row means zero activity
		return PlayerStats{UserID: userID}, nil
	}
	if err != nil {
		return PlayerStats{}, err
	}
	return st, nil
}

func (s *StatsStore) RoomCreated(ctx context.Context, userID string) error {
	return s.bump(ctx, userID, 1, 0, 0)
}

func (s *StatsStore) RoomJoined(ctx context.Context, userID string) error {
	return s.bump(ctx, userID, 0, 1, 0)
}

func (s *StatsStore) OperationsSynced(ctx context.Context, userID string, n int) error {
	return s.bump(ctx, userID, 0, 0, int64(n))
}

func (s *StatsStore) bump(ctx context.Context, userID string, created, joined int, ops int64) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO player_stats (user_id, rooms_created, rooms_joined, operations_synced)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			rooms_created = player_stats.rooms_created + EXCLUDED.rooms_created,
			rooms_joined = player_stats.rooms_joined + EXCLUDED.rooms_joined,
			operations_synced = player_stats.operations_synced + EXCLUDED.operations_synced,
			updated_at = now()
	`, userID, created, joined, ops)
	return err
}
