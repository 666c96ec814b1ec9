package store

import (
	"context"
	"sync"
	"time"
)

// MemoryUserStore backs ROOM_STORE=memory and handler tests.
type MemoryUserStore struct {
	mu      sync.Mutex
	byID    map[string]User
	byEmail map[string]string
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{byID: make(map[string]User), byEmail: make(map[string]string)}
}

func (s *MemoryUserStore) Create(ctx context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[u.Email]; ok {
		return ErrEmailTaken
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.byID[u.ID] = u
	s.byEmail[u.Email] = u.ID
	return nil
}

func (s *MemoryUserStore) GetByEmail(ctx context.Context, email string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return s.byID[id], nil
}

func (s *MemoryUserStore) GetByID(ctx context.Context, id string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

// MemoryStatsStore mirrors StatsStore in process memory.
type MemoryStatsStore struct {
	mu    sync.Mutex
	stats map[string]PlayerStats
}

func NewMemoryStatsStore() *MemoryStatsStore {
	return &MemoryStatsStore{stats: make(map[string]PlayerStats)}
}

func (s *MemoryStatsStore) InitForUser(ctx context.Context, userID string) error {
	return s.update(userID, func(*PlayerStats) {})
}

func (s *MemoryStatsStore) Get(ctx context.Context, userID string) (PlayerStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stats[userID]
	if !ok {
		return PlayerStats{UserID: userID}, nil
	}
	return st, nil
}

func (s *MemoryStatsStore) RoomCreated(ctx context.Context, userID string) error {
	return s.update(userID, func(st *PlayerStats) { st.RoomsCreated++ })
}

func (s *MemoryStatsStore) RoomJoined(ctx context.Context, userID string) error {
	return s.update(userID, func(st *PlayerStats) { st.RoomsJoined++ })
}

func (s *MemoryStatsStore) OperationsSynced(ctx context.Context, userID string, n int) error {
	return s.update(userID, func(st *PlayerStats) { st.OperationsSynced += int64(n) })
}

func (s *MemoryStatsStore) update(userID string, fn func(*PlayerStats)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stats[userID]
	if !ok {
		st = PlayerStats{UserID: userID}
	}
	fn(&st)
	st.UpdatedAt = time.Now().UTC()
	s.stats[userID] = st
	return nil
}
