package roomsync

import (
	"context"
	"sync"
	"time"

	"example.com/grimoire/internal/game"
)

// MemoryRoomStore keeps rooms in process memory. It stores deep copies, so
// callers never share state with the store.
type MemoryRoomStore struct {
	mu    sync.Mutex
	rooms map[string]Room
}

func NewMemoryRoomStore() *MemoryRoomStore {
	return &MemoryRoomStore{rooms: make(map[string]Room)}
}

func (s *MemoryRoomStore) Create(ctx context.Context, room Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.Code]; ok {
		return ErrRoomExists
	}
	room.State = room.State.Clone()
	s.rooms[room.Code] = room
	return nil
}

func (s *MemoryRoomStore) Get(ctx context.Context, code string) (Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[code]
	if !ok {
		return Room{}, ErrRoomNotFound
	}
	r.State = r.State.Clone()
	return r, nil
}

func (s *MemoryRoomStore) CompareAndSwap(ctx context.Context, code string, expected time.Time, state *game.GameState, next time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[code]
	if !ok {
		return ErrRoomNotFound
	}
	if !r.Version.Equal(expected) {
		return ErrVersionConflict
	}
	r.State = state.Clone()
	r.Version = next
	s.rooms[code] = r
	return nil
}

type auditKey struct {
	room, user, op string
}

// MemoryAuditStore is an in-memory operation ledger.
type MemoryAuditStore struct {
	mu   sync.Mutex
	rows map[auditKey]AuditRecord
}

func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{rows: make(map[auditKey]AuditRecord)}
}

func (s *MemoryAuditStore) Lookup(ctx context.Context, roomCode, userID string, operationIDs []string) (map[string]Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Status)
	for _, id := range operationIDs {
		if r, ok := s.rows[auditKey{roomCode, userID, id}]; ok {
			out[id] = r.Status
		}
	}
	return out, nil
}

func (s *MemoryAuditStore) Upsert(ctx context.Context, records []AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		k := auditKey{r.RoomCode, r.UserID, r.OperationID}
		if prev, ok := s.rows[k]; ok && !replaces(prev.Status, r.Status) {
			continue
		}
		s.rows[k] = r
	}
	return nil
}

// Records returns all rows of a room, for tests and debugging.
func (s *MemoryAuditStore) Records(roomCode string) []AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []AuditRecord
	for k, r := range s.rows {
		if k.room == roomCode {
			out = append(out, r)
		}
	}
	return out
}

// MemoryMembership is an in-memory membership registry.
type MemoryMembership struct {
	mu      sync.Mutex
	members map[string]map[string]bool
}

func NewMemoryMembership() *MemoryMembership {
	return &MemoryMembership{members: make(map[string]map[string]bool)}
}

func (m *MemoryMembership) Add(ctx context.Context, roomCode, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.members[roomCode] == nil {
		m.members[roomCode] = make(map[string]bool)
	}
	m.members[roomCode][userID] = true
	return nil
}

func (m *MemoryMembership) IsMember(ctx context.Context, roomCode, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.members[roomCode][userID], nil
}
