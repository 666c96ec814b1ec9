package roomsync

import (
	"context"
	"encoding/json"
	"time"

	"example.com/grimoire/internal/game"
)

// Room is the persisted room record. Version is the last-modified timestamp
// and doubles as the optimistic concurrency marker.
type Room struct {
	Code          string          `json:"code"`
	StorytellerID string          `json:"storytellerId"`
	State         *game.GameState `json:"state"`
	Version       time.Time       `json:"version"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// RoomStore persists room records.
type RoomStore interface {
	Create(ctx context.Context, room Room) error
	// Get returns ErrRoomNotFound if no room has this code.
	Get(ctx context.Context, code string) (Room, error)
	// CompareAndSwap writes state with version next only if the stored
	// version still equals expected, and returns ErrVersionConflict otherwise.
	CompareAndSwap(ctx context.Context, code string, expected time.Time, state *game.GameState, next time.Time) error
}

type Status string

const (
	StatusSuccess      Status = "success"
	StatusDeduplicated Status = "deduplicated"
	StatusFailed       Status = "failed"
)

// Applied reports whether an operation with this status must not run again.
func (s Status) Applied() bool {
	return s == StatusSuccess || s == StatusDeduplicated
}

// replaces reports whether a row with status next may overwrite one with
// status prev. Success is final, and a deduplicated result never hides a
// failure of the operation it claims was applied.
func replaces(prev, next Status) bool {
	switch prev {
	case StatusSuccess:
		return false
	case StatusFailed:
		return next != StatusDeduplicated
	}
	return true
}

// AuditRecord is one row of the operation ledger, keyed by
// (RoomCode, UserID, OperationID).
type AuditRecord struct {
	RoomCode    string          `json:"roomCode"`
	UserID      string          `json:"userId"`
	OperationID string          `json:"operationId"`
	Type        OpType          `json:"type"`
	Status      Status          `json:"status"`
	Error       string          `json:"error,omitempty"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// AuditStore is the operation ledger.
type AuditStore interface {
	// Lookup returns the recorded status of each known operation id.
	Lookup(ctx context.Context, roomCode, userID string, operationIDs []string) (map[string]Status, error)
	// Upsert records results. An existing success row is never overwritten,
	// and a failed row is never replaced by a deduplicated one.
	Upsert(ctx context.Context, records []AuditRecord) error
}

// Membership answers whether a user belongs to a room.
type Membership interface {
	IsMember(ctx context.Context, roomCode, userID string) (bool, error)
}

// Publisher receives every committed snapshot.
type Publisher interface {
	Publish(roomCode string, version time.Time, state *game.GameState)
}

// NextVersion returns a version strictly after prev, based on now and
// truncated to microseconds so it survives a Postgres round-trip.
func NextVersion(prev, now time.Time) time.Time {
	v := now.UTC().Truncate(time.Microsecond)
	if !v.After(prev) {
		v = prev.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
	}
	return v
}
