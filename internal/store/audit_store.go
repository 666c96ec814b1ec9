package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/grimoire/internal/roomsync"
)

// AuditStore is the Postgres operation ledger.
type AuditStore struct {
	db *pgxpool.Pool
}

func NewAuditStore(db *pgxpool.Pool) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Lookup(ctx context.Context, roomCode, userID string, operationIDs []string) (map[string]roomsync.Status, error) {
	rows, err := s.db.Query(ctx, `
		SELECT operation_id, status
		FROM operation_audit
		WHERE room_code = $1 AND user_id = $2 AND operation_id = ANY($3)
	`, roomCode, userID, operationIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]roomsync.Status, len(operationIDs))
	for rows.Next() {
		var (
			id     string
			status string
		)
		if err := rows.Scan(&id, &status); err != nil {
			return nil, err
		}
		out[id] = roomsync.Status(status)
	}
	return out, rows.Err()
}

// Upsert writes all records in one batch. A success row is never replaced,
// and a failed row is never replaced by a deduplicated one.
func (s *AuditStore) Upsert(ctx context.Context, records []roomsync.AuditRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		var errText *string
		if r.Error != "" {
			errText = &r.Error
		}
		batch.Queue(`
			INSERT INTO operation_audit (room_code, user_id, operation_id, type, status, error, payload, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (room_code, user_id, operation_id) DO UPDATE SET
				type = EXCLUDED.type,
				status = EXCLUDED.status,
				error = EXCLUDED.error,
				payload = EXCLUDED.payload,
				created_at = EXCLUDED.created_at
			WHERE operation_audit.status <> 'success'
				AND NOT (operation_audit.status = 'failed' AND EXCLUDED.status = 'deduplicated')
		`, r.RoomCode, r.UserID, r.OperationID, string(r.Type), string(r.Status), errText, []byte(r.Payload), r.CreatedAt)
	}

	br := s.db.SendBatch(ctx, batch)
	defer br.Close()
	for i := range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("audit row %d: %w", i, err)
		}
	}
	return nil
}
