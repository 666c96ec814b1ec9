package roomsync

import (
	"context"
)

// writeAudit records the final result of every operation. It is best-effort:
// the room state is already committed and stays so if this fails.
func (c *Controller) writeAudit(ctx context.Context, req Request, ops []Operation, results []Result) {
	now := c.now().UTC()
	records := make([]AuditRecord, len(ops))
	for i, op := range ops {
		r := results[i]
		rec := AuditRecord{
			RoomCode:    req.RoomID,
			UserID:      req.UserID,
			OperationID: op.ID,
			Type:        op.Type,
			Status:      StatusFailed,
			Error:       r.Error,
			Payload:     op.Raw,
			CreatedAt:   now,
		}
		switch {
		case r.Deduplicated:
			rec.Status = StatusDeduplicated
		case r.Success:
			rec.Status = StatusSuccess
		}
		records[i] = rec
	}

	if err := c.audit.Upsert(ctx, records); err != nil {
		c.log.Error("audit write failed", "room", req.RoomID, "user", req.UserID, "ops", len(records), "err", err)
	}
}
