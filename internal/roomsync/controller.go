package roomsync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultMaxRetries = 5

// Request is one client batch.
type Request struct {
	UserID     string         `json:"userId"`
	RoomID     string         `json:"roomId"`
	Operations []RawOperation `json:"operations"`
}

type Result struct {
	OperationID  string `json:"operationId"`
	Type         OpType `json:"type"`
	Success      bool   `json:"success"`
	Deduplicated bool   `json:"deduplicated,omitempty"`
	Error        string `json:"error,omitempty"`
}

type Response struct {
	Success      bool      `json:"success"`
	Processed    int       `json:"processed"`
	Results      []Result  `json:"results"`
	Timestamp    time.Time `json:"timestamp"`
	StateVersion time.Time `json:"stateVersion"`
}

// Controller applies batches to rooms with a compare-and-swap loop.
type Controller struct {
	rooms      RoomStore
	audit      AuditStore
	members    Membership
	publisher  Publisher
	log        *slog.Logger
	tracer     trace.Tracer
	maxRetries int
	now        func() time.Time
}

type Option func(*Controller)

func WithMaxRetries(n int) Option {
	return func(c *Controller) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

func WithPublisher(p Publisher) Option {
	return func(c *Controller) { c.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Controller) { c.tracer = t }
}

func NewController(rooms RoomStore, audit AuditStore, members Membership, log *slog.Logger, opts ...Option) *Controller {
	if log == nil {
		log = slog.Default()
	}
	c := &Controller{
		rooms:      rooms,
		audit:      audit,
		members:    members,
		log:        log,
		tracer:     otel.Tracer("example.com/grimoire/internal/roomsync"),
		maxRetries: DefaultMaxRetries,
		now:        time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Sync applies a batch for an already authenticated caller. Request-level
// failures are returned as *Error; per-operation failures are reported in
// the response.
func (c *Controller) Sync(ctx context.Context, req Request) (Response, error) {
	ctx, span := c.tracer.Start(ctx, "roomsync.Sync", trace.WithAttributes(
		attribute.String("room.code", req.RoomID),
		attribute.Int("batch.size", len(req.Operations)),
	))
	defer span.End()

	resp, err := c.sync(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.kind", KindOf(err).String()))
		span.SetStatus(codes.Error, err.Error())
	}
	return resp, err
}

func (c *Controller) sync(ctx context.Context, req Request) (Response, error) {
	if req.UserID == "" || req.RoomID == "" {
		return Response{}, validation("userId and roomId are required")
	}
	ops, err := Normalize(req.Operations)
	if err != nil {
		return Response{}, err
	}

	ok, err := c.members.IsMember(ctx, req.RoomID, req.UserID)
	if err != nil {
		return Response{}, internal("membership lookup failed", err)
	}
	if !ok {
		return Response{}, unauthorized("not a member of this room", nil)
	}

	dedup, err := c.deduplicate(ctx, req, ops)
	if err != nil {
		return Response{}, err
	}

	var (
		results []Result
		version time.Time
		commit  bool
	)
	for attempt := 0; ; attempt++ {
		room, err := c.rooms.Get(ctx, req.RoomID)
		if errors.Is(err, ErrRoomNotFound) {
			return Response{}, unauthorized("room not found", err)
		}
		if err != nil {
			return Response{}, internal("load room", err)
		}

		var applied *Room
		results, applied = c.applyBatch(ctx, room, req.UserID, ops, dedup, attempt)
		if applied == nil {
			version = room.Version
			break
		}

		next := NextVersion(room.Version, c.now())
		err = c.rooms.CompareAndSwap(ctx, req.RoomID, room.Version, applied.State, next)
		if err == nil {
			version, commit = next, true
			if c.publisher != nil {
				c.publisher.Publish(req.RoomID, next, applied.State)
			}
			break
		}
		if !errors.Is(err, ErrVersionConflict) {
			return Response{}, internal("save room", err)
		}
		if attempt >= c.maxRetries {
			c.log.Warn("sync retries exhausted", "room", req.RoomID, "user", req.UserID, "attempts", attempt+1)
			return Response{}, ErrRetriesExhausted
		}
		c.log.Debug("sync version conflict, retrying", "room", req.RoomID, "attempt", attempt+1)
	}

	c.writeAudit(ctx, req, ops, results)
	if commit {
		c.log.Info("sync committed", "room", req.RoomID, "user", req.UserID, "ops", len(ops), "version", version)
	}

	return Response{
		Success:      true,
		Processed:    len(results),
		Results:      results,
		Timestamp:    c.now().UTC(),
		StateVersion: version,
	}, nil
}

// deduplicate marks operations already applied by an earlier request.
// Repeated ids within this batch are resolved while applying.
func (c *Controller) deduplicate(ctx context.Context, req Request, ops []Operation) (map[int]bool, error) {
	ids := make([]string, len(ops))
	for i, op := range ops {
		ids[i] = op.ID
	}
	prior, err := c.audit.Lookup(ctx, req.RoomID, req.UserID, ids)
	if err != nil {
		return nil, internal("audit lookup failed", err)
	}

	dedup := make(map[int]bool)
	for i, op := range ops {
		if prior[op.ID].Applied() {
			dedup[i] = true
		}
	}
	return dedup, nil
}

// applyBatch runs the batch in order on a fresh copy of room. It returns the
// mutated room, or nil when no operation succeeded and nothing needs saving.
func (c *Controller) applyBatch(ctx context.Context, room Room, userID string, ops []Operation, dedup map[int]bool, attempt int) ([]Result, *Room) {
	_, span := c.tracer.Start(ctx, "roomsync.applyBatch", trace.WithAttributes(attribute.Int("attempt", attempt)))
	defer span.End()

	working := room
	working.State = room.State.Clone()
	a := &applier{room: working, state: working.State, caller: userID}

	results := make([]Result, len(ops))
	succeeded := make(map[string]bool, len(ops))
	changed := false
	for i, op := range ops {
		res := Result{OperationID: op.ID, Type: op.Type}
		switch {
		case dedup[i], succeeded[op.ID]:
			// a repeat only counts as applied once an earlier copy succeeded
			res.Success, res.Deduplicated = true, true
		case op.Invalid != nil:
			res.Error = op.Invalid.Error()
		default:
			line, err := a.apply(op)
			if err != nil {
				res.Error = err.Error()
				break
			}
			res.Success, changed = true, true
			succeeded[op.ID] = true
			c.log.Debug("operation applied", "room", room.Code, "op", op.ID, "type", op.Type, "line", line)
		}
		results[i] = res
	}
	if !changed {
		return results, nil
	}
	return results, &working
}
