package roomsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"example.com/grimoire/internal/game"
)

const (
	testRoom        = "abc123"
	testStoryteller = "st"
)

func intp(v int) *int { return &v }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	rooms   *MemoryRoomStore
	audit   *MemoryAuditStore
	members *MemoryMembership
}

// newFixture creates a room with five seats bound to u0..u4 and a storyteller.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		rooms:   NewMemoryRoomStore(),
		audit:   NewMemoryAuditStore(),
		members: NewMemoryMembership(),
	}

	st := game.NewGameState(game.TroubleBrewing, 5, game.AutomationFullAuto)
	for i := 0; i < 5; i++ {
		_, err := st.ClaimSeat(i, fmt.Sprintf("u%d", i), false)
		require.NoError(t, err)
		require.NoError(t, f.members.Add(ctx, testRoom, fmt.Sprintf("u%d", i)))
	}
	st.Messages = nil
	require.NoError(t, f.members.Add(ctx, testRoom, testStoryteller))
	require.NoError(t, f.rooms.Create(ctx, Room{
		Code:          testRoom,
		StorytellerID: testStoryteller,
		State:         st,
		Version:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}))
	return f
}

func (f *fixture) controller(opts ...Option) *Controller {
	return NewController(f.rooms, f.audit, f.members, quietLogger(), opts...)
}

func (f *fixture) state(t *testing.T) *game.GameState {
	t.Helper()
	r, err := f.rooms.Get(context.Background(), testRoom)
	require.NoError(t, err)
	return r.State
}

func TestSync_IdempotentOperationID(t *testing.T) {
	f := newFixture(t)
	c := f.controller()
	ctx := context.Background()

	req := Request{UserID: "u1", RoomID: testRoom, Operations: []RawOperation{
		{OperationID: "op-1", Type: OpSendMessage, Content: "hello"},
	}}

	resp, err := c.Sync(ctx, req)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.True(t, resp.Results[0].Success)
	assert.False(t, resp.Results[0].Deduplicated)
	firstVersion := resp.StateVersion

	resp, err = c.Sync(ctx, req)
	require.NoError(t, err)
	assert.True(t, resp.Results[0].Success)
	assert.True(t, resp.Results[0].Deduplicated)
	assert.Equal(t, firstVersion, resp.StateVersion)

	st := f.state(t)
	require.Len(t, st.Messages, 1)
	assert.Equal(t, "hello", st.Messages[0].Text)

	records := f.audit.Records(testRoom)
	require.Len(t, records, 1)
	assert.Equal(t, StatusSuccess, records[0].Status)
}

func TestSync_DuplicateIDWithinBatch(t *testing.T) {
	f := newFixture(t)
	resp, err := f.controller().Sync(context.Background(), Request{UserID: "u1", RoomID: testRoom, Operations: []RawOperation{
		{OperationID: "same", Type: OpSendMessage, Content: "one"},
		{OperationID: "same", Type: OpSendMessage, Content: "two"},
	}})
	require.NoError(t, err)
	assert.False(t, resp.Results[0].Deduplicated)
	assert.True(t, resp.Results[1].Deduplicated)
	assert.Len(t, f.state(t).Messages, 1)
}

func TestSync_RepeatedIDAfterFailureRunsAgain(t *testing.T) {
	f := newFixture(t)
	c := f.controller()
	ctx := context.Background()

	resp, err := c.Sync(ctx, Request{UserID: "u1", RoomID: testRoom, Operations: []RawOperation{
		{OperationID: "x", Type: OpUpdateReminder, ReminderID: "missing", Text: "a"},
		{OperationID: "x", Type: OpUpdateReminder, ReminderID: "missing", Text: "a"},
	}})
	require.NoError(t, err)
	for _, r := range resp.Results {
		assert.False(t, r.Success)
		assert.False(t, r.Deduplicated)
		assert.Equal(t, game.ErrReminderNotFound.Error(), r.Error)
	}

	records := f.audit.Records(testRoom)
	require.Len(t, records, 1)
	assert.Equal(t, StatusFailed, records[0].Status)

	resp, err = c.Sync(ctx, Request{UserID: "u1", RoomID: testRoom, Operations: []RawOperation{
		{OperationID: "x", Type: OpUpdateReminder, Text: "valid"},
	}})
	require.NoError(t, err)
	assert.True(t, resp.Results[0].Success)
	assert.False(t, resp.Results[0].Deduplicated)

	seat, _ := f.state(t).Seat(1)
	require.Len(t, seat.Reminders, 1)
	assert.Equal(t, "valid", seat.Reminders[0].Text)
}

func TestSync_RepeatedIDSucceedsOnSecondCopy(t *testing.T) {
	f := newFixture(t)
	resp, err := f.controller().Sync(context.Background(), Request{UserID: "u1", RoomID: testRoom, Operations: []RawOperation{
		{OperationID: "y", Type: OpSendMessage, SeatID: intp(3), Content: "not mine"},
		{OperationID: "y", Type: OpSendMessage, Content: "mine"},
		{OperationID: "y", Type: OpSendMessage, Content: "again"},
	}})
	require.NoError(t, err)
	assert.False(t, resp.Results[0].Success)
	assert.True(t, resp.Results[1].Success)
	assert.False(t, resp.Results[1].Deduplicated)
	assert.True(t, resp.Results[2].Deduplicated)
	assert.Len(t, f.state(t).Messages, 1)

	records := f.audit.Records(testRoom)
	require.Len(t, records, 1)
	assert.Equal(t, StatusSuccess, records[0].Status)
}

func TestMemoryAuditStore_StatusPrecedence(t *testing.T) {
	cases := []struct {
		name       string
		prev, next Status
		want       Status
	}{
		{name: "success is final", prev: StatusSuccess, next: StatusFailed, want: StatusSuccess},
		{name: "success over dedup kept", prev: StatusSuccess, next: StatusDeduplicated, want: StatusSuccess},
		{name: "failure never hidden by dedup", prev: StatusFailed, next: StatusDeduplicated, want: StatusFailed},
		{name: "failure then success", prev: StatusFailed, next: StatusSuccess, want: StatusSuccess},
		{name: "dedup then failure", prev: StatusDeduplicated, next: StatusFailed, want: StatusFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			audit := NewMemoryAuditStore()
			rec := AuditRecord{RoomCode: testRoom, UserID: "u1", OperationID: "op"}

			rec.Status = tc.prev
			require.NoError(t, audit.Upsert(ctx, []AuditRecord{rec}))
			rec.Status = tc.next
			require.NoError(t, audit.Upsert(ctx, []AuditRecord{rec}))

			got, err := audit.Lookup(ctx, testRoom, "u1", []string{"op"})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got["op"])
		})
	}
}

func TestSync_FailedOperationCanBeRetried(t *testing.T) {
	f := newFixture(t)
	c := f.controller()
	ctx := context.Background()

	resp, err := c.Sync(ctx, Request{UserID: "u1", RoomID: testRoom, Operations: []RawOperation{
		{OperationID: "rm-1", Type: OpUpdateReminder, ReminderID: "missing", Text: "x"},
	}})
	require.NoError(t, err)
	assert.False(t, resp.Results[0].Success)
	assert.Equal(t, game.ErrReminderNotFound.Error(), resp.Results[0].Error)

	resp, err = c.Sync(ctx, Request{UserID: "u1", RoomID: testRoom, Operations: []RawOperation{
		{OperationID: "rm-1", Type: OpUpdateReminder, Text: "now valid"},
	}})
	require.NoError(t, err)
	assert.True(t, resp.Results[0].Success)
	assert.False(t, resp.Results[0].Deduplicated)

	seat, _ := f.state(t).Seat(1)
	require.Len(t, seat.Reminders, 1)
	assert.Equal(t, "now valid", seat.Reminders[0].Text)
}

func TestSync_SeatOwnership(t *testing.T) {
	cases := []struct {
		name string
		op   RawOperation
	}{
		{name: "raise hand", op: RawOperation{Type: OpRaiseHand, SeatID: intp(2)}},
		{name: "lower hand", op: RawOperation{Type: OpLowerHand, SeatID: intp(2)}},
		{name: "night action", op: RawOperation{Type: OpNightAction, SeatID: intp(2)}},
		{name: "send message", op: RawOperation{Type: OpSendMessage, SeatID: intp(2), Content: "hi"}},
		{name: "reminder", op: RawOperation{Type: OpUpdateReminder, SeatID: intp(2), Text: "x"}},
		{name: "nominate", op: RawOperation{Type: OpNominate, SeatID: intp(2), NomineeSeatID: intp(3)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			before := f.state(t)

			resp, err := f.controller().Sync(context.Background(), Request{
				UserID: "u1", RoomID: testRoom, Operations: []RawOperation{tc.op},
			})
			require.NoError(t, err)
			require.False(t, resp.Results[0].Success)
			assert.Equal(t, ErrSeatOwnership.Error(), resp.Results[0].Error)
			assert.Equal(t, before, f.state(t))
		})
	}
}

func TestSync_StorytellerOnlyOperations(t *testing.T) {
	f := newFixture(t)
	c := f.controller()
	ctx := context.Background()

	resp, err := c.Sync(ctx, Request{UserID: "u1", RoomID: testRoom, Operations: []RawOperation{
		{Type: OpTransitionPhase, Phase: game.PhaseNight},
	}})
	require.NoError(t, err)
	assert.Equal(t, ErrNotStoryteller.Error(), resp.Results[0].Error)

	resp, err = c.Sync(ctx, Request{UserID: testStoryteller, RoomID: testRoom, Operations: []RawOperation{
		{OperationID: "deal", Type: OpAssignComposition},
		{OperationID: "n1", Type: OpTransitionPhase, Phase: game.PhaseNight},
	}})
	require.NoError(t, err)
	for _, r := range resp.Results {
		assert.True(t, r.Success, r.Error)
	}
	st := f.state(t)
	assert.Equal(t, game.PhaseNight, st.Phase)
	assert.Equal(t, 1, st.RoundInfo.NightCount)
	for _, s := range st.Seats {
		assert.NotEmpty(t, s.Role.RoleID)
	}
}

func TestSync_AssignCompositionIsDeterministicPerOperation(t *testing.T) {
	deal := func() []string {
		f := newFixture(t)
		_, err := f.controller().Sync(context.Background(), Request{UserID: testStoryteller, RoomID: testRoom, Operations: []RawOperation{
			{OperationID: "deal-1", Type: OpAssignComposition},
		}})
		require.NoError(t, err)
		var roles []string
		for _, s := range f.state(t).Seats {
			roles = append(roles, s.Role.RoleID)
		}
		return roles
	}
	assert.Equal(t, deal(), deal())
}

func TestSync_SetPerceivedRole(t *testing.T) {
	f := newFixture(t)
	c := f.controller()
	ctx := context.Background()

	resp, err := c.Sync(ctx, Request{UserID: testStoryteller, RoomID: testRoom, Operations: []RawOperation{
		{OperationID: "r1", Type: OpAssignRole, SeatID: intp(2), RoleID: "drunk"},
		{OperationID: "p1", Type: OpSetPerceivedRole, SeatID: intp(2), RoleID: "empath"},
		{OperationID: "p2", Type: OpSetPerceivedRole, SeatID: intp(3), RoleID: "empath"},
		{OperationID: "p3", Type: OpSetPerceivedRole, SeatID: intp(2), RoleID: "wizard"},
	}})
	require.NoError(t, err)
	assert.True(t, resp.Results[0].Success, resp.Results[0].Error)
	assert.True(t, resp.Results[1].Success, resp.Results[1].Error)
	assert.Equal(t, game.ErrNoRole.Error(), resp.Results[2].Error)
	assert.Equal(t, game.ErrUnknownRole.Error(), resp.Results[3].Error)

	seat, _ := f.state(t).Seat(2)
	assert.Equal(t, "drunk", seat.Role.RealRoleID)
	assert.Equal(t, "empath", seat.Role.SeenRoleID)
	assert.True(t, seat.Role.Diverged())

	resp, err = c.Sync(ctx, Request{UserID: "u2", RoomID: testRoom, Operations: []RawOperation{
		{Type: OpSetPerceivedRole, SeatID: intp(2)},
	}})
	require.NoError(t, err)
	assert.Equal(t, ErrNotStoryteller.Error(), resp.Results[0].Error)

	_, err = c.Sync(ctx, Request{UserID: testStoryteller, RoomID: testRoom, Operations: []RawOperation{
		{Type: OpSetPerceivedRole, SeatID: intp(2)},
	}})
	require.NoError(t, err)
	seat, _ = f.state(t).Seat(2)
	assert.Equal(t, "drunk", seat.Role.SeenRoleID)
	assert.False(t, seat.Role.Diverged())
}

func TestSync_PlayerFlowThroughVote(t *testing.T) {
	f := newFixture(t)
	c := f.controller()
	ctx := context.Background()

	run := func(user string, ops ...RawOperation) Response {
		t.Helper()
		resp, err := c.Sync(ctx, Request{UserID: user, RoomID: testRoom, Operations: ops})
		require.NoError(t, err)
		for _, r := range resp.Results {
			require.True(t, r.Success, "%s: %s", r.Type, r.Error)
		}
		return resp
	}

	run(testStoryteller,
		RawOperation{Type: OpTransitionPhase, Phase: game.PhaseNight},
		RawOperation{Type: OpNightNext},
	)
	require.Equal(t, game.PhaseDay, f.state(t).Phase)

	run("u0", RawOperation{Type: OpNominate, SeatID: intp(0), NomineeSeatID: intp(4)})
	run("u1", RawOperation{Type: OpRaiseHand})
	run("u2", RawOperation{Type: OpRaiseHand, SeatID: intp(2)})
	run("u3", RawOperation{Type: OpRaiseHand})
	run(testStoryteller, RawOperation{Type: OpCloseVote})

	st := f.state(t)
	seat, _ := st.Seat(4)
	assert.True(t, seat.IsDead)
	require.Len(t, st.DailyNominations, 1)
	assert.Equal(t, 3, st.DailyNominations[0].VoteCount)
	assert.True(t, st.DailyNominations[0].Executed)
}

func TestSync_NightActionRequiresNight(t *testing.T) {
	f := newFixture(t)
	resp, err := f.controller().Sync(context.Background(), Request{UserID: "u0", RoomID: testRoom, Operations: []RawOperation{
		{Type: OpNightAction, Payload: map[string]any{"target": 2}},
	}})
	require.NoError(t, err)
	assert.Equal(t, game.ErrNotNight.Error(), resp.Results[0].Error)
}

func TestSync_RequestLevelFailures(t *testing.T) {
	tooMany := make([]RawOperation, MaxBatch+1)
	for i := range tooMany {
		tooMany[i] = RawOperation{Type: OpRaiseHand}
	}

	cases := []struct {
		name  string
		req   Request
		kind  Kind
		label string
	}{
		{name: "empty batch", req: Request{UserID: "u1", RoomID: testRoom}, kind: KindValidation, label: "validation"},
		{name: "too many", req: Request{UserID: "u1", RoomID: testRoom, Operations: tooMany}, kind: KindValidation, label: "validation"},
		{name: "missing room", req: Request{UserID: "u1", Operations: []RawOperation{{Type: OpRaiseHand}}}, kind: KindValidation, label: "validation"},
		{name: "not a member", req: Request{UserID: "stranger", RoomID: testRoom, Operations: []RawOperation{{Type: OpRaiseHand}}}, kind: KindAuthorization, label: "authorization"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			rec := tracetest.NewSpanRecorder()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

			_, err := f.controller(WithTracer(tp.Tracer("test"))).Sync(context.Background(), tc.req)
			require.Error(t, err)
			assert.Equal(t, tc.kind, KindOf(err))
			assert.Empty(t, f.audit.Records(testRoom))

			spans := rec.Ended()
			require.Len(t, spans, 1)
			assert.Equal(t, codes.Error, spans[0].Status().Code)
			assert.Contains(t, spans[0].Attributes(), attribute.String("error.kind", tc.label))
		})
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "validation", KindValidation.String())
	assert.Equal(t, "authorization", KindAuthorization.String())
	assert.Equal(t, "conflict", KindConflict.String())
	assert.Equal(t, "internal", KindInternal.String())
	assert.Equal(t, "conflict", KindOf(ErrRetriesExhausted).String())
}

func TestSync_UnknownRoomIsAuthorizationError(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.members.Add(context.Background(), "ghost", "u1"))
	_, err := f.controller().Sync(context.Background(), Request{UserID: "u1", RoomID: "ghost", Operations: []RawOperation{{Type: OpRaiseHand}}})
	require.ErrorIs(t, err, ErrRoomNotFound)
	assert.Equal(t, KindAuthorization, KindOf(err))
}

func TestSync_InvalidOperationFailsOnlyItself(t *testing.T) {
	f := newFixture(t)
	resp, err := f.controller().Sync(context.Background(), Request{UserID: "u1", RoomID: testRoom, Operations: []RawOperation{
		{Type: "teleport"},
		{Type: OpSendMessage, Content: strings.Repeat("a", game.MaxMessageLength+1)},
		{Type: OpSendMessage, Content: "ok"},
	}})
	require.NoError(t, err)
	assert.False(t, resp.Results[0].Success)
	assert.Contains(t, resp.Results[0].Error, "unknown operation type")
	assert.False(t, resp.Results[1].Success)
	assert.True(t, resp.Results[2].Success)
	assert.Equal(t, 3, resp.Processed)

	records := f.audit.Records(testRoom)
	require.Len(t, records, 3)
}

// conflictingStore advances the stored version behind the caller's back the
// first n times a room is read.
type conflictingStore struct {
	*MemoryRoomStore
	mu        sync.Mutex
	remaining int
	gets      int
	always    bool
}

func (s *conflictingStore) Get(ctx context.Context, code string) (Room, error) {
	r, err := s.MemoryRoomStore.Get(ctx, code)
	if err != nil {
		return r, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.always || s.remaining > 0 {
		s.remaining--
		bumped := r.State.Clone()
		bumped.RoundInfo.NominationCount += 100
		if err := s.MemoryRoomStore.CompareAndSwap(ctx, code, r.Version, bumped, r.Version.Add(time.Millisecond)); err != nil {
			return Room{}, err
		}
	}
	return r, nil
}

func TestSync_ConflictRetriesOnceThenSucceeds(t *testing.T) {
	f := newFixture(t)
	store := &conflictingStore{MemoryRoomStore: f.rooms, remaining: 1}
	c := NewController(store, f.audit, f.members, quietLogger())

	resp, err := c.Sync(context.Background(), Request{UserID: "u1", RoomID: testRoom, Operations: []RawOperation{
		{OperationID: "a", Type: OpSendMessage, Content: "first"},
		{OperationID: "b", Type: OpRaiseHand},
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, store.gets, "exactly one retry")

	st := f.state(t)
	assert.Equal(t, 100, st.RoundInfo.NominationCount, "concurrent write is kept")
	require.Len(t, st.Messages, 1)
	seat, _ := st.Seat(1)
	assert.True(t, seat.HandRaised)

	records := f.audit.Records(testRoom)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, StatusSuccess, r.Status)
	}
	assert.True(t, resp.StateVersion.After(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestSync_RetriesExhausted(t *testing.T) {
	f := newFixture(t)
	store := &conflictingStore{MemoryRoomStore: f.rooms, always: true}
	c := NewController(store, f.audit, f.members, quietLogger(), WithMaxRetries(2))

	_, err := c.Sync(context.Background(), Request{UserID: "u1", RoomID: testRoom, Operations: []RawOperation{
		{OperationID: "a", Type: OpSendMessage, Content: "lost"},
	}})
	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, 3, store.gets)
	assert.Empty(t, f.state(t).Messages)
	assert.Empty(t, f.audit.Records(testRoom))
}

func TestSync_ConcurrentBatchesConverge(t *testing.T) {
	f := newFixture(t)
	c := f.controller(WithMaxRetries(50))
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", i)
			_, errs[i] = c.Sync(ctx, Request{UserID: user, RoomID: testRoom, Operations: []RawOperation{
				{OperationID: "msg", Type: OpSendMessage, Content: "from " + user},
				{OperationID: "hand", Type: OpRaiseHand},
			}})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	st := f.state(t)
	assert.Len(t, st.Messages, 5)
	for i, m := range st.Messages {
		assert.Equal(t, i, m.Seq)
	}
	for _, s := range st.Seats {
		assert.True(t, s.HandRaised)
	}
}

type failingAudit struct {
	*MemoryAuditStore
}

func (failingAudit) Upsert(context.Context, []AuditRecord) error {
	return errors.New("ledger down")
}

func TestSync_AuditFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t)
	c := NewController(f.rooms, failingAudit{f.audit}, f.members, quietLogger())

	resp, err := c.Sync(context.Background(), Request{UserID: "u1", RoomID: testRoom, Operations: []RawOperation{
		{OperationID: "a", Type: OpSendMessage, Content: "kept"},
	}})
	require.NoError(t, err)
	assert.True(t, resp.Results[0].Success)
	assert.Len(t, f.state(t).Messages, 1)
}

type recordingPublisher struct {
	mu       sync.Mutex
	versions []time.Time
}

func (p *recordingPublisher) Publish(roomCode string, version time.Time, state *game.GameState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.versions = append(p.versions, version)
}

func TestSync_PublishesCommittedSnapshots(t *testing.T) {
	f := newFixture(t)
	pub := &recordingPublisher{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := f.controller(WithPublisher(pub), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	resp, err := c.Sync(ctx, Request{UserID: "u1", RoomID: testRoom, Operations: []RawOperation{
		{OperationID: "a", Type: OpRaiseHand},
	}})
	require.NoError(t, err)
	assert.Equal(t, now, resp.StateVersion)

	// fully deduplicated batch does not write or publish
	_, err = c.Sync(ctx, Request{UserID: "u1", RoomID: testRoom, Operations: []RawOperation{
		{OperationID: "a", Type: OpRaiseHand},
	}})
	require.NoError(t, err)

	resp, err = c.Sync(ctx, Request{UserID: "u1", RoomID: testRoom, Operations: []RawOperation{
		{OperationID: "b", Type: OpLowerHand},
	}})
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Microsecond), resp.StateVersion)
	assert.Equal(t, []time.Time{now, now.Add(time.Microsecond)}, pub.versions)
}
