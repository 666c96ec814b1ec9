package roomsync

import (
	"fmt"
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"example.com/grimoire/internal/game"
)

// reminderNamespace scopes reminder ids derived from operation ids.
var reminderNamespace = uuid.MustParse("6f1c2d0e-8a4b-4f5e-9c3d-2b7a1e0f4d6c")

// applier runs operations of one caller against a working copy.
type applier struct {
	room   Room
	state  *game.GameState
	caller string
}

// apply runs one operation and returns the log line it produced.
func (a *applier) apply(op Operation) (string, error) {
	switch b := op.Body.(type) {
	case RaiseHand:
		seat, err := a.ownSeat(b.SeatID)
		if err != nil {
			return "", err
		}
		return a.state.SetHand(seat, true)
	case LowerHand:
		seat, err := a.ownSeat(b.SeatID)
		if err != nil {
			return "", err
		}
		return a.state.SetHand(seat, false)
	case NightAction:
		seat, err := a.ownSeat(b.SeatID)
		if err != nil {
			return "", err
		}
		return a.state.RecordNightAction(seat, b.RoleID, b.Payload)
	case SendMessage:
		seat, err := a.ownSeat(b.SeatID)
		if err != nil {
			return "", err
		}
		m, err := a.state.SendMessage(seat, b.RecipientID, b.Content)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("message #%d sent", m.Seq), nil
	case UpdateReminder:
		seat, err := a.ownSeat(b.SeatID)
		if err != nil {
			return "", err
		}
		switch {
		case b.Remove:
			return a.state.RemoveReminder(seat, b.ReminderID)
		case b.ReminderID == "":
			return a.state.AddReminder(seat, a.derivedID(op.ID), b.Icon, b.Text)
		}
		return a.state.UpdateReminder(seat, b.ReminderID, b.Icon, b.Text)

	case Nominate:
		if !a.isStoryteller() {
			if _, err := a.ownSeat(&b.NominatorSeatID); err != nil {
				return "", err
			}
		}
		return a.state.Nominate(b.NominatorSeatID, b.NomineeSeatID)
	}

	if !a.isStoryteller() {
		return "", ErrNotStoryteller
	}
	switch b := op.Body.(type) {
	case TransitionPhase:
		return a.state.TransitionPhase(b.Phase)
	case NightNext:
		return a.state.NightNext()
	case NightPrev:
		return a.state.NightPrev()
	case StartVote:
		return a.state.StartVote(b.NomineeSeatID)
	case CloseVote:
		return a.state.CloseVote()
	case LockVote:
		return a.state.LockVote(b.SeatID)
	case ToggleDead:
		return a.state.ToggleDead(b.SeatID)
	case ToggleStatus:
		return a.state.ToggleStatus(b.SeatID, b.Status)
	case AssignRole:
		return a.state.AssignRoleToSeat(b.SeatID, b.RoleID)
	case SetPerceivedRole:
		return a.state.Perceive(b.SeatID, b.RoleID)
	case AssignComposition:
		return a.state.DealComposition(a.rng(op.ID))
	case ClaimSeat:
		return a.state.ClaimSeat(b.SeatID, b.UserID, b.Virtual)
	case EndGame:
		return a.state.EndGame(b.Winner, b.Reason)
	}
	return "", validationf("unsupported operation type %q", op.Type)
}

func (a *applier) isStoryteller() bool {
	return a.room.StorytellerID != "" && a.room.StorytellerID == a.caller
}

// ownSeat resolves the target seat of a seat-targeting operation. Without an
// explicit seat the caller's own seat is used. A seat bound to anyone else is
// rejected.
func (a *applier) ownSeat(seatID *int) (int, error) {
	if seatID == nil {
		s, ok := a.state.SeatOf(a.caller)
		if !ok {
			return 0, ErrNoSeat
		}
		return s.ID, nil
	}
	s, ok := a.state.Seat(*seatID)
	if !ok {
		return 0, game.ErrSeatNotFound
	}
	if s.UserID != a.caller {
		return 0, ErrSeatOwnership
	}
	return s.ID, nil
}

// derivedID is stable for a given room and operation id, so a retried batch
// produces the same ids.
func (a *applier) derivedID(opID string) string {
	return uuid.NewSHA1(reminderNamespace, []byte(a.room.Code+"/"+opID)).String()
}

// rng is seeded from the operation id so replays deal the same roles.
func (a *applier) rng(opID string) *rand.Rand {
	seed := xxhash.Sum64String(a.room.Code + "/" + opID)
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
