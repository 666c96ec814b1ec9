package roomsync

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"example.com/grimoire/internal/game"
)

const (
	MinBatch = 1
	MaxBatch = 50
)

type OpType string

const (
	OpRaiseHand      OpType = "raise_hand"
	OpLowerHand      OpType = "lower_hand"
	OpNightAction    OpType = "night_action"
	OpSendMessage    OpType = "send_message"
	OpUpdateReminder OpType = "update_reminder"

	// storyteller operations
	OpTransitionPhase   OpType = "transition_phase"
	OpNightNext         OpType = "night_next"
	OpNightPrev         OpType = "night_prev"
	OpStartVote         OpType = "start_vote"
	OpCloseVote         OpType = "close_vote"
	OpLockVote          OpType = "lock_vote"
	OpNominate          OpType = "nominate"
	OpToggleDead        OpType = "toggle_dead"
	OpToggleStatus      OpType = "toggle_status"
	OpAssignRole        OpType = "assign_role"
	OpSetPerceivedRole  OpType = "set_perceived_role"
	OpAssignComposition OpType = "assign_composition"
	OpClaimSeat         OpType = "claim_seat"
	OpEndGame           OpType = "end_game"
)

// RawOperation is the loosely typed wire form of an operation. It is decoded
// into one Body variant by Normalize and never looked at again.
type RawOperation struct {
	OperationID string         `json:"operationId,omitempty"`
	Type        OpType         `json:"type"`
	SeatID      *int           `json:"seatId,omitempty"`
	RoleID      string         `json:"roleId,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	Content     string         `json:"content,omitempty"`
	RecipientID *int           `json:"recipientId,omitempty"`
	ReminderID  string         `json:"reminderId,omitempty"`
	Icon        string         `json:"icon,omitempty"`
	Text        string         `json:"text,omitempty"`
	Remove      bool           `json:"remove,omitempty"`

	Phase         game.Phase `json:"phase,omitempty"`
	NomineeSeatID *int       `json:"nomineeSeatId,omitempty"`
	Status        string     `json:"status,omitempty"`
	UserID        string     `json:"userId,omitempty"`
	Virtual       bool       `json:"virtual,omitempty"`
	Winner        string     `json:"winner,omitempty"`
	Reason        string     `json:"reason,omitempty"`
}

// Operation is a normalized operation: a stable id, its type, the typed body
// and the original payload for the audit ledger. Invalid carries a decoding
// error that fails only this operation.
type Operation struct {
	ID      string
	Type    OpType
	Body    Body
	Raw     json.RawMessage
	Invalid error
}

// Body is one operation variant. Seat-targeting variants report their seat so
// ownership can be checked before applying.
type Body interface {
	isBody()
}

type (
	RaiseHand struct{ SeatID *int }
	LowerHand struct{ SeatID *int }

	NightAction struct {
		SeatID  *int
		RoleID  string
		Payload map[string]any
	}

	SendMessage struct {
		SeatID      *int
		Content     string
		RecipientID *int
	}

	UpdateReminder struct {
		SeatID     *int
		ReminderID string
		Icon       string
		Text       string
		Remove     bool
	}

	TransitionPhase   struct{ Phase game.Phase }
	NightNext         struct{}
	NightPrev         struct{}
	StartVote         struct{ NomineeSeatID int }
	CloseVote         struct{}
	LockVote          struct{ SeatID int }
	Nominate          struct{ NominatorSeatID, NomineeSeatID int }
	ToggleDead        struct{ SeatID int }
	ToggleStatus      struct {
		SeatID int
		Status string
	}
	AssignRole struct {
		SeatID int
		RoleID string
	}
	SetPerceivedRole struct {
		SeatID int
		RoleID string
	}
	AssignComposition struct{}
	ClaimSeat         struct {
		SeatID  int
		UserID  string
		Virtual bool
	}
	EndGame struct{ Winner, Reason string }
)

func (RaiseHand) isBody()         {}
func (LowerHand) isBody()         {}
func (NightAction) isBody()       {}
func (SendMessage) isBody()       {}
func (UpdateReminder) isBody()    {}
func (TransitionPhase) isBody()   {}
func (NightNext) isBody()         {}
func (NightPrev) isBody()         {}
func (StartVote) isBody()         {}
func (CloseVote) isBody()         {}
func (LockVote) isBody()          {}
func (Nominate) isBody()          {}
func (ToggleDead) isBody()        {}
func (ToggleStatus) isBody()      {}
func (AssignRole) isBody()        {}
func (SetPerceivedRole) isBody()  {}
func (AssignComposition) isBody() {}
func (ClaimSeat) isBody()         {}
func (EndGame) isBody()           {}

// Normalize validates the batch size and turns every raw operation into a
// typed Operation with a stable id. Per-operation problems are kept on the
// operation instead of failing the batch.
func Normalize(raw []RawOperation) ([]Operation, error) {
	if len(raw) < MinBatch || len(raw) > MaxBatch {
		return nil, validationf("operations must contain %d-%d items, got %d", MinBatch, MaxBatch, len(raw))
	}
	ops := make([]Operation, len(raw))
	for i, r := range raw {
		r.OperationID = strings.TrimSpace(r.OperationID)
		payload, _ := json.Marshal(r)

		op := Operation{ID: r.OperationID, Type: r.Type, Raw: payload}
		if op.ID == "" {
			op.ID = LegacyOperationID(r, i)
		}
		op.Body, op.Invalid = decodeBody(r)
		ops[i] = op
	}
	return ops, nil
}

// LegacyOperationID derives a deterministic id for callers that predate
// client-generated operation ids. It hashes the operation content and its
// position in the batch.
func LegacyOperationID(r RawOperation, index int) string {
	r.OperationID = ""
	b, _ := json.Marshal(r)
	d := xxhash.New()
	_, _ = d.WriteString(strconv.Itoa(index))
	_, _ = d.WriteString("|")
	_, _ = d.Write(b)
	return "legacy-" + strconv.FormatUint(d.Sum64(), 16)
}

func decodeBody(r RawOperation) (Body, error) {
	switch r.Type {
	case OpRaiseHand:
		return RaiseHand{SeatID: r.SeatID}, nil
	case OpLowerHand:
		return LowerHand{SeatID: r.SeatID}, nil
	case OpNightAction:
		return NightAction{SeatID: r.SeatID, RoleID: r.RoleID, Payload: r.Payload}, nil
	case OpSendMessage:
		if strings.TrimSpace(r.Content) == "" {
			return nil, validation("content is required")
		}
		if len([]rune(r.Content)) > game.MaxMessageLength {
			return nil, validationf("content exceeds %d characters", game.MaxMessageLength)
		}
		return SendMessage{SeatID: r.SeatID, Content: r.Content, RecipientID: r.RecipientID}, nil
	case OpUpdateReminder:
		if r.Remove && r.ReminderID == "" {
			return nil, validation("reminderId is required to remove a reminder")
		}
		return UpdateReminder{SeatID: r.SeatID, ReminderID: r.ReminderID, Icon: r.Icon, Text: r.Text, Remove: r.Remove}, nil

	case OpTransitionPhase:
		if r.Phase == "" {
			return nil, validation("phase is required")
		}
		return TransitionPhase{Phase: r.Phase}, nil
	case OpNightNext:
		return NightNext{}, nil
	case OpNightPrev:
		return NightPrev{}, nil
	case OpStartVote:
		seat, err := requireSeat(r.SeatID)
		return StartVote{NomineeSeatID: seat}, err
	case OpCloseVote:
		return CloseVote{}, nil
	case OpLockVote:
		seat, err := requireSeat(r.SeatID)
		return LockVote{SeatID: seat}, err
	case OpNominate:
		seat, err := requireSeat(r.SeatID)
		if err != nil {
			return nil, err
		}
		if r.NomineeSeatID == nil {
			return nil, validation("nomineeSeatId is required")
		}
		return Nominate{NominatorSeatID: seat, NomineeSeatID: *r.NomineeSeatID}, nil
	case OpToggleDead:
		seat, err := requireSeat(r.SeatID)
		return ToggleDead{SeatID: seat}, err
	case OpToggleStatus:
		seat, err := requireSeat(r.SeatID)
		return ToggleStatus{SeatID: seat, Status: r.Status}, err
	case OpAssignRole:
		seat, err := requireSeat(r.SeatID)
		return AssignRole{SeatID: seat, RoleID: r.RoleID}, err
	case OpSetPerceivedRole:
		seat, err := requireSeat(r.SeatID)
		return SetPerceivedRole{SeatID: seat, RoleID: r.RoleID}, err
	case OpAssignComposition:
		return AssignComposition{}, nil
	case OpClaimSeat:
		seat, err := requireSeat(r.SeatID)
		return ClaimSeat{SeatID: seat, UserID: r.UserID, Virtual: r.Virtual}, err
	case OpEndGame:
		return EndGame{Winner: r.Winner, Reason: r.Reason}, nil
	}
	return nil, validationf("unknown operation type %q", r.Type)
}

func requireSeat(id *int) (int, error) {
	if id == nil {
		return 0, validation("seatId is required")
	}
	return *id, nil
}
