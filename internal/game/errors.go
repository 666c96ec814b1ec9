package game

import (
	"errors"
	"fmt"
)

var (
	ErrSeatNotFound      = errors.New("seat not found")
	ErrSeatUnoccupied    = errors.New("seat is not occupied")
	ErrUserAlreadySeated = errors.New("user already holds another seat")
	ErrVoteAlreadyOpen   = errors.New("a vote is already open")
	ErrVoteNotOpen       = errors.New("no vote is open")
	ErrNoGhostVote       = errors.New("dead seat has no ghost vote left")
	ErrVoteLocked        = errors.New("seat vote is locked")
	ErrGameOver          = errors.New("game is over")
	ErrWinnerRequired    = errors.New("winner is required")
	ErrReminderNotFound  = errors.New("reminder not found")
	ErrUnknownScript     = errors.New("unknown script")
	ErrUnknownRole       = errors.New("unknown role")
	ErrNotNight          = errors.New("not night")
	ErrEmptyStatus       = errors.New("status is empty")
	ErrRoleMismatch      = errors.New("role does not match seat")
	ErrNoRole            = errors.New("seat has no role")
	ErrEmptyMessage      = errors.New("message is empty")
	ErrMessageTooLong    = fmt.Errorf("message exceeds %d characters", MaxMessageLength)
)

// PhaseTransitionError is returned when a transition is not reachable from
// the current phase. State is left unchanged.
type PhaseTransitionError struct {
	From Phase
	To   Phase
}

func (e *PhaseTransitionError) Error() string {
	return fmt.Sprintf("illegal phase transition %s -> %s", e.From, e.To)
}

// NominationReason classifies why a nomination is not eligible.
type NominationReason string

const (
	ReasonNotDay             NominationReason = "not_day"
	ReasonExecutionDone      NominationReason = "execution_done"
	ReasonNominatorEmpty     NominationReason = "nominator_empty"
	ReasonNominatorDead      NominationReason = "nominator_dead"
	ReasonQuotaExceeded      NominationReason = "quota_exceeded"
	ReasonNomineeEmpty       NominationReason = "nominee_empty"
	ReasonNomineeDead        NominationReason = "nominee_dead"
	ReasonAlreadyNominated   NominationReason = "already_nominated"
	ReasonSeatOutOfRange     NominationReason = "seat_out_of_range"
	ReasonEligibilityUnknown NominationReason = "eligibility_unknown"
)

// NominationError describes a failed eligibility check. PreviousNominee is
// set when the nominator has already used their quota today.
type NominationError struct {
	Reason          NominationReason
	PreviousNominee *int
}

func (e *NominationError) Error() string {
	if e.PreviousNominee != nil {
		return fmt.Sprintf("nomination not allowed: %s (previous nominee: seat %d)", e.Reason, *e.PreviousNominee+1)
	}
	return fmt.Sprintf("nomination not allowed: %s", e.Reason)
}

// UnsupportedSeatCountError is returned for player counts outside the
// distribution table.
type UnsupportedSeatCountError struct {
	Count int
}

func (e *UnsupportedSeatCountError) Error() string {
	return fmt.Sprintf("unsupported seat count %d (want %d-%d)", e.Count, minPlayers, maxPlayers)
}

// CompositionError is returned when a script does not have enough roles of a
// team to fill the table.
type CompositionError struct {
	Team Team
	Want int
	Have int
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("script has %d %s roles, need %d", e.Have, e.Team, e.Want)
}
