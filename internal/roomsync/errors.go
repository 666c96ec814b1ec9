package roomsync

import (
	"errors"
	"fmt"
)

// Kind classifies request-level and operation-level failures.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthorization
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindConflict:
		return "conflict"
	}
	return "internal"
}

// Error is a classified sync error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func unauthorized(msg string, err error) *Error {
	return &Error{Kind: KindAuthorization, Message: msg, Err: err}
}

func internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf returns the kind of err, KindInternal if it is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomExists       = errors.New("room already exists")
	ErrVersionConflict  = errors.New("room version changed")
	ErrRetriesExhausted = &Error{Kind: KindConflict, Message: "too many concurrent updates, retry later"}

	ErrSeatOwnership  = errors.New("seat belongs to another user")
	ErrNoSeat         = errors.New("caller has no seat in this room")
	ErrNotStoryteller = errors.New("only the storyteller may do this")
)
