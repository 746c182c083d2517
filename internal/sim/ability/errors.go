package ability

import (
	"fmt"

	"battlecode.ai/internal/protocol"
)

// Error is a precondition failure. It never changes the world; the calling
// robot simply does not act.
type Error struct {
	Code   string
	Reason string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return e.Code
	}
	return e.Code + ": " + e.Reason
}

// Is matches on Code so callers can compare against the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrBadArgument           = &Error{Code: protocol.ErrBadRequest}
	ErrNoRobot               = &Error{Code: protocol.ErrNotFound}
	ErrNotReady              = &Error{Code: protocol.ErrNotReady}
	ErrWrongType             = &Error{Code: protocol.ErrWrongType}
	ErrOffMap                = &Error{Code: protocol.ErrOffMap}
	ErrOccupied              = &Error{Code: protocol.ErrOccupied}
	ErrOutOfRange            = &Error{Code: protocol.ErrOutOfRange}
	ErrCannotBuild           = &Error{Code: protocol.ErrCannotBuild}
	ErrInsufficientInfluence = &Error{Code: protocol.ErrInsufficientInfluence}
	ErrSwamp                 = &Error{Code: protocol.ErrSwamp}
	ErrAlreadyBid            = &Error{Code: protocol.ErrAlreadyBid}
)

func fail(base *Error, format string, args ...any) *Error {
	return &Error{Code: base.Code, Reason: fmt.Sprintf(format, args...)}
}

// Code extracts the protocol code of err, or E_INTERNAL for foreign errors.
func Code(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return protocol.ErrInternal
}
