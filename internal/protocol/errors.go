package protocol

import "errors"

const (
	// Task/program layer.
	ErrBadRequest        = "E_BAD_REQUEST"
	ErrNoTarget          = "E_NO_TARGET"
	ErrUndefinedVariable = "E_UNDEFINED_VARIABLE"
	ErrKindMismatch      = "E_KIND_MISMATCH"
	ErrBreakOutsideLoop  = "E_BREAK_OUTSIDE_LOOP"

	// Unit activity layer.
	ErrInvalidOperation  = "E_INVALID_OPERATION"
	ErrIllegalTransition = "E_ILLEGAL_TRANSITION"
	ErrInvalidTarget     = "E_INVALID_TARGET"
	ErrUnreachable       = "E_UNREACHABLE"
	ErrAlreadyThere      = "E_ALREADY_THERE"
	ErrNoResource        = "E_NO_RESOURCE"

	// Scheduling.
	ErrConflict = "E_CONFLICT"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest:        {},
	ErrNoTarget:          {},
	ErrUndefinedVariable: {},
	ErrKindMismatch:      {},
	ErrBreakOutsideLoop:  {},
	ErrInvalidOperation:  {},
	ErrIllegalTransition: {},
	ErrInvalidTarget:     {},
	ErrUnreachable:       {},
	ErrAlreadyThere:      {},
	ErrNoResource:        {},
	ErrConflict:          {},
	ErrInternal:          {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// Error is a sentinel carrying a stable code. Sentinels compare by identity;
// a parent makes errors.Is match the broader class too.
type Error struct {
	Code   string
	Msg    string
	parent error
}

func NewError(code, msg string, parent error) *Error {
	return &Error{Code: code, Msg: msg, parent: parent}
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.parent }

// CodeOf returns the code of the first coded error in err's chain, "" for nil
// and ErrInternal for uncoded errors.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrInternal
}
