package protocol

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrBadRequest,
		ErrNoTarget,
		ErrUndefinedVariable,
		ErrKindMismatch,
		ErrBreakOutsideLoop,
		ErrInvalidOperation,
		ErrIllegalTransition,
		ErrInvalidTarget,
		ErrUnreachable,
		ErrAlreadyThere,
		ErrNoResource,
		ErrConflict,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestCodeOf(t *testing.T) {
	base := NewError(ErrInvalidOperation, "invalid operation", nil)
	sub := NewError(ErrUnreachable, "unreachable", base)
	wrapped := fmt.Errorf("move to (1, 2, 3): %w", sub)

	if got := CodeOf(wrapped); got != ErrUnreachable {
		t.Fatalf("CodeOf = %q", got)
	}
	if !errors.Is(wrapped, base) || !errors.Is(wrapped, sub) {
		t.Fatalf("expected wrapped error to match both sentinels")
	}
	if errors.Is(base, sub) {
		t.Fatalf("parent must not match child")
	}
	if CodeOf(nil) != "" || CodeOf(errors.New("boom")) != ErrInternal {
		t.Fatalf("unexpected codes for nil/uncoded errors")
	}
}
