package unit

import (
	"fmt"

	"voxelcolony.ai/internal/protocol"
	"voxelcolony.ai/internal/sim/geom"
	"voxelcolony.ai/internal/sim/script"
)

// Activity is the single state a unit is in.
type Activity uint8

const (
	Idle Activity = iota
	Moving
	Working
	Attacking
	Resting
	Falling
)

func (a Activity) String() string {
	switch a {
	case Idle:
		return "idle"
	case Moving:
		return "moving"
	case Working:
		return "working"
	case Attacking:
		return "attacking"
	case Resting:
		return "resting"
	case Falling:
		return "falling"
	default:
		return fmt.Sprintf("activity(%d)", uint8(a))
	}
}

var (
	ErrInvalidOperation  = script.ErrInvalidOperation
	ErrAlreadyThere      = script.ErrAlreadyThere
	ErrIllegalTransition = protocol.NewError(protocol.ErrIllegalTransition, "illegal state transition", ErrInvalidOperation)
	ErrInvalidTarget     = protocol.NewError(protocol.ErrInvalidTarget, "invalid target", ErrInvalidOperation)
	ErrUnreachable       = protocol.NewError(protocol.ErrUnreachable, "destination unreachable", ErrInvalidOperation)
	ErrFactionFull       = protocol.NewError(protocol.ErrConflict, "faction is full", ErrInvalidOperation)
	ErrDead              = protocol.NewError(protocol.ErrInvalidTarget, "unit is dead", ErrInvalidOperation)
)

// timeEpsilon absorbs float drift in countdowns fed by fixed tick sizes.
const timeEpsilon = 1e-9

// state is the current activity with its transient data. Only the pointer
// matching activity is set; entering a state replaces the whole value.
type state struct {
	activity    Activity
	orientation float64

	move   *moveState
	work   *workState
	attack *attackState
	rest   *restState
	fall   *fallState
}

type moveState struct {
	target    geom.Cube
	from      geom.Cube
	next      geom.Cube
	hasNext   bool
	follow    *Unit
	sprinting bool
}

type workState struct {
	target    geom.Cube
	remaining float64
}

type attackState struct {
	target    *Unit
	remaining float64
	resume    state
}

type restState struct {
	elapsed   float64
	hpGained  float64
	recovered bool
	resume    state
}

type fallState struct {
	fromZ int
}

// resumable is s with states that cannot be resumed replaced by Idle.
func (s state) resumable() state {
	if s.activity == Attacking || s.activity == Falling {
		return state{activity: Idle, orientation: s.orientation}
	}
	return s
}

// canEnter reports whether the transition table allows entering next from cur.
func canEnter(cur state, next Activity) bool {
	switch next {
	case Working:
		switch cur.activity {
		case Falling, Working, Moving, Attacking:
			return false
		case Resting:
			return !cur.rest.recovering()
		}
		return true
	case Attacking:
		return cur.activity != Falling && cur.activity != Attacking
	case Resting:
		return cur.activity == Idle
	default:
		return true
	}
}

func transitionError(cur, next Activity) error {
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, cur, next)
}
