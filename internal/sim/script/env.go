package script

import (
	"fmt"

	"voxelcolony.ai/internal/protocol"
	"voxelcolony.ai/internal/sim/geom"
)

var (
	// ErrNoTarget is returned when a none value is used where a target is required.
	ErrNoTarget = protocol.NewError(protocol.ErrNoTarget, "no applicable target", nil)
	// ErrInvalidOperation is the class of every command an Actor refuses.
	ErrInvalidOperation = protocol.NewError(protocol.ErrInvalidOperation, "invalid operation", nil)
	// ErrAlreadyThere is returned by Actor.MoveTo when the actor already occupies the destination.
	ErrAlreadyThere = protocol.NewError(protocol.ErrAlreadyThere, "already at destination", ErrInvalidOperation)
	// ErrBreakOutsideLoop escapes to the task when break runs without an enclosing while.
	ErrBreakOutsideLoop = protocol.NewError(protocol.ErrBreakOutsideLoop, "break outside of a loop", nil)
)

// DefaultMicroStep is the granularity used by compound statements when the
// environment does not specify one.
const DefaultMicroStep = 0.001

// Actor is a unit as seen by scripts.
type Actor interface {
	Name() string
	Cube() geom.Cube
	Alive() bool
	Carrying() bool
	IsFriend(other Actor) bool
	World() World
	Variables() *Variables

	MoveTo(target geom.Cube) error
	Work(target geom.Cube) error
	Follow(other Actor) error
	Attack(other Actor) error

	IsMoving() bool
	IsWorking() bool
	IsAttacking() bool
}

// World holds the read-only queries scripts may issue.
type World interface {
	Passable(c geom.Cube) bool
	Solid(c geom.Cube) bool
	Standable(c geom.Cube) bool
	NearestLog(from geom.Cube) (geom.Cube, bool)
	NearestBoulder(from geom.Cube) (geom.Cube, bool)
	NearestWorkshop(from geom.Cube) (geom.Cube, bool)
	// Actors returns every live actor in a stable order.
	Actors() []Actor
	Print(a Actor, msg string)
}

// Env is the evaluation context of a running task.
type Env struct {
	Unit      Actor
	Selected  Position
	MicroStep float64
}

func (e *Env) microStep() float64 {
	if e.MicroStep > 0 {
		return e.MicroStep
	}
	return DefaultMicroStep
}

func (e *Env) world() World { return e.Unit.World() }

// Position is a cube coordinate or the sentinel none.
type Position struct {
	cube geom.Cube
	set  bool
}

// None is the position sentinel meaning "no applicable target".
var None = Position{}

func At(c geom.Cube) Position { return Position{cube: c, set: true} }

func (p Position) Cube() (geom.Cube, bool) { return p.cube, p.set }

func (p Position) IsNone() bool { return !p.set }

func (p Position) String() string {
	if !p.set {
		return "none"
	}
	return fmt.Sprintf("(%d, %d, %d)", p.cube.X, p.cube.Y, p.cube.Z)
}

// required unwraps p or fails with ErrNoTarget.
func (p Position) required(what string) (geom.Cube, error) {
	if !p.set {
		return geom.Cube{}, fmt.Errorf("%s: %w", what, ErrNoTarget)
	}
	return p.cube, nil
}

// Format renders a script value for print statements.
func Format(v any) string {
	switch x := v.(type) {
	case bool:
		if x {
			return "true"
		}
		return "false"
	case Position:
		return x.String()
	case Actor:
		if x == nil {
			return "none"
		}
		return x.Name()
	case nil:
		return "none"
	default:
		return fmt.Sprint(x)
	}
}
