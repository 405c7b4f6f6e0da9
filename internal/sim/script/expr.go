package script

import (
	"fmt"

	"voxelcolony.ai/internal/sim/geom"
)

// Expression is a side-effect free query evaluated against a running task.
type Expression[T any] interface {
	Evaluate(env *Env) (T, error)
}

// Literal always evaluates to Value.
type Literal[T any] struct {
	Value T
}

func (l Literal[T]) Evaluate(*Env) (T, error) { return l.Value, nil }

func True() Literal[bool]  { return Literal[bool]{Value: true} }
func False() Literal[bool] { return Literal[bool]{Value: false} }

// CubeLiteral is a constant cube coordinate.
func CubeLiteral(x, y, z int) Literal[Position] {
	return Literal[Position]{Value: At(geom.Cube{X: x, Y: y, Z: z})}
}

// --- boolean connectives ---

type Not struct {
	Operand Expression[bool]
}

func (e Not) Evaluate(env *Env) (bool, error) {
	v, err := e.Operand.Evaluate(env)
	return !v, err
}

// And does not evaluate Right when Left is false.
type And struct {
	Left, Right Expression[bool]
}

func (e And) Evaluate(env *Env) (bool, error) {
	l, err := e.Left.Evaluate(env)
	if err != nil || !l {
		return false, err
	}
	return e.Right.Evaluate(env)
}

// Or does not evaluate Right when Left is true.
type Or struct {
	Left, Right Expression[bool]
}

func (e Or) Evaluate(env *Env) (bool, error) {
	l, err := e.Left.Evaluate(env)
	if err != nil {
		return false, err
	}
	if l {
		return true, nil
	}
	return e.Right.Evaluate(env)
}

// --- position predicates ---

type IsSolid struct {
	Position Expression[Position]
}

func (e IsSolid) Evaluate(env *Env) (bool, error) {
	c, err := evalCube(env, e.Position, "solid")
	if err != nil {
		return false, err
	}
	return env.world().Solid(c), nil
}

type IsPassable struct {
	Position Expression[Position]
}

func (e IsPassable) Evaluate(env *Env) (bool, error) {
	c, err := evalCube(env, e.Position, "passable")
	if err != nil {
		return false, err
	}
	return env.world().Passable(c), nil
}

func evalCube(env *Env, e Expression[Position], what string) (geom.Cube, error) {
	p, err := e.Evaluate(env)
	if err != nil {
		return geom.Cube{}, err
	}
	return p.required(what)
}

// --- unit predicates; a none unit is never alive, friendly, hostile or carrying ---

type IsFriend struct {
	Unit Expression[Actor]
}

func (e IsFriend) Evaluate(env *Env) (bool, error) {
	u, err := e.Unit.Evaluate(env)
	if err != nil || u == nil {
		return false, err
	}
	return env.Unit.IsFriend(u), nil
}

type IsEnemy struct {
	Unit Expression[Actor]
}

func (e IsEnemy) Evaluate(env *Env) (bool, error) {
	u, err := e.Unit.Evaluate(env)
	if err != nil || u == nil {
		return false, err
	}
	return !env.Unit.IsFriend(u), nil
}

type IsAlive struct {
	Unit Expression[Actor]
}

func (e IsAlive) Evaluate(env *Env) (bool, error) {
	u, err := e.Unit.Evaluate(env)
	if err != nil || u == nil {
		return false, err
	}
	return u.Alive(), nil
}

type CarriesItem struct {
	Unit Expression[Actor]
}

func (e CarriesItem) Evaluate(env *Env) (bool, error) {
	u, err := e.Unit.Evaluate(env)
	if err != nil || u == nil {
		return false, err
	}
	return u.Carrying(), nil
}

// --- positions ---

type Here struct{}

func (Here) Evaluate(env *Env) (Position, error) { return At(env.Unit.Cube()), nil }

// Selected is the cube the task was created for, or none.
type Selected struct{}

func (Selected) Evaluate(env *Env) (Position, error) { return env.Selected, nil }

type PositionOf struct {
	Unit Expression[Actor]
}

func (e PositionOf) Evaluate(env *Env) (Position, error) {
	u, err := e.Unit.Evaluate(env)
	if err != nil || u == nil {
		return None, err
	}
	return At(u.Cube()), nil
}

// NextTo picks the standable neighbour of Position closest to the unit.
type NextTo struct {
	Position Expression[Position]
}

func (e NextTo) Evaluate(env *Env) (Position, error) {
	p, err := e.Position.Evaluate(env)
	if err != nil || p.IsNone() {
		return None, err
	}
	w := env.world()
	from := env.Unit.Cube()
	best := None
	bestDist := 0
	for _, n := range geom.Neighbours26(p.cube) {
		if !w.Standable(n) {
			continue
		}
		d := geom.Manhattan(from, n)
		if best.IsNone() || d < bestDist {
			best, bestDist = At(n), d
		}
	}
	return best, nil
}

type LogPosition struct{}

func (LogPosition) Evaluate(env *Env) (Position, error) {
	return optional(env.world().NearestLog(env.Unit.Cube())), nil
}

type BoulderPosition struct{}

func (BoulderPosition) Evaluate(env *Env) (Position, error) {
	return optional(env.world().NearestBoulder(env.Unit.Cube())), nil
}

type WorkshopPosition struct{}

func (WorkshopPosition) Evaluate(env *Env) (Position, error) {
	return optional(env.world().NearestWorkshop(env.Unit.Cube())), nil
}

func optional(c geom.Cube, ok bool) Position {
	if !ok {
		return None
	}
	return At(c)
}

// --- units ---

type This struct{}

func (This) Evaluate(env *Env) (Actor, error) { return env.Unit, nil }

// Any is the nearest other live unit.
type Any struct{}

func (Any) Evaluate(env *Env) (Actor, error) {
	return nearestActor(env, func(Actor) bool { return true }), nil
}

type Friend struct{}

func (Friend) Evaluate(env *Env) (Actor, error) {
	return nearestActor(env, env.Unit.IsFriend), nil
}

type Enemy struct{}

func (Enemy) Evaluate(env *Env) (Actor, error) {
	return nearestActor(env, func(a Actor) bool { return !env.Unit.IsFriend(a) }), nil
}

func nearestActor(env *Env, keep func(Actor) bool) Actor {
	from := env.Unit.Cube()
	var best Actor
	bestDist := 0
	for _, a := range env.world().Actors() {
		if a == env.Unit || !a.Alive() || !keep(a) {
			continue
		}
		d := geom.Manhattan(from, a.Cube())
		if best == nil || d < bestDist {
			best, bestDist = a, d
		}
	}
	return best
}

// ReadVariable reads a value previously stored by Assign on this unit.
type ReadVariable[T any] struct {
	Name string
}

func (e ReadVariable[T]) Evaluate(env *Env) (T, error) {
	v, err := Load[T](env.Unit.Variables(), e.Name)
	if err != nil {
		return v, fmt.Errorf("read %s: %w", e.Name, err)
	}
	return v, nil
}
