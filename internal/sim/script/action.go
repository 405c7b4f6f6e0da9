package script

import (
	"errors"
	"fmt"
)

// Action statements resolve their target once, issue a single command to the
// unit and then only watch the unit's activity. Timing belongs to the unit.

type MoveTo struct {
	Target Expression[Position]

	issued bool
}

func (s *MoveTo) Execute(env *Env) error {
	s.issued = false
	c, err := evalCube(env, s.Target, "move to")
	if err != nil {
		return err
	}
	if err := env.Unit.MoveTo(c); err != nil && !errors.Is(err, ErrAlreadyThere) {
		return err
	}
	s.issued = true
	return nil
}

func (s *MoveTo) Advance(*Env, float64) error { return nil }

func (s *MoveTo) Finished(env *Env) bool { return s.issued && !env.Unit.IsMoving() }

func (s *MoveTo) Fork() Statement { return &MoveTo{Target: s.Target} }

type WorkAt struct {
	Target Expression[Position]

	issued bool
}

func (s *WorkAt) Execute(env *Env) error {
	s.issued = false
	c, err := evalCube(env, s.Target, "work at")
	if err != nil {
		return err
	}
	if err := env.Unit.Work(c); err != nil {
		return err
	}
	s.issued = true
	return nil
}

func (s *WorkAt) Advance(*Env, float64) error { return nil }

func (s *WorkAt) Finished(env *Env) bool { return s.issued && !env.Unit.IsWorking() }

func (s *WorkAt) Fork() Statement { return &WorkAt{Target: s.Target} }

type Follow struct {
	Target Expression[Actor]

	issued bool
}

func (s *Follow) Execute(env *Env) error {
	s.issued = false
	a, err := evalActor(env, s.Target, "follow")
	if err != nil {
		return err
	}
	if err := env.Unit.Follow(a); err != nil && !errors.Is(err, ErrAlreadyThere) {
		return err
	}
	s.issued = true
	return nil
}

func (s *Follow) Advance(*Env, float64) error { return nil }

func (s *Follow) Finished(env *Env) bool { return s.issued && !env.Unit.IsMoving() }

func (s *Follow) Fork() Statement { return &Follow{Target: s.Target} }

type Attack struct {
	Target Expression[Actor]

	issued bool
}

func (s *Attack) Execute(env *Env) error {
	s.issued = false
	a, err := evalActor(env, s.Target, "attack")
	if err != nil {
		return err
	}
	if err := env.Unit.Attack(a); err != nil {
		return err
	}
	s.issued = true
	return nil
}

func (s *Attack) Advance(*Env, float64) error { return nil }

func (s *Attack) Finished(env *Env) bool { return s.issued && !env.Unit.IsAttacking() }

func (s *Attack) Fork() Statement { return &Attack{Target: s.Target} }

func evalActor(env *Env, e Expression[Actor], what string) (Actor, error) {
	a, err := e.Evaluate(env)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("%s: %w", what, ErrNoTarget)
	}
	return a, nil
}
