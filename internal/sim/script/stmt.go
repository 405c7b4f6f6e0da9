package script

import (
	"errors"
	"fmt"
)

// Statement is a steppable program node. Execute starts it, Advance makes
// progress, Finished reports completion. Only statements hold progress state;
// Fork returns a copy with none, so one tree can back several tasks.
type Statement interface {
	Execute(env *Env) error
	Advance(env *Env, dt float64) error
	Finished(env *Env) bool
	Fork() Statement
}

// stepEpsilon absorbs float drift when slicing dt into micro steps.
const stepEpsilon = 1e-9

// --- immediate statements ---

type Assign[T any] struct {
	Name  string
	Value Expression[T]

	done bool
}

func (s *Assign[T]) Execute(env *Env) error {
	s.done = false
	v, err := s.Value.Evaluate(env)
	if err != nil {
		return err
	}
	if err := Store(env.Unit.Variables(), s.Name, v); err != nil {
		return fmt.Errorf("assign %s: %w", s.Name, err)
	}
	s.done = true
	return nil
}

func (s *Assign[T]) Advance(*Env, float64) error { return nil }
func (s *Assign[T]) Finished(*Env) bool          { return s.done }
func (s *Assign[T]) Fork() Statement             { return &Assign[T]{Name: s.Name, Value: s.Value} }

type Print[T any] struct {
	Value Expression[T]

	done bool
}

func (s *Print[T]) Execute(env *Env) error {
	s.done = false
	v, err := s.Value.Evaluate(env)
	if err != nil {
		return err
	}
	env.world().Print(env.Unit, Format(v))
	s.done = true
	return nil
}

func (s *Print[T]) Advance(*Env, float64) error { return nil }
func (s *Print[T]) Finished(*Env) bool          { return s.done }
func (s *Print[T]) Fork() Statement             { return &Print[T]{Value: s.Value} }

// Break ends the nearest enclosing While without re-checking its condition.
type Break struct{}

func (Break) Execute(*Env) error          { return ErrBreakOutsideLoop }
func (Break) Advance(*Env, float64) error { return nil }
func (Break) Finished(*Env) bool          { return true }
func (Break) Fork() Statement             { return Break{} }

// --- composite statements ---

// Sequence runs its children in order. Advance slices dt into micro steps and
// starts the next child as soon as the current one finishes, so several
// immediate statements can complete inside a single tick.
type Sequence struct {
	Children []Statement

	cursor int
}

func NewSequence(children ...Statement) *Sequence {
	return &Sequence{Children: children}
}

func (s *Sequence) Execute(env *Env) error {
	s.cursor = 0
	if len(s.Children) == 0 {
		return nil
	}
	return s.Children[0].Execute(env)
}

func (s *Sequence) Advance(env *Env, dt float64) error {
	step := env.microStep()
	for remaining := dt; remaining > stepEpsilon && !s.Finished(env); remaining -= step {
		cur := s.Children[s.cursor]
		if err := cur.Advance(env, min(step, remaining)); err != nil {
			return err
		}
		if cur.Finished(env) && s.cursor < len(s.Children)-1 {
			s.cursor++
			if err := s.Children[s.cursor].Execute(env); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Sequence) Finished(env *Env) bool {
	n := len(s.Children)
	if n == 0 {
		return true
	}
	return s.cursor == n-1 && s.Children[n-1].Finished(env)
}

func (s *Sequence) Fork() Statement {
	children := make([]Statement, len(s.Children))
	for i, c := range s.Children {
		children[i] = c.Fork()
	}
	return &Sequence{Children: children}
}

// If evaluates its condition once, at Execute.
type If struct {
	Condition Expression[bool]
	Then      Statement
	Else      Statement // optional

	branch Statement
}

func (s *If) Execute(env *Env) error {
	s.branch = nil
	ok, err := s.Condition.Evaluate(env)
	if err != nil {
		return err
	}
	if ok {
		s.branch = s.Then
	} else {
		s.branch = s.Else
	}
	if s.branch == nil {
		return nil
	}
	return s.branch.Execute(env)
}

func (s *If) Advance(env *Env, dt float64) error {
	if s.branch == nil {
		return nil
	}
	return s.branch.Advance(env, dt)
}

func (s *If) Finished(env *Env) bool {
	return s.branch == nil || s.branch.Finished(env)
}

func (s *If) Fork() Statement {
	out := &If{Condition: s.Condition, Then: s.Then.Fork()}
	if s.Else != nil {
		out.Else = s.Else.Fork()
	}
	return out
}

// While re-evaluates its condition each time the body completes.
type While struct {
	Condition Expression[bool]
	Body      Statement

	done bool
}

func (s *While) Execute(env *Env) error {
	s.done = false
	ok, err := s.Condition.Evaluate(env)
	if err != nil {
		return err
	}
	if !ok {
		s.done = true
		return nil
	}
	return s.handle(s.Body.Execute(env))
}

func (s *While) Advance(env *Env, dt float64) error {
	step := env.microStep()
	for remaining := dt; remaining > stepEpsilon && !s.done; remaining -= step {
		if err := s.Body.Advance(env, min(step, remaining)); err != nil {
			return s.handle(err)
		}
		if !s.Body.Finished(env) {
			continue
		}
		ok, err := s.Condition.Evaluate(env)
		if err != nil {
			return err
		}
		if !ok {
			s.done = true
			return nil
		}
		if err := s.Body.Execute(env); err != nil {
			return s.handle(err)
		}
	}
	return nil
}

// handle swallows a break raised by the body.
func (s *While) handle(err error) error {
	if errors.Is(err, ErrBreakOutsideLoop) {
		s.done = true
		return nil
	}
	return err
}

func (s *While) Finished(*Env) bool { return s.done }

func (s *While) Fork() Statement {
	return &While{Condition: s.Condition, Body: s.Body.Fork()}
}
