package sched

import (
	"errors"
	"testing"

	"voxelcolony.ai/internal/protocol"
	"voxelcolony.ai/internal/sim/geom"
	"voxelcolony.ai/internal/sim/script"
)

type stubMember struct {
	name   string
	cube   geom.Cube
	sched  *Scheduler
	task   *Task
	vars   *script.Variables
	moving bool
}

func (m *stubMember) Name() string                 { return m.name }
func (m *stubMember) Cube() geom.Cube              { return m.cube }
func (m *stubMember) Alive() bool                  { return true }
func (m *stubMember) Carrying() bool               { return false }
func (m *stubMember) IsFriend(script.Actor) bool   { return true }
func (m *stubMember) World() script.World          { return nil }
func (m *stubMember) Variables() *script.Variables { return m.vars }
func (m *stubMember) MoveTo(c geom.Cube) error     { m.moving = c != m.cube; return nil }
func (m *stubMember) Work(geom.Cube) error         { return nil }
func (m *stubMember) Follow(script.Actor) error    { return nil }
func (m *stubMember) Attack(script.Actor) error    { return nil }
func (m *stubMember) IsMoving() bool               { return m.moving }
func (m *stubMember) IsWorking() bool              { return false }
func (m *stubMember) IsAttacking() bool            { return false }
func (m *stubMember) Scheduler() *Scheduler        { return m.sched }
func (m *stubMember) CurrentTask() *Task           { return m.task }
func (m *stubMember) BindTask(t *Task)             { m.task = t }

func newMember(s *Scheduler) *stubMember {
	return &stubMember{name: "bob", sched: s, vars: script.NewVariables()}
}

func moveTask(name string, priority int) *Task {
	return NewTask(name, priority, &script.MoveTo{Target: script.Selected{}}, script.At(geom.Cube{X: 2}), Options{})
}

func order(s *Scheduler) []string {
	var out []string
	for t := range s.Tasks() {
		out = append(out, t.Name())
	}
	return out
}

func TestAddRemoveContains(t *testing.T) {
	s := NewScheduler("f0")
	a := moveTask("a", 5)
	s.AddTask(a)
	if !s.Contains(a) || s.Len() != 1 {
		t.Fatalf("expected a in scheduler")
	}
	s.AddTask(a)
	if s.Len() != 1 {
		t.Fatalf("duplicate add changed the scheduler")
	}
	s.RemoveTask(a)
	if s.Contains(a) || len(a.Schedulers()) != 0 {
		t.Fatalf("expected a removed with its back-reference")
	}
	s.RemoveTask(a)
}

func TestEqualPrioritiesStayDistinct(t *testing.T) {
	s := NewScheduler("f0")
	a, b, c := moveTask("a", 1), moveTask("b", 1), moveTask("c", 3)
	s.AddTask(b)
	s.AddTask(a)
	s.AddTask(c)
	if s.Len() != 3 {
		t.Fatalf("expected 3 tasks, got %d", s.Len())
	}
	got := order(s)
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestHighestPriorityTaskSkipsBound(t *testing.T) {
	s := NewScheduler("f0")
	low, high := moveTask("low", 1), moveTask("high", 9)
	s.AddTask(low)
	s.AddTask(high)
	m := newMember(s)
	if got := s.HighestPriorityTask(); got != high {
		t.Fatalf("expected high, got %v", got.Name())
	}
	if !high.Execute(m) {
		t.Fatalf("execute failed: %v", high.Err())
	}
	if got := s.HighestPriorityTask(); got != low {
		t.Fatalf("expected low while high is bound")
	}
	if !low.Execute(newMember(s)) {
		t.Fatalf("execute low failed")
	}
	if s.HighestPriorityTask() != nil {
		t.Fatalf("expected none when all tasks are bound")
	}
}

func TestInterruptLowersPriorityEverywhere(t *testing.T) {
	s1, s2 := NewScheduler("f0"), NewScheduler("f1")
	a, b := moveTask("a", 5), moveTask("b", 5)
	for _, s := range []*Scheduler{s1, s2} {
		s.AddTask(a)
		s.AddTask(b)
	}
	m := newMember(s1)
	if !a.Execute(m) || a.Unit() != Member(m) || m.task != a {
		t.Fatalf("expected a bound to m")
	}
	a.Interrupt()
	if a.Priority() != 4 {
		t.Fatalf("priority = %d, want 4", a.Priority())
	}
	if a.Bound() || m.task != nil {
		t.Fatalf("interrupt must unbind")
	}
	for _, s := range []*Scheduler{s1, s2} {
		if !s.Contains(a) {
			t.Fatalf("interrupted task left scheduler %s", s.Owner())
		}
		if got := order(s); got[0] != "b" || got[1] != "a" {
			t.Fatalf("scheduler %s order = %v", s.Owner(), got)
		}
	}
}

func TestFinishIsPermanentAndIdempotent(t *testing.T) {
	s1, s2 := NewScheduler("f0"), NewScheduler("f1")
	a := moveTask("a", 5)
	s1.AddTask(a)
	s2.AddTask(a)
	m := newMember(s1)
	a.Execute(m)
	a.Finish()
	a.Finish()
	if s1.Contains(a) || s2.Contains(a) {
		t.Fatalf("finished task still scheduled")
	}
	if !a.Finished() || a.Bound() || m.task != nil {
		t.Fatalf("finished task must be unbound")
	}
	s1.AddTask(a)
	if s1.Contains(a) {
		t.Fatalf("finished task re-added")
	}
	a.Interrupt()
	if a.Priority() != 5 {
		t.Fatalf("interrupting a finished task changed its priority")
	}
}

func TestExecuteRequiresGroupScheduler(t *testing.T) {
	s, other := NewScheduler("f0"), NewScheduler("f1")
	a := moveTask("a", 1)
	s.AddTask(a)
	if a.Execute(newMember(other)) {
		t.Fatalf("bound a unit of another group")
	}
	if a.Execute(newMember(nil)) {
		t.Fatalf("bound a unit without group")
	}
	m := newMember(s)
	if !a.Execute(m) {
		t.Fatalf("expected bind")
	}
	if a.Execute(newMember(s)) {
		t.Fatalf("bound twice")
	}
}

func TestExecuteResetsVariablesAndFailsCleanly(t *testing.T) {
	s := NewScheduler("f0")
	m := newMember(s)
	if err := script.Store(m.vars, "stale", true); err != nil {
		t.Fatal(err)
	}
	bad := NewTask("bad", 1, &script.MoveTo{Target: script.Selected{}}, script.None, Options{})
	s.AddTask(bad)
	if bad.Execute(m) {
		t.Fatalf("expected failure on none target")
	}
	if !errors.Is(bad.Err(), script.ErrNoTarget) {
		t.Fatalf("unexpected error %v", bad.Err())
	}
	if bad.Bound() || m.task != nil {
		t.Fatalf("failed execute must leave the task unbound")
	}
	if m.vars.Has("stale") {
		t.Fatalf("variables not reset at task start")
	}
}

func TestTaskFinishesWithProgram(t *testing.T) {
	s := NewScheduler("f0")
	a := moveTask("a", 1)
	s.AddTask(a)
	m := newMember(s)
	if !a.Execute(m) || !m.moving {
		t.Fatalf("expected the move to start")
	}
	if !a.Advance() || a.Finished() {
		t.Fatalf("task finished while moving")
	}
	m.cube, m.moving = geom.Cube{X: 2}, false
	if !a.Finished() {
		t.Fatalf("task should finish once the unit stops")
	}
}

func TestScheduleAndReset(t *testing.T) {
	s := NewScheduler("f0")
	a, b := moveTask("a", 3), moveTask("b", 1)
	s.AddTask(a)
	s.AddTask(b)
	m := newMember(s)
	if err := s.Schedule(b, m); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := s.Schedule(a, m); err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if b.Bound() || b.Priority() != 1 || m.task != a {
		t.Fatalf("expected b reset without penalty and a bound")
	}
	if err := s.Schedule(a, newMember(s)); !errors.Is(err, ErrTaskUnavailable) {
		t.Fatalf("expected ErrTaskUnavailable, got %v", err)
	}
	err := s.Schedule(b, newMember(NewScheduler("f1")))
	if !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
	if code := protocol.CodeOf(err); code != protocol.ErrConflict {
		t.Fatalf("code=%s want %s", code, protocol.ErrConflict)
	}
	orphan := moveTask("orphan", 1)
	if err := s.Schedule(orphan, m); !errors.Is(err, ErrTaskNotScheduled) || protocol.CodeOf(err) != protocol.ErrConflict {
		t.Fatalf("expected conflict for unscheduled task, got %v (%s)", err, protocol.CodeOf(err))
	}
	s.Reset(a)
	if a.Bound() || a.Priority() != 3 {
		t.Fatalf("reset must unbind without penalty")
	}
}

func TestReplaceAndSatisfying(t *testing.T) {
	s := NewScheduler("f0")
	a, b, c := moveTask("a", 1), moveTask("b", 2), moveTask("c", 3)
	s.AddTask(a)
	s.AddTask(b)
	s.ReplaceTask(a, c)
	if s.Contains(a) || !s.Contains(c) || s.Len() != 2 {
		t.Fatalf("replace failed: %v", order(s))
	}
	got := s.TasksSatisfying(func(t *Task) bool { return t.Priority() >= 2 })
	if len(got) != 2 || got[0] != c || got[1] != b {
		t.Fatalf("unexpected filtered view")
	}
	c.SetPriority(0)
	if o := order(s); o[0] != "b" || o[1] != "c" {
		t.Fatalf("set priority did not resort: %v", o)
	}
}
