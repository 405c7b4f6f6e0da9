package unit

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"voxelcolony.ai/internal/protocol"
	"voxelcolony.ai/internal/sim/geom"
	"voxelcolony.ai/internal/sim/sched"
	"voxelcolony.ai/internal/sim/script"
	"voxelcolony.ai/internal/sim/terrain"
	"voxelcolony.ai/internal/sim/tuning"
)

func TestTaskRunsToCompletionOnUnit(t *testing.T) {
	w := newTestWorld(t, 6, 1, 1)
	u := w.spawn(t, "porter", geom.Cube{}, average)
	f := NewFaction(0, 5)
	if err := f.Add(u); err != nil {
		t.Fatal(err)
	}
	program := script.NewSequence(
		&script.Assign[script.Position]{Name: "dest", Value: script.Selected{}},
		&script.MoveTo{Target: script.ReadVariable[script.Position]{Name: "dest"}},
	)
	task := sched.NewTask("go", 3, program, script.At(geom.Cube{X: 5}), sched.Options{})
	f.Scheduler().AddTask(task)
	u.SetDefaultBehaviour(true)

	w.run(t, 0.05, 400, func() bool { return len(w.eventsOf(protocol.EventTaskFinished)) > 0 })
	if u.Cube() != (geom.Cube{X: 5}) {
		t.Fatalf("unit at %v after task", u.Cube())
	}
	if u.CurrentTask() != nil || task.Bound() || f.Scheduler().Len() != 0 {
		t.Fatalf("finished task still scheduled or bound")
	}
	if len(w.eventsOf(protocol.EventTaskBound)) != 1 {
		t.Fatalf("expected one TASK_BOUND event")
	}
}

func TestTaskThatCannotStartIsDemoted(t *testing.T) {
	w := newTestWorld(t, 3, 1, 1)
	w.fill(terrain.Rock, geom.Cube{X: 1})
	u := w.spawn(t, "digger", geom.Cube{}, average)
	f := NewFaction(0, 5)
	if err := f.Add(u); err != nil {
		t.Fatal(err)
	}
	task := sched.NewTask("into-rock", 5, &script.MoveTo{Target: script.CubeLiteral(1, 0, 0)}, script.None, sched.Options{})
	f.Scheduler().AddTask(task)
	u.SetDefaultBehaviour(true)
	if err := u.Advance(0.05); err != nil {
		t.Fatal(err)
	}
	if task.Priority() != 4 || task.Bound() || !f.Scheduler().Contains(task) {
		t.Fatalf("task not demoted: priority=%d bound=%v", task.Priority(), task.Bound())
	}
	if !errors.Is(task.Err(), ErrInvalidTarget) {
		t.Fatalf("task error = %v", task.Err())
	}
	evs := w.eventsOf(protocol.EventTaskInterrupted)
	if len(evs) != 1 || evs[0]["code"] != protocol.ErrInvalidTarget {
		t.Fatalf("unexpected interrupt events %v", evs)
	}
	if u.Activity() != Idle {
		t.Fatalf("unit left idle: %s", u.Activity())
	}
}

func TestFallingInterruptsBoundTask(t *testing.T) {
	w := newTestWorld(t, 3, 3, 4)
	w.fill(terrain.Rock, geom.Cube{X: 1, Y: 1, Z: 0}, geom.Cube{X: 1, Y: 1, Z: 1})
	u := w.spawn(t, "worker", geom.Cube{X: 1, Y: 1, Z: 2}, average)
	f := NewFaction(0, 5)
	if err := f.Add(u); err != nil {
		t.Fatal(err)
	}
	task := sched.NewTask("dig", 2, &script.WorkAt{Target: script.Here{}}, script.None, sched.Options{})
	f.Scheduler().AddTask(task)
	u.SetDefaultBehaviour(true)
	if err := u.Advance(0.05); err != nil {
		t.Fatal(err)
	}
	if u.CurrentTask() != task || !u.IsWorking() {
		t.Fatalf("task not bound: %v", u)
	}
	w.fill(terrain.Air, geom.Cube{X: 1, Y: 1, Z: 1})
	if err := u.Advance(0.05); err != nil {
		t.Fatal(err)
	}
	if !u.IsFalling() || u.CurrentTask() != nil || task.Priority() != 1 {
		t.Fatalf("fall did not interrupt the task: %v priority=%d", u, task.Priority())
	}
	if err := u.Stop(); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("stop while falling: %v", err)
	}
}

func TestDisablingDefaultBehaviourInterruptsTask(t *testing.T) {
	w := newTestWorld(t, 6, 1, 1)
	u := w.spawn(t, "walker", geom.Cube{}, average)
	f := NewFaction(0, 5)
	if err := f.Add(u); err != nil {
		t.Fatal(err)
	}
	task := sched.NewTask("walk", 1, &script.MoveTo{Target: script.CubeLiteral(5, 0, 0)}, script.None, sched.Options{})
	f.Scheduler().AddTask(task)
	u.SetDefaultBehaviour(true)
	if err := u.Advance(0.05); err != nil {
		t.Fatal(err)
	}
	if !task.Bound() {
		t.Fatalf("task not bound")
	}
	u.SetDefaultBehaviour(false)
	if task.Bound() || task.Priority() != 0 {
		t.Fatalf("task still bound or not demoted")
	}
	if !u.IsMoving() {
		t.Fatalf("the walk itself continues, got %s", u.Activity())
	}
}

func TestTransitionTable(t *testing.T) {
	recovering := state{activity: Resting, rest: &restState{}}
	recovered := state{activity: Resting, rest: &restState{recovered: true}}
	cases := []struct {
		from state
		to   Activity
		ok   bool
	}{
		{state{activity: Idle}, Working, true},
		{state{activity: Moving}, Working, false},
		{state{activity: Working}, Working, false},
		{state{activity: Attacking}, Working, false},
		{state{activity: Falling}, Working, false},
		{recovering, Working, false},
		{recovered, Working, true},
		{state{activity: Idle}, Attacking, true},
		{state{activity: Moving}, Attacking, true},
		{state{activity: Working}, Attacking, true},
		{state{activity: Attacking}, Attacking, false},
		{state{activity: Falling}, Attacking, false},
		{state{activity: Idle}, Resting, true},
		{state{activity: Working}, Resting, false},
		{recovered, Resting, false},
		{state{activity: Falling}, Moving, true},
		{recovering, Moving, true},
	}
	for _, c := range cases {
		if got := canEnter(c.from, c.to); got != c.ok {
			t.Fatalf("%s -> %s: got %v want %v", c.from.activity, c.to, got, c.ok)
		}
	}
}

func TestAutonomyRules(t *testing.T) {
	if _, err := NewAutonomy([]tuning.AutonomyRule{{Behaviour: "dance", Weight: 1}}); err == nil {
		t.Fatalf("expected unknown behaviour error")
	}
	if _, err := NewAutonomy([]tuning.AutonomyRule{{Behaviour: "rest", Weight: 1, When: "hp <"}}); err == nil {
		t.Fatalf("expected compile error")
	}
	a, err := NewAutonomy([]tuning.AutonomyRule{
		{Behaviour: BehaviourRest, Weight: 1, When: "hp < max_hp"},
		{Behaviour: BehaviourFight, Weight: 1, When: "enemies_near > 0"},
		{Behaviour: BehaviourMove, Weight: 0},
	})
	if err != nil {
		t.Fatalf("autonomy: %v", err)
	}
	r := rand.New(rand.NewSource(1))
	if got, err := a.Choose(AutonomyEnv{HitPoints: 10, MaxHitPoints: 10}, r); err != nil || got != "" {
		t.Fatalf("got %q, %v; want no behaviour", got, err)
	}
	if got, _ := a.Choose(AutonomyEnv{HitPoints: 5, MaxHitPoints: 10}, r); got != BehaviourRest {
		t.Fatalf("got %q, want rest", got)
	}
	if got, _ := a.Choose(AutonomyEnv{HitPoints: 10, MaxHitPoints: 10, EnemiesNear: 1}, r); got != BehaviourFight {
		t.Fatalf("got %q, want fight", got)
	}
}

func TestAutonomousUnitKeepsOneState(t *testing.T) {
	w := newTestWorld(t, 6, 6, 2)
	a := w.spawn(t, "a", geom.Cube{X: 1, Y: 1}, average)
	b := w.spawn(t, "b", geom.Cube{X: 4, Y: 4}, average)
	if err := NewFaction(0, 5).Add(a); err != nil {
		t.Fatal(err)
	}
	if err := NewFaction(1, 5).Add(b); err != nil {
		t.Fatal(err)
	}
	a.SetDefaultBehaviour(true)
	b.SetDefaultBehaviour(true)
	ticks := 0
	w.run(t, 0.1, 2000, func() bool {
		ticks++
		return ticks > 1500 || !a.Alive() || !b.Alive()
	})
	if len(w.eventsOf(protocol.EventActivity)) == 0 {
		t.Fatalf("autonomous units never changed activity")
	}
}

func TestDistanceFieldNextStep(t *testing.T) {
	g, err := terrain.NewGrid(5, 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	for y := 0; y < 2; y++ {
		_ = g.Set(geom.Cube{X: 2, Y: y}, terrain.Rock)
		_ = g.Set(geom.Cube{X: 2, Y: y, Z: 1}, terrain.Rock)
	}
	from, dest := geom.Cube{X: 0, Y: 0}, geom.Cube{X: 4, Y: 0}
	f := ComputeDistances(g, dest, from)
	d, ok := f.Distance(from)
	if !ok || d != 4 {
		t.Fatalf("distance = %d, %v; want 4", d, ok)
	}
	next, ok := f.NextStep(from)
	if !ok {
		t.Fatalf("no next step")
	}
	if nd, _ := f.Distance(next); nd != 3 || !geom.Adjacent(from, next) {
		t.Fatalf("next step %v at distance %d", next, nd)
	}

	_ = g.Set(geom.Cube{X: 2, Y: 2}, terrain.Rock)
	_ = g.Set(geom.Cube{X: 2, Y: 2, Z: 1}, terrain.Rock)
	if ComputeDistances(g, dest, from).Reaches(from) {
		t.Fatalf("walled-off cube still reachable")
	}
	if ComputeDistances(g, geom.Cube{X: 2}, from).Reaches(from) {
		t.Fatalf("solid destination reachable")
	}
}

func TestAutonomousMoveIgnoresUnreachable(t *testing.T) {
	w := newTestWorld(t, 3, 1, 1)
	w.fill(terrain.Rock, geom.Cube{X: 1})
	auto, err := NewAutonomy([]tuning.AutonomyRule{{Behaviour: BehaviourMove, Weight: 1}})
	if err != nil {
		t.Fatal(err)
	}
	u, err := New(w, &w.tun, auto, Config{Name: "boxed", At: geom.Cube{}, Attributes: average, DefaultBehaviour: true})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 50; i++ {
		if err := u.Advance(0.1); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		if u.Activity() != Idle || u.Cube() != (geom.Cube{}) {
			t.Fatalf("tick %d: %s at %v", i, u.Activity(), u.Cube())
		}
	}
}

func TestAutonomousFailureReachesAdvance(t *testing.T) {
	w := newTestWorld(t, 3, 3, 1)
	// Indexing past the list fails only when the guard runs.
	auto, err := NewAutonomy([]tuning.AutonomyRule{{Behaviour: BehaviourRest, Weight: 1, When: "[1][z + 5] == 1"}})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	u, err := New(w, &w.tun, auto, Config{Name: "broken", At: geom.Cube{X: 1, Y: 1}, Attributes: average, DefaultBehaviour: true})
	if err != nil {
		t.Fatal(err)
	}
	err = u.Advance(0.1)
	if err == nil || !strings.Contains(err.Error(), "autonomy rest") {
		t.Fatalf("expected guard failure from Advance, got %v", err)
	}
	if u.Activity() != Idle {
		t.Fatalf("activity %s after failed choice", u.Activity())
	}
}
