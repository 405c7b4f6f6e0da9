package worldtest

import (
	"testing"

	"voxelcolony.ai/internal/protocol"
	"voxelcolony.ai/internal/sim/geom"
	"voxelcolony.ai/internal/sim/program"
	"voxelcolony.ai/internal/sim/sched"
	"voxelcolony.ai/internal/sim/scenario"
	"voxelcolony.ai/internal/sim/terrain"
	"voxelcolony.ai/internal/sim/tuning"
	"voxelcolony.ai/internal/sim/unit"
	"voxelcolony.ai/internal/sim/world"
)

// Harness is a small black-box test helper for driving a world via exported APIs:
// - the world is built from a scenario, so layers use the scenario map syntax
// - Step()/StepFor()/StepUntil() advance by DT through StepOnce()
// - every tick entry is kept, so tests can assert on the event stream
//
// It intentionally avoids touching world internals so tests can live outside the world package.
type Harness struct {
	T  *testing.T
	W  *world.World
	DT float64

	Log []world.TickLogEntry
}

func NewHarness(t *testing.T, s scenario.Scenario) *Harness {
	t.Helper()
	return NewHarnessWithTuning(t, s, tuning.Defaults())
}

func NewHarnessWithTuning(t *testing.T, s scenario.Scenario, tun tuning.Tuning) *Harness {
	t.Helper()
	s.Normalize()
	if err := s.Validate(); err != nil {
		t.Fatalf("scenario: %v", err)
	}
	w, err := scenario.Build(s, tun, 0)
	if err != nil {
		t.Fatalf("scenario.Build: %v", err)
	}
	h := &Harness{T: t, W: w, DT: 0.2}
	w.SetTickLogger(h)
	return h
}

// Floor returns layers with a rock floor at z=0 under the given upper layers.
func Floor(x, y int, upper ...[]string) [][]string {
	row := make([]byte, x)
	for i := range row {
		row[i] = '#'
	}
	floor := make([]string, y)
	for i := range floor {
		floor[i] = string(row)
	}
	return append([][]string{floor}, upper...)
}

func (h *Harness) WriteTick(e world.TickLogEntry) error {
	h.Log = append(h.Log, e)
	return nil
}

func (h *Harness) Step() string {
	h.T.Helper()
	_, digest, err := h.W.StepOnce(h.DT)
	if err != nil {
		h.T.Fatalf("StepOnce: %v", err)
	}
	return digest
}

func (h *Harness) StepFor(n int) {
	h.T.Helper()
	for i := 0; i < n; i++ {
		h.Step()
	}
}

// StepUntil steps until cond holds, at most max ticks. It reports whether
// cond was met.
func (h *Harness) StepUntil(max int, cond func() bool) bool {
	h.T.Helper()
	for i := 0; i < max; i++ {
		if cond() {
			return true
		}
		h.Step()
	}
	return cond()
}

func (h *Harness) Unit(name string) *unit.Unit {
	h.T.Helper()
	u := h.W.UnitByName(name)
	if u == nil {
		h.T.Fatalf("no live unit %q", name)
	}
	return u
}

// Spawn adds a unit to faction with default behaviour on.
func (h *Harness) Spawn(name string, at geom.Cube, faction int, attrs unit.Attributes) *unit.Unit {
	h.T.Helper()
	u, err := h.W.AddUnit(unit.Config{Name: name, At: at, Attributes: attrs, DefaultBehaviour: true}, faction)
	if err != nil {
		h.T.Fatalf("AddUnit %s: %v", name, err)
	}
	return u
}

// Program parses src and queues its tasks on the faction scheduler.
func (h *Harness) Program(faction int, name string, priority int, src string, selected ...geom.Cube) []*sched.Task {
	h.T.Helper()
	s, err := program.ParseStatement([]byte(src))
	if err != nil {
		h.T.Fatalf("parse %s: %v", name, err)
	}
	f, err := h.W.Faction(faction)
	if err != nil {
		h.T.Fatalf("faction %d: %v", faction, err)
	}
	tasks := program.Tasks(name, priority, s, selected, program.Options(h.W.Tuning()))
	for _, t := range tasks {
		f.Scheduler().AddTask(t)
	}
	return tasks
}

func (h *Harness) SetCube(c geom.Cube, k terrain.Kind) {
	h.T.Helper()
	if err := h.W.Grid().Set(c, k); err != nil {
		h.T.Fatalf("Set %v: %v", c, err)
	}
}

// Events returns every logged event of type typ (all types if empty) whose
// unit is name (any unit if empty), oldest first.
func (h *Harness) Events(typ, name string) []protocol.Event {
	var out []protocol.Event
	for _, e := range h.Log {
		for _, ev := range e.Events {
			if typ != "" && ev.Type() != typ {
				continue
			}
			if name != "" && ev["unit"] != name {
				continue
			}
			out = append(out, ev)
		}
	}
	return out
}

// HasEvent reports whether an event of type typ with the given field value
// was logged.
func (h *Harness) HasEvent(typ, key string, value any) bool {
	for _, ev := range h.Events(typ, "") {
		if ev[key] == value {
			return true
		}
	}
	return false
}
