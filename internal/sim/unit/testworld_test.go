package unit

import (
	"fmt"
	"math/rand"
	"testing"

	"voxelcolony.ai/internal/protocol"
	"voxelcolony.ai/internal/sim/geom"
	"voxelcolony.ai/internal/sim/material"
	"voxelcolony.ai/internal/sim/script"
	"voxelcolony.ai/internal/sim/terrain"
	"voxelcolony.ai/internal/sim/tuning"
)

// testWorld is a minimal World over a terrain grid.
type testWorld struct {
	grid   *terrain.Grid
	tun    tuning.Tuning
	rng    *rand.Rand
	units  []*Unit
	mats   []*material.Material
	events []protocol.Event
	nextID uint64
}

func newTestWorld(t *testing.T, x, y, z int) *testWorld {
	t.Helper()
	g, err := terrain.NewGrid(x, y, z)
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	return &testWorld{grid: g, tun: tuning.Defaults(), rng: rand.New(rand.NewSource(1))}
}

func (w *testWorld) Passable(c geom.Cube) bool      { return w.grid.Passable(c) }
func (w *testWorld) Solid(c geom.Cube) bool         { return w.grid.Solid(c) }
func (w *testWorld) Standable(c geom.Cube) bool     { return w.grid.Standable(c) }
func (w *testWorld) Supported(c geom.Cube) bool     { return w.grid.Supported(c) }
func (w *testWorld) InBounds(c geom.Cube) bool      { return w.grid.InBounds(c) }
func (w *testWorld) Size() (int, int, int)          { return w.grid.Size() }
func (w *testWorld) Kind(c geom.Cube) terrain.Kind  { return w.grid.Get(c) }
func (w *testWorld) Rand() *rand.Rand               { return w.rng }
func (w *testWorld) Emit(ev protocol.Event)         { w.events = append(w.events, ev) }
func (w *testWorld) Print(a script.Actor, m string) {}

func (w *testWorld) nearest(from geom.Cube, k material.Kind) (geom.Cube, bool) {
	for _, m := range w.mats {
		if m.Kind() == k {
			return m.Cube(), true
		}
	}
	return geom.Cube{}, false
}

func (w *testWorld) NearestLog(from geom.Cube) (geom.Cube, bool) {
	return w.nearest(from, material.Log)
}

func (w *testWorld) NearestBoulder(from geom.Cube) (geom.Cube, bool) {
	return w.nearest(from, material.Boulder)
}

func (w *testWorld) NearestWorkshop(geom.Cube) (geom.Cube, bool) { return geom.Cube{}, false }

func (w *testWorld) Actors() []script.Actor {
	var out []script.Actor
	for _, u := range w.units {
		if u.Alive() {
			out = append(out, u)
		}
	}
	return out
}

func (w *testWorld) MaterialAt(c geom.Cube, k material.Kind) *material.Material {
	for _, m := range w.mats {
		if m.Kind() == k && m.Cube() == c {
			return m
		}
	}
	return nil
}

func (w *testWorld) TakeMaterial(m *material.Material) error {
	for i, x := range w.mats {
		if x == m {
			w.mats = append(w.mats[:i], w.mats[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("material %d not in world", m.ID())
}

func (w *testWorld) PutMaterial(m *material.Material, c geom.Cube) error {
	if !w.grid.Passable(c) {
		return fmt.Errorf("cannot put material in %v", c)
	}
	m.Place(c)
	w.mats = append(w.mats, m)
	return nil
}

func (w *testWorld) Collapse(c geom.Cube) error {
	if !w.grid.Solid(c) {
		return fmt.Errorf("%v is not solid", c)
	}
	return w.grid.Set(c, terrain.Air)
}

func (w *testWorld) addMaterial(k material.Kind, c geom.Cube) *material.Material {
	w.nextID++
	m := material.New(w.nextID, k, 10, c)
	w.mats = append(w.mats, m)
	return m
}

func (w *testWorld) spawn(t *testing.T, name string, at geom.Cube, attrs Attributes) *Unit {
	t.Helper()
	u, err := New(w, &w.tun, nil, Config{Name: name, At: at, Attributes: attrs})
	if err != nil {
		t.Fatalf("spawn %s: %v", name, err)
	}
	w.units = append(w.units, u)
	return u
}

func (w *testWorld) fill(k terrain.Kind, cubes ...geom.Cube) {
	for _, c := range cubes {
		_ = w.grid.Set(c, k)
	}
}

// run advances every unit until done reports true or the budget runs out.
func (w *testWorld) run(t *testing.T, dt float64, maxTicks int, done func() bool) int {
	t.Helper()
	for i := 0; i < maxTicks; i++ {
		if done() {
			return i
		}
		for _, u := range w.units {
			if err := u.Advance(dt); err != nil {
				t.Fatalf("advance %s: %v", u.Name(), err)
			}
			assertOneState(t, u)
		}
	}
	if !done() {
		t.Fatalf("condition not reached after %d ticks", maxTicks)
	}
	return maxTicks
}

func (w *testWorld) eventsOf(typ string) []protocol.Event {
	var out []protocol.Event
	for _, ev := range w.events {
		if ev.Type() == typ {
			out = append(out, ev)
		}
	}
	return out
}

// assertOneState checks that exactly the transient data of the current
// activity is present.
func assertOneState(t *testing.T, u *Unit) {
	t.Helper()
	s := u.st
	want := map[Activity]bool{
		Moving:    s.move != nil,
		Working:   s.work != nil,
		Attacking: s.attack != nil,
		Resting:   s.rest != nil,
		Falling:   s.fall != nil,
	}
	for a, set := range want {
		if set != (a == s.activity) {
			t.Fatalf("%s: activity %s with %s data set=%v", u.Name(), s.activity, a, set)
		}
	}
}

var average = Attributes{Strength: 50, Agility: 50, Toughness: 50, Weight: 50}
