package world

import (
	"context"
	"errors"
	"testing"

	"voxelcolony.ai/internal/protocol"
	"voxelcolony.ai/internal/sim/geom"
	"voxelcolony.ai/internal/sim/material"
	"voxelcolony.ai/internal/sim/terrain"
	"voxelcolony.ai/internal/sim/tuning"
	"voxelcolony.ai/internal/sim/unit"
)

type recordingLogger struct {
	entries []TickLogEntry
}

func (r *recordingLogger) WriteTick(e TickLogEntry) error {
	r.entries = append(r.entries, e)
	return nil
}

func newWorld(t *testing.T, tun tuning.Tuning, x, y, z int) *World {
	t.Helper()
	w, err := New(WorldConfig{ID: "test", SizeX: x, SizeY: y, SizeZ: z, Seed: 42}, tun)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	return w
}

func eventsOf(entries []TickLogEntry, typ string) []protocol.Event {
	var out []protocol.Event
	for _, e := range entries {
		for _, ev := range e.Events {
			if ev.Type() == typ {
				out = append(out, ev)
			}
		}
	}
	return out
}

func TestAdvanceRejectsBadTick(t *testing.T) {
	w := newWorld(t, tuning.Defaults(), 2, 2, 2)
	for _, dt := range []float64{0, -0.1, 0.21} {
		if err := w.Advance(dt); !errors.Is(err, ErrBadTick) {
			t.Fatalf("dt=%v: expected ErrBadTick, got %v", dt, err)
		}
	}
	if w.CurrentTick() != 0 {
		t.Fatalf("rejected ticks advanced the clock")
	}
	if err := w.Advance(0.2); err != nil {
		t.Fatalf("max tick rejected: %v", err)
	}
	if w.CurrentTick() != 1 || w.Time() != 0.2 {
		t.Fatalf("tick=%d time=%v", w.CurrentTick(), w.Time())
	}
}

func TestSpawnUnitAssignsFactions(t *testing.T) {
	tun := tuning.Defaults()
	tun.Groups.MaxFactions = 2
	tun.Groups.Capacity = 2
	w := newWorld(t, tun, 6, 1, 1)
	var got []int
	for i := 0; i < 4; i++ {
		u, err := w.SpawnUnit(unit.Config{Name: string(rune('a' + i)), At: geom.Cube{X: i}})
		if err != nil {
			t.Fatalf("spawn %d: %v", i, err)
		}
		got = append(got, u.Faction().ID())
	}
	if want := []int{0, 1, 0, 1}; !equalInts(got, want) {
		t.Fatalf("factions %v, want %v", got, want)
	}
	if _, err := w.SpawnUnit(unit.Config{Name: "e", At: geom.Cube{X: 4}}); !errors.Is(err, unit.ErrFactionFull) {
		t.Fatalf("expected ErrFactionFull, got %v", err)
	}
	if _, err := w.AddUnit(unit.Config{Name: "a", At: geom.Cube{X: 5}}, 0); err == nil {
		t.Fatalf("duplicate name accepted")
	}
	if _, err := w.Faction(2); !errors.Is(err, unit.ErrInvalidTarget) {
		t.Fatalf("faction beyond the limit: %v", err)
	}
}

func TestCollapseDropsAndCavesIn(t *testing.T) {
	tun := tuning.Defaults()
	tun.Terrain.CollapseDropChance = 1
	w := newWorld(t, tun, 5, 5, 5)
	column := []geom.Cube{{X: 2, Y: 2, Z: 0}, {X: 2, Y: 2, Z: 1}, {X: 2, Y: 2, Z: 2}}
	for _, c := range column {
		if err := w.Grid().Set(c, terrain.Rock); err != nil {
			t.Fatal(err)
		}
	}
	log := &recordingLogger{}
	w.SetTickLogger(log)

	if err := w.Collapse(geom.Cube{X: 2, Y: 2, Z: 3}); !errors.Is(err, ErrNotSolid) {
		t.Fatalf("collapsing air: %v", err)
	}
	if err := w.Collapse(column[0]); err != nil {
		t.Fatalf("collapse: %v", err)
	}
	if w.PendingCaveIns() != 2 {
		t.Fatalf("pending cave-ins = %d, want 2", w.PendingCaveIns())
	}
	for i := 0; i < 100 && (w.PendingCaveIns() > 0 || fallingMaterials(w) > 0); i++ {
		if err := w.Advance(0.2); err != nil {
			t.Fatal(err)
		}
	}
	for _, c := range column {
		if w.Grid().Get(c) != terrain.Air {
			t.Fatalf("%v did not collapse", c)
		}
	}
	mats := w.Materials()
	if len(mats) != 3 {
		t.Fatalf("expected three boulders, got %d", len(mats))
	}
	for _, m := range mats {
		if m.Kind() != material.Boulder || m.Cube().Z != 0 {
			t.Fatalf("unexpected material %s", m)
		}
	}
	caveIns := 0
	for _, ev := range eventsOf(log.entries, protocol.EventCollapse) {
		if ev["cause"] == "cave_in" {
			caveIns++
		}
	}
	if caveIns != 2 {
		t.Fatalf("logged %d cave-in collapses, want 2", caveIns)
	}
	if len(eventsOf(log.entries, protocol.EventMaterialLanded)) == 0 {
		t.Fatalf("no landing events")
	}
}

func fallingMaterials(w *World) int {
	n := 0
	for _, m := range w.Materials() {
		if m.Falling(w.Grid()) {
			n++
		}
	}
	return n
}

func TestDeadUnitsArePurged(t *testing.T) {
	w := newWorld(t, tuning.Defaults(), 3, 3, 3)
	ground := geom.Cube{X: 1, Y: 1, Z: 0}
	if err := w.Grid().Set(ground, terrain.Rock); err != nil {
		t.Fatal(err)
	}
	frail := unit.Attributes{Strength: 1, Agility: 1, Toughness: 1, Weight: 1}
	u, err := w.AddUnit(unit.Config{Name: "frail", At: geom.Cube{X: 1, Y: 1, Z: 1}, Attributes: frail}, 0)
	if err != nil {
		t.Fatal(err)
	}
	log := &recordingLogger{}
	w.SetTickLogger(log)
	if err := w.Collapse(ground); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20 && u.Alive(); i++ {
		if err := w.Advance(0.2); err != nil {
			t.Fatal(err)
		}
	}
	if u.Alive() {
		t.Fatalf("unit survived the fall")
	}
	if len(w.Units()) != 0 || w.Factions()[0].Len() != 0 || w.UnitByName("frail") != nil {
		t.Fatalf("dead unit still in the world")
	}
	if len(eventsOf(log.entries, protocol.EventDeath)) != 1 {
		t.Fatalf("expected one death event")
	}
}

func TestNearestQueries(t *testing.T) {
	w := newWorld(t, tuning.Defaults(), 8, 1, 1)
	if _, ok := w.NearestLog(geom.Cube{}); ok {
		t.Fatalf("found a log in an empty world")
	}
	for _, x := range []int{6, 2} {
		if _, err := w.AddMaterial(material.Log, geom.Cube{X: x}); err != nil {
			t.Fatal(err)
		}
	}
	if c, ok := w.NearestLog(geom.Cube{X: 5}); !ok || c.X != 6 {
		t.Fatalf("nearest log %v %v", c, ok)
	}
	if _, ok := w.NearestBoulder(geom.Cube{}); ok {
		t.Fatalf("found a boulder")
	}
	_ = w.Grid().Set(geom.Cube{X: 7}, terrain.Workshop)
	if c, ok := w.NearestWorkshop(geom.Cube{}); !ok || c.X != 7 {
		t.Fatalf("nearest workshop %v %v", c, ok)
	}
	m := w.MaterialAt(geom.Cube{X: 2}, material.Log)
	if err := w.RemoveMaterial(m); err != nil {
		t.Fatal(err)
	}
	if err := w.RemoveMaterial(m); !errors.Is(err, ErrNoMaterial) {
		t.Fatalf("double remove: %v", err)
	}
	if _, err := w.AddMaterial(material.Log, geom.Cube{X: 9}); !errors.Is(err, ErrNotPassable) {
		t.Fatalf("out of bounds material: %v", err)
	}
}

func TestDeterministicDigests(t *testing.T) {
	build := func() *World {
		w := newWorld(t, tuning.Defaults(), 8, 8, 3)
		for i := 0; i < 6; i++ {
			if _, err := w.SpawnUnit(unit.Config{Name: string(rune('a' + i)), At: geom.Cube{X: i, Y: i % 3}, DefaultBehaviour: true}); err != nil {
				t.Fatal(err)
			}
		}
		for x := 0; x < 8; x++ {
			_ = w.Grid().Set(geom.Cube{X: x, Y: 7}, terrain.Tree)
		}
		return w
	}
	a, b := build(), build()
	for i := 0; i < 300; i++ {
		ta, da, err := a.StepOnce(0.1)
		if err != nil {
			t.Fatal(err)
		}
		tb, db, err := b.StepOnce(0.1)
		if err != nil {
			t.Fatal(err)
		}
		if ta != tb || da != db {
			t.Fatalf("tick %d: digests diverged", ta)
		}
	}
}

func TestTickLogCarriesSpawnsAndDigest(t *testing.T) {
	w := newWorld(t, tuning.Defaults(), 4, 4, 1)
	log := &recordingLogger{}
	w.SetTickLogger(log)
	if _, err := w.SpawnUnit(unit.Config{Name: "solo", At: geom.Cube{X: 1, Y: 1}}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := w.Advance(0.1); err != nil {
			t.Fatal(err)
		}
	}
	if len(log.entries) != 3 {
		t.Fatalf("got %d entries", len(log.entries))
	}
	first := log.entries[0]
	if first.Tick != 0 || first.Digest == "" || len(eventsOf(log.entries[:1], protocol.EventSpawn)) != 1 {
		t.Fatalf("unexpected first entry %+v", first)
	}
	if log.entries[2].Tick != 2 || log.entries[2].Digest != w.Digest() {
		t.Fatalf("last entry does not match the world digest")
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRunEndsOnTickBudgetOrCancel(t *testing.T) {
	w := newWorld(t, tuning.Defaults(), 2, 2, 2)
	if err := w.Run(context.Background(), 0.2, 7); err != nil {
		t.Fatalf("run: %v", err)
	}
	if w.CurrentTick() != 7 {
		t.Fatalf("tick=%d want 7", w.CurrentTick())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Run(ctx, 0.2, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if w.CurrentTick() != 7 {
		t.Fatalf("cancelled run advanced to tick %d", w.CurrentTick())
	}
}
