package world

import (
	"fmt"

	"voxelcolony.ai/internal/protocol"
	"voxelcolony.ai/internal/sim/geom"
	"voxelcolony.ai/internal/sim/material"
	"voxelcolony.ai/internal/sim/terrain"
)

// caveIn is a solid cube cut off from the world boundary, waiting to collapse.
type caveIn struct {
	cube      geom.Cube
	remaining float64
}

// Collapse turns a solid cube into air. Trees may leave a log and rock a
// boulder. Cubes left without a connection to the boundary are scheduled to
// cave in after a random delay.
func (w *World) Collapse(c geom.Cube) error {
	return w.collapse(c, "work")
}

func (w *World) collapse(c geom.Cube, cause string) error {
	if !w.grid.Solid(c) {
		return fmt.Errorf("%w: %v", ErrNotSolid, c)
	}
	kind := w.grid.Get(c)
	if err := w.grid.Set(c, terrain.Air); err != nil {
		return err
	}
	delete(w.pending, c)
	ev := protocol.Event{"type": protocol.EventCollapse, "pos": c.ToArray(), "kind": kind.String(), "cause": cause}
	if w.rng.Float64() < w.tun.Terrain.CollapseDropChance {
		var drop material.Kind
		switch kind {
		case terrain.Tree:
			drop = material.Log
		case terrain.Rock:
			drop = material.Boulder
		}
		if drop != 0 {
			if m, err := w.AddMaterial(drop, c); err == nil {
				ev["drop"] = m.Kind().String()
			}
		}
	}
	w.Emit(ev)
	w.scheduleCaveIns()
	return nil
}

func (w *World) scheduleCaveIns() {
	for _, c := range w.grid.Unanchored() {
		if w.pending[c] {
			continue
		}
		delay := w.rng.Float64() * w.tun.Terrain.CaveInMaxDelay
		w.pending[c] = true
		w.caveIns = append(w.caveIns, caveIn{cube: c, remaining: delay})
		w.Emit(protocol.Event{"type": protocol.EventCaveInScheduled, "pos": c.ToArray(), "delay": delay})
	}
}

// advanceCaveIns counts the timers down once and collapses expired cubes in
// scheduling order. Cave-ins scheduled during this pass wait for the next one.
func (w *World) advanceCaveIns(dt float64) {
	due := w.caveIns
	w.caveIns = nil
	var keep []caveIn
	for _, ci := range due {
		if !w.pending[ci.cube] {
			continue
		}
		ci.remaining -= dt
		if ci.remaining > 0 {
			keep = append(keep, ci)
			continue
		}
		delete(w.pending, ci.cube)
		if w.grid.Solid(ci.cube) {
			_ = w.collapse(ci.cube, "cave_in")
		}
	}
	w.caveIns = append(keep, w.caveIns...)
}

// PendingCaveIns is the number of cubes waiting to collapse.
func (w *World) PendingCaveIns() int { return len(w.pending) }
