package unit

import (
	"fmt"

	"voxelcolony.ai/internal/protocol"
	"voxelcolony.ai/internal/sim/geom"
	"voxelcolony.ai/internal/sim/material"
	"voxelcolony.ai/internal/sim/terrain"
)

// Work outcomes, in the order they are tried.
const (
	WorkDrop     = "DROP"
	WorkWorkshop = "WORKSHOP"
	WorkPickLog  = "PICK_LOG"
	WorkPickRock = "PICK_BOULDER"
	WorkCollapse = "COLLAPSE"
	WorkNothing  = "NOTHING"
)

// Work starts a job on target, which must be the unit's cube or a neighbour.
func (u *Unit) Work(target geom.Cube) error {
	if !canEnter(u.st, Working) {
		return transitionError(u.st.activity, Working)
	}
	if !u.world.InBounds(target) || !geom.AdjacentOrSame(u.Cube(), target) {
		return fmt.Errorf("%w: cannot work at %v from %v", ErrInvalidTarget, target, u.Cube())
	}
	u.enter(state{
		activity:    Working,
		orientation: u.st.orientation,
		work:        &workState{target: target, remaining: u.WorkDuration()},
	})
	u.face(target)
	return nil
}

// WorkDuration is DurationNumerator / strength.
func (u *Unit) WorkDuration() float64 {
	return u.tun.Work.DurationNumerator / float64(u.attrs.Strength)
}

func (u *Unit) tickWorking(dt float64) {
	w := u.st.work
	w.remaining -= dt
	if w.remaining > timeEpsilon {
		return
	}
	outcome := u.finishWork(w.target)
	u.emit(protocol.EventWork, "pos", w.target.ToArray(), "outcome", outcome)
	u.addExperience(u.tun.Experience.Work)
	if !u.dead {
		u.idle()
	}
}

// finishWork performs exactly one outcome on target.
func (u *Unit) finishWork(target geom.Cube) string {
	w := u.world
	if u.carried != nil {
		at := target
		if !w.Passable(at) {
			at = u.Cube()
		}
		if u.dropCarried(at) {
			return WorkDrop
		}
		return WorkNothing
	}
	if w.Kind(target) == terrain.Workshop {
		log := w.MaterialAt(target, material.Log)
		boulder := w.MaterialAt(target, material.Boulder)
		if log != nil && boulder != nil && w.TakeMaterial(log) == nil {
			if w.TakeMaterial(boulder) == nil {
				u.improveEquipment()
				return WorkWorkshop
			}
			// Both or neither are consumed.
			_ = w.PutMaterial(log, target)
		}
	}
	for _, k := range []material.Kind{material.Log, material.Boulder} {
		m := w.MaterialAt(target, k)
		if m == nil {
			continue
		}
		if err := w.TakeMaterial(m); err != nil {
			continue
		}
		u.carried = m
		if k == material.Log {
			return WorkPickLog
		}
		return WorkPickRock
	}
	if w.Solid(target) {
		if err := w.Collapse(target); err == nil {
			return WorkCollapse
		}
	}
	return WorkNothing
}

// improveEquipment is the permanent gain from operating a workshop.
func (u *Unit) improveEquipment() {
	limit := u.tun.Attributes.Max
	if u.attrs.Weight < limit {
		u.attrs.Weight++
		u.emit(protocol.EventAttributeUp, "attribute", "weight", "value", u.attrs.Weight)
	}
	if u.attrs.Toughness < limit {
		u.attrs.Toughness++
		u.emit(protocol.EventAttributeUp, "attribute", "toughness", "value", u.attrs.Toughness)
	}
}
