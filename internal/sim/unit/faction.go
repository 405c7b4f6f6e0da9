package unit

import (
	"fmt"

	"voxelcolony.ai/internal/sim/sched"
)

// Faction is a capacity-bounded group of units sharing one scheduler.
// Members never fight each other.
type Faction struct {
	id        int
	capacity  int
	members   []*Unit
	scheduler *sched.Scheduler
}

func NewFaction(id, capacity int) *Faction {
	return &Faction{
		id:        id,
		capacity:  capacity,
		scheduler: sched.NewScheduler(fmt.Sprintf("faction-%d", id)),
	}
}

func (f *Faction) ID() int                     { return f.id }
func (f *Faction) Len() int                    { return len(f.members) }
func (f *Faction) Full() bool                  { return len(f.members) >= f.capacity }
func (f *Faction) Scheduler() *sched.Scheduler { return f.scheduler }
func (f *Faction) Members() []*Unit            { return append([]*Unit(nil), f.members...) }

// Add moves u into f, leaving its previous faction.
func (f *Faction) Add(u *Unit) error {
	if u.faction == f {
		return nil
	}
	if u.dead {
		return fmt.Errorf("%w: %s", ErrDead, u.name)
	}
	if f.Full() {
		return fmt.Errorf("%w: faction %d holds %d units", ErrFactionFull, f.id, f.capacity)
	}
	if u.faction != nil {
		u.interruptTask(nil)
		u.faction.remove(u)
	}
	f.members = append(f.members, u)
	u.faction = f
	return nil
}

func (f *Faction) remove(u *Unit) {
	for i, m := range f.members {
		if m == u {
			f.members = append(f.members[:i], f.members[i+1:]...)
			break
		}
	}
	if u.faction == f {
		u.faction = nil
	}
}
