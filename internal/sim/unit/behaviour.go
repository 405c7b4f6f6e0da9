package unit

import (
	"errors"

	"voxelcolony.ai/internal/protocol"
	"voxelcolony.ai/internal/sim/geom"
	"voxelcolony.ai/internal/sim/sched"
)

// wanderAttempts bounds the random draws for a standable destination.
const wanderAttempts = 8

// tickIdle runs a bound task, pulls a new one from the faction scheduler, or
// falls back to a default behaviour. Only with default behaviour enabled.
func (u *Unit) tickIdle() error {
	if !u.defaultBehaviour {
		return nil
	}
	if t := u.task; t != nil {
		u.advanceTask(t)
		return nil
	}
	if s := u.Scheduler(); s != nil {
		if t := s.HighestPriorityTask(); t != nil {
			u.startTask(t)
			return nil
		}
	}
	return u.autonomous()
}

func (u *Unit) startTask(t *sched.Task) {
	if t.Execute(u) {
		u.emit(protocol.EventTaskBound, "task", t.Name(), "priority", t.Priority())
		return
	}
	// A task that cannot start is demoted so the next one gets a chance.
	t.Interrupt()
	ev := []any{"task", t.Name(), "priority", t.Priority()}
	if err := t.Err(); err != nil {
		ev = append(ev, "code", protocol.CodeOf(err), "message", err.Error())
	}
	u.emit(protocol.EventTaskInterrupted, ev...)
}

func (u *Unit) advanceTask(t *sched.Task) {
	if !t.Advance() {
		u.interruptTask(t.Err())
		return
	}
	if t.Finished() {
		t.Finish()
		u.emit(protocol.EventTaskFinished, "task", t.Name())
	}
}

// autonomous picks and starts a default behaviour. Moves that turn out to be
// unreachable or pointless are ignored; any other refusal is returned.
func (u *Unit) autonomous() error {
	choice, err := u.auto.Choose(u.autonomyEnv(), u.world.Rand())
	if err != nil {
		return err
	}
	switch choice {
	case BehaviourFight:
		err = u.fight()
	case BehaviourWork:
		err = u.workNearby()
	case BehaviourRest:
		err = u.Rest()
	case BehaviourMove:
		err = u.wander()
	}
	if errors.Is(err, ErrUnreachable) || errors.Is(err, ErrAlreadyThere) {
		return nil
	}
	return err
}

func (u *Unit) autonomyEnv() AutonomyEnv {
	env := AutonomyEnv{
		HitPoints:    u.hp,
		MaxHitPoints: u.MaxHitPoints(),
		Stamina:      u.stamina,
		MaxStamina:   u.MaxStamina(),
		Carrying:     u.carried != nil,
		Z:            u.Cube().Z,
		Experience:   u.exp,
	}
	here := u.Cube()
	for _, o := range u.others() {
		switch {
		case u.IsFriend(o):
			env.Friends++
		default:
			env.Enemies++
			if geom.AdjacentOrSame(here, o.Cube()) {
				env.EnemiesNear++
			}
		}
	}
	return env
}

// others lists the other live units in world order.
func (u *Unit) others() []*Unit {
	var out []*Unit
	for _, a := range u.world.Actors() {
		o, ok := a.(*Unit)
		if !ok || o == u || o.dead {
			continue
		}
		out = append(out, o)
	}
	return out
}

// fight attacks a neighbouring enemy, or walks towards the nearest one.
func (u *Unit) fight() error {
	here := u.Cube()
	var nearest *Unit
	bestDist := 0
	for _, o := range u.others() {
		if u.IsFriend(o) {
			continue
		}
		if geom.AdjacentOrSame(here, o.Cube()) {
			return u.Attack(o)
		}
		if d := geom.Manhattan(here, o.Cube()); nearest == nil || d < bestDist {
			nearest, bestDist = o, d
		}
	}
	if nearest == nil {
		return nil
	}
	return u.Follow(nearest)
}

// workNearby works the unit's own cube or a random neighbour.
func (u *Unit) workNearby() error {
	r := u.world.Rand()
	here := u.Cube()
	for i := 0; i < wanderAttempts; i++ {
		c := here.Add(geom.Cube{X: r.Intn(3) - 1, Y: r.Intn(3) - 1, Z: r.Intn(3) - 1})
		if u.world.InBounds(c) {
			return u.Work(c)
		}
	}
	return nil
}

// wander walks to a random standable cube.
func (u *Unit) wander() error {
	r := u.world.Rand()
	sx, sy, sz := u.world.Size()
	for i := 0; i < wanderAttempts; i++ {
		c := geom.Cube{X: r.Intn(sx), Y: r.Intn(sy), Z: r.Intn(sz)}
		if u.world.Standable(c) {
			return u.MoveTo(c)
		}
	}
	return nil
}
