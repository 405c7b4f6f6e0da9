package unit

import (
	"fmt"

	"voxelcolony.ai/internal/sim/geom"
	"voxelcolony.ai/internal/sim/script"
)

// MoveTo starts a walk to the centre of target. The path is searched from
// scratch; an unreachable target leaves the unit untouched.
func (u *Unit) MoveTo(target geom.Cube) error {
	if err := u.checkDestination(target); err != nil {
		return err
	}
	if target == u.Cube() {
		return fmt.Errorf("%w: %v", ErrAlreadyThere, target)
	}
	return u.startMove(&moveState{target: target})
}

// MoveToAdjacent steps to one of the 26 neighbouring cubes.
func (u *Unit) MoveToAdjacent(dx, dy, dz int) error {
	if dx < -1 || dx > 1 || dy < -1 || dy > 1 || dz < -1 || dz > 1 || (dx == 0 && dy == 0 && dz == 0) {
		return fmt.Errorf("%w: offset (%d, %d, %d) is not adjacent", ErrInvalidTarget, dx, dy, dz)
	}
	return u.MoveTo(u.Cube().Add(geom.Cube{X: dx, Y: dy, Z: dz}))
}

// Follow keeps walking towards other until the two units are in the same or
// neighbouring cubes, or other dies.
func (u *Unit) Follow(other script.Actor) error {
	o, ok := other.(*Unit)
	if !ok || o == u || o.dead {
		return fmt.Errorf("%w: cannot follow %s", ErrInvalidTarget, script.Format(other))
	}
	if geom.AdjacentOrSame(u.Cube(), o.Cube()) {
		return fmt.Errorf("%w: next to %s", ErrAlreadyThere, o.name)
	}
	return u.startMove(&moveState{target: o.Cube(), follow: o})
}

func (u *Unit) checkDestination(c geom.Cube) error {
	if !u.world.InBounds(c) || !u.world.Standable(c) {
		return fmt.Errorf("%w: %v is not standable", ErrInvalidTarget, c)
	}
	return nil
}

func (u *Unit) startMove(m *moveState) error {
	if !canEnter(u.st, Moving) {
		return transitionError(u.st.activity, Moving)
	}
	if u.st.move != nil {
		m.sprinting = u.st.move.sprinting
	}
	if !u.planStep(m) {
		return fmt.Errorf("%w: %v from %v", ErrUnreachable, m.target, u.Cube())
	}
	u.enter(state{activity: Moving, orientation: u.st.orientation, move: m})
	u.face(m.next)
	return nil
}

// planStep recomputes the path to m.target and picks the next sub-target.
func (u *Unit) planStep(m *moveState) bool {
	here := u.Cube()
	if here == m.target {
		return false
	}
	field := ComputeDistances(u.world, m.target, here)
	if !field.Reaches(here) {
		return false
	}
	next, ok := field.NextStep(here)
	if !ok {
		return false
	}
	m.from, m.next, m.hasNext = here, next, true
	return true
}

func (u *Unit) StartSprinting() error {
	if u.st.activity != Moving {
		return transitionError(u.st.activity, Moving)
	}
	if u.stamina > 0 {
		u.st.move.sprinting = true
	}
	return nil
}

func (u *Unit) StopSprinting() {
	if u.st.move != nil {
		u.st.move.sprinting = false
	}
}

// Speed is the current walking speed towards the sub-target in cubes per
// time unit, including sprint.
func (u *Unit) Speed() float64 {
	m := u.st.move
	if m == nil || !m.hasNext {
		return 0
	}
	mv := u.tun.Movement
	weight := u.attrs.Weight
	if u.carried != nil {
		weight += u.carried.Weight()
	}
	v := mv.BaseSpeedFactor * float64(u.attrs.Strength+u.attrs.Agility) / float64(2*weight)
	switch dz := m.next.Z - m.from.Z; {
	case dz > 0:
		v *= mv.UpFactor
	case dz < 0:
		v *= mv.DownFactor
	}
	if m.sprinting {
		v *= mv.SprintMultiplier
	}
	return v
}

func (u *Unit) tickMoving(dt float64) {
	m := u.st.move
	if m.follow != nil && m.follow.dead {
		u.idle()
		return
	}
	if !m.sprinting && u.defaultBehaviour && u.task == nil && u.stamina > 0 &&
		u.world.Rand().Float64() < u.tun.Movement.AutonomousSprintRate {
		m.sprinting = true
	}
	if m.sprinting {
		u.stamina -= u.tun.Movement.SprintStaminaPerSec * dt
		if u.stamina <= 0 {
			u.stamina = 0
			m.sprinting = false
		}
	}

	goal := m.next.Center()
	delta := goal.Sub(u.pos)
	step := u.Speed() * dt
	if dist := delta.Len(); dist > step {
		u.pos = u.pos.Add(delta.Scale(step / dist))
		return
	}
	u.pos = goal
	u.addExperience(u.tun.Experience.Move)
	u.arrived(m)
}

// arrived runs when a sub-target centre has been reached.
func (u *Unit) arrived(m *moveState) {
	here := u.Cube()
	if m.follow != nil {
		if geom.AdjacentOrSame(here, m.follow.Cube()) {
			u.idle()
			return
		}
		m.target = m.follow.Cube()
	} else if here == m.target {
		u.idle()
		return
	}
	if !u.planStep(m) {
		u.idle()
		return
	}
	u.face(m.next)
}
