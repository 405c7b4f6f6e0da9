package unit

import (
	"fmt"

	"voxelcolony.ai/internal/protocol"
	"voxelcolony.ai/internal/sim/geom"
	"voxelcolony.ai/internal/sim/script"
)

// Combat outcomes as seen by the defender.
const (
	OutcomeDodge = "DODGE"
	OutcomeBlock = "BLOCK"
	OutcomeHit   = "HIT"
)

// Attack strikes an enemy in the same or a neighbouring cube. The defender
// resolves at once; the attacker stays Attacking for the attack duration and
// then resumes what it was doing.
func (u *Unit) Attack(other script.Actor) error {
	if !canEnter(u.st, Attacking) {
		return transitionError(u.st.activity, Attacking)
	}
	o, ok := other.(*Unit)
	if !ok || o == u || o.dead {
		return fmt.Errorf("%w: cannot attack %s", ErrInvalidTarget, script.Format(other))
	}
	if u.IsFriend(o) {
		return fmt.Errorf("%w: %s is a friend", ErrInvalidTarget, o.name)
	}
	if !geom.AdjacentOrSame(u.Cube(), o.Cube()) {
		return fmt.Errorf("%w: %s is out of reach", ErrInvalidTarget, o.name)
	}
	resume := u.st.resumable()
	u.enter(state{
		activity:    Attacking,
		orientation: u.st.orientation,
		attack:      &attackState{target: o, remaining: u.tun.Combat.AttackDuration, resume: resume},
	})
	u.st.orientation = geom.Orientation(u.pos, o.pos)
	o.st.orientation = geom.Orientation(o.pos, u.pos)

	outcome, dmg := o.defend(u)
	u.emit(protocol.EventAttack, "target", o.name, "outcome", outcome, "damage", dmg)
	return nil
}

// defend resolves an attack by a: dodge, else block, else take damage.
func (u *Unit) defend(a *Unit) (string, float64) {
	c := u.tun.Combat
	r := u.world.Rand()
	dodge := c.DodgeFactor * float64(u.attrs.Agility) / float64(a.attrs.Agility)
	if r.Float64() < dodge {
		u.dodge()
		u.addExperience(u.tun.Experience.Combat)
		return OutcomeDodge, 0
	}
	block := c.BlockFactor * float64(u.attrs.Strength+u.attrs.Agility) / float64(a.attrs.Strength+a.attrs.Agility)
	if r.Float64() < block {
		u.addExperience(u.tun.Experience.Combat)
		return OutcomeBlock, 0
	}
	dmg := float64(a.attrs.Strength) / c.DamageDivisor
	a.addExperience(u.tun.Experience.Combat)
	u.damage(dmg)
	return OutcomeHit, dmg
}

// dodge jumps to a random standable neighbouring cube, if any.
func (u *Unit) dodge() {
	here := u.Cube()
	var options []geom.Cube
	for _, n := range geom.Neighbours26(here) {
		if u.world.InBounds(n) && u.world.Standable(n) {
			options = append(options, n)
		}
	}
	if len(options) == 0 {
		return
	}
	to := options[u.world.Rand().Intn(len(options))]
	u.pos = to.Center()
	// The old sub-target or job may no longer be adjacent.
	switch {
	case u.st.move != nil && !u.planStep(u.st.move):
		u.idle()
	case u.st.work != nil && !geom.AdjacentOrSame(to, u.st.work.target):
		u.idle()
	}
}

func (u *Unit) tickAttacking(dt float64) {
	a := u.st.attack
	a.remaining -= dt
	if a.remaining > timeEpsilon {
		return
	}
	u.resume(a.resume)
}

// resume restores a state saved when an attack or rest began. A walk is
// re-planned from the current cube and a job whose target is out of reach
// is dropped.
func (u *Unit) resume(s state) {
	s = s.resumable()
	switch {
	case s.move != nil && !u.planStep(s.move):
		s = state{activity: Idle, orientation: s.orientation}
	case s.work != nil && !geom.AdjacentOrSame(u.Cube(), s.work.target):
		s = state{activity: Idle, orientation: s.orientation}
	}
	u.enter(s)
}
