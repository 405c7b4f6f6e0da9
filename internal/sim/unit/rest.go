package unit

import "math"

// Rest starts resting. Only an idle unit may rest.
func (u *Unit) Rest() error {
	if !canEnter(u.st, Resting) {
		return transitionError(u.st.activity, Resting)
	}
	u.startResting(u.st)
	return nil
}

// forceRest interrupts the current activity for a rest, resuming it afterwards.
func (u *Unit) forceRest() {
	u.startResting(u.st)
}

func (u *Unit) startResting(resume state) {
	u.sinceRest = 0
	r := &restState{resume: resume.resumable(), recovered: u.hp >= u.MaxHitPoints()}
	u.enter(state{activity: Resting, orientation: u.st.orientation, rest: r})
}

// recovering is the first phase of a rest, lasting until one hit point has
// been regained. Work cannot interrupt it.
func (r *restState) recovering() bool { return !r.recovered }

// tickResting restores hit points before stamina, one step per interval, and
// resumes the saved state once both are full.
func (u *Unit) tickResting(dt float64) {
	r := u.st.rest
	maxHP, maxStamina := u.MaxHitPoints(), u.MaxStamina()
	tough := float64(u.attrs.Toughness)
	r.elapsed += dt
	for r.elapsed >= u.tun.Rest.Interval-timeEpsilon {
		r.elapsed -= u.tun.Rest.Interval
		switch {
		case u.hp < maxHP:
			gain := math.Min(tough/u.tun.Rest.HitPointDivisor, maxHP-u.hp)
			u.hp += gain
			r.hpGained += gain
			if r.hpGained >= 1 || u.hp >= maxHP {
				r.recovered = true
			}
		case u.stamina < maxStamina:
			u.stamina = math.Min(u.stamina+tough/u.tun.Rest.StaminaDivisor, maxStamina)
		}
	}
	if u.hp >= maxHP && u.stamina >= maxStamina {
		u.resume(r.resume)
	}
}
