package unit

import (
	"voxelcolony.ai/internal/protocol"
	"voxelcolony.ai/internal/sim/geom"
)

// startFalling preempts any activity, including a bound task.
func (u *Unit) startFalling() {
	u.interruptTask(nil)
	u.enter(state{activity: Falling, orientation: u.st.orientation, fall: &fallState{fromZ: u.Cube().Z}})
}

// tickFalling drops the unit at the fall speed until it reaches a cube that
// rests on solid ground. It lands in the centre of that cube.
func (u *Unit) tickFalling(dt float64) {
	f := u.st.fall
	c := u.Cube()
	z := u.pos.Z - u.tun.Falling.Speed*dt
	for k := c; k.Z >= 0 && float64(k.Z)+0.5 >= z; k = k.Below() {
		if u.world.Supported(k) {
			u.land(k, f)
			return
		}
	}
	u.pos.Z = z
}

func (u *Unit) land(at geom.Cube, f *fallState) {
	u.pos = at.Center()
	levels := f.fromZ - at.Z
	dmg := float64(levels) * u.tun.Falling.DamagePerLevel
	u.emit(protocol.EventFall, "levels", levels, "damage", dmg)
	u.idle()
	u.damage(dmg)
}
