package unit

import (
	"fmt"
	"math"
	"math/rand"

	"voxelcolony.ai/internal/protocol"
	"voxelcolony.ai/internal/sim/geom"
	"voxelcolony.ai/internal/sim/material"
	"voxelcolony.ai/internal/sim/sched"
	"voxelcolony.ai/internal/sim/script"
	"voxelcolony.ai/internal/sim/tuning"
)

// Attributes are the primary properties of a unit.
type Attributes struct {
	Strength  int `yaml:"strength" json:"strength"`
	Agility   int `yaml:"agility" json:"agility"`
	Toughness int `yaml:"toughness" json:"toughness"`
	Weight    int `yaml:"weight" json:"weight"`
}

// RandomAttributes draws every attribute from the initial range. Weight is
// at least the mean of strength and agility.
func RandomAttributes(r *rand.Rand, a tuning.Attributes) Attributes {
	draw := func() int { return a.InitialMin + r.Intn(a.InitialMax-a.InitialMin+1) }
	out := Attributes{Strength: draw(), Agility: draw(), Toughness: draw(), Weight: draw()}
	return out.normalize(a)
}

func (a Attributes) normalize(r tuning.Attributes) Attributes {
	clamp := func(v int) int { return min(max(v, r.Min), r.Max) }
	a.Strength = clamp(a.Strength)
	a.Agility = clamp(a.Agility)
	a.Toughness = clamp(a.Toughness)
	a.Weight = clamp(max(a.Weight, (a.Strength+a.Agility+1)/2))
	return a
}

// Unit is an autonomous agent occupying one cube. It is always in exactly one
// Activity and is advanced by its world once per tick.
type Unit struct {
	name  string
	world World
	tun   *tuning.Tuning
	auto  *Autonomy

	faction *Faction
	vars    *script.Variables
	task    *sched.Task

	pos     geom.Vec
	attrs   Attributes
	hp      float64
	stamina float64
	exp     int
	carried *material.Material
	dead    bool

	st               state
	sinceRest        float64
	defaultBehaviour bool
}

type Config struct {
	Name             string
	At               geom.Cube
	Attributes       Attributes
	DefaultBehaviour bool
}

// New places a unit at the centre of cfg.At with full hit points and stamina.
// auto may be nil, in which case the tuning rules are compiled for this unit.
func New(w World, tun *tuning.Tuning, auto *Autonomy, cfg Config) (*Unit, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: empty unit name", ErrInvalidTarget)
	}
	if !w.InBounds(cfg.At) || !w.Standable(cfg.At) {
		return nil, fmt.Errorf("%w: %v is not standable", ErrInvalidTarget, cfg.At)
	}
	if auto == nil {
		var err error
		if auto, err = NewAutonomy(tun.Autonomy); err != nil {
			return nil, err
		}
	}
	u := &Unit{
		name:             cfg.Name,
		world:            w,
		tun:              tun,
		auto:             auto,
		vars:             script.NewVariables(),
		pos:              cfg.At.Center(),
		attrs:            cfg.Attributes.normalize(tun.Attributes),
		defaultBehaviour: cfg.DefaultBehaviour,
	}
	u.hp = u.MaxHitPoints()
	u.stamina = u.MaxStamina()
	return u, nil
}

func (u *Unit) Name() string                 { return u.name }
func (u *Unit) Pos() geom.Vec                { return u.pos }
func (u *Unit) Cube() geom.Cube              { return u.pos.Cube() }
func (u *Unit) Alive() bool                  { return !u.dead }
func (u *Unit) Carrying() bool               { return u.carried != nil }
func (u *Unit) Carried() *material.Material  { return u.carried }
func (u *Unit) World() script.World          { return u.world }
func (u *Unit) Variables() *script.Variables { return u.vars }
func (u *Unit) Attributes() Attributes       { return u.attrs }
func (u *Unit) HitPoints() float64           { return u.hp }
func (u *Unit) Stamina() float64             { return u.stamina }
func (u *Unit) Experience() int              { return u.exp }
func (u *Unit) Activity() Activity           { return u.st.activity }
func (u *Unit) Orientation() float64         { return u.st.orientation }
func (u *Unit) Faction() *Faction            { return u.faction }
func (u *Unit) CurrentTask() *sched.Task     { return u.task }
func (u *Unit) BindTask(t *sched.Task)       { u.task = t }
func (u *Unit) DefaultBehaviour() bool       { return u.defaultBehaviour }
func (u *Unit) IsMoving() bool               { return u.st.activity == Moving }
func (u *Unit) IsWorking() bool              { return u.st.activity == Working }
func (u *Unit) IsAttacking() bool            { return u.st.activity == Attacking }
func (u *Unit) IsResting() bool              { return u.st.activity == Resting }
func (u *Unit) IsFalling() bool              { return u.st.activity == Falling }
func (u *Unit) IsSprinting() bool            { return u.st.move != nil && u.st.move.sprinting }

// MaxHitPoints and MaxStamina are 200 * weight/100 * toughness/100, rounded up.
func (u *Unit) MaxHitPoints() float64 {
	return math.Ceil(float64(u.attrs.Weight*u.attrs.Toughness) / 50)
}

func (u *Unit) MaxStamina() float64 { return u.MaxHitPoints() }

func (u *Unit) Scheduler() *sched.Scheduler {
	if u.faction == nil {
		return nil
	}
	return u.faction.scheduler
}

// IsFriend reports whether other belongs to the same faction.
func (u *Unit) IsFriend(other script.Actor) bool {
	o, ok := other.(*Unit)
	return ok && u.faction != nil && o.faction == u.faction
}

// SetDefaultBehaviour toggles autonomous behaviour. Disabling it while a task
// is bound interrupts the task.
func (u *Unit) SetDefaultBehaviour(on bool) {
	u.defaultBehaviour = on
	if !on {
		u.interruptTask(nil)
	}
}

// Advance runs one tick of the state machine. Falling is checked first and
// preempts every other activity.
func (u *Unit) Advance(dt float64) error {
	if u.dead || dt <= 0 {
		return nil
	}
	if u.st.activity != Falling && u.unsupported() {
		u.startFalling()
	}
	if u.st.activity != Resting {
		u.sinceRest += dt
	}
	if u.sinceRest > u.tun.Rest.ForcedInterval {
		switch u.st.activity {
		case Falling, Attacking, Resting:
		default:
			u.forceRest()
		}
	}
	switch u.st.activity {
	case Falling:
		u.tickFalling(dt)
	case Moving:
		u.tickMoving(dt)
	case Working:
		u.tickWorking(dt)
	case Attacking:
		u.tickAttacking(dt)
	case Resting:
		u.tickResting(dt)
	case Idle:
		return u.tickIdle()
	}
	return nil
}

// unsupported reports whether the unit has lost its footing. A walking unit
// keeps it while either end of the current step is standable.
func (u *Unit) unsupported() bool {
	if m := u.st.move; m != nil && m.hasNext {
		return !u.world.Standable(m.from) && !u.world.Standable(m.next)
	}
	return !u.world.Standable(u.Cube())
}

// enter replaces the current state and logs the activity change.
func (u *Unit) enter(next state) {
	prev := u.st.activity
	u.st = next
	if prev != next.activity {
		u.emit(protocol.EventActivity, "from", prev.String(), "to", next.activity.String())
	}
}

func (u *Unit) idle() {
	u.enter(state{activity: Idle, orientation: u.st.orientation})
}

// Stop abandons the current activity. It cannot stop a fall.
func (u *Unit) Stop() error {
	if u.st.activity == Falling {
		return transitionError(Falling, Idle)
	}
	u.idle()
	return nil
}

func (u *Unit) face(c geom.Cube) {
	if c != u.Cube() {
		u.st.orientation = geom.Orientation(u.pos, c.Center())
	}
}

// addExperience awards points; every PointsPerAttribute raise a random
// attribute by one, capped at the attribute maximum.
func (u *Unit) addExperience(points int) {
	per := u.tun.Experience.PointsPerAttribute
	before := u.exp / max(per, 1)
	u.exp += points
	if per <= 0 {
		return
	}
	for n := u.exp/per - before; n > 0; n-- {
		u.raiseRandomAttribute()
	}
}

func (u *Unit) raiseRandomAttribute() {
	limit := u.tun.Attributes.Max
	var name string
	var v *int
	switch u.world.Rand().Intn(3) {
	case 0:
		name, v = "strength", &u.attrs.Strength
	case 1:
		name, v = "agility", &u.attrs.Agility
	default:
		name, v = "toughness", &u.attrs.Toughness
	}
	if *v >= limit {
		return
	}
	*v++
	u.emit(protocol.EventAttributeUp, "attribute", name, "value", *v)
}

// damage lowers hit points and kills the unit at zero.
func (u *Unit) damage(amount float64) {
	if u.dead || amount <= 0 {
		return
	}
	u.hp -= amount
	if u.hp <= 0 {
		u.hp = 0
		u.die()
	}
}

func (u *Unit) die() {
	u.dead = true
	u.interruptTask(nil)
	u.dropCarried(u.Cube())
	u.st = state{activity: Idle, orientation: u.st.orientation}
	u.emit(protocol.EventDeath, "pos", u.Cube().ToArray())
}

// Leave detaches the unit from its faction. The world calls it for dead units.
func (u *Unit) Leave() {
	if u.faction != nil {
		u.faction.remove(u)
	}
}

func (u *Unit) dropCarried(at geom.Cube) bool {
	m := u.carried
	if m == nil {
		return false
	}
	if err := u.world.PutMaterial(m, at); err != nil {
		return false
	}
	u.carried = nil
	return true
}

func (u *Unit) interruptTask(cause error) {
	t := u.task
	if t == nil {
		return
	}
	t.Interrupt()
	ev := []any{"task", t.Name(), "priority", t.Priority()}
	if cause != nil {
		ev = append(ev, "code", protocol.CodeOf(cause), "message", cause.Error())
	}
	u.emit(protocol.EventTaskInterrupted, ev...)
}

func (u *Unit) emit(typ string, kv ...any) {
	ev := protocol.Event{"type": typ, "unit": u.name}
	for i := 0; i+1 < len(kv); i += 2 {
		ev[kv[i].(string)] = kv[i+1]
	}
	u.world.Emit(ev)
}

func (u *Unit) String() string {
	c := u.Cube()
	return fmt.Sprintf("%s@(%d, %d, %d)[%s]", u.name, c.X, c.Y, c.Z, u.st.activity)
}
