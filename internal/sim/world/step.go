package world

import (
	"context"
	"fmt"
	"time"

	"voxelcolony.ai/internal/protocol"
	"voxelcolony.ai/internal/sim/unit"
)

// Advance runs one tick of dt time units: every live unit once, then every
// material, then one pass of cave-in timers. Dead units leave the world at
// the end of the tick.
func (w *World) Advance(dt float64) error {
	if dt <= 0 || dt > w.tun.Tick.MaxDuration {
		return fmt.Errorf("%w: %v not in (0, %v]", ErrBadTick, dt, w.tun.Tick.MaxDuration)
	}
	nowTick := w.tick

	for _, u := range w.Units() {
		if !u.Alive() {
			continue
		}
		if err := u.Advance(dt); err != nil {
			w.logger.Printf("tick %d: %s: %v", nowTick, u.Name(), err)
			w.Emit(protocol.Event{
				"type":    protocol.EventCommandFailed,
				"unit":    u.Name(),
				"code":    protocol.CodeOf(err),
				"message": err.Error(),
			})
		}
	}
	w.advanceMaterials(dt)
	w.advanceCaveIns(dt)
	w.purgeDead()

	w.time += dt
	w.tick++
	w.flush(nowTick)
	return nil
}

// StepOnce advances one tick and returns its number and digest.
func (w *World) StepOnce(dt float64) (tick uint64, digest string, err error) {
	tick = w.tick
	if err := w.Advance(dt); err != nil {
		return tick, "", err
	}
	return tick, w.stateDigest(), nil
}

func (w *World) advanceMaterials(dt float64) {
	for _, m := range w.Materials() {
		if m.Advance(w.grid, dt, w.tun.Falling.Speed) && !m.Falling(w.grid) {
			w.Emit(protocol.Event{"type": protocol.EventMaterialLanded, "material": m.Kind().String(), "pos": m.Cube().ToArray()})
		}
	}
}

func (w *World) purgeDead() {
	live := w.units[:0]
	for _, u := range w.units {
		if u.Alive() {
			live = append(live, u)
			continue
		}
		u.Leave()
	}
	clear(w.units[len(live):])
	w.units = live
}

func (w *World) flush(nowTick uint64) {
	events := w.events
	w.events = nil
	if w.tickLogger == nil {
		return
	}
	entry := TickLogEntry{Tick: nowTick, Time: w.time, Events: events, Digest: w.stateDigest()}
	if err := w.tickLogger.WriteTick(entry); err != nil {
		w.logger.Printf("tick %d: tick log: %v", nowTick, err)
	}
}

// Run advances the world by dt per tick until ctx is done or
// maxTicks ticks have run (0 means no limit). With a positive TickRateHz the
// loop is paced by a ticker; otherwise it runs as fast as it can.
func (w *World) Run(ctx context.Context, dt float64, maxTicks uint64) error {
	var tick <-chan time.Time
	if w.cfg.TickRateHz > 0 {
		ticker := time.NewTicker(time.Second / time.Duration(w.cfg.TickRateHz))
		defer ticker.Stop()
		tick = ticker.C
	}
	for ran := uint64(0); maxTicks == 0 || ran < maxTicks; ran++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		if err := w.Advance(dt); err != nil {
			return err
		}
	}
	return nil
}

// Summary counts live units per faction and loose materials.
type Summary struct {
	Tick      uint64
	Time      float64
	Units     int
	Factions  []int
	Materials int
	CaveIns   int
}

func (w *World) Summary() Summary {
	s := Summary{Tick: w.tick, Time: w.time, Units: len(w.units), Materials: len(w.materials), CaveIns: len(w.pending)}
	for _, f := range w.factions {
		s.Factions = append(s.Factions, f.Len())
	}
	return s
}

// UnitByName returns the live unit called name, or nil.
func (w *World) UnitByName(name string) *unit.Unit {
	for _, u := range w.units {
		if u.Name() == name {
			return u
		}
	}
	return nil
}
