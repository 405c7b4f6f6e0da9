package world

import (
	"fmt"

	"voxelcolony.ai/internal/protocol"
	"voxelcolony.ai/internal/sim/unit"
)

// SpawnUnit creates a unit and assigns it a faction: a new faction while fewer
// than MaxFactions exist, otherwise the smallest one that is not full (lowest
// id on ties). Zero attributes are drawn at random.
func (w *World) SpawnUnit(cfg unit.Config) (*unit.Unit, error) {
	f, err := w.pickFaction()
	if err != nil {
		return nil, err
	}
	return w.spawnInto(cfg, f)
}

// AddUnit creates a unit in faction id, creating missing factions up to it.
func (w *World) AddUnit(cfg unit.Config, faction int) (*unit.Unit, error) {
	f, err := w.Faction(faction)
	if err != nil {
		return nil, err
	}
	if f.Full() {
		return nil, fmt.Errorf("%w: faction %d", unit.ErrFactionFull, faction)
	}
	return w.spawnInto(cfg, f)
}

// Faction returns faction id, creating it and every lower id if needed.
func (w *World) Faction(id int) (*unit.Faction, error) {
	if id < 0 || id >= w.tun.Groups.MaxFactions {
		return nil, fmt.Errorf("%w: faction %d outside [0,%d)", unit.ErrInvalidTarget, id, w.tun.Groups.MaxFactions)
	}
	for len(w.factions) <= id {
		w.factions = append(w.factions, unit.NewFaction(len(w.factions), w.tun.Groups.Capacity))
	}
	return w.factions[id], nil
}

func (w *World) pickFaction() (*unit.Faction, error) {
	if len(w.factions) < w.tun.Groups.MaxFactions {
		return w.Faction(len(w.factions))
	}
	var best *unit.Faction
	for _, f := range w.factions {
		if f.Full() {
			continue
		}
		if best == nil || f.Len() < best.Len() {
			best = f
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: all %d factions", unit.ErrFactionFull, len(w.factions))
	}
	return best, nil
}

func (w *World) spawnInto(cfg unit.Config, f *unit.Faction) (*unit.Unit, error) {
	if cfg.Attributes == (unit.Attributes{}) {
		cfg.Attributes = unit.RandomAttributes(w.rng, w.tun.Attributes)
	}
	for _, o := range w.units {
		if o.Name() == cfg.Name {
			return nil, fmt.Errorf("%w: duplicate unit name %q", unit.ErrInvalidTarget, cfg.Name)
		}
	}
	u, err := unit.New(w, &w.tun, w.auto, cfg)
	if err != nil {
		return nil, err
	}
	if err := f.Add(u); err != nil {
		return nil, err
	}
	w.units = append(w.units, u)
	a := u.Attributes()
	w.Emit(protocol.Event{
		"type":       protocol.EventSpawn,
		"unit":       u.Name(),
		"pos":        u.Cube().ToArray(),
		"faction":    f.ID(),
		"attributes": []int{a.Strength, a.Agility, a.Toughness, a.Weight},
	})
	return u, nil
}
