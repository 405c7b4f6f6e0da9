package world

import (
	"fmt"
	"io"
	"log"
	"math/rand"

	"voxelcolony.ai/internal/protocol"
	"voxelcolony.ai/internal/sim/geom"
	"voxelcolony.ai/internal/sim/material"
	"voxelcolony.ai/internal/sim/script"
	"voxelcolony.ai/internal/sim/terrain"
	"voxelcolony.ai/internal/sim/tuning"
	"voxelcolony.ai/internal/sim/unit"
)

type WorldConfig struct {
	ID         string
	SizeX      int
	SizeY      int
	SizeZ      int
	Seed       int64
	TickRateHz int
}

var (
	ErrBadTick     = protocol.NewError(protocol.ErrBadRequest, "tick duration out of range", nil)
	ErrNoMaterial  = protocol.NewError(protocol.ErrNoResource, "material not in world", nil)
	ErrNotSolid    = protocol.NewError(protocol.ErrInvalidTarget, "cube is not solid", nil)
	ErrNotPassable = protocol.NewError(protocol.ErrInvalidTarget, "cube is not passable", nil)
)

// World is a single-threaded simulation of one bounded voxel grid. All state
// must be accessed only from the goroutine advancing it.
type World struct {
	cfg  WorldConfig
	tun  tuning.Tuning
	grid *terrain.Grid
	rng  *rand.Rand
	auto *unit.Autonomy

	tick uint64
	time float64

	units     []*unit.Unit
	factions  []*unit.Faction
	materials []*material.Material
	caveIns   []caveIn
	pending   map[geom.Cube]bool

	nextMaterial uint64

	events []protocol.Event

	logger     *log.Logger
	tickLogger TickLogger
}

// TickLogger receives one entry per completed tick. Implemented in
// internal/persistence/*.
type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type TickLogEntry struct {
	Tick   uint64           `json:"tick"`
	Time   float64          `json:"time"`
	Events []protocol.Event `json:"events,omitempty"`
	Digest string           `json:"digest"`
}

func New(cfg WorldConfig, tun tuning.Tuning) (*World, error) {
	if err := tun.Validate(); err != nil {
		return nil, fmt.Errorf("tuning: %w", err)
	}
	grid, err := terrain.NewGrid(cfg.SizeX, cfg.SizeY, cfg.SizeZ)
	if err != nil {
		return nil, err
	}
	auto, err := unit.NewAutonomy(tun.Autonomy)
	if err != nil {
		return nil, err
	}
	return &World{
		cfg:     cfg,
		tun:     tun,
		grid:    grid,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		auto:    auto,
		pending: map[geom.Cube]bool{},
		logger:  log.New(io.Discard, "", 0),
	}, nil
}

func (w *World) SetLogger(l *log.Logger)    { w.logger = l }
func (w *World) SetTickLogger(l TickLogger) { w.tickLogger = l }
func (w *World) Config() WorldConfig        { return w.cfg }
func (w *World) Tuning() *tuning.Tuning     { return &w.tun }
func (w *World) Grid() *terrain.Grid        { return w.grid }
func (w *World) CurrentTick() uint64        { return w.tick }
func (w *World) Time() float64              { return w.time }
func (w *World) Factions() []*unit.Faction  { return append([]*unit.Faction(nil), w.factions...) }
func (w *World) Units() []*unit.Unit        { return append([]*unit.Unit(nil), w.units...) }
func (w *World) Materials() []*material.Material {
	return append([]*material.Material(nil), w.materials...)
}

// --- unit.World ---

func (w *World) Passable(c geom.Cube) bool     { return w.grid.Passable(c) }
func (w *World) Solid(c geom.Cube) bool        { return w.grid.Solid(c) }
func (w *World) Standable(c geom.Cube) bool    { return w.grid.Standable(c) }
func (w *World) Supported(c geom.Cube) bool    { return w.grid.Supported(c) }
func (w *World) InBounds(c geom.Cube) bool     { return w.grid.InBounds(c) }
func (w *World) Size() (int, int, int)         { return w.grid.Size() }
func (w *World) Kind(c geom.Cube) terrain.Kind { return w.grid.Get(c) }
func (w *World) Rand() *rand.Rand              { return w.rng }

// Emit queues an event for the current tick's log entry.
func (w *World) Emit(ev protocol.Event) { w.events = append(w.events, ev) }

func (w *World) Actors() []script.Actor {
	out := make([]script.Actor, 0, len(w.units))
	for _, u := range w.units {
		if u.Alive() {
			out = append(out, u)
		}
	}
	return out
}

func (w *World) Print(a script.Actor, msg string) {
	name := script.Format(a)
	w.logger.Printf("%s: %s", name, msg)
	w.Emit(protocol.Event{"type": protocol.EventPrint, "unit": name, "message": msg})
}

func (w *World) NearestLog(from geom.Cube) (geom.Cube, bool) {
	return w.nearestMaterial(from, material.Log)
}

func (w *World) NearestBoulder(from geom.Cube) (geom.Cube, bool) {
	return w.nearestMaterial(from, material.Boulder)
}

// NearestWorkshop scans the grid; ties resolve by scan order.
func (w *World) NearestWorkshop(from geom.Cube) (geom.Cube, bool) {
	sx, sy, sz := w.grid.Size()
	var best geom.Cube
	bestDist, found := 0, false
	for z := 0; z < sz; z++ {
		for y := 0; y < sy; y++ {
			for x := 0; x < sx; x++ {
				c := geom.Cube{X: x, Y: y, Z: z}
				if w.grid.Get(c) != terrain.Workshop {
					continue
				}
				if d := geom.Manhattan(from, c); !found || d < bestDist {
					best, bestDist, found = c, d, true
				}
			}
		}
	}
	return best, found
}

// nearestMaterial ignores materials still falling. Ties resolve by age.
func (w *World) nearestMaterial(from geom.Cube, k material.Kind) (geom.Cube, bool) {
	var best geom.Cube
	bestDist, found := 0, false
	for _, m := range w.materials {
		if m.Kind() != k || m.Falling(w.grid) {
			continue
		}
		if d := geom.Manhattan(from, m.Cube()); !found || d < bestDist {
			best, bestDist, found = m.Cube(), d, true
		}
	}
	return best, found
}

func (w *World) MaterialAt(c geom.Cube, k material.Kind) *material.Material {
	for _, m := range w.materials {
		if m.Kind() == k && m.Cube() == c {
			return m
		}
	}
	return nil
}

// TakeMaterial removes m from the world, typically because a unit picked it up.
func (w *World) TakeMaterial(m *material.Material) error {
	for i, x := range w.materials {
		if x == m {
			w.materials = append(w.materials[:i], w.materials[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNoMaterial, m)
}

// PutMaterial lays m down in c, which must be passable.
func (w *World) PutMaterial(m *material.Material, c geom.Cube) error {
	if !w.grid.InBounds(c) || !w.grid.Passable(c) {
		return fmt.Errorf("%w: %v", ErrNotPassable, c)
	}
	m.Place(c)
	w.materials = append(w.materials, m)
	return nil
}

// AddMaterial creates a material of kind k in c with a random weight.
func (w *World) AddMaterial(k material.Kind, c geom.Cube) (*material.Material, error) {
	t := w.tun.Terrain
	w.nextMaterial++
	m := material.New(w.nextMaterial, k, t.MaterialMinWeight+w.rng.Intn(t.MaterialMaxWeight-t.MaterialMinWeight+1), c)
	if err := w.PutMaterial(m, c); err != nil {
		return nil, err
	}
	return m, nil
}

// RemoveMaterial is TakeMaterial for callers outside the simulation.
func (w *World) RemoveMaterial(m *material.Material) error { return w.TakeMaterial(m) }
