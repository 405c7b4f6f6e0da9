package unit

import (
	"math/rand"

	"voxelcolony.ai/internal/protocol"
	"voxelcolony.ai/internal/sim/geom"
	"voxelcolony.ai/internal/sim/material"
	"voxelcolony.ai/internal/sim/script"
	"voxelcolony.ai/internal/sim/terrain"
)

// World is everything a unit needs from its surroundings. Queries are pure;
// mutations may fail and callers check.
type World interface {
	script.World

	InBounds(c geom.Cube) bool
	Size() (int, int, int)
	Kind(c geom.Cube) terrain.Kind
	// Supported reports whether something at c rests on solid ground.
	Supported(c geom.Cube) bool
	Rand() *rand.Rand

	// MaterialAt returns a material of kind k lying in c, or nil.
	MaterialAt(c geom.Cube, k material.Kind) *material.Material
	// TakeMaterial lifts m out of the world.
	TakeMaterial(m *material.Material) error
	// PutMaterial places m in c.
	PutMaterial(m *material.Material, c geom.Cube) error
	// Collapse turns a solid cube into air.
	Collapse(c geom.Cube) error

	Emit(ev protocol.Event)
}
