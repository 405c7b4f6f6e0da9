package material

import (
	"fmt"

	"voxelcolony.ai/internal/sim/geom"
)

type Kind uint8

const (
	Log Kind = iota + 1
	Boulder
)

func (k Kind) String() string {
	switch k {
	case Log:
		return "log"
	case Boulder:
		return "boulder"
	default:
		return fmt.Sprintf("material(%d)", uint8(k))
	}
}

// Ground is what a lying material needs to know about the terrain.
type Ground interface {
	Supported(c geom.Cube) bool
}

// Material is a log or boulder. It lies at the bottom of a cube and falls
// under gravity while the cube below it is not solid.
type Material struct {
	id     uint64
	kind   Kind
	weight int
	pos    geom.Vec
}

func New(id uint64, kind Kind, weight int, at geom.Cube) *Material {
	return &Material{id: id, kind: kind, weight: weight, pos: rest(at)}
}

func (m *Material) ID() uint64      { return m.id }
func (m *Material) Kind() Kind      { return m.kind }
func (m *Material) Weight() int     { return m.weight }
func (m *Material) Pos() geom.Vec   { return m.pos }
func (m *Material) Cube() geom.Cube { return m.pos.Cube() }

// Place puts the material down in cube c.
func (m *Material) Place(c geom.Cube) { m.pos = rest(c) }

func (m *Material) Falling(g Ground) bool { return !g.Supported(m.Cube()) }

// Advance drops the material by speed*dt while unsupported. It lands at the
// bottom of the first supported cube it enters and reports whether it moved.
func (m *Material) Advance(g Ground, dt, speed float64) bool {
	c := m.Cube()
	if g.Supported(c) {
		return false
	}
	z := m.pos.Z - speed*dt
	for k := c.Below(); k.Z >= geom.FloorInt(z) && k.Z >= 0; k = k.Below() {
		if g.Supported(k) {
			m.pos = rest(k)
			return true
		}
	}
	m.pos.Z = max(z, 0)
	return true
}

func (m *Material) String() string {
	c := m.Cube()
	return fmt.Sprintf("%s#%d(w=%d) at (%d, %d, %d)", m.kind, m.id, m.weight, c.X, c.Y, c.Z)
}

func rest(c geom.Cube) geom.Vec {
	v := c.Center()
	v.Z = float64(c.Z)
	return v
}
