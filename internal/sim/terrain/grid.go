package terrain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"voxelcolony.ai/internal/sim/geom"
)

// Kind is the material of a single cube.
type Kind uint8

const (
	Air Kind = iota
	Rock
	Tree
	Workshop
)

func (k Kind) String() string {
	switch k {
	case Air:
		return "air"
	case Rock:
		return "rock"
	case Tree:
		return "tree"
	case Workshop:
		return "workshop"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Passable reports whether units and materials may occupy a cube of this kind.
func (k Kind) Passable() bool { return k == Air || k == Workshop }

// Solid is the complement of Passable.
func (k Kind) Solid() bool { return !k.Passable() }

// Grid is a bounded voxel grid. Cubes outside the bounds are treated as solid
// boundary that can never be entered.
type Grid struct {
	sizeX, sizeY, sizeZ int
	cubes               []Kind

	dirty bool
	hash  [32]byte
}

func NewGrid(sizeX, sizeY, sizeZ int) (*Grid, error) {
	if sizeX <= 0 || sizeY <= 0 || sizeZ <= 0 {
		return nil, fmt.Errorf("terrain: invalid size %dx%dx%d", sizeX, sizeY, sizeZ)
	}
	return &Grid{
		sizeX: sizeX,
		sizeY: sizeY,
		sizeZ: sizeZ,
		cubes: make([]Kind, sizeX*sizeY*sizeZ),
		dirty: true,
	}, nil
}

func (g *Grid) Size() (int, int, int) { return g.sizeX, g.sizeY, g.sizeZ }

func (g *Grid) index(c geom.Cube) int {
	return c.X + c.Y*g.sizeX + c.Z*g.sizeX*g.sizeY
}

func (g *Grid) InBounds(c geom.Cube) bool {
	return c.X >= 0 && c.Y >= 0 && c.Z >= 0 && c.X < g.sizeX && c.Y < g.sizeY && c.Z < g.sizeZ
}

// Get returns the kind at c; out-of-bounds cubes read as Rock.
func (g *Grid) Get(c geom.Cube) Kind {
	if !g.InBounds(c) {
		return Rock
	}
	return g.cubes[g.index(c)]
}

func (g *Grid) Set(c geom.Cube, k Kind) error {
	if !g.InBounds(c) {
		return fmt.Errorf("terrain: %v out of bounds", c)
	}
	i := g.index(c)
	if g.cubes[i] == k {
		return nil
	}
	g.cubes[i] = k
	g.dirty = true
	return nil
}

func (g *Grid) Passable(c geom.Cube) bool {
	return g.InBounds(c) && g.cubes[g.index(c)].Passable()
}

// Solid reports whether c is an in-bounds solid cube.
func (g *Grid) Solid(c geom.Cube) bool {
	return g.InBounds(c) && g.cubes[g.index(c)].Solid()
}

// Standable reports whether a unit can stand in c: the cube is passable and
// rests on the world floor or touches a solid cube.
func (g *Grid) Standable(c geom.Cube) bool {
	if !g.Passable(c) {
		return false
	}
	if c.Z == 0 {
		return true
	}
	for _, n := range geom.Neighbours26(c) {
		if g.Solid(n) {
			return true
		}
	}
	return false
}

// Supported reports whether something in c rests on solid ground or the floor.
func (g *Grid) Supported(c geom.Cube) bool {
	return c.Z == 0 || g.Solid(c.Below())
}

func (g *Grid) onBoundary(c geom.Cube) bool {
	return c.X == 0 || c.Y == 0 || c.Z == 0 || c.X == g.sizeX-1 || c.Y == g.sizeY-1 || c.Z == g.sizeZ-1
}

// Unanchored returns the solid cubes that are no longer connected (through
// 6-connected solid cubes) to the world boundary. Order is deterministic.
func (g *Grid) Unanchored() []geom.Cube {
	anchored := make([]bool, len(g.cubes))
	queue := make([]geom.Cube, 0, 256)
	for z := 0; z < g.sizeZ; z++ {
		for y := 0; y < g.sizeY; y++ {
			for x := 0; x < g.sizeX; x++ {
				c := geom.Cube{X: x, Y: y, Z: z}
				if g.onBoundary(c) && g.Solid(c) {
					anchored[g.index(c)] = true
					queue = append(queue, c)
				}
			}
		}
	}
	faces := []geom.Cube{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1}, {Z: -1}}
	for head := 0; head < len(queue); head++ {
		c := queue[head]
		for _, d := range faces {
			n := c.Add(d)
			if !g.Solid(n) || anchored[g.index(n)] {
				continue
			}
			anchored[g.index(n)] = true
			queue = append(queue, n)
		}
	}
	var out []geom.Cube
	for z := 0; z < g.sizeZ; z++ {
		for y := 0; y < g.sizeY; y++ {
			for x := 0; x < g.sizeX; x++ {
				c := geom.Cube{X: x, Y: y, Z: z}
				if g.Solid(c) && !anchored[g.index(c)] {
					out = append(out, c)
				}
			}
		}
	}
	return out
}

// Digest is a sha256 over the cube kinds, cached until the next change.
func (g *Grid) Digest() string {
	if g.dirty || g.hash == ([32]byte{}) {
		h := sha256.New()
		buf := make([]byte, len(g.cubes))
		for i, k := range g.cubes {
			buf[i] = byte(k)
		}
		h.Write(buf)
		copy(g.hash[:], h.Sum(nil))
		g.dirty = false
	}
	return hex.EncodeToString(g.hash[:])
}

// Kinds returns a copy of the raw cube kinds in x-major, then y, then z order.
func (g *Grid) Kinds() []Kind {
	out := make([]Kind, len(g.cubes))
	copy(out, g.cubes)
	return out
}
