package geom

import "math"

// Cube is an integer cube coordinate. Z points up.
type Cube struct {
	X int
	Y int
	Z int
}

func (c Cube) ToArray() [3]int { return [3]int{c.X, c.Y, c.Z} }

func (c Cube) Add(d Cube) Cube { return Cube{X: c.X + d.X, Y: c.Y + d.Y, Z: c.Z + d.Z} }

func (c Cube) Sub(d Cube) Cube { return Cube{X: c.X - d.X, Y: c.Y - d.Y, Z: c.Z - d.Z} }

// Center returns the position in the middle of the cube.
func (c Cube) Center() Vec {
	return Vec{X: float64(c.X) + 0.5, Y: float64(c.Y) + 0.5, Z: float64(c.Z) + 0.5}
}

// Below returns the cube directly underneath.
func (c Cube) Below() Cube { return Cube{X: c.X, Y: c.Y, Z: c.Z - 1} }

// Vec is a continuous position in world units (one unit per cube edge).
type Vec struct {
	X float64
	Y float64
	Z float64
}

func (v Vec) Add(o Vec) Vec { return Vec{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }

func (v Vec) Sub(o Vec) Vec { return Vec{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z} }

func (v Vec) Scale(f float64) Vec { return Vec{X: v.X * f, Y: v.Y * f, Z: v.Z * f} }

func (v Vec) Len() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

// Cube returns the cube containing v.
func (v Vec) Cube() Cube {
	return Cube{X: FloorInt(v.X), Y: FloorInt(v.Y), Z: FloorInt(v.Z)}
}

func FloorInt(f float64) int { return int(math.Floor(f)) }

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func Manhattan(a, b Cube) int {
	return AbsInt(a.X-b.X) + AbsInt(a.Y-b.Y) + AbsInt(a.Z-b.Z)
}

// Chebyshev is the number of 26-connected steps between a and b on an empty grid.
func Chebyshev(a, b Cube) int {
	return max(AbsInt(a.X-b.X), AbsInt(a.Y-b.Y), AbsInt(a.Z-b.Z))
}

// Adjacent reports whether b is one of the 26 neighbours of a.
func Adjacent(a, b Cube) bool {
	return a != b && Chebyshev(a, b) == 1
}

// AdjacentOrSame reports whether b is a or one of its 26 neighbours.
func AdjacentOrSame(a, b Cube) bool {
	return Chebyshev(a, b) <= 1
}

var neighbourOffsets = func() []Cube {
	out := make([]Cube, 0, 26)
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				out = append(out, Cube{X: dx, Y: dy, Z: dz})
			}
		}
	}
	return out
}()

// Neighbours26 returns the 26 neighbours of c in a fixed order.
func Neighbours26(c Cube) []Cube {
	out := make([]Cube, len(neighbourOffsets))
	for i, d := range neighbourOffsets {
		out[i] = c.Add(d)
	}
	return out
}

// Orientation returns the heading (radians) from a towards b in the XY plane.
func Orientation(from, to Vec) float64 {
	return math.Atan2(to.Y-from.Y, to.X-from.X)
}
