package unit

import "voxelcolony.ai/internal/sim/geom"

// Terrain is the part of the world the pathfinder reads.
type Terrain interface {
	InBounds(c geom.Cube) bool
	Standable(c geom.Cube) bool
}

// DistanceField holds, for every standable cube connected to a destination,
// the number of 26-connected steps to reach it.
type DistanceField struct {
	dest geom.Cube
	dist map[geom.Cube]int
}

// ComputeDistances runs a breadth-first search backwards from dest over
// standable cubes. The search stops early once from has been reached; every
// cube that could be a better next step for from is already settled then.
func ComputeDistances(t Terrain, dest, from geom.Cube) DistanceField {
	f := DistanceField{dest: dest, dist: map[geom.Cube]int{dest: 0}}
	if !t.InBounds(dest) || !t.Standable(dest) {
		f.dist = map[geom.Cube]int{}
		return f
	}
	queue := []geom.Cube{dest}
	for head := 0; head < len(queue); head++ {
		c := queue[head]
		d := f.dist[c]
		if _, ok := f.dist[from]; ok && d >= f.dist[from] {
			break
		}
		for _, n := range geom.Neighbours26(c) {
			if _, seen := f.dist[n]; seen {
				continue
			}
			if !t.InBounds(n) || !t.Standable(n) {
				continue
			}
			f.dist[n] = d + 1
			queue = append(queue, n)
		}
	}
	return f
}

func (f DistanceField) Reaches(c geom.Cube) bool {
	_, ok := f.dist[c]
	return ok
}

func (f DistanceField) Distance(c geom.Cube) (int, bool) {
	d, ok := f.dist[c]
	return d, ok
}

// NextStep returns the neighbour of from with the smallest recorded distance.
// Ties resolve by the fixed neighbour order.
func (f DistanceField) NextStep(from geom.Cube) (geom.Cube, bool) {
	var best geom.Cube
	bestDist, found := 0, false
	for _, n := range geom.Neighbours26(from) {
		d, ok := f.dist[n]
		if !ok {
			continue
		}
		if !found || d < bestDist {
			best, bestDist, found = n, d, true
		}
	}
	return best, found
}
