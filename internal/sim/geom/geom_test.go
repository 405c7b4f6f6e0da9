package geom

import "testing"

func TestNeighbours26(t *testing.T) {
	c := Cube{X: 2, Y: 3, Z: 4}
	ns := Neighbours26(c)
	if len(ns) != 26 {
		t.Fatalf("expected 26 neighbours, got %d", len(ns))
	}
	seen := map[Cube]bool{}
	for _, n := range ns {
		if !Adjacent(c, n) {
			t.Fatalf("%v is not adjacent to %v", n, c)
		}
		if seen[n] {
			t.Fatalf("duplicate neighbour %v", n)
		}
		seen[n] = true
	}
	if ns[0] != (Cube{X: 1, Y: 2, Z: 3}) {
		t.Fatalf("unexpected first neighbour %v", ns[0])
	}
}

func TestVecCube(t *testing.T) {
	if got := (Vec{X: -0.25, Y: 1.99, Z: 0}).Cube(); got != (Cube{X: -1, Y: 1, Z: 0}) {
		t.Fatalf("unexpected cube %v", got)
	}
	c := Cube{X: 5, Y: 0, Z: 7}
	if c.Center().Cube() != c {
		t.Fatalf("center of %v maps back to %v", c, c.Center().Cube())
	}
}

func TestAdjacentOrSame(t *testing.T) {
	a := Cube{}
	if !AdjacentOrSame(a, a) || Adjacent(a, a) {
		t.Fatalf("same-cube adjacency wrong")
	}
	if AdjacentOrSame(a, Cube{X: 2}) {
		t.Fatalf("distance 2 reported adjacent")
	}
	if Manhattan(a, Cube{X: 1, Y: -1, Z: 1}) != 3 || Chebyshev(a, Cube{X: 1, Y: -1, Z: 1}) != 1 {
		t.Fatalf("distance helpers wrong")
	}
}
