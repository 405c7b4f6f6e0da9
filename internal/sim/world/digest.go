package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

// stateDigest hashes everything that influences future ticks. Two worlds
// built from the same scenario and seed produce the same digest sequence.
func (w *World) stateDigest() string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, w.tick)
	digestWriteF64(h, &tmp, w.time)
	h.Write([]byte(w.grid.Digest()))

	digestWriteU64(h, &tmp, uint64(len(w.units)))
	for _, u := range w.units {
		h.Write([]byte(u.Name()))
		p := u.Pos()
		digestWriteF64(h, &tmp, p.X)
		digestWriteF64(h, &tmp, p.Y)
		digestWriteF64(h, &tmp, p.Z)
		digestWriteF64(h, &tmp, u.HitPoints())
		digestWriteF64(h, &tmp, u.Stamina())
		digestWriteU64(h, &tmp, uint64(u.Experience()))
		a := u.Attributes()
		for _, v := range []int{a.Strength, a.Agility, a.Toughness, a.Weight} {
			digestWriteU64(h, &tmp, uint64(v))
		}
		h.Write([]byte{byte(u.Activity()), boolByte(u.Carrying())})
	}

	digestWriteU64(h, &tmp, uint64(len(w.materials)))
	for _, m := range w.materials {
		digestWriteU64(h, &tmp, m.ID())
		digestWriteU64(h, &tmp, uint64(m.Weight()))
		p := m.Pos()
		digestWriteF64(h, &tmp, p.X)
		digestWriteF64(h, &tmp, p.Y)
		digestWriteF64(h, &tmp, p.Z)
		h.Write([]byte{byte(m.Kind())})
	}

	for _, ci := range w.caveIns {
		digestWriteU64(h, &tmp, uint64(int64(ci.cube.X)))
		digestWriteU64(h, &tmp, uint64(int64(ci.cube.Y)))
		digestWriteU64(h, &tmp, uint64(int64(ci.cube.Z)))
		digestWriteF64(h, &tmp, ci.remaining)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteF64(h hashWriter, tmp *[8]byte, v float64) {
	digestWriteU64(h, tmp, math.Float64bits(v))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// Digest is the state digest of the current tick boundary.
func (w *World) Digest() string { return w.stateDigest() }
