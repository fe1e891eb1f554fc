package world

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// ChunkSize is the edge length of a chunk in blocks.
const ChunkSize = 32

// Volume is the number of cells in a full chunk grid.
const Volume = ChunkSize * ChunkSize * ChunkSize

// ChunkCoord addresses a chunk on the 32-block grid.
type ChunkCoord struct {
	X, Y, Z int32
}

func (c ChunkCoord) String() string { return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z) }

// Origin is the world position of the chunk's minimum corner.
func (c ChunkCoord) Origin() mgl32.Vec3 {
	return mgl32.Vec3{float32(c.X) * ChunkSize, float32(c.Y) * ChunkSize, float32(c.Z) * ChunkSize}
}

// Key is a scalar chunk identifier.
type Key uint64

const (
	keyBits = 21
	keyBias = 1 << (keyBits - 1)
	keyMask = 1<<keyBits - 1
)

// Key packs the coordinate into 21 bits per axis. It is unique for every
// coordinate within ±2^20 chunks.
func (c ChunkCoord) Key() Key {
	x := uint64(int64(c.X)+keyBias) & keyMask
	y := uint64(int64(c.Y)+keyBias) & keyMask
	z := uint64(int64(c.Z)+keyBias) & keyMask
	return Key(x | y<<keyBits | z<<(2*keyBits))
}

// Coord reverses ChunkCoord.Key.
func (k Key) Coord() ChunkCoord {
	return ChunkCoord{
		X: int32(int64(uint64(k)&keyMask) - keyBias),
		Y: int32(int64(uint64(k)>>keyBits&keyMask) - keyBias),
		Z: int32(int64(uint64(k)>>(2*keyBits)&keyMask) - keyBias),
	}
}

// ChunkOf returns the chunk containing a world position.
func ChunkOf(pos mgl32.Vec3) ChunkCoord {
	return ChunkCoord{
		X: int32(math.Floor(float64(pos.X() / ChunkSize))),
		Y: int32(math.Floor(float64(pos.Y() / ChunkSize))),
		Z: int32(math.Floor(float64(pos.Z() / ChunkSize))),
	}
}

// ChunkOfBlock returns the chunk containing a world block and the block's
// local coordinates within it.
func ChunkOfBlock(x, y, z int) (ChunkCoord, int, int, int) {
	cx, lx := floorDiv(x)
	cy, ly := floorDiv(y)
	cz, lz := floorDiv(z)
	return ChunkCoord{X: int32(cx), Y: int32(cy), Z: int32(cz)}, lx, ly, lz
}

func floorDiv(v int) (int, int) {
	q := v / ChunkSize
	r := v % ChunkSize
	if r < 0 {
		q--
		r += ChunkSize
	}
	return q, r
}
