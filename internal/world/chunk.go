package world

import (
	"github.com/go-gl/mathgl/mgl32"

	"voxelstream/internal/gpu"
)

// Chunk is a generated 32³ block grid plus its mesh and, once resident on the
// GPU, the arena block holding that mesh.
//
// Blocks is either Volume cells laid out x + z*32 + y*32*32, or a single Air
// cell for a chunk with no solid blocks. A chunk is never modified after it
// leaves the generator, apart from Buffer which the main thread owns.
type Chunk struct {
	Coord  ChunkCoord
	Blocks []BlockType
	Bounds AABB
	Mesh   gpu.Mesh
	Buffer *gpu.BufferBlock
}

// NewChunk wraps a full grid, collapsing it to uniform air when nothing in it
// is solid.
func NewChunk(coord ChunkCoord, blocks []BlockType) *Chunk {
	origin := coord.Origin()
	c := &Chunk{
		Coord:  coord,
		Blocks: blocks,
		Bounds: AABB{Min: origin, Max: origin.Add(mgl32.Vec3{ChunkSize, ChunkSize, ChunkSize})},
	}
	if allAir(blocks) {
		c.Blocks = []BlockType{Air}
	}
	return c
}

func allAir(blocks []BlockType) bool {
	for _, b := range blocks {
		if b != Air {
			return false
		}
	}
	return true
}

// Index linearizes local coordinates.
func Index(x, y, z int) int {
	return x + z*ChunkSize + y*ChunkSize*ChunkSize
}

// IsEmpty reports the uniform-air form.
func (c *Chunk) IsEmpty() bool {
	return len(c.Blocks) == 1 && c.Blocks[0] == Air
}

// Block reads a local cell. Out-of-range coordinates read as Air.
func (c *Chunk) Block(x, y, z int) BlockType {
	if c.IsEmpty() || x < 0 || y < 0 || z < 0 || x >= ChunkSize || y >= ChunkSize || z >= ChunkSize {
		return Air
	}
	return c.Blocks[Index(x, y, z)]
}

// Transform is the model matrix placing the chunk in the world.
func (c *Chunk) Transform() mgl32.Mat4 {
	o := c.Coord.Origin()
	return mgl32.Translate3D(o.X(), o.Y(), o.Z())
}

// Resident reports whether the chunk holds an arena block.
func (c *Chunk) Resident() bool { return c.Buffer != nil }
