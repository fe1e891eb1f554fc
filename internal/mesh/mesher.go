// Package mesh turns chunk block grids into face-culled triangle meshes.
package mesh

import (
	"github.com/go-gl/mathgl/mgl32"

	"voxelstream/internal/gpu"
	"voxelstream/internal/world"
)

// NeighborLookup answers for world cells outside the chunk being meshed.
type NeighborLookup func(x, y, z int) world.BlockType

// Build emits one quad per solid block face whose neighbor is air. Vertex
// positions are local to the chunk. Neighbors past the chunk edge are read
// through lookup; a nil lookup treats them as air.
func Build(c *world.Chunk, lookup NeighborLookup) gpu.Mesh {
	var m gpu.Mesh
	if c.IsEmpty() {
		return m
	}

	ox := int(c.Coord.X) * world.ChunkSize
	oy := int(c.Coord.Y) * world.ChunkSize
	oz := int(c.Coord.Z) * world.ChunkSize

	for y := 0; y < world.ChunkSize; y++ {
		for z := 0; z < world.ChunkSize; z++ {
			for x := 0; x < world.ChunkSize; x++ {
				block := c.Blocks[world.Index(x, y, z)]
				if !block.Solid() {
					continue
				}
				for f := range faces {
					def := &faces[f]
					nx, ny, nz := x+def.dir[0], y+def.dir[1], z+def.dir[2]

					var neighbor world.BlockType
					if inside(nx) && inside(ny) && inside(nz) {
						neighbor = c.Blocks[world.Index(nx, ny, nz)]
					} else if lookup != nil {
						neighbor = lookup(ox+nx, oy+ny, oz+nz)
					}
					if neighbor.Solid() {
						continue
					}
					m = appendFace(m, def, x, y, z, block)
				}
			}
		}
	}
	return m
}

func inside(v int) bool { return v >= 0 && v < world.ChunkSize }

func appendFace(m gpu.Mesh, def *faceDef, x, y, z int, block world.BlockType) gpu.Mesh {
	base := uint32(len(m.Vertices))
	for i, corner := range def.corners {
		m.Vertices = append(m.Vertices, gpu.Vertex{
			Position: corner.Add(mgl32.Vec3{float32(x), float32(y), float32(z)}),
			Normal:   def.normal,
			UV:       cornerUVs[i],
			Material: float32(block),
		})
	}
	for _, idx := range quadIndices {
		m.Indices = append(m.Indices, base+idx)
	}
	return m
}
