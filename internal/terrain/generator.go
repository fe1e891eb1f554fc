package terrain

import (
	"math"

	"github.com/ojrac/opensimplex-go"

	"voxelstream/internal/config"
	"voxelstream/internal/world"
)

// Generator maps world coordinates to blocks. It holds no mutable state and is
// safe for concurrent use.
type Generator struct {
	noise     opensimplex.Noise32
	base      config.Octave
	detail    config.Octave
	soilDepth int
}

func New(seed int64, cfg config.TerrainConfig) *Generator {
	return &Generator{
		noise:     opensimplex.New32(seed),
		base:      cfg.Base,
		detail:    cfg.Detail,
		soilDepth: cfg.SoilDepth,
	}
}

// sample evaluates one octave normalized to [0, 1] and scaled by its amplitude.
func (g *Generator) sample(o config.Octave, x, z int) int {
	n := (g.noise.Eval2(float32(x)*o.FrequencyX, float32(z)*o.FrequencyZ) + 1) / 2
	return int(math.Floor(float64(n * o.Amplitude)))
}

// HeightAt is the surface height of a column: cells with y below it are solid.
func (g *Generator) HeightAt(x, z int) int {
	return g.sample(g.base, x, z) + g.sample(g.detail, x, z)
}

// BlockAt classifies one world cell.
func (g *Generator) BlockAt(x, y, z int) world.BlockType {
	return g.classify(y, g.HeightAt(x, z))
}

func (g *Generator) classify(y, height int) world.BlockType {
	switch {
	case y >= height:
		return world.Air
	case y == height-1:
		return world.Grass
	case y >= height-1-g.soilDepth:
		return world.Dirt
	default:
		return world.Stone
	}
}

// Generate fills the chunk at coord. Columns are sampled once and the grid is
// filled y outer, z, x inner.
func (g *Generator) Generate(coord world.ChunkCoord) *world.Chunk {
	ox := int(coord.X) * world.ChunkSize
	oy := int(coord.Y) * world.ChunkSize
	oz := int(coord.Z) * world.ChunkSize

	var heights [world.ChunkSize * world.ChunkSize]int
	top := math.MinInt
	for z := 0; z < world.ChunkSize; z++ {
		for x := 0; x < world.ChunkSize; x++ {
			h := g.HeightAt(ox+x, oz+z)
			heights[x+z*world.ChunkSize] = h
			top = max(top, h)
		}
	}
	if oy >= top {
		return world.NewChunk(coord, nil)
	}

	blocks := make([]world.BlockType, world.Volume)
	for y := 0; y < world.ChunkSize; y++ {
		for z := 0; z < world.ChunkSize; z++ {
			for x := 0; x < world.ChunkSize; x++ {
				blocks[world.Index(x, y, z)] = g.classify(oy+y, heights[x+z*world.ChunkSize])
			}
		}
	}
	return world.NewChunk(coord, blocks)
}
