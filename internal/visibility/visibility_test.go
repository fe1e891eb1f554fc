package visibility

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelstream/internal/config"
	"voxelstream/internal/gpu"
	"voxelstream/internal/gpu/memory"
	"voxelstream/internal/world"
)

func lookingDownZ() *Camera {
	cam := NewCamera(config.Default().Camera)
	cam.LookAt(mgl32.Vec3{16, 16, 100}, mgl32.Vec3{16, 16, 0}, mgl32.Vec3{0, 1, 0})
	return cam
}

func residentChunk(coord world.ChunkCoord, slot uint32) *world.Chunk {
	blocks := make([]world.BlockType, world.Volume)
	blocks[0] = world.Stone
	c := world.NewChunk(coord, blocks)
	c.Buffer = &gpu.BufferBlock{Slot: slot}
	return c
}

func storeOf(chunks ...*world.Chunk) *world.Store {
	s := world.NewStore()
	for _, c := range chunks {
		s.Insert(c)
	}
	return s
}

func coordsOf(chunks []*world.Chunk) []world.ChunkCoord {
	out := make([]world.ChunkCoord, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.Coord)
	}
	return out
}

func TestFrustumCornerTest(t *testing.T) {
	cam := lookingDownZ()

	assert.True(t, cam.CanSee(residentChunk(world.ChunkCoord{}, 0).Bounds))
	assert.False(t, cam.CanSee(residentChunk(world.ChunkCoord{Z: 4}, 0).Bounds), "behind the camera")
	assert.False(t, cam.CanSee(residentChunk(world.ChunkCoord{X: 20}, 0).Bounds), "far to the side")
	assert.False(t, cam.CanSee(residentChunk(world.ChunkCoord{Z: -40}, 0).Bounds), "past the far plane")
}

func TestOrientMatchesLookAt(t *testing.T) {
	cam := NewCamera(config.Default().Camera)
	cam.Orient(mgl32.Vec3{1, 2, 3}, -90, 0)
	want := mgl32.Vec3{0, 0, -1}
	for i := range want {
		assert.InDelta(t, want[i], cam.Front[i], 1e-5, "component %d", i)
	}
	assert.Equal(t, world.ChunkCoord{}, cam.Chunk())
}

func TestViewerChunkIsAlwaysVisible(t *testing.T) {
	cam := NewCamera(config.Default().Camera)
	cam.SetPerspective(70, 1, 0.1, 1)
	cam.LookAt(mgl32.Vec3{16, 16, 16}, mgl32.Vec3{16, 16, 0}, mgl32.Vec3{0, 1, 0})

	own := residentChunk(world.ChunkCoord{}, 0)
	require.False(t, cam.CanSee(own.Bounds))

	s := NewSelector(nil, config.VisibilityConfig{})
	visible := s.SelectVisible(storeOf(own, residentChunk(world.ChunkCoord{Z: -1}, 1)), cam)
	assert.Equal(t, []world.ChunkCoord{{}}, coordsOf(visible))
	assert.Equal(t, 1, s.Stats.FrustumCulled)
}

func TestSelectorSkipsEmptyAndNonResident(t *testing.T) {
	cam := lookingDownZ()
	empty := world.NewChunk(world.ChunkCoord{X: -1}, nil)
	pending := residentChunk(world.ChunkCoord{X: 1}, 0)
	pending.Buffer = nil

	s := NewSelector(nil, config.VisibilityConfig{})
	visible := s.SelectVisible(storeOf(empty, pending, residentChunk(world.ChunkCoord{}, 2)), cam)
	assert.Equal(t, []world.ChunkCoord{{}}, coordsOf(visible))
	assert.Equal(t, 1, s.Stats.Resident)
}

func TestOcclusionAgainstClearedDepthKeepsEverything(t *testing.T) {
	cam := lookingDownZ()
	backend := memory.New(400, 225)
	s := NewSelector(backend, config.VisibilityConfig{Occlusion: true, OctreeDepth: 4})

	visible := s.SelectVisible(storeOf(residentChunk(world.ChunkCoord{}, 0), residentChunk(world.ChunkCoord{X: 1}, 1)), cam)
	assert.Len(t, visible, 2)
	assert.Zero(t, s.Stats.OcclusionCulled)
}

func TestOccludedRootStopsRecursion(t *testing.T) {
	cam := NewCamera(config.Default().Camera)
	cam.LookAt(mgl32.Vec3{16, 16, 300}, mgl32.Vec3{16, 16, 0}, mgl32.Vec3{0, 1, 0})
	backend := memory.New(400, 225)
	backend.ClearDepth(0.5)
	culler := NewCuller(backend, 4)

	candidates := []*world.Chunk{residentChunk(world.ChunkCoord{}, 0), residentChunk(world.ChunkCoord{X: 1}, 1)}
	visible := culler.Filter(cam, candidates, world.ChunkCoord{X: 50})
	assert.Empty(t, visible)
	assert.Equal(t, 1, culler.NodesTested)
}

func TestOcclusionRefinesPerChunk(t *testing.T) {
	cam := lookingDownZ()
	backend := memory.New(400, 225)
	for y := 0; y < 225; y++ {
		for x := 0; x < 200; x++ {
			backend.SetDepth(x, y, 0.5)
		}
	}
	s := NewSelector(backend, config.VisibilityConfig{Occlusion: true, OctreeDepth: 4})

	left := residentChunk(world.ChunkCoord{X: -1}, 0)
	right := residentChunk(world.ChunkCoord{X: 1}, 1)
	visible := s.SelectVisible(storeOf(left, right), cam)

	assert.Equal(t, []world.ChunkCoord{{X: 1}}, coordsOf(visible))
	assert.Equal(t, 1, s.Stats.OcclusionCulled)
	assert.Greater(t, s.Culler().NodesTested, 1)
}

func TestOccludedKeepsForcedChunk(t *testing.T) {
	cam := lookingDownZ()
	backend := memory.New(400, 225)
	backend.ClearDepth(0)
	culler := NewCuller(backend, 2)

	keep := world.ChunkCoord{}
	visible := culler.Filter(cam, []*world.Chunk{residentChunk(keep, 0)}, keep)
	assert.Equal(t, []world.ChunkCoord{keep}, coordsOf(visible))
}

func TestBoxAroundEyeIsNeverOccluded(t *testing.T) {
	cam := lookingDownZ()
	backend := memory.New(400, 225)
	backend.ClearDepth(0)
	culler := NewCuller(backend, 2)

	around := world.AABB{Min: mgl32.Vec3{0, 0, 90}, Max: mgl32.Vec3{32, 32, 110}}
	assert.False(t, culler.Occluded(cam, around))
}

func TestChunkOutsideEveryChildIsKept(t *testing.T) {
	cam := lookingDownZ()
	culler := NewCuller(memory.New(400, 225), 2)

	root := &Node{
		Bounds:   world.AABB{Max: mgl32.Vec3{64, 64, 64}},
		Children: []*Node{{Bounds: world.AABB{Max: mgl32.Vec3{32, 32, 32}}}},
	}
	inside := residentChunk(world.ChunkCoord{}, 0)
	outside := residentChunk(world.ChunkCoord{X: 5}, 1)

	visible := culler.visit(cam, root, []*world.Chunk{inside, outside}, world.ChunkCoord{X: 50}, nil)
	assert.ElementsMatch(t, []world.ChunkCoord{{}, {X: 5}}, coordsOf(visible))
}

func TestOctreeIsReusedUntilRegionMoves(t *testing.T) {
	cam := lookingDownZ()
	culler := NewCuller(memory.New(4, 4), 3)
	a := []*world.Chunk{residentChunk(world.ChunkCoord{}, 0)}

	culler.Filter(cam, a, world.ChunkCoord{})
	culler.Filter(cam, a, world.ChunkCoord{})
	assert.Equal(t, 1, culler.Rebuilds)

	culler.Filter(cam, append(a, residentChunk(world.ChunkCoord{X: 3}, 1)), world.ChunkCoord{})
	assert.Equal(t, 2, culler.Rebuilds)
}

func TestBuildOctreeTilesParent(t *testing.T) {
	box := world.AABB{Max: mgl32.Vec3{128, 128, 128}}
	root := BuildOctree(box, 2)
	assert.Equal(t, 1+8+64, root.Count())

	var volume float32
	for _, c := range root.Children {
		ext := c.Bounds.Max.Sub(c.Bounds.Min)
		volume += ext[0] * ext[1] * ext[2]
		assert.True(t, c.Bounds.Min[0] >= 0 && c.Bounds.Max[0] <= 128)
		assert.Len(t, c.Children, 8)
	}
	assert.Equal(t, float32(128*128*128), volume)
}

func TestChunkAlignedCube(t *testing.T) {
	cube, levels := chunkAlignedCube(world.AABB{Min: mgl32.Vec3{-32, 0, 0}, Max: mgl32.Vec3{64, 32, 32}})
	assert.Equal(t, 2, levels)
	assert.Equal(t, mgl32.Vec3{96, 128, 128}, cube.Max)

	cube, levels = chunkAlignedCube(world.AABB{Max: mgl32.Vec3{32, 32, 32}})
	assert.Zero(t, levels)
	assert.Equal(t, mgl32.Vec3{32, 32, 32}, cube.Max)
}
