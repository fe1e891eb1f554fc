package arena

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelstream/internal/config"
	"voxelstream/internal/gpu"
	"voxelstream/internal/gpu/memory"
	"voxelstream/internal/logging"
	"voxelstream/internal/world"
)

var testArena = config.ArenaConfig{MaxDrawCalls: 4, SlotVertices: 8, SlotIndices: 12, FramesInFlight: 2}

func newAllocator(t *testing.T, cfg config.ArenaConfig) (*Allocator, *memory.Backend) {
	t.Helper()
	backend := memory.New(1, 1)
	a, err := New(backend, cfg, logging.Discard())
	require.NoError(t, err)
	return a, backend
}

func quad(n int, material float32) gpu.Mesh {
	var m gpu.Mesh
	for q := 0; q < n; q++ {
		base := uint32(len(m.Vertices))
		for i := 0; i < 4; i++ {
			m.Vertices = append(m.Vertices, gpu.Vertex{Position: mgl32.Vec3{float32(q), float32(i), 0}, Material: material})
		}
		m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return m
}

func TestAssignAppendsAtTail(t *testing.T) {
	a, _ := newAllocator(t, testArena)

	first, err := a.Assign(quad(1, 1))
	require.NoError(t, err)
	second, err := a.Assign(quad(2, 1))
	require.NoError(t, err)

	assert.Equal(t, uint32(0), first.Slot)
	assert.Equal(t, uint32(1), second.Slot)
	assert.Equal(t, 8*gpu.VertexSize, second.VertexOffset)
	assert.Equal(t, 12*gpu.IndexSize, second.IndexOffset)
	assert.Equal(t, 8, second.VertexCount)
	assert.Equal(t, 12, second.IndexCount)
	assert.Equal(t, int32(8), second.BaseVertex())
	assert.Equal(t, uint32(12), second.FirstIndex())
	assert.Equal(t, 2, a.Tail())
	assert.Equal(t, 2, a.InUse())
}

func TestFreeListReuseIsExact(t *testing.T) {
	a, _ := newAllocator(t, testArena)

	_, err := a.Assign(quad(1, 1))
	require.NoError(t, err)
	block, err := a.Assign(quad(2, 1))
	require.NoError(t, err)

	a.Release(block)
	require.Equal(t, []gpu.BufferBlock{block}, a.FreeList())

	again, err := a.Assign(quad(1, 2))
	require.NoError(t, err)
	assert.Equal(t, block.Slot, again.Slot)
	assert.Equal(t, block.VertexOffset, again.VertexOffset)
	assert.Equal(t, block.IndexOffset, again.IndexOffset)
	assert.Equal(t, 4, again.VertexCount)
	assert.Equal(t, 2, a.Tail())
	assert.Empty(t, a.FreeList())
}

func TestFreeListFrontIsLastReleased(t *testing.T) {
	a, _ := newAllocator(t, testArena)
	b0, _ := a.Assign(quad(1, 1))
	b1, _ := a.Assign(quad(1, 1))

	a.Release(b0)
	a.Release(b1)
	assert.Equal(t, b1, a.FreeList()[0])

	next, err := a.Assign(quad(1, 1))
	require.NoError(t, err)
	assert.Equal(t, b1.Slot, next.Slot)
}

func TestExhaustionIsReported(t *testing.T) {
	cfg := testArena
	cfg.MaxDrawCalls = 2
	a, _ := newAllocator(t, cfg)

	_, err := a.Assign(quad(1, 1))
	require.NoError(t, err)
	_, err = a.Assign(quad(1, 1))
	require.NoError(t, err)

	_, err = a.Assign(quad(1, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrArenaExhausted))
	assert.Equal(t, 2, a.Tail())

	v, i := a.TailBytes()
	assert.LessOrEqual(t, v, a.VertexCapacity())
	assert.LessOrEqual(t, i, a.IndexCapacity())
}

func TestMeshTooLarge(t *testing.T) {
	a, _ := newAllocator(t, testArena)
	_, err := a.Assign(quad(3, 1))
	assert.True(t, errors.Is(err, ErrMeshTooLarge))
	assert.Equal(t, 0, a.Tail())
}

func TestTailBoundedByWorkingSet(t *testing.T) {
	a, _ := newAllocator(t, config.ArenaConfig{MaxDrawCalls: 16, SlotVertices: 8, SlotIndices: 12, FramesInFlight: 1})
	rng := rand.New(rand.NewSource(7))

	var live []gpu.BufferBlock
	for step := 0; step < 2000; step++ {
		if len(live) < a.Slots() && (len(live) == 0 || rng.Intn(2) == 0) {
			b, err := a.Assign(quad(1+rng.Intn(2), 1))
			require.NoError(t, err)
			live = append(live, b)
		} else {
			i := rng.Intn(len(live))
			a.Release(live[i])
			live = append(live[:i], live[i+1:]...)
		}
		require.LessOrEqual(t, a.Tail(), a.Slots())
		require.Equal(t, len(live), a.InUse())
	}

	slots := make(map[uint32]bool)
	for _, b := range live {
		require.False(t, slots[b.Slot], "slot %d handed out twice", b.Slot)
		slots[b.Slot] = true
	}
	for _, b := range a.FreeList() {
		require.False(t, slots[b.Slot], "slot %d both live and free", b.Slot)
	}
}

func TestFlushCopiesOnlyAssignedRanges(t *testing.T) {
	a, backend := newAllocator(t, testArena)
	_, _ = a.Assign(quad(1, 1))
	block, err := a.Assign(quad(2, 3))
	require.NoError(t, err)

	n, err := a.Flush(0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, a.Pending(0))
	assert.Equal(t, 2, a.Pending(1))

	copies := backend.Copies()
	require.Len(t, copies, 4)
	for _, c := range copies {
		assert.Equal(t, a.Arena(0), c.Arena)
		assert.Equal(t, c.Src, c.Dst)
	}
	assert.Equal(t, copyOf(gpu.VertexTarget, block.VertexOffset, 8*gpu.VertexSize), strip(copies[2]))
	assert.Equal(t, copyOf(gpu.IndexTarget, block.IndexOffset, 12*gpu.IndexSize), strip(copies[3]))

	want := gpu.EncodeVertices(quad(2, 3).Vertices)
	assert.Equal(t, want, backend.Live(a.Arena(0), gpu.VertexTarget, block.VertexOffset, len(want)))

	n, err = a.Flush(0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReleaseDropsPendingUpload(t *testing.T) {
	a, backend := newAllocator(t, testArena)
	block, _ := a.Assign(quad(1, 1))
	a.Release(block)

	n, err := a.Flush(1)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, backend.Copies())
}

func TestAttachAndDetachChunk(t *testing.T) {
	a, _ := newAllocator(t, testArena)

	empty := world.NewChunk(world.ChunkCoord{Y: 4}, nil)
	require.NoError(t, a.Attach(empty))
	assert.Nil(t, empty.Buffer)

	blocks := make([]world.BlockType, world.Volume)
	blocks[0] = world.Stone
	c := world.NewChunk(world.ChunkCoord{}, blocks)
	c.Mesh = quad(1, 3)
	require.NoError(t, a.Attach(c))
	require.NotNil(t, c.Buffer)
	first := *c.Buffer

	require.NoError(t, a.Attach(c))
	assert.Equal(t, 1, a.InUse())

	a.Detach(c)
	assert.Nil(t, c.Buffer)
	assert.Equal(t, first, a.FreeList()[0])
	a.Detach(c)
	assert.Len(t, a.FreeList(), 1)
}

type copyRange struct {
	Target gpu.Target
	Offset int
	Size   int
}

func copyOf(target gpu.Target, off, size int) copyRange { return copyRange{target, off, size} }

func strip(c memory.Copy) copyRange { return copyRange{c.Target, c.Dst, c.Size} }
