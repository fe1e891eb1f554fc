package stream

import (
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelstream/internal/arena"
	"voxelstream/internal/config"
	"voxelstream/internal/gpu"
	"voxelstream/internal/gpu/memory"
	"voxelstream/internal/logging"
	"voxelstream/internal/terrain"
	"voxelstream/internal/world"
)

type recordingResidency struct {
	attached []world.ChunkCoord
	detached []world.ChunkCoord
	next     uint32
}

func (r *recordingResidency) Attach(c *world.Chunk) error {
	if c.IsEmpty() {
		return nil
	}
	r.attached = append(r.attached, c.Coord)
	c.Buffer = &gpu.BufferBlock{Slot: r.next}
	r.next++
	return nil
}

func (r *recordingResidency) Detach(c *world.Chunk) {
	if c.Buffer != nil {
		r.detached = append(r.detached, c.Coord)
		c.Buffer = nil
	}
}

// singleBlockGenerator makes every chunk empty except one, which gets a
// single stone block.
type singleBlockGenerator struct {
	solid world.ChunkCoord
}

func (g singleBlockGenerator) Generate(coord world.ChunkCoord) *world.Chunk {
	blocks := make([]world.BlockType, world.Volume)
	if coord == g.solid {
		blocks[world.Index(4, 4, 4)] = world.Stone
	}
	return world.NewChunk(coord, blocks)
}

func (g singleBlockGenerator) BlockAt(x, y, z int) world.BlockType {
	coord, lx, ly, lz := world.ChunkOfBlock(x, y, z)
	if coord == g.solid && lx == 4 && ly == 4 && lz == 4 {
		return world.Stone
	}
	return world.Air
}

// gatedGenerator blocks inside its first Generate call until released.
type gatedGenerator struct {
	Generator
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGated(inner Generator) *gatedGenerator {
	return &gatedGenerator{Generator: inner, entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedGenerator) Generate(coord world.ChunkCoord) *world.Chunk {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return g.Generator.Generate(coord)
}

func terrainGenerator() *terrain.Generator {
	cfg := config.Default()
	return terrain.New(cfg.World.Seed, cfg.Terrain)
}

func newScheduler(t *testing.T, gen Generator, res Residency, rd int) (*Scheduler, *world.Store) {
	t.Helper()
	store := world.NewStore()
	s := New(gen, store, res, Options{RenderDistance: rd}, logging.Discard())
	t.Cleanup(s.Close)
	return s, store
}

func coords(store *world.Store) []world.ChunkCoord {
	var out []world.ChunkCoord
	for _, c := range store.Snapshot() {
		out = append(out, c.Coord)
	}
	return out
}

func window(cx, cz int32, rd int) []world.ChunkCoord {
	var out []world.ChunkCoord
	r := int32(rd)
	for y := int32(0); y < 2*r; y++ {
		for z := cz - r; z < cz+r; z++ {
			for x := cx - r; x < cx+r; x++ {
				out = append(out, world.ChunkCoord{X: x, Y: y, Z: z})
			}
		}
	}
	return out
}

func TestDesiredSetAroundOrigin(t *testing.T) {
	res := &recordingResidency{}
	s, store := newScheduler(t, terrainGenerator(), res, 2)

	report, err := s.Tick(mgl32.Vec3{0.5, 10, 0.5})
	require.NoError(t, err)
	assert.True(t, report.Scanned)
	s.Wait()

	report, err = s.Tick(mgl32.Vec3{0.5, 10, 0.5})
	require.NoError(t, err)
	assert.False(t, report.Scanned)
	assert.Equal(t, 64, report.Inserted)

	assert.ElementsMatch(t, window(0, 0, 2), coords(store))

	nonEmpty := 0
	for _, c := range store.Snapshot() {
		if c.IsEmpty() {
			assert.Nil(t, c.Buffer, "empty chunk %v got a buffer", c.Coord)
		} else {
			nonEmpty++
			assert.NotNil(t, c.Buffer)
			assert.False(t, c.Mesh.Empty())
		}
	}
	assert.Equal(t, nonEmpty, len(res.attached))
	assert.Less(t, nonEmpty, 64, "upper chunks are above the surface")
	assert.Zero(t, s.Queued())
}

func TestTickIsIdempotentForUnchangedViewer(t *testing.T) {
	s, _ := newScheduler(t, terrainGenerator(), &recordingResidency{}, 1)

	_, err := s.Tick(mgl32.Vec3{5, 5, 5})
	require.NoError(t, err)
	s.Wait()
	_, err = s.Tick(mgl32.Vec3{5, 5, 5})
	require.NoError(t, err)
	generated := s.Generated()

	for i := 0; i < 3; i++ {
		report, err := s.Tick(mgl32.Vec3{6, 40, 7})
		require.NoError(t, err)
		assert.False(t, report.Scanned)
		s.Wait()
	}
	assert.Equal(t, int64(1), s.Scans())
	assert.Equal(t, generated, s.Generated())
	assert.Equal(t, int64(8), generated)
}

func TestEvictionReturnsBlockToFreeListFront(t *testing.T) {
	backend := memory.New(1, 1)
	alloc, err := arena.New(backend, config.ArenaConfig{MaxDrawCalls: 64, SlotVertices: 64, SlotIndices: 96, FramesInFlight: 2}, logging.Discard())
	require.NoError(t, err)

	target := world.ChunkCoord{X: -2, Y: 0, Z: 0}
	s, store := newScheduler(t, singleBlockGenerator{solid: target}, alloc, 2)

	_, err = s.Tick(mgl32.Vec3{1, 1, 1})
	require.NoError(t, err)
	s.Wait()
	_, err = s.Tick(mgl32.Vec3{1, 1, 1})
	require.NoError(t, err)

	resident, ok := store.At(target.Key())
	require.True(t, ok)
	require.NotNil(t, resident.Buffer)
	block := *resident.Buffer
	assert.Equal(t, 24, block.VertexCount)
	assert.Empty(t, alloc.FreeList())

	// chunk x=3 puts the window at x in [1, 4]
	report, err := s.Tick(mgl32.Vec3{3*32 + 1, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, 48, report.Evicted)
	assert.False(t, store.Contains(target.Key()))
	assert.Nil(t, resident.Buffer)
	require.NotEmpty(t, alloc.FreeList())
	assert.Equal(t, block, alloc.FreeList()[0])
	assert.Equal(t, 0, alloc.InUse())
}

func TestVerticalMovementDoesNotEvict(t *testing.T) {
	s, store := newScheduler(t, terrainGenerator(), &recordingResidency{}, 1)
	_, err := s.Tick(mgl32.Vec3{0, 0, 0})
	require.NoError(t, err)
	s.Wait()
	_, err = s.Tick(mgl32.Vec3{0, 0, 0})
	require.NoError(t, err)
	before := store.Len()

	report, err := s.Tick(mgl32.Vec3{0, 500, 0})
	require.NoError(t, err)
	assert.Zero(t, report.Evicted)
	assert.False(t, report.Scanned)
	assert.Equal(t, before, store.Len())
}

func TestNewScanCancelsOldOne(t *testing.T) {
	gen := newGated(terrainGenerator())
	s, store := newScheduler(t, gen, &recordingResidency{}, 2)

	_, err := s.Tick(mgl32.Vec3{0, 0, 0})
	require.NoError(t, err)
	<-gen.entered

	far := mgl32.Vec3{100 * 32, 0, 0}
	report, err := s.Tick(far)
	require.NoError(t, err)
	assert.True(t, report.Scanned)
	close(gen.release)
	s.Wait()

	_, err = s.Tick(far)
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.Scans())
	assert.Equal(t, int64(1), s.Aborted())
	assert.ElementsMatch(t, window(100, 0, 2), coords(store))
}

func TestDrainDiscardsChunksOutsideWindow(t *testing.T) {
	s, store := newScheduler(t, terrainGenerator(), &recordingResidency{}, 1)
	_, err := s.Tick(mgl32.Vec3{0, 0, 0})
	require.NoError(t, err)
	s.Wait()

	report, err := s.Tick(mgl32.Vec3{-10 * 32, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 8, report.Discarded)
	assert.Zero(t, report.Inserted)
	assert.Zero(t, store.Len())
}

func TestStalledScanLogsWarning(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	gen := newGated(terrainGenerator())
	store := world.NewStore()
	s := New(gen, store, &recordingResidency{}, Options{RenderDistance: 1, StallWarning: time.Millisecond}, log)
	defer s.Close()

	_, err := s.Tick(mgl32.Vec3{})
	require.NoError(t, err)
	<-gen.entered
	time.Sleep(5 * time.Millisecond)

	_, err = s.Tick(mgl32.Vec3{})
	require.NoError(t, err)
	_, err = s.Tick(mgl32.Vec3{})
	require.NoError(t, err)
	close(gen.release)
	s.Wait()

	warnings := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings++
			assert.Equal(t, "scan still running", e.Message)
		}
	}
	assert.Equal(t, 1, warnings)
	assert.False(t, s.Scanning())
}

func TestQueuePendingUntilSettled(t *testing.T) {
	q := NewQueue()
	c := world.NewChunk(world.ChunkCoord{X: 1}, nil)
	q.Push(c)
	assert.True(t, q.Has(c.Coord.Key()))
	assert.Equal(t, 1, q.Len())

	items := q.PopAll()
	require.Len(t, items, 1)
	assert.Zero(t, q.Len())
	assert.True(t, q.Has(c.Coord.Key()))

	q.Settle(c.Coord.Key())
	assert.False(t, q.Has(c.Coord.Key()))
}
