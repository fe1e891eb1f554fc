// Package arena manages the fixed-capacity vertex and index arenas that hold
// every resident chunk mesh.
//
// The arena is cut into MaxDrawCalls uniform slots. Slot i always covers the
// same byte ranges, so reuse never fragments. One arena copy exists per frame
// in flight; an upload is replayed into each copy the next time that frame
// is flushed.
package arena

import (
	"errors"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"voxelstream/internal/config"
	"voxelstream/internal/gpu"
	"voxelstream/internal/world"
)

var (
	// ErrArenaExhausted means every slot is attached to a chunk.
	ErrArenaExhausted = errors.New("arena: capacity exhausted")
	// ErrMeshTooLarge means a mesh does not fit in one slot.
	ErrMeshTooLarge = errors.New("arena: mesh exceeds slot capacity")
)

type Allocator struct {
	backend gpu.Backend
	log     logrus.FieldLogger

	slots        int
	slotVertices int
	slotIndices  int

	arenas []gpu.Handle
	// free is a stack; the last element is the front.
	free []gpu.BufferBlock
	tail int
	live int

	// pending[frame][slot] holds meshes not yet copied into that frame's arena
	pending []map[uint32]gpu.Mesh
}

// New allocates one vertex/index arena pair per frame in flight.
func New(backend gpu.Backend, cfg config.ArenaConfig, log logrus.FieldLogger) (*Allocator, error) {
	a := &Allocator{
		backend:      backend,
		log:          log,
		slots:        cfg.MaxDrawCalls,
		slotVertices: cfg.SlotVertices,
		slotIndices:  cfg.SlotIndices,
	}
	for frame := 0; frame < cfg.FramesInFlight; frame++ {
		h, err := backend.AllocateArena(a.VertexCapacity(), a.IndexCapacity())
		if err != nil {
			return nil, fmt.Errorf("allocate arena for frame %d: %w", frame, err)
		}
		a.arenas = append(a.arenas, h)
		a.pending = append(a.pending, make(map[uint32]gpu.Mesh))
	}
	log.WithFields(logrus.Fields{
		"slots":       a.slots,
		"vertexBytes": a.VertexCapacity(),
		"indexBytes":  a.IndexCapacity(),
		"frames":      len(a.arenas),
	}).Debug("arena allocated")
	return a, nil
}

func (a *Allocator) VertexCapacity() int { return a.slots * a.slotVertices * gpu.VertexSize }
func (a *Allocator) IndexCapacity() int { return a.slots * a.slotIndices * gpu.IndexSize }

// Slots is the declared number of draw slots.
func (a *Allocator) Slots() int { return a.slots }

// Frames is the number of arena copies.
func (a *Allocator) Frames() int { return len(a.arenas) }

// Arena returns the backend handle of a frame's arena copy.
func (a *Allocator) Arena(frame int) gpu.Handle { return a.arenas[frame] }

// Assign gives the mesh a slot, reusing the most recently freed one when the
// free list is not empty, and schedules its upload into every frame copy.
func (a *Allocator) Assign(m gpu.Mesh) (gpu.BufferBlock, error) {
	if len(m.Vertices) > a.slotVertices || len(m.Indices) > a.slotIndices {
		return gpu.BufferBlock{}, fmt.Errorf("%w: %d vertices, %d indices (slot holds %d, %d)",
			ErrMeshTooLarge, len(m.Vertices), len(m.Indices), a.slotVertices, a.slotIndices)
	}

	var block gpu.BufferBlock
	if n := len(a.free); n > 0 {
		block = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		if a.tail >= a.slots {
			return gpu.BufferBlock{}, fmt.Errorf("%w: all %d slots in use", ErrArenaExhausted, a.slots)
		}
		block = gpu.BufferBlock{
			Slot:         uint32(a.tail),
			VertexOffset: a.tail * a.slotVertices * gpu.VertexSize,
			IndexOffset:  a.tail * a.slotIndices * gpu.IndexSize,
		}
		a.tail++
		a.log.WithField("tail", a.tail).Debug("arena grew")
	}
	block.VertexCount = len(m.Vertices)
	block.IndexCount = len(m.Indices)

	for _, p := range a.pending {
		p[block.Slot] = m
	}
	a.live++
	return block, nil
}

// Release returns a block to the front of the free list. Its bytes are left
// in place for the next occupant to overwrite.
func (a *Allocator) Release(block gpu.BufferBlock) {
	for _, p := range a.pending {
		delete(p, block.Slot)
	}
	a.free = append(a.free, block)
	a.live--
}

// Attach assigns a block to a non-empty chunk that does not have one yet.
func (a *Allocator) Attach(c *world.Chunk) error {
	if c.IsEmpty() || c.Mesh.Empty() || c.Buffer != nil {
		return nil
	}
	block, err := a.Assign(c.Mesh)
	if err != nil {
		return fmt.Errorf("attach chunk %v: %w", c.Coord, err)
	}
	c.Buffer = &block
	return nil
}

// Detach releases the chunk's block, if any.
func (a *Allocator) Detach(c *world.Chunk) {
	if c.Buffer == nil {
		return
	}
	a.Release(*c.Buffer)
	c.Buffer = nil
}

// Flush stages and copies every upload still pending for frame. Each mesh is
// written at its slot offsets and only its own byte range is copied.
func (a *Allocator) Flush(frame int) (int, error) {
	pending := a.pending[frame]
	if len(pending) == 0 {
		return 0, nil
	}
	slots := make([]uint32, 0, len(pending))
	for s := range pending {
		slots = append(slots, s)
	}
	slices.Sort(slots)

	h := a.arenas[frame]
	for _, s := range slots {
		m := pending[s]
		vOff := int(s) * a.slotVertices * gpu.VertexSize
		iOff := int(s) * a.slotIndices * gpu.IndexSize
		if err := a.upload(h, gpu.VertexTarget, vOff, gpu.EncodeVertices(m.Vertices)); err != nil {
			return 0, fmt.Errorf("flush slot %d: %w", s, err)
		}
		if err := a.upload(h, gpu.IndexTarget, iOff, gpu.EncodeIndices(m.Indices)); err != nil {
			return 0, fmt.Errorf("flush slot %d: %w", s, err)
		}
		delete(pending, s)
	}
	return len(slots), nil
}

func (a *Allocator) upload(h gpu.Handle, target gpu.Target, off int, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := a.backend.StageWrite(h, target, off, data); err != nil {
		return fmt.Errorf("stage %s bytes: %w", target, err)
	}
	if err := a.backend.CopyStagedRegion(h, target, off, off, len(data)); err != nil {
		return fmt.Errorf("copy %s bytes: %w", target, err)
	}
	return nil
}

// FreeList returns the free blocks, front first.
func (a *Allocator) FreeList() []gpu.BufferBlock {
	out := slices.Clone(a.free)
	slices.Reverse(out)
	return out
}

// Tail is the number of slots ever handed out.
func (a *Allocator) Tail() int { return a.tail }

// TailBytes is the vertex and index high-water mark.
func (a *Allocator) TailBytes() (vertex, index int) {
	return a.tail * a.slotVertices * gpu.VertexSize, a.tail * a.slotIndices * gpu.IndexSize
}

// InUse is the number of slots attached to chunks.
func (a *Allocator) InUse() int { return a.live }

// Pending is the number of uploads waiting for frame.
func (a *Allocator) Pending(frame int) int { return len(a.pending[frame]) }
