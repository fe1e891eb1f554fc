// Package engine ties generation, streaming, GPU residency, visibility and
// draw emission into the per-frame API the application drives.
package engine

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"

	"voxelstream/internal/arena"
	"voxelstream/internal/config"
	"voxelstream/internal/draw"
	"voxelstream/internal/gpu"
	"voxelstream/internal/stream"
	"voxelstream/internal/terrain"
	"voxelstream/internal/visibility"
	"voxelstream/internal/world"
)

// Backend is a gpu.Backend that can also report the previous frame's depth.
type Backend interface {
	gpu.Backend
	gpu.DepthSampler
}

// Stats is a snapshot for overlays and logs.
type Stats struct {
	Resident         int
	Queued           int
	SlotsInUse       int
	SlotsFree        int
	SlotTail         int
	VisibleDrawCalls int
	FrustumCulled    int
	OcclusionCulled  int
	Scans            int64
	Generated        int64
	Scanning         bool
	Frame            uint64
}

type Engine struct {
	log logrus.FieldLogger

	gen       *terrain.Generator
	store     *world.Store
	alloc     *arena.Allocator
	scheduler *stream.Scheduler
	selector  *visibility.Selector
	emitter   *draw.Emitter

	frame   uint64
	current int
	fatal   error
}

// New builds the full pipeline on top of backend and starts the streaming
// worker.
func New(cfg config.Config, backend Backend, log logrus.FieldLogger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	alloc, err := arena.New(backend, cfg.Arena, log.WithField("component", "arena"))
	if err != nil {
		return nil, err
	}
	emitter, err := draw.New(backend, cfg.Arena.MaxDrawCalls, cfg.Arena.FramesInFlight)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		log:      log,
		gen:      terrain.New(cfg.World.Seed, cfg.Terrain),
		store:    world.NewStore(),
		alloc:    alloc,
		selector: visibility.NewSelector(backend, cfg.Visibility),
		emitter:  emitter,
	}
	e.scheduler = stream.New(e.gen, e.store, alloc, stream.Options{
		RenderDistance: cfg.World.RenderDistance,
		StallWarning:   cfg.Streaming.StallWarning,
	}, log.WithField("component", "stream"))
	return e, nil
}

// Tick evicts, drains and rechecks the desired set for a viewer at pos. Call
// it once per frame before RenderFrame.
func (e *Engine) Tick(pos mgl32.Vec3) error {
	report, err := e.scheduler.Tick(pos)
	if err != nil {
		e.fail(err)
		return err
	}
	if report.Inserted > 0 || report.Evicted > 0 {
		e.log.WithFields(logrus.Fields{
			"inserted":  report.Inserted,
			"evicted":   report.Evicted,
			"discarded": report.Discarded,
			"resident":  e.store.Len(),
		}).Debug("streaming tick")
	}
	return nil
}

// RenderFrame selects visible chunks, uploads pending meshes into this
// frame's arena copy, rebuilds its tables and submits one indirect draw. It
// returns the number of draw calls submitted. After an allocation failure it
// submits nothing and keeps returning that failure.
func (e *Engine) RenderFrame(cam *visibility.Camera) (int, error) {
	if e.fatal != nil {
		return 0, fmt.Errorf("frame %d not submitted: %w", e.frame, e.fatal)
	}
	frame := int(e.frame % uint64(e.alloc.Frames()))

	visible := e.selector.SelectVisible(e.store, cam)
	if _, err := e.alloc.Flush(frame); err != nil {
		return 0, fmt.Errorf("upload frame %d: %w", e.frame, err)
	}
	n, err := e.emitter.Rebuild(frame, visible)
	if err != nil {
		return 0, fmt.Errorf("rebuild frame %d: %w", e.frame, err)
	}
	if err := e.emitter.Submit(frame, e.alloc.Arena(frame)); err != nil {
		return 0, err
	}

	e.current = frame
	e.frame++
	return n, nil
}

func (e *Engine) fail(err error) {
	if e.fatal == nil && (errors.Is(err, arena.ErrArenaExhausted) || errors.Is(err, arena.ErrMeshTooLarge)) {
		e.fatal = err
		e.log.WithError(err).Error("gpu arena failure, submission stopped")
	}
}

// Err is the sticky allocation failure, if any.
func (e *Engine) Err() error { return e.fatal }

// BlockAt answers from a loaded chunk when possible and from the generator
// otherwise, so it is valid for any coordinate.
func (e *Engine) BlockAt(x, y, z int) world.BlockType {
	if b, ok := e.store.BlockAt(x, y, z); ok {
		return b
	}
	return e.gen.BlockAt(x, y, z)
}

// VisibleDrawCalls is the draw count of the last submitted frame.
func (e *Engine) VisibleDrawCalls() int { return e.emitter.VisibleDrawCalls(e.current) }

// Tables returns the last submitted frame's instance and draw-command tables.
func (e *Engine) Tables() ([]gpu.Instance, []gpu.DrawCommand) { return e.emitter.Tables(e.current) }

// Store exposes the resident chunk set for inspection.
func (e *Engine) Store() *world.Store { return e.store }

// FreeList is the arena free list, front first.
func (e *Engine) FreeList() []gpu.BufferBlock { return e.alloc.FreeList() }

func (e *Engine) Stats() Stats {
	sel := e.selector.Stats
	return Stats{
		Resident:         e.store.Len(),
		Queued:           e.scheduler.Queued(),
		SlotsInUse:       e.alloc.InUse(),
		SlotsFree:        len(e.alloc.FreeList()),
		SlotTail:         e.alloc.Tail(),
		VisibleDrawCalls: e.VisibleDrawCalls(),
		FrustumCulled:    sel.FrustumCulled,
		OcclusionCulled:  sel.OcclusionCulled,
		Scans:            e.scheduler.Scans(),
		Generated:        e.scheduler.Generated(),
		Scanning:         e.scheduler.Scanning(),
		Frame:            e.frame,
	}
}

// Wait blocks until the streaming worker is idle.
func (e *Engine) Wait() { e.scheduler.Wait() }

// Close stops the streaming worker.
func (e *Engine) Close() { e.scheduler.Close() }
