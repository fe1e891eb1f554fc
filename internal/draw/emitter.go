// Package draw builds the per-frame instance and indirect draw tables.
package draw

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"voxelstream/internal/gpu"
	"voxelstream/internal/world"
)

type frameTables struct {
	instances     []gpu.Instance
	commands      []gpu.DrawCommand
	instanceTable gpu.Handle
	drawTable     gpu.Handle
	count         int
}

// Emitter owns one instance table and one draw-command table per frame in
// flight. Instances are indexed by arena slot; draw commands are packed at the
// front of the table and only the first count are submitted.
type Emitter struct {
	backend gpu.Backend
	slots   int
	frames  []*frameTables
}

func New(backend gpu.Backend, slots, framesInFlight int) (*Emitter, error) {
	e := &Emitter{backend: backend, slots: slots}
	for f := 0; f < framesInFlight; f++ {
		inst, err := backend.AllocateTable(slots * gpu.InstanceSize)
		if err != nil {
			return nil, fmt.Errorf("allocate instance table for frame %d: %w", f, err)
		}
		draws, err := backend.AllocateTable(slots * gpu.DrawCommandSize)
		if err != nil {
			return nil, fmt.Errorf("allocate draw table for frame %d: %w", f, err)
		}
		e.frames = append(e.frames, &frameTables{
			instances:     make([]gpu.Instance, slots),
			commands:      make([]gpu.DrawCommand, slots),
			instanceTable: inst,
			drawTable:     draws,
		})
	}
	return e, nil
}

// NormalMatrix is the inverse transpose of the model's upper 3x3.
func NormalMatrix(model mgl32.Mat4) mgl32.Mat4 {
	return model.Mat3().Inv().Transpose().Mat4()
}

// Rebuild resets the frame's draw counter and records one instance and one
// draw command per visible chunk that holds an arena block.
func (e *Emitter) Rebuild(frame int, visible []*world.Chunk) (int, error) {
	t := e.frames[frame]
	t.count = 0

	lo, hi := e.slots, -1
	for _, c := range visible {
		if c.IsEmpty() || c.Buffer == nil {
			continue
		}
		b := c.Buffer
		slot := int(b.Slot)
		if slot >= e.slots || t.count >= e.slots {
			return 0, fmt.Errorf("draw: slot %d outside table of %d", slot, e.slots)
		}
		model := c.Transform()
		t.instances[slot] = gpu.Instance{Model: model, Normal: NormalMatrix(model)}
		t.commands[t.count] = gpu.DrawCommand{
			IndexCount:    uint32(b.IndexCount),
			InstanceCount: 1,
			FirstIndex:    b.FirstIndex(),
			BaseVertex:    b.BaseVertex(),
			FirstInstance: b.Slot,
		}
		t.count++
		lo, hi = min(lo, slot), max(hi, slot)
	}

	if hi >= lo {
		data := gpu.EncodeInstances(t.instances[lo : hi+1])
		if err := e.backend.WriteTable(t.instanceTable, lo*gpu.InstanceSize, data); err != nil {
			return 0, fmt.Errorf("write instance table: %w", err)
		}
	}
	if t.count > 0 {
		if err := e.backend.WriteTable(t.drawTable, 0, gpu.EncodeDrawCommands(t.commands[:t.count])); err != nil {
			return 0, fmt.Errorf("write draw table: %w", err)
		}
	}
	return t.count, nil
}

// Submit hands the frame's tables to the backend for one indirect multi-draw.
func (e *Emitter) Submit(frame int, arena gpu.Handle) error {
	t := e.frames[frame]
	if err := e.backend.SubmitIndirectDraw(arena, t.drawTable, t.instanceTable, t.count); err != nil {
		return fmt.Errorf("submit frame %d: %w", frame, err)
	}
	return nil
}

// VisibleDrawCalls is the draw count of the frame's last rebuild.
func (e *Emitter) VisibleDrawCalls(frame int) int { return e.frames[frame].count }

// Tables returns the frame's instance table and its submitted draw commands.
func (e *Emitter) Tables(frame int) ([]gpu.Instance, []gpu.DrawCommand) {
	t := e.frames[frame]
	return t.instances, t.commands[:t.count]
}
