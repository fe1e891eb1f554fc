// Package opengl implements gpu.Backend on an OpenGL 4.3 core context. All
// methods must be called from the thread that owns the context.
package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v4.3-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"

	"voxelstream/internal/gpu"
)

const (
	vertexBinding   = 0
	instanceBinding = 1
)

type arena struct {
	vao     uint32
	live    [2]uint32
	staging [2]uint32
	size    [2]int
}

type table struct {
	buffer uint32
	size   int
}

// Backend owns every GL object the streaming core asks for.
type Backend struct {
	log logrus.FieldLogger

	arenas map[gpu.Handle]*arena
	tables map[gpu.Handle]table
	next   gpu.Handle

	program        uint32
	projectionView int32
	useAtlas       int32
	atlas          uint32

	width, height int
	downscale     int
	readback      []float32
	depth         []float32
	depthW        int
	depthH        int

	sky     sky
	overlay overlay
}

// New initialises GL on the current context and compiles the chunk program.
// The framebuffer is width×height; the depth copy used for occlusion is
// reduced by downscale.
func New(width, height, downscale int, log logrus.FieldLogger) (*Backend, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("init gl: %w", err)
	}
	log.WithFields(logrus.Fields{
		"version":  gl.GoStr(gl.GetString(gl.VERSION)),
		"renderer": gl.GoStr(gl.GetString(gl.RENDERER)),
	}).Info("opengl initialised")

	prog, err := linkProgram(chunkVertexShader, chunkFragmentShader)
	if err != nil {
		return nil, fmt.Errorf("chunk program: %w", err)
	}
	b := &Backend{
		log:            log,
		arenas:         make(map[gpu.Handle]*arena),
		tables:         make(map[gpu.Handle]table),
		next:           1,
		program:        prog,
		projectionView: uniform(prog, "projectionView"),
		useAtlas:       uniform(prog, "useAtlas"),
		downscale:      max(1, downscale),
	}
	gl.UseProgram(prog)
	gl.Uniform1i(uniform(prog, "atlas"), 0)
	gl.Uniform1i(b.useAtlas, 0)

	if err := b.sky.init(); err != nil {
		return nil, err
	}
	if err := b.overlay.init(); err != nil {
		return nil, err
	}
	b.Resize(width, height)

	gl.Enable(gl.CULL_FACE)
	gl.CullFace(gl.BACK)
	gl.FrontFace(gl.CCW)
	gl.Enable(gl.DEPTH_TEST)
	gl.ClearColor(0.53, 0.75, 0.95, 1)
	return b, check("init")
}

// Resize updates the viewport and the depth readback buffers.
func (b *Backend) Resize(width, height int) {
	b.width, b.height = width, height
	gl.Viewport(0, 0, int32(width), int32(height))
	b.readback = make([]float32, width*height)
	b.depthW, b.depthH = width/b.downscale, height/b.downscale
	b.depth = make([]float32, b.depthW*b.depthH)
	for i := range b.depth {
		b.depth[i] = 1
	}
}

// BeginFrame clears the framebuffer, draws the sky and sets the camera for
// this frame's chunk draws.
func (b *Backend) BeginFrame(projection, view mgl32.Mat4) {
	gl.Enable(gl.DEPTH_TEST)
	gl.Enable(gl.CULL_FACE)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	b.sky.draw(projection, view)

	projectionView := projection.Mul4(view)
	gl.UseProgram(b.program)
	gl.UniformMatrix4fv(b.projectionView, 1, false, &projectionView[0])
	if b.atlas != 0 {
		gl.ActiveTexture(gl.TEXTURE0)
		gl.BindTexture(gl.TEXTURE_2D, b.atlas)
	}
}

// CaptureDepth reads the frame's depth buffer back for the next frame's
// occlusion test. Call it after the chunk draw and before the overlay.
func (b *Backend) CaptureDepth() error {
	gl.ReadPixels(0, 0, int32(b.width), int32(b.height), gl.DEPTH_COMPONENT, gl.FLOAT, gl.Ptr(b.readback))
	b.depth, b.depthW, b.depthH = gpu.DownsampleDepth(b.depth, b.readback, b.width, b.height, b.downscale)
	return check("read depth")
}

func (b *Backend) DepthSize() (int, int) { return b.depthW, b.depthH }

func (b *Backend) SampleDepthBuffer(x, y int) float32 {
	if x < 0 || y < 0 || x >= b.depthW || y >= b.depthH {
		return 1
	}
	return b.depth[x+y*b.depthW]
}

func (b *Backend) AllocateArena(vertexBytes, indexBytes int) (gpu.Handle, error) {
	if vertexBytes <= 0 || indexBytes <= 0 {
		return 0, fmt.Errorf("opengl: arena sizes must be positive, got %d/%d", vertexBytes, indexBytes)
	}
	a := &arena{size: [2]int{vertexBytes, indexBytes}}
	gl.GenBuffers(2, &a.live[0])
	gl.GenBuffers(2, &a.staging[0])
	for t, size := range a.size {
		gl.BindBuffer(gl.COPY_WRITE_BUFFER, a.live[t])
		gl.BufferData(gl.COPY_WRITE_BUFFER, size, nil, gl.STATIC_DRAW)
		gl.BindBuffer(gl.COPY_WRITE_BUFFER, a.staging[t])
		gl.BufferData(gl.COPY_WRITE_BUFFER, size, nil, gl.STREAM_DRAW)
	}

	gl.GenVertexArrays(1, &a.vao)
	gl.BindVertexArray(a.vao)
	gl.BindVertexBuffer(vertexBinding, a.live[gpu.VertexTarget], 0, gpu.VertexSize)
	attribute(0, 3, 0, vertexBinding)
	attribute(1, 3, 12, vertexBinding)
	attribute(2, 2, 24, vertexBinding)
	attribute(3, 1, 32, vertexBinding)
	for col := uint32(0); col < 4; col++ {
		attribute(4+col, 4, col*16, instanceBinding)
		attribute(8+col, 4, 64+col*16, instanceBinding)
	}
	gl.VertexBindingDivisor(instanceBinding, 1)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, a.live[gpu.IndexTarget])
	gl.BindVertexArray(0)

	if err := check("allocate arena"); err != nil {
		return 0, err
	}
	h := b.issue()
	b.arenas[h] = a
	b.log.WithFields(logrus.Fields{"arena": h, "vertexBytes": vertexBytes, "indexBytes": indexBytes}).Debug("arena allocated")
	return h, nil
}

func attribute(index uint32, size int32, offset uint32, binding uint32) {
	gl.EnableVertexAttribArray(index)
	gl.VertexAttribFormat(index, size, gl.FLOAT, false, offset)
	gl.VertexAttribBinding(index, binding)
}

func (b *Backend) StageWrite(h gpu.Handle, target gpu.Target, off int, data []byte) error {
	a, ok := b.arenas[h]
	if !ok {
		return fmt.Errorf("stage write to %d: %w", h, gpu.ErrUnknownHandle)
	}
	if off < 0 || off+len(data) > a.size[target] {
		return fmt.Errorf("opengl: stage write [%d,%d) outside %s staging of %d bytes", off, off+len(data), target, a.size[target])
	}
	if len(data) == 0 {
		return nil
	}
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, a.staging[target])
	gl.BufferSubData(gl.COPY_WRITE_BUFFER, off, len(data), gl.Ptr(data))
	return check("stage write")
}

func (b *Backend) CopyStagedRegion(h gpu.Handle, target gpu.Target, src, dst, size int) error {
	a, ok := b.arenas[h]
	if !ok {
		return fmt.Errorf("copy staged region on %d: %w", h, gpu.ErrUnknownHandle)
	}
	if src < 0 || dst < 0 || src+size > a.size[target] || dst+size > a.size[target] {
		return fmt.Errorf("opengl: copy of %d bytes %d->%d outside %s arena", size, src, dst, target)
	}
	gl.BindBuffer(gl.COPY_READ_BUFFER, a.staging[target])
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, a.live[target])
	gl.CopyBufferSubData(gl.COPY_READ_BUFFER, gl.COPY_WRITE_BUFFER, src, dst, size)
	return check("copy staged region")
}

func (b *Backend) AllocateTable(capacity int) (gpu.Handle, error) {
	if capacity <= 0 {
		return 0, fmt.Errorf("opengl: table capacity must be positive, got %d", capacity)
	}
	var buf uint32
	gl.GenBuffers(1, &buf)
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, buf)
	gl.BufferData(gl.COPY_WRITE_BUFFER, capacity, nil, gl.DYNAMIC_DRAW)
	if err := check("allocate table"); err != nil {
		return 0, err
	}
	h := b.issue()
	b.tables[h] = table{buffer: buf, size: capacity}
	return h, nil
}

func (b *Backend) WriteTable(h gpu.Handle, off int, data []byte) error {
	t, ok := b.tables[h]
	if !ok {
		return fmt.Errorf("write table %d: %w", h, gpu.ErrUnknownHandle)
	}
	if off < 0 || off+len(data) > t.size {
		return fmt.Errorf("opengl: table write [%d,%d) outside %d bytes", off, off+len(data), t.size)
	}
	if len(data) == 0 {
		return nil
	}
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, t.buffer)
	gl.BufferSubData(gl.COPY_WRITE_BUFFER, off, len(data), gl.Ptr(data))
	return check("write table")
}

// SubmitIndirectDraw issues one MultiDrawElementsIndirect over the arena.
// Each command's FirstInstance selects its row of the instance table through
// the per-instance vertex binding.
func (b *Backend) SubmitIndirectDraw(arenaH, drawTable, instances gpu.Handle, count int) error {
	a, ok := b.arenas[arenaH]
	if !ok {
		return fmt.Errorf("submit on arena %d: %w", arenaH, gpu.ErrUnknownHandle)
	}
	draws, ok := b.tables[drawTable]
	if !ok {
		return fmt.Errorf("submit with draw table %d: %w", drawTable, gpu.ErrUnknownHandle)
	}
	inst, ok := b.tables[instances]
	if !ok {
		return fmt.Errorf("submit with instance table %d: %w", instances, gpu.ErrUnknownHandle)
	}
	if count*gpu.DrawCommandSize > draws.size {
		return fmt.Errorf("opengl: %d draws exceed draw table", count)
	}
	if count == 0 {
		return nil
	}

	gl.UseProgram(b.program)
	gl.BindVertexArray(a.vao)
	gl.BindVertexBuffer(instanceBinding, inst.buffer, 0, gpu.InstanceSize)
	gl.BindBuffer(gl.DRAW_INDIRECT_BUFFER, draws.buffer)
	gl.MultiDrawElementsIndirect(gl.TRIANGLES, gl.UNSIGNED_INT, nil, int32(count), 0)
	gl.BindVertexArray(0)
	return check("submit indirect draw")
}

// Close deletes every GL object the backend created.
func (b *Backend) Close() {
	for h, a := range b.arenas {
		gl.DeleteVertexArrays(1, &a.vao)
		gl.DeleteBuffers(2, &a.live[0])
		gl.DeleteBuffers(2, &a.staging[0])
		delete(b.arenas, h)
	}
	for h, t := range b.tables {
		gl.DeleteBuffers(1, &t.buffer)
		delete(b.tables, h)
	}
	if b.atlas != 0 {
		gl.DeleteTextures(1, &b.atlas)
	}
	b.sky.close()
	b.overlay.close()
	gl.DeleteProgram(b.program)
}

func (b *Backend) issue() gpu.Handle {
	h := b.next
	b.next++
	return h
}

func check(op string) error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("opengl: %s failed with error 0x%x", op, code)
	}
	return nil
}
