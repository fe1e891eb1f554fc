// Package memory is a gpu.Backend that keeps every buffer in host memory and
// records submissions. It drives headless runs and the tests.
package memory

import (
	"fmt"
	"sync"

	"voxelstream/internal/gpu"
)

type arena struct {
	staging [2][]byte
	live    [2][]byte
}

// Copy is one recorded CopyStagedRegion call.
type Copy struct {
	Arena  gpu.Handle
	Target gpu.Target
	Src    int
	Dst    int
	Size   int
}

// Submission is one recorded SubmitIndirectDraw call.
type Submission struct {
	Arena     gpu.Handle
	DrawTable gpu.Handle
	Instances gpu.Handle
	Count     int
	Commands  []gpu.DrawCommand
}

type Backend struct {
	mu          sync.Mutex
	arenas      map[gpu.Handle]*arena
	tables      map[gpu.Handle][]byte
	next        gpu.Handle
	copies      []Copy
	submissions []Submission

	depthW, depthH int
	depth          []float32
}

// New returns a backend whose depth buffer is width×height and cleared to 1.
func New(depthWidth, depthHeight int) *Backend {
	b := &Backend{
		arenas: make(map[gpu.Handle]*arena),
		tables: make(map[gpu.Handle][]byte),
		next:   1,
		depthW: depthWidth,
		depthH: depthHeight,
		depth:  make([]float32, depthWidth*depthHeight),
	}
	b.ClearDepth(1)
	return b
}

func (b *Backend) AllocateArena(vertexBytes, indexBytes int) (gpu.Handle, error) {
	if vertexBytes <= 0 || indexBytes <= 0 {
		return 0, fmt.Errorf("memory: arena sizes must be positive, got %d/%d", vertexBytes, indexBytes)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	h := b.next
	b.next++
	b.arenas[h] = &arena{
		staging: [2][]byte{make([]byte, vertexBytes), make([]byte, indexBytes)},
		live:    [2][]byte{make([]byte, vertexBytes), make([]byte, indexBytes)},
	}
	return h, nil
}

func (b *Backend) StageWrite(h gpu.Handle, target gpu.Target, off int, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.arenas[h]
	if !ok {
		return fmt.Errorf("stage write to %d: %w", h, gpu.ErrUnknownHandle)
	}
	dst := a.staging[target]
	if off < 0 || off+len(data) > len(dst) {
		return fmt.Errorf("memory: stage write [%d,%d) outside %s staging of %d bytes", off, off+len(data), target, len(dst))
	}
	copy(dst[off:], data)
	return nil
}

func (b *Backend) CopyStagedRegion(h gpu.Handle, target gpu.Target, src, dst, size int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.arenas[h]
	if !ok {
		return fmt.Errorf("copy staged region on %d: %w", h, gpu.ErrUnknownHandle)
	}
	from, to := a.staging[target], a.live[target]
	if src < 0 || dst < 0 || src+size > len(from) || dst+size > len(to) {
		return fmt.Errorf("memory: copy of %d bytes %d->%d outside %s arena", size, src, dst, target)
	}
	copy(to[dst:dst+size], from[src:src+size])
	b.copies = append(b.copies, Copy{Arena: h, Target: target, Src: src, Dst: dst, Size: size})
	return nil
}

func (b *Backend) AllocateTable(capacity int) (gpu.Handle, error) {
	if capacity <= 0 {
		return 0, fmt.Errorf("memory: table capacity must be positive, got %d", capacity)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	h := b.next
	b.next++
	b.tables[h] = make([]byte, capacity)
	return h, nil
}

func (b *Backend) WriteTable(h gpu.Handle, off int, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tables[h]
	if !ok {
		return fmt.Errorf("write table %d: %w", h, gpu.ErrUnknownHandle)
	}
	if off < 0 || off+len(data) > len(t) {
		return fmt.Errorf("memory: table write [%d,%d) outside %d bytes", off, off+len(data), len(t))
	}
	copy(t[off:], data)
	return nil
}

func (b *Backend) SubmitIndirectDraw(arenaH, drawTable, instances gpu.Handle, count int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.arenas[arenaH]; !ok {
		return fmt.Errorf("submit on arena %d: %w", arenaH, gpu.ErrUnknownHandle)
	}
	t, ok := b.tables[drawTable]
	if !ok {
		return fmt.Errorf("submit with draw table %d: %w", drawTable, gpu.ErrUnknownHandle)
	}
	if _, ok := b.tables[instances]; !ok {
		return fmt.Errorf("submit with instance table %d: %w", instances, gpu.ErrUnknownHandle)
	}
	if count*gpu.DrawCommandSize > len(t) {
		return fmt.Errorf("memory: %d draws exceed draw table", count)
	}
	b.submissions = append(b.submissions, Submission{
		Arena:     arenaH,
		DrawTable: drawTable,
		Instances: instances,
		Count:     count,
		Commands:  gpu.DecodeDrawCommands(t[:count*gpu.DrawCommandSize]),
	})
	return nil
}

func (b *Backend) DepthSize() (int, int) { return b.depthW, b.depthH }

func (b *Backend) SampleDepthBuffer(x, y int) float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if x < 0 || y < 0 || x >= b.depthW || y >= b.depthH {
		return 1
	}
	return b.depth[x+y*b.depthW]
}

// SetDepth writes one depth sample.
func (b *Backend) SetDepth(x, y int, d float32) {
	b.mu.Lock()
	b.depth[x+y*b.depthW] = d
	b.mu.Unlock()
}

func (b *Backend) ClearDepth(d float32) {
	b.mu.Lock()
	for i := range b.depth {
		b.depth[i] = d
	}
	b.mu.Unlock()
}

// Live returns a copy of bytes [off, off+n) of an arena's drawable half.
func (b *Backend) Live(h gpu.Handle, target gpu.Target, off, n int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.arenas[h]
	if !ok {
		return nil
	}
	return append([]byte(nil), a.live[target][off:off+n]...)
}

func (b *Backend) Copies() []Copy {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Copy(nil), b.copies...)
}

func (b *Backend) Submissions() []Submission {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Submission(nil), b.submissions...)
}

func (b *Backend) Table(h gpu.Handle) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.tables[h]...)
}
