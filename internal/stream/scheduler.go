// Package stream keeps the chunk store in step with a moving viewer.
//
// One background worker walks the desired window around the viewer, generates
// and meshes missing chunks and pushes them onto a Queue. Everything that
// touches the store's membership or GPU residency happens on the caller of
// Tick.
package stream

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"

	"voxelstream/internal/mesh"
	"voxelstream/internal/world"
)

// Generator produces chunks and answers single-cell queries for cells whose
// chunk is not loaded.
type Generator interface {
	Generate(world.ChunkCoord) *world.Chunk
	BlockAt(x, y, z int) world.BlockType
}

// Residency attaches GPU storage to chunks entering the store and releases it
// for chunks leaving.
type Residency interface {
	Attach(*world.Chunk) error
	Detach(*world.Chunk)
}

type Options struct {
	RenderDistance int
	// StallWarning logs once per scan that runs longer than this. Zero
	// disables the warning.
	StallWarning time.Duration
}

// TickReport summarizes one Tick.
type TickReport struct {
	Evicted   int
	Inserted  int
	Discarded int
	Scanned   bool
}

type scan struct {
	center world.ChunkCoord
	issued time.Time
	stop   atomic.Bool
	done   atomic.Bool
	warned bool
}

type Scheduler struct {
	gen       Generator
	store     *world.Store
	residency Residency
	queue     *Queue
	log       logrus.FieldLogger
	opts      Options

	requests chan *scan
	current  *scan
	idle     sync.WaitGroup
	closed   bool

	scans     atomic.Int64
	generated atomic.Int64
	aborted   atomic.Int64
}

// New starts the background worker. Call Close to stop it.
func New(gen Generator, store *world.Store, residency Residency, opts Options, log logrus.FieldLogger) *Scheduler {
	s := &Scheduler{
		gen:       gen,
		store:     store,
		residency: residency,
		queue:     NewQueue(),
		log:       log,
		opts:      opts,
		requests:  make(chan *scan, 1),
	}
	go s.run()
	return s
}

// Tick runs one main-thread step for a viewer at pos: evict chunks that left
// the window, drain finished chunks into the store, and start a new scan if
// the window moved.
func (s *Scheduler) Tick(pos mgl32.Vec3) (TickReport, error) {
	var report TickReport
	center := world.ChunkOf(pos)

	report.Evicted = s.evict(center)

	inserted, discarded, err := s.drain(center)
	report.Inserted, report.Discarded = inserted, discarded
	if err != nil {
		return report, err
	}

	if s.current == nil || s.current.center.X != center.X || s.current.center.Z != center.Z {
		s.request(center)
		report.Scanned = true
	}
	s.watch()
	return report, nil
}

// InWindow reports whether coord is within render distance of center on X
// and Z. The vertical range is fixed and not checked.
func (s *Scheduler) InWindow(center, coord world.ChunkCoord) bool {
	rd := int32(s.opts.RenderDistance)
	return coord.X >= center.X-rd && coord.X <= center.X+rd-1 &&
		coord.Z >= center.Z-rd && coord.Z <= center.Z+rd-1
}

func (s *Scheduler) evict(center world.ChunkCoord) int {
	gone := s.store.EraseIf(func(c *world.Chunk) bool {
		return !s.InWindow(center, c.Coord)
	})
	for _, c := range gone {
		s.residency.Detach(c)
	}
	if len(gone) > 0 {
		s.log.WithFields(logrus.Fields{"count": len(gone), "center": center}).Debug("evicted chunks")
	}
	return len(gone)
}

func (s *Scheduler) drain(center world.ChunkCoord) (inserted, discarded int, err error) {
	items := s.queue.PopAll()
	for i, c := range items {
		k := c.Coord.Key()
		switch {
		case !s.InWindow(center, c.Coord), s.store.Contains(k):
			discarded++
		default:
			if err = s.residency.Attach(c); err != nil {
				for _, rest := range items[i:] {
					s.queue.Settle(rest.Coord.Key())
				}
				s.log.WithError(err).WithField("dropped", len(items)-i).Error("drain aborted")
				return inserted, discarded, err
			}
			s.store.Insert(c)
			inserted++
		}
		s.queue.Settle(k)
	}
	return inserted, discarded, nil
}

func (s *Scheduler) request(center world.ChunkCoord) {
	if s.closed {
		return
	}
	if s.current != nil {
		s.current.stop.Store(true)
	}
	select {
	case stale := <-s.requests:
		stale.done.Store(true)
		s.idle.Done()
	default:
	}

	sc := &scan{center: center, issued: time.Now()}
	s.current = sc
	s.idle.Add(1)
	s.scans.Add(1)
	s.requests <- sc
}

func (s *Scheduler) watch() {
	sc := s.current
	if sc == nil || sc.warned || sc.done.Load() || s.opts.StallWarning <= 0 {
		return
	}
	if elapsed := time.Since(sc.issued); elapsed > s.opts.StallWarning {
		sc.warned = true
		s.log.WithFields(logrus.Fields{
			"center":  sc.center,
			"elapsed": elapsed.Round(time.Millisecond),
			"queued":  s.queue.Len(),
		}).Warn("scan still running")
	}
}

func (s *Scheduler) run() {
	for sc := range s.requests {
		s.scan(sc)
		sc.done.Store(true)
		s.idle.Done()
	}
}

// scan walks the window Y outer, then Z, then X. Y covers [0, 2·rd) in
// absolute chunk units; X and Z are centered on the viewer.
func (s *Scheduler) scan(sc *scan) {
	rd := s.opts.RenderDistance
	side := 2 * rd
	log := s.log.WithField("center", sc.center)
	log.Debug("scan started")

	queued := 0
	for y := 0; y < side; y++ {
		for z := 0; z < side; z++ {
			for x := 0; x < side; x++ {
				if sc.stop.Load() {
					s.aborted.Add(1)
					log.WithField("queued", queued).Debug("scan aborted")
					return
				}
				coord := world.ChunkCoord{
					X: sc.center.X + int32(x-rd),
					Y: int32(y),
					Z: sc.center.Z + int32(z-rd),
				}
				k := coord.Key()
				if s.store.Contains(k) || s.queue.Has(k) {
					continue
				}

				c := s.gen.Generate(coord)
				if !c.IsEmpty() {
					c.Mesh = mesh.Build(c, s.lookup)
				}
				s.generated.Add(1)
				if sc.stop.Load() {
					s.aborted.Add(1)
					log.WithField("queued", queued).Debug("scan aborted")
					return
				}
				s.queue.Push(c)
				queued++
			}
		}
	}
	log.WithField("queued", queued).Debug("scan finished")
}

// lookup resolves a neighbor cell from a loaded chunk when there is one and
// from the generator otherwise.
func (s *Scheduler) lookup(x, y, z int) world.BlockType {
	if b, ok := s.store.BlockAt(x, y, z); ok {
		return b
	}
	return s.gen.BlockAt(x, y, z)
}

// Wait blocks until no scan is queued or running.
func (s *Scheduler) Wait() { s.idle.Wait() }

// Close cancels the running scan and stops the worker.
func (s *Scheduler) Close() {
	if s.closed {
		return
	}
	s.closed = true
	if s.current != nil {
		s.current.stop.Store(true)
	}
	close(s.requests)
	s.idle.Wait()
}

// Scanning reports whether a scan is queued or running.
func (s *Scheduler) Scanning() bool {
	return s.current != nil && !s.current.done.Load()
}

func (s *Scheduler) Queued() int { return s.queue.Len() }
func (s *Scheduler) Scans() int64 { return s.scans.Load() }
func (s *Scheduler) Generated() int64 { return s.generated.Load() }
func (s *Scheduler) Aborted() int64 { return s.aborted.Load() }
func (s *Scheduler) RenderDistance() int { return s.opts.RenderDistance }
