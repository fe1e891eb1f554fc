package main

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"

	"voxelstream/internal/config"
	"voxelstream/internal/engine"
	"voxelstream/internal/gpu/memory"
	"voxelstream/internal/player"
	"voxelstream/internal/visibility"
	"voxelstream/internal/world"
)

// runHeadless drives the engine with the in-memory backend while the viewer
// travels along +X, then logs the final stats.
func runHeadless(cfg config.Config, opts options, log *logrus.Logger) error {
	backend := memory.New(cfg.Camera.Width/cfg.Visibility.DepthDownscale, cfg.Camera.Height/cfg.Visibility.DepthDownscale)
	eng, err := engine.New(cfg, backend, log)
	if err != nil {
		return err
	}
	defer eng.Close()

	p := player.New(spawnPoint(eng, cfg))
	p.Flying = !opts.walk
	p.Yaw = 0
	cam := visibility.NewCamera(cfg.Camera)
	held := player.Controls{Forward: true}

	start := time.Now()
	for frame := 0; frame < opts.headlessFrames; frame++ {
		p.Accelerate(held, player.TickRate)
		p.Update(player.TickRate, eng)
		if err := eng.Tick(p.Position); err != nil {
			return err
		}
		cam.Orient(p.Eye(), p.Yaw, p.Pitch)
		if _, err := eng.RenderFrame(cam); err != nil {
			return err
		}
		if frame%120 == 0 {
			logStats(log.WithField("frame", frame), eng.Stats(), p.Position)
		}
	}
	eng.Wait()
	if err := eng.Tick(p.Position); err != nil {
		return err
	}

	stats := eng.Stats()
	logStats(log.WithFields(logrus.Fields{
		"frames":   opts.headlessFrames,
		"elapsed":  time.Since(start).Round(time.Millisecond),
		"draws":    len(backend.Submissions()),
		"uploads":  len(backend.Copies()),
		"position": p.Position,
	}), stats, p.Position)
	return nil
}

func logStats(log logrus.FieldLogger, s engine.Stats, pos mgl32.Vec3) {
	log.WithFields(logrus.Fields{
		"resident": s.Resident,
		"queued":   s.Queued,
		"slots":    s.SlotsInUse,
		"free":     s.SlotsFree,
		"visible":  s.VisibleDrawCalls,
		"scans":    s.Scans,
		"chunk":    world.ChunkOf(pos),
	}).Info("streaming stats")
}

// spawnPoint stands the viewer on the surface at the origin column.
func spawnPoint(eng *engine.Engine, cfg config.Config) mgl32.Vec3 {
	top := 2 * cfg.World.RenderDistance * world.ChunkSize
	y := top
	for y > 0 && !eng.BlockAt(0, y-1, 0).Solid() {
		y--
	}
	return mgl32.Vec3{0.5, float32(y) + player.EyeHeight + 0.5, 0.5}
}
