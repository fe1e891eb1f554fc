package main

import (
	"fmt"
	"runtime"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/sirupsen/logrus"

	"voxelstream/internal/config"
	"voxelstream/internal/engine"
	"voxelstream/internal/gpu/opengl"
	"voxelstream/internal/hud"
	"voxelstream/internal/player"
	"voxelstream/internal/visibility"
)

const (
	overlayWidth  = 512
	overlayHeight = 180
	overlaySize   = 18
)

type fpsCounter struct {
	frames int
	since  time.Time
	fps    float64
}

func (f *fpsCounter) frame(now time.Time) float64 {
	f.frames++
	if elapsed := now.Sub(f.since); elapsed >= 250*time.Millisecond {
		f.fps = float64(f.frames) / elapsed.Seconds()
		f.frames = 0
		f.since = now
	}
	return f.fps
}

func runWindow(cfg config.Config, opts options, log *logrus.Logger) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("init glfw: %w", err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 3)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	window, err := glfw.CreateWindow(cfg.Camera.Width, cfg.Camera.Height, "voxelview", nil, nil)
	if err != nil {
		return fmt.Errorf("create window: %w", err)
	}
	defer window.Destroy()
	window.MakeContextCurrent()
	if opts.vsync {
		glfw.SwapInterval(1)
	}

	fbw, fbh := window.GetFramebufferSize()
	backend, err := opengl.New(fbw, fbh, cfg.Visibility.DepthDownscale, log.WithField("component", "opengl"))
	if err != nil {
		return err
	}
	defer backend.Close()
	if opts.atlasPath != "" {
		if err := backend.LoadAtlas(opts.atlasPath); err != nil {
			return err
		}
	}

	overlay, err := newOverlay(opts.fontPath)
	if err != nil {
		return err
	}
	defer overlay.Close()

	eng, err := engine.New(cfg, backend, log)
	if err != nil {
		return err
	}
	defer eng.Close()

	p := player.New(spawnPoint(eng, cfg))
	p.Flying = !opts.walk
	ctl := newControls(window, p)
	cam := visibility.NewCamera(cfg.Camera)

	window.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		if width == 0 || height == 0 {
			return
		}
		backend.Resize(width, height)
		cam.SetPerspective(cfg.Camera.FovDegrees, float32(width)/float32(height), cfg.Camera.Near, cfg.Camera.Far)
	})

	fps := fpsCounter{since: time.Now()}
	previous := time.Now()
	for !window.ShouldClose() {
		now := time.Now()
		dt := float32(now.Sub(previous).Seconds())
		previous = now
		glfw.PollEvents()

		p.Accelerate(ctl.held(), dt)
		p.Update(dt, eng)
		if err := eng.Tick(p.Position); err != nil {
			return err
		}

		cam.Orient(p.Eye(), p.Yaw, p.Pitch)
		backend.BeginFrame(cam.Projection(), cam.View())
		if _, err := eng.RenderFrame(cam); err != nil {
			return err
		}
		if cfg.Visibility.Occlusion {
			if err := backend.CaptureDepth(); err != nil {
				return err
			}
		}

		rate := fps.frame(now)
		if ctl.showDebug {
			mode := "fly"
			if !p.Flying {
				mode = "walk"
			}
			if err := overlay.Draw(hud.Lines(eng.Stats(), p.Position, rate, mode)); err != nil {
				return err
			}
			if err := backend.DrawOverlay(overlay.Image()); err != nil {
				return err
			}
		}
		window.SwapBuffers()
	}
	log.WithField("frames", eng.Stats().Frame).Info("window closed")
	return nil
}

func newOverlay(fontPath string) (*hud.Overlay, error) {
	if fontPath != "" {
		return hud.NewFromFile(fontPath, overlayWidth, overlayHeight, overlaySize)
	}
	return hud.New(overlayWidth, overlayHeight, overlaySize)
}
