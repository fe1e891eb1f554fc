package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config captures every tunable of the streaming core and the viewer host.
type Config struct {
	World      WorldConfig      `yaml:"world"`
	Terrain    TerrainConfig    `yaml:"terrain"`
	Arena      ArenaConfig      `yaml:"arena"`
	Visibility VisibilityConfig `yaml:"visibility"`
	Camera     CameraConfig     `yaml:"camera"`
	Streaming  StreamingConfig  `yaml:"streaming"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type WorldConfig struct {
	Seed           int64 `yaml:"seed"`
	RenderDistance int   `yaml:"renderDistance"` // chunks, half-width of the XZ window
}

// Octave is one layer of the height field.
type Octave struct {
	FrequencyX float32 `yaml:"frequencyX"`
	FrequencyZ float32 `yaml:"frequencyZ"`
	Amplitude  float32 `yaml:"amplitude"`
}

type TerrainConfig struct {
	Base      Octave `yaml:"base"`
	Detail    Octave `yaml:"detail"`
	SoilDepth int    `yaml:"soilDepth"` // dirt cells under the grass cap
}

type ArenaConfig struct {
	MaxDrawCalls   int `yaml:"maxDrawCalls"`
	SlotVertices   int `yaml:"slotVertices"`
	SlotIndices    int `yaml:"slotIndices"`
	FramesInFlight int `yaml:"framesInFlight"`
}

type VisibilityConfig struct {
	Occlusion      bool `yaml:"occlusion"`
	OctreeDepth    int  `yaml:"octreeDepth"`
	DepthDownscale int  `yaml:"depthDownscale"`
}

type CameraConfig struct {
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	FovDegrees float32 `yaml:"fovDegrees"`
	Near       float32 `yaml:"near"`
	Far        float32 `yaml:"far"`
}

type StreamingConfig struct {
	StallWarning time.Duration `yaml:"stallWarning"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns a configuration that passes Validate.
func Default() Config {
	return Config{
		World: WorldConfig{
			Seed:           12,
			RenderDistance: 4,
		},
		Terrain: TerrainConfig{
			Base:      Octave{FrequencyX: 0.02, FrequencyZ: 0.05, Amplitude: 50},
			Detail:    Octave{FrequencyX: 0.2, FrequencyZ: 0.08, Amplitude: 10},
			SoilDepth: 3,
		},
		Arena: ArenaConfig{
			MaxDrawCalls:   256,
			SlotVertices:   24576,
			SlotIndices:    36864,
			FramesInFlight: 2,
		},
		Visibility: VisibilityConfig{
			Occlusion:      true,
			OctreeDepth:    4,
			DepthDownscale: 4,
		},
		Camera: CameraConfig{
			Width:      1600,
			Height:     900,
			FovDegrees: 70,
			Near:       0.1,
			Far:        1000,
		},
		Streaming: StreamingConfig{
			StallWarning: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load decodes a YAML file over Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// WorkingSet is the largest number of non-empty chunks that can be resident
// at once: the XZ window times the chunk layers the terrain can reach.
func (c Config) WorkingSet() int {
	side := 2 * c.World.RenderDistance
	top := int(math.Ceil(float64(c.Terrain.Base.Amplitude + c.Terrain.Detail.Amplitude)))
	layers := 0
	if top > 0 {
		layers = min((top-1)/32+1, side)
	}
	return side * side * layers
}

// LogLevel parses Logging.Level.
func (c Config) LogLevel() (logrus.Level, error) {
	return logrus.ParseLevel(c.Logging.Level)
}

// Validate reports the first problem found, naming the offending field.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.World.RenderDistance <= 0 {
		add("world.renderDistance must be positive")
	}
	if c.Terrain.Base.Amplitude < 0 || c.Terrain.Detail.Amplitude < 0 {
		add("terrain amplitudes cannot be negative")
	}
	if c.Terrain.SoilDepth < 0 {
		add("terrain.soilDepth cannot be negative")
	}
	if c.Arena.SlotVertices <= 0 || c.Arena.SlotIndices <= 0 {
		add("arena slot sizes must be positive")
	}
	if c.Arena.FramesInFlight < 1 {
		add("arena.framesInFlight must be at least 1")
	}
	if c.Arena.MaxDrawCalls <= 0 {
		add("arena.maxDrawCalls must be positive")
	} else if c.World.RenderDistance > 0 && c.Arena.MaxDrawCalls < c.WorkingSet() {
		add("arena.maxDrawCalls %d is below the working set %d for render distance %d",
			c.Arena.MaxDrawCalls, c.WorkingSet(), c.World.RenderDistance)
	}
	if c.Visibility.OctreeDepth < 0 {
		add("visibility.octreeDepth cannot be negative")
	}
	if c.Visibility.DepthDownscale <= 0 {
		add("visibility.depthDownscale must be positive")
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		add("camera dimensions must be positive")
	}
	if c.Camera.FovDegrees <= 0 || c.Camera.FovDegrees >= 180 {
		add("camera.fovDegrees must be within (0, 180)")
	}
	if c.Camera.Near <= 0 || c.Camera.Near >= c.Camera.Far {
		add("camera.near must be positive and below camera.far")
	}
	if c.Streaming.StallWarning < 0 {
		add("streaming.stallWarning cannot be negative")
	}
	if _, err := c.LogLevel(); err != nil {
		add("logging.level %q is not a known level", c.Logging.Level)
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New(strings.Join(problems, "; "))
}
