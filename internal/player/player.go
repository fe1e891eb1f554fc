// Package player moves the viewer: mouse look, fly and walk movement on a
// fixed tick, and swept box collision against solid cells.
package player

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"voxelstream/internal/world"
)

const (
	TickRate = float32(1.0 / 60)

	Width     = 0.6
	EyeHeight = 1.5
	Headroom  = 0.25

	WalkingSpeed   = 2
	FlyingSpeed    = 6
	SprintFactor   = 1.5
	JumpVelocity   = 0.25
	Gravity        = 0.02
	Damping        = 0.35
	AirResistance  = 0.93
	SprintAirBoost = 2
	Sensitivity    = 0.3
	jumpCooldown   = 0.05
)

// BlockSource answers block queries for any world cell.
type BlockSource interface {
	BlockAt(x, y, z int) world.BlockType
}

// Controls is the held-key state for one frame.
type Controls struct {
	Forward, Back, Left, Right bool
	Up, Down                   bool
	Sprint, Jump               bool
}

type Player struct {
	Position mgl32.Vec3 // eye position at the latest tick
	Velocity mgl32.Vec3 // units per tick
	Yaw      float64
	Pitch    float64

	Flying    bool
	Sprinting bool
	OnGround  bool

	previous    mgl32.Vec3
	accumulator float32
	cooldown    float32
}

// New places a flying player at pos looking down -Z.
func New(pos mgl32.Vec3) *Player {
	return &Player{Position: pos, previous: pos, Yaw: -90, Flying: true}
}

// Look turns the view by a mouse delta in screen pixels.
func (p *Player) Look(dx, dy float64) {
	p.Yaw += dx * Sensitivity
	p.Pitch = max(-89, min(89, p.Pitch-dy*Sensitivity))
}

// Front is the unit view direction.
func (p *Player) Front() mgl32.Vec3 {
	y, pt := radians(p.Yaw), radians(p.Pitch)
	return mgl32.Vec3{
		float32(math.Cos(y) * math.Cos(pt)),
		float32(math.Sin(pt)),
		float32(math.Sin(y) * math.Cos(pt)),
	}.Normalize()
}

// Heading is Front flattened onto the XZ plane.
func (p *Player) Heading() mgl32.Vec3 {
	y := radians(p.Yaw)
	return mgl32.Vec3{float32(math.Cos(y)), 0, float32(math.Sin(y))}
}

func (p *Player) Right() mgl32.Vec3 {
	return p.Front().Cross(mgl32.Vec3{0, 1, 0}).Normalize()
}

// Accelerate applies one frame of held controls over dt seconds.
func (p *Player) Accelerate(c Controls, dt float32) {
	speed := float32(WalkingSpeed)
	if p.Flying {
		speed = FlyingSpeed
		if c.Up {
			p.Velocity[1] += speed * dt
		}
		if c.Down {
			p.Velocity[1] -= speed * dt
		}
	}
	p.Sprinting = c.Sprint
	if c.Sprint {
		speed *= SprintFactor
	}

	var dir mgl32.Vec3
	if c.Forward {
		dir = dir.Add(p.Heading())
	}
	if c.Back {
		dir = dir.Sub(p.Heading())
	}
	if c.Left {
		dir = dir.Sub(p.Right())
	}
	if c.Right {
		dir = dir.Add(p.Right())
	}
	if dir.Len() > 0 {
		p.Velocity = p.Velocity.Add(dir.Normalize().Mul(speed * dt))
	}

	if c.Jump && !p.Flying && p.OnGround && p.cooldown == 0 {
		p.cooldown = jumpCooldown
		p.Velocity[1] += JumpVelocity
	}
}

// Update advances whole ticks covered by dt. Walking players fall and
// collide with solid cells from blocks.
func (p *Player) Update(dt float32, blocks BlockSource) {
	p.accumulator += dt
	for p.accumulator >= TickRate {
		p.previous = p.Position
		p.damp()
		if !p.Flying {
			p.Velocity[1] -= Gravity
			p.collide(blocks)
		}
		p.cooldown = max(0, p.cooldown-0.01)
		p.Position = p.Position.Add(p.Velocity)
		p.accumulator -= TickRate
	}
}

// Eye interpolates between the last two ticks for rendering.
func (p *Player) Eye() mgl32.Vec3 {
	alpha := max(0, min(1, p.accumulator/TickRate))
	return p.previous.Add(p.Position.Sub(p.previous).Mul(alpha))
}

// Box is the player's collision volume around the eye.
func (p *Player) Box() world.AABB {
	return boxAt(p.Position)
}

func boxAt(eye mgl32.Vec3) world.AABB {
	return world.AABB{
		Min: eye.Sub(mgl32.Vec3{Width / 2, EyeHeight, Width / 2}),
		Max: eye.Add(mgl32.Vec3{Width / 2, Headroom, Width / 2}),
	}
}

func (p *Player) damp() {
	horizontal := float32(1 - Damping)
	if !p.OnGround && !p.Flying {
		horizontal = 1 - Damping*AirResistance
		if p.Sprinting {
			horizontal = 1 - Damping*(1-(1-AirResistance)*SprintAirBoost)
		}
	}
	p.Velocity[0] *= horizontal
	p.Velocity[2] *= horizontal
	if p.Flying {
		p.Velocity[1] *= 1 - Damping
	}
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
