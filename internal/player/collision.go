package player

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"voxelstream/internal/world"
)

const skin = 0.001

type contact struct {
	time   float32
	normal [3]int
}

// collide clips this tick's velocity against the nearest solid cell, up to
// once per axis, and sets OnGround when a floor stops the fall.
func (p *Player) collide(blocks BlockSource) {
	p.OnGround = false
	for i := 0; i < 3; i++ {
		box := p.Box()
		hit, ok := nearest(box, p.Velocity, blocks)
		if !ok {
			return
		}
		t := hit.time - skin
		for axis, n := range hit.normal {
			if n == 0 {
				continue
			}
			p.Position[axis] += p.Velocity[axis] * t
			p.Velocity[axis] = 0
			if axis == 1 && n > 0 {
				p.OnGround = true
			}
		}
	}
}

// nearest sweeps box along vel against every solid cell the move can reach.
func nearest(box world.AABB, vel mgl32.Vec3, blocks BlockSource) (contact, bool) {
	reach := box.Union(world.AABB{Min: box.Min.Add(vel), Max: box.Max.Add(vel)})
	best := contact{time: float32(math.Inf(1))}
	found := false

	for y := floor(reach.Min.Y()); y <= floor(reach.Max.Y()); y++ {
		for z := floor(reach.Min.Z()); z <= floor(reach.Max.Z()); z++ {
			for x := floor(reach.Min.X()); x <= floor(reach.Max.X()); x++ {
				if !blocks.BlockAt(x, y, z).Solid() {
					continue
				}
				cell := world.AABB{
					Min: mgl32.Vec3{float32(x), float32(y), float32(z)},
					Max: mgl32.Vec3{float32(x + 1), float32(y + 1), float32(z + 1)},
				}
				if c, ok := sweep(box, cell, vel); ok && c.time < best.time {
					best, found = c, true
				}
			}
		}
	}
	return best, found
}

// sweep returns when, as a fraction of vel, a moving box first touches a
// static one, and the face normal it touches.
func sweep(moving, static world.AABB, vel mgl32.Vec3) (contact, bool) {
	var entry, exit [3]float32
	for i := 0; i < 3; i++ {
		if vel[i] > 0 {
			entry[i] = timeTo(static.Min[i]-moving.Max[i], vel[i])
			exit[i] = timeTo(static.Max[i]-moving.Min[i], vel[i])
		} else {
			entry[i] = timeTo(static.Max[i]-moving.Min[i], vel[i])
			exit[i] = timeTo(static.Min[i]-moving.Max[i], vel[i])
		}
	}

	if entry[0] < 0 && entry[1] < 0 && entry[2] < 0 {
		return contact{}, false
	}
	if entry[0] > 1 || entry[1] > 1 || entry[2] > 1 {
		return contact{}, false
	}
	enter := max(entry[0], entry[1], entry[2])
	leave := min(exit[0], exit[1], exit[2])
	if enter > leave {
		return contact{}, false
	}

	c := contact{time: enter}
	for i := 0; i < 3; i++ {
		if entry[i] == enter {
			if vel[i] > 0 {
				c.normal[i] = -1
			} else {
				c.normal[i] = 1
			}
		}
	}
	return c, true
}

// timeTo divides distance by speed. A still axis either always overlaps
// (distance ahead is positive) or never does.
func timeTo(distance, speed float32) float32 {
	if speed == 0 {
		if distance > 0 {
			return float32(math.Inf(-1))
		}
		return float32(math.Inf(1))
	}
	return distance / speed
}

func floor(v float32) int { return int(math.Floor(float64(v))) }
