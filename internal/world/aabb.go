package world

import "github.com/go-gl/mathgl/mgl32"

// AABB is an axis-aligned box in world space.
type AABB struct {
	Min, Max mgl32.Vec3
}

func (a AABB) Intersects(b AABB) bool {
	return (a.Min.X() <= b.Max.X() && a.Max.X() >= b.Min.X()) &&
		(a.Min.Y() <= b.Max.Y() && a.Max.Y() >= b.Min.Y()) &&
		(a.Min.Z() <= b.Max.Z() && a.Max.Z() >= b.Min.Z())
}

func (a AABB) Center() mgl32.Vec3 {
	return a.Min.Add(a.Max).Mul(0.5)
}

// ContainsPoint is inclusive of Min and exclusive of Max.
func (a AABB) ContainsPoint(p mgl32.Vec3) bool {
	return p.X() >= a.Min.X() && p.X() < a.Max.X() &&
		p.Y() >= a.Min.Y() && p.Y() < a.Max.Y() &&
		p.Z() >= a.Min.Z() && p.Z() < a.Max.Z()
}

// Corners lists the eight box corners, bit i of the index selecting Max on
// axis i.
func (a AABB) Corners() [8]mgl32.Vec3 {
	var out [8]mgl32.Vec3
	for i := range out {
		c := a.Min
		if i&1 != 0 {
			c[0] = a.Max[0]
		}
		if i&2 != 0 {
			c[1] = a.Max[1]
		}
		if i&4 != 0 {
			c[2] = a.Max[2]
		}
		out[i] = c
	}
	return out
}

// Union returns the smallest box holding both.
func (a AABB) Union(b AABB) AABB {
	return AABB{
		Min: mgl32.Vec3{min(a.Min[0], b.Min[0]), min(a.Min[1], b.Min[1]), min(a.Min[2], b.Min[2])},
		Max: mgl32.Vec3{max(a.Max[0], b.Max[0]), max(a.Max[1], b.Max[1]), max(a.Max[2], b.Max[2])},
	}
}
