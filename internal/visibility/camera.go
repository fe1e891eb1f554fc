package visibility

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"voxelstream/internal/config"
	"voxelstream/internal/world"
)

// Camera holds OpenGL-convention projection and view matrices: clip space
// z runs from -w to w and window depth is (ndc.z+1)/2.
type Camera struct {
	Position mgl32.Vec3
	Front    mgl32.Vec3
	Up       mgl32.Vec3

	projection mgl32.Mat4
	view       mgl32.Mat4
}

// NewCamera places a camera at the origin looking down -Z.
func NewCamera(cfg config.CameraConfig) *Camera {
	c := &Camera{}
	c.SetPerspective(cfg.FovDegrees, float32(cfg.Width)/float32(cfg.Height), cfg.Near, cfg.Far)
	c.LookAt(mgl32.Vec3{}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0})
	return c
}

func (c *Camera) SetPerspective(fovDegrees, aspect, near, far float32) {
	c.projection = mgl32.Perspective(mgl32.DegToRad(fovDegrees), aspect, near, far)
}

func (c *Camera) LookAt(eye, target, up mgl32.Vec3) {
	c.Position = eye
	c.Front = target.Sub(eye).Normalize()
	c.Up = up
	c.view = mgl32.LookAtV(eye, target, up)
}

// Orient points the camera from yaw and pitch in degrees. Yaw -90 looks down
// -Z.
func (c *Camera) Orient(eye mgl32.Vec3, yaw, pitch float64) {
	y, p := float64(mgl32.DegToRad(float32(yaw))), float64(mgl32.DegToRad(float32(pitch)))
	front := mgl32.Vec3{
		float32(math.Cos(y) * math.Cos(p)),
		float32(math.Sin(p)),
		float32(math.Sin(y) * math.Cos(p)),
	}.Normalize()
	right := front.Cross(mgl32.Vec3{0, 1, 0}).Normalize()
	up := right.Cross(front).Normalize()
	c.LookAt(eye, eye.Add(front), up)
}

func (c *Camera) Projection() mgl32.Mat4 { return c.projection }
func (c *Camera) View() mgl32.Mat4 { return c.view }

func (c *Camera) ProjectionView() mgl32.Mat4 {
	return c.projection.Mul4(c.view)
}

// Chunk is the chunk the camera is in.
func (c *Camera) Chunk() world.ChunkCoord { return world.ChunkOf(c.Position) }

// CanSee reports whether any corner of box falls inside the clip volume.
func (c *Camera) CanSee(box world.AABB) bool {
	pv := c.ProjectionView()
	for _, corner := range box.Corners() {
		if insideClip(pv.Mul4x1(corner.Vec4(1))) {
			return true
		}
	}
	return false
}

func insideClip(p mgl32.Vec4) bool {
	w := p.W()
	return -w <= p.X() && p.X() <= w &&
		-w <= p.Y() && p.Y() <= w &&
		-w <= p.Z() && p.Z() <= w
}
