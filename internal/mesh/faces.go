package mesh

import "github.com/go-gl/mathgl/mgl32"

// Face enumerates the six block faces in emission order.
type Face uint8

const (
	Top Face = iota
	Bottom
	Front // +Z
	Back  // -Z
	Left  // -X
	Right // +X
)

type faceDef struct {
	dir     [3]int
	normal  mgl32.Vec3
	corners [4]mgl32.Vec3 // counter-clockwise seen from outside the block
}

var faces = [6]faceDef{
	Top: {
		dir:     [3]int{0, 1, 0},
		normal:  mgl32.Vec3{0, 1, 0},
		corners: [4]mgl32.Vec3{{0, 1, 0}, {0, 1, 1}, {1, 1, 1}, {1, 1, 0}},
	},
	Bottom: {
		dir:     [3]int{0, -1, 0},
		normal:  mgl32.Vec3{0, -1, 0},
		corners: [4]mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}},
	},
	Front: {
		dir:     [3]int{0, 0, 1},
		normal:  mgl32.Vec3{0, 0, 1},
		corners: [4]mgl32.Vec3{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}},
	},
	Back: {
		dir:     [3]int{0, 0, -1},
		normal:  mgl32.Vec3{0, 0, -1},
		corners: [4]mgl32.Vec3{{1, 0, 0}, {0, 0, 0}, {0, 1, 0}, {1, 1, 0}},
	},
	Left: {
		dir:     [3]int{-1, 0, 0},
		normal:  mgl32.Vec3{-1, 0, 0},
		corners: [4]mgl32.Vec3{{0, 0, 0}, {0, 0, 1}, {0, 1, 1}, {0, 1, 0}},
	},
	Right: {
		dir:     [3]int{1, 0, 0},
		normal:  mgl32.Vec3{1, 0, 0},
		corners: [4]mgl32.Vec3{{1, 0, 1}, {1, 0, 0}, {1, 1, 0}, {1, 1, 1}},
	},
}

// Texture corners for the four vertices of every face: bottom-left,
// bottom-right, top-right, top-left.
var cornerUVs = [4]mgl32.Vec2{{0, 1}, {1, 1}, {1, 0}, {0, 0}}

// Two triangles per quad.
var quadIndices = [6]uint32{0, 1, 2, 0, 2, 3}
