package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v4.3-core/gl"
	"github.com/go-gl/mathgl/mgl32"
)

const skyVertexShader = `
#version 430 core
layout(location = 0) in vec3 position;
uniform mat4 projection;
uniform mat4 view;
out vec3 vDir;
void main() {
	vDir = position;
	vec4 p = projection * mat4(mat3(view)) * vec4(position, 1.0);
	gl_Position = p.xyww;
}
`

const skyFragmentShader = `
#version 430 core
in vec3 vDir;
out vec4 color;
void main() {
	float h = normalize(vDir).y;
	vec3 horizon = vec3(0.78, 0.87, 0.96);
	vec3 zenith = vec3(0.33, 0.58, 0.90);
	vec3 ground = vec3(0.55, 0.62, 0.70);
	color = vec4(h >= 0.0 ? mix(horizon, zenith, pow(h, 0.6)) : mix(horizon, ground, -h), 1.0);
}
`

// Corners of the unit cube, bit i of the index selects +1 on axis i.
var skyCorners = func() []float32 {
	out := make([]float32, 0, 8*3)
	for i := 0; i < 8; i++ {
		for axis := 0; axis < 3; axis++ {
			v := float32(-1)
			if i&(1<<axis) != 0 {
				v = 1
			}
			out = append(out, v)
		}
	}
	return out
}()

var skyIndices = []uint32{
	1, 3, 7, 1, 7, 5, // +X
	0, 4, 6, 0, 6, 2, // -X
	2, 6, 7, 2, 7, 3, // +Y
	0, 1, 5, 0, 5, 4, // -Y
	4, 5, 7, 4, 7, 6, // +Z
	0, 2, 3, 0, 3, 1, // -Z
}

type sky struct {
	program    uint32
	vao        uint32
	buffers    [2]uint32
	projection int32
	view       int32
}

func (s *sky) init() error {
	prog, err := linkProgram(skyVertexShader, skyFragmentShader)
	if err != nil {
		return fmt.Errorf("sky program: %w", err)
	}
	s.program = prog
	s.projection = uniform(prog, "projection")
	s.view = uniform(prog, "view")

	gl.GenVertexArrays(1, &s.vao)
	gl.BindVertexArray(s.vao)
	gl.GenBuffers(2, &s.buffers[0])
	gl.BindBuffer(gl.ARRAY_BUFFER, s.buffers[0])
	gl.BufferData(gl.ARRAY_BUFFER, len(skyCorners)*4, gl.Ptr(skyCorners), gl.STATIC_DRAW)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, 3*4, 0)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, s.buffers[1])
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(skyIndices)*4, gl.Ptr(skyIndices), gl.STATIC_DRAW)
	gl.BindVertexArray(0)
	return check("sky init")
}

// draw fills the background at the far plane without writing depth.
func (s *sky) draw(projection, view mgl32.Mat4) {
	gl.DepthMask(false)
	gl.DepthFunc(gl.LEQUAL)
	gl.Disable(gl.CULL_FACE)

	gl.UseProgram(s.program)
	gl.UniformMatrix4fv(s.projection, 1, false, &projection[0])
	gl.UniformMatrix4fv(s.view, 1, false, &view[0])
	gl.BindVertexArray(s.vao)
	gl.DrawElementsWithOffset(gl.TRIANGLES, int32(len(skyIndices)), gl.UNSIGNED_INT, 0)
	gl.BindVertexArray(0)

	gl.Enable(gl.CULL_FACE)
	gl.DepthFunc(gl.LESS)
	gl.DepthMask(true)
}

func (s *sky) close() {
	gl.DeleteBuffers(2, &s.buffers[0])
	gl.DeleteVertexArrays(1, &s.vao)
	gl.DeleteProgram(s.program)
}
