package opengl

import (
	"fmt"
	"image"

	"github.com/go-gl/gl/v4.3-core/gl"
	stbi "neilpa.me/go-stbi"
)

type overlay struct {
	program uint32
	vao     uint32
	vbo     uint32
	texture uint32
	size    image.Point
}

func (o *overlay) init() error {
	prog, err := linkProgram(overlayVertexShader, overlayFragmentShader)
	if err != nil {
		return fmt.Errorf("overlay program: %w", err)
	}
	o.program = prog
	gl.UseProgram(prog)
	gl.Uniform1i(uniform(prog, "overlay"), 0)

	gl.GenVertexArrays(1, &o.vao)
	gl.BindVertexArray(o.vao)
	gl.GenBuffers(1, &o.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, o.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, 6*4*4, nil, gl.DYNAMIC_DRAW)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(0, 2, gl.FLOAT, false, 4*4, 0)
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointerWithOffset(1, 2, gl.FLOAT, false, 4*4, 2*4)
	gl.BindVertexArray(0)

	gl.GenTextures(1, &o.texture)
	gl.BindTexture(gl.TEXTURE_2D, o.texture)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	return check("overlay init")
}

func (o *overlay) close() {
	gl.DeleteTextures(1, &o.texture)
	gl.DeleteBuffers(1, &o.vbo)
	gl.DeleteVertexArrays(1, &o.vao)
	gl.DeleteProgram(o.program)
}

// DrawOverlay blends img over the top-left corner of the framebuffer at one
// texel per pixel.
func (b *Backend) DrawOverlay(img *image.RGBA) error {
	o := &b.overlay
	size := img.Rect.Size()

	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, o.texture)
	if size != o.size {
		gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, int32(size.X), int32(size.Y), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
		o.size = size
	} else {
		gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(size.X), int32(size.Y), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
	}

	// Image rows run top-down, so v=0 maps to the top edge.
	x0, y0 := float32(-1), float32(1)
	x1 := x0 + 2*float32(size.X)/float32(b.width)
	y1 := y0 - 2*float32(size.Y)/float32(b.height)
	quad := []float32{
		x0, y0, 0, 0,
		x0, y1, 0, 1,
		x1, y1, 1, 1,
		x0, y0, 0, 0,
		x1, y1, 1, 1,
		x1, y0, 1, 0,
	}

	gl.Disable(gl.DEPTH_TEST)
	gl.Disable(gl.CULL_FACE)
	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	gl.UseProgram(o.program)
	gl.BindVertexArray(o.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, o.vbo)
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(quad)*4, gl.Ptr(quad))
	gl.DrawArrays(gl.TRIANGLES, 0, 6)
	gl.BindVertexArray(0)
	gl.Disable(gl.BLEND)
	return check("draw overlay")
}

// LoadAtlas decodes a block texture atlas with one row per solid block type
// (grass, dirt, stone from the top) and switches the chunk shader to it.
func (b *Backend) LoadAtlas(path string) error {
	rgba, err := stbi.Load(path)
	if err != nil {
		return fmt.Errorf("load atlas %s: %w", path, err)
	}
	if b.atlas == 0 {
		gl.GenTextures(1, &b.atlas)
	}
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, b.atlas)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, int32(rgba.Rect.Dx()), int32(rgba.Rect.Dy()), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(rgba.Pix))
	gl.GenerateMipmap(gl.TEXTURE_2D)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST_MIPMAP_LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)

	gl.UseProgram(b.program)
	gl.Uniform1i(b.useAtlas, 1)
	b.log.WithField("path", path).WithField("size", rgba.Rect.Size()).Info("texture atlas loaded")
	return check("load atlas")
}
