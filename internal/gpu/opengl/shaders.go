package opengl

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v4.3-core/gl"
)

const chunkVertexShader = `
#version 430 core
layout(location = 0) in vec3 position;
layout(location = 1) in vec3 normal;
layout(location = 2) in vec2 uv;
layout(location = 3) in float material;
layout(location = 4) in mat4 model;
layout(location = 8) in mat4 normalMatrix;

uniform mat4 projectionView;

out vec3 vNormal;
out vec2 vUV;
flat out int vMaterial;

void main() {
	vNormal = mat3(normalMatrix) * normal;
	vUV = uv;
	vMaterial = int(material + 0.5);
	gl_Position = projectionView * model * vec4(position, 1.0);
}
`

const chunkFragmentShader = `
#version 430 core
in vec3 vNormal;
in vec2 vUV;
flat in int vMaterial;

uniform sampler2D atlas;
uniform bool useAtlas;

out vec4 color;

const vec3 palette[4] = vec3[](
	vec3(1.0, 0.0, 1.0),
	vec3(0.36, 0.62, 0.25),
	vec3(0.47, 0.33, 0.20),
	vec3(0.50, 0.50, 0.52)
);

void main() {
	int m = clamp(vMaterial, 0, 3);
	vec3 base = palette[m];
	if (useAtlas) {
		base = texture(atlas, vec2(vUV.x, (vUV.y + float(m - 1)) / 3.0)).rgb;
	}
	float light = 0.55 + 0.45 * max(dot(normalize(vNormal), normalize(vec3(0.4, 1.0, 0.3))), 0.0);
	color = vec4(base * light, 1.0);
}
`

const overlayVertexShader = `
#version 430 core
layout(location = 0) in vec2 position;
layout(location = 1) in vec2 uv;
out vec2 vUV;
void main() {
	vUV = uv;
	gl_Position = vec4(position, 0.0, 1.0);
}
`

const overlayFragmentShader = `
#version 430 core
in vec2 vUV;
uniform sampler2D overlay;
out vec4 color;
void main() {
	color = texture(overlay, vUV);
}
`

func compileShader(source string, kind uint32) (uint32, error) {
	shader := gl.CreateShader(kind)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("compile shader: %s", strings.TrimRight(log, "\x00"))
	}
	return shader, nil
}

func linkProgram(vertexSource, fragmentSource string) (uint32, error) {
	vs, err := compileShader(vertexSource, gl.VERTEX_SHADER)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(vs)
	fs, err := compileShader(fragmentSource, gl.FRAGMENT_SHADER)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(fs)

	prog := gl.CreateProgram()
	gl.AttachShader(prog, vs)
	gl.AttachShader(prog, fs)
	gl.LinkProgram(prog)
	gl.DetachShader(prog, vs)
	gl.DetachShader(prog, fs)

	var status int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(prog, logLength, nil, gl.Str(log))
		gl.DeleteProgram(prog)
		return 0, fmt.Errorf("link program: %s", strings.TrimRight(log, "\x00"))
	}
	return prog, nil
}

func uniform(prog uint32, name string) int32 {
	return gl.GetUniformLocation(prog, gl.Str(name+"\x00"))
}
