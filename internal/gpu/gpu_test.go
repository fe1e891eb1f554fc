package gpu

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferBlockUnits(t *testing.T) {
	b := BufferBlock{Slot: 3, VertexOffset: 3 * 100 * VertexSize, IndexOffset: 3 * 150 * IndexSize}
	assert.Equal(t, int32(300), b.BaseVertex())
	assert.Equal(t, uint32(450), b.FirstIndex())
}

func TestEncodeVerticesLayout(t *testing.T) {
	data := EncodeVertices([]Vertex{{
		Position: mgl32.Vec3{1, 2, 3},
		Normal:   mgl32.Vec3{0, 1, 0},
		UV:       mgl32.Vec2{1, 0},
		Material: 2,
	}})
	require.Len(t, data, VertexSize)

	floatAt := func(i int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])) }
	assert.Equal(t, float32(3), floatAt(2))
	assert.Equal(t, float32(1), floatAt(4))
	assert.Equal(t, float32(1), floatAt(6))
	assert.Equal(t, float32(2), floatAt(8))
}

func TestDrawCommandsKeepNegativeBaseVertex(t *testing.T) {
	in := []DrawCommand{{IndexCount: 36, InstanceCount: 1, FirstIndex: 12, BaseVertex: -4, FirstInstance: 7}}
	data := EncodeDrawCommands(in)
	require.Len(t, data, DrawCommandSize)
	assert.Equal(t, in, DecodeDrawCommands(data))
}

func TestEncodeInstancesSize(t *testing.T) {
	data := EncodeInstances([]Instance{{Model: mgl32.Ident4(), Normal: mgl32.Ident4()}, {}})
	assert.Len(t, data, 2*InstanceSize)
}
