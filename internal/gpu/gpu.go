// Package gpu holds the data types shared between the streaming core and a
// rendering backend, and the contract a backend has to satisfy.
package gpu

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// ErrUnknownHandle is returned by backends for handles they did not issue.
var ErrUnknownHandle = errors.New("gpu: unknown handle")

// Handle names a backend resource.
type Handle uint32

// Target selects the vertex or index half of an arena.
type Target uint8

const (
	VertexTarget Target = iota
	IndexTarget
)

func (t Target) String() string {
	if t == IndexTarget {
		return "index"
	}
	return "vertex"
}

const (
	// VertexSize is the encoded size of a Vertex.
	VertexSize = 36
	// IndexSize is the encoded size of one uint32 index.
	IndexSize = 4
	// DrawCommandSize matches DrawElementsIndirectCommand.
	DrawCommandSize = 20
	// InstanceSize is two column-major mat4s.
	InstanceSize = 128
)

// Vertex is one corner of a block face.
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
	Material float32
}

// Mesh is the output of the chunk mesher. Indices are relative to the first
// vertex of the mesh.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

func (m Mesh) Empty() bool { return len(m.Indices) == 0 }

// Faces is the number of quads in the mesh.
func (m Mesh) Faces() int { return len(m.Vertices) / 4 }

// BufferBlock is one chunk's region in the arena. Offsets are in bytes and
// stay fixed for the life of the slot; counts describe the current occupant.
type BufferBlock struct {
	Slot         uint32
	VertexOffset int
	VertexCount  int
	IndexOffset  int
	IndexCount   int
}

// FirstIndex is the index offset in index units.
func (b BufferBlock) FirstIndex() uint32 { return uint32(b.IndexOffset / IndexSize) }

// BaseVertex is the vertex offset in vertex units.
func (b BufferBlock) BaseVertex() int32 { return int32(b.VertexOffset / VertexSize) }

// DrawCommand mirrors the indirect indexed draw record.
type DrawCommand struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	BaseVertex    int32
	FirstInstance uint32
}

// Instance is the per-chunk transform pair read by the vertex stage.
type Instance struct {
	Model  mgl32.Mat4
	Normal mgl32.Mat4
}

// Backend is the part of a graphics API the core drives.
type Backend interface {
	AllocateArena(vertexBytes, indexBytes int) (Handle, error)
	StageWrite(arena Handle, target Target, byteOffset int, data []byte) error
	CopyStagedRegion(arena Handle, target Target, srcOffset, dstOffset, size int) error
	AllocateTable(capacityBytes int) (Handle, error)
	WriteTable(table Handle, byteOffset int, data []byte) error
	SubmitIndirectDraw(arena, drawTable, instanceTable Handle, visibleCount int) error
}

// DepthSampler reads the coarse depth buffer of the previous frame.
type DepthSampler interface {
	DepthSize() (width, height int)
	SampleDepthBuffer(x, y int) float32
}

// EncodeVertices packs vertices in the layout the backend binds.
func EncodeVertices(vs []Vertex) []byte {
	buf := make([]byte, 0, len(vs)*VertexSize)
	for _, v := range vs {
		buf = appendFloats(buf, v.Position[:]...)
		buf = appendFloats(buf, v.Normal[:]...)
		buf = appendFloats(buf, v.UV[:]...)
		buf = appendFloats(buf, v.Material)
	}
	return buf
}

func EncodeIndices(is []uint32) []byte {
	buf := make([]byte, 0, len(is)*IndexSize)
	for _, i := range is {
		buf = binary.LittleEndian.AppendUint32(buf, i)
	}
	return buf
}

func EncodeDrawCommands(cmds []DrawCommand) []byte {
	buf := make([]byte, 0, len(cmds)*DrawCommandSize)
	for _, c := range cmds {
		buf = binary.LittleEndian.AppendUint32(buf, c.IndexCount)
		buf = binary.LittleEndian.AppendUint32(buf, c.InstanceCount)
		buf = binary.LittleEndian.AppendUint32(buf, c.FirstIndex)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(c.BaseVertex))
		buf = binary.LittleEndian.AppendUint32(buf, c.FirstInstance)
	}
	return buf
}

func EncodeInstances(in []Instance) []byte {
	buf := make([]byte, 0, len(in)*InstanceSize)
	for _, i := range in {
		buf = appendFloats(buf, i.Model[:]...)
		buf = appendFloats(buf, i.Normal[:]...)
	}
	return buf
}

// DecodeDrawCommands is the inverse of EncodeDrawCommands.
func DecodeDrawCommands(data []byte) []DrawCommand {
	cmds := make([]DrawCommand, len(data)/DrawCommandSize)
	for i := range cmds {
		b := data[i*DrawCommandSize:]
		cmds[i] = DrawCommand{
			IndexCount:    binary.LittleEndian.Uint32(b[0:]),
			InstanceCount: binary.LittleEndian.Uint32(b[4:]),
			FirstIndex:    binary.LittleEndian.Uint32(b[8:]),
			BaseVertex:    int32(binary.LittleEndian.Uint32(b[12:])),
			FirstInstance: binary.LittleEndian.Uint32(b[16:]),
		}
	}
	return cmds
}

func appendFloats(buf []byte, fs ...float32) []byte {
	for _, f := range fs {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
	}
	return buf
}
