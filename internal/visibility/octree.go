package visibility

import (
	"github.com/go-gl/mathgl/mgl32"

	"voxelstream/internal/world"
)

// Node is an octree cell. It references no chunks; chunks are routed through
// it at query time.
type Node struct {
	Bounds   world.AABB
	Children []*Node
}

// BuildOctree splits bounds at its center depth times.
func BuildOctree(bounds world.AABB, depth int) *Node {
	n := &Node{Bounds: bounds}
	if depth <= 0 {
		return n
	}
	center := bounds.Center()
	n.Children = make([]*Node, 0, 8)
	for i := 0; i < 8; i++ {
		child := world.AABB{Min: bounds.Min, Max: center}
		if i&1 != 0 {
			child.Min[0], child.Max[0] = center[0], bounds.Max[0]
		}
		if i&2 != 0 {
			child.Min[1], child.Max[1] = center[1], bounds.Max[1]
		}
		if i&4 != 0 {
			child.Min[2], child.Max[2] = center[2], bounds.Max[2]
		}
		n.Children = append(n.Children, BuildOctree(child, depth-1))
	}
	return n
}

// Count is the number of nodes in the tree.
func (n *Node) Count() int {
	total := 1
	for _, c := range n.Children {
		total += c.Count()
	}
	return total
}

// chunkAlignedCube grows box to a cube whose edge is a power-of-two number of
// chunks, anchored at box.Min, and returns it with that power.
func chunkAlignedCube(box world.AABB) (world.AABB, int) {
	ext := box.Max.Sub(box.Min)
	longest := max(ext[0], ext[1], ext[2])
	chunks := 1
	levels := 0
	for float32(chunks*world.ChunkSize) < longest {
		chunks *= 2
		levels++
	}
	size := float32(chunks * world.ChunkSize)
	return world.AABB{Min: box.Min, Max: box.Min.Add(mgl32.Vec3{size, size, size})}, levels
}
