package visibility

import (
	"voxelstream/internal/gpu"
	"voxelstream/internal/world"
)

// Culler rejects chunks hidden behind the previous frame's depth buffer. The
// octree is kept between frames and rebuilt when the candidate region moves.
type Culler struct {
	sampler  gpu.DepthSampler
	maxDepth int

	root       *Node
	rootBounds world.AABB
	rootDepth  int

	// NodesTested counts node depth tests in the last Filter call.
	NodesTested int
	Rebuilds    int
}

func NewCuller(sampler gpu.DepthSampler, maxDepth int) *Culler {
	return &Culler{sampler: sampler, maxDepth: maxDepth}
}

// Occluded is true only when no corner of box passes the depth test. A corner
// behind the eye or off screen cannot be tested and counts as passing, so a box
// crossing the screen edge is never culled.
func (c *Culler) Occluded(cam *Camera, box world.AABB) bool {
	pv := cam.ProjectionView()
	w, h := c.sampler.DepthSize()
	for _, corner := range box.Corners() {
		clip := pv.Mul4x1(corner.Vec4(1))
		if clip.W() <= 0 {
			return false
		}
		ndc := clip.Vec3().Mul(1 / clip.W())
		if ndc.X() < -1 || ndc.X() > 1 || ndc.Y() < -1 || ndc.Y() > 1 {
			return false
		}
		sx := min(int((ndc.X()+1)*0.5*float32(w)), w-1)
		sy := min(int((ndc.Y()+1)*0.5*float32(h)), h-1)
		depth := ndc.Z()*0.5 + 0.5
		sample := c.sampler.SampleDepthBuffer(sx, sy)
		if sample >= 1 || depth <= sample {
			return false
		}
	}
	return true
}

// Filter drops occluded chunks from candidates. keep is never dropped.
func (c *Culler) Filter(cam *Camera, candidates []*world.Chunk, keep world.ChunkCoord) []*world.Chunk {
	c.NodesTested = 0
	if len(candidates) == 0 {
		return nil
	}
	bounds := candidates[0].Bounds
	for _, ch := range candidates[1:] {
		bounds = bounds.Union(ch.Bounds)
	}
	cube, levels := chunkAlignedCube(bounds)
	depth := min(levels, c.maxDepth)
	if c.root == nil || cube != c.rootBounds || depth != c.rootDepth {
		c.root = BuildOctree(cube, depth)
		c.rootBounds, c.rootDepth = cube, depth
		c.Rebuilds++
	}

	out := make([]*world.Chunk, 0, len(candidates))
	return c.visit(cam, c.root, candidates, keep, out)
}

func (c *Culler) visit(cam *Camera, n *Node, items []*world.Chunk, keep world.ChunkCoord, out []*world.Chunk) []*world.Chunk {
	if len(items) == 0 {
		return out
	}
	c.NodesTested++
	if c.Occluded(cam, n.Bounds) {
		for _, ch := range items {
			if ch.Coord == keep {
				out = append(out, ch)
			}
		}
		return out
	}

	if len(n.Children) == 0 {
		exact := n.Bounds == itemsBounds(items)
		for _, ch := range items {
			if exact || ch.Coord == keep || !c.Occluded(cam, ch.Bounds) {
				out = append(out, ch)
			}
		}
		return out
	}

	var buckets [8][]*world.Chunk
	var unrouted []*world.Chunk
	for _, ch := range items {
		center := ch.Bounds.Center()
		routed := false
		for i, child := range n.Children {
			if child.Bounds.ContainsPoint(center) {
				buckets[i] = append(buckets[i], ch)
				routed = true
				break
			}
		}
		if !routed {
			unrouted = append(unrouted, ch)
		}
	}
	for i, child := range n.Children {
		out = c.visit(cam, child, buckets[i], keep, out)
	}
	// A chunk no child contains was already tested with this node and stays.
	return append(out, unrouted...)
}

// itemsBounds is the box of a single-item leaf, or an empty box otherwise.
func itemsBounds(items []*world.Chunk) world.AABB {
	if len(items) != 1 {
		return world.AABB{}
	}
	return items[0].Bounds
}
