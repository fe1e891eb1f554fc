// Package visibility decides each frame which resident chunks are drawn.
package visibility

import (
	"voxelstream/internal/config"
	"voxelstream/internal/gpu"
	"voxelstream/internal/world"
)

// SelectStats describes the last selection.
type SelectStats struct {
	Resident        int
	Candidates      int
	Visible         int
	FrustumCulled   int
	OcclusionCulled int
}

type Selector struct {
	culler *Culler
	Stats  SelectStats
}

// NewSelector enables occlusion culling when cfg asks for it and a depth
// sampler is available.
func NewSelector(sampler gpu.DepthSampler, cfg config.VisibilityConfig) *Selector {
	s := &Selector{}
	if cfg.Occlusion && sampler != nil {
		s.culler = NewCuller(sampler, cfg.OctreeDepth)
	}
	return s
}

// Culler is nil when occlusion is disabled.
func (s *Selector) Culler() *Culler { return s.culler }

// SelectVisible returns the chunks holding a GPU block that pass the frustum
// test, minus those the occlusion pass rejects. The chunk containing the
// camera always passes. Order is unspecified.
func (s *Selector) SelectVisible(store *world.Store, cam *Camera) []*world.Chunk {
	s.Stats = SelectStats{}
	viewer := cam.Chunk()

	var candidates []*world.Chunk
	for _, c := range store.Snapshot() {
		if c.IsEmpty() || c.Buffer == nil {
			continue
		}
		s.Stats.Resident++
		if c.Coord == viewer || cam.CanSee(c.Bounds) {
			candidates = append(candidates, c)
		} else {
			s.Stats.FrustumCulled++
		}
	}
	s.Stats.Candidates = len(candidates)

	visible := candidates
	if s.culler != nil {
		visible = s.culler.Filter(cam, candidates, viewer)
	}
	s.Stats.OcclusionCulled = len(candidates) - len(visible)
	s.Stats.Visible = len(visible)
	return visible
}
