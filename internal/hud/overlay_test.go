package hud

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelstream/internal/engine"
)

func inked(img *image.RGBA, r image.Rectangle) int {
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if img.RGBAAt(x, y).A > 0 {
				n++
			}
		}
	}
	return n
}

func TestDrawWritesTextAndClears(t *testing.T) {
	o, err := New(256, 128, 16)
	require.NoError(t, err)
	t.Cleanup(func() { o.Close() })

	require.NoError(t, o.Draw([]string{"FPS: 60.0", "Draws: 12"}))
	img := o.Image()
	assert.Greater(t, inked(img, image.Rect(0, 0, 256, 32)), 0, "first line")
	assert.Greater(t, inked(img, image.Rect(0, 32, 256, 64)), 0, "second line")
	assert.Zero(t, inked(img, image.Rect(0, 80, 256, 128)))

	require.NoError(t, o.Draw(nil))
	assert.Zero(t, inked(img, img.Bounds()))
}

func TestDrawDropsLinesBelowCanvas(t *testing.T) {
	o, err := New(128, 24, 16)
	require.NoError(t, err)

	lines := make([]string, 50)
	for i := range lines {
		lines[i] = "overflow"
	}
	require.NoError(t, o.Draw(lines))
	assert.Greater(t, inked(o.Image(), o.Image().Bounds()), 0)
}

func TestWidthGrowsWithText(t *testing.T) {
	o, err := New(64, 64, 16)
	require.NoError(t, err)

	short, long := o.Width("ab"), o.Width("abcdefgh")
	assert.Greater(t, short, 0)
	assert.Greater(t, long, short)
}

func TestNewRejects(t *testing.T) {
	_, err := New(0, 10, 12)
	assert.ErrorContains(t, err, "invalid canvas")

	_, err = NewFromFile(filepath.Join(t.TempDir(), "missing.ttf"), 10, 10, 12)
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "bad.ttf")
	require.NoError(t, os.WriteFile(bad, []byte("not a font"), 0o644))
	_, err = NewFromFile(bad, 10, 10, 12)
	assert.ErrorContains(t, err, "parse font")
}

func TestLines(t *testing.T) {
	lines := Lines(engine.Stats{
		Resident: 64, Queued: 3, SlotsInUse: 16, SlotsFree: 2, SlotTail: 18,
		VisibleDrawCalls: 9, FrustumCulled: 5, OcclusionCulled: 2,
		Scans: 4, Generated: 80, Scanning: true,
	}, mgl32.Vec3{1, 2.5, -3}, 59.94, "fly")

	assert.Equal(t, []string{
		"FPS: 59.9",
		"XYZ: 1.0 / 2.5 / -3.0 (fly)",
		"Chunks: 64 resident, 3 queued",
		"Slots: 16 used, 2 free, 18 allocated",
		"Draws: 9 (frustum -5, occlusion -2)",
		"Scans: 4, generated 80 (scanning)",
	}, lines)
}
