// Package hud rasterises the debug overlay text into an RGBA image that a
// backend can upload as a texture.
package hud

import (
	"fmt"
	"image"
	"image/draw"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"

	"voxelstream/internal/engine"
)

const (
	dpi     = 72
	margin  = 8
	spacing = 1.2
)

// Overlay owns a transparent canvas and a freetype context drawing white
// text onto it.
type Overlay struct {
	face font.Face
	ctx  *freetype.Context
	dst  *image.RGBA
	size float64
}

// New builds an overlay of the given pixel size using the embedded Go font.
func New(width, height int, size float64) (*Overlay, error) {
	return newOverlay(goregular.TTF, width, height, size)
}

// NewFromFile is New with a TrueType font read from path.
func NewFromFile(path string, width, height int, size float64) (*Overlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font %s: %w", path, err)
	}
	return newOverlay(data, width, height, size)
}

func newOverlay(ttf []byte, width, height int, size float64) (*Overlay, error) {
	if width <= 0 || height <= 0 || size <= 0 {
		return nil, fmt.Errorf("hud: invalid canvas %dx%d at size %v", width, height, size)
	}
	f, err := freetype.ParseFont(ttf)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(f)
	ctx.SetFontSize(size)
	ctx.SetDst(dst)
	ctx.SetClip(dst.Bounds())
	ctx.SetSrc(image.White)
	ctx.SetHinting(font.HintingFull)

	return &Overlay{
		face: truetype.NewFace(f, &truetype.Options{Size: size, DPI: dpi, Hinting: font.HintingFull}),
		ctx:  ctx,
		dst:  dst,
		size: size,
	}, nil
}

// Image is the canvas. Its contents change on every Draw.
func (o *Overlay) Image() *image.RGBA { return o.dst }

func (o *Overlay) lineStep() fixed.Int26_6 { return o.ctx.PointToFixed(o.size * spacing) }

// Draw clears the canvas and writes one line per entry from the top-left
// corner. Lines whose baseline falls below the canvas are dropped.
func (o *Overlay) Draw(lines []string) error {
	draw.Draw(o.dst, o.dst.Bounds(), image.Transparent, image.Point{}, draw.Src)

	pt := freetype.Pt(margin, margin+o.ctx.PointToFixed(o.size).Ceil())
	bottom := fixed.I(o.dst.Bounds().Max.Y)
	for _, line := range lines {
		if pt.Y > bottom {
			break
		}
		if _, err := o.ctx.DrawString(line, pt); err != nil {
			return fmt.Errorf("draw %q: %w", line, err)
		}
		pt.Y += o.lineStep()
	}
	return nil
}

// Width measures s in pixels at the overlay's size.
func (o *Overlay) Width(s string) int {
	return font.MeasureString(o.face, s).Ceil()
}

// Close releases the measuring face.
func (o *Overlay) Close() error { return o.face.Close() }

// Lines formats the engine stats for display.
func Lines(s engine.Stats, pos mgl32.Vec3, fps float64, mode string) []string {
	lines := []string{
		fmt.Sprintf("FPS: %.1f", fps),
		fmt.Sprintf("XYZ: %.1f / %.1f / %.1f (%s)", pos.X(), pos.Y(), pos.Z(), mode),
		fmt.Sprintf("Chunks: %d resident, %d queued", s.Resident, s.Queued),
		fmt.Sprintf("Slots: %d used, %d free, %d allocated", s.SlotsInUse, s.SlotsFree, s.SlotTail),
		fmt.Sprintf("Draws: %d (frustum -%d, occlusion -%d)", s.VisibleDrawCalls, s.FrustumCulled, s.OcclusionCulled),
		fmt.Sprintf("Scans: %d, generated %d", s.Scans, s.Generated),
	}
	if s.Scanning {
		lines[len(lines)-1] += " (scanning)"
	}
	return lines
}
