package gpu

// DownsampleDepth reduces a width×height depth image by factor in each
// direction, keeping the farthest value of every block so occlusion tests on
// the result stay conservative. dst is reused when large enough. Partial
// blocks at the right and top edges are dropped.
func DownsampleDepth(dst, src []float32, width, height, factor int) ([]float32, int, int) {
	if factor < 1 {
		factor = 1
	}
	w, h := width/factor, height/factor
	if cap(dst) < w*h {
		dst = make([]float32, w*h)
	}
	dst = dst[:w*h]

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			far := float32(0)
			for sy := y * factor; sy < (y+1)*factor; sy++ {
				row := src[sy*width:]
				for sx := x * factor; sx < (x+1)*factor; sx++ {
					far = max(far, row[sx])
				}
			}
			dst[x+y*w] = far
		}
	}
	return dst, w, h
}
