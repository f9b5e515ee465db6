package facecrop

import (
	"image"
)

// CircularMask returns a w x h alpha mask that is opaque inside the ellipse
// inscribed in the rectangle and transparent outside. Each pixel is tested
// at its center, so the mask has no antialiased edge.
func CircularMask(w, h int) *image.Alpha {
	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	if w <= 0 || h <= 0 {
		return mask
	}

	rx, ry := float64(w)/2, float64(h)/2
	for y := 0; y < h; y++ {
		dy := (float64(y) + 0.5 - ry) / ry
		row := mask.Pix[y*mask.Stride : y*mask.Stride+w]
		for x := range row {
			dx := (float64(x) + 0.5 - rx) / rx
			if dx*dx+dy*dy <= 1 {
				row[x] = 0xff
			}
		}
	}
	return mask
}
