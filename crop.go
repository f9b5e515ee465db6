package facecrop

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/facecrop/facecrop/imop"
	"github.com/facecrop/facecrop/utils"
)

const (
	// cropScale is the ratio between the crop edge and the larger face side.
	cropScale = 3
	// headMargin is the minimum headroom above the face, relative to its height.
	headMargin = 0.5
)

// Region computes the square crop around the face box of an image with the
// given dimensions. The crop edge is three times the larger face side,
// centered on the face, keeping at least half of the face height above it,
// and shifted or shrunk to stay inside the image. It is a pure function.
func Region(box BoundingBox, width, height int) CropRegion {
	size := cropScale * utils.Max(box.W, box.H)
	margin := int(headMargin * float64(box.H))
	cx, cy := box.Center()

	y1 := utils.Max(0, cy-size/2)
	if box.Y-y1 < margin {
		y1 = utils.Max(0, box.Y-margin)
	}
	x1 := utils.Max(0, cx-size/2)

	x2 := utils.Min(width, x1+size)
	y2 := utils.Min(height, y1+size)

	// Slide the window back inside when it overflows the right or bottom edge.
	if x2 == width {
		x1 = utils.Max(0, width-size)
	}
	if y2 == height {
		y1 = utils.Max(0, height-size)
	}

	edge := utils.Min(x2-x1, y2-y1)
	return CropRegion{X1: x1, Y1: y1, X2: x1 + edge, Y2: y1 + edge}
}

// Crop copies the region out of img into a new, fully opaque image with its
// origin at (0, 0). The source alpha is dropped. When circular is set
// everything outside the inscribed disk becomes fully transparent. The
// source image is left untouched.
func Crop(img image.Image, region CropRegion, circular bool) *image.NRGBA {
	rect := region.Rect().Add(img.Bounds().Min)
	dst := imaging.Crop(img, rect)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	if !circular {
		return dst
	}

	op := imop.InitOp()
	op.Set(imop.DstIn)
	op.Draw(CircularMask(dst.Bounds().Dx(), dst.Bounds().Dy()), dst)
	return dst
}
