package facecrop

import (
	"image"

	"github.com/disintegration/imaging"
)

// grayscale converts the image to an 8 bit luma image with its origin at (0, 0).
func grayscale(src image.Image) *image.Gray {
	return packGray(imaging.Grayscale(src))
}

// mirror returns the horizontally flipped copy of a grayscale image.
func mirror(src *image.Gray) *image.Gray {
	return packGray(imaging.FlipH(src))
}

// packGray keeps a single channel of an NRGBA image whose channels are equal.
func packGray(src *image.NRGBA) *image.Gray {
	dx, dy := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewGray(image.Rect(0, 0, dx, dy))

	for y := 0; y < dy; y++ {
		si := y * src.Stride
		di := y * dst.Stride
		for x := 0; x < dx; x++ {
			dst.Pix[di+x] = src.Pix[si+x*4]
		}
	}
	return dst
}

// equalizeHist spreads the grayscale histogram over the full 0..255 range.
// The lookup table is built from the cumulative histogram, starting at the
// first non-empty bin, so that the darkest present level maps to 0.
func equalizeHist(src *image.Gray) *image.Gray {
	var hist [256]int

	dx, dy := src.Bounds().Dx(), src.Bounds().Dy()
	total := dx * dy
	dst := image.NewGray(image.Rect(0, 0, dx, dy))
	if total == 0 {
		return dst
	}

	for y := 0; y < dy; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+dx]
		for _, v := range row {
			hist[v]++
		}
	}

	first := 0
	for hist[first] == 0 {
		first++
	}

	var lut [256]uint8
	if hist[first] == total {
		for i := range lut {
			lut[i] = uint8(first)
		}
	} else {
		scale := 255.0 / float64(total-hist[first])
		sum := 0
		for i := first + 1; i < 256; i++ {
			sum += hist[i]
			v := float64(sum)*scale + 0.5
			if v > 255 {
				v = 255
			}
			lut[i] = uint8(v)
		}
	}

	for y := 0; y < dy; y++ {
		si := y * src.Stride
		di := y * dst.Stride
		for x := 0; x < dx; x++ {
			dst.Pix[di+x] = lut[src.Pix[si+x]]
		}
	}
	return dst
}
