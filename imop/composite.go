// Package imop implements the Porter-Duff composition operations of an
// alpha mask (the source) over an image (the destination). Only the
// destination based operations are supported, since an alpha mask carries
// no color of its own: the destination keeps its color channels and only
// its alpha is recomputed.
//
// It is used to cut the circular mask out of the cropped image.
package imop

import (
	"image"
	"image/color"

	"github.com/facecrop/facecrop/utils"
)

const (
	Clear  = "clear"
	Dst    = "dst"
	DstIn  = "dst_in"
	DstOut = "dst_out"
)

// Composite holds the currently active composition operation.
type Composite struct {
	current string
	ops     []string
}

// InitOp initializes a new composition operation. Dst, which leaves the
// destination untouched, is the default one.
func InitOp() *Composite {
	return &Composite{
		current: Dst,
		ops:     []string{Clear, Dst, DstIn, DstOut},
	}
}

// Set activates one of the supported composition operations.
// Unsupported operations are ignored.
func (op *Composite) Set(cop string) {
	if utils.Contains(op.ops, cop) {
		op.current = cop
	}
}

// Get returns the currently active composition operation.
func (op *Composite) Get() string {
	return op.current
}

// Draw applies the active operation in place on dst, using the alpha of
// mask as the source alpha. The mask is aligned to the top-left corner of
// dst; pixels not covered by the mask see a fully transparent source.
func (op *Composite) Draw(mask image.Image, dst *image.NRGBA) {
	b := dst.Bounds()
	mb := mask.Bounds()
	alpha, isAlpha := mask.(*image.Alpha)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		my := mb.Min.Y + y - b.Min.Y
		for x := b.Min.X; x < b.Max.X; x++ {
			mx := mb.Min.X + x - b.Min.X

			var sa uint32
			if (image.Point{X: mx, Y: my}).In(mb) {
				if isAlpha {
					sa = uint32(alpha.Pix[alpha.PixOffset(mx, my)])
				} else {
					sa = uint32(color.AlphaModel.Convert(mask.At(mx, my)).(color.Alpha).A)
				}
			}

			i := dst.PixOffset(x, y)
			da := uint32(dst.Pix[i+3])

			// applying the alpha composition formula
			switch op.current {
			case Clear:
				da = 0
			case DstIn:
				da = (da*sa + 127) / 255
			case DstOut:
				da = (da*(255-sa) + 127) / 255
			}
			dst.Pix[i+3] = uint8(da)
		}
	}
}
