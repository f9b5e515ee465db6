package imop

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComp_Basic(t *testing.T) {
	assert := assert.New(t)

	op := InitOp()
	assert.Equal(Dst, op.Get())

	op.Set(DstIn)
	assert.Equal(DstIn, op.Get())

	op.Set("unsupported_composite_operation")
	assert.Equal(DstIn, op.Get())

	op.Set(Clear)
	assert.Equal(Clear, op.Get())
}

func TestComp_Ops(t *testing.T) {
	assert := assert.New(t)

	cyan := color.NRGBA{R: 33, G: 150, B: 243, A: 255}
	rect := image.Rect(0, 0, 10, 10)

	// The mask is opaque on its left half only.
	mask := image.NewAlpha(rect)
	draw.Draw(mask, image.Rect(0, 0, 5, 10), &image.Uniform{color.Opaque}, image.Point{}, draw.Src)

	newBackdrop := func() *image.NRGBA {
		img := image.NewNRGBA(rect)
		draw.Draw(img, rect, &image.Uniform{cyan}, image.Point{}, draw.Src)
		return img
	}

	cases := map[string]struct {
		left, right uint8
	}{
		Dst:    {left: 255, right: 255},
		DstIn:  {left: 255, right: 0},
		DstOut: {left: 0, right: 255},
		Clear:  {left: 0, right: 0},
	}

	for name, tc := range cases {
		op := InitOp()
		op.Set(name)

		dst := newBackdrop()
		op.Draw(mask, dst)

		left := dst.NRGBAAt(1, 5)
		right := dst.NRGBAAt(8, 5)
		assert.Equal(tc.left, left.A, name)
		assert.Equal(tc.right, right.A, name)

		if name != Clear {
			assert.Equal(cyan.R, left.R, name)
			assert.Equal(cyan.B, right.B, name)
		}
	}
}

func TestComp_MaskOffset(t *testing.T) {
	assert := assert.New(t)

	// A destination sub-image and a mask with different origins are
	// aligned on their top-left corners.
	dst := image.NewNRGBA(image.Rect(0, 0, 20, 20)).SubImage(image.Rect(10, 10, 20, 20)).(*image.NRGBA)
	draw.Draw(dst, dst.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)

	mask := image.NewAlpha(image.Rect(5, 5, 10, 10))
	mask.SetAlpha(5, 5, color.Alpha{A: 255})

	op := InitOp()
	op.Set(DstIn)
	op.Draw(mask, dst)

	assert.Equal(uint8(255), dst.NRGBAAt(10, 10).A)
	assert.Equal(uint8(0), dst.NRGBAAt(11, 10).A)
	// Outside the mask bounds.
	assert.Equal(uint8(0), dst.NRGBAAt(19, 19).A)
}

func TestComp_PartialAlpha(t *testing.T) {
	dst := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	dst.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 200})

	mask := image.NewUniform(color.Alpha{A: 128})

	op := InitOp()
	op.Set(DstIn)
	op.Draw(mask, dst)

	// 200*128/255 rounded.
	assert.Equal(t, uint8(100), dst.NRGBAAt(0, 0).A)
	assert.Equal(t, uint8(10), dst.NRGBAAt(0, 0).R)
}
