package facecrop

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticCascade reports the same face on every image. It keeps no state
// and is safe for concurrent use.
type staticCascade struct {
	face image.Rectangle
}

func (s staticCascade) Find(*image.Gray, CascadeParams) ([]image.Rectangle, error) {
	return []image.Rectangle{s.face}, nil
}

func newTestProcessor(circular bool) *Processor {
	return &Processor{
		Detector: NewDetector(Models{Frontal: staticCascade{face: image.Rect(20, 20, 60, 60)}}),
		Circular: circular,
	}
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func portrait(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.NRGBA{R: 200, G: 160, B: 120, A: 255}}, image.Point{}, draw.Src)
	return img
}

func TestProcessor_Process(t *testing.T) {
	proc := newTestProcessor(false)

	var out bytes.Buffer
	require.NoError(t, proc.Process(bytes.NewReader(encodePNG(t, portrait(100, 100))), &out))

	img, err := png.Decode(&out)
	require.NoError(t, err)
	// The 40x40 face centered at (40,40) asks for a 120 pixel crop, limited to the image.
	assert.Equal(t, image.Rect(0, 0, 100, 100), img.Bounds())
	_, _, _, a := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), a)
}

func TestProcessor_Circular(t *testing.T) {
	proc := newTestProcessor(true)

	var out bytes.Buffer
	require.NoError(t, proc.Process(bytes.NewReader(encodePNG(t, portrait(300, 300))), &out))

	img, err := png.Decode(&out)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 120, 120), img.Bounds())

	_, _, _, a := img.At(0, 0).RGBA()
	assert.Zero(t, a)
	_, _, _, a = img.At(60, 60).RGBA()
	assert.Equal(t, uint32(0xffff), a)
}

func TestProcessor_InvalidImage(t *testing.T) {
	proc := newTestProcessor(false)

	var out bytes.Buffer
	err := proc.Process(bytes.NewReader([]byte("definitely not an image")), &out)

	var imgErr *ImageError
	require.ErrorAs(t, err, &imgErr)
	assert.Contains(t, err.Error(), "invalid image")
	assert.Zero(t, out.Len())

	err = proc.Process(bytes.NewReader(nil), &out)
	assert.ErrorAs(t, err, &imgErr)
}

func TestProcessor_NoFace(t *testing.T) {
	proc := &Processor{Detector: NewDetector(Models{Frontal: &fakeCascade{}})}

	var out bytes.Buffer
	err := proc.Process(bytes.NewReader(encodePNG(t, image.NewNRGBA(image.Rect(0, 0, 100, 100)))), &out)
	assert.ErrorIs(t, err, ErrNoFaceDetected)
	assert.Zero(t, out.Len())

	// Strict mode without a primary model never finds anything.
	proc = newTestProcessor(false)
	proc.Mode = ModeStrict
	_, err = proc.CropImage(portrait(100, 100))
	assert.ErrorIs(t, err, ErrNoFaceDetected)
}

func TestProcessor_NoDetector(t *testing.T) {
	proc := &Processor{}
	_, err := proc.CropImage(portrait(10, 10))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoFaceDetected))
}

func TestProcessor_CropImageLeavesSource(t *testing.T) {
	src := portrait(100, 100)
	before := append([]uint8(nil), src.Pix...)

	out, err := newTestProcessor(true).CropImage(src)
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Equal(t, before, src.Pix)
}

func TestProcessor_TranslucentSource(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	src.SetNRGBA(50, 50, color.NRGBA{R: 255, A: 255})
	for y := 45; y < 55; y++ {
		src.SetNRGBA(30, y, color.NRGBA{G: 200, A: 0x80})
	}
	primary := &fakeScored{candidates: []Candidate{{Box: image.Rect(40, 40, 60, 60), Score: 0.9}}}
	proc := &Processor{Detector: NewDetector(Models{Primary: primary})}

	var out bytes.Buffer
	require.NoError(t, proc.Process(bytes.NewReader(encodePNG(t, src)), &out))

	img, err := png.Decode(&out)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 60, 60), img.Bounds())

	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			require.Equal(t, uint32(0xffff), a, "alpha at (%d,%d)", x, y)
		}
	}
	r, _, _, _ := img.At(30, 30).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	_, g, _, _ := img.At(10, 30).RGBA()
	assert.Equal(t, uint32(200*0x101), g)
}
