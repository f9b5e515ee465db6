package facecrop

import (
	"errors"
	"image"
	"io"

	"github.com/rs/zerolog"
)

// ErrNoFaceDetected is returned when no detection stage found a face.
var ErrNoFaceDetected = errors.New("no face detected")

var errNoDetector = errors.New("face detector is not configured")

// Processor options
type Processor struct {
	Detector *Detector
	Mode     Mode
	Circular bool
	Logger   zerolog.Logger
}

// Process decodes the image read from r, crops it around the detected face
// and writes the result to w as PNG. Nothing is written when no face is found.
func (p *Processor) Process(r io.Reader, w io.Writer) error {
	src, err := decodeImg(r)
	if err != nil {
		return err
	}

	img, err := p.CropImage(src)
	if err != nil {
		return err
	}
	return encodeImg(w, img)
}

// CropImage locates the face in an already decoded image and returns the crop.
func (p *Processor) CropImage(src image.Image) (*image.NRGBA, error) {
	if p.Detector == nil {
		return nil, errNoDetector
	}
	img := toNRGBA(src)

	box, ok := p.Detector.Locate(img, p.Mode)
	if !ok {
		return nil, ErrNoFaceDetected
	}

	region := Region(box, img.Bounds().Dx(), img.Bounds().Dy())
	p.Logger.Debug().
		Stringer("face", box).
		Int("x1", region.X1).
		Int("y1", region.Y1).
		Int("size", region.Size()).
		Bool("circular", p.Circular).
		Msg("cropping image")

	return Crop(img, region, p.Circular), nil
}
