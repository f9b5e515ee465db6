package facecrop

import (
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"

	// Register the decoders not shipped with the standard library.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ImageError reports that the source could not be decoded as an image.
type ImageError struct {
	Err error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("invalid image: %v", e.Err)
}

func (e *ImageError) Unwrap() error {
	return e.Err
}

// decodeImg decodes the image and applies its EXIF orientation, if any.
func decodeImg(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, &ImageError{Err: err}
	}
	if img.Bounds().Empty() {
		return nil, &ImageError{Err: fmt.Errorf("image has no pixels")}
	}
	return img, nil
}

// encodeImg encodes the image as PNG, the only format able to carry the mask.
func encodeImg(w io.Writer, img image.Image) error {
	if err := imaging.Encode(w, img, imaging.PNG); err != nil {
		return fmt.Errorf("could not encode the image: %w", err)
	}
	return nil
}

// toNRGBA converts any image type to *image.NRGBA with min-point at (0, 0).
// Images which already satisfy this are returned unchanged.
func toNRGBA(img image.Image) *image.NRGBA {
	if src, ok := img.(*image.NRGBA); ok && src.Bounds().Min == (image.Point{}) {
		return src
	}
	return imaging.Clone(img)
}
