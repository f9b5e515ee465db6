// Package pigo runs pigo cascade classifiers as the cascade stages of the
// face detector. It is pure Go and needs nothing but the cascade files.
package pigo

import (
	"errors"
	"fmt"
	"image"
	"os"

	core "github.com/esimov/pigo/core"
	"github.com/facecrop/facecrop"
	"github.com/facecrop/facecrop/utils"
)

// minCascadeSize is the size of a cascade file holding a single tree of depth 0.
const minCascadeSize = 24

var _ facecrop.CascadeFinder = (*Finder)(nil)

// Finder wraps an unpacked pigo cascade. The cascade is only read after
// unpacking, so a Finder is safe for concurrent use.
type Finder struct {
	classifier *core.Pigo

	// QThreshold is the minimum clustered detection score.
	QThreshold float32
	// IoUThreshold is the overlap above which detections are merged.
	IoUThreshold float64
	// ShiftFactor moves the detection window by this ratio of its size.
	ShiftFactor float64
	// Angle is the in-plane rotation of the searched faces, between 0 and 1.
	Angle float64
}

// New unpacks a pigo cascade file content.
func New(data []byte) (f *Finder, err error) {
	if len(data) < minCascadeSize {
		return nil, fmt.Errorf("cascade file too short: %d bytes", len(data))
	}

	// Unpack indexes the packet without bounds checks.
	defer func() {
		if r := recover(); r != nil {
			f, err = nil, fmt.Errorf("malformed cascade file: %v", r)
		}
	}()

	classifier, err := core.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("error unpacking the cascade file: %w", err)
	}

	return &Finder{
		classifier:   classifier,
		QThreshold:   5.0,
		IoUThreshold: 0.2,
		ShiftFactor:  0.1,
	}, nil
}

// Load reads and unpacks the cascade file found at path.
func Load(path string) (*Finder, error) {
	if path == "" {
		return nil, errors.New("cascade file path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read the cascade file: %w", err)
	}
	f, err := New(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Find runs the cascade over the grayscale image. Pigo has no neighbour
// count, so params.MinNeighbors is ignored: overlapping windows are merged
// by clustering and filtered by QThreshold instead.
func (f *Finder) Find(gray *image.Gray, params facecrop.CascadeParams) ([]image.Rectangle, error) {
	cols, rows := gray.Bounds().Dx(), gray.Bounds().Dy()
	minSize := utils.Max(params.MinSize, 1)
	maxSize := utils.Min(cols, rows)
	if minSize > maxSize {
		return nil, nil
	}

	cParams := core.CascadeParams{
		MinSize:     minSize,
		MaxSize:     maxSize,
		ShiftFactor: f.ShiftFactor,
		ScaleFactor: scaleFactor(params.ScaleFactor, minSize),
		ImageParams: core.ImageParams{
			Pixels: packPixels(gray),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	// Run the classifier over the obtained leaf nodes and return the detection results.
	// The result contains quadruplets representing the row, column, scale and detection score.
	dets := f.classifier.RunCascade(cParams, f.Angle)

	// Calculate the intersection over union (IoU) of two clusters.
	dets = f.classifier.ClusterDetections(dets, f.IoUThreshold)

	faces := make([]image.Rectangle, 0, len(dets))
	for _, det := range dets {
		if det.Q < f.QThreshold {
			continue
		}
		faces = append(faces, image.Rect(
			det.Col-det.Scale/2,
			det.Row-det.Scale/2,
			det.Col+det.Scale/2,
			det.Row+det.Scale/2,
		))
	}
	return faces, nil
}

// scaleFactor makes sure the window grows by at least one pixel per step,
// otherwise the pigo scale loop never reaches the maximum size.
func scaleFactor(factor float64, minSize int) float64 {
	return utils.Max(factor, 1+1.5/float64(minSize))
}

// packPixels returns the pixel rows of gray without stride padding.
func packPixels(gray *image.Gray) []uint8 {
	cols, rows := gray.Bounds().Dx(), gray.Bounds().Dy()
	if gray.Stride == cols && gray.Rect.Min == (image.Point{}) {
		return gray.Pix[:cols*rows]
	}

	pixels := make([]uint8, 0, cols*rows)
	for y := gray.Rect.Min.Y; y < gray.Rect.Max.Y; y++ {
		i := gray.PixOffset(gray.Rect.Min.X, y)
		pixels = append(pixels, gray.Pix[i:i+cols]...)
	}
	return pixels
}
