package facecrop

import (
	"fmt"
	"image"
	"strings"
)

// Mode selects which detection stages may produce a result.
type Mode int

const (
	// ModeNormal runs the whole fallback chain.
	ModeNormal Mode = iota
	// ModeStrict only accepts confident detections of the primary model.
	ModeStrict
)

var modeNames = map[Mode]string{
	ModeNormal: "normal",
	ModeStrict: "strict",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode converts a mode name (case-insensitive) into a Mode.
func ParseMode(s string) (Mode, error) {
	for mode, name := range modeNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return mode, nil
		}
	}
	return ModeNormal, fmt.Errorf("unknown detection mode %q", s)
}

// BoundingBox is a detected face in pixel coordinates relative to the
// top-left corner of the source image.
type BoundingBox struct {
	X int
	Y int
	W int
	H int
}

// Center returns the integer center of the box.
func (b BoundingBox) Center() (x, y int) {
	return b.X + b.W/2, b.Y + b.H/2
}

// Area returns the box area in pixels.
func (b BoundingBox) Area() int {
	return b.W * b.H
}

// Rect returns the box as an image.Rectangle.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H)
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", b.X, b.Y, b.W, b.H)
}

// boxFromRect clips r to an image of the given size. It reports false when
// nothing of r lies inside the image.
func boxFromRect(r image.Rectangle, width, height int) (BoundingBox, bool) {
	r = r.Canon().Intersect(image.Rect(0, 0, width, height))
	if r.Empty() {
		return BoundingBox{}, false
	}
	return BoundingBox{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}, true
}

// CropRegion is the square sub-rectangle of the source image that is
// copied into the output.
type CropRegion struct {
	X1 int
	Y1 int
	X2 int
	Y2 int
}

// Size returns the edge length of the region.
func (c CropRegion) Size() int {
	return c.X2 - c.X1
}

// Rect returns the region as an image.Rectangle.
func (c CropRegion) Rect() image.Rectangle {
	return image.Rect(c.X1, c.Y1, c.X2, c.Y2)
}

// Candidate is a raw detection reported by a scoring model.
type Candidate struct {
	Box   image.Rectangle
	Score float32
}

// CascadeParams holds the sliding window settings of one cascade run.
type CascadeParams struct {
	ScaleFactor  float64
	MinNeighbors int
	MinSize      int
}

// ScoredFinder is a face model returning scored candidates for a color image.
// Candidates scoring below minConfidence may be dropped by the model itself.
type ScoredFinder interface {
	Find(img image.Image, minConfidence float32) ([]Candidate, error)
}

// CascadeFinder is a cascade classifier run over a grayscale image.
type CascadeFinder interface {
	Find(gray *image.Gray, params CascadeParams) ([]image.Rectangle, error)
}

// Models bundles the detector handles. A nil handle disables its stage.
type Models struct {
	Primary ScoredFinder
	Frontal CascadeFinder
	Profile CascadeFinder
}
