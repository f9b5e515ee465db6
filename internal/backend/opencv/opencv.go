//go:build gocv
// +build gocv

package opencv

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/facecrop/facecrop"
	"gocv.io/x/gocv"
)

// Available reports whether the OpenCV strategies are compiled in.
const Available = true

// cascadeScaleImage is CASCADE_SCALE_IMAGE of the OpenCV object detection module.
const cascadeScaleImage = 2

// Backend owns the OpenCV handles. gocv handles are not safe for concurrent
// use, so every call into them is serialized by the finder owning it.
type Backend struct {
	net     *netFinder
	frontal *cascadeFinder
	profile *cascadeFinder
}

// Open loads every model whose path is set. It fails if a configured model
// cannot be loaded or if nothing is configured at all.
func Open(p Paths) (*Backend, error) {
	b := &Backend{}

	var err error
	if p.DNNModel != "" {
		if b.net, err = loadNet(p.DNNModel, p.DNNConfig); err != nil {
			return nil, err
		}
	}
	if p.FrontalCascade != "" {
		if b.frontal, err = loadCascade(p.FrontalCascade); err != nil {
			b.Close()
			return nil, err
		}
	}
	if p.ProfileCascade != "" {
		if b.profile, err = loadCascade(p.ProfileCascade); err != nil {
			b.Close()
			return nil, err
		}
	}

	if b.net == nil && b.frontal == nil && b.profile == nil {
		return nil, errors.New("no OpenCV model configured")
	}
	return b, nil
}

// Models exposes the loaded strategies to the detector.
func (b *Backend) Models() facecrop.Models {
	var m facecrop.Models
	// Only assign loaded handles, a nil pointer in an interface is not a nil interface.
	if b.net != nil {
		m.Primary = b.net
	}
	if b.frontal != nil {
		m.Frontal = b.frontal
	}
	if b.profile != nil {
		m.Profile = b.profile
	}
	return m
}

// Close releases the OpenCV handles.
func (b *Backend) Close() error {
	var errs []error
	if b.net != nil {
		errs = append(errs, b.net.close())
	}
	if b.frontal != nil {
		errs = append(errs, b.frontal.close())
	}
	if b.profile != nil {
		errs = append(errs, b.profile.close())
	}
	return errors.Join(errs...)
}

// netFinder runs the res10 SSD face model.
type netFinder struct {
	mu  sync.Mutex
	net gocv.Net
}

// loadNet reads the face model. The handle is released when it is empty.
func loadNet(model, config string) (*netFinder, error) {
	net := gocv.ReadNet(model, config)
	if net.Empty() {
		net.Close()
		return nil, fmt.Errorf("could not load the face model %s", model)
	}
	return &netFinder{net: net}, nil
}

func (f *netFinder) Find(img image.Image, minConfidence float32) ([]facecrop.Candidate, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("could not convert the image: %w", err)
	}
	defer mat.Close()

	cols, rows := float32(mat.Cols()), float32(mat.Rows())

	// The model was trained on 300x300 BGR images with the mean subtracted.
	blob := gocv.BlobFromImage(mat, 1.0, image.Pt(300, 300), gocv.NewScalar(104, 177, 123, 0), false, false)
	defer blob.Close()

	f.mu.Lock()
	f.net.SetInput(blob, "")
	prob := f.net.Forward("")
	f.mu.Unlock()
	defer prob.Close()

	// The output is a 1x1xNx7 blob: image id, label, confidence and the
	// relative box corners.
	var candidates []facecrop.Candidate
	for i := 0; i+6 < int(prob.Total()); i += 7 {
		confidence := prob.GetFloatAt(0, i+2)
		if confidence < minConfidence {
			continue
		}
		left := int(prob.GetFloatAt(0, i+3) * cols)
		top := int(prob.GetFloatAt(0, i+4) * rows)
		right := int(prob.GetFloatAt(0, i+5) * cols)
		bottom := int(prob.GetFloatAt(0, i+6) * rows)

		candidates = append(candidates, facecrop.Candidate{
			Box:   image.Rect(left, top, right, bottom),
			Score: confidence,
		})
	}
	return candidates, nil
}

func (f *netFinder) close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.net.Close()
}

// cascadeFinder runs a Haar cascade classifier.
type cascadeFinder struct {
	mu  sync.Mutex
	cls gocv.CascadeClassifier
}

func loadCascade(path string) (*cascadeFinder, error) {
	cls := gocv.NewCascadeClassifier()
	if !cls.Load(path) {
		cls.Close()
		return nil, fmt.Errorf("could not load the cascade classifier %s", path)
	}
	return &cascadeFinder{cls: cls}, nil
}

func (f *cascadeFinder) Find(gray *image.Gray, params facecrop.CascadeParams) ([]image.Rectangle, error) {
	mat, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return nil, fmt.Errorf("could not convert the image: %w", err)
	}
	defer mat.Close()

	minSize := image.Pt(params.MinSize, params.MinSize)

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cls.DetectMultiScaleWithParams(
		mat, params.ScaleFactor, params.MinNeighbors, cascadeScaleImage, minSize, image.Point{},
	), nil
}

func (f *cascadeFinder) close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cls.Close()
}
