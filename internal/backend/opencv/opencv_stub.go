//go:build !gocv
// +build !gocv

package opencv

import "github.com/facecrop/facecrop"

// Available reports whether the OpenCV strategies are compiled in.
const Available = false

// Backend is a placeholder for builds without OpenCV.
type Backend struct{}

// Open returns ErrNotSupported, since the build has no OpenCV support.
func Open(p Paths) (*Backend, error) {
	_ = p
	return nil, ErrNotSupported
}

// Models returns no strategy.
func (b *Backend) Models() facecrop.Models {
	return facecrop.Models{}
}

// Close is a no-op.
func (b *Backend) Close() error {
	return nil
}
