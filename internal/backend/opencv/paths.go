// Package opencv provides the OpenCV strategies of the face detector: the
// res10 SSD face model run through the DNN module, and the frontal and
// profile Haar cascades. The real implementation needs the gocv build tag
// and a local OpenCV installation.
package opencv

import "errors"

// ErrNotSupported is returned by Open when the binary has been built without OpenCV.
var ErrNotSupported = errors.New("gocv build tag is not enabled")

// Paths locates the model files on disk. Empty paths disable their stage.
type Paths struct {
	// DNNModel is the res10_300x300_ssd_iter_140000 caffe model.
	DNNModel string
	// DNNConfig is the deploy.prototxt of the caffe model.
	DNNConfig string
	// FrontalCascade is haarcascade_frontalface_default.xml.
	FrontalCascade string
	// ProfileCascade is haarcascade_profileface.xml.
	ProfileCascade string
}
