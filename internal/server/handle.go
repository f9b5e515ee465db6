package server

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/facecrop/facecrop"
	"github.com/facecrop/facecrop/utils"
	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo/v4"
)

const zipName = "processed_images.zip"

var acceptedTypes = []string{"image/png", "image/jpeg", "image/webp"}

// cropResult is the outcome of one uploaded file.
type cropResult struct {
	Name       string `json:"name"`
	OK         bool   `json:"ok"`
	OutputName string `json:"output_name,omitempty"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`

	png []byte
}

type cropResponse struct {
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Results   []cropResult `json:"results"`
}

func (s *Server) crop(c echo.Context) error {
	results, err := s.processUpload(c)
	if err != nil {
		return err
	}

	resp := cropResponse{Total: len(results), Results: results}
	for i := range resp.Results {
		if resp.Results[i].OK {
			resp.Succeeded++
			resp.Results[i].Output = base64.StdEncoding.EncodeToString(resp.Results[i].png)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) cropZip(c echo.Context) error {
	results, err := s.processUpload(c)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	succeeded := 0
	for _, res := range results {
		if !res.OK {
			continue
		}
		w, err := zw.Create(res.OutputName)
		if err != nil {
			return fmt.Errorf("could not create the zip entry: %w", err)
		}
		if _, err := w.Write(res.png); err != nil {
			return fmt.Errorf("could not write the zip entry: %w", err)
		}
		succeeded++
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("could not close the zip archive: %w", err)
	}

	if succeeded == 0 {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"message": "no face detected in any of the uploaded images",
			"results": results,
		})
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", zipName))
	return c.Blob(http.StatusOK, "application/zip", buf.Bytes())
}

// processUpload crops every uploaded file. Errors of a single file are
// reported in its result; only a malformed request is an error.
func (s *Server) processUpload(c echo.Context) ([]cropResult, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "expected a multipart form upload").SetInternal(err)
	}

	var files []*multipart.FileHeader
	files = append(files, form.File["files[]"]...)
	files = append(files, form.File["files"]...)
	if len(files) == 0 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "no file uploaded")
	}

	mode := facecrop.ModeNormal
	if formBool(form, "strict") {
		mode = facecrop.ModeStrict
	}
	proc := &facecrop.Processor{
		Detector: s.detector,
		Mode:     mode,
		Circular: formBool(form, "circular"),
		Logger:   s.log,
	}

	results := make([]cropResult, 0, len(files))
	for _, fh := range files {
		res := cropResult{Name: fh.Filename}

		png, err := s.cropFile(proc, fh)
		switch {
		case err == nil:
			res.OK = true
			res.OutputName = "processed_" + stem(fh.Filename) + ".png"
			res.png = png
		case errors.Is(err, facecrop.ErrNoFaceDetected):
			res.Error = fmt.Sprintf("No face detected in %s. Try disabling strict mode or uploading a different image.", fh.Filename)
		default:
			res.Error = err.Error()
		}

		s.log.Debug().
			Str("file", fh.Filename).
			Bool("ok", res.OK).
			Str("mode", mode.String()).
			Msg("upload processed")
		results = append(results, res)
	}
	return results, nil
}

func (s *Server) cropFile(proc *facecrop.Processor, fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("could not read the upload: %w", err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("could not read the upload: %w", err)
	}

	mtype := mimetype.Detect(content)
	if !utils.Contains(acceptedTypes, mtype.String()) {
		return nil, fmt.Errorf("unsupported file type %s", mtype.String())
	}

	var out bytes.Buffer
	if err := proc.Process(bytes.NewReader(content), &out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// formBool reads a checkbox like form value.
func formBool(form *multipart.Form, key string) bool {
	values := form.Value[key]
	if len(values) == 0 {
		return false
	}
	v := strings.TrimSpace(values[0])
	if strings.EqualFold(v, "on") {
		return true
	}
	b, _ := strconv.ParseBool(v)
	return b
}

func stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
