package facecrop

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// batchDir creates a source tree with two valid images, a corrupt one and
// a file which is not picked up.
func batchDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	require.NoError(t, imaging.Save(portrait(100, 100), filepath.Join(dir, "a.png")))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0755))
	require.NoError(t, imaging.Save(portrait(120, 100), filepath.Join(dir, "nested", "b.JPG")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.png"), []byte("corrupt"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0644))
	return dir
}

func TestExecute_Directory(t *testing.T) {
	src := batchDir(t)
	dst := filepath.Join(t.TempDir(), "out")

	var results []Result
	op := &Ops{
		Src:      src,
		Dst:      dst,
		Workers:  4,
		OnResult: func(res Result) { results = append(results, res) },
	}
	summary, err := newTestProcessor(false).Execute(context.Background(), op)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Succeeded)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, filepath.Join(src, "bad.png"), summary.Failed[0].Path)
	assert.Len(t, results, 3)
	assert.Equal(t, "Processing complete: 2/3 images successfully processed", summary.String())

	assert.FileExists(t, filepath.Join(dst, "a_cropped.png"))
	assert.FileExists(t, filepath.Join(dst, "nested", "b_cropped.png"))
	assert.NoFileExists(t, filepath.Join(dst, "bad_cropped.png"))
	assert.NoFileExists(t, filepath.Join(dst, "notes_cropped.png"))
}

func TestExecute_DestinationInsideSource(t *testing.T) {
	src := batchDir(t)
	op := &Ops{Src: src, Dst: filepath.Join(src, "out")}
	proc := newTestProcessor(false)

	for i := 0; i < 2; i++ {
		summary, err := proc.Execute(context.Background(), op)
		require.NoError(t, err)
		// Previous outputs are never processed again.
		assert.Equal(t, 3, summary.Total)
	}
}

func TestExecute_DirectoryNeedsDestination(t *testing.T) {
	_, err := newTestProcessor(false).Execute(context.Background(), &Ops{Src: batchDir(t)})
	assert.Error(t, err)
}

func TestExecute_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	op := &Ops{Src: batchDir(t), Dst: t.TempDir()}
	_, err := newTestProcessor(false).Execute(ctx, op)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecute_File(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "portrait.png")
	require.NoError(t, imaging.Save(portrait(100, 100), src))
	proc := newTestProcessor(false)

	// Next to the source by default.
	summary, err := proc.Execute(context.Background(), &Ops{Src: src})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.FileExists(t, filepath.Join(dir, "portrait_cropped.png"))

	// Inside an existing directory.
	out := t.TempDir()
	_, err = proc.Execute(context.Background(), &Ops{Src: src, Dst: out})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(out, "portrait_cropped.png"))

	// An explicit file name.
	custom := filepath.Join(out, "face.PNG")
	_, err = proc.Execute(context.Background(), &Ops{Src: src, Dst: custom})
	require.NoError(t, err)
	img, err := imaging.Open(custom)
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())

	// The output is always PNG encoded.
	_, err = proc.Execute(context.Background(), &Ops{Src: src, Dst: filepath.Join(out, "face.jpg")})
	assert.Error(t, err)
}

func TestExecute_FileNoFace(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "empty.png")
	require.NoError(t, imaging.Save(portrait(100, 100), src))

	proc := &Processor{Detector: NewDetector(Models{})}
	summary, err := proc.Execute(context.Background(), &Ops{Src: src})
	require.NoError(t, err)
	require.Len(t, summary.Failed, 1)
	assert.ErrorIs(t, summary.Failed[0].Err, ErrNoFaceDetected)
	// No output is left behind.
	assert.NoFileExists(t, filepath.Join(dir, "empty_cropped.png"))
}

func TestExecute_MissingSource(t *testing.T) {
	_, err := newTestProcessor(false).Execute(context.Background(), &Ops{Src: filepath.Join(t.TempDir(), "missing.png")})
	assert.Error(t, err)
}

func TestExecute_URL(t *testing.T) {
	data := encodePNG(t, portrait(100, 100))
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	}))
	defer ts.Close()

	dst := filepath.Join(t.TempDir(), "remote.png")
	summary, err := newTestProcessor(false).Execute(context.Background(), &Ops{Src: ts.URL + "/images/remote.png", Dst: dst})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.FileExists(t, dst)
}

func TestURLStem(t *testing.T) {
	assert.Equal(t, "face", urlStem("https://example.com/img/face.jpg?size=large"))
	assert.Equal(t, "download", urlStem("https://example.com/"))
}

func TestIsValidExtension(t *testing.T) {
	assert.True(t, isValidExtension(".JPEG", validExtensions))
	assert.True(t, isValidExtension(".webp", validExtensions))
	assert.False(t, isValidExtension(".txt", validExtensions))
	assert.False(t, isValidExtension("", validExtensions))
}

func TestExecute_KeepsOps(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "portrait.png")
	require.NoError(t, imaging.Save(portrait(100, 100), src))

	op := &Ops{Src: src}
	_, err := newTestProcessor(false).Execute(context.Background(), op)
	require.NoError(t, err)
	assert.Equal(t, &Ops{Src: src}, op)
}

func TestExecute_UnreadableSubdirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}
	src := batchDir(t)
	locked := filepath.Join(src, "locked")
	require.NoError(t, os.MkdirAll(locked, 0755))
	require.NoError(t, imaging.Save(portrait(100, 100), filepath.Join(locked, "c.png")))
	require.NoError(t, os.Chmod(locked, 0))
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	dst := filepath.Join(t.TempDir(), "out")
	summary, err := newTestProcessor(false).Execute(context.Background(), &Ops{Src: src, Dst: dst})
	require.NoError(t, err)

	// The rest of the tree is still processed.
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 2, summary.Succeeded)
	assert.FileExists(t, filepath.Join(dst, "a_cropped.png"))
	assert.FileExists(t, filepath.Join(dst, "nested", "b_cropped.png"))

	var paths []string
	for _, item := range summary.Failed {
		paths = append(paths, item.Path)
	}
	assert.ElementsMatch(t, []string{filepath.Join(src, "bad.png"), locked}, paths)
}

func TestWalkDir_UnreadableEntry(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.png"), nil, 0644))
	locked := filepath.Join(src, "b")
	require.NoError(t, os.Mkdir(locked, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(locked, "c.png"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "d.jpg"), nil, 0644))
	require.NoError(t, os.Chmod(locked, 0))
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	paths, errc := walkDir(context.Background(), src, filepath.Join(src, "out"), validExtensions)

	var found, failed []string
	for entry := range paths {
		if entry.err != nil {
			failed = append(failed, entry.path)
			continue
		}
		found = append(found, entry.path)
	}
	require.NoError(t, <-errc)
	assert.Equal(t, []string{filepath.Join(src, "a.png"), filepath.Join(src, "d.jpg")}, found)
	assert.Equal(t, []string{locked}, failed)
}
