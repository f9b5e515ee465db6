package facecrop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/facecrop/facecrop/utils"
	"golang.org/x/term"
)

// maxWorkers sets the maximum number of concurrently running workers.
const maxWorkers = 20

// DefaultPipeName is the file name that indicates stdin/stdout is being used.
const DefaultPipeName = "-"

const outputSuffix = "_cropped"

// validExtensions lists the source files picked up from a directory.
var validExtensions = []string{".png", ".jpg", ".jpeg", ".webp", ".bmp", ".gif"}

// Ops describes a crop operation over a file, a directory, an URL or a pipe.
type Ops struct {
	Src, Dst, PipeName string
	Workers            int

	// OnResult, if set, is called once per processed image, always from
	// the goroutine running Execute.
	OnResult func(Result)
}

// Result is the outcome of processing a single image.
type Result struct {
	Src string
	Dst string
	Err error
}

// FailedItem is an image that could not be processed.
type FailedItem struct {
	Path string
	Err  error
}

// Summary counts the outcome of an Execute call.
type Summary struct {
	Total     int
	Succeeded int
	Failed    []FailedItem
}

func (s Summary) String() string {
	return fmt.Sprintf("Processing complete: %d/%d images successfully processed", s.Succeeded, s.Total)
}

func (s *Summary) add(res Result) {
	s.Total++
	if res.Err != nil {
		s.Failed = append(s.Failed, FailedItem{Path: res.Src, Err: res.Err})
		return
	}
	s.Succeeded++
}

// Execute crops the image or images described by op. The failure of one image
// of a directory never stops the others; it is reported in the summary.
// The returned error is reserved to failures of the operation itself, like
// an unreachable source, an invalid destination or a cancelled context.
func (p *Processor) Execute(ctx context.Context, op *Ops) (Summary, error) {
	var summary Summary

	if op.PipeName == "" {
		o := *op
		o.PipeName = DefaultPipeName
		op = &o
	}
	report := func(res Result) {
		summary.add(res)
		if op.OnResult != nil {
			op.OnResult(res)
		}
	}

	// Check if source path is a local image or URL.
	if utils.IsValidUrl(op.Src) {
		src, err := utils.DownloadImage(op.Src)
		if err != nil {
			return summary, fmt.Errorf("failed to load the source image: %w", err)
		}
		defer os.Remove(src.Name())
		defer src.Close()

		dst, err := op.fileDestination(urlStem(op.Src))
		if err != nil {
			return summary, err
		}
		report(Result{Src: op.Src, Dst: dst, Err: op.process(p, src, dst)})
		return summary, nil
	}

	// Check if the source is a pipe name or a regular file.
	if op.Src == op.PipeName {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return summary, errors.New("`-` should be used with a pipe for stdin")
		}
		dst, err := op.fileDestination("stdin")
		if err != nil {
			return summary, err
		}
		report(Result{Src: op.Src, Dst: dst, Err: op.process(p, os.Stdin, dst)})
		return summary, nil
	}

	fs, err := os.Stat(op.Src)
	if err != nil {
		return summary, fmt.Errorf("failed to load the source image: %w", err)
	}

	switch mode := fs.Mode(); {
	case mode.IsDir():
		if err := p.executeDir(ctx, op, report); err != nil {
			return summary, err
		}
	case mode.IsRegular() || mode&os.ModeNamedPipe != 0:
		dst, err := op.fileDestination(stem(op.Src))
		if err != nil {
			return summary, err
		}

		src, err := os.Open(op.Src)
		if err != nil {
			report(Result{Src: op.Src, Dst: dst, Err: fmt.Errorf("unable to open the source file: %w", err)})
			return summary, nil
		}
		defer src.Close()

		report(Result{Src: op.Src, Dst: dst, Err: op.process(p, src, dst)})
	default:
		return summary, fmt.Errorf("unsupported source file type: %s", op.Src)
	}
	return summary, nil
}

// executeDir processes recursively the image files of the source directory
// concurrently and reports each result.
func (p *Processor) executeDir(ctx context.Context, op *Ops, report func(Result)) error {
	if op.Dst == "" || op.Dst == op.PipeName {
		return errors.New("an output directory is required when processing a directory")
	}
	if err := os.MkdirAll(op.Dst, 0755); err != nil {
		return fmt.Errorf("unable to create the destination directory: %w", err)
	}

	workers := op.Workers
	// Limit the concurrently running workers to maxWorkers.
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = utils.Min(workers, maxWorkers)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan Result)
	paths, errc := walkDir(ctx, op.Src, op.Dst, validExtensions)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			op.consumer(ctx, p, ch, paths)
		}()
	}

	// Close the channel after the values are consumed.
	go func() {
		defer close(ch)
		wg.Wait()
	}()

	for res := range ch {
		report(res)
	}

	if err := <-errc; err != nil {
		return fmt.Errorf("directory walk failed: %w", err)
	}
	return ctx.Err()
}

// walkEntry is a file found by walkDir, or an entry it could not read.
type walkEntry struct {
	path string
	err  error
}

// consumer reads the entries from the paths channel and calls the
// processor against each source image.
func (op *Ops) consumer(ctx context.Context, p *Processor, res chan<- Result, paths <-chan walkEntry) {
	for entry := range paths {
		var dst string
		err := entry.err
		if err == nil {
			if dst, err = op.dirDestination(entry.path); err == nil {
				err = op.processFile(p, entry.path, dst)
			}
		}

		select {
		case <-ctx.Done():
			return
		case res <- Result{Src: entry.path, Dst: dst, Err: err}:
		}
	}
}

func (op *Ops) processFile(p *Processor, in, out string) error {
	src, err := os.Open(in)
	if err != nil {
		return fmt.Errorf("unable to open the source file: %w", err)
	}
	defer src.Close()

	return op.process(p, src, out)
}

// process crops the image read from src into the destination. A destination
// file is removed when the processing fails.
func (op *Ops) process(p *Processor, src io.Reader, out string) error {
	if out == op.PipeName {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return errors.New("`-` should be used with a pipe for stdout")
		}
		return p.Process(src, os.Stdout)
	}

	dst, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("unable to create the destination file: %w", err)
	}

	err = p.Process(src, dst)
	if cerr := dst.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("could not close the destination file: %w", cerr)
	}
	if err != nil {
		// remove the generated image file in case of an error
		os.Remove(out)
		return err
	}
	return nil
}

// fileDestination returns the output path of a single image named name.
// An empty destination means <name>_cropped.png in the working directory
// (or next to the source file), a directory receives that same file name.
func (op *Ops) fileDestination(name string) (string, error) {
	out := name + outputSuffix + ".png"
	switch {
	case op.Dst == op.PipeName:
		return op.Dst, nil
	case op.Dst == "":
		if op.Src != op.PipeName && !utils.IsValidUrl(op.Src) {
			return filepath.Join(filepath.Dir(op.Src), filepath.Base(out)), nil
		}
		return out, nil
	}

	if fi, err := os.Stat(op.Dst); err == nil && fi.IsDir() {
		return filepath.Join(op.Dst, filepath.Base(out)), nil
	}
	if ext := filepath.Ext(op.Dst); !strings.EqualFold(ext, ".png") {
		return "", fmt.Errorf("%q output type not supported, the cropped image is always PNG encoded", ext)
	}
	return op.Dst, nil
}

// dirDestination maps a source file of a directory walk into the destination
// directory, keeping its relative sub-directory.
func (op *Ops) dirDestination(src string) (string, error) {
	rel, err := filepath.Rel(op.Src, src)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(op.Dst, filepath.Dir(rel), stem(rel)+outputSuffix+".png")
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("unable to create the destination directory: %w", err)
	}
	return dst, nil
}

// stem returns the file base name without its extension.
func stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// urlStem returns the base name of the URL path without its extension.
func urlStem(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || path.Base(u.Path) == "/" || path.Base(u.Path) == "." {
		return "download"
	}
	base := path.Base(u.Path)
	return strings.TrimSuffix(base, path.Ext(base))
}

// walkDir starts a new goroutine to walk the specified directory tree
// in recursive manner and sends the path of each supported image file to a
// new channel. The destination tree is skipped, so that outputs written
// inside the source are never picked up again. An unreadable entry below
// the root is sent with its error and skipped; only a failure on the root
// stops the walk. It finishes when the context is cancelled.
func walkDir(
	ctx context.Context,
	src, skip string,
	srcExts []string,
) (<-chan walkEntry, <-chan error) {
	pathChan := make(chan walkEntry)
	errChan := make(chan error, 1)

	skipAbs, _ := filepath.Abs(skip)

	go func() {
		// Close the paths channel after Walk returns.
		defer close(pathChan)

		send := func(entry walkEntry) error {
			select {
			case <-ctx.Done():
				return filepath.SkipAll
			case pathChan <- entry:
			}
			return nil
		}

		errChan <- filepath.Walk(src, func(path string, f os.FileInfo, err error) error {
			if err != nil {
				if path == src {
					return err
				}
				if serr := send(walkEntry{path: path, err: fmt.Errorf("unable to read %s: %w", path, err)}); serr != nil {
					return serr
				}
				if f != nil && f.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if f.IsDir() {
				if abs, _ := filepath.Abs(path); path != src && abs == skipAbs {
					return filepath.SkipDir
				}
				return nil
			}
			if !f.Mode().IsRegular() || !isValidExtension(filepath.Ext(f.Name()), srcExts) {
				return nil
			}
			return send(walkEntry{path: path})
		})
	}()
	return pathChan, errChan
}

// isValidExtension checks for the supported extensions, ignoring the case.
func isValidExtension(ext string, extensions []string) bool {
	return utils.Contains(extensions, strings.ToLower(ext))
}
