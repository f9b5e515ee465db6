package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/facecrop/facecrop"
	"github.com/facecrop/facecrop/internal/backend"
	"github.com/facecrop/facecrop/internal/config"
	"github.com/facecrop/facecrop/internal/logger"
	"github.com/facecrop/facecrop/utils"
	"github.com/rs/zerolog"
)

const HelpBanner = `
┌─┐┌─┐┌─┐┌─┐┌─┐┬─┐┌─┐┌─┐
├┤ ├─┤│  ├┤ │  ├┬┘│ │├─┘
└  ┴ ┴└─┘└─┘└─┘┴└─└─┘┴

Face detection and portrait cropping tool.
    Version: %s

Usage: facecrop [flags] [input]

`

// Version indicates the current build version.
var Version string

var (
	// Flags
	source      = flag.String("in", "", "Source image, directory, URL or - for stdin (defaults to the first argument)")
	destination = flag.String("out", "", "Destination file or directory, - for stdout")
	circular    = flag.Bool("circular", false, "Apply a circular mask")
	strict      = flag.Bool("strict", false, "Only accept confident detections of the face model")
	backendName = flag.String("backend", "", "Detection backend: auto, opencv or pigo (overrides FACECROP_BACKEND)")
	modelDir    = flag.String("models", "", "Directory of the model files (overrides FACECROP_MODEL_DIR)")
	envFile     = flag.String("env", "", "Load the settings from this env file instead of .env")
	workers     = flag.Int("conc", runtime.NumCPU(), "Number of files to process concurrently")
	debug       = flag.Bool("debug", false, "Log the detection stages")
)

func main() {
	log.SetFlags(0)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, HelpBanner, Version)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *source == "" {
		*source = flag.Arg(0)
	}
	if *source == "" {
		flag.Usage()
		log.Fatal(utils.DecorateText("\nPlease provide an input image or directory!", utils.ErrorMessage))
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf(utils.DecorateText("Invalid configuration: %v", utils.ErrorMessage), err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal(utils.DecorateText(err.Error(), utils.ErrorMessage))
	}
	if *debug {
		level = zerolog.DebugLevel
	}
	logg := logger.New(os.Stderr, logger.Console, level)

	models, err := backend.Open(cfg, logg)
	if err != nil {
		log.Fatalf(utils.DecorateText("Unable to load the face detection models: %v", utils.ErrorMessage), err)
	}
	defer models.Close()
	logg.Debug().Str("backend", models.Name).Msg("models loaded")

	mode := facecrop.ModeNormal
	if *strict {
		mode = facecrop.ModeStrict
	}
	proc := &facecrop.Processor{
		Detector: facecrop.NewDetector(models.Models,
			facecrop.WithAcceptance(cfg.NormalAcceptance, cfg.StrictAcceptance),
			facecrop.WithLogger(logg),
		),
		Mode:     mode,
		Circular: *circular,
		Logger:   logg,
	}

	spinnerText := fmt.Sprintf("%s %s",
		utils.DecorateText("⚡ FACECROP", utils.StatusMessage),
		utils.DecorateText("is looking for faces...", utils.DefaultMessage))
	spinner := utils.NewSpinner(os.Stderr, spinnerText, time.Millisecond*100, true)

	// Capture CTRL-C signal and restore the cursor visibility back.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		spinner.RestoreCursor()
	}()

	op := &facecrop.Ops{
		Src:      *source,
		Dst:      *destination,
		PipeName: facecrop.DefaultPipeName,
		Workers:  *workers,
		OnResult: func(res facecrop.Result) {
			spinner.Stop()
			printStatus(res)
			spinner.Start()
		},
	}

	now := time.Now()
	spinner.Start()
	summary, err := proc.Execute(ctx, op)
	spinner.Stop()

	if err != nil {
		log.Fatalf(
			utils.DecorateText("\nError cropping the image: %s", utils.ErrorMessage),
			utils.DecorateText(fmt.Sprintf("\n\tReason: %v\n", err), utils.DefaultMessage),
		)
	}

	if summary.Total > 1 || len(summary.Failed) > 0 {
		fmt.Fprintf(os.Stderr, "\n%s\n", utils.DecorateText(summary.String(), utils.StatusMessage))
	}
	fmt.Fprintf(os.Stderr, "Execution time: %s\n", utils.DecorateText(utils.FormatTime(time.Since(now)), utils.SuccessMessage))

	if len(summary.Failed) > 0 {
		models.Close()
		os.Exit(1)
	}
}

// loadConfig reads the env settings and applies the command line overrides.
func loadConfig() (*config.Config, error) {
	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, err
	}
	if *backendName != "" {
		cfg.Backend = *backendName
	}
	if *modelDir != "" {
		cfg.ModelDir = *modelDir
	}
	return cfg, cfg.Validate()
}

// printStatus displays the relevant information about a processed image.
func printStatus(res facecrop.Result) {
	if res.Err != nil {
		reason := res.Err.Error()
		if errors.Is(res.Err, facecrop.ErrNoFaceDetected) && *strict {
			reason += ", try again without the -strict flag"
		}
		fmt.Fprintf(os.Stderr, "%s %s %s\n",
			utils.DecorateText("✘", utils.ErrorMessage),
			utils.DecorateText(filepath.Base(res.Src), utils.DefaultMessage),
			utils.DecorateText(reason, utils.ErrorMessage),
		)
		return
	}
	if res.Dst != facecrop.DefaultPipeName {
		fmt.Fprintf(os.Stderr, "%s %s ⇢ %s\n",
			utils.DecorateText("✔", utils.SuccessMessage),
			utils.DecorateText(filepath.Base(res.Src), utils.DefaultMessage),
			utils.DecorateText(res.Dst, utils.SuccessMessage),
		)
	}
}
