package facecrop

import (
	"image"

	"github.com/rs/zerolog"
)

// Default detection thresholds.
const (
	// DefaultModelConfidence is passed to the primary model so that it keeps
	// almost every candidate. The detector re-filters them itself.
	DefaultModelConfidence float32 = 0.05
	// DefaultNormalAcceptance is the minimum primary score in normal mode.
	DefaultNormalAcceptance float32 = 0.1
	// DefaultStrictAcceptance is the minimum primary score in strict mode.
	DefaultStrictAcceptance float32 = 0.5
)

var (
	defaultFrontalScales = []float64{1.02, 1.05, 1.08}

	frontalParams = CascadeParams{MinNeighbors: 3, MinSize: 30}
	profileParams = CascadeParams{ScaleFactor: 1.05, MinNeighbors: 2, MinSize: 30}
)

// Detector locates at most one face per image using an ordered chain of
// strategies. It holds only read-only model handles and is safe for
// concurrent use as long as its models are.
type Detector struct {
	models           Models
	modelConfidence  float32
	normalAcceptance float32
	strictAcceptance float32
	frontalScales    []float64
	stages           []stage
	log              zerolog.Logger
}

// stage is one strategy of the fallback chain.
type stage struct {
	name   string
	strict bool // allowed in strict mode
	run    func(*detection) (image.Rectangle, bool)
}

// detection carries the per-call state shared between stages.
type detection struct {
	img      *image.NRGBA
	mode     Mode
	gray     *image.Gray
	mirrored *image.Gray
}

// equalized returns the equalized grayscale image, computing it on first use.
func (s *detection) equalized() *image.Gray {
	if s.gray == nil {
		s.gray = equalizeHist(grayscale(s.img))
	}
	return s.gray
}

func (s *detection) flipped() *image.Gray {
	if s.mirrored == nil {
		s.mirrored = mirror(s.equalized())
	}
	return s.mirrored
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the logger used to trace the detection stages.
func WithLogger(log zerolog.Logger) Option {
	return func(d *Detector) {
		d.log = log
	}
}

// WithAcceptance overrides the primary model acceptance thresholds.
// Values where strict is below normal are rejected, keeping strict mode a
// subset of normal mode.
func WithAcceptance(normal, strict float32) Option {
	return func(d *Detector) {
		d.normalAcceptance = normal
		d.strictAcceptance = strict
	}
}

// WithModelConfidence sets the confidence handed to the primary model.
func WithModelConfidence(c float32) Option {
	return func(d *Detector) {
		d.modelConfidence = c
	}
}

// WithFrontalScales sets the ascending scale factors tried by the frontal cascade.
func WithFrontalScales(scales ...float64) Option {
	return func(d *Detector) {
		if len(scales) > 0 {
			d.frontalScales = append([]float64(nil), scales...)
		}
	}
}

// NewDetector builds a detector over the given models.
func NewDetector(models Models, opts ...Option) *Detector {
	d := &Detector{
		models:           models,
		modelConfidence:  DefaultModelConfidence,
		normalAcceptance: DefaultNormalAcceptance,
		strictAcceptance: DefaultStrictAcceptance,
		frontalScales:    defaultFrontalScales,
		log:              zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.strictAcceptance < d.normalAcceptance {
		d.log.Warn().
			Float32("normal", d.normalAcceptance).
			Float32("strict", d.strictAcceptance).
			Msg("strict acceptance below normal acceptance, keeping defaults")
		d.normalAcceptance = DefaultNormalAcceptance
		d.strictAcceptance = DefaultStrictAcceptance
	}

	d.stages = []stage{
		{name: "primary", strict: true, run: d.primary},
		{name: "frontal", run: d.frontal},
		{name: "profile", run: d.profile},
	}

	missing := []bool{models.Primary == nil, models.Frontal == nil, models.Profile == nil}
	for i, s := range d.stages {
		if missing[i] {
			d.log.Info().Str("stage", s.name).Msg("no model configured, stage disabled")
		}
	}
	return d
}

// Locate returns the bounding box of the best face found in img, or false
// when no stage permitted by mode produced an acceptable detection.
func (d *Detector) Locate(img image.Image, mode Mode) (BoundingBox, bool) {
	src := toNRGBA(img)
	width, height := src.Bounds().Dx(), src.Bounds().Dy()
	if width == 0 || height == 0 {
		return BoundingBox{}, false
	}

	state := &detection{img: src, mode: mode}
	for _, s := range d.stages {
		if mode == ModeStrict && !s.strict {
			break
		}
		rect, ok := s.run(state)
		if !ok {
			continue
		}
		box, ok := boxFromRect(rect, width, height)
		if !ok {
			d.log.Debug().Str("stage", s.name).Msg("detection outside of the image, ignored")
			continue
		}
		d.log.Debug().
			Str("stage", s.name).
			Str("mode", mode.String()).
			Stringer("box", box).
			Msg("face located")
		return box, true
	}

	d.log.Debug().Str("mode", mode.String()).Msg("no face detected")
	return BoundingBox{}, false
}

func (d *Detector) acceptance(mode Mode) float32 {
	if mode == ModeStrict {
		return d.strictAcceptance
	}
	return d.normalAcceptance
}

// primary runs the scoring model on the color image and keeps the best
// candidate if it clears the acceptance threshold of the mode.
func (d *Detector) primary(s *detection) (image.Rectangle, bool) {
	if d.models.Primary == nil {
		return image.Rectangle{}, false
	}
	candidates, err := d.models.Primary.Find(s.img, d.modelConfidence)
	if err != nil {
		d.log.Warn().Err(err).Str("stage", "primary").Msg("model failed")
		return image.Rectangle{}, false
	}

	best, ok := bestByScore(candidates)
	if !ok {
		return image.Rectangle{}, false
	}
	threshold := d.acceptance(s.mode)
	if !(best.Score > threshold) {
		d.log.Debug().
			Float32("score", best.Score).
			Float32("threshold", threshold).
			Msg("primary candidate rejected")
		return image.Rectangle{}, false
	}
	return best.Box, true
}

// frontal tries the frontal cascade with increasingly coarse scales and stops
// at the first scale that finds anything.
func (d *Detector) frontal(s *detection) (image.Rectangle, bool) {
	if d.models.Frontal == nil {
		return image.Rectangle{}, false
	}
	gray := s.equalized()

	for _, scale := range d.frontalScales {
		params := frontalParams
		params.ScaleFactor = scale

		faces, err := d.models.Frontal.Find(gray, params)
		if err != nil {
			d.log.Warn().Err(err).Str("stage", "frontal").Float64("scale", scale).Msg("cascade failed")
			continue
		}
		if face, ok := largestByArea(faces); ok {
			return face, true
		}
	}
	return image.Rectangle{}, false
}

// profile runs the profile cascade on the equalized image and then on its
// mirror, mapping a mirrored hit back to the original frame.
func (d *Detector) profile(s *detection) (image.Rectangle, bool) {
	if d.models.Profile == nil {
		return image.Rectangle{}, false
	}
	width := s.equalized().Bounds().Dx()

	for _, isFlipped := range []bool{false, true} {
		gray := s.equalized()
		if isFlipped {
			gray = s.flipped()
		}

		faces, err := d.models.Profile.Find(gray, profileParams)
		if err != nil {
			d.log.Warn().Err(err).Str("stage", "profile").Bool("flipped", isFlipped).Msg("cascade failed")
			continue
		}
		if len(faces) == 0 {
			continue
		}
		face := faces[0].Canon()
		if isFlipped {
			face = reflectX(face, width)
		}
		return face, true
	}
	return image.Rectangle{}, false
}

// bestByScore returns the candidate with the highest score.
func bestByScore(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	return best, true
}

// largestByArea returns the rectangle with the largest area. The first one
// wins on ties.
func largestByArea(faces []image.Rectangle) (image.Rectangle, bool) {
	if len(faces) == 0 {
		return image.Rectangle{}, false
	}
	best := faces[0].Canon()
	for _, f := range faces[1:] {
		f = f.Canon()
		if f.Dx()*f.Dy() > best.Dx()*best.Dy() {
			best = f
		}
	}
	return best, true
}

// reflectX maps a rectangle found in a horizontally mirrored image of the
// given width back into the unmirrored frame.
func reflectX(r image.Rectangle, width int) image.Rectangle {
	x := width - r.Min.X - r.Dx()
	return image.Rect(x, r.Min.Y, x+r.Dx(), r.Max.Y)
}
