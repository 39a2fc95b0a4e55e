package adjust

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/lehigh-university-libraries/scanstudy/internal/models"
)

const (
	MinScale = 0.5
	MaxScale = 2.0
)

// ErrNoImage is returned once the adjuster has been cancelled or was never given an image
var ErrNoImage = errors.New("no image to adjust")

// Adjuster owns the rotate/scale state for a single captured image
type Adjuster struct {
	mu     sync.Mutex
	source *models.CapturedImage
	state  models.AdjustmentState
}

func New(img *models.CapturedImage) *Adjuster {
	return &Adjuster{
		source: img,
		state:  models.DefaultAdjustment,
	}
}

// Rotate advances the rotation by a quarter turn clockwise
func (a *Adjuster) Rotate() (models.AdjustmentState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.source == nil {
		return models.AdjustmentState{}, ErrNoImage
	}
	a.state.RotationDegrees = (a.state.RotationDegrees + 90) % 360
	return a.state, nil
}

// SetScale stores s clamped to [MinScale, MaxScale]
func (a *Adjuster) SetScale(s float64) (models.AdjustmentState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.source == nil {
		return models.AdjustmentState{}, ErrNoImage
	}
	a.state.Scale = ClampScale(s)
	return a.state, nil
}

func (a *Adjuster) Reset() (models.AdjustmentState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.source == nil {
		return models.AdjustmentState{}, ErrNoImage
	}
	a.state = models.DefaultAdjustment
	return a.state, nil
}

func (a *Adjuster) State() models.AdjustmentState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Source returns the image being adjusted, or nil after Cancel
func (a *Adjuster) Source() *models.CapturedImage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.source
}

// Preview renders the source with the current adjustments
func (a *Adjuster) Preview() (*image.RGBA, error) {
	src, state, err := a.snapshot()
	if err != nil {
		return nil, err
	}
	return Render(src.Image, state), nil
}

// Finalize renders the current state and encodes it as PNG for recognition
func (a *Adjuster) Finalize() (*models.FinalizedImage, error) {
	src, state, err := a.snapshot()
	if err != nil {
		return nil, err
	}

	canvas := Render(src.Image, state)
	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("failed to encode adjusted image: %w", err)
	}

	return &models.FinalizedImage{
		Data:      buf.Bytes(),
		MediaType: "image/png",
		Width:     canvas.Bounds().Dx(),
		Height:    canvas.Bounds().Dy(),
	}, nil
}

// Cancel drops the source image and any pending adjustments
func (a *Adjuster) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.source = nil
	a.state = models.DefaultAdjustment
}

func (a *Adjuster) snapshot() (*models.CapturedImage, models.AdjustmentState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.source == nil || a.source.Image == nil {
		return nil, models.AdjustmentState{}, ErrNoImage
	}
	return a.source, a.state, nil
}

// ClampScale bounds s to [MinScale, MaxScale]. NaN maps to 1.
func ClampScale(s float64) float64 {
	switch {
	case math.IsNaN(s):
		return 1.0
	case s < MinScale:
		return MinScale
	case s > MaxScale:
		return MaxScale
	}
	return s
}

// NormalizeRotation folds any multiple of 90 into [0, 360); other values round to the nearest quarter turn
func NormalizeRotation(deg int) int {
	q := int(math.Round(float64(deg) / 90))
	q %= 4
	if q < 0 {
		q += 4
	}
	return q * 90
}

// Render draws img onto a white canvas rotated about its centre and scaled.
// The canvas keeps the source size, with width and height swapped on
// quarter and three-quarter turns. Output depends only on img and state.
func Render(img image.Image, state models.AdjustmentState) *image.RGBA {
	sb := img.Bounds()
	w, h := sb.Dx(), sb.Dy()

	rotation := NormalizeRotation(state.RotationDegrees)
	scale := ClampScale(state.Scale)

	cw, ch := w, h
	if rotation == 90 || rotation == 270 {
		cw, ch = h, w
	}

	dst := image.NewRGBA(image.Rect(0, 0, cw, ch))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)

	cos, sin := quarterTurn(rotation)

	// translate(canvas centre) * rotate * scale * translate(-image centre)
	hw, hh := float64(w)/2, float64(h)/2
	hcw, hch := float64(cw)/2, float64(ch)/2
	m := f64.Aff3{
		scale * cos, -scale * sin, hcw - scale*(cos*(hw+float64(sb.Min.X))-sin*(hh+float64(sb.Min.Y))),
		scale * sin, scale * cos, hch - scale*(sin*(hw+float64(sb.Min.X))+cos*(hh+float64(sb.Min.Y))),
	}

	var interp draw.Interpolator = draw.CatmullRom
	if scale == 1 {
		interp = draw.NearestNeighbor
	}
	interp.Transform(dst, m, img, sb, draw.Over, nil)
	return dst
}

func quarterTurn(deg int) (cos, sin float64) {
	switch deg {
	case 90:
		return 0, 1
	case 180:
		return -1, 0
	case 270:
		return 0, -1
	default:
		return 1, 0
	}
}
