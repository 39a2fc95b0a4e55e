package workflow

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/lehigh-university-libraries/scanstudy/internal/adjust"
	"github.com/lehigh-university-libraries/scanstudy/internal/capture"
	"github.com/lehigh-university-libraries/scanstudy/internal/models"
	"github.com/lehigh-university-libraries/scanstudy/internal/study"
)

// Stage is the single capture stage of the workflow
type Stage string

const (
	StageIdle        Stage = "idle"
	StageCapturing   Stage = "capturing"
	StageAdjusting   Stage = "adjusting"
	StageRecognizing Stage = "recognizing"
)

// ErrStale is returned when the workflow moved on while an operation was running
var ErrStale = errors.New("workflow changed while the operation was running")

// StageError is returned when an operation is not allowed in the current stage
type StageError struct {
	Op    string
	Stage Stage
}

func (e *StageError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Op, e.Stage)
}

// Recognizer is satisfied by *ocr.Pipeline
type Recognizer interface {
	Recognize(ctx context.Context, img *models.FinalizedImage, language string, onProgress func(percent int)) (string, error)
}

// Workflow ties image capture, adjustment and recognition to a study session.
// Each stage transition bumps an epoch; results of operations started under
// an older epoch are discarded.
type Workflow struct {
	camera     *capture.Camera
	recognizer Recognizer
	session    *study.Session

	mu        sync.Mutex
	stage     Stage
	epoch     uint64
	adjuster  *adjust.Adjuster
	progress  *int
	cancelRec context.CancelFunc
}

// New returns an idle workflow. camera may be nil when no device is configured.
func New(camera *capture.Camera, recognizer Recognizer, session *study.Session) *Workflow {
	return &Workflow{
		camera:     camera,
		recognizer: recognizer,
		session:    session,
		stage:      StageIdle,
	}
}

func (w *Workflow) Session() *study.Session { return w.session }

func (w *Workflow) Stage() Stage {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stage
}

// transitionLocked moves to stage, aborting any running recognition
func (w *Workflow) transitionLocked(stage Stage) uint64 {
	w.epoch++
	if w.cancelRec != nil {
		w.cancelRec()
		w.cancelRec = nil
	}
	w.progress = nil
	w.stage = stage
	return w.epoch
}

// OpenCamera starts the camera, discarding whatever capture was in progress.
// When a camera is already open it is torn down first, so this also switches.
func (w *Workflow) OpenCamera(ctx context.Context, facing capture.Facing) error {
	if w.camera == nil {
		return &capture.DeviceError{Facing: facing, Err: errors.New("no camera configured")}
	}

	w.mu.Lock()
	epoch := w.transitionLocked(StageCapturing)
	w.discardAdjusterLocked()
	w.mu.Unlock()

	return w.startCamera(ctx, facing, epoch)
}

// SwitchCamera reopens the camera with another facing
func (w *Workflow) SwitchCamera(ctx context.Context, facing capture.Facing) error {
	w.mu.Lock()
	if w.stage != StageCapturing {
		stage := w.stage
		w.mu.Unlock()
		return &StageError{Op: "switch camera", Stage: stage}
	}
	epoch := w.epoch
	w.mu.Unlock()

	return w.startCamera(ctx, facing, epoch)
}

func (w *Workflow) startCamera(ctx context.Context, facing capture.Facing, epoch uint64) error {
	ticket, err := w.camera.Start(ctx, facing)

	w.mu.Lock()
	if w.epoch != epoch {
		w.mu.Unlock()
		if err == nil {
			w.camera.Release(ticket)
		}
		return ErrStale
	}
	if err != nil {
		w.transitionLocked(StageIdle)
		w.mu.Unlock()
		if errors.Is(err, capture.ErrCancelled) {
			return ErrStale
		}
		return err
	}
	w.mu.Unlock()
	return nil
}

// CaptureFromCamera takes a still, releases the camera and starts adjusting it
func (w *Workflow) CaptureFromCamera(ctx context.Context) (*models.CapturedImage, error) {
	w.mu.Lock()
	if w.stage != StageCapturing {
		stage := w.stage
		w.mu.Unlock()
		return nil, &StageError{Op: "capture", Stage: stage}
	}
	epoch := w.epoch
	w.mu.Unlock()

	img, err := w.camera.Capture(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.epoch != epoch {
		return nil, ErrStale
	}
	if err != nil {
		w.transitionLocked(StageIdle)
		if errors.Is(err, capture.ErrCancelled) {
			return nil, ErrStale
		}
		return nil, err
	}
	w.beginAdjustingLocked(img)
	return img, nil
}

// LoadFile captures an uploaded image and starts adjusting it
func (w *Workflow) LoadFile(name, mediaType string, data []byte) (*models.CapturedImage, error) {
	img, err := capture.FromFile(name, mediaType, data)
	if err != nil {
		return nil, err
	}
	return w.LoadImage(img)
}

// LoadImage starts adjusting an image that was already decoded
func (w *Workflow) LoadImage(img *models.CapturedImage) (*models.CapturedImage, error) {
	if img == nil || img.Image == nil {
		return nil, &capture.InvalidInputError{Reason: "no image data"}
	}
	w.releaseCamera()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.beginAdjustingLocked(img)
	return img, nil
}

func (w *Workflow) beginAdjustingLocked(img *models.CapturedImage) {
	w.transitionLocked(StageAdjusting)
	w.discardAdjusterLocked()
	w.adjuster = adjust.New(img)
	w.session.Clear()
	slog.Info("Image captured", "source", img.Source, "width", img.Width, "height", img.Height)
}

func (w *Workflow) discardAdjusterLocked() {
	if w.adjuster != nil {
		w.adjuster.Cancel()
		w.adjuster = nil
	}
}

func (w *Workflow) releaseCamera() {
	if w.camera != nil {
		w.camera.Cancel()
	}
}

func (w *Workflow) adjusting(op string) (*adjust.Adjuster, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stage != StageAdjusting || w.adjuster == nil {
		return nil, &StageError{Op: op, Stage: w.stage}
	}
	return w.adjuster, nil
}

// Adjustment returns the pending transform of the image being adjusted
func (w *Workflow) Adjustment() (models.AdjustmentState, error) {
	a, err := w.adjusting("adjust")
	if err != nil {
		return models.AdjustmentState{}, err
	}
	return a.State(), nil
}

func (w *Workflow) Rotate() (models.AdjustmentState, error) {
	a, err := w.adjusting("rotate")
	if err != nil {
		return models.AdjustmentState{}, err
	}
	return a.Rotate()
}

func (w *Workflow) SetScale(s float64) (models.AdjustmentState, error) {
	a, err := w.adjusting("scale")
	if err != nil {
		return models.AdjustmentState{}, err
	}
	return a.SetScale(s)
}

func (w *Workflow) ResetAdjustments() (models.AdjustmentState, error) {
	a, err := w.adjusting("reset adjustments")
	if err != nil {
		return models.AdjustmentState{}, err
	}
	return a.Reset()
}

// Preview renders the image being adjusted
func (w *Workflow) Preview() (*image.RGBA, error) {
	a, err := w.adjusting("preview")
	if err != nil {
		return nil, err
	}
	return a.Preview()
}

// CancelCapture abandons the current capture, adjustment or recognition and returns to idle
func (w *Workflow) CancelCapture() {
	w.releaseCamera()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stage == StageIdle {
		return
	}
	slog.Info("Capture cancelled", "stage", w.stage)
	w.transitionLocked(StageIdle)
	w.discardAdjusterLocked()
}

// Recognize finalizes the adjusted image and runs OCR on it. The captured
// image is dropped once recognition starts and the workflow returns to idle.
// On success the text replaces the session text; on failure the session is
// left untouched.
func (w *Workflow) Recognize(ctx context.Context, language string, onProgress func(percent int)) (string, error) {
	w.mu.Lock()
	if w.stage != StageAdjusting || w.adjuster == nil {
		stage := w.stage
		w.mu.Unlock()
		return "", &StageError{Op: "recognize", Stage: stage}
	}
	adjuster := w.adjuster
	w.mu.Unlock()

	finalized, err := adjuster.Finalize()
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w.mu.Lock()
	if w.adjuster != adjuster || w.stage != StageAdjusting {
		w.mu.Unlock()
		return "", ErrStale
	}
	epoch := w.transitionLocked(StageRecognizing)
	w.discardAdjusterLocked()
	w.cancelRec = cancel
	w.mu.Unlock()

	text, err := w.recognizer.Recognize(ctx, finalized, language, func(pct int) {
		w.mu.Lock()
		if w.epoch != epoch {
			w.mu.Unlock()
			return
		}
		p := pct
		w.progress = &p
		w.mu.Unlock()
		if onProgress != nil {
			onProgress(pct)
		}
	})

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.epoch != epoch {
		slog.Debug("Dropping stale recognition result")
		return "", ErrStale
	}
	w.cancelRec = nil

	w.transitionLocked(StageIdle)
	if err != nil {
		return "", err
	}
	w.session.SetText(text)
	return text, nil
}

// Reset abandons everything, including the extracted text
func (w *Workflow) Reset() {
	w.releaseCamera()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.transitionLocked(StageIdle)
	w.discardAdjusterLocked()
	w.session.Clear()
}

// Status is a point-in-time view of the workflow
type Status struct {
	Stage      Stage                   `json:"stage"`
	Facing     capture.Facing          `json:"facing,omitempty"`
	Image      *models.CapturedImage   `json:"image,omitempty"`
	Adjustment *models.AdjustmentState `json:"adjustment,omitempty"`
	Progress   *int                    `json:"progress,omitempty"`
	Study      study.State             `json:"study"`
	Text       string                  `json:"text"`
	History    []models.QATurn         `json:"history"`
	Artifact   *models.StudyArtifact   `json:"artifact,omitempty"`
}

// Snapshot returns the current status of the workflow and its session
func (w *Workflow) Snapshot() Status {
	w.mu.Lock()
	st := Status{Stage: w.stage}
	if w.progress != nil {
		p := *w.progress
		st.Progress = &p
	}
	adjuster := w.adjuster
	w.mu.Unlock()

	if w.camera != nil {
		if facing, ok := w.camera.Active(); ok {
			st.Facing = facing
		}
	}
	if adjuster != nil {
		if src := adjuster.Source(); src != nil {
			st.Image = src
			state := adjuster.State()
			st.Adjustment = &state
		}
	}

	st.Study = w.session.State()
	st.Text = w.session.Text()
	st.History = w.session.History()
	if art, ok := w.session.Artifact(); ok {
		st.Artifact = &art
	}
	return st
}
