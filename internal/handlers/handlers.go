package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/lehigh-university-libraries/scanstudy/internal/adjust"
	"github.com/lehigh-university-libraries/scanstudy/internal/capture"
	"github.com/lehigh-university-libraries/scanstudy/internal/export"
	"github.com/lehigh-university-libraries/scanstudy/internal/ocr"
	"github.com/lehigh-university-libraries/scanstudy/internal/study"
	"github.com/lehigh-university-libraries/scanstudy/internal/workflow"
)

// DefaultMaxUpload bounds multipart image uploads when Options leaves it unset
const DefaultMaxUpload = 20 << 20

type Options struct {
	// Language is used when a recognize request does not name one
	Language  string
	MaxUpload int64
	Prefix    string
	// Sink receives exports requested with ?save=true; nil disables saving
	Sink export.Sink
	// Layout is the PDF layout; the zero value means export.DefaultLayout
	Layout export.Layout
}

type Handler struct {
	generator study.Generator
	workflow  *workflow.Workflow
	opts      Options
	now       func() time.Time
}

func New(generator study.Generator, wf *workflow.Workflow, opts Options) *Handler {
	if opts.MaxUpload <= 0 {
		opts.MaxUpload = DefaultMaxUpload
	}
	if opts.Prefix == "" {
		opts.Prefix = export.DefaultPrefix
	}
	if opts.Language == "" {
		opts.Language = ocr.DefaultLanguage
	}
	if opts.Layout.FontFamily == "" {
		opts.Layout = export.DefaultLayout
	}
	return &Handler{
		generator: generator,
		workflow:  wf,
		opts:      opts,
		now:       time.Now,
	}
}

// Router registers every endpoint behind the CORS and request logging middleware
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(requestID, cors)

	router.HandleFunc("/healthcheck", h.HandleHealthcheck).Methods("GET")
	router.HandleFunc("/api/generate", h.HandleGenerate).Methods("POST", "OPTIONS")

	api := router.PathPrefix("/api/document").Subrouter()
	api.HandleFunc("", h.HandleDocument).Methods("GET", "OPTIONS")
	api.HandleFunc("/image", h.HandleImageUpload).Methods("POST", "OPTIONS")
	api.HandleFunc("/camera", h.HandleCamera).Methods("POST", "OPTIONS")
	api.HandleFunc("/camera/capture", h.HandleCameraCapture).Methods("POST", "OPTIONS")
	api.HandleFunc("/adjust", h.HandleAdjust).Methods("POST", "OPTIONS")
	api.HandleFunc("/preview", h.HandlePreview).Methods("GET", "OPTIONS")
	api.HandleFunc("/recognize", h.HandleRecognize).Methods("POST", "OPTIONS")
	api.HandleFunc("/cancel", h.HandleCancel).Methods("POST", "OPTIONS")
	api.HandleFunc("/reset", h.HandleReset).Methods("POST", "OPTIONS")
	api.HandleFunc("/ask", h.HandleAsk).Methods("POST", "OPTIONS")
	api.HandleFunc("/generate", h.HandleStudyGenerate).Methods("POST", "OPTIONS")
	api.HandleFunc("/export", h.HandleExport).Methods("GET", "OPTIONS")

	return router
}

func (h *Handler) HandleHealthcheck(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("OK"))
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data any) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message, "status", code)
	} else {
		slog.Warn(message, "status", code)
	}
	h.writeJSONStatus(w, code, map[string]string{"error": message})
}

// writeFailure maps a domain error onto its HTTP status
func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	h.writeError(w, err.Error(), statusFor(err))
}

func statusFor(err error) int {
	var (
		invalid     *capture.InvalidInputError
		permission  *capture.PermissionError
		device      *capture.DeviceError
		stage       *workflow.StageError
		recognition *ocr.RecognitionFailure
		genErr      *study.GenerationError
	)
	switch {
	case errors.As(err, &invalid), errors.As(err, &stage), errors.Is(err, adjust.ErrNoImage):
		return http.StatusBadRequest
	case errors.As(err, &permission):
		return http.StatusForbidden
	case errors.As(err, &device):
		return http.StatusServiceUnavailable
	case errors.Is(err, workflow.ErrStale), errors.Is(err, capture.ErrCancelled),
		errors.Is(err, study.ErrStale), errors.Is(err, study.ErrAskInFlight):
		return http.StatusConflict
	case errors.As(err, &recognition):
		if errors.Is(err, ocr.ErrOCRNotEnabled) {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	case errors.As(err, &genErr):
		if isPrecondition(genErr.Err) {
			return http.StatusBadRequest
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
