package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/lehigh-university-libraries/scanstudy/internal/capture"
	"github.com/lehigh-university-libraries/scanstudy/internal/export"
	"github.com/lehigh-university-libraries/scanstudy/internal/models"
)

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) writeStatus(w http.ResponseWriter) {
	h.writeJSON(w, h.workflow.Snapshot())
}

func (h *Handler) HandleDocument(w http.ResponseWriter, r *http.Request) {
	h.writeStatus(w)
}

func (h *Handler) HandleImageUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUpload+1<<20)
	if err := r.ParseMultipartForm(h.opts.MaxUpload); err != nil {
		h.writeError(w, "Failed to parse form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, "Failed to get file: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	img, err := capture.FromReader(header.Filename, header.Header.Get("Content-Type"), file, h.opts.MaxUpload)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	if _, err := h.workflow.LoadImage(img); err != nil {
		h.writeFailure(w, err)
		return
	}

	slog.Info("Image uploaded", "filename", header.Filename, "width", img.Width, "height", img.Height)
	h.writeStatus(w)
}

func (h *Handler) HandleCamera(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Facing string `json:"facing"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	facing, err := capture.ParseFacing(req.Facing)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// OpenCamera tears down an open stream first, so this also switches facing
	if err := h.workflow.OpenCamera(r.Context(), facing); err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeStatus(w)
}

func (h *Handler) HandleCameraCapture(w http.ResponseWriter, r *http.Request) {
	if _, err := h.workflow.CaptureFromCamera(r.Context()); err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeStatus(w)
}

// HandleAdjust applies reset, then quarter turns, then scale, in that order
func (h *Handler) HandleAdjust(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rotate int      `json:"rotate"`
		Scale  *float64 `json:"scale"`
		Reset  bool     `json:"reset"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.Rotate < 0 {
		h.writeError(w, "rotate must be a non-negative number of quarter turns", http.StatusBadRequest)
		return
	}

	var (
		state models.AdjustmentState
		err   error
	)
	state, err = h.workflow.Adjustment()
	if err == nil && req.Reset {
		state, err = h.workflow.ResetAdjustments()
	}
	for i := 0; err == nil && i < req.Rotate%4; i++ {
		state, err = h.workflow.Rotate()
	}
	if err == nil && req.Scale != nil {
		state, err = h.workflow.SetScale(*req.Scale)
	}
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, state)
}

func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	img, err := h.workflow.Preview()
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, img); err != nil {
		slog.Error("Unable to encode preview", "err", err)
	}
}

func (h *Handler) HandleRecognize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Language string `json:"language"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	language := req.Language
	if language == "" {
		language = h.opts.Language
	}

	text, err := h.workflow.Recognize(r.Context(), language, nil)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	slog.Info("Text recognized", "language", language, "length", len(text))
	h.writeStatus(w)
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.workflow.CancelCapture()
	h.workflow.Session().CancelArtifact()
	h.writeStatus(w)
}

func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.workflow.Reset()
	h.writeStatus(w)
}

func (h *Handler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	turn, err := h.workflow.Session().Ask(r.Context(), req.Question)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, turn)
}

func (h *Handler) HandleStudyGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind models.Action `json:"kind"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	artifact, err := h.workflow.Session().Generate(r.Context(), req.Kind)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, artifact)
}

// HandleExport downloads the extracted text as txt or pdf. With save=true the
// file goes to the configured sink instead and its location is returned.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	text := h.workflow.Session().Text()
	if text == "" {
		h.writeError(w, "No extracted text to export", http.StatusBadRequest)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "txt"
	}

	data, contentType, err := export.EncodeWithLayout(text, format, h.opts.Layout)
	if errors.Is(err, export.ErrUnknownFormat) {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.writeError(w, "Failed to build export: "+err.Error(), http.StatusInternalServerError)
		return
	}

	name := export.FileName(h.opts.Prefix, format, h.now())

	if save, _ := strconv.ParseBool(r.URL.Query().Get("save")); save {
		if h.opts.Sink == nil {
			h.writeError(w, "No export destination configured", http.StatusBadRequest)
			return
		}
		location, err := h.opts.Sink.Save(r.Context(), name, contentType, data)
		if err != nil {
			h.writeError(w, "Failed to save export: "+err.Error(), http.StatusBadGateway)
			return
		}
		slog.Info("Export saved", "location", location)
		h.writeJSON(w, map[string]string{"name": name, "location": location})
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}
