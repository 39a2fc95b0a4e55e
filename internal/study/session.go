package study

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/scanstudy/internal/generation"
	"github.com/lehigh-university-libraries/scanstudy/internal/models"
)

var (
	// ErrAskInFlight is returned when a question is asked while another is unanswered
	ErrAskInFlight = errors.New("a question is already being answered")
	// ErrStale is returned to the caller whose result arrived after the session moved on
	ErrStale = errors.New("result discarded: superseded by a newer request")
)

// Generator is the generation service contract
type Generator interface {
	Generate(ctx context.Context, req generation.Request) (string, error)
}

// GenerationError is returned for every failed QA or artifact request
type GenerationError struct {
	Action  models.Action
	Message string
	Err     error
}

func (e *GenerationError) Error() string { return e.Message }

func (e *GenerationError) Unwrap() error { return e.Err }

func newGenerationError(action models.Action, msg string, cause error) *GenerationError {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &GenerationError{Action: action, Message: msg, Err: cause}
}

type QAState string

const (
	QAIdle    QAState = "idle"
	QAPending QAState = "pending"
)

type ArtifactState string

const (
	ArtifactNone    ArtifactState = "none"
	ArtifactPending ArtifactState = "pending"
	ArtifactReady   ArtifactState = "ready"
)

// State is a point-in-time view of both state machines
type State struct {
	QA       QAState       `json:"qa"`
	Artifact ArtifactState `json:"artifact"`
	Kind     models.Action `json:"kind,omitempty"`
	HasText  bool          `json:"has_text"`
}

// Session holds the extracted text of the current document and everything
// derived from it. Every request carries a token taken at dispatch; a result
// whose token no longer matches is dropped.
type Session struct {
	gen Generator
	now func() time.Time

	mu         sync.Mutex
	text       string
	history    []models.QATurn
	askPending bool
	qaEpoch    uint64
	artifact   *models.StudyArtifact
	artifactID uint64
}

func NewSession(gen Generator) *Session {
	return &Session{gen: gen, now: time.Now}
}

// SetText replaces the document text, dropping QA history and the active
// artifact. Requests still in flight will come back stale.
func (s *Session) SetText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = text
	s.history = nil
	s.askPending = false
	s.artifact = nil
	s.qaEpoch++
	s.artifactID++
}

// Clear is SetText("")
func (s *Session) Clear() {
	s.SetText("")
}

func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// History returns a copy of the QA turns, oldest first
func (s *Session) History() []models.QATurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.QATurn, len(s.history))
	copy(out, s.history)
	return out
}

// Artifact returns the active artifact, if any
func (s *Session) Artifact() (models.StudyArtifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.artifact == nil {
		return models.StudyArtifact{}, false
	}
	return *s.artifact, true
}

func (s *Session) IsGenerating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.artifact != nil && !s.artifact.Ready
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{QA: QAIdle, Artifact: ArtifactNone, HasText: s.text != ""}
	if s.askPending {
		st.QA = QAPending
	}
	if s.artifact != nil {
		st.Kind = s.artifact.Kind
		st.Artifact = ArtifactPending
		if s.artifact.Ready {
			st.Artifact = ArtifactReady
		}
	}
	return st
}

// Ask appends a pending turn, asks the generator and fills in the answer.
// On failure the pending turn is removed so history is unchanged.
func (s *Session) Ask(ctx context.Context, question string) (models.QATurn, error) {
	question = strings.TrimSpace(question)

	s.mu.Lock()
	if s.text == "" {
		s.mu.Unlock()
		return models.QATurn{}, newGenerationError(models.ActionQA, "no extracted text to ask about", generation.ErrMissingText)
	}
	if question == "" {
		s.mu.Unlock()
		return models.QATurn{}, newGenerationError(models.ActionQA, "question must not be empty", generation.ErrMissingQuestion)
	}
	if s.askPending {
		s.mu.Unlock()
		return models.QATurn{}, ErrAskInFlight
	}
	s.history = append(s.history, models.QATurn{
		Question:  question,
		Answer:    models.PendingAnswer,
		CreatedAt: s.now(),
	})
	s.askPending = true
	epoch := s.qaEpoch
	text := s.text
	s.mu.Unlock()

	answer, err := s.gen.Generate(ctx, generation.Request{
		Text:     text,
		Action:   models.ActionQA,
		Question: question,
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.qaEpoch != epoch {
		slog.Debug("Dropping stale answer", "question", question)
		return models.QATurn{}, ErrStale
	}
	s.askPending = false
	last := len(s.history) - 1

	if err == nil && strings.TrimSpace(answer) == "" {
		err = generation.ErrEmptyResult
	}
	if err != nil {
		s.history = s.history[:last]
		slog.Warn("Question failed", "err", err)
		return models.QATurn{}, newGenerationError(models.ActionQA, "", err)
	}

	s.history[last].Answer = answer
	return s.history[last], nil
}

// Generate replaces the active artifact with a pending one of kind and fills
// it in when the generator answers. Only the most recent request can land.
func (s *Session) Generate(ctx context.Context, kind models.Action) (models.StudyArtifact, error) {
	if !kind.IsStudyKind() {
		return models.StudyArtifact{}, newGenerationError(kind, fmt.Sprintf("unknown study feature %q", kind), generation.ErrUnknownAction)
	}

	s.mu.Lock()
	if s.text == "" {
		s.mu.Unlock()
		return models.StudyArtifact{}, newGenerationError(kind, "no extracted text to study", generation.ErrMissingText)
	}
	s.artifactID++
	id := s.artifactID
	s.artifact = &models.StudyArtifact{Kind: kind}
	text := s.text
	s.mu.Unlock()

	content, err := s.gen.Generate(ctx, generation.Request{Text: text, Action: kind})

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.artifactID != id {
		slog.Debug("Dropping stale artifact", "kind", kind)
		return models.StudyArtifact{}, ErrStale
	}

	if err == nil && strings.TrimSpace(content) == "" {
		err = generation.ErrEmptyResult
	}
	if err != nil {
		s.artifact = nil
		slog.Warn("Study feature failed", "kind", kind, "err", err)
		return models.StudyArtifact{}, newGenerationError(kind, "", err)
	}

	s.artifact = &models.StudyArtifact{Kind: kind, Content: content, Ready: true}
	return *s.artifact, nil
}

// CancelArtifact drops the active artifact; a pending request comes back stale
func (s *Session) CancelArtifact() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifact = nil
	s.artifactID++
}
