package study

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/scanstudy/internal/generation"
	"github.com/lehigh-university-libraries/scanstudy/internal/models"
)

type reply struct {
	text string
	err  error
}

// gatedGenerator blocks each call until the test releases it by action
type gatedGenerator struct {
	mu      sync.Mutex
	called  chan generation.Request
	release map[models.Action]chan reply
}

func newGated(actions ...models.Action) *gatedGenerator {
	g := &gatedGenerator{
		called:  make(chan generation.Request, 8),
		release: map[models.Action]chan reply{},
	}
	for _, a := range actions {
		g.release[a] = make(chan reply, 1)
	}
	return g
}

func (g *gatedGenerator) Generate(ctx context.Context, req generation.Request) (string, error) {
	g.mu.Lock()
	ch := g.release[req.Action]
	g.mu.Unlock()
	g.called <- req
	r := <-ch
	return r.text, r.err
}

type staticGenerator struct {
	text  string
	err   error
	calls []generation.Request
}

func (g *staticGenerator) Generate(ctx context.Context, req generation.Request) (string, error) {
	g.calls = append(g.calls, req)
	return g.text, g.err
}

func TestSummarizeProducesReadyArtifact(t *testing.T) {
	gen := &staticGenerator{text: "Summary: sky is blue."}
	s := NewSession(gen)
	s.SetText("The sky is blue.")

	art, err := s.Generate(context.Background(), models.ActionSummarize)
	require.NoError(t, err)
	assert.Equal(t, models.StudyArtifact{Kind: models.ActionSummarize, Content: "Summary: sky is blue.", Ready: true}, art)
	assert.False(t, s.IsGenerating())

	active, ok := s.Artifact()
	require.True(t, ok)
	assert.Equal(t, art, active)

	require.Len(t, gen.calls, 1)
	assert.Equal(t, generation.Request{Text: "The sky is blue.", Action: models.ActionSummarize}, gen.calls[0])
}

func TestReplacingTextClearsDerivedState(t *testing.T) {
	gen := &staticGenerator{text: "answer"}
	s := NewSession(gen)
	s.SetText("first document")

	_, err := s.Ask(context.Background(), "what?")
	require.NoError(t, err)
	_, err = s.Generate(context.Background(), models.ActionQuiz)
	require.NoError(t, err)
	require.Len(t, s.History(), 1)

	s.SetText("second document")
	assert.Empty(t, s.History())
	_, ok := s.Artifact()
	assert.False(t, ok)
	assert.Equal(t, "second document", s.Text())

	s.Clear()
	assert.Equal(t, State{QA: QAIdle, Artifact: ArtifactNone}, s.State())
}

func TestAskRejectsBlankQuestion(t *testing.T) {
	gen := &staticGenerator{text: "answer"}
	s := NewSession(gen)
	s.SetText("doc")

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := s.Ask(context.Background(), q)
		var genErr *GenerationError
		require.ErrorAs(t, err, &genErr)
		assert.ErrorIs(t, err, generation.ErrMissingQuestion)
	}
	assert.Empty(t, s.History())
	assert.Empty(t, gen.calls)
}

func TestRequestsWithoutText(t *testing.T) {
	gen := &staticGenerator{text: "answer"}
	s := NewSession(gen)

	_, err := s.Ask(context.Background(), "anything?")
	assert.ErrorIs(t, err, generation.ErrMissingText)

	_, err = s.Generate(context.Background(), models.ActionLesson)
	assert.ErrorIs(t, err, generation.ErrMissingText)

	_, err = s.Generate(context.Background(), models.ActionQA)
	assert.ErrorIs(t, err, generation.ErrUnknownAction)

	assert.Empty(t, gen.calls)
	assert.Empty(t, s.History())
}

func TestFailedAskLeavesHistoryUnchanged(t *testing.T) {
	gen := &staticGenerator{text: "first answer"}
	s := NewSession(gen)
	s.SetText("doc")

	_, err := s.Ask(context.Background(), "first?")
	require.NoError(t, err)
	before := s.History()

	gen.text, gen.err = "", errors.New("Missing API key")
	_, err = s.Ask(context.Background(), "second?")
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "Missing API key", genErr.Error())

	assert.Equal(t, before, s.History())
	assert.Equal(t, QAIdle, s.State().QA)

	gen.err = nil
	_, err = s.Ask(context.Background(), "third?")
	require.ErrorAs(t, err, &genErr)
	assert.ErrorIs(t, err, generation.ErrEmptyResult)
	assert.Equal(t, before, s.History())
}

func TestAskRecordsTurn(t *testing.T) {
	gen := &staticGenerator{text: "Blue."}
	s := NewSession(gen)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	s.SetText("The sky is blue.")

	turn, err := s.Ask(context.Background(), "  What colour is the sky? ")
	require.NoError(t, err)
	assert.Equal(t, models.QATurn{Question: "What colour is the sky?", Answer: "Blue.", CreatedAt: fixed}, turn)
	assert.Equal(t, []models.QATurn{turn}, s.History())
	assert.Equal(t, "What colour is the sky?", gen.calls[0].Question)
}

func TestSecondAskWhilePendingIsRejected(t *testing.T) {
	gen := newGated(models.ActionQA)
	s := NewSession(gen)
	s.SetText("doc")

	done := make(chan error, 1)
	go func() {
		_, err := s.Ask(context.Background(), "first?")
		done <- err
	}()
	<-gen.called

	assert.Equal(t, QAPending, s.State().QA)
	hist := s.History()
	require.Len(t, hist, 1)
	assert.True(t, hist[0].Pending())

	_, err := s.Ask(context.Background(), "second?")
	assert.ErrorIs(t, err, ErrAskInFlight)
	assert.Len(t, s.History(), 1)

	gen.release[models.ActionQA] <- reply{text: "answer"}
	require.NoError(t, <-done)
	hist = s.History()
	require.Len(t, hist, 1)
	assert.Equal(t, "answer", hist[0].Answer)
}

func TestLateLessonIsDiscardedWhenQuizRequested(t *testing.T) {
	gen := newGated(models.ActionLesson, models.ActionQuiz)
	s := NewSession(gen)
	s.SetText("doc")

	lessonDone := make(chan error, 1)
	go func() {
		_, err := s.Generate(context.Background(), models.ActionLesson)
		lessonDone <- err
	}()
	<-gen.called
	assert.Equal(t, ArtifactPending, s.State().Artifact)
	assert.Equal(t, models.ActionLesson, s.State().Kind)

	quizDone := make(chan error, 1)
	go func() {
		_, err := s.Generate(context.Background(), models.ActionQuiz)
		quizDone <- err
	}()
	<-gen.called
	assert.Equal(t, models.ActionQuiz, s.State().Kind)
	assert.True(t, s.IsGenerating())

	gen.release[models.ActionQuiz] <- reply{text: "quiz content"}
	require.NoError(t, <-quizDone)

	gen.release[models.ActionLesson] <- reply{text: "lesson content"}
	assert.ErrorIs(t, <-lessonDone, ErrStale)

	art, ok := s.Artifact()
	require.True(t, ok)
	assert.Equal(t, models.StudyArtifact{Kind: models.ActionQuiz, Content: "quiz content", Ready: true}, art)
	assert.False(t, s.IsGenerating())
}

func TestAnswerAfterTextReplacedIsStale(t *testing.T) {
	gen := newGated(models.ActionQA)
	s := NewSession(gen)
	s.SetText("old doc")

	done := make(chan error, 1)
	go func() {
		_, err := s.Ask(context.Background(), "q?")
		done <- err
	}()
	<-gen.called

	s.SetText("new doc")
	gen.release[models.ActionQA] <- reply{text: "old answer"}
	assert.ErrorIs(t, <-done, ErrStale)
	assert.Empty(t, s.History())
	assert.Equal(t, QAIdle, s.State().QA)
}

func TestFailedArtifactClearsPending(t *testing.T) {
	gen := &staticGenerator{err: errors.New("upstream 503")}
	s := NewSession(gen)
	s.SetText("doc")

	_, err := s.Generate(context.Background(), models.ActionFlashcards)
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, models.ActionFlashcards, genErr.Action)
	assert.False(t, s.IsGenerating())
	_, ok := s.Artifact()
	assert.False(t, ok)
}

func TestCancelArtifact(t *testing.T) {
	gen := newGated(models.ActionLesson)
	s := NewSession(gen)
	s.SetText("doc")

	done := make(chan error, 1)
	go func() {
		_, err := s.Generate(context.Background(), models.ActionLesson)
		done <- err
	}()
	<-gen.called

	s.CancelArtifact()
	assert.False(t, s.IsGenerating())

	gen.release[models.ActionLesson] <- reply{text: "lesson"}
	assert.ErrorIs(t, <-done, ErrStale)
	_, ok := s.Artifact()
	assert.False(t, ok)
}
