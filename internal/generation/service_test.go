package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/scanstudy/internal/models"
	"github.com/lehigh-university-libraries/scanstudy/internal/providers"
)

type fakeProvider struct {
	result string
	err    error
	calls  int
	got    providers.Config
}

func (f *fakeProvider) ExtractText(ctx context.Context, cfg providers.Config) (string, error) {
	f.calls++
	f.got = cfg
	return f.result, f.err
}

func TestGenerate(t *testing.T) {
	p := &fakeProvider{result: "Summary: sky is blue."}
	s := NewService(p, "gemini-1.5-flash")

	out, err := s.Generate(context.Background(), Request{Text: "The sky is blue.", Action: models.ActionSummarize})
	require.NoError(t, err)
	assert.Equal(t, "Summary: sky is blue.", out)

	assert.Equal(t, "gemini-1.5-flash", p.got.Model)
	assert.Equal(t, 0.7, p.got.Temperature)
	assert.Equal(t, 0.95, p.got.TopP)
	assert.Equal(t, 40, p.got.TopK)
	assert.Equal(t, 2048, p.got.MaxOutputTokens)
	assert.Contains(t, p.got.Prompt, "The sky is blue.")
	assert.Contains(t, p.got.Prompt, "Summarize")
}

func TestGenerateQAIncludesQuestion(t *testing.T) {
	p := &fakeProvider{result: "Blue."}
	s := NewService(p, "m")

	_, err := s.Generate(context.Background(), Request{Text: "The sky is blue.", Action: models.ActionQA, Question: "What colour is the sky?"})
	require.NoError(t, err)
	assert.Contains(t, p.got.Prompt, "QUESTION: What colour is the sky?")
}

func TestGenerateFailures(t *testing.T) {
	tests := []struct {
		name     string
		provider providers.Provider
		req      Request
		want     error
		calls    int
	}{
		{
			name: "missing text",
			req:  Request{Action: models.ActionLesson},
			want: ErrMissingText,
		},
		{
			name: "blank text",
			req:  Request{Text: " \n ", Action: models.ActionLesson},
			want: ErrMissingText,
		},
		{
			name: "qa without question",
			req:  Request{Text: "doc", Action: models.ActionQA, Question: "  "},
			want: ErrMissingQuestion,
		},
		{
			name: "unknown action",
			req:  Request{Text: "doc", Action: "poem"},
			want: ErrUnknownAction,
		},
		{
			name: "no provider",
			req:  Request{Text: "doc", Action: models.ActionQuiz},
			want: ErrMissingCredential,
		},
		{
			name:     "provider missing key",
			provider: &fakeProvider{err: fmt.Errorf("GEMINI_API_KEY not set: %w", providers.ErrMissingCredential)},
			req:      Request{Text: "doc", Action: models.ActionQuiz},
			want:     ErrMissingCredential,
			calls:    1,
		},
		{
			name:     "empty result",
			provider: &fakeProvider{result: "   "},
			req:      Request{Text: "doc", Action: models.ActionFlashcards},
			want:     ErrEmptyResult,
			calls:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp, _ := tt.provider.(*fakeProvider)
			s := NewService(tt.provider, "m")
			out, err := s.Generate(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, out)
			if fp != nil {
				assert.Equal(t, tt.calls, fp.calls)
			}
		})
	}
}

func TestGenerateUpstreamError(t *testing.T) {
	upstream := errors.New("received non-200 status code: 429")
	s := NewService(&fakeProvider{err: upstream}, "m")

	_, err := s.Generate(context.Background(), Request{Text: "doc", Action: models.ActionLesson})
	require.Error(t, err)
	assert.ErrorIs(t, err, upstream)
	assert.True(t, strings.Contains(err.Error(), "429"))
}

func TestBuildPromptEveryAction(t *testing.T) {
	for _, a := range append([]models.Action{models.ActionQA}, models.StudyKinds...) {
		prompt, err := BuildPrompt(a, "DOC BODY", "Q?")
		require.NoError(t, err, a)
		assert.Contains(t, prompt, "DOC BODY")
		if a == models.ActionQA {
			assert.Contains(t, prompt, "Q?")
		} else {
			assert.NotContains(t, prompt, "QUESTION:")
		}
	}

	_, err := BuildPrompt("essay", "doc", "")
	assert.ErrorIs(t, err, ErrUnknownAction)
}
