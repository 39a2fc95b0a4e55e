package genclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/scanstudy/internal/generation"
	"github.com/lehigh-university-libraries/scanstudy/internal/models"
)

func TestGenerate(t *testing.T) {
	var got generation.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(generation.Response{Result: "Blue."})
	}))
	defer srv.Close()

	out, err := New(srv.URL+"/").Generate(context.Background(), generation.Request{
		Text:     "The sky is blue.",
		Action:   models.ActionQA,
		Question: "Colour?",
	})
	require.NoError(t, err)
	assert.Equal(t, "Blue.", out)
	assert.Equal(t, models.ActionQA, got.Action)
	assert.Equal(t, "Colour?", got.Question)
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "json error", status: 500, body: `{"error":"Missing API key"}`, wantMsg: "Missing API key"},
		{name: "plain error", status: 502, body: "bad gateway", wantMsg: "bad gateway"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := New(srv.URL).Generate(context.Background(), generation.Request{Text: "x", Action: models.ActionQuiz})
			var svcErr *ServiceError
			require.ErrorAs(t, err, &svcErr)
			assert.Equal(t, tt.status, svcErr.StatusCode)
			assert.Equal(t, tt.wantMsg, svcErr.Error())
		})
	}
}

func TestGenerateEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Generate(context.Background(), generation.Request{Text: "x", Action: models.ActionQuiz})
	assert.ErrorIs(t, err, generation.ErrEmptyResult)
}

func TestGenerateUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url).Generate(context.Background(), generation.Request{Text: "x", Action: models.ActionQuiz})
	assert.Error(t, err)
}
