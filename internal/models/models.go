package models

import (
	"image"
	"time"
)

// CapturedImage is a still image taken from a file upload or a camera.
// It is never mutated after capture; a new capture supersedes it.
type CapturedImage struct {
	Image     image.Image `json:"-"`
	Width     int         `json:"width"`
	Height    int         `json:"height"`
	MediaType string      `json:"media_type"`
	Source    string      `json:"source"` // "file", "camera"
}

// AdjustmentState is the pending geometric transform applied to a CapturedImage
type AdjustmentState struct {
	RotationDegrees int     `json:"rotation_degrees"`
	Scale           float64 `json:"scale"`
}

// DefaultAdjustment is the state every new capture starts from
var DefaultAdjustment = AdjustmentState{RotationDegrees: 0, Scale: 1.0}

// FinalizedImage is the rendered canvas submitted for recognition
type FinalizedImage struct {
	Data      []byte `json:"-"`
	MediaType string `json:"media_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// Action is a task understood by the generation service
type Action string

const (
	ActionQA         Action = "qa"
	ActionLesson     Action = "lesson"
	ActionFlashcards Action = "flashcards"
	ActionSummarize  Action = "summarize"
	ActionQuiz       Action = "quiz"
)

// StudyKinds lists the actions that produce a StudyArtifact
var StudyKinds = []Action{ActionLesson, ActionFlashcards, ActionSummarize, ActionQuiz}

// IsStudyKind reports whether a produces a StudyArtifact
func (a Action) IsStudyKind() bool {
	for _, k := range StudyKinds {
		if a == k {
			return true
		}
	}
	return false
}

// Valid reports whether a is any known action
func (a Action) Valid() bool {
	return a == ActionQA || a.IsStudyKind()
}

// PendingAnswer marks a QATurn whose answer has not arrived yet
const PendingAnswer = "…"

// QATurn is one question/answer exchange grounded in the extracted text
type QATurn struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

// Pending reports whether the turn is still waiting for its answer
func (t QATurn) Pending() bool {
	return t.Answer == PendingAnswer
}

// StudyArtifact is the single active generated document. Content is only
// meaningful once Ready is true.
type StudyArtifact struct {
	Kind    Action `json:"kind"`
	Content string `json:"content,omitempty"`
	Ready   bool   `json:"ready"`
}
