package generation

import (
	"fmt"
	"strings"

	"github.com/lehigh-university-libraries/scanstudy/internal/models"
)

var instructions = map[models.Action]string{
	models.ActionQA: `You are a patient tutor answering a student's question about a document they photographed.
Answer ONLY from the document below. If the document does not contain the answer, say so plainly.
Keep the answer short and direct; quote the document where it helps.`,

	models.ActionLesson: `You are an experienced teacher. Turn the document below into a structured lesson for a student.

The lesson must include:
1. A one-sentence statement of what the student will learn
2. The key concepts, each explained in plain language with an example
3. A short worked example or walkthrough where the material allows it
4. A recap of the three to five most important points

Use Markdown headings and bullet points. Do not introduce facts that are not supported by the document.`,

	models.ActionFlashcards: `Create study flashcards from the document below.

INSTRUCTIONS:
1. Write between 8 and 15 cards covering the most important facts, terms and ideas
2. Each card has a short question or term on the front and a concise answer on the back
3. Do not repeat the same fact on two cards
4. Use only information found in the document

OUTPUT FORMAT:
Q: <front of card>
A: <back of card>

Separate cards with a blank line. Output only the cards.`,

	models.ActionSummarize: `Summarize the document below for a student reviewing for an exam.
Start with a one-paragraph overview, then list the key points as bullets.
Keep the summary under 250 words and do not add information that is not in the document.`,

	models.ActionQuiz: `Write a multiple-choice quiz that checks understanding of the document below.

INSTRUCTIONS:
1. Write 5 questions
2. Each question has four options labelled A to D with exactly one correct answer
3. Distractors must be plausible but clearly wrong according to the document
4. After all questions, add an "Answers" section listing the correct letter and a one-line explanation for each

Use only information found in the document.`,
}

// BuildPrompt composes the task instruction, the document and, for qa, the question
func BuildPrompt(action models.Action, text, question string) (string, error) {
	instruction, ok := instructions[action]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\nDOCUMENT:\n\"\"\"\n")
	b.WriteString(text)
	b.WriteString("\n\"\"\"\n")
	if action == models.ActionQA {
		b.WriteString("\nQUESTION: ")
		b.WriteString(question)
		b.WriteString("\n")
	}
	return b.String(), nil
}
