package metrics

import (
	"strings"
	"unicode"
)

// Score compares one recognized page against its reference
type Score struct {
	CER            float64 `json:"cer" yaml:"cer"`
	WER            float64 `json:"wer" yaml:"wer"`
	CharDistance   int     `json:"char_distance" yaml:"chardistance"`
	WordDistance   int     `json:"word_distance" yaml:"worddistance"`
	ReferenceChars int     `json:"reference_chars" yaml:"referencechars"`
	ReferenceWords int     `json:"reference_words" yaml:"referencewords"`
	Exact          bool    `json:"exact" yaml:"exact"`
}

// CompareText scores actual against expected. Both are whitespace
// normalized first so line wrapping differences are not counted as errors.
// Rates are edit distance over reference length; an empty reference scores
// 0 when actual is also empty and 1 otherwise.
func CompareText(expected, actual string) Score {
	expWords := strings.Fields(expected)
	actWords := strings.Fields(actual)

	expChars := []rune(strings.Join(expWords, " "))
	actChars := []rune(strings.Join(actWords, " "))

	s := Score{
		CharDistance:   levenshtein(expChars, actChars),
		WordDistance:   levenshtein(expWords, actWords),
		ReferenceChars: len(expChars),
		ReferenceWords: len(expWords),
	}
	s.CER = rate(s.CharDistance, s.ReferenceChars)
	s.WER = rate(s.WordDistance, s.ReferenceWords)
	s.Exact = s.CharDistance == 0
	return s
}

// CompareFolded is CompareText after case folding and dropping punctuation
func CompareFolded(expected, actual string) Score {
	return CompareText(fold(expected), fold(actual))
}

func fold(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
}

func rate(distance, length int) float64 {
	if length == 0 {
		if distance == 0 {
			return 0
		}
		return 1
	}
	return float64(distance) / float64(length)
}

// levenshtein uses two rows instead of the full matrix
func levenshtein[T comparable](a, b []T) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
