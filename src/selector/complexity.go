package selector

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/inkforge/gateway/src/models"
)

const (
	fastLengthThreshold         = 1500
	fastComplexityThreshold     = 0.3
	fastMaxTokensThreshold      = 500
	powerfulLengthThreshold     = 10000
	powerfulComplexityThreshold = 0.7
	powerfulMaxTokensThreshold  = 2000

	// Content shorter than this is always treated as trivially simple.
	shortContentLength = 50
	longWordLength     = 8
	codeFenceMarker    = "```"
)

type contentMetrics struct {
	TotalLength int
	Complexity  float64
}

// analyze computes length and complexity metrics over all message contents.
func analyze(messages []models.Message) contentMetrics {
	var sb strings.Builder
	for _, msg := range messages {
		sb.WriteString(msg.Content)
		sb.WriteByte(' ')
	}
	content := sb.String()

	m := contentMetrics{}
	for _, msg := range messages {
		m.TotalLength += utf8.RuneCountInString(msg.Content)
	}
	m.Complexity = complexityScore(content, m.TotalLength)
	return m
}

// complexityScore weighs vocabulary, punctuation, structure and code
// presence into a single score in [0, 1].
func complexityScore(content string, totalLength int) float64 {
	if totalLength < shortContentLength {
		return 0.1
	}

	words := strings.Fields(content)
	wordCount := len(words)

	longWords := 0
	for _, w := range words {
		if utf8.RuneCountInString(w) > longWordLength {
			longWords++
		}
	}

	nonWordChars := 0
	lineBreaks := 0
	for _, r := range content {
		switch {
		case r == '\n':
			lineBreaks++
		case !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && !unicode.IsSpace(r):
			nonWordChars++
		}
	}

	hasCodeFence := 0.0
	if strings.Count(content, codeFenceMarker) >= 2 {
		hasCodeFence = 1.0
	}

	var score float64
	if wordCount > 0 {
		score += 0.3 * (float64(longWords) / float64(wordCount))
	}
	score += 0.2 * (float64(nonWordChars) / float64(totalLength))
	score += 0.25 * (float64(lineBreaks) / (float64(totalLength) / 100.0))
	score += 0.25 * hasCodeFence

	if score > 1.0 {
		score = 1.0
	}
	if score < 0.0 {
		score = 0.0
	}
	return score
}
