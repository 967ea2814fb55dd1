// Package summarize condenses evidence text with an extractive
// frequency-based sentence ranker. No model call is needed, which keeps the
// composition fallback ladder usable when the LLM is down.
package summarize

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
)

// FrequencySummarizer ranks sentences by word frequency (stopwords filtered)
// and selects the best ones up to a word budget.
type FrequencySummarizer struct {
	tokenPattern    *regexp.Regexp
	sentencePattern *regexp.Regexp
	stopwords       map[string]struct{}
}

// New creates a frequency-based summarizer.
func New() *FrequencySummarizer {
	return &FrequencySummarizer{
		tokenPattern:    regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		sentencePattern: regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
		stopwords:       defaultStopwords(),
	}
}

// Summarize returns an extract of text at most maxWords long. Text already
// shorter than minWords is returned unchanged. Sentences keep their original
// order in the output.
func (s *FrequencySummarizer) Summarize(ctx context.Context, text string, maxWords, minWords int) (string, error) {
	if maxWords <= 0 {
		maxWords = 300
	}

	text = strings.TrimSpace(text)
	if wordCount(text) <= minWords {
		return text, nil
	}

	sentences := s.sentencePattern.FindAllString(text, -1)
	if len(sentences) == 0 {
		return truncateWords(text, maxWords), nil
	}

	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range s.tokens(sent) {
			if _, ok := s.stopwords[tok]; ok {
				continue
			}
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		if v > maxF {
			maxF = v
		}
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i, sent := range sentences {
		toks := s.tokens(sent)
		score := 0.0
		for _, tok := range toks {
			score += freq[tok]
		}
		// Normalize by sentence length to avoid long-sentence bias.
		if l := float64(len(toks)); l > 0 {
			score /= math.Sqrt(l)
		}
		scores[i] = pair{i, score}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	// Take top-ranked sentences until the word budget runs out.
	budget := maxWords
	var selected []int
	for _, p := range scores {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n := wordCount(sentences[p.idx])
		if n > budget && len(selected) > 0 {
			continue
		}
		selected = append(selected, p.idx)
		budget -= n
		if budget <= 0 {
			break
		}
	}
	sort.Ints(selected)

	out := make([]string, 0, len(selected))
	for _, idx := range selected {
		out = append(out, strings.TrimSpace(sentences[idx]))
	}
	return truncateWords(strings.Join(out, " "), maxWords), nil
}

func (s *FrequencySummarizer) tokens(text string) []string {
	return s.tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

// truncateWords hard-caps text at n words.
func truncateWords(text string, n int) string {
	fields := strings.Fields(text)
	if len(fields) <= n {
		return text
	}
	return strings.Join(fields[:n], " ")
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for",
		"to", "of", "in", "on", "at", "by", "with", "as", "is", "are",
		"was", "were", "be", "been", "being", "it", "this", "that", "these",
		"those", "from", "up", "down", "over", "under", "again", "further",
		"than", "so", "such", "into", "about", "between", "through",
		"during", "before", "after", "above", "below", "out", "off", "own",
		"same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
