// Package textfmt cleans up generated answer text: paragraph reflow, sentence
// capitalization, and proper-noun casing. Normalization is lossless (only
// whitespace and letter case change) and idempotent.
package textfmt

import (
	"regexp"
	"strings"
	"unicode"
)

const sourcesMarker = "\n\n**Sources:**"

var (
	excessNewlines = regexp.MustCompile(`\n{3,}`)
	innerNewlines  = regexp.MustCompile(`\s*\n\s*`)
	multiSpace     = regexp.MustCompile(`[ \t]{2,}`)
)

// Normalizer applies formatting rules to answer text.
type Normalizer struct {
	properNouns []properNoun
}

type properNoun struct {
	pattern *regexp.Regexp
	replace string
}

// New creates a Normalizer. words is a gazetteer of lowercase proper nouns to
// re-capitalise wherever they appear as standalone words.
func New(words []string) *Normalizer {
	nouns := make([]properNoun, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		nouns = append(nouns, properNoun{
			pattern: regexp.MustCompile(`\b` + regexp.QuoteMeta(w) + `\b`),
			replace: capitalize(w),
		})
	}
	return &Normalizer{properNouns: nouns}
}

// Normalize reformats answer text. A bold header line and a trailing sources
// block pass through untouched; the body in between is reflowed and
// re-capitalised.
func (n *Normalizer) Normalize(text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}

	header, body := peelHeader(text)
	body, sources := peelSources(body)

	paragraphs := strings.Split(excessNewlines.ReplaceAllString(body, "\n\n"), "\n\n")
	formatted := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		p = innerNewlines.ReplaceAllString(p, " ")
		p = multiSpace.ReplaceAllString(p, " ")
		p = fixSentences(p)
		p = n.fixProperNouns(p)
		formatted = append(formatted, p)
	}

	return header + strings.Join(formatted, "\n\n") + sources
}

// peelHeader splits off a leading "**...**" header line.
func peelHeader(text string) (header, body string) {
	if !strings.HasPrefix(text, "**") {
		return "", text
	}
	idx := strings.Index(text, "\n\n")
	if idx < 0 {
		return "", text
	}
	return text[:idx+2], text[idx+2:]
}

// peelSources splits off the citation block so it survives verbatim.
func peelSources(text string) (body, sources string) {
	idx := strings.Index(text, sourcesMarker)
	if idx < 0 {
		return text, ""
	}
	return text[:idx], text[idx:]
}

// fixSentences repairs sentence boundaries and capitalization within one
// reflowed paragraph. A terminator glued to an uppercase letter gets a space
// inserted; each sentence's first letter is capitalized unless the sentence
// opens with a quote.
func fixSentences(p string) string {
	runes := []rune(p)
	out := make([]rune, 0, len(runes)+8)
	capNext := true

	for i, r := range runes {
		if capNext {
			switch {
			case isQuote(r):
				// Quote-initial sentences keep their own casing.
				capNext = false
			case unicode.IsLetter(r):
				out = append(out, unicode.ToUpper(r))
				capNext = false
				continue
			case !unicode.IsSpace(r):
				capNext = false
			}
		}
		out = append(out, r)
		if isTerminator(r) {
			switch {
			case i+1 >= len(runes):
				capNext = true
			case unicode.IsUpper(runes[i+1]):
				// Glued sentence boundary, e.g. "continue.Officials".
				out = append(out, ' ')
				capNext = true
			case unicode.IsSpace(runes[i+1]) || isQuote(runes[i+1]):
				capNext = true
			}
			// Otherwise the terminator is intra-token ("7.8", "example.com").
		}
	}
	return string(out)
}

func (n *Normalizer) fixProperNouns(p string) string {
	for _, pn := range n.properNouns {
		p = pn.pattern.ReplaceAllString(p, pn.replace)
	}
	return p
}

func isTerminator(r rune) bool { return r == '.' || r == '!' || r == '?' }

func isQuote(r rune) bool {
	switch r {
	case '\'', '"', '“', '‘':
		return true
	}
	return false
}

func capitalize(w string) string {
	runes := []rune(w)
	if len(runes) == 0 {
		return w
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
