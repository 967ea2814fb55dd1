package respond

import (
	"regexp"
	"strings"

	"github.com/CrisisMapAI/crisismap-mvp/engine/domain"
)

// citationLine matches "- Title (Source)" with optional surrounding space.
var citationLine = regexp.MustCompile(`^-\s*(.*?)\s*\(([^()]*)\)\s*$`)

// ExtractSources splits an answer into its body and structured citations.
// Text without a sources marker comes back unchanged with no citations. Only
// lines starting with "-" are citation candidates; a dash line that does not
// parse degrades to a citation with source "Unknown", anything else in the
// block is ignored.
func ExtractSources(text string) (string, []domain.Citation) {
	idx := strings.Index(text, sourcesMarker)
	if idx < 0 {
		return text, nil
	}

	body := strings.TrimRight(text[:idx], " \n")
	block := text[idx+len(sourcesMarker):]

	var citations []domain.Citation
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "-") {
			continue
		}
		if m := citationLine.FindStringSubmatch(line); m != nil {
			source := m[2]
			if source == "" {
				source = "Unknown"
			}
			citations = append(citations, domain.Citation{Title: m[1], Source: source})
			continue
		}
		citations = append(citations, domain.Citation{
			Title:  strings.TrimSpace(strings.TrimPrefix(line, "-")),
			Source: "Unknown",
		})
	}
	return body, citations
}
