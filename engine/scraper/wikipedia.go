package scraper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/CrisisMapAI/crisismap-mvp/engine/domain"
)

const wikiParagraphBudget = 3

// searchWikipedia resolves the best-matching Wikipedia page for the search
// terms and extracts its lead paragraphs plus any casualty section.
func (s *Scraper) searchWikipedia(ctx context.Context, terms string) (domain.WebEvidence, bool) {
	searchURL := s.wikiAPIBase + "/w/api.php?action=opensearch&limit=1&namespace=0&format=json&search=" +
		url.QueryEscape(terms)

	resp, err := s.get(ctx, "wikipedia", searchURL)
	if err != nil {
		s.log.Warn("wikipedia search failed", "error", err)
		return domain.WebEvidence{}, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.WebEvidence{}, false
	}

	// Opensearch responds with [query, [titles], [descriptions], [urls]].
	var raw []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil || len(raw) < 4 {
		return domain.WebEvidence{}, false
	}
	var titles, urls []string
	_ = json.Unmarshal(raw[1], &titles)
	_ = json.Unmarshal(raw[3], &urls)
	if len(urls) == 0 {
		return domain.WebEvidence{}, false
	}
	pageURL := urls[0]
	pageTitle := "Wikipedia Result"
	if len(titles) > 0 {
		pageTitle = titles[0]
	}

	pageResp, err := s.get(ctx, "wikipedia", pageURL)
	if err != nil {
		s.log.Warn("wikipedia page fetch failed", "url", pageURL, "error", err)
		return domain.WebEvidence{}, false
	}
	defer pageResp.Body.Close()
	if pageResp.StatusCode != http.StatusOK {
		return domain.WebEvidence{}, false
	}

	doc, err := html.Parse(pageResp.Body)
	if err != nil {
		return domain.WebEvidence{}, false
	}

	content := wikiPageContent(doc)
	if content == "" {
		return domain.WebEvidence{}, false
	}

	return domain.WebEvidence{
		Title:        pageTitle,
		Source:       "Wikipedia",
		URL:          pageURL,
		Content:      cleanContent(content),
		DateAccessed: s.accessDate(),
	}, true
}

// wikiPageContent pulls the lead paragraphs out of the article body, then
// appends paragraphs under any casualty heading.
func wikiPageContent(doc *html.Node) string {
	body := findByID(doc, "mw-content-text")
	if body == nil {
		body = doc
	}

	var sb strings.Builder
	count := 0
	inCasualties := false

	walk(body, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		switch n.Data {
		case "h2", "h3", "h4":
			heading := strings.ToLower(nodeText(n))
			inCasualties = strings.Contains(heading, "casualt") ||
				strings.Contains(heading, "fatalities") ||
				strings.Contains(heading, "deaths")
		case "p":
			text := strings.TrimSpace(nodeText(n))
			if text == "" {
				return
			}
			if count < wikiParagraphBudget || inCasualties {
				sb.WriteString(text)
				sb.WriteString("\n\n")
				count++
			}
		}
	})
	return strings.TrimSpace(sb.String())
}
