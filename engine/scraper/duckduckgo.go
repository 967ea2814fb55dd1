package scraper

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/CrisisMapAI/crisismap-mvp/engine/domain"
)

// disasterKeywords gate general search results so unrelated pages don't
// pollute the evidence set.
var disasterKeywords = []string{
	"disaster", "earthquake", "volcano", "tsunami", "hurricane",
	"flood", "wildfire", "fire", "eruption", "cyclone", "typhoon",
	"casualties", "deaths", "killed", "fatalities",
}

// generalSearch queries the DuckDuckGo HTML endpoint and keeps
// disaster-related hits, fetching full page content when possible.
func (s *Scraper) generalSearch(ctx context.Context, terms string, maxResults int) []domain.WebEvidence {
	searchURL := s.duckduckgoBase + "/html/?q=" + url.QueryEscape(terms)

	resp, err := s.get(ctx, "duckduckgo", searchURL)
	if err != nil {
		s.log.Warn("general search failed", "error", err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		s.log.Warn("general search rejected", "status", resp.StatusCode)
		return nil
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil
	}

	var results []domain.WebEvidence
	for _, hit := range parseSearchResults(doc) {
		if len(results) >= maxResults {
			break
		}
		if !disasterRelated(hit.title, hit.snippet) {
			continue
		}

		content := hit.snippet
		if full, err := s.ExtractContent(ctx, hit.url); err == nil && full != "" {
			content = full
		}

		results = append(results, domain.WebEvidence{
			Title:        hit.title,
			Source:       "Web Search Result",
			URL:          hit.url,
			Content:      content,
			DateAccessed: s.accessDate(),
		})
	}
	return results
}

type searchHit struct {
	title   string
	url     string
	snippet string
}

// parseSearchResults extracts hits from DuckDuckGo's HTML result list. Each
// hit lives in an element with class "result"; the link sits under
// "result__title" and the snippet under "result__snippet".
func parseSearchResults(doc *html.Node) []searchHit {
	var hits []searchHit
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || !hasClass(n, "result") {
			return
		}
		var hit searchHit
		walk(n, func(c *html.Node) {
			if c.Type != html.ElementNode {
				return
			}
			switch {
			case hasClass(c, "result__title"):
				if a := findElement(c, "a"); a != nil {
					hit.title = strings.TrimSpace(nodeText(a))
					hit.url = attr(a, "href")
				}
			case hasClass(c, "result__snippet"):
				hit.snippet = strings.TrimSpace(nodeText(c))
			}
		})
		if hit.title != "" && hit.url != "" {
			hits = append(hits, hit)
		}
	})
	return hits
}

func disasterRelated(title, snippet string) bool {
	title = strings.ToLower(title)
	snippet = strings.ToLower(snippet)
	for _, kw := range disasterKeywords {
		if strings.Contains(title, kw) || strings.Contains(snippet, kw) {
			return true
		}
	}
	return false
}
