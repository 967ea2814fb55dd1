package scraper

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	referencePattern  = regexp.MustCompile(`\[\d+\]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// skipElements are stripped before text extraction.
var skipElements = map[string]bool{
	"script": true, "style": true, "header": true, "footer": true, "nav": true,
}

// ExtractContent fetches a URL and returns its main text content. It prefers
// a main/article/content container and falls back to joining paragraphs.
func (s *Scraper) ExtractContent(ctx context.Context, pageURL string) (string, error) {
	resp, err := s.get(ctx, "page", pageURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("scraper: fetch %s: status %d", pageURL, resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return "", fmt.Errorf("scraper: parse %s: %w", pageURL, err)
	}

	main := findMainContent(doc)
	var text string
	if main != nil {
		text = nodeText(main)
	} else {
		var parts []string
		walk(doc, func(n *html.Node) {
			if n.Type == html.ElementNode && n.Data == "p" {
				if t := strings.TrimSpace(nodeText(n)); t != "" {
					parts = append(parts, t)
				}
			}
		})
		text = strings.Join(parts, "\n\n")
	}
	return cleanContent(text), nil
}

// findMainContent returns the first main/article element or a node whose
// id/class is content or main.
func findMainContent(doc *html.Node) *html.Node {
	var found *html.Node
	walk(doc, func(n *html.Node) {
		if found != nil || n.Type != html.ElementNode {
			return
		}
		if n.Data == "main" || n.Data == "article" {
			found = n
			return
		}
		id := attr(n, "id")
		if id == "content" || id == "main" || hasClass(n, "content") || hasClass(n, "main") {
			found = n
		}
	})
	return found
}

// cleanContent strips citation markers and collapses whitespace runs.
func cleanContent(text string) string {
	if text == "" {
		return ""
	}
	text = referencePattern.ReplaceAllString(text, "")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// --- node helpers ---

// walk visits n and its descendants in document order, skipping pruned
// elements (scripts, navigation chrome).
func walk(n *html.Node, visit func(*html.Node)) {
	if n.Type == html.ElementNode && skipElements[n.Data] {
		return
	}
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

// nodeText concatenates all text nodes under n.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	})
	return sb.String()
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func findByID(n *html.Node, id string) *html.Node {
	var found *html.Node
	walk(n, func(c *html.Node) {
		if found == nil && c.Type == html.ElementNode && attr(c, "id") == id {
			found = c
		}
	})
	return found
}

func findElement(n *html.Node, name string) *html.Node {
	var found *html.Node
	walk(n, func(c *html.Node) {
		if found == nil && c.Type == html.ElementNode && c.Data == name {
			found = c
		}
	})
	return found
}
