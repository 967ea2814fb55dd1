// Package respond turns gathered evidence into an answer with citations.
// Generation is tried first; when the model is unavailable the composer walks
// a fallback ladder (extractive summary, raw content, truncation) so a
// degraded answer is still grounded in the evidence.
package respond

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/CrisisMapAI/crisismap-mvp/engine/domain"
	"github.com/CrisisMapAI/crisismap-mvp/pkg/metrics"
)

// dbContextLimit caps how many database events join the generation context
// when web evidence is also present.
const dbContextLimit = 3

// summarizeThreshold is the word count above which raw content gets
// summarized instead of used directly.
const summarizeThreshold = 50

// truncateLimit is the hard word cap for the last-resort fallback.
const truncateLimit = 300

// sourcesMarker separates answer body from the citation block.
const sourcesMarker = "**Sources:**"

// databaseSourceName labels citations of stored events.
const databaseSourceName = "CrisisMap database"

// Generator produces free text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Summarizer condenses text within a word budget.
type Summarizer interface {
	Summarize(ctx context.Context, text string, maxWords, minWords int) (string, error)
}

// Composed is a finished answer: body text with an appended citation block,
// plus the structured citations in the same order.
type Composed struct {
	Text      string
	Citations []domain.Citation
}

// Composer assembles answers from evidence bundles.
type Composer struct {
	gen Generator
	sum Summarizer
	log *slog.Logger
}

// New creates a Composer.
func New(gen Generator, sum Summarizer, log *slog.Logger) *Composer {
	return &Composer{gen: gen, sum: sum, log: log}
}

// Compose builds the answer for a query from its evidence. Web evidence takes
// priority; the top database events supplement it. An empty bundle yields a
// canned no-information response mentioning the query.
func (c *Composer) Compose(ctx context.Context, q domain.Query, b domain.Bundle) Composed {
	if b.Empty() {
		return Composed{
			Text: fmt.Sprintf("I couldn't find any information about '%s'. Please try a different query or check your internet connection.", q.Text),
		}
	}

	content, citations := collectContext(b)

	var prompt string
	if len(b.Web) > 0 {
		prompt = webPrompt(q.Text, content)
	} else {
		prompt = databasePrompt(q.Text, formatEvents(b.Database))
	}

	body, err := c.generate(ctx, prompt)
	if err != nil || strings.TrimSpace(body) == "" {
		if err != nil {
			c.log.Warn("generation failed, using fallback", "error", err)
		}
		body = c.fallback(ctx, q.Text, content)
	}

	text := body
	if len(citations) > 0 {
		text += "\n\n" + sourcesMarker + "\n" + citationLines(citations)
	}
	return Composed{Text: text, Citations: citations}
}

// generate calls the model and strips any prompt echo from the front of the
// response. Small instruct models sometimes replay the prompt verbatim, and
// sometimes with collapsed whitespace.
func (c *Composer) generate(ctx context.Context, prompt string) (string, error) {
	out, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return stripPromptEcho(out, prompt), nil
}

// fallback walks the degradation ladder: summarize long content, use short
// content directly, hard-truncate if the summarizer also fails.
func (c *Composer) fallback(ctx context.Context, query, content string) string {
	header := fmt.Sprintf("**Information about %s**\n\n", query)

	if strings.TrimSpace(content) == "" {
		metrics.ComposeFallbacks.WithLabelValues("apology").Inc()
		return fmt.Sprintf("I'm sorry, a technical issue prevented me from answering '%s'. Please try again later.", query)
	}

	if wordCount(content) > summarizeThreshold {
		summary, err := c.sum.Summarize(ctx, content, truncateLimit, 100)
		if err == nil && strings.TrimSpace(summary) != "" {
			metrics.ComposeFallbacks.WithLabelValues("summarize").Inc()
			return header + summary
		}
		if err != nil {
			c.log.Warn("summarizer failed, truncating", "error", err)
		}
		metrics.ComposeFallbacks.WithLabelValues("truncate").Inc()
		return header + truncateWords(content, truncateLimit)
	}

	metrics.ComposeFallbacks.WithLabelValues("raw").Inc()
	return header + strings.TrimSpace(content)
}

// collectContext joins evidence content (web first, then the top database
// events) and builds the matching citation list.
func collectContext(b domain.Bundle) (string, []domain.Citation) {
	var sb strings.Builder
	var citations []domain.Citation

	for _, w := range b.Web {
		if w.Content != "" {
			sb.WriteString(w.Content)
			sb.WriteString(" \n\n")
		}
		if w.Title != "" {
			citations = append(citations, domain.Citation{Title: w.Title, Source: w.Source})
		}
	}

	dbLimit := len(b.Database)
	if len(b.Web) > 0 && dbLimit > dbContextLimit {
		dbLimit = dbContextLimit
	}
	for _, d := range b.Database[:dbLimit] {
		if text := d.ContentText(); text != "" {
			sb.WriteString(text)
			sb.WriteString(" \n\n")
		}
		if d.Event.Title != "" {
			citations = append(citations, domain.Citation{Title: d.Event.Title, Source: databaseSourceName})
		}
	}

	return sb.String(), citations
}

func webPrompt(query, content string) string {
	return fmt.Sprintf(`I need information about: %s

Please provide a clear, comprehensive answer based only on the following information:

%s

Summarize the most important points and focus specifically on answering the query. Make your response well-structured, factual, and concise. Use proper capitalization for sentences and ensure the text is professionally formatted.`, query, content)
}

func databasePrompt(query, context string) string {
	return fmt.Sprintf(`I need information about: %s

Based on the following crisis data, please provide a helpful, accurate, and concise answer:

%s

Make your response well-structured, factual, and directly focused on answering the query. Ensure proper capitalization and formatting for a professional presentation.`, query, context)
}

// formatEvents renders database events as structured prompt context.
func formatEvents(events []domain.DatabaseEvidence) string {
	items := make([]string, 0, len(events))
	for i, d := range events {
		e := d.Event
		var sb strings.Builder
		fmt.Fprintf(&sb, "Event %d:\n", i+1)
		if e.Title != "" {
			fmt.Fprintf(&sb, "Title: %s\n", e.Title)
		}
		if e.Category != "" {
			fmt.Fprintf(&sb, "Type: %s\n", e.Category)
		}
		var loc []string
		if e.Country != "" {
			loc = append(loc, e.Country)
		}
		if e.Location != "" {
			loc = append(loc, e.Location)
		}
		if len(loc) > 0 {
			fmt.Fprintf(&sb, "Location: %s\n", strings.Join(loc, ", "))
		}
		if e.Date != "" {
			fmt.Fprintf(&sb, "Date: %s\n", e.Date)
		}
		if e.Summary != "" {
			fmt.Fprintf(&sb, "Summary: %s\n", e.Summary)
		} else if e.Text != "" {
			fmt.Fprintf(&sb, "Information: %s\n", e.Text)
		}
		if e.Casualties != "" {
			fmt.Fprintf(&sb, "Casualties: %s\n", e.Casualties)
		}
		for k, v := range e.Extra {
			if v != "" {
				fmt.Fprintf(&sb, "%s: %s\n", k, v)
			}
		}
		items = append(items, sb.String())
	}
	return strings.Join(items, "\n")
}

// stripPromptEcho removes the prompt from the front of a model response,
// tolerating collapsed whitespace in the echo.
func stripPromptEcho(response, prompt string) string {
	resp := strings.TrimSpace(response)
	prompt = strings.TrimSpace(prompt)

	if strings.HasPrefix(resp, prompt) {
		return strings.TrimSpace(resp[len(prompt):])
	}

	normResp := normalizeSpace(resp)
	normPrompt := normalizeSpace(prompt)
	if strings.HasPrefix(normResp, normPrompt) {
		return strings.TrimSpace(normResp[len(normPrompt):])
	}
	return resp
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func citationLines(citations []domain.Citation) string {
	lines := make([]string, len(citations))
	for i, c := range citations {
		source := c.Source
		if source == "" {
			source = "Web"
		}
		lines[i] = fmt.Sprintf("- %s (%s)", c.Title, source)
	}
	return strings.Join(lines, "\n")
}

func wordCount(s string) int { return len(strings.Fields(s)) }

// truncateWords caps text at n words, marking the cut with an ellipsis.
func truncateWords(text string, n int) string {
	fields := strings.Fields(text)
	if len(fields) <= n {
		return strings.TrimSpace(text)
	}
	return strings.Join(fields[:n], " ") + "..."
}
