package respond

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/CrisisMapAI/crisismap-mvp/engine/domain"
)

type fakeGen struct {
	out    string
	err    error
	prompt string
	echo   bool
}

func (f *fakeGen) Generate(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	if f.err != nil {
		return "", f.err
	}
	if f.echo {
		return prompt + "\n" + f.out, nil
	}
	return f.out, nil
}

type fakeSum struct {
	out string
	err error
}

func (f *fakeSum) Summarize(_ context.Context, text string, _, _ int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.out != "" {
		return f.out, nil
	}
	return text, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testBundle() domain.Bundle {
	return domain.Bundle{
		Web: []domain.WebEvidence{
			{Title: "Quake report", Source: "Wikipedia", Content: "web one content"},
			{Title: "News story", Source: "Web Search Result", Content: "web two content"},
		},
		Database: []domain.DatabaseEvidence{
			{Event: domain.CrisisEvent{Title: "Event A", Text: "db one"}, Score: 0.9},
			{Event: domain.CrisisEvent{Title: "Event B", Text: "db two"}, Score: 0.7},
			{Event: domain.CrisisEvent{Title: "Event C", Text: "db three"}, Score: 0.5},
			{Event: domain.CrisisEvent{Title: "Event D", Text: "db four"}, Score: 0.3},
		},
	}
}

func TestComposeEmptyBundle(t *testing.T) {
	c := New(&fakeGen{}, &fakeSum{}, discard())
	got := c.Compose(context.Background(), domain.Query{Text: "atlantis flood"}, domain.Bundle{})
	if !strings.Contains(got.Text, "atlantis flood") {
		t.Errorf("canned response should mention the query: %q", got.Text)
	}
	if len(got.Citations) != 0 {
		t.Errorf("citations = %v", got.Citations)
	}
}

func TestComposeEvidencePriority(t *testing.T) {
	gen := &fakeGen{out: "The earthquake was severe."}
	c := New(gen, &fakeSum{}, discard())

	got := c.Compose(context.Background(), domain.Query{Text: "earthquake"}, testBundle())

	// Context order: web items first, then top three database events.
	order := []string{"web one content", "web two content", "db one", "db two", "db three"}
	last := -1
	for _, want := range order {
		idx := strings.Index(gen.prompt, want)
		if idx < 0 {
			t.Fatalf("prompt missing %q", want)
		}
		if idx < last {
			t.Errorf("%q out of order in prompt", want)
		}
		last = idx
	}
	if strings.Contains(gen.prompt, "db four") {
		t.Error("fourth database event should be excluded from context")
	}

	wantCitations := []domain.Citation{
		{Title: "Quake report", Source: "Wikipedia"},
		{Title: "News story", Source: "Web Search Result"},
		{Title: "Event A", Source: databaseSourceName},
		{Title: "Event B", Source: databaseSourceName},
		{Title: "Event C", Source: databaseSourceName},
	}
	if len(got.Citations) != len(wantCitations) {
		t.Fatalf("citations = %d, want %d", len(got.Citations), len(wantCitations))
	}
	for i, w := range wantCitations {
		if got.Citations[i] != w {
			t.Errorf("citation[%d] = %v, want %v", i, got.Citations[i], w)
		}
	}
	if !strings.Contains(got.Text, sourcesMarker) {
		t.Error("answer should carry a sources block")
	}
	if !strings.Contains(got.Text, "- Event A ("+databaseSourceName+")") {
		t.Errorf("citation line missing: %q", got.Text)
	}
}

func TestComposeStripsPromptEcho(t *testing.T) {
	gen := &fakeGen{out: "A clean answer.", echo: true}
	c := New(gen, &fakeSum{}, discard())

	got := c.Compose(context.Background(), domain.Query{Text: "flood"}, testBundle())
	if strings.Contains(got.Text, "I need information about") {
		t.Errorf("prompt echo not stripped: %q", got.Text)
	}
	if !strings.HasPrefix(got.Text, "A clean answer.") {
		t.Errorf("text = %q", got.Text)
	}
}

func TestComposeFallbackToSummarizer(t *testing.T) {
	longContent := strings.Repeat("the storm caused widespread damage across the coast ", 20)
	bundle := domain.Bundle{Web: []domain.WebEvidence{{Title: "Storm", Source: "Wikipedia", Content: longContent}}}

	c := New(&fakeGen{err: errors.New("model down")}, &fakeSum{out: "Condensed storm report."}, discard())
	got := c.Compose(context.Background(), domain.Query{Text: "storm"}, bundle)

	if !strings.HasPrefix(got.Text, "**Information about storm**\n\n") {
		t.Errorf("fallback header missing: %q", got.Text)
	}
	if !strings.Contains(got.Text, "Condensed storm report.") {
		t.Errorf("summary missing: %q", got.Text)
	}
}

func TestComposeFallbackShortContentUsedRaw(t *testing.T) {
	bundle := domain.Bundle{Web: []domain.WebEvidence{{Title: "Note", Source: "Wikipedia", Content: "brief note on the quake"}}}
	c := New(&fakeGen{err: errors.New("down")}, &fakeSum{err: errors.New("should not be called")}, discard())

	got := c.Compose(context.Background(), domain.Query{Text: "quake"}, bundle)
	if !strings.Contains(got.Text, "brief note on the quake") {
		t.Errorf("raw content missing: %q", got.Text)
	}
}

func TestComposeFallbackTruncates(t *testing.T) {
	longContent := strings.Repeat("word ", 500)
	bundle := domain.Bundle{Web: []domain.WebEvidence{{Title: "Long", Source: "Wikipedia", Content: longContent}}}
	c := New(&fakeGen{err: errors.New("down")}, &fakeSum{err: errors.New("also down")}, discard())

	got := c.Compose(context.Background(), domain.Query{Text: "length"}, bundle)
	body, _ := ExtractSources(got.Text)
	if !strings.Contains(body, "...") {
		t.Errorf("truncation marker missing: %q", body)
	}
	words := strings.Fields(strings.TrimPrefix(body, "**Information about length**"))
	if len(words) > truncateLimit+1 {
		t.Errorf("body has %d words, cap is %d", len(words), truncateLimit)
	}
}

func TestComposeFallbackApologyOnEmptyContent(t *testing.T) {
	bundle := domain.Bundle{Web: []domain.WebEvidence{{Title: "Stub", Source: "Wikipedia"}}}
	c := New(&fakeGen{err: errors.New("down")}, &fakeSum{}, discard())

	got := c.Compose(context.Background(), domain.Query{Text: "mystery event"}, bundle)
	if !strings.Contains(got.Text, "technical issue") || !strings.Contains(got.Text, "mystery event") {
		t.Errorf("apology missing: %q", got.Text)
	}
}

func TestComposeDatabaseOnlyPrompt(t *testing.T) {
	gen := &fakeGen{out: "Answer."}
	c := New(gen, &fakeSum{}, discard())

	bundle := domain.Bundle{Database: []domain.DatabaseEvidence{{
		Event: domain.CrisisEvent{
			Title:      "Haiti Earthquake",
			Category:   domain.CategoryEarthquake,
			Country:    "Haiti",
			Date:       "2010-01-12",
			Summary:    "Catastrophic quake near Port-au-Prince.",
			Casualties: "220000",
		},
		Score: 0.95,
	}}}
	c.Compose(context.Background(), domain.Query{Text: "haiti earthquake"}, bundle)

	for _, want := range []string{"Event 1:", "Title: Haiti Earthquake", "Type: earthquake", "Location: Haiti", "Casualties: 220000", "crisis data"} {
		if !strings.Contains(gen.prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestStripPromptEchoNormalizedWhitespace(t *testing.T) {
	prompt := "Line one\n\nLine two"
	response := "Line one Line two And the actual answer."
	if got := stripPromptEcho(response, prompt); got != "And the actual answer." {
		t.Errorf("got %q", got)
	}
}

func TestExtractSourcesRoundTrip(t *testing.T) {
	gen := &fakeGen{out: "Body of the answer."}
	c := New(gen, &fakeSum{}, discard())

	composed := c.Compose(context.Background(), domain.Query{Text: "quake"}, testBundle())
	body, citations := ExtractSources(composed.Text)

	if body != "Body of the answer." {
		t.Errorf("body = %q", body)
	}
	if len(citations) != len(composed.Citations) {
		t.Fatalf("citations = %d, want %d", len(citations), len(composed.Citations))
	}
	for i := range citations {
		if citations[i] != composed.Citations[i] {
			t.Errorf("citation[%d] = %v, want %v", i, citations[i], composed.Citations[i])
		}
	}
}

func TestExtractSources(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantBody  string
		wantCites []domain.Citation
	}{
		{
			name:     "no marker",
			in:       "Just an answer.",
			wantBody: "Just an answer.",
		},
		{
			name:     "well formed",
			in:       "Answer.\n\n**Sources:**\n- Title One (Wikipedia)\n- Title Two (Web Search Result)",
			wantBody: "Answer.",
			wantCites: []domain.Citation{
				{Title: "Title One", Source: "Wikipedia"},
				{Title: "Title Two", Source: "Web Search Result"},
			},
		},
		{
			name:     "prose lines in block skipped",
			in:       "Answer.\n\n**Sources:**\nThese sources were consulted:\n- Real title (Wikipedia)",
			wantBody: "Answer.",
			wantCites: []domain.Citation{
				{Title: "Real title", Source: "Wikipedia"},
			},
		},
		{
			name:     "malformed line",
			in:       "Answer.\n\n**Sources:**\n- A bare title line",
			wantBody: "Answer.",
			wantCites: []domain.Citation{
				{Title: "A bare title line", Source: "Unknown"},
			},
		},
		{
			name:     "empty parens",
			in:       "Answer.\n\n**Sources:**\n- Title ()",
			wantBody: "Answer.",
			wantCites: []domain.Citation{
				{Title: "Title", Source: "Unknown"},
			},
		},
		{
			name:     "parenthetical in title",
			in:       "Answer.\n\n**Sources:**\n- Event (2023) report (Wikipedia)",
			wantBody: "Answer.",
			wantCites: []domain.Citation{
				{Title: "Event (2023) report", Source: "Wikipedia"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, cites := ExtractSources(tt.in)
			if body != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
			if len(cites) != len(tt.wantCites) {
				t.Fatalf("citations = %v, want %v", cites, tt.wantCites)
			}
			for i := range cites {
				if cites[i] != tt.wantCites[i] {
					t.Errorf("citation[%d] = %v, want %v", i, cites[i], tt.wantCites[i])
				}
			}
		})
	}
}
