package answer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/CrisisMapAI/crisismap-mvp/engine/domain"
	"github.com/CrisisMapAI/crisismap-mvp/engine/evidence"
	"github.com/CrisisMapAI/crisismap-mvp/engine/respond"
	"github.com/CrisisMapAI/crisismap-mvp/engine/textfmt"
)

type fakeWeb struct{ results []domain.WebEvidence }

func (f *fakeWeb) SearchDisasterInfo(_ context.Context, _ string, max int) []domain.WebEvidence {
	if len(f.results) > max {
		return f.results[:max]
	}
	return f.results
}

type fakeDB struct{ results []domain.DatabaseEvidence }

func (f *fakeDB) VectorSearch(_ context.Context, _ string, _ int) ([]domain.DatabaseEvidence, error) {
	return f.results, nil
}
func (f *fakeDB) TextSearch(_ context.Context, _ string, _ int) ([]domain.DatabaseEvidence, error) {
	return nil, errors.New("unused")
}

type fakeGen struct {
	out    string
	prompt string
}

func (f *fakeGen) Generate(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.out, nil
}

type fakeSum struct{}

func (fakeSum) Summarize(_ context.Context, text string, _, _ int) (string, error) {
	return text, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testService(gen *fakeGen, web *fakeWeb, db *fakeDB) *Service {
	agg := evidence.New(web, db, nil, discard())
	comp := respond.New(gen, fakeSum{}, discard())
	norm := textfmt.New([]string{"israel", "iran"})
	return New(agg, comp, norm, discard())
}

func TestAnswerEndToEnd(t *testing.T) {
	web := &fakeWeb{results: []domain.WebEvidence{
		{Title: "Report one", Source: "Wikipedia", Content: "web content one"},
		{Title: "Report two", Source: "Web Search Result", Content: "web content two"},
	}}
	db := &fakeDB{results: []domain.DatabaseEvidence{
		{Event: domain.CrisisEvent{Title: "Event A", Text: "db text a"}, Score: 0.9},
		{Event: domain.CrisisEvent{Title: "Event B", Text: "db text b"}, Score: 0.7},
		{Event: domain.CrisisEvent{Title: "Event C", Text: "db text c"}, Score: 0.5},
	}}
	gen := &fakeGen{out: "the earthquake struck at dawn.Officials confirmed casualties."}

	svc := testService(gen, web, db)
	ans, err := svc.Answer(context.Background(), "earthquake update", 5)
	if err != nil {
		t.Fatal(err)
	}

	// Context priority: both web items, then the database events by rank.
	order := []string{"web content one", "web content two", "db text a", "db text b", "db text c"}
	last := -1
	for _, want := range order {
		idx := strings.Index(gen.prompt, want)
		if idx < 0 {
			t.Fatalf("prompt missing %q", want)
		}
		if idx < last {
			t.Errorf("%q out of order", want)
		}
		last = idx
	}

	// Normalization repaired the glued boundary.
	if !strings.Contains(ans.Text, "dawn. Officials confirmed") {
		t.Errorf("text not normalized: %q", ans.Text)
	}

	// Citations belong in Sources only; the block must not leak into Text.
	if strings.Contains(ans.Text, "**Sources:**") || strings.Contains(ans.Text, "Report one (") {
		t.Errorf("citation block leaked into text: %q", ans.Text)
	}

	if len(ans.Sources) != 5 {
		t.Fatalf("sources = %d, want 5", len(ans.Sources))
	}
	wantSources := []domain.Citation{
		{Title: "Report one", Source: "Wikipedia"},
		{Title: "Report two", Source: "Web Search Result"},
		{Title: "Event A", Source: "CrisisMap database"},
		{Title: "Event B", Source: "CrisisMap database"},
		{Title: "Event C", Source: "CrisisMap database"},
	}
	for i, w := range wantSources {
		if ans.Sources[i] != w {
			t.Errorf("source[%d] = %v, want %v", i, ans.Sources[i], w)
		}
	}
}

func TestAnswerTextIsBodyOnly(t *testing.T) {
	web := &fakeWeb{results: []domain.WebEvidence{
		{Title: "Report one", Source: "Wikipedia", Content: "web content one"},
	}}
	gen := &fakeGen{out: "The answer body."}

	svc := testService(gen, web, &fakeDB{})
	ans, err := svc.Answer(context.Background(), "earthquake update", 5)
	if err != nil {
		t.Fatal(err)
	}

	if ans.Text != "The answer body." {
		t.Errorf("text = %q, want body without citation block", ans.Text)
	}
	if len(ans.Sources) != 1 || ans.Sources[0] != (domain.Citation{Title: "Report one", Source: "Wikipedia"}) {
		t.Errorf("sources = %v", ans.Sources)
	}
}

func TestAnswerRejectsInvalidQuery(t *testing.T) {
	svc := testService(&fakeGen{out: "x"}, &fakeWeb{}, &fakeDB{})

	if _, err := svc.Answer(context.Background(), "ab", 5); !errors.Is(err, domain.ErrQueryTooShort) {
		t.Fatalf("expected ErrQueryTooShort, got %v", err)
	}
	if _, err := svc.Answer(context.Background(), "'; DROP TABLE events", 5); !errors.Is(err, domain.ErrQueryInjection) {
		t.Fatalf("expected ErrQueryInjection, got %v", err)
	}
}

func TestAnswerNoEvidence(t *testing.T) {
	svc := testService(&fakeGen{out: "x"}, &fakeWeb{}, &fakeDB{})

	ans, err := svc.Answer(context.Background(), "something obscure", 5)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ans.Text, "something obscure") {
		t.Errorf("no-information response should mention the query: %q", ans.Text)
	}
	if len(ans.Sources) != 0 {
		t.Errorf("sources = %v", ans.Sources)
	}
}
