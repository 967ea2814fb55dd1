package evidence

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/CrisisMapAI/crisismap-mvp/engine/domain"
	"github.com/CrisisMapAI/crisismap-mvp/pkg/config"
)

type fakeWeb struct {
	results   []domain.WebEvidence
	gotQuery  string
	gotBudget int
	calls     int
}

func (f *fakeWeb) SearchDisasterInfo(_ context.Context, query string, maxResults int) []domain.WebEvidence {
	f.calls++
	f.gotQuery = query
	f.gotBudget = maxResults
	if len(f.results) > maxResults {
		return f.results[:maxResults]
	}
	return f.results
}

type fakeDB struct {
	vector     []domain.DatabaseEvidence
	vectorErr  error
	text       []domain.DatabaseEvidence
	textErr    error
	vectorCall int
	textCall   int
}

func (f *fakeDB) VectorSearch(_ context.Context, _ string, _ int) ([]domain.DatabaseEvidence, error) {
	f.vectorCall++
	return f.vector, f.vectorErr
}

func (f *fakeDB) TextSearch(_ context.Context, _ string, _ int) ([]domain.DatabaseEvidence, error) {
	f.textCall++
	return f.text, f.textErr
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func webItems(n int) []domain.WebEvidence {
	items := make([]domain.WebEvidence, n)
	for i := range items {
		items[i] = domain.WebEvidence{Title: "web", Content: "content"}
	}
	return items
}

func dbItems(n int) []domain.DatabaseEvidence {
	items := make([]domain.DatabaseEvidence, n)
	for i := range items {
		items[i] = domain.DatabaseEvidence{Event: domain.CrisisEvent{Title: "event"}, Score: 0.9}
	}
	return items
}

func wildfireProfiles() []Profile {
	return ProfilesFromConfig([]config.ProfileConfig{{
		Name:                   "california-wildfire",
		Match:                  []string{"california", "fire"},
		ResultBudget:           5,
		SkipDatabaseMinWebHits: 2,
		ExtraTerms:             []string{"wildfire", "damage"},
	}})
}

func TestGatherBothSources(t *testing.T) {
	web := &fakeWeb{results: webItems(2)}
	db := &fakeDB{vector: dbItems(3)}
	a := New(web, db, nil, discard())

	b := a.Gather(context.Background(), domain.Query{Text: "turkey earthquake"})
	if len(b.Web) != 2 || len(b.Database) != 3 {
		t.Fatalf("bundle = %d web, %d db", len(b.Web), len(b.Database))
	}
	if web.gotBudget != defaultWebBudget {
		t.Errorf("web budget = %d, want %d", web.gotBudget, defaultWebBudget)
	}
	if db.textCall != 0 {
		t.Error("text fallback should not run when vector search succeeds")
	}
}

func TestGatherVectorFallsBackToText(t *testing.T) {
	db := &fakeDB{vectorErr: errors.New("qdrant down"), text: dbItems(1)}
	a := New(&fakeWeb{}, db, nil, discard())

	b := a.Gather(context.Background(), domain.Query{Text: "flood"})
	if len(b.Database) != 1 {
		t.Fatalf("database = %d, want fallback result", len(b.Database))
	}
	if db.textCall != 1 {
		t.Error("text fallback should run once")
	}
}

func TestGatherEmptyVectorTriggersFallback(t *testing.T) {
	db := &fakeDB{text: dbItems(2)}
	a := New(&fakeWeb{}, db, nil, discard())

	b := a.Gather(context.Background(), domain.Query{Text: "volcano"})
	if len(b.Database) != 2 {
		t.Fatalf("database = %d", len(b.Database))
	}
}

func TestGatherBothSourcesFailing(t *testing.T) {
	db := &fakeDB{vectorErr: errors.New("down"), textErr: errors.New("down")}
	a := New(&fakeWeb{}, db, nil, discard())

	b := a.Gather(context.Background(), domain.Query{Text: "tsunami"})
	if !b.Empty() {
		t.Fatalf("bundle should be empty, got %+v", b)
	}
}

func TestProfileSkipsDatabase(t *testing.T) {
	web := &fakeWeb{results: webItems(5)}
	db := &fakeDB{vector: dbItems(3)}
	a := New(web, db, wildfireProfiles(), discard())

	b := a.Gather(context.Background(), domain.Query{Text: "california fire 2020"})
	if len(b.Web) != 5 {
		t.Fatalf("web = %d, want raised budget 5", len(b.Web))
	}
	if len(b.Database) != 0 || db.vectorCall != 0 {
		t.Error("database should be skipped with enough web hits")
	}
	if web.gotQuery != "california fire 2020 wildfire damage" {
		t.Errorf("web query = %q", web.gotQuery)
	}
}

func TestProfileStillSearchesDatabaseOnFewWebHits(t *testing.T) {
	web := &fakeWeb{results: webItems(1)}
	db := &fakeDB{vector: dbItems(2)}
	a := New(web, db, wildfireProfiles(), discard())

	b := a.Gather(context.Background(), domain.Query{Text: "california fire"})
	if len(b.Web) != 1 {
		t.Fatalf("web = %d", len(b.Web))
	}
	if len(b.Database) != 2 {
		t.Fatalf("database = %d, want searched below skip threshold", len(b.Database))
	}
}

func TestProfileMatching(t *testing.T) {
	profiles := wildfireProfiles()

	if p := classify(profiles, "California wildfire update"); p.Name != "california-wildfire" {
		t.Errorf("profile = %q", p.Name)
	}
	if p := classify(profiles, "fire in australia"); p.Name != "" {
		t.Errorf("partial match should not classify, got %q", p.Name)
	}
	if p := classify(nil, "anything"); p.Name != "" || p.SkipDatabaseMinWebHits != 0 {
		t.Errorf("no profiles should yield zero profile, got %+v", p)
	}
}
