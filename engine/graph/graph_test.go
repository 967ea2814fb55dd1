package graph

import (
	"testing"

	"github.com/CrisisMapAI/crisismap-mvp/engine/domain"
)

func TestEventPropsRoundTrip(t *testing.T) {
	in := domain.CrisisEvent{
		ID:         "ev-1",
		Title:      "Tohoku Earthquake and Tsunami",
		Summary:    "A 9.1 magnitude undersea earthquake.",
		Text:       "The earthquake triggered tsunami waves up to 40 metres.",
		Location:   "Tohoku",
		Country:    "Japan",
		Category:   domain.CategoryEarthquake,
		Date:       "2011-03-11",
		Casualties: "19759",
		Extra:      map[string]string{"magnitude": "9.1"},
	}

	out := eventFromProps(eventToProps(in))

	if out.ID != in.ID || out.Title != in.Title || out.Text != in.Text {
		t.Errorf("round trip lost core fields: %+v", out)
	}
	if out.Category != domain.CategoryEarthquake {
		t.Errorf("category = %q", out.Category)
	}
	if out.Extra["magnitude"] != "9.1" {
		t.Errorf("extra = %v", out.Extra)
	}
}

func TestEventFromPropsIgnoresNonStringExtras(t *testing.T) {
	props := map[string]any{
		"id":        "ev-2",
		"title":     "Flood",
		"extra_num": int64(7),
		"extra_ok":  "yes",
	}
	e := eventFromProps(props)
	if _, ok := e.Extra["num"]; ok {
		t.Error("non-string extra should be dropped")
	}
	if e.Extra["ok"] != "yes" {
		t.Errorf("extra = %v", e.Extra)
	}
}

func TestStrPropMissingKey(t *testing.T) {
	if got := strProp(map[string]any{"a": 1}, "a"); got != "" {
		t.Errorf("non-string prop should yield empty, got %q", got)
	}
	if got := strProp(nil, "missing"); got != "" {
		t.Errorf("missing prop should yield empty, got %q", got)
	}
}
