package evidence

import (
	"strings"

	"github.com/CrisisMapAI/crisismap-mvp/pkg/config"
)

// Profile tunes gathering for one class of query. The zero Profile is the
// default behavior: web and database searched with the caller's budget.
type Profile struct {
	Name string
	// match terms; a query matches when it contains all of them.
	match []string
	// ResultBudget overrides the query's web result budget when positive.
	ResultBudget int
	// SkipDatabaseMinWebHits skips the database search once the web returned
	// at least this many results. Zero disables the skip.
	SkipDatabaseMinWebHits int
	// ExtraTerms are appended to the web search query.
	ExtraTerms []string
}

// Matches reports whether the query text falls under this profile.
func (p Profile) Matches(query string) bool {
	if len(p.match) == 0 {
		return false
	}
	lower := strings.ToLower(query)
	for _, term := range p.match {
		if !strings.Contains(lower, term) {
			return false
		}
	}
	return true
}

// ProfilesFromConfig converts configured profiles.
func ProfilesFromConfig(cfgs []config.ProfileConfig) []Profile {
	out := make([]Profile, 0, len(cfgs))
	for _, c := range cfgs {
		match := make([]string, len(c.Match))
		for i, m := range c.Match {
			match[i] = strings.ToLower(m)
		}
		out = append(out, Profile{
			Name:                   c.Name,
			match:                  match,
			ResultBudget:           c.ResultBudget,
			SkipDatabaseMinWebHits: c.SkipDatabaseMinWebHits,
			ExtraTerms:             c.ExtraTerms,
		})
	}
	return out
}

// classify returns the first matching profile, or the zero Profile.
func classify(profiles []Profile, query string) Profile {
	for _, p := range profiles {
		if p.Matches(query) {
			return p
		}
	}
	return Profile{}
}
