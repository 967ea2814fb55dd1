// Package crisisnlp extracts lightweight facets (category, country, year,
// keywords) from free-text crisis queries. It is deliberately heuristic; the
// facets steer search, they do not gate it.
package crisisnlp

import (
	"regexp"
	"strings"

	"github.com/CrisisMapAI/crisismap-mvp/engine/domain"
)

// Facets are the structured hints mined from one query.
type Facets struct {
	Category domain.Category
	Country  string
	Year     string
	Keywords []string
}

// categoryTerms maps trigger words to a crisis category. Checked in a fixed
// order so compound queries resolve deterministically.
var categoryTerms = []struct {
	category domain.Category
	terms    []string
}{
	{domain.CategoryVolcano, []string{"volcano", "volcanic", "eruption"}},
	{domain.CategoryEarthquake, []string{"earthquake", "seismic", "quake"}},
	{domain.CategoryTsunami, []string{"tsunami", "tidal wave"}},
	{domain.CategoryHurricane, []string{"hurricane", "cyclone", "typhoon"}},
	{domain.CategoryFlood, []string{"flood", "flooding"}},
	{domain.CategoryWildfire, []string{"wildfire", "fire", "blaze"}},
	{domain.CategoryTornado, []string{"tornado", "twister"}},
	{domain.CategoryDrought, []string{"drought"}},
	{domain.CategoryLandslide, []string{"landslide", "mudslide"}},
	{domain.CategoryEpidemic, []string{"epidemic", "pandemic", "outbreak"}},
}

// knownCountries is a small lookup for country mentions. Lowercase keys map
// to canonical names.
var knownCountries = map[string]string{
	"usa": "United States", "united states": "United States", "america": "United States",
	"turkey": "Turkey", "syria": "Syria", "japan": "Japan", "china": "China",
	"india": "India", "indonesia": "Indonesia", "philippines": "Philippines",
	"mexico": "Mexico", "chile": "Chile", "haiti": "Haiti", "nepal": "Nepal",
	"pakistan": "Pakistan", "iran": "Iran", "israel": "Israel", "italy": "Italy",
	"greece": "Greece", "morocco": "Morocco", "australia": "Australia",
	"ukraine": "Ukraine", "russia": "Russia", "bangladesh": "Bangladesh",
}

var yearPattern = regexp.MustCompile(`\b(19|20)\d\d\b`)

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "of": true, "for": true,
	"with": true, "about": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "what": true, "when": true,
	"where": true, "who": true, "how": true, "why": true, "which": true,
	"tell": true, "me": true, "my": true, "can": true, "you": true,
	"did": true, "do": true, "does": true, "happened": true, "happen": true,
	"recent": true, "latest": true, "information": true, "info": true,
}

// Extract mines facets from a query.
func Extract(query string) Facets {
	lower := strings.ToLower(query)
	f := Facets{Category: domain.CategoryOther}

	for _, ct := range categoryTerms {
		for _, term := range ct.terms {
			if strings.Contains(lower, term) {
				f.Category = ct.category
				break
			}
		}
		if f.Category != domain.CategoryOther {
			break
		}
	}

	for key, name := range knownCountries {
		if containsWord(lower, key) {
			f.Country = name
			break
		}
	}

	if m := yearPattern.FindString(lower); m != "" {
		f.Year = m
	}

	f.Keywords = Keywords(query)
	return f
}

// Keywords returns the content-bearing words of a query: lowercased,
// punctuation-trimmed, stopwords removed, order preserved, de-duplicated.
func Keywords(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, w := range fields {
		w = strings.Trim(w, ".,;:!?\"'()[]")
		if len(w) < 2 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// SearchTerms expands a query with category-specific terms so web searches
// land on casualty and impact reporting rather than general pages.
func SearchTerms(query string) string {
	lower := strings.ToLower(strings.TrimSpace(query))

	if strings.Contains(lower, "california") &&
		(strings.Contains(lower, "wildfire") || strings.Contains(lower, "fire")) {
		year := yearPattern.FindString(lower)
		if year == "" {
			year = "2020"
		}
		return "california wildfires " + year + " casualties deaths statistics"
	}

	switch Extract(query).Category {
	case domain.CategoryVolcano:
		return lower + " volcanic eruption disaster information casualties deaths"
	case domain.CategoryEarthquake:
		return lower + " earthquake magnitude disaster information casualties deaths"
	case domain.CategoryTsunami:
		return lower + " tsunami disaster information casualties deaths"
	case domain.CategoryHurricane:
		return lower + " hurricane cyclone disaster information casualties deaths"
	case domain.CategoryFlood:
		return lower + " flood disaster information casualties deaths"
	case domain.CategoryWildfire:
		return lower + " wildfire disaster information casualties deaths"
	default:
		return lower + " natural disaster information casualties deaths"
	}
}

// containsWord reports whether text contains word bounded by non-letters.
func containsWord(text, word string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isLetter(text[start-1])
		afterOK := end == len(text) || !isLetter(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
