// Package domain defines core domain types, constants, and validation for the
// CrisisMap engine. It acts as the validation gate at pipeline entry points.
package domain

import "strings"

// Category classifies a crisis event.
type Category string

const (
	CategoryEarthquake Category = "earthquake"
	CategoryVolcano    Category = "volcano"
	CategoryTsunami    Category = "tsunami"
	CategoryHurricane  Category = "hurricane"
	CategoryFlood      Category = "flood"
	CategoryWildfire   Category = "wildfire"
	CategoryTornado    Category = "tornado"
	CategoryDrought    Category = "drought"
	CategoryLandslide  Category = "landslide"
	CategoryEpidemic   Category = "epidemic"
	CategoryOther      Category = "other"
)

// ValidCategories is the set of recognised crisis categories.
var ValidCategories = map[Category]bool{
	CategoryEarthquake: true, CategoryVolcano: true, CategoryTsunami: true,
	CategoryHurricane: true, CategoryFlood: true, CategoryWildfire: true,
	CategoryTornado: true, CategoryDrought: true, CategoryLandslide: true,
	CategoryEpidemic: true, CategoryOther: true,
}

// CrisisEvent is a stored crisis record. Text carries the full description,
// Summary a condensed one; at least one of the two must be present.
type CrisisEvent struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Summary    string            `json:"summary,omitempty"`
	Text       string            `json:"text,omitempty"`
	Location   string            `json:"location,omitempty"`
	Country    string            `json:"country,omitempty"`
	Category   Category          `json:"category,omitempty"`
	Date       string            `json:"date,omitempty"`
	Casualties string            `json:"casualties,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// ContentText returns the text used as generation context: Text when present,
// otherwise Summary.
func (e CrisisEvent) ContentText() string {
	if strings.TrimSpace(e.Text) != "" {
		return e.Text
	}
	return e.Summary
}

// DatabaseEvidence is a crisis event retrieved by similarity search. Score is
// only meaningful relative to other DatabaseEvidence from the same query.
type DatabaseEvidence struct {
	Event CrisisEvent `json:"event"`
	Score float32     `json:"score"`
}

// ContentText returns the evidence content string.
func (d DatabaseEvidence) ContentText() string { return d.Event.ContentText() }

// WebEvidence is a snippet retrieved from the live web.
type WebEvidence struct {
	Title        string `json:"title"`
	Source       string `json:"source"`
	URL          string `json:"url"`
	Content      string `json:"content"`
	DateAccessed string `json:"date_accessed"`
}

// ContentText returns the evidence content string.
func (w WebEvidence) ContentText() string { return w.Content }

// Bundle is the paired result set gathered for one query. Order within each
// list is the source-provided rank order and must be preserved downstream.
type Bundle struct {
	Database []DatabaseEvidence `json:"database"`
	Web      []WebEvidence      `json:"web"`
}

// Empty reports whether no evidence was gathered from either source.
func (b Bundle) Empty() bool { return len(b.Database) == 0 && len(b.Web) == 0 }

// DefaultMaxResults bounds evidence retrieved per source when the caller does
// not specify a limit.
const DefaultMaxResults = 5

// Query is a user question about crisis events.
type Query struct {
	Text       string `json:"text"`
	MaxResults int    `json:"max_results,omitempty"`
}

// Limit returns the effective result bound.
func (q Query) Limit() int {
	if q.MaxResults > 0 {
		return q.MaxResults
	}
	return DefaultMaxResults
}

// Citation attributes part of an answer to a titled source.
type Citation struct {
	Title  string `json:"title"`
	Source string `json:"source"`
}
