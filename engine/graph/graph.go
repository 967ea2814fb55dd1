// Package graph stores crisis events in Neo4j and answers relation queries
// over them (events in the same country, events of the same category).
package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/CrisisMapAI/crisismap-mvp/engine/domain"
)

// GraphStore owns all Neo4j operations.
type GraphStore struct {
	driver neo4j.DriverWithContext
}

// New creates a GraphStore over an open driver.
func New(driver neo4j.DriverWithContext) *GraphStore {
	return &GraphStore{driver: driver}
}

// Connect opens a Neo4j driver and wraps it.
func Connect(url, user, password string) (*GraphStore, error) {
	driver, err := neo4j.NewDriverWithContext(url, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, err
	}
	return New(driver), nil
}

// Close releases the underlying driver.
func (g *GraphStore) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

// SaveEvent merges the event node plus its country and category nodes and
// relations in one write transaction.
func (g *GraphStore) SaveEvent(ctx context.Context, e domain.CrisisEvent) error {
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		cypher := `MERGE (ev:Event {id: $id}) SET ev += $props`
		if _, err := tx.Run(ctx, cypher, map[string]any{
			"id":    e.ID,
			"props": eventToProps(e),
		}); err != nil {
			return nil, err
		}

		if e.Country != "" {
			cypher = `MATCH (ev:Event {id: $id})
				MERGE (c:Country {name: $country})
				MERGE (ev)-[:OCCURRED_IN]->(c)`
			if _, err := tx.Run(ctx, cypher, map[string]any{
				"id":      e.ID,
				"country": e.Country,
			}); err != nil {
				return nil, err
			}
		}

		if e.Category != "" {
			cypher = `MATCH (ev:Event {id: $id})
				MERGE (cat:Category {name: $category})
				MERGE (ev)-[:OF_CATEGORY]->(cat)`
			if _, err := tx.Run(ctx, cypher, map[string]any{
				"id":       e.ID,
				"category": string(e.Category),
			}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// GetEvent returns an event by ID.
func (g *GraphStore) GetEvent(ctx context.Context, id string) (domain.CrisisEvent, bool, error) {
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, `MATCH (n:Event {id: $id}) RETURN n`, map[string]any{"id": id})
	if err != nil {
		return domain.CrisisEvent{}, false, err
	}
	if !result.Next(ctx) {
		return domain.CrisisEvent{}, false, nil
	}
	node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "n")
	if err != nil {
		return domain.CrisisEvent{}, false, err
	}
	return eventFromProps(node.Props), true, nil
}

// RelatedEvents returns events sharing a country or category with the given
// facets, most recent first.
func (g *GraphStore) RelatedEvents(ctx context.Context, country string, category domain.Category, limit int) ([]domain.CrisisEvent, error) {
	if limit <= 0 {
		limit = domain.DefaultMaxResults
	}
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MATCH (n:Event)
		WHERE ($country <> '' AND (n)-[:OCCURRED_IN]->(:Country {name: $country}))
		   OR ($category <> '' AND (n)-[:OF_CATEGORY]->(:Category {name: $category}))
		RETURN DISTINCT n
		ORDER BY n.date DESC
		LIMIT $limit`
	result, err := sess.Run(ctx, cypher, map[string]any{
		"country":  country,
		"category": string(category),
		"limit":    limit,
	})
	if err != nil {
		return nil, err
	}
	return collectEvents(ctx, result)
}

// EventsInCountry returns all events recorded for a country.
func (g *GraphStore) EventsInCountry(ctx context.Context, country string) ([]domain.CrisisEvent, error) {
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MATCH (n:Event)-[:OCCURRED_IN]->(:Country {name: $country}) RETURN n ORDER BY n.date DESC`
	result, err := sess.Run(ctx, cypher, map[string]any{"country": country})
	if err != nil {
		return nil, err
	}
	return collectEvents(ctx, result)
}

// collectEvents reads all Event nodes from a result set.
func collectEvents(ctx context.Context, result neo4j.ResultWithContext) ([]domain.CrisisEvent, error) {
	var items []domain.CrisisEvent
	for result.Next(ctx) {
		node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "n")
		if err != nil {
			return nil, err
		}
		items = append(items, eventFromProps(node.Props))
	}
	return items, nil
}

// eventToProps flattens a CrisisEvent into node properties. Extra fields use
// an extra_ prefix so eventFromProps can recover them.
func eventToProps(e domain.CrisisEvent) map[string]any {
	props := map[string]any{
		"id":         e.ID,
		"title":      e.Title,
		"summary":    e.Summary,
		"text":       e.Text,
		"location":   e.Location,
		"country":    e.Country,
		"category":   string(e.Category),
		"date":       e.Date,
		"casualties": e.Casualties,
	}
	for k, v := range e.Extra {
		props["extra_"+k] = v
	}
	return props
}

// eventFromProps constructs a CrisisEvent from Neo4j node properties.
func eventFromProps(props map[string]any) domain.CrisisEvent {
	e := domain.CrisisEvent{
		ID:         strProp(props, "id"),
		Title:      strProp(props, "title"),
		Summary:    strProp(props, "summary"),
		Text:       strProp(props, "text"),
		Location:   strProp(props, "location"),
		Country:    strProp(props, "country"),
		Category:   domain.Category(strProp(props, "category")),
		Date:       strProp(props, "date"),
		Casualties: strProp(props, "casualties"),
	}
	for k, v := range props {
		if len(k) > 6 && k[:6] == "extra_" {
			if s, ok := v.(string); ok {
				if e.Extra == nil {
					e.Extra = make(map[string]string)
				}
				e.Extra[k[6:]] = s
			}
		}
	}
	return e
}

func strProp(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}
