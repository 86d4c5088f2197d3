package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"admission-chatbot-be/pkg/store"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Client wraps the Neo4j driver for structured enrichment lookups over the
// admissions knowledge graph (majors, programmes, tuition, requirements).
type Client struct {
	driver   neo4j.DriverWithContext
	database string
	timeout  time.Duration
}

type Config struct {
	URI      string
	User     string
	Password string
	Database string
	Timeout  time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("graph: uri required")
	}
	if cfg.User == "" {
		cfg.User = "neo4j"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	auth := neo4j.BasicAuth(cfg.User, cfg.Password, "")
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(c *neo4j.Config) {
		c.SocketConnectTimeout = cfg.Timeout
	})
	if err != nil {
		return nil, fmt.Errorf("graph: init driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("graph: verify connectivity: %w", err)
	}

	return &Client{
		driver:   driver,
		database: cfg.Database,
		timeout:  cfg.Timeout,
	}, nil
}

// TraverseRelated finds graph entities whose names match the query terms and
// returns them together with their directly linked facts. Scores decay with
// result rank since the full-text index returns best matches first.
func (c *Client) TraverseRelated(ctx context.Context, query string, limit int) ([]store.Fragment, error) {
	if limit <= 0 {
		limit = 5
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: c.database,
	})
	defer session.Close(ctx)

	records, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
			CALL db.index.fulltext.queryNodes('entity_names', $query)
			YIELD node, score
			MATCH (node)-[r]-(related)
			RETURN node.id AS id, node.name AS name,
			       collect(DISTINCT related.name + ': ' + coalesce(related.summary, '')) AS facts,
			       score
			ORDER BY score DESC
			LIMIT $limit`,
			map[string]any{"query": sanitizeQuery(query), "limit": limit},
		)
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("graph: traverse: %w", err)
	}

	recs, _ := records.([]*neo4j.Record)
	fragments := make([]store.Fragment, 0, len(recs))
	for i, rec := range recs {
		id, _ := rec.Get("id")
		name, _ := rec.Get("name")
		facts, _ := rec.Get("facts")

		var content strings.Builder
		if factList, ok := facts.([]any); ok {
			for _, f := range factList {
				if s, ok := f.(string); ok && s != "" {
					content.WriteString(s)
					content.WriteString("\n")
				}
			}
		}

		fragments = append(fragments, store.Fragment{
			ID:      fmt.Sprintf("%v", id),
			Title:   fmt.Sprintf("%v", name),
			Content: content.String(),
			// Rank-based: the graph index does not expose a normalized score.
			Score:  0.7 - float64(i)*0.05,
			Source: "graph",
		})
	}

	return fragments, nil
}

// sanitizeQuery strips Lucene special characters from user-derived terms.
func sanitizeQuery(q string) string {
	replacer := strings.NewReplacer(
		"+", " ", "-", " ", "&", " ", "|", " ", "!", " ", "(", " ", ")", " ",
		"{", " ", "}", " ", "[", " ", "]", " ", "^", " ", "\"", " ", "~", " ",
		"*", " ", "?", " ", ":", " ", "\\", " ", "/", " ",
	)
	return strings.TrimSpace(replacer.Replace(q))
}

func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.driver == nil {
		return nil
	}
	return c.driver.Close(ctx)
}
