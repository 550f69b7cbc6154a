package semindex

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ontocore/ontocore-server/internal/logger"
)

type neo4jIndex struct {
	driver   neo4j.DriverWithContext
	database string
	log      *logger.Logger
}

// NewFromEnv dials Neo4j using NEO4J_URI/NEO4J_USER/NEO4J_PASSWORD/
// NEO4J_DATABASE, mirroring the teacher's neo4jdb.NewFromEnv shape,
// and verifies connectivity before returning.
func NewFromEnv(baseLog *logger.Logger) (Index, error) {
	if baseLog == nil {
		return nil, fmt.Errorf("semindex: logger required")
	}

	uri := strings.TrimSpace(os.Getenv("NEO4J_URI"))
	if uri == "" {
		return nil, fmt.Errorf("semindex: missing NEO4J_URI")
	}
	user := strings.TrimSpace(os.Getenv("NEO4J_USER"))
	if user == "" {
		user = "neo4j"
	}
	password := os.Getenv("NEO4J_PASSWORD")
	database := strings.TrimSpace(os.Getenv("NEO4J_DATABASE"))

	timeoutSec := 10
	if v := strings.TrimSpace(os.Getenv("NEO4J_TIMEOUT_SECONDS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	auth := neo4j.BasicAuth(user, password, "")
	driver, err := neo4j.NewDriverWithContext(uri, auth, func(cfg *neo4j.Config) {
		cfg.SocketConnectTimeout = time.Duration(timeoutSec) * time.Second
	})
	if err != nil {
		return nil, fmt.Errorf("semindex: init driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("semindex: verify connectivity: %w", err)
	}

	idx := &neo4jIndex{driver: driver, database: database, log: baseLog.With("component", "semindex.Index")}
	if err := idx.ensureSchema(ctx); err != nil {
		idx.log.Warn("semindex schema init failed (continuing)", "error", err)
	}
	return idx, nil
}

func (idx *neo4jIndex) session(ctx context.Context) neo4j.SessionWithContext {
	return idx.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: idx.database,
	})
}

func (idx *neo4jIndex) ensureSchema(ctx context.Context) error {
	session := idx.session(ctx)
	defer session.Close(ctx)
	_, err := session.Run(ctx, `
CREATE CONSTRAINT query_concept_key IF NOT EXISTS
FOR (c:Concept) REQUIRE (c.id, c.branch, c.stated) IS NODE KEY
`, nil)
	return err
}

// Upsert replaces each row's node and its outgoing ANCESTOR/ATTR edges
// in one write transaction, keyed by (id, branch, stated).
func (idx *neo4jIndex) Upsert(ctx context.Context, rows []Concept) error {
	if len(rows) == 0 {
		return nil
	}
	session := idx.session(ctx)
	defer session.Close(ctx)

	nodes := make([]map[string]any, 0, len(rows))
	var ancestorEdges, attrEdges []map[string]any
	for _, r := range rows {
		nodes = append(nodes, map[string]any{"id": r.ConceptID, "branch": r.Branch, "stated": r.Stated})
		for _, a := range r.Ancestors {
			ancestorEdges = append(ancestorEdges, map[string]any{
				"from": r.ConceptID, "to": a, "branch": r.Branch, "stated": r.Stated,
			})
		}
		for typeID, dests := range r.Attributes {
			for _, d := range dests {
				attrEdges = append(attrEdges, map[string]any{
					"from": r.ConceptID, "to": d, "typeId": typeID, "branch": r.Branch, "stated": r.Stated,
				})
			}
		}
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
UNWIND $nodes AS n
MERGE (c:Concept {id: n.id, branch: n.branch, stated: n.stated})
WITH c
OPTIONAL MATCH (c)-[r:ANCESTOR|ATTR]->()
DELETE r
`, map[string]any{"nodes": nodes})
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}

		if len(ancestorEdges) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $edges AS e
MATCH (a:Concept {id: e.from, branch: e.branch, stated: e.stated})
MATCH (b:Concept {id: e.to, branch: e.branch, stated: e.stated})
MERGE (a)-[:ANCESTOR]->(b)
`, map[string]any{"edges": ancestorEdges})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}

		if len(attrEdges) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $edges AS e
MATCH (a:Concept {id: e.from, branch: e.branch, stated: e.stated})
MERGE (b:Concept {id: e.to, branch: e.branch, stated: e.stated})
MERGE (a)-[r:ATTR {typeId: e.typeId}]->(b)
`, map[string]any{"edges": attrEdges})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

func (idx *neo4jIndex) ConceptsWithAttributeIn(ctx context.Context, branch string, stated bool, attributeConceptIDs []string) ([]string, error) {
	if len(attributeConceptIDs) == 0 {
		return nil, nil
	}
	session := idx.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead, DatabaseName: idx.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (c:Concept {branch: $branch, stated: $stated})-[:ATTR]->(d:Concept)
WHERE d.id IN $ids
RETURN DISTINCT c.id AS id
`, map[string]any{"branch": branch, "stated": stated, "ids": attributeConceptIDs})
		if err != nil {
			return nil, err
		}
		return collectStrings(ctx, res, "id")
	})
	if err != nil {
		return nil, fmt.Errorf("semindex: ConceptsWithAttributeIn: %w", err)
	}
	return result.([]string), nil
}

func (idx *neo4jIndex) DescendantsOfInclusive(ctx context.Context, branch string, stated bool, conceptID string) ([]string, error) {
	session := idx.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead, DatabaseName: idx.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (c:Concept {branch: $branch, stated: $stated})-[:ANCESTOR]->(a:Concept {id: $conceptId, branch: $branch, stated: $stated})
RETURN DISTINCT c.id AS id
`, map[string]any{"branch": branch, "stated": stated, "conceptId": conceptID})
		if err != nil {
			return nil, err
		}
		return collectStrings(ctx, res, "id")
	})
	if err != nil {
		return nil, fmt.Errorf("semindex: DescendantsOfInclusive: %w", err)
	}
	descendants := result.([]string)

	seenSelf := false
	for _, id := range descendants {
		if id == conceptID {
			seenSelf = true
			break
		}
	}
	if !seenSelf {
		descendants = append(descendants, conceptID)
	}
	return descendants, nil
}

func (idx *neo4jIndex) ExtraConcepts(ctx context.Context, branch string, activeConceptIDs []string) ([]string, []string, error) {
	session := idx.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead, DatabaseName: idx.database})
	defer session.Close(ctx)

	type row struct {
		ID     string
		Stated bool
	}
	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (c:Concept {branch: $branch})
WHERE NOT c.id IN $active
RETURN c.id AS id, c.stated AS stated
`, map[string]any{"branch": branch, "active": activeConceptIDs})
		if err != nil {
			return nil, err
		}
		var rows []row
		for res.Next(ctx) {
			rec := res.Record()
			id, _ := rec.Get("id")
			st, _ := rec.Get("stated")
			rows = append(rows, row{ID: id.(string), Stated: st.(bool)})
		}
		return rows, res.Err()
	})
	if err != nil {
		return nil, nil, fmt.Errorf("semindex: ExtraConcepts: %w", err)
	}

	var statedExtra, inferredExtra []string
	for _, r := range result.([]row) {
		if r.Stated {
			statedExtra = append(statedExtra, r.ID)
		} else {
			inferredExtra = append(inferredExtra, r.ID)
		}
	}
	return statedExtra, inferredExtra, nil
}

func (idx *neo4jIndex) Close(ctx context.Context) error {
	if idx == nil || idx.driver == nil {
		return nil
	}
	return idx.driver.Close(ctx)
}

func collectStrings(ctx context.Context, res neo4j.ResultWithContext, field string) ([]string, error) {
	var out []string
	for res.Next(ctx) {
		v, ok := res.Record().Get(field)
		if !ok {
			continue
		}
		out = append(out, v.(string))
	}
	return out, res.Err()
}
