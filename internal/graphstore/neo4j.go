package graphstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/starford/pathgraph/internal/apperr"
	"github.com/starford/pathgraph/internal/models"
)

// Neo4jConfig holds connection settings for a Neo4j server.
type Neo4jConfig struct {
	URI         string
	User        string
	Password    string
	Database    string
	MaxPoolSize int
	Timeout     time.Duration
}

// Neo4j is a Store backed by a Neo4j server.
type Neo4j struct {
	driver   neo4j.DriverWithContext
	database string
}

var _ Store = (*Neo4j)(nil)

// OpenNeo4j creates a driver and verifies connectivity. A server that cannot be
// reached yields an error wrapping apperr.ErrStoreUnavailable.
func OpenNeo4j(ctx context.Context, cfg Neo4jConfig) (*Neo4j, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	auth := neo4j.BasicAuth(cfg.User, cfg.Password, "")
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(c *neo4j.Config) {
		if cfg.MaxPoolSize > 0 {
			c.MaxConnectionPoolSize = cfg.MaxPoolSize
		}
		c.SocketConnectTimeout = timeout
	})
	if err != nil {
		return nil, fmt.Errorf("graphstore: init neo4j driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("graphstore: %w: verify neo4j connectivity: %w", apperr.ErrStoreUnavailable, err)
	}
	return &Neo4j{driver: driver, database: cfg.Database}, nil
}

func (s *Neo4j) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.database,
	})
}

// EnsureSchema creates one uniqueness constraint per label.
// Every label is attempted; failures are joined.
func (s *Neo4j) EnsureSchema(ctx context.Context) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	var errs []error
	for _, label := range models.Categories {
		q := fmt.Sprintf("CREATE CONSTRAINT %s_name_unique IF NOT EXISTS FOR (n:`%s`) REQUIRE n.name IS UNIQUE",
			strings.ToLower(string(label)), label)
		res, err := session.Run(ctx, q, nil)
		if err == nil {
			_, err = res.Consume(ctx)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("graphstore: constraint on %s: %w", label, err))
		}
	}
	return errors.Join(errs...)
}

// UpsertNode merges the node on (label, name); properties are set only on creation.
func (s *Neo4j) UpsertNode(ctx context.Context, label models.Category, props map[string]any) (bool, error) {
	if err := checkLabel(label); err != nil {
		return false, err
	}
	name, err := nodeName(props)
	if err != nil {
		return false, err
	}

	q := fmt.Sprintf("MERGE (n:`%s` {name: $name}) ON CREATE SET n += $props", label)
	params := map[string]any{"name": name, "props": props}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	created, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, q, params)
		if err != nil {
			return false, err
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return false, err
		}
		return summary.Counters().NodesCreated() > 0, nil
	})
	if err != nil {
		return false, fmt.Errorf("graphstore: upsert node %s %q: %w", label, name, classifyNeo4jErr(err))
	}
	return created.(bool), nil
}

// Relate matches both endpoints and merges the relationship between them.
func (s *Neo4j) Relate(ctx context.Context, rel models.Relationship) (bool, error) {
	if err := checkRelationship(rel); err != nil {
		return false, err
	}

	q := fmt.Sprintf("MATCH (a:`%s` {name: $start}) MATCH (b:`%s` {name: $end}) "+
		"MERGE (a)-[r:`%s`]->(b) ON CREATE SET r.name = $label "+
		"RETURN count(r) AS matched", rel.StartLabel, rel.EndLabel, rel.Type)
	params := map[string]any{"start": rel.StartName, "end": rel.EndName, "label": rel.Label}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	created, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, q, params)
		if err != nil {
			return false, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return false, err
		}
		if matched, _ := record.Get("matched"); matched == int64(0) {
			return false, fmt.Errorf("%w: %s %q -> %s %q", apperr.ErrNotFound,
				rel.StartLabel, rel.StartName, rel.EndLabel, rel.EndName)
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return false, err
		}
		return summary.Counters().RelationshipsCreated() > 0, nil
	})
	if err != nil {
		return false, fmt.Errorf("graphstore: relate %s: %w", rel.Type, classifyNeo4jErr(err))
	}
	return created.(bool), nil
}

// Counts returns node counts per first label and relationship counts per type.
func (s *Neo4j) Counts(ctx context.Context) (Counts, error) {
	out := Counts{Nodes: map[string]int64{}, Relationships: map[string]int64{}}

	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	queries := []struct {
		cypher string
		dst    map[string]int64
	}{
		{"MATCH (n) RETURN labels(n)[0] AS key, count(*) AS n", out.Nodes},
		{"MATCH ()-[r]->() RETURN type(r) AS key, count(*) AS n", out.Relationships},
	}
	for _, q := range queries {
		_, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			res, err := tx.Run(ctx, q.cypher, nil)
			if err != nil {
				return nil, err
			}
			records, err := res.Collect(ctx)
			if err != nil {
				return nil, err
			}
			for _, rec := range records {
				key, _ := rec.Get("key")
				n, _ := rec.Get("n")
				k, _ := key.(string)
				v, _ := n.(int64)
				q.dst[k] = v
			}
			return nil, nil
		})
		if err != nil {
			return Counts{}, fmt.Errorf("graphstore: counts: %w", err)
		}
	}
	return out, nil
}

// Close closes the driver.
func (s *Neo4j) Close(ctx context.Context) error {
	if s == nil || s.driver == nil {
		return nil
	}
	return s.driver.Close(ctx)
}

// classifyNeo4jErr marks errors the driver considers non-retryable as permanent rejections.
func classifyNeo4jErr(err error) error {
	if errors.Is(err, apperr.ErrNotFound) || neo4j.IsRetryable(err) {
		return err
	}
	var ne *neo4j.Neo4jError
	if errors.As(err, &ne) {
		return fmt.Errorf("%w: %w", apperr.ErrRejected, err)
	}
	return err
}
