package corpus

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/resilience"
)

const schema = `
CREATE TABLE IF NOT EXISTS content_items (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	title       TEXT NOT NULL,
	url         TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	content     TEXT NOT NULL DEFAULT '',
	chunks      TEXT[] NOT NULL DEFAULT '{}',
	attributes  JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const selectItems = `
SELECT id, kind, title, url, description, content, chunks, attributes
FROM content_items
ORDER BY id`

// PostgresSource loads documents from the content_items table. The fetch is
// retried because the database may still be starting alongside the service.
type PostgresSource struct {
	client *postgres.Client
	db     *sql.DB
	retry  resilience.RetryConfig
	logger *slog.Logger
}

func NewPostgresSource(client *postgres.Client, retry resilience.RetryConfig) *PostgresSource {
	return &PostgresSource{
		client: client,
		db:     client.DB,
		retry:  retry,
		logger: slog.Default().With("component", "corpus-postgres"),
	}
}

// EnsureSchema creates the content_items table if it does not exist.
func (s *PostgresSource) EnsureSchema(ctx context.Context) error {
	return s.client.Migrate(ctx, "content_items", schema)
}

func (s *PostgresSource) Load(ctx context.Context) ([]Document, error) {
	var docs []Document
	err := resilience.Retry(ctx, "corpus-fetch", s.retry, func() error {
		var err error
		docs, err = s.fetch(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *PostgresSource) fetch(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, selectItems)
	if err != nil {
		return nil, fmt.Errorf("querying content_items: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			id, kindName string
			rec          Record
			attrs        []byte
		)
		if err := rows.Scan(&id, &kindName, &rec.Title, &rec.URL, &rec.Description,
			&rec.Content, pq.Array(&rec.Chunks), &attrs); err != nil {
			// A schema mismatch will not fix itself.
			return nil, resilience.Permanent(fmt.Errorf("scanning content item: %w", err))
		}
		kind, err := ParseKind(kindName)
		if err != nil {
			s.logger.Warn("skipping content item", "id", id, "error", err)
			continue
		}
		if len(attrs) > 0 {
			var extra Record
			if err := json.Unmarshal(attrs, &extra); err != nil {
				s.logger.Warn("skipping content item with malformed attributes", "id", id, "error", err)
				continue
			}
			rec.PropertyType, rec.Country, rec.Challenges = extra.PropertyType, extra.Country, extra.Challenges
			rec.Term, rec.Synonyms = extra.Term, extra.Synonyms
			rec.Definition, rec.Explanation = extra.Definition, extra.Explanation
		}
		doc, ok := rec.Document(kind, id)
		if !ok {
			s.logger.Debug("skipping content item with too little text", "id", id)
			continue
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating content items: %w", err)
	}
	return docs, nil
}

// Upsert writes documents into content_items in one transaction. It is used
// by the import command to seed the table from a content directory.
func (s *PostgresSource) Upsert(ctx context.Context, docs []*Document) error {
	err := s.client.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO content_items (id, kind, title, url, description, content, chunks, attributes, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
			ON CONFLICT (id) DO UPDATE SET
				kind = EXCLUDED.kind, title = EXCLUDED.title, url = EXCLUDED.url,
				description = EXCLUDED.description, content = EXCLUDED.content,
				chunks = EXCLUDED.chunks, attributes = EXCLUDED.attributes, updated_at = NOW()`)
		if err != nil {
			return fmt.Errorf("preparing upsert: %w", err)
		}
		defer stmt.Close()

		for _, d := range docs {
			attrs, err := json.Marshal(attributeRecord(d))
			if err != nil {
				return fmt.Errorf("encoding attributes for %s: %w", d.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, d.ID, string(d.Kind), d.Title, d.URL, d.Description,
				d.Body, pq.Array(d.Chunks), attrs); err != nil {
				return fmt.Errorf("upserting %s: %w", d.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("content items upserted", "count", len(docs))
	return nil
}

type attributes struct {
	PropertyType string   `json:"property_type,omitempty"`
	Country      string   `json:"country,omitempty"`
	Challenges   []string `json:"challenges,omitempty"`
	Term         string   `json:"term,omitempty"`
	Synonyms     []string `json:"synonyms,omitempty"`
	Definition   string   `json:"definition,omitempty"`
	Explanation  string   `json:"explanation,omitempty"`
}

// attributeRecord keeps only the kind-specific fields of a document.
func attributeRecord(d *Document) attributes {
	var rec attributes
	if d.CaseStudy != nil {
		rec.PropertyType = d.CaseStudy.PropertyType
		rec.Country = d.CaseStudy.Country
		rec.Challenges = d.CaseStudy.Challenges
	}
	if d.Glossary != nil {
		rec.Term = d.Glossary.Term
		rec.Synonyms = d.Glossary.Synonyms
		rec.Definition = d.Glossary.Definition
		rec.Explanation = d.Glossary.Explanation
	}
	return rec
}
