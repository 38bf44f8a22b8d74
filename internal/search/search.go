// Package search implements the search query engine (C10): full-text
// search over the registry's materialized search view, with type,
// organism, and format filters and pagination. The view is maintained as
// a materialized view refreshed on demand; this package only queries it
// and triggers a refresh.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/biopkg/bdp/internal/dbpg"
)

// createViewSQL defines the registry_search materialized view joining
// registry entries to their data-source metadata and owning organization,
// with a generated tsvector over display name and description.
const createViewSQL = `
CREATE MATERIALIZED VIEW IF NOT EXISTS registry_search AS
SELECT
	re.id                AS registry_entry_id,
	o.slug                AS org_slug,
	re.slug               AS entry_slug,
	re.display_name        AS display_name,
	re.description         AS description,
	re.entry_type          AS entry_type,
	dsm.source_type        AS source_type,
	dsm.format              AS format,
	org2.scientific_name    AS organism,
	setweight(to_tsvector('english', coalesce(re.display_name, '')), 'A') ||
	setweight(to_tsvector('english', coalesce(re.description, '')), 'B') AS document
FROM registry_entries re
JOIN organizations o ON o.id = re.organization_id
LEFT JOIN data_source_metadata dsm ON dsm.registry_entry_id = re.id
LEFT JOIN organisms org2 ON org2.id = dsm.organism_id
WITH NO DATA;
`

// EnsureView creates the materialized view if it does not already exist.
// The initial population still requires a Refresh call.
func EnsureView(ctx context.Context, db *dbpg.PostgresDB) error {
	return db.Exec(ctx, createViewSQL)
}

// Refresh rebuilds the materialized view from current registry state.
func Refresh(ctx context.Context, db *dbpg.PostgresDB) error {
	return db.Exec(ctx, `REFRESH MATERIALIZED VIEW registry_search`)
}

// Query is the unified search request.
type Query struct {
	Text       string
	TypeFilter string // entry_type, e.g. "data-source" or "tool"
	Organism   string
	Format     string
	Page       int
	PerPage    int
}

// Result is one matched registry entry.
type Result struct {
	OrgSlug     string `json:"org_slug"`
	EntrySlug   string `json:"entry_slug"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	EntryType   string `json:"entry_type"`
	SourceType  string `json:"source_type,omitempty"`
	Format      string `json:"format,omitempty"`
	Organism    string `json:"organism,omitempty"`
}

// Search runs a parameterized full-text query against registry_search,
// applying the optional filters. Every placeholder is bound positionally
// through pgx; no user input is ever string-formatted into the query
// text.
func Search(ctx context.Context, db *dbpg.PostgresDB, q Query) ([]Result, int, error) {
	page, perPage := q.Page, q.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	var conditions []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Text != "" {
		conditions = append(conditions, fmt.Sprintf("document @@ plainto_tsquery('english', %s)", arg(q.Text)))
	}
	if q.TypeFilter != "" {
		conditions = append(conditions, fmt.Sprintf("entry_type = %s", arg(q.TypeFilter)))
	}
	if q.Organism != "" {
		conditions = append(conditions, fmt.Sprintf("organism = %s", arg(q.Organism)))
	}
	if q.Format != "" {
		conditions = append(conditions, fmt.Sprintf("format = %s", arg(q.Format)))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countSQL := fmt.Sprintf(`SELECT count(*) FROM registry_search %s`, where)
	var total int
	if err := db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("search: count: %w", err)
	}

	limitArg := arg(perPage)
	offsetArg := arg((page - 1) * perPage)
	selectSQL := fmt.Sprintf(`
		SELECT org_slug, entry_slug, display_name, description, entry_type,
		       coalesce(source_type, ''), coalesce(format, ''), coalesce(organism, '')
		FROM registry_search
		%s
		ORDER BY entry_slug
		LIMIT %s OFFSET %s
	`, where, limitArg, offsetArg)

	rows, err := db.Query(ctx, selectSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search: query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.OrgSlug, &r.EntrySlug, &r.DisplayName, &r.Description, &r.EntryType, &r.SourceType, &r.Format, &r.Organism); err != nil {
			return nil, 0, fmt.Errorf("search: scan: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return results, total, nil
}
