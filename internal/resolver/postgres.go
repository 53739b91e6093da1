package resolver

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresStore searches the entities table with pg_trgm trigram similarity.
// Requires the pg_trgm extension and a trigram index on entities(name).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const searchByTypeQuery = `
SELECT id, name, entity_type, data, similarity(name, $1) AS similarity_score
FROM entities
WHERE tenant_id = $2
  AND entity_type = $3
  AND similarity(name, $1) > $4
ORDER BY similarity_score DESC`

const searchAllTypesQuery = `
SELECT id, name, entity_type, data, similarity(name, $1) AS similarity_score
FROM entities
WHERE tenant_id = $2
  AND similarity(name, $1) > $3
ORDER BY similarity_score DESC`

// Search returns every record whose trigram similarity to text exceeds
// threshold, scoped by tenant and, when entityType is non-empty, by type.
func (s *PostgresStore) Search(ctx context.Context, text, tenantID, entityType string, threshold float64) ([]StoreRecord, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if entityType != "" {
		rows, err = s.db.QueryContext(ctx, searchByTypeQuery, text, tenantID, entityType, threshold)
	} else {
		rows, err = s.db.QueryContext(ctx, searchAllTypesQuery, text, tenantID, threshold)
	}
	if err != nil {
		return nil, fmt.Errorf("entity search failed: %w", err)
	}
	defer rows.Close()

	var records []StoreRecord
	for rows.Next() {
		var (
			rec  StoreRecord
			data sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Type, &data, &rec.RawScore); err != nil {
			return nil, fmt.Errorf("entity scan failed: %w", err)
		}
		if data.Valid && data.String != "" {
			if err := json.Unmarshal([]byte(data.String), &rec.Metadata); err != nil {
				// Malformed metadata degrades disambiguation only, not matching.
				rec.Metadata = nil
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("entity search failed: %w", err)
	}
	return records, nil
}
