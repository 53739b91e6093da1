package resolver

import "context"

// StoreRecord is one raw match from the name-indexed entity store. RawScore
// is the store's similarity in [0,1]; the resolver owns the transform to
// presentation confidence.
type StoreRecord struct {
	ID       string
	Name     string
	Type     string
	RawScore float64
	Metadata map[string]interface{}
}

// EntityStore is the name-similarity search boundary. entityType may be
// empty to search across all types.
type EntityStore interface {
	Search(ctx context.Context, text, tenantID, entityType string, threshold float64) ([]StoreRecord, error)
}
