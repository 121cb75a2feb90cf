// Package store provides vector storage for component records: a Qdrant
// backend for production and an in-memory HNSW backend for tests and
// offline use.
package store

import (
	"context"

	"github.com/uidex/uidex/internal/component"
)

// DefaultCollection is the collection name used when none is configured.
const DefaultCollection = "ui_components"

// Hit is a single search result: the stored record plus its similarity
// score (0-1, higher is more similar).
type Hit struct {
	Record *component.Record `json:"record"`
	Score  float32           `json:"score"`
}

// Filter restricts a search to records matching every set field.
// Zero-value fields match everything.
type Filter struct {
	Library    string               `json:"library,omitempty"`
	SourceKind component.SourceKind `json:"source_kind,omitempty"`
	Category   string               `json:"category,omitempty"`
	Tag        string               `json:"tag,omitempty"`
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return f == Filter{}
}

// Matches reports whether a record passes the filter.
func (f Filter) Matches(rec *component.Record) bool {
	if f.Library != "" && rec.Library != f.Library {
		return false
	}
	if f.SourceKind != "" && rec.SourceKind != f.SourceKind {
		return false
	}
	if f.Category != "" && rec.Category != f.Category {
		return false
	}
	if f.Tag != "" {
		found := false
		for _, tag := range rec.Tags {
			if tag == f.Tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// CollectionStats summarizes the indexed collection.
type CollectionStats struct {
	Collection      string         `json:"collection"`
	TotalComponents int            `json:"total_components"`
	Dimensions      int            `json:"dimensions"`
	Libraries       map[string]int `json:"libraries,omitempty"`
	SourceKinds     map[string]int `json:"source_kinds,omitempty"`
	Categories      map[string]int `json:"categories,omitempty"`
}

// VectorStore persists component records alongside their embeddings and
// answers nearest-neighbor queries over them.
type VectorStore interface {
	// Upsert inserts or replaces the record keyed by its ID.
	Upsert(ctx context.Context, rec *component.Record, vector []float32) error

	// Get returns the stored record by ID. The second return is false
	// when the ID is not indexed.
	Get(ctx context.Context, id string) (*component.Record, bool, error)

	// Search returns up to limit hits nearest to the query vector,
	// restricted by the filter, ordered by descending score.
	Search(ctx context.Context, vector []float32, filter Filter, limit int) ([]*Hit, error)

	// Count returns the number of indexed records.
	Count(ctx context.Context) (int, error)

	// Stats aggregates per-library, per-kind, and per-category counts.
	Stats(ctx context.Context) (*CollectionStats, error)

	// Clear removes every record from the collection.
	Clear(ctx context.Context) error

	Close() error
}
